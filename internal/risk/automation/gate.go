// internal/risk/automation/gate.go
package automation

import (
	"context"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"
)

// Requirement is the display-only answer to "does this assessment need a plan".
type Requirement struct {
	Requires    bool             `json:"requires"`
	RiskLevel   models.RiskLevel `json:"riskLevel"`
	HasExisting bool             `json:"hasExisting"`
}

// Gate is the entry point for one completed assessment. It reports failures
// as structured results instead of errors.
type Gate struct {
	pipeline *Pipeline
	logger   logger.Logger
}

func NewGate(pipeline *Pipeline, log logger.Logger) *Gate {
	return &Gate{
		pipeline: pipeline,
		logger:   log.WithFields(map[string]interface{}{"component": "automation-gate"}),
	}
}

// Generate runs the shared pipeline. Manual mode ignores the company's
// auto-generate flag.
func (g *Gate) Generate(ctx context.Context, assessmentID string, mode models.TriggerMode) *ProcessingResult {
	if mode == "" {
		mode = models.TriggerManual
	}

	result, err := g.pipeline.Process(ctx, Request{AssessmentID: assessmentID, Mode: mode})
	if err != nil {
		g.logger.Error("action plan generation failed", map[string]interface{}{
			"assessmentResponseId": assessmentID,
			"mode":                 mode,
			"errorCode":            apperrors.CodeOf(err),
			"error":                err,
		})
		return &ProcessingResult{
			Success: false,
			Message: err.Error(),
			Err:     err,
		}
	}
	return result
}

// RequiresActionPlan loads and scores the assessment and checks for an
// existing plan without generating anything.
func (g *Gate) RequiresActionPlan(ctx context.Context, assessmentID string) (*Requirement, error) {
	a, err := g.pipeline.assess(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	existing, err := g.pipeline.store.FindActionPlan(ctx, a.assessment.ID)
	if err != nil {
		return nil, err
	}

	return &Requirement{
		Requires:    a.requiresPlan() && existing == nil,
		RiskLevel:   a.level(),
		HasExisting: existing != nil,
	}, nil
}
