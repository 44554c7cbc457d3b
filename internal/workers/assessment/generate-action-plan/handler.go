// internal/workers/assessment/generate-action-plan/handler.go
package generateactionplan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/common/metrics"
	"psychosocial-workers/internal/models"
	"psychosocial-workers/internal/risk/automation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "generate-action-plan"
)

// PlanGenerator is satisfied by *automation.Gate.
type PlanGenerator interface {
	Generate(ctx context.Context, assessmentID string, mode models.TriggerMode) *automation.ProcessingResult
}

// Handler is the "generate now" trigger. A run that needs no plan, or finds
// one already persisted, still completes the job; only pipeline failures fail it.
type Handler struct {
	config       *Config
	generator    PlanGenerator
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, generator PlanGenerator, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		generator:    generator,
		errorHandler: apperrors.NewErrorHandler(scoped),
		logger:       scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.AssessmentResponseID == "" {
		return nil, apperrors.NewValidationError("assessmentResponseId is required")
	}

	mode := models.TriggerMode(input.Mode)
	switch mode {
	case "":
		mode = models.TriggerManual
	case models.TriggerManual:
	case models.TriggerAutomatic:
		// Automatic runs carry a processing job and only come from the queue.
		return nil, apperrors.NewValidationError("mode automatic is reserved for queued processing")
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown mode %q", input.Mode))
	}

	result := h.generator.Generate(ctx, input.AssessmentResponseID, mode)
	if !result.Success {
		if result.Err != nil {
			return nil, result.Err
		}
		return nil, apperrors.NewValidationError(result.Message)
	}

	h.logger.Info("action plan request processed", map[string]interface{}{
		"assessmentResponseId": input.AssessmentResponseID,
		"mode":                 mode,
		"planGenerated":        result.PlanGenerated,
		"hasExisting":          result.HasExisting,
		"riskLevel":            result.RiskLevel,
	})

	return &Output{
		Success:           result.Success,
		Message:           result.Message,
		PlanGenerated:     result.PlanGenerated,
		ActionPlanID:      result.ActionPlanID,
		HasExisting:       result.HasExisting,
		RiskLevel:         string(result.RiskLevel),
		NotificationsSent: result.NotificationsSent,
		ElapsedMS:         result.ElapsedMS,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":        job.Key,
		"planGenerated": output.PlanGenerated,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
