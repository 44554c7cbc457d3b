// internal/risk/automation/pipeline.go
package automation

import (
	"context"
	"time"

	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/common/metrics"
	"psychosocial-workers/internal/models"
	"psychosocial-workers/internal/notification"
	"psychosocial-workers/internal/risk/actionplan"
	"psychosocial-workers/internal/risk/calculation"
	"psychosocial-workers/internal/risk/criteria"

	"github.com/google/uuid"
)

const ActionPlanStatusPending = "pending"

// Store is the persistence boundary of the pipeline.
type Store interface {
	LoadAssessment(ctx context.Context, id string) (*models.AssessmentResponse, error)
	LoadEmployee(ctx context.Context, id string) (*models.EmployeeContext, error)
	AutomationConfig(ctx context.Context, companyID string) (*models.AutomationConfig, error)
	// InsertRiskAnalysis reports false when the row already existed for the job.
	InsertRiskAnalysis(ctx context.Context, a *models.RiskAnalysis) (bool, error)
	// FindActionPlan returns nil, nil when the assessment has no plan.
	FindActionPlan(ctx context.Context, assessmentID string) (*models.ActionPlan, error)
	// CreateActionPlan returns the winning plan id and whether this call created it.
	CreateActionPlan(ctx context.Context, plan *models.ActionPlan) (string, bool, error)
	WriteProcessingLog(ctx context.Context, entry models.ProcessingLog) error
}

type Indexer interface {
	IndexAnalyses(ctx context.Context, analyses []models.RiskAnalysis) error
}

type Notifier interface {
	Notify(ctx context.Context, req notification.Request) (*notification.Result, error)
}

// Request identifies one run of the pipeline. JobID is empty for manual runs.
type Request struct {
	AssessmentID string
	JobID        string
	Mode         models.TriggerMode
}

// ProcessingResult is the summary returned to manual-trigger call sites.
type ProcessingResult struct {
	Success           bool             `json:"success"`
	Message           string           `json:"message"`
	PlanGenerated     bool             `json:"planGenerated"`
	ActionPlanID      string           `json:"actionPlanId,omitempty"`
	HasExisting       bool             `json:"hasExisting"`
	RiskLevel         models.RiskLevel `json:"riskLevel,omitempty"`
	AnalysesCreated   int              `json:"analysesCreated"`
	PlansCreated      int              `json:"plansCreated"`
	NotificationsSent int              `json:"notificationsSent"`
	ElapsedMS         int64            `json:"elapsedMs"`
	Err               error            `json:"-"`
}

// Pipeline is the single load → calculate → decide → generate → notify path
// shared by the manual trigger and the background scheduler.
type Pipeline struct {
	store     Store
	engine    *calculation.Engine
	generator *actionplan.Generator
	notifier  Notifier
	indexer   Indexer
	logger    logger.Logger
}

type Option func(*Pipeline)

func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

func WithIndexer(i Indexer) Option {
	return func(p *Pipeline) { p.indexer = i }
}

func NewPipeline(store Store, engine *calculation.Engine, generator *actionplan.Generator, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		engine:    engine,
		generator: generator,
		logger:    log.WithFields(map[string]interface{}{"component": "automation-pipeline"}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// assessed is the loaded and calculated state of one assessment.
type assessed struct {
	assessment *models.AssessmentResponse
	employee   *models.EmployeeContext
	input      calculation.Input
	eval       *calculation.Evaluation
}

func (a *assessed) level() models.RiskLevel {
	return models.MaxRiskLevel(a.eval.HeadlineLevel, a.eval.HighestLevel())
}

func (a *assessed) requiresPlan() bool {
	return a.level().IsHighOrAbove()
}

func (p *Pipeline) assess(ctx context.Context, assessmentID string) (*assessed, error) {
	assessment, err := p.store.LoadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	employee, err := p.store.LoadEmployee(ctx, assessment.EmployeeID)
	if err != nil {
		return nil, err
	}

	companyID := assessment.CompanyID
	if companyID == "" {
		companyID = employee.CompanyID
	}

	in := calculation.Input{
		AssessmentID: assessment.ID,
		CompanyID:    companyID,
		SectorID:     employee.SectorID,
		SectorType:   employee.SectorType,
		RoleID:       employee.RoleID,
		Answers:      assessment.Answers,
		TotalScore:   assessment.TotalScore,
	}
	eval, err := p.engine.Calculate(ctx, in)
	if err != nil {
		return nil, err
	}
	return &assessed{assessment: assessment, employee: employee, input: in, eval: eval}, nil
}

// Process runs the pipeline once. Errors are typed; notification problems are
// logged and never returned.
func (p *Pipeline) Process(ctx context.Context, req Request) (*ProcessingResult, error) {
	start := time.Now()
	log := logger.ForJob(p.logger, req.JobID, req.AssessmentID).WithFields(map[string]interface{}{
		"mode": req.Mode,
	})

	a, err := p.assess(ctx, req.AssessmentID)
	if err != nil {
		return nil, err
	}

	result := &ProcessingResult{RiskLevel: a.level()}

	// Analyses are keyed by job; a run without one would pin an empty key.
	if req.Mode == models.TriggerAutomatic && req.JobID != "" {
		result.AnalysesCreated = p.persistAnalyses(ctx, log, a, req.JobID)
	}

	cfg, err := p.store.AutomationConfig(ctx, a.input.CompanyID)
	if err != nil {
		return nil, err
	}

	finish := func(msg string) (*ProcessingResult, error) {
		result.Success = true
		result.Message = msg
		result.ElapsedMS = time.Since(start).Milliseconds()
		log.Info("assessment processed", map[string]interface{}{
			"riskLevel":         result.RiskLevel,
			"planGenerated":     result.PlanGenerated,
			"hasExisting":       result.HasExisting,
			"analysesCreated":   result.AnalysesCreated,
			"notificationsSent": result.NotificationsSent,
			"elapsedMs":         result.ElapsedMS,
		})
		return result, nil
	}

	generate := a.requiresPlan()
	if req.Mode == models.TriggerAutomatic && !cfg.AutoGeneratePlans {
		generate = false
	}

	if !generate {
		if result.RiskLevel.IsHighOrAbove() {
			p.notify(ctx, log, a, cfg, req.JobID, result, models.TriggerHighRiskDetected, "")
			return finish("high risk detected, automatic plan generation disabled")
		}
		return finish("no action plan required")
	}

	existing, err := p.store.FindActionPlan(ctx, a.assessment.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.HasExisting = true
		result.ActionPlanID = existing.ID
		// A later job re-evaluating the assessment still reports high risk;
		// the job that created the plan already notified.
		if req.JobID != "" && req.JobID != existing.ProcessingJobID {
			p.notify(ctx, log, a, cfg, req.JobID, result, models.TriggerHighRiskDetected, "")
		}
		return finish("action plan already exists")
	}

	pc := actionplan.Context{
		CompanyID:  a.input.CompanyID,
		SectorID:   a.input.SectorID,
		SectorType: a.input.SectorType,
		RoleID:     a.input.RoleID,
	}
	plans, err := p.generator.Generate(ctx, pc, planInputs(a.eval))
	if err != nil {
		return nil, err
	}
	primary, ok := actionplan.Primary(plans)
	if !ok {
		return finish("no action plan required")
	}

	plan := &models.ActionPlan{
		ID:                   uuid.New().String(),
		CompanyID:            a.input.CompanyID,
		AssessmentResponseID: a.assessment.ID,
		ProcessingJobID:      req.JobID,
		Mode:                 req.Mode,
		Status:               ActionPlanStatusPending,
		Plan:                 primary,
	}
	id, created, err := p.store.CreateActionPlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	result.ActionPlanID = id
	if !created {
		result.HasExisting = true
		return finish("action plan already exists")
	}

	result.PlanGenerated = true
	result.PlansCreated = 1
	metrics.ActionPlansGenerated.WithLabelValues(string(req.Mode)).Inc()

	p.audit(ctx, log, models.ProcessingLog{
		AssessmentResponseID: a.assessment.ID,
		ProcessingJobID:      req.JobID,
		Stage:                models.StageActionPlanGenerated,
		Status:               "success",
		Details: map[string]interface{}{
			"mode":           req.Mode,
			"actionPlanId":   id,
			"integrated":     primary.Integrated,
			"plansBuilt":     len(plans),
			"priority":       primary.Priority,
			"riskLevel":      primary.RiskLevel,
			"totalDays":      primary.TotalEstimatedDays,
			"totalHours":     primary.TotalEstimatedHours,
			"actionsCount":   len(primary.Actions),
			"templateId":     primary.TemplateID,
			"monitoringDays": primary.MonitoringFrequencyDays,
		},
	})

	p.notify(ctx, log, a, cfg, req.JobID, result, models.TriggerActionPlanGenerated, primary.Title)
	return finish("action plan generated")
}

// HandleJob runs the pipeline for a queued job.
func (p *Pipeline) HandleJob(ctx context.Context, job models.ProcessingJob) error {
	_, err := p.Process(ctx, Request{
		AssessmentID: job.AssessmentResponseID,
		JobID:        job.ID,
		Mode:         models.TriggerAutomatic,
	})
	return err
}

// planInputs promotes the top category to the headline level when only the
// headline qualifies, so the generator still has a category to plan for.
func planInputs(eval *calculation.Evaluation) []calculation.Result {
	results := append([]calculation.Result(nil), eval.Categories...)
	if len(eval.Qualifying()) > 0 || !eval.HeadlineLevel.IsHighOrAbove() {
		return results
	}
	top, ok := calculation.TopCategory(results)
	if !ok {
		return results
	}
	for i := range results {
		if results[i].Category == top.Category {
			results[i].RiskLevel = eval.HeadlineLevel
		}
	}
	return results
}

func (p *Pipeline) persistAnalyses(ctx context.Context, log logger.Logger, a *assessed, jobID string) int {
	rows := calculation.ToAnalyses(a.input, a.employee.ID, jobID, a.eval.Categories)
	created := 0
	persisted := make([]models.RiskAnalysis, 0, len(rows))
	for i := range rows {
		rows[i].ID = uuid.New().String()
		inserted, err := p.store.InsertRiskAnalysis(ctx, &rows[i])
		if err != nil {
			log.Warn("risk analysis insert failed", map[string]interface{}{
				"category": rows[i].Category,
				"error":    err,
			})
			continue
		}
		persisted = append(persisted, rows[i])
		if inserted {
			created++
		}
	}

	if p.indexer != nil && len(persisted) > 0 {
		if err := p.indexer.IndexAnalyses(ctx, persisted); err != nil {
			log.Warn("risk analysis indexing failed", map[string]interface{}{"error": err})
		}
	}

	p.audit(ctx, log, models.ProcessingLog{
		AssessmentResponseID: a.assessment.ID,
		ProcessingJobID:      jobID,
		Stage:                models.StageRiskCalculated,
		Status:               "success",
		Details: map[string]interface{}{
			"headlineScore":   a.eval.HeadlineScore,
			"headlineLevel":   a.eval.HeadlineLevel,
			"highestLevel":    a.eval.HighestLevel(),
			"analysesCreated": created,
			"taxonomyVersion": criteria.TaxonomyVersion,
		},
	})
	return created
}

func (p *Pipeline) notify(ctx context.Context, log logger.Logger, a *assessed, cfg *models.AutomationConfig, jobID string, result *ProcessingResult, trigger, planTitle string) {
	if p.notifier == nil || !cfg.NotificationsEnabled {
		return
	}

	var labels []string
	for _, r := range a.eval.Qualifying() {
		labels = append(labels, criteria.Label(r.Category))
	}

	res, err := p.notifier.Notify(ctx, notification.Request{
		CompanyID:            a.input.CompanyID,
		AssessmentResponseID: a.assessment.ID,
		TriggerEvent:         trigger,
		RiskLevel:            result.RiskLevel,
		Categories:           labels,
		ActionPlanID:         result.ActionPlanID,
		PlanTitle:            planTitle,
		RecipientEmails:      cfg.RecipientEmails,
		RecipientPhones:      cfg.RecipientPhones,
	})

	status := "success"
	details := map[string]interface{}{"triggerEvent": trigger}
	if err != nil {
		status = "error"
		details["error"] = err.Error()
		log.Warn("notification failed", map[string]interface{}{"error": err})
	}
	if res != nil {
		details["notificationId"] = res.NotificationID
		details["notificationStatus"] = res.Status
		if res.Status == models.NotificationSent {
			result.NotificationsSent++
		}
	}

	p.audit(ctx, log, models.ProcessingLog{
		AssessmentResponseID: a.assessment.ID,
		ProcessingJobID:      jobID,
		Stage:                models.StageNotificationSent,
		Status:               status,
		Details:              details,
	})
}

func (p *Pipeline) audit(ctx context.Context, log logger.Logger, entry models.ProcessingLog) {
	if err := p.store.WriteProcessingLog(ctx, entry); err != nil {
		log.Warn("processing log write failed", map[string]interface{}{
			"stage": entry.Stage,
			"error": err,
		})
	}
}
