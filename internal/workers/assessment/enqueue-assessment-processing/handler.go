// internal/workers/assessment/enqueue-assessment-processing/handler.go
package enqueueassessmentprocessing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/common/metrics"
	"psychosocial-workers/internal/models"
	"psychosocial-workers/internal/processing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "enqueue-assessment-processing"
)

// Enqueuer is satisfied by *processing.Scheduler.
type Enqueuer interface {
	Enqueue(ctx context.Context, req processing.EnqueueRequest) (*processing.EnqueueResult, error)
}

// Handler turns an "assessment completed" process event into a durable
// processing job. The originating process never waits on risk processing.
type Handler struct {
	config       *Config
	enqueuer     Enqueuer
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, enqueuer Enqueuer, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		enqueuer:     enqueuer,
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
	result, err := h.enqueuer.Enqueue(ctx, processing.EnqueueRequest{
		AssessmentID: input.AssessmentResponseID,
		CompanyID:    input.CompanyID,
		Priority:     models.Priority(input.Priority),
	})
	if err != nil {
		return nil, err
	}

	if !result.Created {
		h.logger.Info("assessment already queued", map[string]interface{}{
			"assessmentResponseId": input.AssessmentResponseID,
			"processingJobId":      result.JobID,
		})
	}

	return &Output{
		ProcessingJobID: result.JobID,
		Created:         result.Created,
		QueuedAt:        time.Now().UTC().Format(time.RFC3339),
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
		"jobKey":          job.Key,
		"processingJobId": output.ProcessingJobID,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
