// internal/models/processing.go
package models

import "time"

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// IsTerminal reports completed or error.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobError
}

// ProcessingJob is the durable unit of work for one assessment response.
type ProcessingJob struct {
	ID                   string     `json:"id"`
	AssessmentResponseID string     `json:"assessmentResponseId"`
	CompanyID            string     `json:"companyId"`
	Status               JobStatus  `json:"status"`
	Priority             Priority   `json:"priority"`
	RetryCount           int        `json:"retryCount"`
	MaxRetries           int        `json:"maxRetries"`
	ErrorMessage         string     `json:"errorMessage,omitempty"`
	NextRunAt            time.Time  `json:"nextRunAt"`
	CreatedAt            time.Time  `json:"createdAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
}

// Processing log stages.
const (
	StageRiskCalculated      = "risk_calculated"
	StageActionPlanGenerated = "action_plan_generated"
	StageNotificationSent    = "notification_sent"
)

// ProcessingLog is an audit row.
type ProcessingLog struct {
	AssessmentResponseID string                 `json:"assessmentResponseId"`
	ProcessingJobID      string                 `json:"processingJobId,omitempty"`
	Stage                string                 `json:"stage"`
	Status               string                 `json:"status"`
	Details              map[string]interface{} `json:"details,omitempty"`
	CreatedAt            time.Time              `json:"createdAt"`
}
