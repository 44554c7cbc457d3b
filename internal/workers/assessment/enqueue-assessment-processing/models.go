// internal/workers/assessment/enqueue-assessment-processing/models.go
package enqueueassessmentprocessing

type Input struct {
	AssessmentResponseID string `json:"assessmentResponseId"`
	CompanyID            string `json:"companyId"`
	Priority             string `json:"priority"`
}

type Output struct {
	ProcessingJobID string `json:"processingJobId"`
	Created         bool   `json:"jobCreated"`
	QueuedAt        string `json:"queuedAt"` // ISO 8601
}
