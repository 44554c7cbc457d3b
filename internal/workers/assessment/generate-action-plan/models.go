// internal/workers/assessment/generate-action-plan/models.go
package generateactionplan

type Input struct {
	AssessmentResponseID string `json:"assessmentResponseId"`
	Mode                 string `json:"mode"` // only "manual"; automatic runs come from the queue
}

type Output struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	PlanGenerated     bool   `json:"planGenerated"`
	ActionPlanID      string `json:"actionPlanId,omitempty"`
	HasExisting       bool   `json:"hasExisting"`
	RiskLevel         string `json:"riskLevel,omitempty"`
	NotificationsSent int    `json:"notificationsSent"`
	ElapsedMS         int64  `json:"elapsedMs"`
}
