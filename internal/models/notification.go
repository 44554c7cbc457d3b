// internal/models/notification.go
package models

import "time"

const (
	TriggerHighRiskDetected    = "high_risk_detected"
	TriggerActionPlanGenerated = "action_plan_generated"
)

const (
	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationDisabled = "disabled"
)

type Notification struct {
	ID                   string                 `json:"id"`
	CompanyID            string                 `json:"companyId"`
	AssessmentResponseID string                 `json:"assessmentResponseId"`
	TriggerEvent         string                 `json:"triggerEvent"`
	Channels             []string               `json:"channels"`
	Recipients           []string               `json:"recipients"`
	Status               string                 `json:"status"` // "sent", "failed", "disabled"
	Payload              map[string]interface{} `json:"payload"`
	SentAt               *time.Time             `json:"sentAt,omitempty"`
	CreatedAt            time.Time              `json:"createdAt"`
}
