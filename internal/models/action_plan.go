// internal/models/action_plan.go
package models

import "time"

// ActionItem is one step of a plan or template.
type ActionItem struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	ResponsibleRole string   `json:"responsibleRole"`
	EstimatedHours  float64  `json:"estimatedHours"`
	Dependencies    []string `json:"dependencies,omitempty"`
	TimelineDays    int      `json:"timelineDays"`
	Mandatory       bool     `json:"mandatory"`
}

// ActionPlanTemplate is a read-only catalog entry keyed by category, risk
// level and optional sector type. An empty SectorType is generic.
type ActionPlanTemplate struct {
	ID                string       `json:"id"`
	Category          Category     `json:"category"`
	RiskLevel         RiskLevel    `json:"riskLevel"`
	SectorType        string       `json:"sectorType,omitempty"`
	Name              string       `json:"name"`
	Description       string       `json:"description"`
	Actions           []ActionItem `json:"actions"`
	TimelineDays      int          `json:"timelineDays"`
	Priority          Priority     `json:"priority"`
	RequiredResources []string     `json:"requiredResources,omitempty"`
	SuccessMetrics    []string     `json:"successMetrics,omitempty"`
}

// GeneratedActionPlan is the builder output, before persistence.
type GeneratedActionPlan struct {
	Title                   string       `json:"title"`
	Description             string       `json:"description"`
	Category                Category     `json:"category,omitempty"`
	Integrated              bool         `json:"integrated"`
	TemplateID              string       `json:"templateId,omitempty"`
	RiskLevel               RiskLevel    `json:"riskLevel"`
	Priority                Priority     `json:"priority"`
	TotalEstimatedDays      int          `json:"totalEstimatedDays"`
	TotalEstimatedHours     int          `json:"totalEstimatedHours"`
	Actions                 []ActionItem `json:"actions"`
	SuccessMetrics          []string     `json:"successMetrics"`
	RequiredResources       []string     `json:"requiredResources,omitempty"`
	MonitoringFrequencyDays int          `json:"monitoringFrequencyDays"`
}

// TriggerMode records who asked for a plan.
type TriggerMode string

const (
	TriggerAutomatic TriggerMode = "automatic"
	TriggerManual    TriggerMode = "manual"
)

// ActionPlan is the persisted plan, at most one per assessment response.
type ActionPlan struct {
	ID                   string              `json:"id"`
	CompanyID            string              `json:"companyId"`
	AssessmentResponseID string              `json:"assessmentResponseId"`
	ProcessingJobID      string              `json:"processingJobId,omitempty"`
	Mode                 TriggerMode         `json:"mode"`
	Status               string              `json:"status"`
	Plan                 GeneratedActionPlan `json:"plan"`
	CreatedAt            time.Time           `json:"createdAt"`
}
