// internal/models/risk.go
package models

import "time"

// Category is one of the five fixed psychosocial risk dimensions.
type Category string

const (
	CategoryWorkOrganization       Category = "organizacao_trabalho"
	CategoryEnvironmentalCondition Category = "condicoes_ambientais"
	CategorySocioProfessional      Category = "relacoes_socioprofissionais"
	CategoryRecognitionGrowth      Category = "reconhecimento_crescimento"
	CategoryWorkLifeBalance        Category = "elo_trabalho_vida_social"

	// CategoryGeneral keys the headline thresholds in category_weights.
	CategoryGeneral Category = "geral"
)

// RiskLevel is the ordinal exposure classification stored on analyses.
type RiskLevel string

const (
	RiskLow      RiskLevel = "baixo"
	RiskMedium   RiskLevel = "medio"
	RiskHigh     RiskLevel = "alto"
	RiskCritical RiskLevel = "critico"
)

// Rank orders risk levels: baixo=0 .. critico=3. Unknown values rank -1.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// IsHighOrAbove reports alto or critico.
func (l RiskLevel) IsHighOrAbove() bool {
	return l.Rank() >= RiskHigh.Rank()
}

// Priority maps a risk level onto plan/job priority.
func (l RiskLevel) Priority() Priority {
	switch l {
	case RiskCritical:
		return PriorityCritical
	case RiskHigh:
		return PriorityHigh
	case RiskMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// MaxRiskLevel returns the highest of the given levels, baixo when empty.
func MaxRiskLevel(levels ...RiskLevel) RiskLevel {
	max := RiskLow
	for _, l := range levels {
		if l.Rank() > max.Rank() {
			max = l
		}
	}
	return max
}

// Priority is shared by processing jobs and action plans.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities: low=0 .. critical=3. Unknown values rank -1.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	}
	return -1
}

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// AssessmentResponse is one completed questionnaire. Never mutated here.
type AssessmentResponse struct {
	ID          string             `json:"id"`
	EmployeeID  string             `json:"employeeId"`
	CompanyID   string             `json:"companyId"`
	Answers     map[string]float64 `json:"answers"`
	TotalScore  *float64           `json:"totalScore,omitempty"`
	CompletedAt time.Time          `json:"completedAt"`
}

// EmployeeContext is the owning employee with sector/role linkage.
type EmployeeContext struct {
	ID         string `json:"id"`
	CompanyID  string `json:"companyId"`
	SectorID   string `json:"sectorId,omitempty"`
	SectorType string `json:"sectorType,omitempty"`
	RoleID     string `json:"roleId,omitempty"`
	Name       string `json:"name"`
}

// CategoryWeight is a per-company weight and threshold row.
type CategoryWeight struct {
	CompanyID         string   `json:"companyId"`
	Category          Category `json:"category"`
	Weight            float64  `json:"weight"`
	CriticalThreshold float64  `json:"criticalThreshold"`
	HighThreshold     float64  `json:"highThreshold"`
	MediumThreshold   float64  `json:"mediumThreshold"`
}

// SectorRiskProfile carries optional per-category multipliers for a sector.
type SectorRiskProfile struct {
	CompanyID   string               `json:"companyId"`
	SectorID    string               `json:"sectorId"`
	Multipliers map[Category]float64 `json:"multipliers"`
	Baselines   map[Category]float64 `json:"baselines,omitempty"`
}

// RiskAnalysis is the persisted form of one category calculation.
type RiskAnalysis struct {
	ID                   string    `json:"id"`
	AssessmentResponseID string    `json:"assessmentResponseId"`
	CompanyID            string    `json:"companyId"`
	EmployeeID           string    `json:"employeeId"`
	SectorID             string    `json:"sectorId,omitempty"`
	ProcessingJobID      string    `json:"processingJobId,omitempty"`
	Category             Category  `json:"category"`
	RawScore             float64   `json:"rawScore"`
	WeightedScore        float64   `json:"weightedScore"`
	AdjustedScore        float64   `json:"adjustedScore"`
	RiskLevel            RiskLevel `json:"riskLevel"`
	Confidence           float64   `json:"confidence"`
	ContributingFactors  []string  `json:"contributingFactors"`
	RecommendedActions   []string  `json:"recommendedActions"`
	TaxonomyVersion      string    `json:"taxonomyVersion"`
	CreatedAt            time.Time `json:"createdAt"`
}

// AutomationConfig is the per-company automation switchboard.
type AutomationConfig struct {
	CompanyID            string   `json:"companyId"`
	AutoGeneratePlans    bool     `json:"autoGeneratePlans"`
	NotificationsEnabled bool     `json:"notificationsEnabled"`
	RecipientEmails      []string `json:"recipientEmails,omitempty"`
	RecipientPhones      []string `json:"recipientPhones,omitempty"`
}
