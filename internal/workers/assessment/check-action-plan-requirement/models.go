// internal/workers/assessment/check-action-plan-requirement/models.go
package checkactionplanrequirement

type Input struct {
	AssessmentResponseID string `json:"assessmentResponseId"`
}

// Output is display-only; nothing downstream should gate on it.
type Output struct {
	Requires    bool   `json:"requires"`
	RiskLevel   string `json:"riskLevel"`
	HasExisting bool   `json:"hasExisting"`
}
