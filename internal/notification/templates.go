// internal/notification/templates.go
package notification

import (
	"fmt"
	"strings"

	"psychosocial-workers/internal/models"
)

type template struct {
	subject string
	body    string
}

var templates = map[string]template{
	models.TriggerHighRiskDetected: {
		subject: "Risco psicossocial {{riskLevel}} identificado",
		body:    "A avaliação {{assessmentResponseId}} apresentou risco {{riskLevel}} em: {{categories}}. Acesse a plataforma para acompanhar.",
	},
	models.TriggerActionPlanGenerated: {
		subject: "Plano de ação gerado: {{planTitle}}",
		body:    "Um plano de ação foi gerado para a avaliação {{assessmentResponseId}} (risco {{riskLevel}}). Categorias: {{categories}}.",
	},
}

var levelLabels = map[models.RiskLevel]string{
	models.RiskLow:      "baixo",
	models.RiskMedium:   "médio",
	models.RiskHigh:     "alto",
	models.RiskCritical: "crítico",
}

func levelLabel(level models.RiskLevel) string {
	if l, ok := levelLabels[level]; ok {
		return l
	}
	return string(level)
}

func joinCategories(categories []string) string {
	if len(categories) == 0 {
		return "-"
	}
	return strings.Join(categories, ", ")
}

// renderTemplate replaces {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
