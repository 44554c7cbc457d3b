// internal/risk/actionplan/catalog.go
package actionplan

import (
	"strings"

	"psychosocial-workers/internal/models"
)

// factorActions maps contributing-factor labels to the extra action appended
// to a plan when that factor is present. Factors without an entry add nothing.
var factorActions = map[string]models.ActionItem{
	"sobrecarga de trabalho": {
		Title:           "Redimensionar a carga de trabalho da equipe",
		Description:     "Levantar demandas por pessoa e redistribuir tarefas acima da capacidade.",
		ResponsibleRole: "Gestor da área",
		EstimatedHours:  16,
		TimelineDays:    30,
	},
	"pressão por prazos": {
		Title:           "Renegociar prazos e prioridades",
		Description:     "Revisar o calendário de entregas com a liderança e os clientes internos.",
		ResponsibleRole: "Gestor da área",
		EstimatedHours:  8,
		TimelineDays:    21,
	},
	"condições físicas inadequadas": {
		Title:           "Adequar o posto de trabalho",
		Description:     "Executar as correções apontadas na análise ergonômica.",
		ResponsibleRole: "Engenharia de Segurança do Trabalho",
		EstimatedHours:  24,
		TimelineDays:    45,
	},
	"falta de recursos e equipamentos": {
		Title:           "Prover recursos e equipamentos necessários",
		Description:     "Inventariar faltas e adquirir os itens críticos para a execução do trabalho.",
		ResponsibleRole: "Administrativo",
		EstimatedHours:  12,
		TimelineDays:    30,
	},
	"conflitos interpessoais": {
		Title:           "Mediação de conflitos na equipe",
		Description:     "Sessões de mediação conduzidas por profissional qualificado.",
		ResponsibleRole: "Psicólogo organizacional",
		EstimatedHours:  12,
		TimelineDays:    30,
	},
	"falta de apoio da liderança": {
		Title:           "Capacitação de lideranças em gestão de pessoas",
		Description:     "Treinamento sobre escuta ativa, feedback e prevenção de riscos psicossociais.",
		ResponsibleRole: "Recursos Humanos",
		EstimatedHours:  20,
		TimelineDays:    60,
	},
	"falta de reconhecimento": {
		Title:           "Implantar programa de reconhecimento",
		Description:     "Definir critérios e rituais de reconhecimento de contribuições.",
		ResponsibleRole: "Recursos Humanos",
		EstimatedHours:  16,
		TimelineDays:    45,
	},
	"poucas oportunidades de crescimento": {
		Title:           "Criar trilhas de desenvolvimento",
		Description:     "Planos individuais de desenvolvimento e critérios claros de progressão.",
		ResponsibleRole: "Recursos Humanos",
		EstimatedHours:  24,
		TimelineDays:    90,
	},
	"desequilíbrio entre trabalho e vida pessoal": {
		Title:           "Flexibilizar jornada e escalas",
		Description:     "Avaliar horários flexíveis, banco de horas e revisão de escalas.",
		ResponsibleRole: "Recursos Humanos",
		EstimatedHours:  12,
		TimelineDays:    30,
	},
	"jornadas extensas": {
		Title:           "Controlar horas extras",
		Description:     "Monitorar e limitar horas extras recorrentes por colaborador.",
		ResponsibleRole: "Gestor da área",
		EstimatedHours:  8,
		TimelineDays:    14,
	},
}

// categoryMetrics are the category-specific success metrics.
var categoryMetrics = map[models.Category][]string{
	models.CategoryWorkOrganization:       {"Redução de horas extras em 30%", "Prazos renegociados sem atrasos críticos"},
	models.CategoryEnvironmentalCondition: {"100% das não conformidades ergonômicas corrigidas"},
	models.CategorySocioProfessional:      {"Redução de conflitos registrados em 50%"},
	models.CategoryRecognitionGrowth:      {"Todos os colaboradores com plano de desenvolvimento"},
	models.CategoryWorkLifeBalance:        {"Redução de jornadas acima de 10 horas em 50%"},
}

var genericMetrics = []string{
	"Conclusão de 100% das ações obrigatórias no prazo",
	"Nova avaliação psicossocial ao fim do plano",
}

// fallbackActions synthesizes the minimal plan used when no template matches.
func fallbackActions(level models.RiskLevel) []models.ActionItem {
	return []models.ActionItem{
		{
			Title:           "Avaliação detalhada",
			Description:     "Aprofundar o diagnóstico com entrevistas e grupos focais.",
			ResponsibleRole: "Psicólogo organizacional",
			EstimatedHours:  16,
			TimelineDays:    14,
			Mandatory:       true,
		},
		{
			Title:           "Medidas de controle imediatas",
			Description:     "Aplicar medidas provisórias para reduzir a exposição até o plano definitivo.",
			ResponsibleRole: "Gestor da área",
			EstimatedHours:  8,
			Dependencies:    []string{"Avaliação detalhada"},
			TimelineDays:    7,
			Mandatory:       level == models.RiskCritical,
		},
	}
}

// integratedActions are layered on top of the category actions when more
// than one category qualifies.
func integratedActions(categories []string) []models.ActionItem {
	return []models.ActionItem{
		{
			Title:           "Avaliação integrada dos riscos psicossociais",
			Description:     "Analisar em conjunto as categorias críticas: " + strings.Join(categories, ", ") + ".",
			ResponsibleRole: "Comitê de Saúde e Segurança",
			EstimatedHours:  16,
			TimelineDays:    7,
			Mandatory:       true,
		},
		{
			Title:           "Intervenção multifatorial coordenada",
			Description:     "Coordenar as ações das categorias para tratar fatores que se reforçam.",
			ResponsibleRole: "Comitê de Saúde e Segurança",
			EstimatedHours:  40,
			Dependencies:    []string{"Avaliação integrada dos riscos psicossociais"},
			TimelineDays:    30,
			Mandatory:       true,
		},
	}
}
