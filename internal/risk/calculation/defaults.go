// internal/risk/calculation/defaults.go
package calculation

import "psychosocial-workers/internal/models"

// defaultActions is the fallback when the catalog has no template for a
// category and level.
var defaultActions = map[models.Category]map[models.RiskLevel][]string{
	models.CategoryWorkOrganization: {
		models.RiskCritical: {"Redistribuir imediatamente a carga de trabalho", "Revisar metas e prazos com a liderança", "Implantar pausas obrigatórias"},
		models.RiskHigh:     {"Revisar distribuição de tarefas", "Ajustar prazos e prioridades"},
		models.RiskMedium:   {"Monitorar carga de trabalho mensalmente"},
		models.RiskLow:      {"Manter práticas atuais de organização"},
	},
	models.CategoryEnvironmentalCondition: {
		models.RiskCritical: {"Inspeção ergonômica imediata", "Corrigir condições físicas críticas", "Fornecer equipamentos adequados"},
		models.RiskHigh:     {"Avaliação ergonômica do posto de trabalho", "Plano de adequação do ambiente"},
		models.RiskMedium:   {"Verificação periódica das condições ambientais"},
		models.RiskLow:      {"Manter inspeções de rotina"},
	},
	models.CategorySocioProfessional: {
		models.RiskCritical: {"Mediação de conflitos com apoio especializado", "Canal de escuta confidencial", "Capacitação urgente da liderança"},
		models.RiskHigh:     {"Programa de desenvolvimento de liderança", "Rodas de conversa da equipe"},
		models.RiskMedium:   {"Fortalecer rituais de comunicação"},
		models.RiskLow:      {"Manter práticas de integração"},
	},
	models.CategoryRecognitionGrowth: {
		models.RiskCritical: {"Revisão imediata da política de reconhecimento", "Plano individual de desenvolvimento", "Revisão de cargos e salários"},
		models.RiskHigh:     {"Programa de reconhecimento", "Trilhas de desenvolvimento profissional"},
		models.RiskMedium:   {"Feedback estruturado periódico"},
		models.RiskLow:      {"Manter ciclos de feedback"},
	},
	models.CategoryWorkLifeBalance: {
		models.RiskCritical: {"Controle rigoroso de jornada e horas extras", "Política de desconexão", "Apoio psicológico ao trabalhador"},
		models.RiskHigh:     {"Revisar jornadas e escalas", "Flexibilização de horários"},
		models.RiskMedium:   {"Campanha sobre equilíbrio entre trabalho e vida pessoal"},
		models.RiskLow:      {"Manter políticas de bem-estar"},
	},
}

// DefaultActions returns the fixed fallback action titles.
func DefaultActions(cat models.Category, level models.RiskLevel) []string {
	if byLevel, ok := defaultActions[cat]; ok {
		if actions, ok := byLevel[level]; ok {
			return append([]string(nil), actions...)
		}
	}
	return []string{"Acompanhar indicadores psicossociais"}
}
