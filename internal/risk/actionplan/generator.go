// internal/risk/actionplan/generator.go
package actionplan

import (
	"context"
	"fmt"
	"math"
	"sort"

	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"
	"psychosocial-workers/internal/risk/calculation"
	"psychosocial-workers/internal/risk/criteria"
)

const (
	maxActionsCritical = 10
	maxActionsDefault  = 6

	// Plans built from results at or below this confidence get more hours.
	lowConfidenceThreshold = 80.0
	lowConfidenceFactor    = 1.2
)

// Context is the organisational context of the assessment.
type Context struct {
	CompanyID  string
	SectorID   string
	SectorType string
	RoleID     string
}

// Generator builds action plans from calculation results. It never persists
// or notifies.
type Generator struct {
	catalog criteria.TemplateCatalog
	logger  logger.Logger
}

func NewGenerator(catalog criteria.TemplateCatalog, log logger.Logger) *Generator {
	return &Generator{
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"component": "action-plan-generator"}),
	}
}

// Generate returns one plan per alto/critico category, plus one integrated
// plan when more than one category qualifies.
func (g *Generator) Generate(ctx context.Context, pc Context, results []calculation.Result) ([]models.GeneratedActionPlan, error) {
	var qualifying []calculation.Result
	for _, r := range results {
		if r.RiskLevel.IsHighOrAbove() {
			qualifying = append(qualifying, r)
		}
	}
	if len(qualifying) == 0 {
		return nil, nil
	}

	plans := make([]models.GeneratedActionPlan, 0, len(qualifying)+1)
	for _, r := range qualifying {
		plan, err := g.CategoryPlan(ctx, pc, r)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	if len(plans) > 1 {
		plans = append(plans, Integrated(plans))
	}

	g.logger.Debug("action plans built", map[string]interface{}{
		"companyId":  pc.CompanyID,
		"categories": len(qualifying),
		"plans":      len(plans),
	})
	return plans, nil
}

// CategoryPlan builds the plan of a single category from the best template,
// or from the built-in fallback when the catalog has none.
func (g *Generator) CategoryPlan(ctx context.Context, pc Context, r calculation.Result) (models.GeneratedActionPlan, error) {
	var tmpl *models.ActionPlanTemplate
	if g.catalog != nil {
		templates, err := g.catalog.Templates(ctx, r.Category, r.RiskLevel, pc.SectorType)
		if err != nil {
			return models.GeneratedActionPlan{}, fmt.Errorf("load templates for %s/%s: %w", r.Category, r.RiskLevel, err)
		}
		tmpl = calculation.BestTemplate(templates, pc.SectorType)
	}

	label := criteria.Label(r.Category)
	plan := models.GeneratedActionPlan{
		Title:                   fmt.Sprintf("Plano de ação: %s", label),
		Description:             fmt.Sprintf("Plano gerado para risco %s em %s (score %.1f).", r.RiskLevel, label, r.AdjustedScore),
		Category:                r.Category,
		RiskLevel:               r.RiskLevel,
		Priority:                r.RiskLevel.Priority(),
		MonitoringFrequencyDays: MonitoringFrequency(r.RiskLevel),
	}

	var base []models.ActionItem
	var templateMetrics []string
	if tmpl != nil && len(tmpl.Actions) > 0 {
		base = tmpl.Actions
		plan.TemplateID = tmpl.ID
		if tmpl.Name != "" {
			plan.Title = tmpl.Name
		}
		if tmpl.Description != "" {
			plan.Description = tmpl.Description
		}
		if tmpl.Priority.Rank() > plan.Priority.Rank() {
			plan.Priority = tmpl.Priority
		}
		plan.RequiredResources = append([]string(nil), tmpl.RequiredResources...)
		templateMetrics = tmpl.SuccessMetrics
	} else {
		base = fallbackActions(r.RiskLevel)
	}

	plan.Actions = Customize(base, r.ContributingFactors, r.RiskLevel)
	plan.TotalEstimatedHours, plan.TotalEstimatedDays = Timeline(plan.Actions, r.RiskLevel, r.Confidence)
	plan.SuccessMetrics = SuccessMetrics(r, templateMetrics)
	return plan, nil
}

// Customize appends one action per mapped contributing factor, orders
// mandatory actions first then by ascending timeline, and caps the list.
func Customize(base []models.ActionItem, factors []string, level models.RiskLevel) []models.ActionItem {
	actions := make([]models.ActionItem, 0, len(base)+len(factors))
	seen := make(map[string]bool, len(base)+len(factors))
	for _, a := range base {
		actions = append(actions, copyItem(a))
		seen[a.Title] = true
	}
	for _, f := range factors {
		extra, ok := factorActions[f]
		if !ok || seen[extra.Title] {
			continue
		}
		actions = append(actions, copyItem(extra))
		seen[extra.Title] = true
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Mandatory != actions[j].Mandatory {
			return actions[i].Mandatory
		}
		return actions[i].TimelineDays < actions[j].TimelineDays
	})

	limit := maxActionsDefault
	if level == models.RiskCritical {
		limit = maxActionsCritical
	}
	if len(actions) > limit {
		actions = actions[:limit]
	}
	return actions
}

// Timeline returns total hours and days. Hours are the sum of action hours;
// days are the longest action timeline scaled by urgency. Both grow by 20%
// when confidence is at or below 80%.
func Timeline(actions []models.ActionItem, level models.RiskLevel, confidence float64) (int, int) {
	confidenceFactor := 1.0
	if confidence <= lowConfidenceThreshold {
		confidenceFactor = lowConfidenceFactor
	}

	hours := 0.0
	longest := 0
	for _, a := range actions {
		hours += a.EstimatedHours
		if a.TimelineDays > longest {
			longest = a.TimelineDays
		}
	}

	urgency := 1.0
	switch level {
	case models.RiskCritical:
		urgency = 0.5
	case models.RiskHigh:
		urgency = 0.7
	}

	totalHours := int(math.Ceil(round2(hours * confidenceFactor)))
	totalDays := int(math.Ceil(round2(float64(longest) * urgency * confidenceFactor)))
	return totalHours, totalDays
}

// MonitoringFrequency is the number of days between plan reviews.
func MonitoringFrequency(level models.RiskLevel) int {
	switch level {
	case models.RiskCritical:
		return 7
	case models.RiskHigh:
		return 14
	case models.RiskMedium:
		return 30
	default:
		return 90
	}
}

// SuccessMetrics combines the score-reduction target, category metrics,
// template metrics and the generic ones, without duplicates.
func SuccessMetrics(r calculation.Result, templateMetrics []string) []string {
	target := fmt.Sprintf("Reduzir o score de %s para abaixo de %.1f (70%% do atual)", criteria.Label(r.Category), r.AdjustedScore*0.7)

	var out []string
	seen := map[string]bool{}
	add := func(ms ...string) {
		for _, m := range ms {
			if m != "" && !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	add(target)
	add(categoryMetrics[r.Category]...)
	add(templateMetrics...)
	add(genericMetrics...)
	return out
}

// Integrated layers a cross-category assessment and a multi-factor
// intervention over every category plan's actions.
func Integrated(plans []models.GeneratedActionPlan) models.GeneratedActionPlan {
	var labels []string
	levels := make([]models.RiskLevel, 0, len(plans))
	for _, p := range plans {
		if p.Integrated {
			continue
		}
		labels = append(labels, criteria.Label(p.Category))
		levels = append(levels, p.RiskLevel)
	}

	plan := models.GeneratedActionPlan{
		Title:                   "Plano integrado de gestão de riscos psicossociais",
		Description:             fmt.Sprintf("Plano integrado para %d categorias em risco elevado.", len(labels)),
		Integrated:              true,
		RiskLevel:               models.MaxRiskLevel(levels...),
		Priority:                models.PriorityCritical,
		MonitoringFrequencyDays: 7,
	}

	seenAction := map[string]bool{}
	seenMetric := map[string]bool{}
	seenResource := map[string]bool{}
	hours := 0
	days := 0

	for _, a := range integratedActions(labels) {
		plan.Actions = append(plan.Actions, a)
		seenAction[a.Title] = true
		hours += int(math.Ceil(a.EstimatedHours))
		if a.TimelineDays > days {
			days = a.TimelineDays
		}
	}

	for _, p := range plans {
		if p.Integrated {
			continue
		}
		for _, a := range p.Actions {
			if seenAction[a.Title] {
				continue
			}
			seenAction[a.Title] = true
			plan.Actions = append(plan.Actions, copyItem(a))
		}
		for _, m := range p.SuccessMetrics {
			if !seenMetric[m] {
				seenMetric[m] = true
				plan.SuccessMetrics = append(plan.SuccessMetrics, m)
			}
		}
		for _, r := range p.RequiredResources {
			if !seenResource[r] {
				seenResource[r] = true
				plan.RequiredResources = append(plan.RequiredResources, r)
			}
		}
		hours += p.TotalEstimatedHours
		if p.TotalEstimatedDays > days {
			days = p.TotalEstimatedDays
		}
	}

	plan.TotalEstimatedHours = hours
	plan.TotalEstimatedDays = days
	return plan
}

// Primary picks the plan persisted for an assessment: the integrated plan
// when present, otherwise the first category plan.
func Primary(plans []models.GeneratedActionPlan) (models.GeneratedActionPlan, bool) {
	if len(plans) == 0 {
		return models.GeneratedActionPlan{}, false
	}
	for _, p := range plans {
		if p.Integrated {
			return p, true
		}
	}
	return plans[0], true
}

func copyItem(a models.ActionItem) models.ActionItem {
	a.Dependencies = append([]string(nil), a.Dependencies...)
	return a
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
