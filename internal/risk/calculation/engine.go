// internal/risk/calculation/engine.go
package calculation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/common/validation"
	"psychosocial-workers/internal/models"
	"psychosocial-workers/internal/risk/criteria"
)

// Input is one assessment response plus its employee linkage.
type Input struct {
	AssessmentID string
	CompanyID    string
	SectorID     string
	SectorType   string
	RoleID       string
	Answers      map[string]float64
	TotalScore   *float64
}

// Result is the calculation for one category.
type Result struct {
	Category            models.Category  `json:"category"`
	RawScore            float64          `json:"rawScore"`
	WeightedScore       float64          `json:"weightedScore"`
	AdjustedScore       float64          `json:"adjustedScore"`
	RiskLevel           models.RiskLevel `json:"riskLevel"`
	Confidence          float64          `json:"confidence"`
	Mean                float64          `json:"mean"`
	AnswerCount         int              `json:"answerCount"`
	ContributingFactors []string         `json:"contributingFactors"`
	RecommendedActions  []string         `json:"recommendedActions"`
}

// Evaluation is the full output for one assessment.
type Evaluation struct {
	Categories    []Result         `json:"categories"`
	HeadlineScore float64          `json:"headlineScore"`
	HeadlineLevel models.RiskLevel `json:"headlineLevel"`
}

// HighestLevel returns the most severe category level.
func (e Evaluation) HighestLevel() models.RiskLevel {
	levels := make([]models.RiskLevel, len(e.Categories))
	for i, r := range e.Categories {
		levels[i] = r.RiskLevel
	}
	return models.MaxRiskLevel(levels...)
}

// Qualifying returns the categories at alto or critico.
func (e Evaluation) Qualifying() []Result {
	var out []Result
	for _, r := range e.Categories {
		if r.RiskLevel.IsHighOrAbove() {
			out = append(out, r)
		}
	}
	return out
}

// Engine turns raw answers into per-category risk results. It performs no
// writes; criteria and templates are read through the injected interfaces.
type Engine struct {
	criteria criteria.Provider
	catalog  criteria.TemplateCatalog
	logger   logger.Logger
}

func NewEngine(provider criteria.Provider, catalog criteria.TemplateCatalog, log logger.Logger) *Engine {
	return &Engine{
		criteria: provider,
		catalog:  catalog,
		logger:   log.WithFields(map[string]interface{}{"component": "calculation-engine"}),
	}
}

// Calculate always returns one result per category in taxonomy order.
func (e *Engine) Calculate(ctx context.Context, in Input) (*Evaluation, error) {
	if err := validation.ValidateAnswers(in.Answers); err != nil {
		return nil, fmt.Errorf("assessment %s: %w", in.AssessmentID, err)
	}

	weights, err := e.criteria.CategoryWeights(ctx, in.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load category weights: %w", err)
	}
	cc := criteria.FromWeights(weights)

	var profile *models.SectorRiskProfile
	if in.SectorID != "" {
		profile, err = e.criteria.SectorProfile(ctx, in.CompanyID, in.SectorID)
		if err != nil {
			return nil, fmt.Errorf("load sector profile: %w", err)
		}
	}

	parts := criteria.Partition(in.Answers)
	results := make([]Result, 0, len(parts))
	for _, cat := range criteria.Categories() {
		r := Score(cat, parts[cat], cc.For(cat), criteria.Multiplier(profile, cat))

		actions, err := e.recommendedActions(ctx, cat, r.RiskLevel, in.SectorType)
		if err != nil {
			return nil, err
		}
		r.RecommendedActions = actions
		results = append(results, r)
	}

	headline := HeadlineScore(in.TotalScore, results)
	eval := &Evaluation{
		Categories:    results,
		HeadlineScore: headline,
		HeadlineLevel: criteria.Classify(headline, cc.General()),
	}

	e.logger.Debug("risk calculated", map[string]interface{}{
		"assessmentResponseId": in.AssessmentID,
		"headlineScore":        eval.HeadlineScore,
		"headlineLevel":        eval.HeadlineLevel,
		"highestCategory":      eval.HighestLevel(),
	})
	return eval, nil
}

func (e *Engine) recommendedActions(ctx context.Context, cat models.Category, level models.RiskLevel, sectorType string) ([]string, error) {
	if e.catalog != nil {
		templates, err := e.catalog.Templates(ctx, cat, level, sectorType)
		if err != nil {
			return nil, fmt.Errorf("load templates for %s/%s: %w", cat, level, err)
		}
		if tmpl := BestTemplate(templates, sectorType); tmpl != nil && len(tmpl.Actions) > 0 {
			titles := make([]string, len(tmpl.Actions))
			for i, a := range tmpl.Actions {
				titles[i] = a.Title
			}
			return titles, nil
		}
	}
	return DefaultActions(cat, level), nil
}

// Score computes one category result from its answer values. Pure.
func Score(cat models.Category, values []float64, cr criteria.CategoryCriteria, multiplier float64) Result {
	raw := RawScore(values)
	weighted := criteria.Clamp(raw * cr.Weight)
	adjusted := round2(criteria.Clamp(weighted * multiplier))
	mean := Mean(values)

	r := Result{
		Category:            cat,
		RawScore:            round2(raw),
		WeightedScore:       round2(weighted),
		AdjustedScore:       adjusted,
		RiskLevel:           criteria.Classify(adjusted, cr.Thresholds),
		Confidence:          Confidence(values),
		Mean:                round2(mean),
		AnswerCount:         len(values),
		ContributingFactors: []string{},
	}
	if len(values) > 0 && mean >= criteria.FactorGate {
		r.ContributingFactors = criteria.Factors(cat)
	}
	return r
}

// Mean of values, 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// RawScore rescales the 1..5 mean to 0..100. Empty input yields 0.
func RawScore(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	scaled := (Mean(values) - criteria.MinAnswer) / (criteria.MaxAnswer - criteria.MinAnswer) * 100
	return criteria.Clamp(scaled)
}

// Confidence averages completeness against the expected question count and
// a consistency term derived from response variance, scaled to 0..100.
func Confidence(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	completeness := math.Min(1, float64(n)/float64(criteria.ExpectedQuestionsPerCategory))

	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)

	// Max variance on a 1..5 scale is 4.
	consistency := math.Max(0, 1-variance/4)

	return round2((completeness + consistency) / 2 * 100)
}

// HeadlineScore prefers the stored total, else the mean adjusted score.
func HeadlineScore(total *float64, results []Result) float64 {
	if total != nil {
		return round2(criteria.Clamp(*total))
	}
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.AdjustedScore
	}
	return round2(sum / float64(len(results)))
}

// BestTemplate prefers a sector-specific match over a generic one.
func BestTemplate(templates []models.ActionPlanTemplate, sectorType string) *models.ActionPlanTemplate {
	var generic *models.ActionPlanTemplate
	for i := range templates {
		t := &templates[i]
		if sectorType != "" && t.SectorType == sectorType {
			return t
		}
		if t.SectorType == "" && generic == nil {
			generic = t
		}
	}
	return generic
}

// TopCategory returns the result with the highest adjusted score.
func TopCategory(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AdjustedScore > sorted[j].AdjustedScore
	})
	return sorted[0], true
}

// ToAnalyses converts results into persistable rows.
func ToAnalyses(in Input, employeeID, jobID string, results []Result) []models.RiskAnalysis {
	out := make([]models.RiskAnalysis, 0, len(results))
	for _, r := range results {
		out = append(out, models.RiskAnalysis{
			AssessmentResponseID: in.AssessmentID,
			CompanyID:            in.CompanyID,
			EmployeeID:           employeeID,
			SectorID:             in.SectorID,
			ProcessingJobID:      jobID,
			Category:             r.Category,
			RawScore:             r.RawScore,
			WeightedScore:        r.WeightedScore,
			AdjustedScore:        r.AdjustedScore,
			RiskLevel:            r.RiskLevel,
			Confidence:           r.Confidence,
			ContributingFactors:  r.ContributingFactors,
			RecommendedActions:   r.RecommendedActions,
			TaxonomyVersion:      criteria.TaxonomyVersion,
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
