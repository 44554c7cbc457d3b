// internal/risk/criteria/thresholds.go
package criteria

import (
	"context"
	"sort"

	"psychosocial-workers/internal/models"
)

// Thresholds are the critical/high/medium cut points on the 0..100 scale.
type Thresholds struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
}

// DefaultThresholds apply when a company has no row for a category.
var DefaultThresholds = Thresholds{Critical: 80, High: 60, Medium: 40}

const DefaultWeight = 1.0

// Normalize clamps the cut points into [0,100] and sorts them descending so
// the four bands always partition the scale.
func (t Thresholds) Normalize() Thresholds {
	cuts := []float64{Clamp(t.Critical), Clamp(t.High), Clamp(t.Medium)}
	sort.Sort(sort.Reverse(sort.Float64Slice(cuts)))
	return Thresholds{Critical: cuts[0], High: cuts[1], Medium: cuts[2]}
}

// Classify maps a score to a risk level. Cut points are compared in
// descending order and the first one reached wins.
func Classify(score float64, t Thresholds) models.RiskLevel {
	n := t.Normalize()
	switch {
	case score >= n.Critical:
		return models.RiskCritical
	case score >= n.High:
		return models.RiskHigh
	case score >= n.Medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Clamp bounds a score to [0,100].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CategoryCriteria is the effective weight and thresholds for one category.
type CategoryCriteria struct {
	Weight     float64
	Thresholds Thresholds
}

// CompanyCriteria holds resolved criteria for every category plus the
// headline thresholds.
type CompanyCriteria struct {
	categories map[models.Category]CategoryCriteria
	general    Thresholds
}

// FromWeights resolves company rows, filling defaults for missing categories
// and non-positive weights.
func FromWeights(rows []models.CategoryWeight) CompanyCriteria {
	cc := CompanyCriteria{
		categories: make(map[models.Category]CategoryCriteria, len(rows)),
		general:    DefaultThresholds,
	}
	for _, row := range rows {
		t := Thresholds{Critical: row.CriticalThreshold, High: row.HighThreshold, Medium: row.MediumThreshold}
		if t == (Thresholds{}) {
			t = DefaultThresholds
		}
		if row.Category == models.CategoryGeneral {
			cc.general = t.Normalize()
			continue
		}
		weight := row.Weight
		if weight <= 0 {
			weight = DefaultWeight
		}
		cc.categories[row.Category] = CategoryCriteria{Weight: weight, Thresholds: t.Normalize()}
	}
	return cc
}

// For returns the criteria of a category, defaults when absent.
func (c CompanyCriteria) For(cat models.Category) CategoryCriteria {
	if cr, ok := c.categories[cat]; ok {
		return cr
	}
	return CategoryCriteria{Weight: DefaultWeight, Thresholds: DefaultThresholds}
}

// General returns the thresholds applied to the headline score.
func (c CompanyCriteria) General() Thresholds {
	if c.general == (Thresholds{}) {
		return DefaultThresholds
	}
	return c.general
}

// Provider supplies the read-only reference rows. Missing rows are not
// errors: CategoryWeights may return an empty slice and SectorProfile nil.
type Provider interface {
	CategoryWeights(ctx context.Context, companyID string) ([]models.CategoryWeight, error)
	SectorProfile(ctx context.Context, companyID, sectorID string) (*models.SectorRiskProfile, error)
}

// TemplateCatalog returns templates for a category and level. Generic
// templates (empty sector type) are included alongside sector matches.
type TemplateCatalog interface {
	Templates(ctx context.Context, category models.Category, level models.RiskLevel, sectorType string) ([]models.ActionPlanTemplate, error)
}

// Multiplier returns the sector multiplier of a category, 1.0 when absent.
func Multiplier(profile *models.SectorRiskProfile, cat models.Category) float64 {
	if profile == nil || profile.Multipliers == nil {
		return 1.0
	}
	if m, ok := profile.Multipliers[cat]; ok && m > 0 {
		return m
	}
	return 1.0
}
