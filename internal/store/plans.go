// internal/store/plans.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/models"

	"github.com/lib/pq"
)

// FindActionPlan returns nil, nil when the assessment has no plan.
func (p *Postgres) FindActionPlan(ctx context.Context, assessmentID string) (*models.ActionPlan, error) {
	query := `
		SELECT id, company_id, assessment_response_id, COALESCE(processing_job_id::text, ''),
		       trigger_mode, status, plan, created_at
		FROM action_plans
		WHERE assessment_response_id = $1
	`
	var (
		plan models.ActionPlan
		body []byte
	)
	err := p.db.QueryRowContext(ctx, query, assessmentID).Scan(
		&plan.ID, &plan.CompanyID, &plan.AssessmentResponseID, &plan.ProcessingJobID,
		&plan.Mode, &plan.Status, &body, &plan.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("select action_plans", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &plan.Plan); err != nil {
			return nil, apperrors.NewStoreError("decode action_plans plan", err)
		}
	}
	return &plan, nil
}

// CreateActionPlan writes the plan and its ordered items in one transaction.
// The unique index on assessment_response_id makes a concurrent second insert
// a no-op; the loser gets the winner's id and created=false.
func (p *Postgres) CreateActionPlan(ctx context.Context, plan *models.ActionPlan) (string, bool, error) {
	body, err := json.Marshal(plan.Plan)
	if err != nil {
		return "", false, apperrors.NewStoreError("encode action plan", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, apperrors.NewStoreError("begin action plan tx", err)
	}
	defer tx.Rollback()

	insertPlan := `
		INSERT INTO action_plans (
			id, company_id, assessment_response_id, processing_job_id, trigger_mode, status,
			title, description, category, integrated, template_id, risk_level, priority,
			total_estimated_days, total_estimated_hours, monitoring_frequency_days,
			success_metrics, required_resources, plan
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), $10, NULLIF($11, ''),
			$12, $13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (assessment_response_id) DO NOTHING
		RETURNING id, created_at
	`
	g := plan.Plan
	err = tx.QueryRowContext(ctx, insertPlan,
		plan.ID, plan.CompanyID, plan.AssessmentResponseID, plan.ProcessingJobID, plan.Mode, plan.Status,
		g.Title, g.Description, string(g.Category), g.Integrated, g.TemplateID, g.RiskLevel, g.Priority,
		g.TotalEstimatedDays, g.TotalEstimatedHours, g.MonitoringFrequencyDays,
		pq.Array(g.SuccessMetrics), pq.Array(g.RequiredResources), body,
	).Scan(&plan.ID, &plan.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		existing, ferr := p.FindActionPlan(ctx, plan.AssessmentResponseID)
		if ferr != nil {
			return "", false, ferr
		}
		if existing == nil {
			return "", false, apperrors.NewStoreError("insert action_plans", errors.New("conflicting plan vanished"))
		}
		return existing.ID, false, nil
	}
	if err != nil {
		return "", false, apperrors.NewStoreError("insert action_plans", err)
	}

	insertItem := `
		INSERT INTO action_plan_items (
			action_plan_id, position, title, description, responsible_role,
			estimated_hours, timeline_days, mandatory, dependencies
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i, a := range g.Actions {
		if _, err := tx.ExecContext(ctx, insertItem,
			plan.ID, i+1, a.Title, a.Description, a.ResponsibleRole,
			a.EstimatedHours, a.TimelineDays, a.Mandatory, pq.Array(a.Dependencies),
		); err != nil {
			return "", false, apperrors.NewStoreError("insert action_plan_items", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, apperrors.NewStoreError("commit action plan tx", err)
	}
	return plan.ID, true, nil
}
