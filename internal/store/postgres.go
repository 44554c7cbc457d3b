// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"

	"github.com/lib/pq"
)

// Postgres implements every read/write contract of the risk pipeline, the
// criteria provider, the template catalog and the durable job queue.
type Postgres struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgres(db *sql.DB, log logger.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres-store"}),
	}
}

// ==========================
// Assessments and employees
// ==========================

func (p *Postgres) LoadAssessment(ctx context.Context, id string) (*models.AssessmentResponse, error) {
	query := `
		SELECT id, employee_id, company_id, answers, total_score, completed_at
		FROM assessment_responses
		WHERE id = $1
	`
	var (
		a          models.AssessmentResponse
		rawAnswers []byte
		total      sql.NullFloat64
		completed  sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.EmployeeID, &a.CompanyID, &rawAnswers, &total, &completed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewAssessmentNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("select assessment_responses", err)
	}

	if len(rawAnswers) > 0 {
		if err := json.Unmarshal(rawAnswers, &a.Answers); err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("assessment %s answers: %v", id, err))
		}
	}
	if total.Valid {
		v := total.Float64
		a.TotalScore = &v
	}
	if completed.Valid {
		a.CompletedAt = completed.Time
	}
	return &a, nil
}

func (p *Postgres) LoadEmployee(ctx context.Context, id string) (*models.EmployeeContext, error) {
	query := `
		SELECT e.id, e.company_id, COALESCE(e.sector_id::text, ''), COALESCE(s.sector_type, ''),
		       COALESCE(e.role_id::text, ''), e.name
		FROM employees e
		LEFT JOIN sectors s ON s.id = e.sector_id
		WHERE e.id = $1
	`
	var e models.EmployeeContext
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.CompanyID, &e.SectorID, &e.SectorType, &e.RoleID, &e.Name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEmployeeNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("select employees", err)
	}
	return &e, nil
}

// AutomationConfig returns an all-disabled config when the company has no row.
func (p *Postgres) AutomationConfig(ctx context.Context, companyID string) (*models.AutomationConfig, error) {
	query := `
		SELECT auto_generate_plans, notifications_enabled, recipient_emails, recipient_phones
		FROM automation_configs
		WHERE company_id = $1
	`
	cfg := &models.AutomationConfig{CompanyID: companyID}
	err := p.db.QueryRowContext(ctx, query, companyID).Scan(
		&cfg.AutoGeneratePlans, &cfg.NotificationsEnabled,
		pq.Array(&cfg.RecipientEmails), pq.Array(&cfg.RecipientPhones),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("select automation_configs", err)
	}
	return cfg, nil
}

// ==========================
// Criteria and templates
// ==========================

func (p *Postgres) CategoryWeights(ctx context.Context, companyID string) ([]models.CategoryWeight, error) {
	query := `
		SELECT category, weight, critical_threshold, high_threshold, medium_threshold
		FROM category_weights
		WHERE company_id = $1
	`
	rows, err := p.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, apperrors.NewStoreError("select category_weights", err)
	}
	defer rows.Close()

	var out []models.CategoryWeight
	for rows.Next() {
		w := models.CategoryWeight{CompanyID: companyID}
		if err := rows.Scan(&w.Category, &w.Weight, &w.CriticalThreshold, &w.HighThreshold, &w.MediumThreshold); err != nil {
			return nil, apperrors.NewStoreError("scan category_weights", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("iterate category_weights", err)
	}
	return out, nil
}

// SectorProfile returns nil, nil when the sector has no profile.
func (p *Postgres) SectorProfile(ctx context.Context, companyID, sectorID string) (*models.SectorRiskProfile, error) {
	query := `
		SELECT risk_multipliers, COALESCE(baseline_scores, '{}'::jsonb)
		FROM sector_risk_profiles
		WHERE company_id = $1 AND sector_id = $2
	`
	var multipliers, baselines []byte
	err := p.db.QueryRowContext(ctx, query, companyID, sectorID).Scan(&multipliers, &baselines)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("select sector_risk_profiles", err)
	}

	profile := &models.SectorRiskProfile{CompanyID: companyID, SectorID: sectorID}
	if len(multipliers) > 0 {
		if err := json.Unmarshal(multipliers, &profile.Multipliers); err != nil {
			return nil, apperrors.NewStoreError("decode risk_multipliers", err)
		}
	}
	if len(baselines) > 0 {
		if err := json.Unmarshal(baselines, &profile.Baselines); err != nil {
			return nil, apperrors.NewStoreError("decode baseline_scores", err)
		}
	}
	return profile, nil
}

// Templates returns active templates for the category and level that are
// generic or match the sector type, sector-specific rows first.
func (p *Postgres) Templates(ctx context.Context, category models.Category, level models.RiskLevel, sectorType string) ([]models.ActionPlanTemplate, error) {
	query := `
		SELECT id, category, risk_level, COALESCE(sector_type, ''), name, COALESCE(description, ''),
		       actions, timeline_days, priority, required_resources, success_metrics
		FROM action_plan_templates
		WHERE category = $1 AND risk_level = $2 AND is_active = true
		  AND (sector_type IS NULL OR sector_type = $3)
		ORDER BY sector_type NULLS LAST, name
	`
	rows, err := p.db.QueryContext(ctx, query, category, level, sectorType)
	if err != nil {
		return nil, apperrors.NewStoreError("select action_plan_templates", err)
	}
	defer rows.Close()

	var out []models.ActionPlanTemplate
	for rows.Next() {
		var (
			t       models.ActionPlanTemplate
			actions []byte
		)
		if err := rows.Scan(
			&t.ID, &t.Category, &t.RiskLevel, &t.SectorType, &t.Name, &t.Description,
			&actions, &t.TimelineDays, &t.Priority,
			pq.Array(&t.RequiredResources), pq.Array(&t.SuccessMetrics),
		); err != nil {
			return nil, apperrors.NewStoreError("scan action_plan_templates", err)
		}
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &t.Actions); err != nil {
				p.logger.Warn("skipping template with malformed actions", map[string]interface{}{
					"templateId": t.ID,
					"error":      err,
				})
				continue
			}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("iterate action_plan_templates", err)
	}
	return out, nil
}

// ==========================
// Analyses, logs and notifications
// ==========================

// InsertRiskAnalysis is idempotent per (assessment, category, job).
func (p *Postgres) InsertRiskAnalysis(ctx context.Context, a *models.RiskAnalysis) (bool, error) {
	query := `
		INSERT INTO risk_analyses (
			id, assessment_response_id, company_id, employee_id, sector_id, processing_job_id,
			category, raw_score, weighted_score, adjusted_score, risk_level, confidence,
			contributing_factors, recommended_actions, taxonomy_version
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (assessment_response_id, category, processing_job_id) DO NOTHING
		RETURNING created_at
	`
	err := p.db.QueryRowContext(ctx, query,
		a.ID, a.AssessmentResponseID, a.CompanyID, a.EmployeeID, a.SectorID, a.ProcessingJobID,
		a.Category, a.RawScore, a.WeightedScore, a.AdjustedScore, a.RiskLevel, a.Confidence,
		pq.Array(a.ContributingFactors), pq.Array(a.RecommendedActions), a.TaxonomyVersion,
	).Scan(&a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStoreError("insert risk_analyses", err)
	}
	return true, nil
}

func (p *Postgres) WriteProcessingLog(ctx context.Context, entry models.ProcessingLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return apperrors.NewStoreError("encode processing_logs details", err)
	}
	query := `
		INSERT INTO processing_logs (assessment_response_id, processing_job_id, stage, status, details)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
	`
	if _, err := p.db.ExecContext(ctx, query,
		entry.AssessmentResponseID, entry.ProcessingJobID, entry.Stage, entry.Status, details,
	); err != nil {
		return apperrors.NewStoreError("insert processing_logs", err)
	}
	return nil
}

func (p *Postgres) CreateNotification(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return apperrors.NewStoreError("encode notifications payload", err)
	}
	query := `
		INSERT INTO notifications (
			id, company_id, assessment_response_id, trigger_event, channels, recipients,
			status, payload, sent_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := p.db.ExecContext(ctx, query,
		n.ID, n.CompanyID, n.AssessmentResponseID, n.TriggerEvent,
		pq.Array(n.Channels), pq.Array(n.Recipients), n.Status, payload, n.SentAt, n.CreatedAt,
	); err != nil {
		return apperrors.NewStoreError("insert notifications", err)
	}
	return nil
}

// Ping is used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return apperrors.NewStoreError("ping", err)
	}
	return nil
}
