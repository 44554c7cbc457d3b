// internal/store/schema.go
package store

import (
	"context"

	apperrors "psychosocial-workers/internal/common/errors"
)

// schema holds the tables this service owns plus the indexes that back its
// invariants. Reference tables (assessment_responses, employees, sectors,
// category_weights, sector_risk_profiles, action_plan_templates,
// automation_configs) are owned by the assessment platform and only read.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS risk_analyses (
		id UUID PRIMARY KEY,
		assessment_response_id UUID NOT NULL,
		company_id UUID NOT NULL,
		employee_id UUID NOT NULL,
		sector_id UUID,
		processing_job_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		raw_score NUMERIC(5,2) NOT NULL,
		weighted_score NUMERIC(5,2) NOT NULL,
		adjusted_score NUMERIC(5,2) NOT NULL,
		risk_level TEXT NOT NULL,
		confidence NUMERIC(5,2) NOT NULL,
		contributing_factors TEXT[] NOT NULL DEFAULT '{}',
		recommended_actions TEXT[] NOT NULL DEFAULT '{}',
		taxonomy_version TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS risk_analyses_job_category_uq
		ON risk_analyses (assessment_response_id, category, processing_job_id)`,

	`CREATE TABLE IF NOT EXISTS action_plans (
		id UUID PRIMARY KEY,
		company_id UUID NOT NULL,
		assessment_response_id UUID NOT NULL,
		processing_job_id UUID,
		trigger_mode TEXT NOT NULL,
		status TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		category TEXT,
		integrated BOOLEAN NOT NULL DEFAULT false,
		template_id UUID,
		risk_level TEXT NOT NULL,
		priority TEXT NOT NULL,
		total_estimated_days INTEGER NOT NULL,
		total_estimated_hours INTEGER NOT NULL,
		monitoring_frequency_days INTEGER NOT NULL,
		success_metrics TEXT[] NOT NULL DEFAULT '{}',
		required_resources TEXT[] NOT NULL DEFAULT '{}',
		plan JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS action_plans_assessment_uq
		ON action_plans (assessment_response_id)`,

	`CREATE TABLE IF NOT EXISTS action_plan_items (
		id BIGSERIAL PRIMARY KEY,
		action_plan_id UUID NOT NULL REFERENCES action_plans(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		responsible_role TEXT,
		estimated_hours NUMERIC(8,2) NOT NULL DEFAULT 0,
		timeline_days INTEGER NOT NULL DEFAULT 0,
		mandatory BOOLEAN NOT NULL DEFAULT false,
		dependencies TEXT[] NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS processing_jobs (
		id UUID PRIMARY KEY,
		assessment_response_id UUID NOT NULL,
		company_id UUID,
		status TEXT NOT NULL DEFAULT 'pending',
		priority TEXT NOT NULL DEFAULT 'medium',
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		error_message TEXT,
		next_run_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS processing_jobs_live_uq
		ON processing_jobs (assessment_response_id)
		WHERE status IN ('pending', 'processing')`,
	`CREATE INDEX IF NOT EXISTS processing_jobs_pending_idx
		ON processing_jobs (status, next_run_at, created_at)`,

	`CREATE TABLE IF NOT EXISTS processing_logs (
		id BIGSERIAL PRIMARY KEY,
		assessment_response_id UUID NOT NULL,
		processing_job_id UUID,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		company_id UUID NOT NULL,
		assessment_response_id UUID NOT NULL,
		trigger_event TEXT NOT NULL,
		channels TEXT[] NOT NULL DEFAULT '{}',
		recipients TEXT[] NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		payload JSONB,
		sent_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the owned tables and indexes. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.NewStoreError("migrate", err)
		}
	}
	p.logger.Info("schema migrated", map[string]interface{}{"statements": len(schema)})
	return nil
}
