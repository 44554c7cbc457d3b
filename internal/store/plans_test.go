// internal/store/plans_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var planRowColumns = []string{
	"id", "company_id", "assessment_response_id", "processing_job_id",
	"trigger_mode", "status", "plan", "created_at",
}

func createTestPlan() *models.ActionPlan {
	return &models.ActionPlan{
		ID:                   "plan-001",
		CompanyID:            "company-001",
		AssessmentResponseID: "resp-001",
		ProcessingJobID:      "job-001",
		Mode:                 models.TriggerAutomatic,
		Status:               "pending",
		Plan: models.GeneratedActionPlan{
			Title:                   "Plano Integrado de Gestão de Riscos Psicossociais",
			Integrated:              true,
			RiskLevel:               models.RiskCritical,
			Priority:                models.PriorityCritical,
			TotalEstimatedDays:      30,
			TotalEstimatedHours:     40,
			MonitoringFrequencyDays: 7,
			SuccessMetrics:          []string{"Redução do score geral"},
			Actions: []models.ActionItem{
				{Title: "Avaliação integrada", EstimatedHours: 8, TimelineDays: 7, Mandatory: true},
				{Title: "Redistribuir demandas", EstimatedHours: 16, TimelineDays: 14},
			},
		},
	}
}

func TestPostgres_FindActionPlan(t *testing.T) {
	store, mock, _ := newTestStore(t)
	created := time.Now().UTC()

	mock.ExpectQuery(`FROM action_plans\s+WHERE assessment_response_id = \$1`).
		WithArgs("resp-001").
		WillReturnRows(sqlmock.NewRows(planRowColumns).
			AddRow("plan-001", "company-001", "resp-001", "", "manual", "pending",
				[]byte(`{"title":"Plano","riskLevel":"alto","priority":"high"}`), created))

	plan, err := store.FindActionPlan(context.Background(), "resp-001")

	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, models.TriggerManual, plan.Mode)
	assert.Equal(t, models.RiskHigh, plan.Plan.RiskLevel)

	mock.ExpectQuery(`FROM action_plans`).
		WithArgs("resp-002").
		WillReturnRows(sqlmock.NewRows(planRowColumns))

	plan, err = store.FindActionPlan(context.Background(), "resp-002")
	assert.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPostgres_CreateActionPlan_Commits(t *testing.T) {
	store, mock, _ := newTestStore(t)
	plan := createTestPlan()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO action_plans .* ON CONFLICT \(assessment_response_id\) DO NOTHING\s+RETURNING id, created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("plan-001", time.Now().UTC()))
	mock.ExpectExec(`INSERT INTO action_plan_items`).
		WithArgs("plan-001", 1, "Avaliação integrada", "", "", 8.0, 7, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO action_plan_items`).
		WithArgs("plan-001", 2, "Redistribuir demandas", "", "", 16.0, 14, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	id, created, err := store.CreateActionPlan(context.Background(), plan)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "plan-001", id)
	assert.False(t, plan.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateActionPlan_ConflictReturnsExisting(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO action_plans`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectRollback()
	mock.ExpectQuery(`FROM action_plans\s+WHERE assessment_response_id = \$1`).
		WithArgs("resp-001").
		WillReturnRows(sqlmock.NewRows(planRowColumns).
			AddRow("plan-winner", "company-001", "resp-001", "job-000", "automatic", "pending",
				[]byte(`{"title":"Plano"}`), time.Now().UTC()))

	id, created, err := store.CreateActionPlan(context.Background(), createTestPlan())

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "plan-winner", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateActionPlan_ItemFailureRollsBack(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO action_plans`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("plan-001", time.Now().UTC()))
	mock.ExpectExec(`INSERT INTO action_plan_items`).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	_, created, err := store.CreateActionPlan(context.Background(), createTestPlan())

	require.Error(t, err)
	assert.False(t, created)
	assert.True(t, apperrors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
