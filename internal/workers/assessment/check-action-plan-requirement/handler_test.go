// internal/workers/assessment/check-action-plan-requirement/handler_test.go
package checkactionplanrequirement

import (
	"context"
	"testing"
	"time"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"
	"psychosocial-workers/internal/risk/automation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	RequiresFunc func(ctx context.Context, assessmentID string) (*automation.Requirement, error)
	calls        int
}

func (m *mockChecker) RequiresActionPlan(ctx context.Context, assessmentID string) (*automation.Requirement, error) {
	m.calls++
	return m.RequiresFunc(ctx, assessmentID)
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name        string
		requirement *automation.Requirement
		expected    *Output
	}{
		{
			name:        "high risk without plan",
			requirement: &automation.Requirement{Requires: true, RiskLevel: models.RiskHigh},
			expected:    &Output{Requires: true, RiskLevel: "alto"},
		},
		{
			name:        "critical risk with existing plan",
			requirement: &automation.Requirement{Requires: false, RiskLevel: models.RiskCritical, HasExisting: true},
			expected:    &Output{Requires: false, RiskLevel: "critico", HasExisting: true},
		},
		{
			name:        "low risk",
			requirement: &automation.Requirement{RiskLevel: models.RiskLow},
			expected:    &Output{RiskLevel: "baixo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockChecker{
				RequiresFunc: func(ctx context.Context, assessmentID string) (*automation.Requirement, error) {
					return tt.requirement, nil
				},
			}
			handler := NewHandler(createTestConfig(), checker, logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), &Input{AssessmentResponseID: "resp-001"})

			require.NoError(t, err)
			assert.Equal(t, tt.expected, output)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	checker := &mockChecker{
		RequiresFunc: func(ctx context.Context, assessmentID string) (*automation.Requirement, error) {
			return nil, apperrors.NewAssessmentNotFoundError(assessmentID)
		},
	}
	handler := NewHandler(createTestConfig(), checker, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 0, checker.calls)

	_, err = handler.Execute(context.Background(), &Input{AssessmentResponseID: "resp-404"})
	assert.True(t, apperrors.IsNotFound(err))
	assert.False(t, apperrors.IsRetryable(err))
}
