// internal/workers/assessment/enqueue-assessment-processing/handler_test.go
package enqueueassessmentprocessing

import (
	"context"
	"errors"
	"testing"
	"time"

	"psychosocial-workers/internal/common/config"
	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"
	"psychosocial-workers/internal/processing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type mockEnqueuer struct {
	EnqueueFunc func(ctx context.Context, req processing.EnqueueRequest) (*processing.EnqueueResult, error)
	requests    []processing.EnqueueRequest
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, req processing.EnqueueRequest) (*processing.EnqueueResult, error) {
	m.requests = append(m.requests, req)
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, req)
	}
	return &processing.EnqueueResult{JobID: "job-001", Created: true}, nil
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestInput() *Input {
	return &Input{
		AssessmentResponseID: "resp-001",
		CompanyID:            "company-001",
		Priority:             "high",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	handler := NewHandler(createTestConfig(), enqueuer, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "job-001", output.ProcessingJobID)
	assert.True(t, output.Created)

	_, err = time.Parse(time.RFC3339, output.QueuedAt)
	assert.NoError(t, err)

	require.Len(t, enqueuer.requests, 1)
	assert.Equal(t, "resp-001", enqueuer.requests[0].AssessmentID)
	assert.Equal(t, models.PriorityHigh, enqueuer.requests[0].Priority)
}

func TestHandler_Execute_AlreadyQueued(t *testing.T) {
	enqueuer := &mockEnqueuer{
		EnqueueFunc: func(ctx context.Context, req processing.EnqueueRequest) (*processing.EnqueueResult, error) {
			return &processing.EnqueueResult{JobID: "job-existing", Created: false}, nil
		},
	}
	handler := NewHandler(createTestConfig(), enqueuer, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "job-existing", output.ProcessingJobID)
	assert.False(t, output.Created)
}

func TestHandler_Execute_EmptyPriorityPassesThrough(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	handler := NewHandler(createTestConfig(), enqueuer, logger.NewTestLogger(t))

	input := createTestInput()
	input.Priority = ""
	_, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, models.Priority(""), enqueuer.requests[0].Priority)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      apperrors.ErrorCode
		wantRetryable bool
	}{
		{
			name:          "validation failure",
			err:           apperrors.NewValidationError("assessmentResponseId is required"),
			wantCode:      apperrors.ErrCodeValidationFailed,
			wantRetryable: false,
		},
		{
			name:          "store failure",
			err:           apperrors.NewStoreError("insert processing_jobs", errors.New("connection refused")),
			wantCode:      apperrors.ErrCodeStoreFailure,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enqueuer := &mockEnqueuer{
				EnqueueFunc: func(ctx context.Context, req processing.EnqueueRequest) (*processing.EnqueueResult, error) {
					return nil, tt.err
				},
			}
			handler := NewHandler(createTestConfig(), enqueuer, logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), createTestInput())

			assert.Nil(t, output)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Equal(t, tt.wantRetryable, apperrors.IsRetryable(err))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
	assert.Equal(t, 10*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
}
