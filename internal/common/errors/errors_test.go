package errors

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      ErrorCode
		wantNotFound  bool
		wantRetryable bool
	}{
		{
			name:         "assessment not found",
			err:          NewAssessmentNotFoundError("a-1"),
			wantCode:     ErrCodeAssessmentNotFound,
			wantNotFound: true,
		},
		{
			name:         "employee not found wrapped",
			err:          fmt.Errorf("load context: %w", NewEmployeeNotFoundError("e-1")),
			wantCode:     ErrCodeEmployeeNotFound,
			wantNotFound: true,
		},
		{
			name:     "validation",
			err:      NewValidationError("answers: q1 must be <= 5"),
			wantCode: ErrCodeValidationFailed,
		},
		{
			name:          "store failure",
			err:           NewStoreError("insert risk analysis", sql.ErrConnDone),
			wantCode:      ErrCodeStoreFailure,
			wantRetryable: true,
		},
		{
			name:     "notification failure",
			err:      NewNotificationError("ses", stderrors.New("throttled")),
			wantCode: ErrCodeNotificationFailed,
		},
		{
			name:          "unclassified",
			err:           stderrors.New("boom"),
			wantCode:      ErrCodeInternal,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, CodeOf(tt.err))
			assert.Equal(t, tt.wantNotFound, IsNotFound(tt.err))
			assert.Equal(t, tt.wantRetryable, IsRetryable(tt.err))
		})
	}
}

func TestStoreErrorUnwrapsCause(t *testing.T) {
	err := NewStoreError("select assessment", sql.ErrConnDone)
	assert.True(t, stderrors.Is(err, sql.ErrConnDone))
	assert.Contains(t, err.Error(), "STORE_FAILURE")
}

func TestIsRetryableNil(t *testing.T) {
	assert.False(t, IsRetryable(nil))
}

func TestToErrorVariablesIncludesMetadata(t *testing.T) {
	err := NewValidationError("bad payload").WithMetadata("assessmentResponseId", "a-1")
	vars := err.ToErrorVariables()
	assert.Equal(t, "VALIDATION_FAILED", vars["errorCode"])
	assert.Equal(t, "a-1", vars["assessmentResponseId"])
	assert.Equal(t, false, vars["retryable"])
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeJobNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "STORE", GetErrorCategory(ErrCodeStoreFailure))
	assert.Equal(t, "TRANSIENT", GetErrorCategory(ErrCodeExternalService))
	assert.Equal(t, "INTERNAL", GetErrorCategory(ErrCodeInternal))
}
