package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breadthcli/internal/breadth"
	"breadthcli/internal/configstore"
	"breadthcli/internal/recovery"
)

func TestAPIError(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	assert.Equal(t, "Invalid request format", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)

	withDetails := NewWithDetails(http.StatusNotFound, "NOT_FOUND", "missing", "config-1")
	assert.Equal(t, "config-1", withDetails.Details)
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        &breadth.ValidationError{Field: "weights", Message: "must sum to 1.0"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "wrapped validation error",
			err:        fmt.Errorf("create config: %w", &breadth.ValidationError{Field: "date", Message: "required"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown config version",
			err:        &configstore.NotFoundError{Version: "v-missing"},
			wantStatus: http.StatusNotFound,
			wantCode:   "CONFIG_NOT_FOUND",
		},
		{
			name:       "calculation failure",
			err:        &breadth.CalculationError{Date: "2024-03-05", Err: fmt.Errorf("score is NaN")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "CALCULATION_FAILED",
		},
		{
			name:       "unrecoverable corruption",
			err:        &recovery.RecoveryError{Date: "2024-03-05", Field: "sp500_level", Reason: "ambiguous"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "RECOVERY_FAILED",
		},
		{
			name:       "opaque internal error",
			err:        fmt.Errorf("database on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromDomain(tt.err)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
		})
	}

	t.Run("internal details never leak", func(t *testing.T) {
		apiErr := FromDomain(fmt.Errorf("secret connection string"))
		assert.NotContains(t, apiErr.Message, "secret")
		assert.Nil(t, apiErr.Details)
	})
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrConfigNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFIG_NOT_FOUND", resp.Error.ErrorCode)
}
