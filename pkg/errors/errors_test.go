package errors_test

import (
	"net/http"
	"testing"

	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientBalance(t *testing.T) {
	err := errors.InsufficientBalance("item-1", 60, 40)

	assert.Equal(t, "INSUFFICIENT_BALANCE", err.Code)
	assert.Equal(t, http.StatusConflict, err.StatusCode)
	assert.Equal(t, "60", err.Details["requested"])
	assert.Equal(t, "40", err.Details["available"])
	assert.True(t, errors.Is(err, errors.ErrInsufficientBalance))
}

func TestInvalidState(t *testing.T) {
	err := errors.InvalidState("transfer already rejected")

	assert.Equal(t, "INVALID_STATE", err.Code)
	assert.Equal(t, http.StatusConflict, err.StatusCode)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestContention(t *testing.T) {
	err := errors.Contention("holding version conflict after 3 attempts")

	assert.Equal(t, "CONTENTION", err.Code)
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.True(t, errors.Is(err, errors.ErrContention))
}

func TestValidationDetails(t *testing.T) {
	err := errors.Validation(map[string]string{"quantity": "must be greater than 0"})

	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "must be greater than 0", err.Details["quantity"])
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.ErrConflict
	err := errors.Wrap(cause, "LOT_EXISTS", "lot number already assigned", http.StatusConflict)

	require.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "lot number already assigned")
}

func TestAsExtractsAppError(t *testing.T) {
	var appErr *errors.AppError
	err := error(errors.NotFound("transfer"))

	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
	assert.Equal(t, "transfer not found", appErr.Message)
}
