package parkledger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/parkledger"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Nil", nil, ""},
		{"Sentinel", parkledger.ErrAlreadyParked, "AlreadyParked"},
		{"Wrapped", fmt.Errorf("%w: fee 10, vault holds 5", parkledger.ErrInsufficientVaultBalance), "InsufficientVaultBalance"},
		{"OperationError", &parkledger.OperationError{Op: "exit_session", Err: parkledger.ErrNotCurrentlyParked}, "NotCurrentlyParked"},
		{"Unknown", errors.New("disk on fire"), "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parkledger.Code(tt.err))
		})
	}
}

func TestOperationErrorMessage(t *testing.T) {
	err := &parkledger.OperationError{
		Op:  "deposit",
		Err: fmt.Errorf("%w: balance 1 + 2", parkledger.ErrArithmeticOverflow),
	}
	assert.Equal(t, "parkledger: deposit: arithmetic overflow: balance 1 + 2", err.Error())
	assert.ErrorIs(t, err, parkledger.ErrArithmeticOverflow)
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, parkledger.IsInvariantViolation(parkledger.ErrBalanceMismatch))
	assert.True(t, parkledger.IsInvariantViolation(parkledger.ErrArithmeticUnderflow))
	assert.False(t, parkledger.IsInvariantViolation(parkledger.ErrInsufficientVaultBalance))
	assert.True(t, parkledger.IsRetryable(fmt.Errorf("apply: %w", parkledger.ErrConflict)))
	assert.False(t, parkledger.IsRetryable(parkledger.ErrNotFound))
	assert.True(t, parkledger.IsNotFound(&parkledger.OperationError{Op: "get_entry", Err: parkledger.ErrNotFound}))
}
