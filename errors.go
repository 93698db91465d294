package parkledger

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Operations wrap them in *OperationError; match with errors.Is.
var (
	// Registration errors
	ErrEmptyName     = errors.New("parkledger: empty name")
	ErrEmptyPlate    = errors.New("parkledger: empty plate")
	ErrAlreadyExists = errors.New("parkledger: already exists")
	ErrNotFound      = errors.New("parkledger: not found")

	// Value errors
	ErrInvalidDepositAmount     = errors.New("parkledger: invalid deposit amount")
	ErrInvalidWithdrawAmount    = errors.New("parkledger: invalid withdraw amount")
	ErrArithmeticOverflow       = errors.New("parkledger: arithmetic overflow")
	ErrArithmeticUnderflow      = errors.New("parkledger: arithmetic underflow")
	ErrBalanceMismatch          = errors.New("parkledger: balance mismatch")
	ErrInsufficientVaultBalance = errors.New("parkledger: insufficient vault balance")
	ErrInsufficientFunds        = errors.New("parkledger: insufficient funds")
	ErrInvalidRecipient         = errors.New("parkledger: invalid recipient")

	// Session errors
	ErrAlreadyParked          = errors.New("parkledger: already parked")
	ErrNotCurrentlyParked     = errors.New("parkledger: not currently parked")
	ErrInvalidParkingDuration = errors.New("parkledger: invalid parking duration")

	// Instruction errors
	ErrMalformedInstruction = errors.New("parkledger: malformed instruction")
	ErrUnknownInstruction   = errors.New("parkledger: unknown instruction")
	ErrMissingSigner        = errors.New("parkledger: missing signer")
	ErrAccountMismatch      = errors.New("parkledger: account mismatch")

	// Store errors
	ErrConflict      = errors.New("parkledger: concurrent modification")
	ErrInvalidRecord = errors.New("parkledger: invalid record")
	ErrStoreClosed   = errors.New("parkledger: store is closed")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrEmptyName, "EmptyName"},
	{ErrEmptyPlate, "EmptyPlate"},
	{ErrAlreadyExists, "AlreadyExists"},
	{ErrNotFound, "NotFound"},
	{ErrInvalidDepositAmount, "InvalidDepositAmount"},
	{ErrInvalidWithdrawAmount, "InvalidWithdrawAmount"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrArithmeticUnderflow, "ArithmeticUnderflow"},
	{ErrBalanceMismatch, "BalanceMismatch"},
	{ErrInsufficientVaultBalance, "InsufficientVaultBalance"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrInvalidRecipient, "InvalidRecipient"},
	{ErrAlreadyParked, "AlreadyParked"},
	{ErrNotCurrentlyParked, "NotCurrentlyParked"},
	{ErrInvalidParkingDuration, "InvalidParkingDuration"},
	{ErrMalformedInstruction, "MalformedInstruction"},
	{ErrUnknownInstruction, "UnknownInstruction"},
	{ErrMissingSigner, "MissingSigner"},
	{ErrAccountMismatch, "AccountMismatch"},
	{ErrConflict, "Conflict"},
	{ErrInvalidRecord, "InvalidRecord"},
	{ErrStoreClosed, "StoreClosed"},
}

// OperationError reports which operation failed and why.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("parkledger: %s: %s", e.Op, strings.TrimPrefix(e.Err.Error(), "parkledger: "))
}

func (e *OperationError) Unwrap() error { return e.Err }

// Code returns the stable error kind for err, e.g. "InsufficientVaultBalance".
// Errors outside the taxonomy report "Internal"; nil reports "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvariantViolation reports errors that indicate corrupted state rather
// than a rejected request.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrBalanceMismatch) ||
		errors.Is(err, ErrArithmeticUnderflow) ||
		errors.Is(err, ErrInvalidRecord)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
