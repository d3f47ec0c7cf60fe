package error

import (
	"errors"
	"fmt"
)

// Error codes for standardized API responses
const (
	// 4xxx - Client errors
	CodeInsufficientCredits     = 4001
	CodeInvalidAmount           = 4002
	CodeInvalidAccountID        = 4003
	CodeInvalidReservationState = 4004
	CodeConstraintViolation     = 4005
	CodeTrialAlreadyUsed        = 4006
	CodeInvalidServiceType      = 4007
	CodeInvalidRequest          = 4008
	CodeDuplicateAccount        = 4090
	CodeAccountNotFound         = 4040
	CodeEntryNotFound           = 4041
	CodeAccountLocked           = 4230

	// 5xxx - Server errors
	CodeInternalServer = 5000
)

// Base error types
var (
	// ErrInsufficientCredits is returned when an account cannot cover a deduction
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidReservationState is returned when a reservation is missing or already settled
	ErrInvalidReservationState = errors.New("invalid reservation state")

	// ErrTrialAlreadyUsed is returned when the signup fingerprint already received a trial
	ErrTrialAlreadyUsed = errors.New("trial already used")

	// ErrInvalidAmount is returned when an amount is malformed or not allowed for the operation
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNegativeAmount is returned when a negative amount is supplied where it is not allowed
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// ErrInvalidAccountID is returned when the account ID is empty
	ErrInvalidAccountID = errors.New("account ID cannot be empty")

	// ErrInvalidServiceType is returned for service types outside the known set
	ErrInvalidServiceType = errors.New("invalid service type")

	// ErrInvalidRequestShape is returned when request quantities are negative
	ErrInvalidRequestShape = errors.New("invalid request shape")

	// ErrInvalidRequest is returned when the request format is invalid
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAccountNotFound is returned when the requested account doesn't exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrEntryNotFound is returned when the requested ledger entry doesn't exist
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrDuplicateAccount is returned when trying to create an account that already exists
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrAccountLocked is returned when the account row could not be locked (deadlock, serialization)
	ErrAccountLocked = errors.New("account is locked by another operation")

	// ErrConstraintViolation is returned when a database constraint is violated
	ErrConstraintViolation = errors.New("database constraint violation")

	// ErrDatabaseConnection is returned when there's a problem talking to the database
	ErrDatabaseConnection = errors.New("database connection error")

	// ErrInternalServer is returned for unexpected server-side errors
	ErrInternalServer = errors.New("internal server error")

	// ErrNoTransaction is returned when a transactional operation runs outside a unit of work
	ErrNoTransaction = errors.New("no transaction found in context")
)

// ErrorCode returns standardized error codes for known errors
func ErrorCode(err error) int {
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		return CodeInsufficientCredits
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrNegativeAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrInvalidAccountID):
		return CodeInvalidAccountID
	case errors.Is(err, ErrInvalidReservationState):
		return CodeInvalidReservationState
	case errors.Is(err, ErrTrialAlreadyUsed):
		return CodeTrialAlreadyUsed
	case errors.Is(err, ErrInvalidServiceType):
		return CodeInvalidServiceType
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidRequestShape):
		return CodeInvalidRequest
	case errors.Is(err, ErrDuplicateAccount):
		return CodeDuplicateAccount
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrEntryNotFound):
		return CodeEntryNotFound
	case errors.Is(err, ErrAccountLocked):
		return CodeAccountLocked
	case errors.Is(err, ErrConstraintViolation):
		return CodeConstraintViolation
	default:
		return CodeInternalServer
	}
}

// InsufficientCreditsError reports the shortfall of a rejected deduction.
// Amounts are hundredths of a credit.
type InsufficientCreditsError struct {
	AccountID string
	Required  int64
	Available int64
}

// Error implements the error interface
func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits for account %s: required %d, available %d",
		e.AccountID, e.Required, e.Available)
}

// Is checks if the target error is an ErrInsufficientCredits
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// Shortfall returns how much the account is missing to cover the request
func (e *InsufficientCreditsError) Shortfall() int64 {
	return e.Required - e.Available
}

// LogFields returns a map of fields for structured logging
func (e *InsufficientCreditsError) LogFields() map[string]any {
	return map[string]any{
		"error_type": "insufficient_credits",
		"account_id": e.AccountID,
		"required":   e.Required,
		"available":  e.Available,
		"error_code": CodeInsufficientCredits,
	}
}

// NewInsufficientCreditsError creates a new detailed insufficient credits error
func NewInsufficientCreditsError(accountID string, required, available int64) error {
	return &InsufficientCreditsError{
		AccountID: accountID,
		Required:  required,
		Available: available,
	}
}

// InvalidReservationStateError describes why a settlement was refused
type InvalidReservationStateError struct {
	EntryID uint64
	Status  string
	Reason  string
}

// Error implements the error interface
func (e *InvalidReservationStateError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("invalid reservation state for entry %d: %s", e.EntryID, e.Reason)
	}
	return fmt.Sprintf("invalid reservation state for entry %d (status %s): %s", e.EntryID, e.Status, e.Reason)
}

// Is checks if the target error is an ErrInvalidReservationState
func (e *InvalidReservationStateError) Is(target error) bool {
	return target == ErrInvalidReservationState
}

// LogFields returns a map of fields for structured logging
func (e *InvalidReservationStateError) LogFields() map[string]any {
	return map[string]any{
		"error_type": "invalid_reservation_state",
		"entry_id":   e.EntryID,
		"status":     e.Status,
		"reason":     e.Reason,
		"error_code": CodeInvalidReservationState,
	}
}

// NewInvalidReservationStateError creates a new reservation state error
func NewInvalidReservationStateError(entryID uint64, status, reason string) error {
	return &InvalidReservationStateError{
		EntryID: entryID,
		Status:  status,
		Reason:  reason,
	}
}

// IsInsufficientCreditsError checks if the error is related to insufficient credits
func IsInsufficientCreditsError(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}

// IsInvalidReservationStateError checks if the error is a reservation state error
func IsInvalidReservationStateError(err error) bool {
	return errors.Is(err, ErrInvalidReservationState)
}

// IsTrialAlreadyUsedError checks if the error is a trial eligibility error
func IsTrialAlreadyUsedError(err error) bool {
	return errors.Is(err, ErrTrialAlreadyUsed)
}

// IsNotFoundError checks if the error is any "not found" type of error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrEntryNotFound)
}

// IsAccountLockedError checks if the error is related to lock contention
func IsAccountLockedError(err error) bool {
	return errors.Is(err, ErrAccountLocked)
}
