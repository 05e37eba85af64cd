// Package businessflow contains the core business logic and use cases for commission workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Event-related errors
	ErrEventNotFound  = errors.New("payable event not found")
	ErrEventNotPaid   = errors.New("payable event is not paid")
	ErrEventCancelled = errors.New("payable event is cancelled")

	// Ledger-related errors
	ErrEntryNotFound       = errors.New("commission entry not found")
	ErrEntryAlreadyPaid    = errors.New("commission entry is already paid")
	ErrEntryNotPending     = errors.New("commission entry is not pending")
	ErrEntryNotCancellable = errors.New("commission entry cannot be cancelled")

	// Agent-related errors
	ErrAgentNotFound = errors.New("agent not found")
	ErrAgentInactive = errors.New("agent is inactive")

	// Rate table errors
	ErrRateTableEmpty   = errors.New("rate table has no revenue bands")
	ErrNoBandForRevenue = errors.New("no revenue band matches the monthly revenue")
	ErrUnknownRoleKind  = errors.New("unknown role kind")
	ErrUnknownEventKind = errors.New("unknown event kind")

	// Validator errors
	ErrValidationAlreadyRunning = errors.New("a validation run is already in progress")
)

// Business error codes
const (
	CodeConfigurationError = "CONFIGURATION_ERROR"
	CodePersistenceError   = "PERSISTENCE_ERROR"
	CodeEventNotFound      = "EVENT_NOT_FOUND"
	CodeEventNotPayable    = "EVENT_NOT_PAYABLE"
	CodeEntryNotFound      = "ENTRY_NOT_FOUND"
	CodeEntryNotUpdatable  = "ENTRY_NOT_UPDATABLE"
	CodeValidationLocked   = "VALIDATION_LOCKED"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// hasCode reports whether err carries the given business error code
func hasCode(err error, code string) bool {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsConfigurationError reports whether err stems from a missing or invalid rate table
func IsConfigurationError(err error) bool {
	return hasCode(err, CodeConfigurationError)
}

// IsPersistenceError reports whether err stems from the storage layer
func IsPersistenceError(err error) bool {
	return hasCode(err, CodePersistenceError)
}

// IsValidationLocked reports whether err means another validation run holds the lock
func IsValidationLocked(err error) bool {
	return hasCode(err, CodeValidationLocked)
}
