package types

import "fmt"

// EngineError is a reason-coded failure. Every engine failure aborts the
// whole operation with no partial side effect; callers receive the code
// plus a human-readable message and decide whether to correct and retry.
type EngineError struct {
	Code    string // stable machine-readable reason code
	Message string // human-readable description
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches engine errors by code, so errors.Is works against
// sentinel values built with NewError(code, "").
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError builds a reason-coded engine error.
func NewError(code, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// Errorf builds a reason-coded engine error with a formatted message.
func Errorf(code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Reason codes. All locally detectable; none are retryable from inside
// the engine.
const (
	// Validation
	ErrInvalidAmount    = "INVALID_AMOUNT"
	ErrInvalidTimeRange = "INVALID_TIME_RANGE"
	ErrSharesMismatch   = "SHARES_MISMATCH"
	ErrUnknownAccount   = "UNKNOWN_ACCOUNT"
	ErrSplitMismatch    = "SPLIT_MISMATCH"

	// Authorization
	ErrNotAuthorized = "NOT_AUTHORIZED"

	// State conflicts
	ErrConfigNotFound       = "CONFIG_NOT_FOUND"
	ErrConfigExists         = "CONFIG_EXISTS"
	ErrOrderDisputed        = "ORDER_DISPUTED"
	ErrOrderNotReady        = "ORDER_NOT_READY"
	ErrStillLocked          = "STILL_LOCKED"
	ErrInvalidTransition    = "INVALID_TRANSITION"
	ErrNotScannedSource     = "NOT_SCANNED_SOURCE"
	ErrProofNotVerified     = "PROOF_NOT_VERIFIED"
	ErrNothingPending       = "NOTHING_PENDING"
	ErrInsufficientBalance  = "INSUFFICIENT_BALANCE"
	ErrPoolNotFound         = "POOL_NOT_FOUND"
	ErrMilestoneNotFound    = "MILESTONE_NOT_FOUND"
	ErrInvalidPoolStatus    = "INVALID_POOL_STATUS"
	ErrInvalidMilestone     = "INVALID_MILESTONE_STATUS"
	ErrExceedsBudget        = "EXCEEDS_BUDGET"
	ErrExceedsRemaining     = "EXCEEDS_REMAINING_BUDGET"
	ErrGatesNotPassed       = "QUALITY_GATES_NOT_PASSED"
	ErrMilestoneNotApproved = "MILESTONE_NOT_APPROVED"
	ErrAlreadyReleased      = "ALREADY_RELEASED"

	// Global
	ErrSystemPaused = "SYSTEM_PAUSED"
)
