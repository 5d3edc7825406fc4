package agent

import (
	"errors"
	"fmt"
)

// Failure taxonomy for dispatched actions. These are reported through the
// structured Outcome, never as an unhandled fault; nothing here is fatal to
// the process.
var (
	ErrNotFound          = errors.New("no item matches the query")
	ErrInvalidToken      = errors.New("unknown, expired, or reused confirmation token")
	ErrNothingToRollback = errors.New("no action with a live snapshot to roll back")
	ErrValidationFailed  = errors.New("malformed parameters for the intent")
)

// Stable error codes carried on Outcome.Error.
const (
	CodeNotFound          = "not_found"
	CodeInvalidToken      = "invalid_token"
	CodeNothingToRollback = "nothing_to_rollback"
	CodeValidationFailed  = "validation_failed"
)

// Err maps the outcome's error code onto the sentinel taxonomy so callers
// can branch with errors.Is instead of string-matching codes. A successful
// or pending outcome yields nil.
func (o Outcome) Err() error {
	switch o.Error {
	case "":
		return nil
	case CodeNotFound:
		return fmt.Errorf("%s: %w", o.Message, ErrNotFound)
	case CodeInvalidToken:
		return fmt.Errorf("%s: %w", o.Message, ErrInvalidToken)
	case CodeNothingToRollback:
		return fmt.Errorf("%s: %w", o.Message, ErrNothingToRollback)
	default:
		return fmt.Errorf("%s: %w", o.Message, ErrValidationFailed)
	}
}
