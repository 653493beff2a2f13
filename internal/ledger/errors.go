package ledger

import (
	"errors"
	"fmt"
)

// Validation errors are detected before any write and reported with enough
// detail for the caller to fix the request.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrSplitMismatch        = errors.New("splits do not sum to expense amount")
	ErrDuplicateSplitTarget = errors.New("duplicate split target")
	ErrInvalidSplitType     = errors.New("invalid split type")
	ErrInvalidBalance       = errors.New("invalid balance")
)

// Membership errors are detected inside the write transaction.
var (
	ErrUnknownParticipant = errors.New("participant is not a group member")
	ErrNotMember          = errors.New("user is not a group member")
	ErrGroupNotFound      = errors.New("group not found")
)

// ErrStorageFailure wraps errors from the persistence layer. It is never
// retried by this package.
var ErrStorageFailure = errors.New("storage failure")

// StorageFailure wraps err so that it matches both ErrStorageFailure and
// the original error.
func StorageFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// IsValidation reports whether err is a request validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSplitMismatch) ||
		errors.Is(err, ErrDuplicateSplitTarget) ||
		errors.Is(err, ErrInvalidSplitType) ||
		errors.Is(err, ErrInvalidBalance) ||
		errors.Is(err, ErrUnknownParticipant)
}
