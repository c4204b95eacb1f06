package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced identity or transaction
	// does not exist in the backing store.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when an identity exists but is not
	// allowed to perform the requested operation: wrong role, suspended
	// status, or not part of the transaction's selected signer set.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyDecided is returned when a signer attempts to decide a
	// signature record that is no longer pending. Repeat submissions are
	// reported as this error, never silently ignored.
	ErrAlreadyDecided = errors.New("signature already decided")

	// ErrTransactionClosed is returned when a signature is submitted for a
	// transaction that is already approved, rejected, or past its expiry.
	ErrTransactionClosed = errors.New("transaction closed")

	// ErrInvalidThreshold is returned when a split is requested with a
	// threshold below 1 or above the number of shares.
	ErrInvalidThreshold = errors.New("invalid share threshold")

	// ErrInsufficientShares is returned when fewer distinct shares than the
	// threshold are supplied for reconstruction.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInvalidShare is returned when supplied shares are malformed or
	// inconsistent, for example mixed from different splits. Reconstruction
	// fails rather than returning garbage.
	ErrInvalidShare = errors.New("invalid share")

	// ErrInvalidCode is returned for any TOTP verification failure. It
	// deliberately does not distinguish a wrong code from an undecodable
	// secret, to avoid acting as an oracle.
	ErrInvalidCode = errors.New("invalid code")

	// ErrVersionConflict is returned by TransactionStore.Save when the
	// stored version no longer matches the version the caller loaded.
	ErrVersionConflict = errors.New("transaction version conflict")

	// ErrValidation tags all ValidationError values so callers can branch
	// on the whole class with errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports malformed caller input. It carries the offending
// field so transport layers can surface an actionable message.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns the field and reason in a single message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
