package models

import "errors"

var (
	// ErrNotFound is returned when the addressed completion, extra task,
	// checklist item or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved is returned when a decision or submission targets
	// an item that has already been decided.
	ErrAlreadyResolved = errors.New("already resolved")

	// ErrOwnership is returned when a user acts on an item outside their
	// reach: another child's item or another family's data.
	ErrOwnership = errors.New("item belongs to someone else")

	// ErrNotParent is returned when a non-parent attempts a parent action.
	ErrNotParent = errors.New("only parents can do this")

	// ErrNotChild is returned when a non-child attempts a child action.
	ErrNotChild = errors.New("only children can do this")

	// ErrInvalidMedium is returned for proof that is neither photo nor video.
	ErrInvalidMedium = errors.New("proof must be a photo or a video")

	// ErrWrongPassword is returned when a parent joins with a bad password.
	ErrWrongPassword = errors.New("wrong family password")

	// ErrAlreadyRegistered is returned when a chat identity registers twice.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrInvalidDate is returned for a calendar day not in DateLayout.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
)

// IsOwnershipViolation reports whether err rejects the caller's identity
// rather than the target item's state.
func IsOwnershipViolation(err error) bool {
	return errors.Is(err, ErrOwnership) || errors.Is(err, ErrNotParent) || errors.Is(err, ErrNotChild)
}
