package domain

import "errors"

// Shared error taxonomy. Services wrap these with context; the HTTP layer
// maps them to status codes by category.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already in use")
	ErrDuplicate       = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Authentication code lifecycle.
	ErrCodeConsumed = errors.New("authentication code already used")
	ErrCodeExpired  = errors.New("authentication code expired")

	// Session validation rejections, one per gate, in gate order. The first
	// failing gate wins; later gates are never evaluated.
	ErrSessionOwnership  = errors.New("session does not belong to the user")
	ErrInsufficientScope = errors.New("session does not have all required scopes")
	ErrSessionExpired    = errors.New("session expired or revoked")
	ErrClientMismatch    = errors.New("client id does not match")
	ErrChallengeMismatch = errors.New("code challenge does not match")
	ErrMethodMismatch    = errors.New("authentication method does not match")
)
