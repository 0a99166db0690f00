package service

import "errors"

var (
	// ErrNotFound covers unknown slugs and deactivated links alike.
	ErrNotFound = errors.New("not found")
	// ErrExpired signals a link whose expiry has passed.
	ErrExpired = errors.New("link expired")
	// ErrPasswordRequired signals a gated link resolved without unlocking.
	ErrPasswordRequired = errors.New("password required")
	// ErrNotGated signals an unlock attempt on a link without a password.
	ErrNotGated = errors.New("not password protected")
	// ErrInvalidPassword signals a failed unlock.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrSlugTaken signals a slug collision.
	ErrSlugTaken = errors.New("slug already taken")
)

// ValidationError reports malformed input with a message fit for the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
