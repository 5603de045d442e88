package auth

import "errors"

var (
	// ErrAuthenticationRequired is returned when a protected operation is
	// attempted without a principal.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrPermissionDenied is returned when a principal is present but
	// permission resolution returned deny.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidPassword is returned when the provided password is incorrect during authentication.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrUserNotFound is returned when a user cannot be found in the database.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAccountDisabled is returned when attempting to authenticate a disabled user account.
	ErrUserAccountDisabled = errors.New("user account is disabled")

	// ErrAccountLocked is returned when a login is attempted inside a lockout window.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrInvalidPermissionKey is returned when a permission key fails validation.
	ErrInvalidPermissionKey = errors.New("invalid permission key")
)
