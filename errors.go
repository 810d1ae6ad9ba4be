package authcore

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a business-rule failure so the surrounding transport layer
// can map it to a status code without string matching.
type Kind uint8

const (
	// KindConflict maps to 409: the request collides with existing state.
	KindConflict Kind = iota + 1
	// KindUnauthorized maps to 401: missing or invalid credentials.
	KindUnauthorized
	// KindForbidden maps to 403: valid identity, disallowed action.
	KindForbidden
	// KindNotFound maps to 404.
	KindNotFound
	// KindValidation maps to 422: the input is well-formed but unusable.
	KindValidation
)

// Error is a typed business failure carrying the taxonomy [Kind] and a
// stable, non-leaking message. Authentication-path errors deliberately share
// generic wording so callers cannot distinguish "no such user" from
// "wrong password".
type Error struct {
	Kind    Kind
	Message string
	wrapped error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.wrapped }

// KindOf extracts the failure Kind from err, or 0 when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

var (
	// ErrEmailTaken rejects registration with an already registered email.
	ErrEmailTaken = &Error{Kind: KindConflict, Message: "email already registered"}
	// ErrInvalidCredentials is the generic authentication failure. It covers
	// unknown user, wrong password, and soft-deleted accounts alike.
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "invalid credentials"}
	// ErrAccountInactive rejects login for deactivated accounts.
	ErrAccountInactive = &Error{Kind: KindForbidden, Message: "account inactive"}
	// ErrAccountLocked rejects login while a lockout window is open. Use
	// [errors.Is] against it; the concrete error message carries the unlock
	// timestamp.
	ErrAccountLocked = &Error{Kind: KindForbidden, Message: "account locked"}
	// ErrRefreshInvalid rejects refresh tokens with no matching session.
	ErrRefreshInvalid = &Error{Kind: KindUnauthorized, Message: "invalid refresh token"}
	// ErrSessionExpired rejects refresh tokens whose session outlived its expiry.
	ErrSessionExpired = &Error{Kind: KindUnauthorized, Message: "session expired"}
	// ErrSessionRevoked rejects refresh tokens bound to a revoked session,
	// including the loser of a concurrent rotation race.
	ErrSessionRevoked = &Error{Kind: KindUnauthorized, Message: "session revoked"}
	// ErrTokenNotFound rejects unknown verification or reset tokens.
	ErrTokenNotFound = &Error{Kind: KindNotFound, Message: "token not found"}
	// ErrTokenUsed rejects one-time tokens that were already consumed.
	ErrTokenUsed = &Error{Kind: KindValidation, Message: "token already used"}
	// ErrTokenExpired rejects one-time tokens past their expiry.
	ErrTokenExpired = &Error{Kind: KindValidation, Message: "token expired"}
	// ErrUserNotFound rejects profile lookups for unknown or soft-deleted users.
	ErrUserNotFound = &Error{Kind: KindNotFound, Message: "user not found"}
	// ErrAccessTokenInvalid rejects unparsable, tampered, or expired access tokens.
	ErrAccessTokenInvalid = &Error{Kind: KindUnauthorized, Message: "invalid access token"}
	// ErrPasswordReuse rejects a password change to the current password.
	ErrPasswordReuse = &Error{Kind: KindValidation, Message: "new password must be different from current password"}
	// ErrPasswordPolicy rejects passwords the hasher refuses to process.
	ErrPasswordPolicy = &Error{Kind: KindValidation, Message: "password policy violation"}
	// ErrEngineNotReady is returned when Engine methods run before Build wired
	// all mandatory dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Storage-level sentinels. Repository implementations translate their
// driver's failure modes into these; the engine maps them onto the taxonomy
// above.
var (
	// ErrNotFound reports that no row matched a repository lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail reports a unique-constraint violation on users.email.
	ErrDuplicateEmail = errors.New("duplicate email")
)

func lockedError(until time.Time) *Error {
	return &Error{
		Kind:    KindForbidden,
		Message: fmt.Sprintf("account locked until %s", until.UTC().Format(time.RFC3339)),
		wrapped: ErrAccountLocked,
	}
}
