package authcore

import (
	"context"
	"time"
)

// User is the identity record persisted by the [Repository]. PasswordHash is
// empty when password-based login is not possible for the account.
type User struct {
	ID                  int64
	Name                string
	Email               string
	PasswordHash        string
	Role                string
	Active              bool
	EmailVerifiedAt     *time.Time
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	PasswordChangedAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// Sanitized returns a copy of the user with credential material stripped.
// Engine results never carry the password hash.
func (u *User) Sanitized() *User {
	out := *u
	out.PasswordHash = ""
	return &out
}

// Session is a refresh-token grant. TokenHash is the SHA-256 digest of the
// raw refresh token; the raw value is returned to the client once and never
// stored.
type Session struct {
	ID        string
	UserID    int64
	TokenHash string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	DeletedAt *time.Time
}

// OneTimeToken is a persisted email-verification or password-reset record.
// It is valid only while UsedAt is nil and ExpiresAt is in the future, and is
// kept after consumption as an audit trail.
type OneTimeToken struct {
	ID        string
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// AuthTokens is the credential pair returned by Login and Refresh.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenPayload is the decoded identity a verified access token asserts.
// It is stateless: no revocation check against session state is performed.
type TokenPayload struct {
	UserID    int64
	SessionID string
	Role      string
}

// RegisterResult is returned by [Engine.Register]. User is sanitized.
type RegisterResult struct {
	User    *User
	Message string
}

// NewUser is the input for [Repository.CreateUser]. The verification token
// fields make the user row and its first email-verification token one atomic
// write.
type NewUser struct {
	Name                  string
	Email                 string
	PasswordHash          string
	Role                  string
	VerificationTokenID   string
	VerificationTokenHash string
	VerificationExpiresAt time.Time
}

// NewSession is the input for [Repository.CreateSession] and the replacement
// half of [Repository.RotateSession].
type NewSession struct {
	ID        string
	UserID    int64
	TokenHash string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
}

// LoginStats is a partial update of a user's login bookkeeping. Nil fields
// are left untouched; ClearLockedUntil nulls the lockout column.
type LoginStats struct {
	FailedLoginAttempts *int
	LockedUntil         *time.Time
	ClearLockedUntil    bool
	LastLoginAt         *time.Time
}

// Repository is the persistence contract the engine drives. Implementations
// own transaction boundaries: every method documented as transactional must
// apply all of its writes atomically, and lookups honor soft deletion as
// documented per method.
//
// postgres.Repository is the production implementation.
type Repository interface {
	// FindUserByEmail returns the user with the given (normalized) email,
	// including soft-deleted rows; the engine masks deletion as a credentials
	// failure itself. Returns ErrNotFound when no row matches.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// FindUserByID excludes soft-deleted rows. Returns ErrNotFound otherwise.
	FindUserByID(ctx context.Context, id int64) (*User, error)

	// CreateUser inserts the user and its initial email-verification token in
	// one transaction. Returns ErrDuplicateEmail on a unique violation.
	CreateUser(ctx context.Context, in NewUser) (*User, error)

	// UpdateLoginStats applies the partial update to the user row.
	UpdateLoginStats(ctx context.Context, id int64, stats LoginStats) error

	// UpdatePasswordHash replaces the password hash and stamps
	// password_changed_at.
	UpdatePasswordHash(ctx context.Context, id int64, newHash string) error

	// CreateSession inserts a session row.
	CreateSession(ctx context.Context, in NewSession) (*Session, error)

	// FindActiveSessionByHash returns the session with the given token hash
	// that is neither revoked nor soft-deleted. Returns ErrNotFound otherwise.
	FindActiveSessionByHash(ctx context.Context, tokenHash string) (*Session, error)

	// RevokeSession stamps revoked_at. Revoking an already-revoked or unknown
	// session is not an error.
	RevokeSession(ctx context.Context, id string) error

	// RevokeAllUserSessions revokes every active session of the user.
	RevokeAllUserSessions(ctx context.Context, userID int64) error

	// RotateSession revokes the old session and inserts the replacement in one
	// transaction. The revocation is conditional on the old session still
	// being active, so exactly one of two concurrent rotations can win;
	// the loser gets ErrNotFound.
	RotateSession(ctx context.Context, oldID string, in NewSession) (*Session, error)

	// CreateEmailVerificationToken inserts a verification token row.
	CreateEmailVerificationToken(ctx context.Context, userID int64, id, tokenHash string, expiresAt time.Time) (*OneTimeToken, error)

	// FindEmailVerificationTokenByHash returns ErrNotFound when absent.
	FindEmailVerificationTokenByHash(ctx context.Context, tokenHash string) (*OneTimeToken, error)

	// ConsumeEmailVerification stamps the user's email_verified_at and the
	// token's used_at in one transaction.
	ConsumeEmailVerification(ctx context.Context, userID int64, tokenID string) error

	// CreatePasswordResetToken inserts a reset token row.
	CreatePasswordResetToken(ctx context.Context, userID int64, id, tokenHash string, expiresAt time.Time) (*OneTimeToken, error)

	// FindPasswordResetTokenByHash returns the token and its owning user.
	// Returns ErrNotFound when absent.
	FindPasswordResetTokenByHash(ctx context.Context, tokenHash string) (*OneTimeToken, *User, error)

	// MarkPasswordResetTokenUsed stamps used_at on the token row.
	MarkPasswordResetTokenUsed(ctx context.Context, tokenID string) error

	// ResetPassword updates the password hash and password_changed_at, clears
	// the failed-attempt counter and lockout, marks the token used, and
	// revokes all active sessions of the user in one transaction.
	ResetPassword(ctx context.Context, userID int64, tokenID string, newHash string) error
}

// Notifier delivers a single email. Failures are logged by the engine and
// never fail the enclosing operation.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
