package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/keiralabs/authcore"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, COALESCE(password_hash, ''), role, active,
	email_verified_at, failed_login_attempts, locked_until, last_login_at,
	password_changed_at, created_at, updated_at, deleted_at`

const sessionColumns = `id, user_id, token_hash, user_agent, ip_address,
	expires_at, revoked_at, created_at, deleted_at`

const tokenColumns = `id, user_id, token_hash, expires_at, used_at, created_at`

// Repository implements authcore.Repository on PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open database handle. The schema must already be
// migrated; see [Migrate].
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ authcore.Repository = (*Repository)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanUser(row *sql.Row) (*authcore.User, error) {
	u := &authcore.User{}
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Active,
		&u.EmailVerifiedAt, &u.FailedLoginAttempts, &u.LockedUntil, &u.LastLoginAt,
		&u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func scanSession(row *sql.Row) (*authcore.Session, error) {
	s := &authcore.Session{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IPAddress,
		&s.ExpiresAt, &s.RevokedAt, &s.CreatedAt, &s.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

func scanToken(row *sql.Row) (*authcore.OneTimeToken, error) {
	t := &authcore.OneTimeToken{}
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return t, nil
}

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *Repository) FindUserByID(ctx context.Context, id int64) (*authcore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) CreateUser(ctx context.Context, in authcore.NewUser) (*authcore.User, error) {
	var user *authcore.User
	err := withTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		query := `INSERT INTO users (name, email, password_hash, role)
			VALUES ($1, $2, NULLIF($3, ''), $4)
			RETURNING ` + userColumns

		u, err := scanUser(tx.QueryRowContext(ctx, query,
			in.Name, in.Email, in.PasswordHash, in.Role))
		if err != nil {
			if isUniqueViolation(err) {
				return authcore.ErrDuplicateEmail
			}
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO email_verification_tokens (id, user_id, token_hash, expires_at)
			 VALUES ($1, $2, $3, $4)`,
			in.VerificationTokenID, u.ID, in.VerificationTokenHash, in.VerificationExpiresAt)
		if err != nil {
			return fmt.Errorf("insert verification token: %w", err)
		}

		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) UpdateLoginStats(ctx context.Context, id int64, stats authcore.LoginStats) error {
	query := `UPDATE users SET
			failed_login_attempts = COALESCE($2, failed_login_attempts),
			locked_until = CASE WHEN $4 THEN NULL ELSE COALESCE($3, locked_until) END,
			last_login_at = COALESCE($5, last_login_at),
			updated_at = now()
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id,
		stats.FailedLoginAttempts, stats.LockedUntil, stats.ClearLockedUntil, stats.LastLoginAt)
	if err != nil {
		return fmt.Errorf("update login stats: %w", err)
	}
	return nil
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, newHash string) error {
	query := `UPDATE users SET password_hash = $2, password_changed_at = now(), updated_at = now()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, newHash); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, in authcore.NewSession) (*authcore.Session, error) {
	return createSession(ctx, r.db, in)
}

func createSession(ctx context.Context, db DBTX, in authcore.NewSession) (*authcore.Session, error) {
	query := `INSERT INTO sessions (id, user_id, token_hash, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sessionColumns

	return scanSession(db.QueryRowContext(ctx, query,
		in.ID, in.UserID, in.TokenHash, in.UserAgent, in.IPAddress, in.ExpiresAt))
}

func (r *Repository) FindActiveSessionByHash(ctx context.Context, tokenHash string) (*authcore.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE token_hash = $1 AND revoked_at IS NULL AND deleted_at IS NULL`

	return scanSession(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *Repository) RevokeSession(ctx context.Context, id string) error {
	query := `UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *Repository) RevokeAllUserSessions(ctx context.Context, userID int64) error {
	return revokeAllUserSessions(ctx, r.db, userID)
}

func revokeAllUserSessions(ctx context.Context, db DBTX, userID int64) error {
	query := `UPDATE sessions SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL AND deleted_at IS NULL`

	if _, err := db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (r *Repository) RotateSession(ctx context.Context, oldID string, in authcore.NewSession) (*authcore.Session, error) {
	var sess *authcore.Session
	err := withTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		// The conditional revoke is the race arbiter: of two concurrent
		// rotations of the same session, only one update hits a row.
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`,
			oldID)
		if err != nil {
			return fmt.Errorf("revoke rotated session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("revoke rotated session: %w", err)
		}
		if n == 0 {
			return authcore.ErrNotFound
		}

		sess, err = createSession(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (r *Repository) CreateEmailVerificationToken(ctx context.Context, userID int64, id, tokenHash string, expiresAt time.Time) (*authcore.OneTimeToken, error) {
	query := `INSERT INTO email_verification_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tokenColumns

	return scanToken(r.db.QueryRowContext(ctx, query, id, userID, tokenHash, expiresAt))
}

func (r *Repository) FindEmailVerificationTokenByHash(ctx context.Context, tokenHash string) (*authcore.OneTimeToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM email_verification_tokens WHERE token_hash = $1`
	return scanToken(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *Repository) ConsumeEmailVerification(ctx context.Context, userID int64, tokenID string) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE users SET email_verified_at = now(), updated_at = now()
			 WHERE id = $1 AND email_verified_at IS NULL`, userID)
		if err != nil {
			return fmt.Errorf("mark email verified: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE email_verification_tokens SET used_at = now() WHERE id = $1`, tokenID)
		if err != nil {
			return fmt.Errorf("mark verification token used: %w", err)
		}
		return nil
	})
}

func (r *Repository) CreatePasswordResetToken(ctx context.Context, userID int64, id, tokenHash string, expiresAt time.Time) (*authcore.OneTimeToken, error) {
	query := `INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tokenColumns

	return scanToken(r.db.QueryRowContext(ctx, query, id, userID, tokenHash, expiresAt))
}

func (r *Repository) FindPasswordResetTokenByHash(ctx context.Context, tokenHash string) (*authcore.OneTimeToken, *authcore.User, error) {
	query := `SELECT ` + tokenColumns + ` FROM password_reset_tokens WHERE token_hash = $1`
	tok, err := scanToken(r.db.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		return nil, nil, err
	}

	user, err := r.FindUserByID(ctx, tok.UserID)
	if err != nil {
		return nil, nil, err
	}
	return tok, user, nil
}

func (r *Repository) MarkPasswordResetTokenUsed(ctx context.Context, tokenID string) error {
	query := `UPDATE password_reset_tokens SET used_at = now() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, tokenID); err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	return nil
}

func (r *Repository) ResetPassword(ctx context.Context, userID int64, tokenID string, newHash string) error {
	return withTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = $2, password_changed_at = now(),
				failed_login_attempts = 0, locked_until = NULL, updated_at = now()
			 WHERE id = $1`, userID, newHash)
		if err != nil {
			return fmt.Errorf("reset password: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE password_reset_tokens SET used_at = now() WHERE id = $1`, tokenID)
		if err != nil {
			return fmt.Errorf("mark reset token used: %w", err)
		}

		return revokeAllUserSessions(ctx, tx, userID)
	})
}
