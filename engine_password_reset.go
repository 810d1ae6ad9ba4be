package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/keiralabs/authcore/password"
)

// ForgotPassword issues a password-reset token and mails it to the account.
// Unknown and soft-deleted addresses return nil after a dummy verification,
// so the caller learns nothing about whether the email is registered.
func (e *Engine) ForgotPassword(ctx context.Context, emailAddr string) error {
	if err := e.ready(); err != nil {
		return err
	}

	emailAddr = normalizeEmail(emailAddr)

	user, err := e.repo.FindUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.hasher.Verify(emailAddr, password.DummyHash)
			return nil
		}
		return err
	}
	if user.DeletedAt != nil {
		e.hasher.Verify(emailAddr, password.DummyHash)
		return nil
	}

	rawToken, err := password.GenerateToken()
	if err != nil {
		return err
	}

	if _, err := e.repo.CreatePasswordResetToken(
		ctx,
		user.ID,
		uuid.NewString(),
		password.HashToken(rawToken),
		e.now().Add(e.config.Tokens.ResetTTL),
	); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.sendPasswordResetEmail(ctx, user.Email, rawToken)
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The backing
// update clears any lockout and revokes every active session of the user, so
// stolen refresh tokens die with the old password.
func (e *Engine) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	tok, user, err := e.repo.FindPasswordResetTokenByHash(ctx, password.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenNotFound
		}
		return err
	}

	if tok.UsedAt != nil {
		return ErrTokenUsed
	}
	if e.now().After(tok.ExpiresAt) {
		return ErrTokenExpired
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return ErrPasswordPolicy
	}

	if err := e.repo.ResetPassword(ctx, tok.UserID, tok.ID, newHash); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.sendPasswordChangedEmail(ctx, user.Email)
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// re-verifying the current one. All sessions are revoked; the caller is
// expected to log in again.
func (e *Engine) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if newPassword == "" {
		return ErrPasswordPolicy
	}

	user, err := e.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.PasswordHash == "" || !e.hasher.Verify(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if e.hasher.Verify(newPassword, user.PasswordHash) {
		return ErrPasswordReuse
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return ErrPasswordPolicy
	}

	if err := e.repo.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		return err
	}
	if err := e.repo.RevokeAllUserSessions(ctx, user.ID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.sendPasswordChangedEmail(ctx, user.Email)
	return nil
}
