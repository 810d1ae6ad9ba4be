package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/keiralabs/authcore/password"
)

// Login authenticates by email and password and, on success, opens a new
// session and returns the access/refresh token pair.
//
// Failure ordering is deliberate: unknown and soft-deleted users burn a
// dummy password verification so their wall-clock time matches the
// wrong-password path, the lockout check runs before verification so a
// locked account never leaks whether the password was correct, and every
// credentials failure shares the same generic message.
func (e *Engine) Login(ctx context.Context, emailAddr, pass, userAgent, ipAddress string) (*AuthTokens, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	emailAddr = normalizeEmail(emailAddr)

	user, err := e.repo.FindUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.hasher.Verify(pass, password.DummyHash)
			e.metricInc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.DeletedAt != nil {
		// Deletion is masked as a credentials failure.
		e.hasher.Verify(pass, password.DummyHash)
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		e.metricInc(MetricLoginFailure)
		return nil, ErrAccountInactive
	}

	now := e.now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		e.metricInc(MetricLoginFailure)
		return nil, lockedError(*user.LockedUntil)
	}

	storedHash := user.PasswordHash
	if storedHash == "" {
		// No password set: burn the same work, always fail.
		storedHash = password.DummyHash
	}

	if !e.hasher.Verify(pass, storedHash) || user.PasswordHash == "" {
		if err := e.recordFailedAttempt(ctx, user, now); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	e.maybeUpgradeHash(ctx, user, pass)

	zero := 0
	if err := e.repo.UpdateLoginStats(ctx, user.ID, LoginStats{
		FailedLoginAttempts: &zero,
		ClearLockedUntil:    true,
		LastLoginAt:         &now,
	}); err != nil {
		return nil, err
	}

	tokens, _, err := e.startSession(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	return tokens, nil
}

func (e *Engine) recordFailedAttempt(ctx context.Context, user *User, now time.Time) error {
	attempts := user.FailedLoginAttempts + 1
	stats := LoginStats{FailedLoginAttempts: &attempts}
	if attempts >= e.config.Lockout.MaxAttempts {
		until := now.Add(e.config.Lockout.LockDuration)
		stats.LockedUntil = &until
		e.metricInc(MetricAccountLocked)
	}
	return e.repo.UpdateLoginStats(ctx, user.ID, stats)
}

// maybeUpgradeHash rehashes after a successful verification when the stored
// hash was produced with weaker parameters. Best-effort: it must not block
// login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *User, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.hasher.Hash(pass)
	if err != nil {
		e.logger.Warn("authcore: password hash upgrade generation failed", "error", err)
		return
	}
	if err := e.repo.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		e.logger.Warn("authcore: password hash upgrade update failed", "error", err)
	}
}
