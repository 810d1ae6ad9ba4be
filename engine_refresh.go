package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/keiralabs/authcore/password"
)

// Refresh exchanges a raw refresh token for a fresh access/refresh pair,
// rotating the session: the old session is revoked and exactly one
// replacement is created atomically. A reused (already rotated-out) token
// therefore finds no active session and is rejected, which is what makes a
// stolen-then-replayed refresh token detectable.
func (e *Engine) Refresh(ctx context.Context, rawToken, userAgent, ipAddress string) (*AuthTokens, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if rawToken == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	sess, err := e.repo.FindActiveSessionByHash(ctx, password.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	now := e.now()
	if now.After(sess.ExpiresAt) {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrSessionExpired
	}
	if sess.RevokedAt != nil || sess.DeletedAt != nil {
		// The lookup filters these out; kept as a distinct failure for
		// race safety.
		e.metricInc(MetricRefreshFailure)
		return nil, ErrSessionRevoked
	}

	user, err := e.repo.FindUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	newRaw, err := password.GenerateToken()
	if err != nil {
		return nil, err
	}

	// Client metadata carries forward unless the caller overrides it.
	if userAgent == "" {
		userAgent = sess.UserAgent
	}
	if ipAddress == "" {
		ipAddress = sess.IPAddress
	}

	next, err := e.repo.RotateSession(ctx, sess.ID, NewSession{
		ID:        uuid.NewString(),
		UserID:    sess.UserID,
		TokenHash: password.HashToken(newRaw),
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: now.Add(e.config.Session.RefreshTTL),
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost a concurrent rotation race: the session was revoked
			// between lookup and rotation.
			e.metricInc(MetricRefreshFailure)
			return nil, ErrSessionRevoked
		}
		return nil, err
	}

	access, err := e.jwtManager.Issue(user.ID, next.ID, user.Role)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	return &AuthTokens{AccessToken: access, RefreshToken: newRaw}, nil
}

// Logout revokes the session referenced by the authenticated caller's token
// payload. Idempotent: revoking an already-revoked session is not an error.
// The caller's access token stays technically valid until its own short
// expiry; that is accepted behavior, not a bug.
func (e *Engine) Logout(ctx context.Context, payload TokenPayload) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.repo.RevokeSession(ctx, payload.SessionID); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	return nil
}
