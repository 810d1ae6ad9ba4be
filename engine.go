package authcore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keiralabs/authcore/jwt"
	"github.com/keiralabs/authcore/password"
)

// DefaultRole is assigned to every registered user. Authorization beyond a
// role string is out of scope for this subsystem.
const DefaultRole = "user"

// Engine orchestrates the auth flows against a [Repository] and a
// [Notifier]. Construct it through [Builder.Build]; afterward it is
// immutable and safe for concurrent use.
type Engine struct {
	config     Config
	repo       Repository
	hasher     *password.Argon2
	jwtManager *jwt.Manager
	mail       *mailDispatcher
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Close drains and stops the async mail worker. It is idempotent and safe on
// a nil engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.mail != nil {
		e.mail.Close()
	}
}

// MailDropped reports how many emails were discarded because the mail buffer
// was full.
func (e *Engine) MailDropped() uint64 {
	if e == nil || e.mail == nil {
		return 0
	}
	return e.mail.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.repo == nil || e.hasher == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	return nil
}

// startSession creates a session row for the user and mints the token pair.
// The raw refresh token leaves this method exactly once, inside the returned
// AuthTokens; only its digest reaches the repository.
func (e *Engine) startSession(ctx context.Context, user *User, userAgent, ipAddress string) (*AuthTokens, *Session, error) {
	raw, err := password.GenerateToken()
	if err != nil {
		return nil, nil, err
	}

	sess, err := e.repo.CreateSession(ctx, NewSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: password.HashToken(raw),
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: e.now().Add(e.config.Session.RefreshTTL),
	})
	if err != nil {
		return nil, nil, err
	}

	access, err := e.jwtManager.Issue(user.ID, sess.ID, user.Role)
	if err != nil {
		return nil, nil, err
	}

	return &AuthTokens{AccessToken: access, RefreshToken: raw}, sess, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
