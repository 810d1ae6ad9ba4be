package authcore

import (
	"context"
	"fmt"
	"net/url"
)

// Outbound mail composition. Raw one-time tokens appear only in these
// bodies; everywhere else the engine handles digests.

func (e *Engine) sendVerificationEmail(ctx context.Context, to, rawToken string) {
	if e.mail == nil {
		e.logger.Warn("authcore: notifier not configured, dropping verification email")
		return
	}
	e.mail.Enqueue(ctx, email{
		to:      to,
		subject: "Verify your email address",
		body: fmt.Sprintf(
			"Welcome! Please verify your email address by following this link:\n\n%s\n\nThe link expires in %s.",
			e.tokenLink(e.config.Mail.VerifyURL, rawToken),
			e.config.Tokens.VerificationTTL,
		),
	})
}

func (e *Engine) sendPasswordResetEmail(ctx context.Context, to, rawToken string) {
	if e.mail == nil {
		e.logger.Warn("authcore: notifier not configured, dropping password reset email")
		return
	}
	e.mail.Enqueue(ctx, email{
		to:      to,
		subject: "Reset your password",
		body: fmt.Sprintf(
			"A password reset was requested for your account. Follow this link to choose a new password:\n\n%s\n\nThe link expires in %s. If you did not request this, you can ignore this email.",
			e.tokenLink(e.config.Mail.ResetURL, rawToken),
			e.config.Tokens.ResetTTL,
		),
	})
}

func (e *Engine) sendPasswordChangedEmail(ctx context.Context, to string) {
	if e.mail == nil {
		return
	}
	e.mail.Enqueue(ctx, email{
		to:      to,
		subject: "Your password was changed",
		body:    "The password for your account was just changed. All active sessions have been signed out. If this was not you, reset your password immediately.",
	})
}

// tokenLink appends the raw token to the configured base URL, or falls back
// to the bare token when no URL is configured.
func (e *Engine) tokenLink(base, rawToken string) string {
	if base == "" {
		return rawToken
	}
	return base + "?token=" + url.QueryEscape(rawToken)
}
