package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/keiralabs/authcore/password"
)

// VerifyEmail consumes a verification token: the user's email-verified
// timestamp and the token's used timestamp are stamped in one transaction.
// The token record is kept afterward as an audit trail.
func (e *Engine) VerifyEmail(ctx context.Context, rawToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	tok, err := e.repo.FindEmailVerificationTokenByHash(ctx, password.HashToken(rawToken))
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

	if err := e.repo.ConsumeEmailVerification(ctx, tok.UserID, tok.ID); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerified)
	return nil
}

// ResendVerificationEmail issues a fresh verification token for an
// unverified account. It is silent about unknown, deleted, inactive, and
// already-verified addresses: the response never reveals whether an email is
// registered, and the unknown-address path performs the same dummy
// verification as login to keep timing flat.
func (e *Engine) ResendVerificationEmail(ctx context.Context, emailAddr string) error {
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
	if user.DeletedAt != nil || !user.Active || user.EmailVerifiedAt != nil {
		e.hasher.Verify(emailAddr, password.DummyHash)
		return nil
	}

	rawToken, err := password.GenerateToken()
	if err != nil {
		return err
	}

	if _, err := e.repo.CreateEmailVerificationToken(
		ctx,
		user.ID,
		uuid.NewString(),
		password.HashToken(rawToken),
		e.now().Add(e.config.Tokens.VerificationTTL),
	); err != nil {
		return err
	}

	e.sendVerificationEmail(ctx, user.Email, rawToken)
	return nil
}
