package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/keiralabs/authcore/password"
)

// Register creates a user account and its initial email-verification token
// in one transaction, then sends the verification email best-effort: mail
// failures never roll back the account. The returned user is sanitized and
// never carries the password hash.
func (e *Engine) Register(ctx context.Context, name, emailAddr, pass string) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil, &Error{Kind: KindValidation, Message: "email is required"}
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return nil, ErrPasswordPolicy
	}

	rawToken, err := password.GenerateToken()
	if err != nil {
		return nil, err
	}

	user, err := e.repo.CreateUser(ctx, NewUser{
		Name:                  name,
		Email:                 emailAddr,
		PasswordHash:          hash,
		Role:                  DefaultRole,
		VerificationTokenID:   uuid.NewString(),
		VerificationTokenHash: password.HashToken(rawToken),
		VerificationExpiresAt: e.now().Add(e.config.Tokens.VerificationTTL),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.sendVerificationEmail(ctx, user.Email, rawToken)

	return &RegisterResult{
		User:    user.Sanitized(),
		Message: "registration successful, please check your inbox to verify your email",
	}, nil
}
