package authcore

import (
	"context"
	"errors"
)

// GetProfile returns the sanitized user record for an authenticated subject.
func (e *Engine) GetProfile(ctx context.Context, userID int64) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user.Sanitized(), nil
}

// ParseAccessToken verifies a bearer token and returns the identity it
// asserts. Verification is purely cryptographic: expiry, signature, issuer
// and audience are checked, but no session lookup is made, so a token stays
// valid until it expires even after logout.
func (e *Engine) ParseAccessToken(tokenStr string) (*TokenPayload, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.jwtManager.Parse(tokenStr)
	if err != nil {
		return nil, ErrAccessTokenInvalid
	}

	return &TokenPayload{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Role:      claims.Role,
	}, nil
}
