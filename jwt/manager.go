package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config controls access-token minting and verification. Secret is the
// HS256 signing key; Issuer and Audience are stamped into and enforced on
// every token.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// Manager mints and parses signed access tokens. Tokens are stateless:
// validity is fully determined by signature and expiry, independent of any
// session state.
type Manager struct {
	config Config
}

// AccessClaims is the payload carried by an access token.
type AccessClaims struct {
	UserID    int64  `json:"userId"`
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt: secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("jwt: invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// Issue mints a short-lived HS256 access token bound to the given user,
// session, and role.
func (m *Manager) Issue(userID int64, sessionID, role string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Parse verifies signature, expiry, issuer, and audience, and returns the
// decoded claims.
func (m *Manager) Parse(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
