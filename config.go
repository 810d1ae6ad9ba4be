package authcore

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the full configuration surface of the engine. A zero value
// plus [Config.Normalize] yields working development defaults; production
// deployments must at least set JWT.Secret.
//
// Config is read once at [Builder.Build] and treated as immutable afterward,
// so distinct engines can run with distinct lockout and expiry parameters.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	Tokens   TokenConfig
	Mail     MailConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token minting and verification.
type JWTConfig struct {
	Secret    string        `env:"AUTH_JWT_SECRET"`
	AccessTTL time.Duration `env:"AUTH_JWT_ACCESS_TTL"`
	Issuer    string        `env:"AUTH_JWT_ISSUER"`
	Audience  string        `env:"AUTH_JWT_AUDIENCE"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh-token grants.
type SessionConfig struct {
	RefreshTTL time.Duration `env:"AUTH_SESSION_REFRESH_TTL"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id cost parameters. Memory is in KB.
type PasswordConfig struct {
	Memory         uint32 `env:"AUTH_PASSWORD_MEMORY_KB"`
	Time           uint32 `env:"AUTH_PASSWORD_TIME"`
	Parallelism    uint8  `env:"AUTH_PASSWORD_PARALLELISM"`
	SaltLength     uint32 `env:"AUTH_PASSWORD_SALT_LENGTH"`
	KeyLength      uint32 `env:"AUTH_PASSWORD_KEY_LENGTH"`
	UpgradeOnLogin bool   `env:"AUTH_PASSWORD_UPGRADE_ON_LOGIN"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the failed-login lockout policy.
type LockoutConfig struct {
	MaxAttempts  int           `env:"AUTH_LOCKOUT_MAX_ATTEMPTS"`
	LockDuration time.Duration `env:"AUTH_LOCKOUT_DURATION"`
}

/*
====================================
ONE-TIME TOKEN CONFIG
====================================
*/

// TokenConfig controls the lifetimes of one-time tokens.
type TokenConfig struct {
	VerificationTTL time.Duration `env:"AUTH_TOKEN_VERIFICATION_TTL"`
	ResetTTL        time.Duration `env:"AUTH_TOKEN_RESET_TTL"`
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig controls the async mail dispatcher and the links embedded in
// outbound messages.
type MailConfig struct {
	VerifyURL  string `env:"AUTH_MAIL_VERIFY_URL"`
	ResetURL   string `env:"AUTH_MAIL_RESET_URL"`
	BufferSize int    `env:"AUTH_MAIL_BUFFER_SIZE"`
	DropIfFull bool   `env:"AUTH_MAIL_DROP_IF_FULL"`
}

// Normalize fills unset fields with defaults. It is called by
// [Builder.Build]; calling it again is harmless.
func (c *Config) Normalize() {
	if c.JWT.AccessTTL <= 0 {
		c.JWT.AccessTTL = 15 * time.Minute
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "authcore"
	}
	if c.JWT.Audience == "" {
		c.JWT.Audience = "authcore"
	}
	if c.Session.RefreshTTL <= 0 {
		c.Session.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.Password.Memory == 0 {
		c.Password.Memory = 64 * 1024
	}
	if c.Password.Time == 0 {
		c.Password.Time = 3
	}
	if c.Password.Parallelism == 0 {
		c.Password.Parallelism = 2
	}
	if c.Password.SaltLength == 0 {
		c.Password.SaltLength = 16
	}
	if c.Password.KeyLength == 0 {
		c.Password.KeyLength = 32
	}
	if c.Lockout.MaxAttempts <= 0 {
		c.Lockout.MaxAttempts = 5
	}
	if c.Lockout.LockDuration <= 0 {
		c.Lockout.LockDuration = 15 * time.Minute
	}
	if c.Tokens.VerificationTTL <= 0 {
		c.Tokens.VerificationTTL = 24 * time.Hour
	}
	if c.Tokens.ResetTTL <= 0 {
		c.Tokens.ResetTTL = 60 * time.Minute
	}
	if c.Mail.BufferSize <= 0 {
		c.Mail.BufferSize = 64
	}
}

// Validate reports configuration that cannot produce a safe engine.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("config: JWT.Secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL > time.Hour {
		return errors.New("config: JWT.AccessTTL must not exceed 1h")
	}
	if c.Session.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("config: Session.RefreshTTL must not be shorter than JWT.AccessTTL")
	}
	return nil
}

// ConfigFromEnv builds a Config from AUTH_* environment variables, applies
// defaults, and validates the result.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
