package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/keiralabs/authcore/jwt"
	"github.com/keiralabs/authcore/password"
)

// Builder assembles an [Engine]. Configure it with the With* methods and
// call [Builder.Build] exactly once.
type Builder struct {
	config   Config
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time

	built bool
}

// New returns a Builder with an empty configuration; Build applies defaults
// via [Config.Normalize].
func New() *Builder {
	return &Builder{}
}

// WithConfig sets the engine configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRepository sets the persistence backend. Mandatory.
func (b *Builder) WithRepository(repo Repository) *Builder {
	b.repo = repo
	return b
}

// WithNotifier sets the mail transport. When omitted, verification and reset
// emails are dropped with a warning instead of failing operations.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the engine's time source. Tests use this to step
// through lockout windows and token expiries.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration, constructs the crypto primitives, and
// returns a ready Engine. The Builder cannot be reused.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.repo == nil {
		return nil, errors.New("repository is required")
	}

	cfg := b.config
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret:    []byte(cfg.JWT.Secret),
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	metrics := NewMetrics()

	e := &Engine{
		config:     cfg,
		repo:       b.repo,
		hasher:     hasher,
		jwtManager: jwtManager,
		mail:       newMailDispatcher(cfg.Mail, b.notifier, logger, metrics),
		metrics:    metrics,
		logger:     logger,
		now:        clock,
	}

	b.built = true
	return e, nil
}
