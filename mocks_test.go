package authcore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// memRepository is an in-memory Repository used across the engine tests. It
// mirrors the transactional semantics the production implementation
// guarantees, including the conditional revoke that arbitrates concurrent
// session rotations.
type memRepository struct {
	mu sync.Mutex

	nextUserID int64
	users      map[int64]*User
	sessions   map[string]*Session
	verifyToks map[string]*OneTimeToken
	resetToks  map[string]*OneTimeToken

	failWith error
}

func newMemRepository() *memRepository {
	return &memRepository{
		nextUserID: 1,
		users:      make(map[int64]*User),
		sessions:   make(map[string]*Session),
		verifyToks: make(map[string]*OneTimeToken),
		resetToks:  make(map[string]*OneTimeToken),
	}
}

func (r *memRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepository) FindUserByID(ctx context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if u.Email == in.Email {
			return nil, ErrDuplicateEmail
		}
	}

	now := time.Now().UTC()
	u := &User{
		ID:           r.nextUserID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.nextUserID++
	r.users[u.ID] = u

	r.verifyToks[in.VerificationTokenHash] = &OneTimeToken{
		ID:        in.VerificationTokenID,
		UserID:    u.ID,
		TokenHash: in.VerificationTokenHash,
		ExpiresAt: in.VerificationExpiresAt,
		CreatedAt: now,
	}

	cp := *u
	return &cp, nil
}

func (r *memRepository) UpdateLoginStats(ctx context.Context, id int64, stats LoginStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	if stats.FailedLoginAttempts != nil {
		u.FailedLoginAttempts = *stats.FailedLoginAttempts
	}
	if stats.ClearLockedUntil {
		u.LockedUntil = nil
	} else if stats.LockedUntil != nil {
		u.LockedUntil = stats.LockedUntil
	}
	if stats.LastLoginAt != nil {
		u.LastLoginAt = stats.LastLoginAt
	}
	return nil
}

func (r *memRepository) UpdatePasswordHash(ctx context.Context, id int64, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	u.PasswordHash = newHash
	u.PasswordChangedAt = &now
	return nil
}

func (r *memRepository) CreateSession(ctx context.Context, in NewSession) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createSessionLocked(in)
}

func (r *memRepository) createSessionLocked(in NewSession) (*Session, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	s := &Session{
		ID:        in.ID,
		UserID:    in.UserID,
		TokenHash: in.TokenHash,
		UserAgent: in.UserAgent,
		IPAddress: in.IPAddress,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	r.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *memRepository) FindActiveSessionByHash(ctx context.Context, tokenHash string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash && s.RevokedAt == nil && s.DeletedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepository) RevokeSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if s, ok := r.sessions[id]; ok && s.RevokedAt == nil {
		now := time.Now().UTC()
		s.RevokedAt = &now
	}
	return nil
}

func (r *memRepository) RevokeAllUserSessions(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	now := time.Now().UTC()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (r *memRepository) RotateSession(ctx context.Context, oldID string, in NewSession) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	old, ok := r.sessions[oldID]
	if !ok || old.RevokedAt != nil {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	old.RevokedAt = &now
	return r.createSessionLocked(in)
}

func (r *memRepository) CreateEmailVerificationToken(ctx context.Context, userID int64, id, tokenHash string, expiresAt time.Time) (*OneTimeToken, error) {
	return r.createToken(r.verifyToks, userID, id, tokenHash, expiresAt)
}

func (r *memRepository) CreatePasswordResetToken(ctx context.Context, userID int64, id, tokenHash string, expiresAt time.Time) (*OneTimeToken, error) {
	return r.createToken(r.resetToks, userID, id, tokenHash, expiresAt)
}

func (r *memRepository) createToken(m map[string]*OneTimeToken, userID int64, id, tokenHash string, expiresAt time.Time) (*OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	t := &OneTimeToken{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	m[tokenHash] = t
	cp := *t
	return &cp, nil
}

func (r *memRepository) FindEmailVerificationTokenByHash(ctx context.Context, tokenHash string) (*OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	t, ok := r.verifyToks[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRepository) ConsumeEmailVerification(ctx context.Context, userID int64, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	now := time.Now().UTC()
	if u, ok := r.users[userID]; ok && u.EmailVerifiedAt == nil {
		u.EmailVerifiedAt = &now
	}
	for _, t := range r.verifyToks {
		if t.ID == tokenID {
			t.UsedAt = &now
		}
	}
	return nil
}

func (r *memRepository) FindPasswordResetTokenByHash(ctx context.Context, tokenHash string) (*OneTimeToken, *User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, nil, r.failWith
	}
	t, ok := r.resetToks[tokenHash]
	if !ok {
		return nil, nil, ErrNotFound
	}
	u, ok := r.users[t.UserID]
	if !ok || u.DeletedAt != nil {
		return nil, nil, ErrNotFound
	}
	tc, uc := *t, *u
	return &tc, &uc, nil
}

func (r *memRepository) MarkPasswordResetTokenUsed(ctx context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	now := time.Now().UTC()
	for _, t := range r.resetToks {
		if t.ID == tokenID {
			t.UsedAt = &now
		}
	}
	return nil
}

func (r *memRepository) ResetPassword(ctx context.Context, userID int64, tokenID string, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	u.PasswordHash = newHash
	u.PasswordChangedAt = &now
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	for _, t := range r.resetToks {
		if t.ID == tokenID {
			t.UsedAt = &now
		}
	}
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

// activeSessionCount reports sessions of the user that are not revoked.
func (r *memRepository) activeSessionCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			n++
		}
	}
	return n
}

func (r *memRepository) userByEmail(t *testing.T, email string) *User {
	t.Helper()
	u, err := r.FindUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("user %s: %v", email, err)
	}
	return u
}

// sentMail is one delivery captured by captureNotifier.
type sentMail struct {
	To      string
	Subject string
	Body    string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *captureNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (n *captureNotifier) all() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMail, len(n.sent))
	copy(out, n.sent)
	return out
}

// waitForMail polls until at least n messages have been captured. The mail
// worker is async, so tests must not assert on sent counts directly.
func (n *captureNotifier) waitForMail(t *testing.T, count int) []sentMail {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := n.all(); len(got) >= count {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("mail: wanted %d messages, got %d", count, len(n.all()))
	return nil
}

func fastTestConfig() Config {
	cfg := Config{}
	cfg.JWT.Secret = strings.Repeat("s", 32)
	cfg.Normalize()
	// Cheap argon2 parameters keep the suite fast. Production defaults stay
	// on Config's Normalize path.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Mail.VerifyURL = "https://app.test/verify"
	cfg.Mail.ResetURL = "https://app.test/reset"
	return cfg
}

type testEngine struct {
	*Engine
	repo     *memRepository
	notifier *captureNotifier
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	repo := newMemRepository()
	notifier := &captureNotifier{}
	clock := newFakeClock()

	engine, err := New().
		WithConfig(fastTestConfig()).
		WithRepository(repo).
		WithNotifier(notifier).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, repo: repo, notifier: notifier, clock: clock}
}

func (e *testEngine) register(t *testing.T, name, email, pass string) *User {
	t.Helper()

	result, err := e.Register(context.Background(), name, email, pass)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return result.User
}

func (e *testEngine) login(t *testing.T, email, pass string) *AuthTokens {
	t.Helper()

	tokens, err := e.Login(context.Background(), email, pass, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return tokens
}
