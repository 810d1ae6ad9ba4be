package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	te := newTestEngine(t)
	te.register(t, "Alice", "alice@example.com", "CorrectHorseBattery1!")

	tokens := te.login(t, "ALICE@example.com", "CorrectHorseBattery1!")

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("token pair incomplete")
	}

	payload, err := te.ParseAccessToken(tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if payload.Role != DefaultRole {
		t.Errorf("role = %q", payload.Role)
	}

	user := te.repo.userByEmail(t, "alice@example.com")
	if user.LastLoginAt == nil {
		t.Error("last login not stamped")
	}
	if user.FailedLoginAttempts != 0 {
		t.Errorf("failed attempts = %d", user.FailedLoginAttempts)
	}
}

func TestLoginStoresTokenDigestOnly(t *testing.T) {
	te := newTestEngine(t)
	te.register(t, "Alice", "alice@example.com", "CorrectHorseBattery1!")

	tokens := te.login(t, "alice@example.com", "CorrectHorseBattery1!")

	te.repo.mu.Lock()
	defer te.repo.mu.Unlock()
	for _, s := range te.repo.sessions {
		if s.TokenHash == tokens.RefreshToken {
			t.Fatal("raw refresh token persisted")
		}
		if strings.Contains(s.TokenHash, tokens.RefreshToken) {
			t.Fatal("raw refresh token embedded in stored hash")
		}
	}
}

func TestLoginUnknownEmailAndWrongPasswordShareError(t *testing.T) {
	te := newTestEngine(t)
	te.register(t, "Alice", "alice@example.com", "CorrectHorseBattery1!")

	_, errUnknown := te.Login(context.Background(), "nobody@example.com", "CorrectHorseBattery1!", "", "")
	_, errWrong := te.Login(context.Background(), "alice@example.com", "WrongPassword99!", "", "")

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Errorf("unknown email: %v", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	te := newTestEngine(t)
	user := te.register(t, "Alice", "alice@example.com", "CorrectHorseBattery1!")

	te.repo.mu.Lock()
	te.repo.users[user.ID].Active = false
	te.repo.mu.Unlock()

	_, err := te.Login(context.Background(), "alice@example.com", "CorrectHorseBattery1!", "", "")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("err = %v, want ErrAccountInactive", err)
	}
}

func TestLoginSoftDeletedMaskedAsInvalidCredentials(t *testing.T) {
	te := newTestEngine(t)
	user := te.register(t, "Alice", "alice@example.com", "CorrectHorseBattery1!")

	now := time.Now().UTC()
	te.repo.mu.Lock()
	te.repo.users[user.ID].DeletedAt = &now
	te.repo.mu.Unlock()

	_, err := te.Login(context.Background(), "alice@example.com", "CorrectHorseBattery1!", "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("deleted account must look like bad credentials, got %v", err)
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	te := newTestEngine(t)
	te.register(t, "Alice", "alice@example.com", "CorrectHorseBattery1!")

	max := te.config.Lockout.MaxAttempts
	for i := 0; i < max; i++ {
		_, err := te.Login(context.Background(), "alice@example.com", "WrongPassword99!", "", "")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	// Even the correct password is rejected while the window is open, and
	// the error says locked, not invalid.
	_, err := te.Login(context.Background(), "alice@example.com", "CorrectHorseBattery1!", "", "")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
	if KindOf(err) != KindForbidden {
		t.Errorf("kind = %v, want KindForbidden", KindOf(err))
	}

	// The window closes with time; login works again.
	te.clock.Advance(te.config.Lockout.LockDuration + time.Second)
	if _, err := te.Login(context.Background(), "alice@example.com", "CorrectHorseBattery1!", "", ""); err != nil {
		t.Fatalf("login after lockout window: %v", err)
	}

	user := te.repo.userByEmail(t, "alice@example.com")
	if user.FailedLoginAttempts != 0 || user.LockedUntil != nil {
		t.Errorf("lockout state not cleared: attempts=%d locked=%v",
			user.FailedLoginAttempts, user.LockedUntil)
	}
}

func TestLoginFailureShortOfLimitDoesNotLock(t *testing.T) {
	te := newTestEngine(t)
	te.register(t, "Alice", "alice@example.com", "CorrectHorseBattery1!")

	for i := 0; i < te.config.Lockout.MaxAttempts-1; i++ {
		te.Login(context.Background(), "alice@example.com", "WrongPassword99!", "", "")
	}

	if _, err := te.Login(context.Background(), "alice@example.com", "CorrectHorseBattery1!", "", ""); err != nil {
		t.Fatalf("login below lockout threshold: %v", err)
	}
}

func TestLoginPasswordlessAccountAlwaysFails(t *testing.T) {
	te := newTestEngine(t)
	user := te.register(t, "Alice", "alice@example.com", "CorrectHorseBattery1!")

	te.repo.mu.Lock()
	te.repo.users[user.ID].PasswordHash = ""
	te.repo.mu.Unlock()

	_, err := te.Login(context.Background(), "alice@example.com", "", "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}
