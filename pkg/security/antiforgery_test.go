package security

import (
	"errors"
	"testing"
	"time"
)

func newAntiforgery(t *testing.T) *Antiforgery {
	t.Helper()
	af, err := NewAntiforgery("test-secret", "paygate", 30*time.Minute)
	if err != nil {
		t.Fatalf("new antiforgery: %v", err)
	}
	return af
}

func TestMintAndVerify(t *testing.T) {
	af := newAntiforgery(t)

	token, err := af.Mint("sess-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := af.Verify(token, "sess-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsOtherSession(t *testing.T) {
	af := newAntiforgery(t)

	token, err := af.Mint("sess-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := af.Verify(token, "sess-2"); !errors.Is(err, ErrTokenSessionBound) {
		t.Fatalf("expected ErrTokenSessionBound, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	af := newAntiforgery(t)
	if err := af.Verify("not-a-jwt", "sess-1"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	af := newAntiforgery(t)
	af.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := af.Mint("sess-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	af.now = time.Now
	if err := af.Verify(token, "sess-1"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	af := newAntiforgery(t)
	other, err := NewAntiforgery("other-secret", "paygate", 30*time.Minute)
	if err != nil {
		t.Fatalf("new antiforgery: %v", err)
	}

	token, err := other.Mint("sess-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := af.Verify(token, "sess-1"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
