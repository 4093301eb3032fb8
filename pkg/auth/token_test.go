package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatrelay/pkg/events"
	"chatrelay/pkg/models"
)

func TestSignVerifyLocal(t *testing.T) {
	secrets := map[string]struct{}{"s3cret": {}}
	a := NewAuthenticator(secrets, nil)

	tok, err := SignToken(Claims{UserID: "alice", Email: "a@example.com", Role: "buyer"}, "s3cret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := a.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "alice" || p.Email != "a@example.com" || p.Role != "buyer" {
		t.Fatalf("profile mismatch: %+v", p)
	}
}

func TestVerifyBearerPrefix(t *testing.T) {
	a := NewAuthenticator(map[string]struct{}{"k": {}}, nil)
	tok, err := SignToken(Claims{UserID: "alice"}, "k")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := a.Verify(context.Background(), "Bearer "+tok); err != nil {
		t.Fatalf("bearer-prefixed token rejected: %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	a := NewAuthenticator(map[string]struct{}{"right": {}}, nil)
	tok, err := SignToken(Claims{UserID: "alice"}, "wrong")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := a.Verify(context.Background(), tok); !errors.Is(err, events.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	a := NewAuthenticator(map[string]struct{}{"k": {}}, nil)
	a.now = func() time.Time { return time.Unix(2000, 0) }

	tok, err := SignToken(Claims{UserID: "alice", Exp: 1000}, "k")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := a.Verify(context.Background(), tok); !errors.Is(err, events.ErrAuthentication) {
		t.Fatalf("expected authentication error for expired token, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	a := NewAuthenticator(map[string]struct{}{"k": {}}, nil)
	for _, tok := range []string{"", "nodot", ".sigonly", "body."} {
		if _, err := a.Verify(context.Background(), tok); !errors.Is(err, events.ErrAuthentication) {
			t.Fatalf("token %q: expected authentication error, got %v", tok, err)
		}
	}
}

type stubVerifier struct {
	userID string
	err    error
}

func (s stubVerifier) Verify(_ context.Context, _ string) (models.Profile, error) {
	if s.err != nil {
		return models.Profile{}, s.err
	}
	return models.Profile{UserID: s.userID}, nil
}

func TestVerifyExternalFallback(t *testing.T) {
	a := NewAuthenticator(map[string]struct{}{"k": {}}, stubVerifier{userID: "bob"})
	// a token no local secret signed falls through to the external verifier
	tok, err := SignToken(Claims{UserID: "bob"}, "other")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := a.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("fallback verify: %v", err)
	}
	if p.UserID != "bob" {
		t.Fatalf("profile = %+v", p)
	}
}

func TestLimiterPool(t *testing.T) {
	p := NewLimiterPool(1, 2)
	if !p.Allow("conn-1") || !p.Allow("conn-1") {
		t.Fatalf("burst should admit two events")
	}
	if p.Allow("conn-1") {
		t.Fatalf("third immediate event should be limited")
	}
	// other connections are limited independently
	if !p.Allow("conn-2") {
		t.Fatalf("fresh connection limited")
	}
	p.Forget("conn-1")
	if !p.Allow("conn-1") {
		t.Fatalf("forgotten connection should start with a fresh bucket")
	}
}
