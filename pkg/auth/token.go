// Package auth verifies handshake bearer tokens. Tokens are checked
// against the locally configured signing secrets first; when no secret
// matches, verification falls back to the external identity provider.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chatrelay/pkg/events"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
)

// Claims is the signed token body.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	// Exp is a unix-seconds expiry; zero means no expiry.
	Exp int64 `json:"exp,omitempty"`
}

// Verifier resolves a token to a profile. The external identity provider
// fallback implements this.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Profile, error)
}

// Authenticator verifies tokens locally with fallback.
type Authenticator struct {
	secrets  map[string]struct{}
	fallback Verifier
	now      func() time.Time
}

// NewAuthenticator builds an Authenticator over the given signing
// secrets. fallback may be nil when no external provider is configured.
func NewAuthenticator(secrets map[string]struct{}, fallback Verifier) *Authenticator {
	return &Authenticator{secrets: secrets, fallback: fallback, now: time.Now}
}

// SignToken mints a token for the given claims with the provided secret.
// Exposed for tooling and tests; production tokens are minted by the
// account service sharing the signing secret.
func SignToken(c Claims, secret string) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(b)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return body + "." + hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify resolves the bearer token to an auth snapshot. Local secrets
// are tried first; on a miss the external verifier is consulted. Every
// failure is an events.ErrAuthentication, fatal to the connection.
func (a *Authenticator) Verify(ctx context.Context, token string) (models.Profile, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return models.Profile{}, fmt.Errorf("%w: missing token", events.ErrAuthentication)
	}

	if p, err := a.verifyLocal(token); err == nil {
		return p, nil
	}

	if a.fallback != nil {
		p, err := a.fallback.Verify(ctx, token)
		if err != nil {
			logger.Warn("external_verify_failed", "error", err)
			return models.Profile{}, fmt.Errorf("%w: token rejected", events.ErrAuthentication)
		}
		logger.Info("token_verified_external", "user", p.UserID)
		return p, nil
	}
	return models.Profile{}, fmt.Errorf("%w: token rejected", events.ErrAuthentication)
}

func (a *Authenticator) verifyLocal(token string) (models.Profile, error) {
	dot := strings.LastIndexByte(token, '.')
	if dot <= 0 || dot == len(token)-1 {
		return models.Profile{}, fmt.Errorf("malformed token")
	}
	body, sig := token[:dot], token[dot+1:]

	ok := false
	for secret := range a.secrets {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(body))
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(sig)) {
			ok = true
			break
		}
	}
	if !ok {
		return models.Profile{}, fmt.Errorf("no signing secret matched")
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return models.Profile{}, fmt.Errorf("invalid token body: %w", err)
	}
	var c Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Profile{}, fmt.Errorf("invalid token claims: %w", err)
	}
	if c.UserID == "" {
		return models.Profile{}, fmt.Errorf("token missing user id")
	}
	if c.Exp != 0 && a.now().Unix() > c.Exp {
		return models.Profile{}, fmt.Errorf("token expired")
	}
	logger.Info("token_verified_local", "user", c.UserID)
	return models.Profile{UserID: c.UserID, Email: c.Email, Name: c.Name, Role: c.Role}, nil
}
