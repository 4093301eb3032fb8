package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatrelay/pkg/models"
)

const defaultVerifyTimeout = 5 * time.Second

// HTTPVerifier asks an external identity provider to validate a token.
type HTTPVerifier struct {
	URL    string
	Client *http.Client
}

// NewHTTPVerifier builds the external fallback; timeout zero uses the
// default.
func NewHTTPVerifier(url string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	return &HTTPVerifier{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Verify posts the token and expects the provider to return the profile.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (models.Profile, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return models.Profile{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, bytes.NewReader(body))
	if err != nil {
		return models.Profile{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := v.Client.Do(req)
	if err != nil {
		return models.Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Profile{}, fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}
	var p models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return models.Profile{}, fmt.Errorf("invalid verifier response: %w", err)
	}
	if p.UserID == "" {
		return models.Profile{}, fmt.Errorf("verifier response missing user id")
	}
	return p, nil
}
