package app

import (
	"testing"

	"chatrelay/pkg/config"
)

func baseEff() config.EffectiveConfigResult {
	cfg := &config.Config{}
	cfg.Security.SigningSecrets = []string{"s"}
	return config.EffectiveConfigResult{Config: cfg, DBPath: "/tmp/db"}
}

func TestValidateConfigOK(t *testing.T) {
	if err := validateConfig(baseEff()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateConfigMissingDB(t *testing.T) {
	eff := baseEff()
	eff.DBPath = ""
	if err := validateConfig(eff); err == nil {
		t.Fatalf("missing db path accepted")
	}
}

func TestValidateConfigHalfTLS(t *testing.T) {
	eff := baseEff()
	eff.Config.Server.TLS.CertFile = "/some/cert.pem"
	if err := validateConfig(eff); err == nil {
		t.Fatalf("cert without key accepted")
	}
}

func TestValidateConfigNoVerification(t *testing.T) {
	eff := baseEff()
	eff.Config.Security.SigningSecrets = nil
	if err := validateConfig(eff); err == nil {
		t.Fatalf("config without any token verification accepted")
	}
	eff.Config.Security.VerifierURL = "http://accounts.local/verify"
	if err := validateConfig(eff); err != nil {
		t.Fatalf("verifier-only config rejected: %v", err)
	}
}
