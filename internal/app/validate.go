package app

import (
	"fmt"
	"os"

	"chatrelay/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, CHATRELAY_DB_PATH env, or server.db_path in config")
	}

	// TLS cert/key must come in pairs
	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	// handshake verification needs at least one path to succeed
	if len(eff.Config.Security.SigningSecrets) == 0 && eff.Config.Security.VerifierURL == "" {
		return fmt.Errorf("no token verification configured: set security.signing_secrets or security.verifier_url")
	}

	return nil
}
