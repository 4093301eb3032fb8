package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived runtime values that other packages may
// query while the server runs (populated during startup after merging
// flags, file and env).
type RuntimeConfig struct {
	SigningSecrets map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetSigningSecrets returns a copy of the configured signing secrets.
func GetSigningSecrets() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.SigningSecrets == nil {
		return out
	}
	for k := range runtimeCfg.SigningSecrets {
		out[k] = struct{}{}
	}
	return out
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveConfigPath picks the config path: an explicit flag wins, then
// the CHATRELAY_CONFIG env var, then the provided default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("CHATRELAY_CONFIG"); v != "" {
		return v
	}
	return flagVal
}
