package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestAddr(t *testing.T) {
	c := &Config{}
	if got := c.Addr(); got != "" {
		t.Fatalf("empty config addr = %q", got)
	}
	c.Server.Address = "127.0.0.1"
	c.Server.Port = 8080
	if got := c.Addr(); got != "127.0.0.1:8080" {
		t.Fatalf("addr = %q", got)
	}
	c = &Config{}
	c.Server.Address = ":9090"
	if got := c.Addr(); got != ":9090" {
		t.Fatalf("addr = %q", got)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var out struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: 250ms\nb: 30\n"), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.A.Duration() != 250*time.Millisecond {
		t.Fatalf("a = %v", out.A.Duration())
	}
	// bare numbers are seconds
	if out.B.Duration() != 30*time.Second {
		t.Fatalf("b = %v", out.B.Duration())
	}
	if err := yaml.Unmarshal([]byte("a: nonsense\n"), &out); err == nil {
		t.Fatalf("invalid duration accepted")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  address: "0.0.0.0"
  port: 8080
  db_path: /data/chatrelay
security:
  signing_secrets: ["s1", "s2"]
  verifier_url: "http://accounts.local/verify"
  rate_limit:
    rps: 10
    burst: 20
gateway:
  heartbeat_interval: 15s
  send_buffer: 64
sweep:
  enabled: true
  cron: "0 3 * * *"
  notification_age: 720h
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if len(cfg.Security.SigningSecrets) != 2 {
		t.Fatalf("secrets = %v", cfg.Security.SigningSecrets)
	}
	if cfg.Gateway.HeartbeatInterval.Duration() != 15*time.Second {
		t.Fatalf("heartbeat = %v", cfg.Gateway.HeartbeatInterval.Duration())
	}
	if !cfg.Sweep.Enabled || cfg.Sweep.Cron != "0 3 * * *" {
		t.Fatalf("sweep = %+v", cfg.Sweep)
	}
	if cfg.Sweep.NotificationAge.Duration() != 720*time.Hour {
		t.Fatalf("notification_age = %v", cfg.Sweep.NotificationAge.Duration())
	}
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("CHATRELAY_ADDR", "10.0.0.1:9000")
	t.Setenv("CHATRELAY_DB_PATH", "/data/db")
	t.Setenv("CHATRELAY_SIGNING_SECRETS", "a, b ,c")
	t.Setenv("CHATRELAY_RATE_RPS", "12.5")
	t.Setenv("CHATRELAY_RATE_BURST", "25")

	cfg, res := ParseConfigEnvs()
	if !res.EnvUsed {
		t.Fatalf("env not detected")
	}
	if cfg.Server.Address != "10.0.0.1" || cfg.Server.Port != 9000 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Server.DBPath != "/data/db" {
		t.Fatalf("db path = %q", cfg.Server.DBPath)
	}
	if len(cfg.Security.SigningSecrets) != 3 || cfg.Security.SigningSecrets[1] != "b" {
		t.Fatalf("secrets = %v", cfg.Security.SigningSecrets)
	}
	if cfg.Security.RateLimit.RPS != 12.5 || cfg.Security.RateLimit.Burst != 25 {
		t.Fatalf("rate limit = %+v", cfg.Security.RateLimit)
	}
	if _, ok := res.SigningSecrets["c"]; !ok {
		t.Fatalf("secret set = %v", res.SigningSecrets)
	}
}

func TestLoadEffectiveConfigSources(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "file-host"
	fileCfg.Server.Port = 1000
	fileCfg.Server.DBPath = "/file/db"

	envCfg := &Config{}
	envCfg.Server.Address = "env-host"
	envCfg.Server.Port = 2000
	envCfg.Server.DBPath = "/env/db"

	// explicit --config requires the file
	flags := Flags{Config: "/missing.yaml", Set: map[string]bool{"config": true}}
	if _, err := LoadEffectiveConfig(flags, fileCfg, false, envCfg, EnvResult{}); err == nil {
		t.Fatalf("missing explicit config accepted")
	}
	eff, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if eff.Source != "config" || eff.Addr != "file-host:1000" || eff.DBPath != "/file/db" {
		t.Fatalf("eff = %+v", eff)
	}

	// addr/db flags win
	flags = Flags{Addr: ":7070", DB: "/flag/db", Set: map[string]bool{"addr": true, "db": true}}
	eff, err = LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if eff.Source != "flags" || eff.Addr != ":7070" || eff.DBPath != "/flag/db" {
		t.Fatalf("eff = %+v", eff)
	}

	// no flags, file present
	flags = Flags{Set: map[string]bool{}}
	eff, _ = LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
	if eff.Source != "config" {
		t.Fatalf("source = %s", eff.Source)
	}

	// no flags, no file: env
	eff, _ = LoadEffectiveConfig(flags, &Config{}, false, envCfg, EnvResult{EnvUsed: true})
	if eff.Source != "env" || eff.Addr != "env-host:2000" {
		t.Fatalf("eff = %+v", eff)
	}
}
