package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds handshake and abuse-control settings.
type SecurityConfig struct {
	// SigningSecrets verify handshake tokens locally before any external
	// verifier is consulted.
	SigningSecrets []string `yaml:"signing_secrets"`
	// VerifierURL is the external identity provider fallback; empty
	// disables the fallback.
	VerifierURL     string   `yaml:"verifier_url"`
	VerifierTimeout Duration `yaml:"verifier_timeout"`
	CORS            struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// GatewayConfig holds socket transport tunables.
type GatewayConfig struct {
	// HeartbeatInterval is how often the server pings idle connections.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	// PongGrace is the window after a ping in which a pong must arrive
	// before the connection is treated as dead.
	PongGrace     Duration `yaml:"pong_grace"`
	ReadLimit     int64    `yaml:"read_limit"`
	SendBuffer    int      `yaml:"send_buffer"`
	MaxBodyLength int      `yaml:"max_body_length"`
}

// TasksConfig controls the fire-and-forget runner.
type TasksConfig struct {
	Workers  int `yaml:"workers"`
	Capacity int `yaml:"capacity"`
}

// SweepConfig holds configuration for the scheduled maintenance runner.
type SweepConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// NotificationAge prunes read notifications older than this.
	NotificationAge Duration `yaml:"notification_age"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Addr returns the host:port listen address from server config.
func (c *Config) Addr() string {
	if c == nil {
		return ""
	}
	host := c.Server.Address
	if host == "" && c.Server.Port == 0 {
		return ""
	}
	if strings.Contains(host, ":") && c.Server.Port == 0 {
		return host
	}
	return fmt.Sprintf("%s:%d", host, c.Server.Port)
}

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
