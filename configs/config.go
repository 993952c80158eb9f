// Package configs loads and validates the process configuration,
// following the teacher's JSON-file-plus-defaults convention
// (server/configs/config.go) generalized to this module's surface:
// server/session/dispatcher/actor/persistence/observability/transport.
package configs

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level configuration document, per spec.md §6 and
// SPEC_FULL.md's additive persistence/observability/transport fields.
type Config struct {
	Server struct {
		Host    string `json:"host"`
		TCPPort int    `json:"tcpPort"`
	} `json:"server"`

	Session struct {
		IdleReadTimeoutMs int    `json:"idleReadTimeoutMs"`
		ReconnectGraceMs  int    `json:"reconnectGraceMs"`
		OutboxCapacity    uint64 `json:"outboxCapacity"`
	} `json:"session"`

	Dispatcher struct {
		DefaultTimeoutMs int `json:"defaultTimeoutMs"`
	} `json:"dispatcher"`

	Actor struct {
		MailboxCapacity int `json:"mailboxCapacity"`
		MaxResident     int `json:"maxResident"`
		HardCap         int `json:"hardCap"`
		IdleTimeoutMs   int `json:"idleTimeoutMs"`
		SaveIntervalMs  int `json:"saveIntervalMs"`
	} `json:"actor"`

	Persistence struct {
		// Kind selects the backend: "memory", "redis", or "postgres".
		Kind      string `json:"kind"`
		RedisAddr string `json:"redisAddr"`
		DSN       string `json:"dsn"`
	} `json:"persistence"`

	Observability struct {
		MetricsAddr string `json:"metricsAddr"`
		LogLevel    string `json:"logLevel"`
	} `json:"observability"`

	Transport struct {
		WebsocketEnabled bool   `json:"websocketEnabled"`
		WebsocketAddr    string `json:"websocketAddr"`
		WebsocketPath    string `json:"websocketPath"`
	} `json:"transport"`
}

func setDefaults(cfg *Config) {
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.TCPPort = 7777

	cfg.Session.IdleReadTimeoutMs = 60_000
	cfg.Session.ReconnectGraceMs = 30_000
	cfg.Session.OutboxCapacity = 256

	cfg.Dispatcher.DefaultTimeoutMs = 5000

	cfg.Actor.MailboxCapacity = 1000
	cfg.Actor.MaxResident = 10000
	cfg.Actor.HardCap = 20000
	cfg.Actor.IdleTimeoutMs = 30 * 60_000
	cfg.Actor.SaveIntervalMs = 60_000

	cfg.Persistence.Kind = "memory"

	cfg.Observability.MetricsAddr = "0.0.0.0:9090"
	cfg.Observability.LogLevel = "info"

	cfg.Transport.WebsocketAddr = "0.0.0.0:7778"
	cfg.Transport.WebsocketPath = "/ws"
}

// Load reads and validates the configuration document at filePath,
// applying defaults for anything the file doesn't set, then a small
// set of environment overrides useful for containerized deployment.
func Load(filePath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("configs: read %s: %w", filePath, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("configs: parse %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configs: invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REALMCORE_PERSISTENCE_KIND"); v != "" {
		cfg.Persistence.Kind = v
	}
	if v := os.Getenv("REALMCORE_PERSISTENCE_REDIS_ADDR"); v != "" {
		cfg.Persistence.RedisAddr = v
	}
	if v := os.Getenv("REALMCORE_PERSISTENCE_DSN"); v != "" {
		cfg.Persistence.DSN = v
	}
	if v := os.Getenv("REALMCORE_OBSERVABILITY_METRICS_ADDR"); v != "" {
		cfg.Observability.MetricsAddr = v
	}
	if v := os.Getenv("REALMCORE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}

// validate enforces the startup-Fatal invariants of spec.md §7: an
// unknown or incompletely configured persistence backend, a
// non-positive actor.mailboxCapacity, an actor.hardCap below
// actor.maxResident, or an enabled websocket transport without an
// address fails the process before it ever accepts a connection,
// rather than surfacing as a runtime error later. Other sizing fields
// are not checked.
func validate(cfg *Config) error {
	switch cfg.Persistence.Kind {
	case "memory":
	case "redis":
		if cfg.Persistence.RedisAddr == "" {
			return fmt.Errorf("persistence.redisAddr is required when persistence.kind=redis")
		}
	case "postgres":
		if cfg.Persistence.DSN == "" {
			return fmt.Errorf("persistence.dsn is required when persistence.kind=postgres")
		}
	default:
		return fmt.Errorf("persistence.kind must be one of memory|redis|postgres, got %q", cfg.Persistence.Kind)
	}

	if cfg.Actor.MailboxCapacity <= 0 {
		return fmt.Errorf("actor.mailboxCapacity must be positive")
	}
	if cfg.Actor.HardCap < cfg.Actor.MaxResident {
		return fmt.Errorf("actor.hardCap must be >= actor.maxResident")
	}
	if cfg.Transport.WebsocketEnabled && cfg.Transport.WebsocketAddr == "" {
		return fmt.Errorf("transport.websocketAddr is required when transport.websocketEnabled=true")
	}
	return nil
}
