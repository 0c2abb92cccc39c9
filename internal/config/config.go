// Package config loads Serial Keel's runtime configuration the way the
// original server did: an embedded JSON default, optionally replaced by
// a file on disk, with os.ExpandEnv substitution followed by a small set
// of named environment variable overrides for the settings operators
// most commonly need to flip without editing a file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const defaultConfig = `{
  "server": {
    "host": "0.0.0.0",
    "port": 3002,
    "readTimeout": 10,
    "writeTimeout": 10,
    "maxMessageSize": 65536
  },
  "websocket": {
    "checkOrigin": true,
    "path": "/client",
    "outboundQueueSize": 64
  },
  "endpoints": [],
  "groups": [],
  "mocks": {
    "visibility": "shared"
  },
  "identity": {
    "jwtSecret": "change-me-in-production",
    "tokenExpiration": 3600,
    "anonymousLabel": "anonymous"
  },
  "eventbus": {
    "enabled": false,
    "url": "nats://localhost:4222",
    "subjectPrefix": "serialkeel",
    "maxReconnects": 10,
    "reconnectWaitMs": 1000,
    "reconnectJitterMs": 200
  },
  "metrics": {
    "enablePrometheus": true,
    "metricsPath": "/metrics",
    "systemPath": "/metrics/system",
    "updateIntervalSeconds": 5
  }
}`

// EndpointConfig describes one real TTY device or a mock endpoint slot
// the directory should know about at startup.
type EndpointConfig struct {
	Kind     string   `json:"kind"`     // "tty" or "mock"
	Name     string   `json:"name"`
	Device   string   `json:"device"`   // required for kind "tty"
	BaudRate int      `json:"baudRate"` // required for kind "tty"
	Labels   []string `json:"labels"`
}

// GroupConfig describes a named collection of endpoints that are
// controlled as a single unit.
type GroupConfig struct {
	ID      string   `json:"id"`
	Members []string `json:"members"` // endpoint names, matched against EndpointConfig.Name
	Labels  []string `json:"labels"`
}

// Config is the fully parsed, environment-resolved runtime configuration.
type Config struct {
	Server struct {
		Host           string `json:"host"`
		Port           int    `json:"port"`
		ReadTimeout    int    `json:"readTimeout"`
		WriteTimeout   int    `json:"writeTimeout"`
		MaxMessageSize int64  `json:"maxMessageSize"`
	} `json:"server"`

	WebSocket struct {
		CheckOrigin       bool   `json:"checkOrigin"`
		Path              string `json:"path"`
		OutboundQueueSize int    `json:"outboundQueueSize"`
	} `json:"websocket"`

	Endpoints []EndpointConfig `json:"endpoints"`
	Groups    []GroupConfig    `json:"groups"`

	Mocks struct {
		Visibility string `json:"visibility"` // "shared" or "per_session"
	} `json:"mocks"`

	Identity struct {
		JWTSecret       string `json:"jwtSecret"`
		TokenExpiration int    `json:"tokenExpiration"`
		AnonymousLabel  string `json:"anonymousLabel"`
	} `json:"identity"`

	EventBus struct {
		Enabled           bool   `json:"enabled"`
		URL               string `json:"url"`
		SubjectPrefix     string `json:"subjectPrefix"`
		MaxReconnects     int    `json:"maxReconnects"`
		ReconnectWaitMs   int    `json:"reconnectWaitMs"`
		ReconnectJitterMs int    `json:"reconnectJitterMs"`
	} `json:"eventbus"`

	Metrics struct {
		EnablePrometheus      bool   `json:"enablePrometheus"`
		MetricsPath           string `json:"metricsPath"`
		SystemPath            string `json:"systemPath"`
		UpdateIntervalSeconds int    `json:"updateIntervalSeconds"`
	} `json:"metrics"`
}

// Load reads configuration from configPath if non-empty, otherwise from
// the embedded default, expands ${VAR} references against the process
// environment, then applies a handful of named environment overrides.
func Load(configPath string) (*Config, error) {
	var data []byte
	var err error

	if configPath != "" {
		data, err = os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	} else {
		data = []byte(defaultConfig)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	applyEnvOverrides(&cfg)

	if cfg.WebSocket.OutboundQueueSize <= 0 {
		cfg.WebSocket.OutboundQueueSize = 64
	}
	if cfg.Mocks.Visibility == "" {
		cfg.Mocks.Visibility = "shared"
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("SERIALKEEL_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if secret := os.Getenv("SERIALKEEL_JWT_SECRET"); secret != "" {
		cfg.Identity.JWTSecret = secret
	}
	if url := os.Getenv("SERIALKEEL_EVENTBUS_URL"); url != "" {
		cfg.EventBus.URL = url
	}
	if v := os.Getenv("SERIALKEEL_EVENTBUS_ENABLED"); v == "true" {
		cfg.EventBus.Enabled = true
	} else if v == "false" {
		cfg.EventBus.Enabled = false
	}
	if v := os.Getenv("SERIALKEEL_ENABLE_PROMETHEUS"); v == "false" {
		cfg.Metrics.EnablePrometheus = false
	} else if v == "true" {
		cfg.Metrics.EnablePrometheus = true
	}
}
