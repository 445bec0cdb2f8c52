package server

// config.go loads the runtime configuration of the HTTP surface.
// Values layer as defaults -> file -> environment

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the service
type Config struct {
	Server ServerConfig `json:"server"`
	Proxy  ProxyConfig  `json:"proxy"`
	Files  FilesConfig  `json:"files"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// ProxyConfig points the explanation proxy at its upstream
// generateContent-style API
type ProxyConfig struct {
	UpstreamURL    string `json:"upstream_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// FilesConfig names the optional description files an experiment is
// assembled from.  Extension selects yaml or json
type FilesConfig struct {
	Locations string `json:"locations"`
	Sim       string `json:"sim"`
	TraceOut  string `json:"trace_out"`
}

// LoadConfig loads configuration from defaults, then an optional json
// file, then environment overrides
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
			AllowedOrigins: []string{
				"http://localhost:5173",
			},
		},
		Proxy: ProxyConfig{
			UpstreamURL:    "https://generativelanguage.googleapis.com/v1beta/models",
			TimeoutSeconds: 30,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if port := os.Getenv("CALLSIM_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid CALLSIM_PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if host := os.Getenv("CALLSIM_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if upstream := os.Getenv("CALLSIM_PROXY_UPSTREAM"); upstream != "" {
		cfg.Proxy.UpstreamURL = upstream
	}

	return cfg, nil
}

// Addr gives the listen address in host:port form
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
