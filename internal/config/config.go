// Package config loads gateway and console settings from an optional YAML
// file and the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bc-dunia/threadviz/internal/auth"
	"github.com/bc-dunia/threadviz/internal/events"
	"github.com/bc-dunia/threadviz/internal/otel"
)

const (
	DefaultPort        = 8080
	DefaultAgentURL    = "http://localhost:5111"
	DefaultGatewayURL  = "http://localhost:8080/api"
	DefaultCallTimeout = 10 * time.Second
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// GatewayConfig configures cmd/gateway.
type GatewayConfig struct {
	Port     int    `yaml:"port"`
	AgentURL string `yaml:"agent_url"`
	// CallTimeoutMs bounds each call to the agent.
	CallTimeoutMs int         `yaml:"call_timeout_ms"`
	Auth          auth.Config `yaml:"auth"`
	Log           LogConfig   `yaml:"log"`
	Otel          OtelConfig  `yaml:"otel"`
}

type LogConfig struct {
	Format events.Format `yaml:"format"` // "json" or "text"
}

type OtelConfig struct {
	Exporter string `yaml:"exporter"` // none, stdout, otlp-grpc, otlp-http
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// DefaultGatewayConfig returns the settings used when nothing is configured.
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		Port:          DefaultPort,
		AgentURL:      DefaultAgentURL,
		CallTimeoutMs: int(DefaultCallTimeout / time.Millisecond),
		Auth:          auth.Config{Header: auth.DefaultHeader},
		Log:           LogConfig{Format: events.FormatJSON},
		Otel:          OtelConfig{Exporter: string(otel.ExporterNone)},
	}
}

// LoadGatewayConfig reads path over the defaults. An empty path returns the
// defaults unchanged.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	cfg := DefaultGatewayConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. A nil lookup uses
// os.LookupEnv.
func (c *GatewayConfig) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := lookup("AGENT_URL"); ok && v != "" {
		c.AgentURL = v
	}
	if v, ok := lookup("API_KEY"); ok {
		c.Auth.Secret = v
	}
	if v, ok := lookup("API_KEY_HEADER"); ok && v != "" {
		c.Auth.Header = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.Log.Format = events.Format(strings.ToLower(v))
	}
	if v, ok := lookup("OTEL_EXPORTER"); ok && v != "" {
		c.Otel.Exporter = v
	}
	if v, ok := lookup("OTEL_ENDPOINT"); ok && v != "" {
		c.Otel.Endpoint = v
	}
	return nil
}

// Validate reports the first invalid field.
func (c *GatewayConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
	}
	if err := validateBaseURL("agent_url", c.AgentURL); err != nil {
		return err
	}
	if c.CallTimeoutMs <= 0 {
		return fmt.Errorf("call_timeout_ms must be positive, got %d", c.CallTimeoutMs)
	}
	if strings.TrimSpace(c.Auth.Header) == "" {
		return fmt.Errorf("auth.header must not be empty")
	}
	switch c.Log.Format {
	case events.FormatJSON, events.FormatText:
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if _, err := otel.ParseExporterType(c.Otel.Exporter); err != nil {
		return fmt.Errorf("otel.exporter: %w", err)
	}
	return nil
}

// ListenAddr returns the address the gateway binds.
func (c *GatewayConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *GatewayConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}

// TracerConfig derives tracer settings. Tracing is enabled for any exporter
// other than none.
func (c *GatewayConfig) TracerConfig() *otel.Config {
	exporter, _ := otel.ParseExporterType(c.Otel.Exporter)
	cfg := otel.DefaultConfig()
	cfg.Enabled = exporter != otel.ExporterNone
	cfg.ExporterType = exporter
	cfg.OTLPEndpoint = c.Otel.Endpoint
	cfg.OTLPInsecure = c.Otel.Insecure
	return cfg
}

func (c *GatewayConfig) MetricsConfig() *otel.MetricsConfig {
	exporter, _ := otel.ParseExporterType(c.Otel.Exporter)
	cfg := otel.DefaultMetricsConfig()
	cfg.Enabled = exporter != otel.ExporterNone
	cfg.ExporterType = exporter
	cfg.OTLPEndpoint = c.Otel.Endpoint
	cfg.OTLPInsecure = c.Otel.Insecure
	return cfg
}

// ConsoleConfig configures cmd/console.
type ConsoleConfig struct {
	GatewayURL string
	LogFormat  events.Format
}

// LoadConsoleConfig reads THREADVIZ_GATEWAY_URL and LOG_FORMAT.
func LoadConsoleConfig(lookup LookupFunc) *ConsoleConfig {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := &ConsoleConfig{GatewayURL: DefaultGatewayURL, LogFormat: events.FormatJSON}
	if v, ok := lookup("THREADVIZ_GATEWAY_URL"); ok && v != "" {
		cfg.GatewayURL = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		cfg.LogFormat = events.Format(strings.ToLower(v))
	}
	return cfg
}

func (c *ConsoleConfig) Validate() error {
	return validateBaseURL("gateway url", c.GatewayURL)
}

func validateBaseURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host: %q", field, raw)
	}
	return nil
}
