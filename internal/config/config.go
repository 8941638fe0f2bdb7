package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/nidhogg/honeycomb/internal/provider"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Providers   []ProviderConfig  `json:"providers" yaml:"providers"`
	Routing     RoutingConfig     `json:"routing" yaml:"routing"`
	Agents      AgentsConfig      `json:"agents" yaml:"agents"`
	Coordinator CoordinatorConfig `json:"coordinator" yaml:"coordinator"`
	Notify      NotifyConfig      `json:"notify" yaml:"notify"`
}

type ServerConfig struct {
	Port     int    `json:"port" yaml:"port"`
	LogLevel string `json:"log_level" yaml:"log_level"`
}

type StorageConfig struct {
	Driver     string `json:"driver" yaml:"driver"` // json, memory, sqlite or postgres
	Path       string `json:"path" yaml:"path"`
	DSN        string `json:"dsn" yaml:"dsn"`
	Migrations string `json:"migrations" yaml:"migrations"`
}

type ProviderConfig struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	Name     string   `json:"name" yaml:"name"`
	Endpoint string   `json:"endpoint" yaml:"endpoint"`
	APIKey   string   `json:"api_key" yaml:"api_key"`
	Models   []string `json:"models,omitempty" yaml:"models,omitempty"`
	Timeout  Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Provider converts the entry into the provider package's config.
func (p ProviderConfig) Provider() provider.ProviderConfig {
	return provider.ProviderConfig{
		ID:       p.ID,
		Type:     p.Type,
		Name:     p.Name,
		Endpoint: p.Endpoint,
		APIKey:   p.APIKey,
		Models:   p.Models,
		Timeout:  time.Duration(p.Timeout),
	}
}

// RoutingConfig maps specialties to provider ids.
type RoutingConfig struct {
	Default   string              `json:"default" yaml:"default"`
	Routes    map[string]string   `json:"routes" yaml:"routes"`
	Fallbacks map[string][]string `json:"fallbacks" yaml:"fallbacks"`
}

type AgentsConfig struct {
	Workdir string            `json:"workdir" yaml:"workdir"`
	Models  map[string]string `json:"models" yaml:"models"` // specialty → model
	Startup []AgentSpec       `json:"startup" yaml:"startup"`
}

// AgentSpec is an agent registered when the server starts.
type AgentSpec struct {
	Name      string `json:"name" yaml:"name"`
	Specialty string `json:"specialty" yaml:"specialty"`
}

// DefaultTaskTimeout applies when task_timeout is not set at all.
const DefaultTaskTimeout = 5 * time.Minute

type CoordinatorConfig struct {
	// TaskTimeout is nil when unset; an explicit zero disables the deadline.
	TaskTimeout   *Duration `json:"task_timeout" yaml:"task_timeout"`
	SweepInterval Duration  `json:"sweep_interval" yaml:"sweep_interval"`
}

// Timeout returns the per-task deadline, zero meaning none.
func (c CoordinatorConfig) Timeout() time.Duration {
	if c.TaskTimeout == nil {
		return DefaultTaskTimeout
	}
	return time.Duration(*c.TaskTimeout)
}

type NotifyConfig struct {
	RedisURL       string `json:"redis_url" yaml:"redis_url"`
	SlackWebhook   string `json:"slack_webhook" yaml:"slack_webhook"`
	SlackToken     string `json:"slack_token" yaml:"slack_token"`
	SlackChannel   string `json:"slack_channel" yaml:"slack_channel"`
	DiscordToken   string `json:"discord_token" yaml:"discord_token"`
	DiscordChannel string `json:"discord_channel" yaml:"discord_channel"`
}

// Duration accepts either a Go duration string ("30s") or nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) set(v any) error {
	switch x := v.(type) {
	case string:
		if x == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(x)
	case int:
		*d = Duration(x)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// credentials are the well-known provider API key variables.
type credentials struct {
	OpenAI    string `envconfig:"OPENAI_API_KEY"`
	Anthropic string `envconfig:"ANTHROPIC_API_KEY"`
}

// overrides are read from HONEYCOMB_* variables and win over the file.
type overrides struct {
	Port          int            `envconfig:"PORT"`
	LogLevel      string         `envconfig:"LOG_LEVEL"`
	StorageDriver string         `envconfig:"STORAGE_DRIVER"`
	StoragePath   string         `envconfig:"STORAGE_PATH"`
	DatabaseURL   string         `envconfig:"DATABASE_URL"`
	Workdir       string         `envconfig:"WORKDIR"`
	SweepInterval time.Duration  `envconfig:"SWEEP_INTERVAL"`
	TaskTimeout   *time.Duration `envconfig:"TASK_TIMEOUT"`
	RedisURL      string         `envconfig:"REDIS_URL"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "development"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "json"
	}
	if cfg.Storage.Migrations == "" {
		cfg.Storage.Migrations = "migrations"
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = []ProviderConfig{
			{ID: "openai", Type: "openai", Name: "OpenAI"},
			{ID: "anthropic", Type: "anthropic", Name: "Anthropic"},
		}
		if cfg.Routing.Routes == nil && cfg.Routing.Fallbacks == nil {
			cfg.Routing.Routes = map[string]string{"research": "anthropic"}
			cfg.Routing.Fallbacks = map[string][]string{"research": {"openai"}}
		}
	}
	if cfg.Routing.Default == "" {
		cfg.Routing.Default = cfg.Providers[0].ID
	}
	if cfg.Agents.Startup == nil {
		cfg.Agents.Startup = []AgentSpec{
			{Name: "WriteBot", Specialty: "writing"},
			{Name: "CodeBot", Specialty: "coding"},
			{Name: "ResearchBot", Specialty: "research"},
			{Name: "CommandBot", Specialty: "command"},
			{Name: "SummaryBot", Specialty: "context_summary"},
		}
	}
}

// Load reads a JSON or YAML config file, substitutes environment variable
// references and applies environment overrides. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		// Substitute ${VAR} and ${VAR:default} with environment values.
		resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
			parts := envVarRe.FindStringSubmatch(match)
			name := parts[1]
			defaultVal := parts[2]
			if v := os.Getenv(name); v != "" {
				return v
			}
			return defaultVal
		})
		if err := decode(path, []byte(resolved), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyDefaults(cfg)

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func applyEnv(cfg *Config) error {
	var creds credentials
	if err := envconfig.Process("", &creds); err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKey != "" {
			continue
		}
		switch p.Type {
		case "anthropic":
			p.APIKey = creds.Anthropic
		case "openai", "":
			p.APIKey = creds.OpenAI
		}
	}

	var o overrides
	if err := envconfig.Process("honeycomb", &o); err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.LogLevel != "" {
		cfg.Server.LogLevel = o.LogLevel
	}
	if o.StorageDriver != "" {
		cfg.Storage.Driver = o.StorageDriver
	}
	if o.StoragePath != "" {
		cfg.Storage.Path = o.StoragePath
	}
	if o.DatabaseURL != "" {
		cfg.Storage.DSN = o.DatabaseURL
	}
	if o.Workdir != "" {
		cfg.Agents.Workdir = o.Workdir
	}
	if o.SweepInterval != 0 {
		cfg.Coordinator.SweepInterval = Duration(o.SweepInterval)
	}
	if o.TaskTimeout != nil {
		d := Duration(*o.TaskTimeout)
		cfg.Coordinator.TaskTimeout = &d
	}
	if o.RedisURL != "" {
		cfg.Notify.RedisURL = o.RedisURL
	}
	return nil
}
