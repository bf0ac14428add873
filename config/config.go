// Package config loads AgentFlow runtime configuration from defaults, an
// optional YAML file and AGENTFLOW_ environment variables, in that order of
// precedence (later sources win).
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// AGENTFLOW_MODEL_PROVIDER=anthropic sets model.provider.
const EnvPrefix = "AGENTFLOW_"

// Config is the root configuration document.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Model     ModelConfig     `koanf:"model"`
	Runner    RunnerConfig    `koanf:"runner"`
	Store     StoreConfig     `koanf:"store"`
	MCP       MCPConfig       `koanf:"mcp"`
	Workflows WorkflowsConfig `koanf:"workflows"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// ModelConfig selects the language model provider.
type ModelConfig struct {
	Provider string `koanf:"provider"` // openai, anthropic, mock
	Name     string `koanf:"name"`     // provider model id; empty uses the adapter default
	// APIKeyEnv names the environment variable holding the credential; the
	// key itself never lives in config files.
	APIKeyEnv string `koanf:"api_key_env"`
}

// RunnerConfig mirrors runner.Options limits.
type RunnerConfig struct {
	MaxConcurrentInvocations int  `koanf:"max_concurrent_invocations"`
	EventBufferSize          int  `koanf:"event_buffer_size"`
	MaxModelCalls            int  `koanf:"max_model_calls"`
	EnableStreaming          bool `koanf:"enable_streaming"`
}

// StoreConfig selects the session/artifact persistence backend.
type StoreConfig struct {
	Backend string `koanf:"backend"` // memory, sqlite
	DSN     string `koanf:"dsn"`     // sqlite file path
}

// MCPConfig describes the external MCP tool server to proxy.
type MCPConfig struct {
	Command        string   `koanf:"command"`
	Args           []string `koanf:"args"`
	TimeoutSeconds int      `koanf:"timeout_seconds"`
	// ToolFilter keeps only the named remote tools; empty keeps all.
	ToolFilter []string `koanf:"tool_filter"`
}

// WorkflowsConfig tunes the packaged workflows.
type WorkflowsConfig struct {
	// LargeOrderThreshold is the container count above which
	// place_shipping_order suspends for human approval.
	LargeOrderThreshold int `koanf:"large_order_threshold"`
	// LoopMaxIterations caps the story refinement loop.
	LoopMaxIterations int `koanf:"loop_max_iterations"`
	// BulkImageThreshold is the image count above which
	// generate_images_with_approval suspends for approval.
	BulkImageThreshold int `koanf:"bulk_image_threshold"`
	// CodeCommand is the interpreter the calculation workflow pipes
	// model-written snippets into.
	CodeCommand string `koanf:"code_command"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Exporter    string `koanf:"exporter"` // stdout, otlp
	Endpoint    string `koanf:"endpoint"` // otlp gRPC target
	Insecure    bool   `koanf:"insecure"` // plaintext gRPC, for local collectors
	ServiceName string `koanf:"service_name"`
}

// Load builds the configuration: defaults, then the YAML file at path (when
// non-empty), then AGENTFLOW_ environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// AGENTFLOW_MODEL_PROVIDER -> model.provider. Only the first underscore
	// becomes a separator so multi-word keys like max_model_calls survive.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in configuration without touching files or the
// environment.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults alone cannot fail to parse.
		panic(err)
	}
	return cfg
}

func envKeyMapper(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 1 {
		return key
	}
	return parts[0] + "." + parts[1]
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":  "info",
		"log.format": "json",

		"model.provider":    "openai",
		"model.name":        "",
		"model.api_key_env": "OPENAI_API_KEY",

		"runner.max_concurrent_invocations": 10,
		"runner.event_buffer_size":          100,
		"runner.max_model_calls":            100,
		"runner.enable_streaming":           true,

		"store.backend": "memory",
		"store.dsn":     "agentflow.db",

		"mcp.command":         "npx",
		"mcp.args":            []string{"-y", "@modelcontextprotocol/server-everything"},
		"mcp.timeout_seconds": 30,
		"mcp.tool_filter":     []string{"getTinyImage"},

		"workflows.large_order_threshold": 5,
		"workflows.loop_max_iterations":   2,
		"workflows.bulk_image_threshold":  1,
		"workflows.code_command":          "python3",

		"telemetry.enabled":      false,
		"telemetry.exporter":     "stdout",
		"telemetry.endpoint":     "localhost:4317",
		"telemetry.insecure":     true,
		"telemetry.service_name": "agentflow",
	}
}

func (c *Config) validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}

	switch c.Store.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Telemetry.Exporter {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("unknown telemetry exporter %q", c.Telemetry.Exporter)
	}

	if c.Runner.EventBufferSize <= 0 {
		return fmt.Errorf("runner.event_buffer_size must be positive, got %d", c.Runner.EventBufferSize)
	}

	return nil
}
