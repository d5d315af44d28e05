// Package config provides YAML-backed configuration for the procura
// service, with environment-variable overrides for deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all procura configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP gateway
	Gateway GatewayConfig `yaml:"gateway"`

	// Catalog data source (discovery collaborator)
	Catalog CatalogConfig `yaml:"catalog"`

	// Compute-scoring simulator
	Compute ComputeConfig `yaml:"compute"`

	// Symbolic engine selection
	Symbolic SymbolicConfig `yaml:"symbolic"`

	// Pipeline behavior
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig configures the HTTP/SSE gateway.
type GatewayConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// CatalogConfig configures the SQLite-backed catalog.
type CatalogConfig struct {
	DBPath   string `yaml:"db_path"`
	SeedPath string `yaml:"seed_path"` // JSON catalog file, hot-reloaded on change
	Watch    bool   `yaml:"watch"`
}

// ComputeConfig configures the compute-scoring simulator.
type ComputeConfig struct {
	FactorsPath string `yaml:"factors_path"` // optional scoring_factors JSON
}

// SymbolicConfig selects the symbolic scoring capability once at startup.
// Engine selection is configuration, not runtime feature detection.
type SymbolicConfig struct {
	Engine       string `yaml:"engine"` // "mangle" or "heuristic"
	SchemaPath   string `yaml:"schema_path"`
	QueryTimeout string `yaml:"query_timeout"`
}

// PipelineConfig bounds pipeline-side resource usage.
type PipelineConfig struct {
	StageTimeout    string `yaml:"stage_timeout"`   // per collaborator call
	EntryTTL        string `yaml:"entry_ttl"`       // correlation entry retention after terminal
	EventRetention  string `yaml:"event_retention"` // notifier stream retention after close
	EventBufferSize int    `yaml:"event_buffer_size"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug/info/warn/error
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "procura",
		Version: "1.0.0",
		Gateway: GatewayConfig{
			ListenAddr:      ":9000",
			ShutdownTimeout: "10s",
		},
		Catalog: CatalogConfig{
			DBPath:   filepath.Join(".procura", "catalog.db"),
			SeedPath: filepath.Join("data", "laptops.json"),
			Watch:    true,
		},
		Compute: ComputeConfig{},
		Symbolic: SymbolicConfig{
			Engine:       "mangle",
			SchemaPath:   "",
			QueryTimeout: "5s",
		},
		Pipeline: PipelineConfig{
			StageTimeout:    "10s",
			EntryTTL:        "10m",
			EventRetention:  "5m",
			EventBufferSize: 256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies PROCURA_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("PROCURA_LISTEN_ADDR"); addr != "" {
		c.Gateway.ListenAddr = addr
	}
	if path := os.Getenv("PROCURA_CATALOG_DB"); path != "" {
		c.Catalog.DBPath = path
	}
	if path := os.Getenv("PROCURA_CATALOG_SEED"); path != "" {
		c.Catalog.SeedPath = path
	}
	if engine := os.Getenv("PROCURA_SYMBOLIC_ENGINE"); engine != "" {
		c.Symbolic.Engine = engine
	}
	if path := os.Getenv("PROCURA_SYMBOLIC_SCHEMA"); path != "" {
		c.Symbolic.SchemaPath = path
	}
	if level := os.Getenv("PROCURA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if size := os.Getenv("PROCURA_EVENT_BUFFER"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			c.Pipeline.EventBufferSize = n
		}
	}
}

// GetStageTimeout returns the per-collaborator call timeout.
func (c *Config) GetStageTimeout() time.Duration {
	return parseDuration(c.Pipeline.StageTimeout, 10*time.Second)
}

// GetEntryTTL returns how long terminal correlation entries are retained.
func (c *Config) GetEntryTTL() time.Duration {
	return parseDuration(c.Pipeline.EntryTTL, 10*time.Minute)
}

// GetEventRetention returns how long closed event streams are retained.
func (c *Config) GetEventRetention() time.Duration {
	return parseDuration(c.Pipeline.EventRetention, 5*time.Minute)
}

// GetQueryTimeout returns the symbolic engine query timeout.
func (c *Config) GetQueryTimeout() time.Duration {
	return parseDuration(c.Symbolic.QueryTimeout, 5*time.Second)
}

// GetShutdownTimeout returns the HTTP server drain timeout.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Gateway.ShutdownTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Symbolic.Engine {
	case "mangle", "heuristic":
	default:
		return fmt.Errorf("unknown symbolic engine %q (want mangle or heuristic)", c.Symbolic.Engine)
	}
	if c.Pipeline.EventBufferSize <= 0 {
		return fmt.Errorf("event_buffer_size must be positive, got %d", c.Pipeline.EventBufferSize)
	}
	if c.Gateway.ListenAddr == "" {
		return fmt.Errorf("gateway listen_addr must not be empty")
	}
	return nil
}
