package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the facetdex API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Source      SourceConfig      `yaml:"source"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	Rebuild     RebuildConfig     `yaml:"rebuild"`
	Query       QueryConfig       `yaml:"query"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin endpoint authentication settings.
type AuthConfig struct {
	AdminTokens []string `yaml:"admin_tokens"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SourceConfig holds catalog source connection settings.
type SourceConfig struct {
	Driver           string   `yaml:"driver"` // sqlite, redis (default: sqlite)
	Path             string   `yaml:"path"`   // sqlite database file
	Addrs            []string `yaml:"addrs"`  // redis addresses
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// DefinitionsConfig locates the classification configuration files.
type DefinitionsConfig struct {
	TaxonomyPath string `yaml:"taxonomy_path"`
	RulesPath    string `yaml:"rules_path"`
	FiltersPath  string `yaml:"filters_path"`
}

// RebuildConfig holds index rebuild settings.
type RebuildConfig struct {
	BatchSize      int  `yaml:"batch_size"`
	Workers        int  `yaml:"workers"`
	PhaseRetries   int  `yaml:"phase_retries"`
	MinIntervalSec int  `yaml:"min_interval_sec"`
	OnStartup      bool `yaml:"on_startup"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	TimeoutSec          int `yaml:"timeout_sec"`
	ExactCountThreshold int `yaml:"exact_count_threshold"`
	FacetMemoSize       int `yaml:"facet_memo_size"`
	FacetTopN           int `yaml:"facet_top_n"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Source.Driver == "" {
		c.Source.Driver = "sqlite"
	}
	if c.Source.KeyPrefix == "" {
		c.Source.KeyPrefix = "facetdex:"
	}
	if c.Source.ReadinessTimeout <= 0 {
		c.Source.ReadinessTimeout = 10
	}
	if c.Definitions.TaxonomyPath == "" {
		c.Definitions.TaxonomyPath = "config/taxonomy.yaml"
	}
	if c.Definitions.RulesPath == "" {
		c.Definitions.RulesPath = "config/rules.yaml"
	}
	if c.Definitions.FiltersPath == "" {
		c.Definitions.FiltersPath = "config/filters.yaml"
	}
	if c.Rebuild.BatchSize <= 0 {
		c.Rebuild.BatchSize = 2000
	}
	if c.Rebuild.Workers <= 0 {
		c.Rebuild.Workers = 4
	}
	if c.Rebuild.MinIntervalSec <= 0 {
		c.Rebuild.MinIntervalSec = 30
	}
	if c.Query.TimeoutSec <= 0 {
		c.Query.TimeoutSec = 5
	}
	if c.Query.ExactCountThreshold <= 0 {
		c.Query.ExactCountThreshold = 10000
	}
	if c.Query.FacetMemoSize <= 0 {
		c.Query.FacetMemoSize = 1024
	}
	if c.Query.FacetTopN <= 0 {
		c.Query.FacetTopN = 50
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Source.Driver {
	case "sqlite":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for the sqlite driver")
		}
	case "redis":
		if len(c.Source.Addrs) == 0 {
			return fmt.Errorf("source.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("source.driver must be \"sqlite\" or \"redis\", got %q", c.Source.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
