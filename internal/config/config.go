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

// Config holds the navsearch API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Budget      BudgetConfig      `yaml:"budget"`
	Cache       CacheConfig       `yaml:"cache"`
	Search      SearchConfig      `yaml:"search"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
	Registry    RegistryConfig    `yaml:"registry"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds the query classifier provider settings.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	TimeoutSec     int     `yaml:"timeout_sec"`
	MaxRetries     int     `yaml:"max_retries"`
	Temperature    float32 `yaml:"temperature"`
	MaxOutputToken int     `yaml:"max_output_tokens"`
}

// EmbeddingConfig holds embedding provider and worker settings.
type EmbeddingConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	Workers      int    `yaml:"workers"`
	QueueSize    int    `yaml:"queue_size"`
	SweepSec     int    `yaml:"sweep_interval_sec"`
	HNSWM        int    `yaml:"hnsw_m"`
	HNSWEFConstr int    `yaml:"hnsw_ef_construction"`
}

// BudgetConfig caps provider token spend across the embedding and
// reasoning chains. Zero limits disable the tracker.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	Action            string `yaml:"action"` // warn or reject
}

// CacheConfig holds the classification cache settings.
type CacheConfig struct {
	TTLSec        int `yaml:"ttl_sec"`
	MemoryEntries int `yaml:"memory_entries"`
	LogCap        int `yaml:"search_log_cap"`
}

// SearchConfig holds hybrid search executor settings.
type SearchConfig struct {
	MinSimilarity float64 `yaml:"min_similarity"`
	DefaultLimit  int     `yaml:"default_limit"`
	MaxLimit      int     `yaml:"max_limit"`
}

// EnforcementConfig holds the semantic enforcement trigger lists.
// The shipped defaults are a heuristic, not a measured rule set; both lists
// are expected to be tuned per deployment.
type EnforcementConfig struct {
	TriggerPhrases []string `yaml:"trigger_phrases"`
	DomainKeywords []string `yaml:"domain_keywords"`
}

// RegistryConfig points at the navigation targets file.
type RegistryConfig struct {
	TargetsPath string `yaml:"targets_path"`
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

// DefaultTriggerPhrases are linking phrases that signal a semantic query.
var DefaultTriggerPhrases = []string{
	"related to", "about", "involving", "regarding", "similar to", "concerning",
}

// DefaultDomainKeywords are portal-domain terms that under-trigger semantic
// mode in the classifier when paraphrased.
var DefaultDomainKeywords = []string{
	"payment", "payments", "ach", "wire", "transfer", "settlement",
	"regression", "smoke", "integration", "onboarding", "reconciliation",
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
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 8
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > 1 {
		c.LLM.MaxRetries = 1
	}
	if c.LLM.MaxOutputToken <= 0 {
		c.LLM.MaxOutputToken = 512
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.Workers <= 0 {
		c.Embedding.Workers = 4
	}
	if c.Embedding.QueueSize <= 0 {
		c.Embedding.QueueSize = 1024
	}
	if c.Embedding.SweepSec <= 0 {
		c.Embedding.SweepSec = 300
	}
	if c.Embedding.HNSWM <= 0 {
		c.Embedding.HNSWM = 16
	}
	if c.Embedding.HNSWEFConstr <= 0 {
		c.Embedding.HNSWEFConstr = 200
	}
	if c.Budget.Action == "" {
		c.Budget.Action = "warn"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.MemoryEntries <= 0 {
		c.Cache.MemoryEntries = 2048
	}
	if c.Cache.LogCap <= 0 {
		c.Cache.LogCap = 10000
	}
	if c.Search.MinSimilarity <= 0 {
		c.Search.MinSimilarity = 0.5
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if len(c.Enforcement.TriggerPhrases) == 0 {
		c.Enforcement.TriggerPhrases = DefaultTriggerPhrases
	}
	if len(c.Enforcement.DomainKeywords) == 0 {
		c.Enforcement.DomainKeywords = DefaultDomainKeywords
	}
	if c.Registry.TargetsPath == "" {
		c.Registry.TargetsPath = filepath.Join("config", "targets.yaml")
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Budget.Action != "warn" && c.Budget.Action != "reject" {
		return fmt.Errorf("budget.action must be warn or reject, got %q", c.Budget.Action)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be in [0,1], got %g", c.Search.MinSimilarity)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit %d exceeds max_limit %d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
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
