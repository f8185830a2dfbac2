package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Addrs: []string{"localhost:6379"}},
		LLM:       LLMConfig{Model: "gpt-4o-mini"},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small"},
		Budget:    BudgetConfig{Action: "warn"},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port

		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d: expected error", port)
		}
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingModels(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing llm model")
	}

	cfg = validConfig()
	cfg.Embedding.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing embedding model")
	}
}

func TestValidate_MinSimilarityRange(t *testing.T) {
	cfg := validConfig()
	cfg.Search.MinSimilarity = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min_similarity out of range")
	}
}

func TestValidate_DefaultLimitExceedsMax(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultLimit = 200
	cfg.Search.MaxLimit = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for default_limit > max_limit")
	}
}

func TestValidate_BudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Budget.Action = "panic"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown budget action")
	}
}

func TestApplyDefaults_BudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Budget.Action = ""
	cfg.ApplyDefaults()

	if cfg.Budget.Action != "warn" {
		t.Errorf("budget action: got %q", cfg.Budget.Action)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.LLM.TimeoutSec != 8 {
		t.Errorf("llm timeout: got %d", cfg.LLM.TimeoutSec)
	}
	if cfg.LLM.MaxRetries != 1 {
		t.Errorf("llm max retries: got %d", cfg.LLM.MaxRetries)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("embedding dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Workers != 4 || cfg.Embedding.QueueSize != 1024 {
		t.Errorf("embedding workers/queue: got %d/%d", cfg.Embedding.Workers, cfg.Embedding.QueueSize)
	}
	if cfg.Cache.TTLSec != 3600 {
		t.Errorf("cache ttl: got %d", cfg.Cache.TTLSec)
	}
	if cfg.Search.MinSimilarity != 0.5 {
		t.Errorf("min similarity: got %g", cfg.Search.MinSimilarity)
	}
	if cfg.Search.DefaultLimit != 20 || cfg.Search.MaxLimit != 100 {
		t.Errorf("limits: got %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if len(cfg.Enforcement.TriggerPhrases) == 0 || len(cfg.Enforcement.DomainKeywords) == 0 {
		t.Error("enforcement defaults must be populated")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultLimit = 50
	cfg.Enforcement.TriggerPhrases = []string{"akin to"}
	cfg.ApplyDefaults()

	if cfg.Search.DefaultLimit != 50 {
		t.Errorf("explicit default_limit overwritten: %d", cfg.Search.DefaultLimit)
	}
	if len(cfg.Enforcement.TriggerPhrases) != 1 || cfg.Enforcement.TriggerPhrases[0] != "akin to" {
		t.Errorf("explicit trigger phrases overwritten: %v", cfg.Enforcement.TriggerPhrases)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("NAVSEARCH_TEST_PASSWORD", "s3cret")
	os.Unsetenv("NAVSEARCH_TEST_UNSET")

	in := []byte("password: ${NAVSEARCH_TEST_PASSWORD}\nmodel: ${NAVSEARCH_TEST_UNSET:-gpt-4o-mini}\nplain: value")
	out := string(expandEnvVars(in))

	want := "password: s3cret\nmodel: gpt-4o-mini\nplain: value"
	if out != want {
		t.Errorf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestExpandEnvVars_UnsetWithoutDefault(t *testing.T) {
	os.Unsetenv("NAVSEARCH_TEST_UNSET")

	out := string(expandEnvVars([]byte("key: ${NAVSEARCH_TEST_UNSET}")))
	if out != "key: " {
		t.Errorf("got %q", out)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}

	content := `
http:
  port: 9090
database:
  addrs: ["localhost:6379"]
llm:
  model: gpt-4o-mini
embedding:
  model: text-embedding-3-small
search:
  min_similarity: 0.6
`
	if err := os.WriteFile(filepath.Join(dir, "config", "unittest.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := Load("unittest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("port: got %d", cfg.HTTP.Port)
	}
	if cfg.Search.MinSimilarity != 0.6 {
		t.Errorf("min similarity: got %g", cfg.Search.MinSimilarity)
	}
	// Defaults fill the rest.
	if cfg.Search.DefaultLimit != 20 {
		t.Errorf("default limit: got %d", cfg.Search.DefaultLimit)
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}

	content := `
http:
  port: 9090
database:
  addrs: ["localhost:6379"]
llm:
  model: gpt-4o-mini
embedding:
  model: text-embedding-3-small
search:
  min_similarity: 2.0
`
	if err := os.WriteFile(filepath.Join(dir, "config", "broken.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	if _, err := Load("broken"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "prod")
	if env := GetEnv(); env != "prod" {
		t.Errorf("got %q", env)
	}

	os.Unsetenv("ENV")
	if env := GetEnv(); env != "local" {
		t.Errorf("got %q", env)
	}
}
