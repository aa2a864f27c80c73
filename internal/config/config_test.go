package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("ledgerlens-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8000" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Warehouse.Driver != "pgx" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if cfg.Warehouse.TargetTable != "account_statement" {
		t.Fatalf("Warehouse.TargetTable = %q", cfg.Warehouse.TargetTable)
	}
	if cfg.Warehouse.AccountColumn != "STATEMENT_FOR_ACC" {
		t.Fatalf("Warehouse.AccountColumn = %q", cfg.Warehouse.AccountColumn)
	}
	if cfg.AI.MaxIterations != 3 {
		t.Fatalf("AI.MaxIterations = %d", cfg.AI.MaxIterations)
	}
	if cfg.Examples.K != 5 {
		t.Fatalf("Examples.K = %d", cfg.Examples.K)
	}
	if cfg.ObjectStore.Enabled {
		t.Fatal("ObjectStore.Enabled should default to false")
	}
	if cfg.CORS.AllowedOrigins != "*" {
		t.Fatalf("CORS.AllowedOrigins = %q", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("ledgerlens-api", mapLookup(map[string]string{"LEDGERLENS_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.CORS.AllowedOrigins != "" {
		t.Fatalf("CORS.AllowedOrigins = %q, want empty", cfg.CORS.AllowedOrigins)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadTestProfileUsesHashEmbeddings(t *testing.T) {
	cfg, err := Load("ledgerlens-api", mapLookup(map[string]string{"LEDGERLENS_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Fatalf("Embedding.Provider = %q", cfg.Embedding.Provider)
	}
	if cfg.HTTP.Address != ":18000" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"LEDGERLENS_PROFILE":                 "test",
		"LEDGERLENS_SERVICE_NAME":            "ledgerlens-custom",
		"LEDGERLENS_HTTP_ADDR":               ":9999",
		"LEDGERLENS_HTTP_READ_TIMEOUT":       "2s",
		"LEDGERLENS_WAREHOUSE_DRIVER":        "duckdb",
		"LEDGERLENS_WAREHOUSE_DSN":           "/tmp/ledger.duckdb",
		"LEDGERLENS_WAREHOUSE_MAX_OPEN_CONNS": "42",
		"LEDGERLENS_WAREHOUSE_TARGET_TABLE":  "statements",
		"LEDGERLENS_AI_PROVIDER":             "ollama",
		"LEDGERLENS_AI_BASE_URL":             "http://localhost:11434",
		"LEDGERLENS_AI_MODEL":                "gemma:2b",
		"LEDGERLENS_AI_TEMPERATURE":          "0.3",
		"LEDGERLENS_AI_TIMEOUT":              "21s",
		"LEDGERLENS_AI_MAX_ITERATIONS":       "5",
		"LEDGERLENS_EMBEDDING_PROVIDER":      "hash",
		"LEDGERLENS_EMBEDDING_DIMENSIONS":    "128",
		"LEDGERLENS_EXAMPLES_PATH":           "ex.csv",
		"LEDGERLENS_EXAMPLES_K":              "7",
		"LEDGERLENS_OBJECTSTORE_ENABLED":     "true",
		"LEDGERLENS_OBJECTSTORE_BUCKET":      "ledger-prod",
		"LEDGERLENS_IMPORT_MAX_UPLOAD_BYTES": "1024",
		"LEDGERLENS_UI_STATIC_DIR":           "frontend/build",
		"LEDGERLENS_LOG_LEVEL":               "error",
		"LEDGERLENS_AUTH_REQUIRED":           "true",
		"LEDGERLENS_AUTH_STATIC_KEYS":        "k1:ops:query_reader",
	})
	cfg, err := Load("ledgerlens-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "ledgerlens-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" || cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Warehouse.Driver != "duckdb" || cfg.Warehouse.DSN != "/tmp/ledger.duckdb" {
		t.Fatalf("Warehouse = %+v", cfg.Warehouse)
	}
	if cfg.Warehouse.MaxOpenConns != 42 {
		t.Fatalf("Warehouse.MaxOpenConns = %d", cfg.Warehouse.MaxOpenConns)
	}
	if cfg.Warehouse.TargetTable != "statements" {
		t.Fatalf("Warehouse.TargetTable = %q", cfg.Warehouse.TargetTable)
	}
	if cfg.AI.Provider != "ollama" || cfg.AI.Model != "gemma:2b" {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.AI.MaxIterations != 5 {
		t.Fatalf("AI.MaxIterations = %d", cfg.AI.MaxIterations)
	}
	if cfg.Embedding.Dimensions != 128 {
		t.Fatalf("Embedding.Dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.Examples.Path != "ex.csv" || cfg.Examples.K != 7 {
		t.Fatalf("Examples = %+v", cfg.Examples)
	}
	if !cfg.ObjectStore.Enabled || cfg.ObjectStore.Bucket != "ledger-prod" {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if cfg.Import.MaxUploadBytes != 1024 {
		t.Fatalf("Import.MaxUploadBytes = %d", cfg.Import.MaxUploadBytes)
	}
	if cfg.UI.StaticDir != "frontend/build" {
		t.Fatalf("UI.StaticDir = %q", cfg.UI.StaticDir)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k1:ops:query_reader" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"LEDGERLENS_PROFILE": "oops"},
		{"LEDGERLENS_HTTP_READ_TIMEOUT": "NaN"},
		{"LEDGERLENS_WAREHOUSE_MAX_OPEN_CONNS": "oops"},
		{"LEDGERLENS_WAREHOUSE_DRIVER": "sqlite"},
		{"LEDGERLENS_WAREHOUSE_TARGET_TABLE": ""},
		{"LEDGERLENS_AI_PROVIDER": "hal9000"},
		{"LEDGERLENS_AI_TEMPERATURE": "bad"},
		{"LEDGERLENS_AI_MAX_ITERATIONS": "0"},
		{"LEDGERLENS_EMBEDDING_PROVIDER": "faiss"},
		{"LEDGERLENS_IMPORT_MAX_UPLOAD_BYTES": "lots"},
		{"LEDGERLENS_AUTH_REQUIRED": "not-bool"},
		{"LEDGERLENS_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("ledgerlens-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestLoadFromEnvReadsDotenvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "ledgerlens.env")
	if err := os.WriteFile(envPath, []byte("LEDGERLENS_EXAMPLES_K=9\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("LEDGERLENS_ENV_FILE", envPath)
	t.Setenv("LEDGERLENS_PROFILE", "test")
	t.Cleanup(func() { _ = os.Unsetenv("LEDGERLENS_EXAMPLES_K") })

	cfg, err := LoadFromEnv("ledgerlens-api")
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Examples.K != 9 {
		t.Fatalf("Examples.K = %d, want 9", cfg.Examples.K)
	}
}

func TestLoadFromEnvToleratesMissingDotenvFile(t *testing.T) {
	t.Setenv("LEDGERLENS_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("LEDGERLENS_PROFILE", "test")
	if _, err := LoadFromEnv("ledgerlens-api"); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadPicksProviderBaseURL(t *testing.T) {
	tests := map[string]string{
		"openai":    "https://api.openai.com",
		"ollama":    "http://localhost:11434",
		"anthropic": "",
	}
	for provider, want := range tests {
		cfg, err := Load("ledgerlens-api", mapLookup(map[string]string{"LEDGERLENS_AI_PROVIDER": provider}))
		if err != nil {
			t.Fatalf("Load(%s) error = %v", provider, err)
		}
		if cfg.AI.BaseURL != want {
			t.Fatalf("AI.BaseURL for %s = %q, want %q", provider, cfg.AI.BaseURL, want)
		}
	}
}
