// Package config loads process-wide configuration for cmd/platformd: a
// YAML file overlaid with environment variables. No other package in this
// module reads configuration directly — everything else is wired
// explicitly through constructor options by the entrypoint.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is every external dependency the core assumes per spec §6: a
// database URL, an object-store endpoint with credentials and the two
// bucket names it reads/writes (agents, storage), a shared-cache URL, a
// broker URL (may coincide with the cache), and a secret-store URL plus
// token.
type Config struct {
	DatabaseURL string `yaml:"database_url"`

	ObjectStoreEndpoint  string `yaml:"object_store_endpoint"`
	ObjectStoreAccessKey string `yaml:"object_store_access_key"`
	ObjectStoreSecretKey string `yaml:"object_store_secret_key"`
	ObjectStoreUseTLS    bool   `yaml:"object_store_use_tls"`
	AgentsBucket         string `yaml:"agents_bucket"`
	StorageBucket        string `yaml:"storage_bucket"`

	CacheURL        string `yaml:"cache_url"`
	BrokerURL       string `yaml:"broker_url"`
	SessionStoreURL string `yaml:"session_store_url"`

	SecretStoreURL   string `yaml:"secret_store_url"`
	SecretStoreToken string `yaml:"secret_store_token"`

	HTTPAddr          string `yaml:"http_addr"`
	WorkerConcurrency int    `yaml:"worker_concurrency"`
}

// Default returns a Config with the development-friendly defaults a fresh
// checkout can run against without any environment set.
func Default() Config {
	return Config{
		DatabaseURL:          "sqlite:///./platform.db",
		ObjectStoreEndpoint:  "localhost:9000",
		ObjectStoreAccessKey: "platform",
		ObjectStoreSecretKey: "platform-secret",
		AgentsBucket:         "platform-agents",
		StorageBucket:        "platform-storage",
		CacheURL:             "localhost:6379",
		BrokerURL:            "localhost:6379",
		SessionStoreURL:      "mongodb://localhost:27017",
		SecretStoreURL:       "localhost:8200",
		SecretStoreToken:     "",
		HTTPAddr:             ":8080",
		WorkerConcurrency:    4,
	}
}

// Load reads path as YAML over the defaults, then applies environment
// overrides (highest precedence). An empty path skips the file read and
// starts from Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.DatabaseURL, "PLATFORM_DATABASE_URL")
	overrideString(&cfg.ObjectStoreEndpoint, "PLATFORM_OBJECT_STORE_ENDPOINT")
	overrideString(&cfg.ObjectStoreAccessKey, "PLATFORM_OBJECT_STORE_ACCESS_KEY")
	overrideString(&cfg.ObjectStoreSecretKey, "PLATFORM_OBJECT_STORE_SECRET_KEY")
	overrideBool(&cfg.ObjectStoreUseTLS, "PLATFORM_OBJECT_STORE_USE_TLS")
	overrideString(&cfg.AgentsBucket, "PLATFORM_AGENTS_BUCKET")
	overrideString(&cfg.StorageBucket, "PLATFORM_STORAGE_BUCKET")
	overrideString(&cfg.CacheURL, "PLATFORM_CACHE_URL")
	overrideString(&cfg.BrokerURL, "PLATFORM_BROKER_URL")
	overrideString(&cfg.SessionStoreURL, "PLATFORM_SESSION_STORE_URL")
	overrideString(&cfg.SecretStoreURL, "PLATFORM_SECRET_STORE_URL")
	overrideString(&cfg.SecretStoreToken, "PLATFORM_SECRET_STORE_TOKEN")
	overrideString(&cfg.HTTPAddr, "PLATFORM_HTTP_ADDR")
	overrideInt(&cfg.WorkerConcurrency, "PLATFORM_WORKER_CONCURRENCY")
}

func overrideString(field *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*field = v
	}
}

func overrideBool(field *bool, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err == nil {
		*field = parsed
	}
}

func overrideInt(field *int, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err == nil {
		*field = parsed
	}
}
