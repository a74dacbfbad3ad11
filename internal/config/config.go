package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	HTTPListenAddr string
	LogLevel       string

	// Supabase backs both the configuration store (PostgREST) and the
	// identity provider whose tokens we verify.
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// ServicesBasePath is the directory on the host under which every
	// service's compose project lives.
	ServicesBasePath string

	// ServicesFile optionally points at a YAML registry that replaces
	// the built-in service definitions.
	ServicesFile string

	BetterStackSourceToken string
	BetterStackIngestHost  string

	Services   map[string]Service
	Categories []string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPListenAddr:         getEnv("HTTP_LISTEN_ADDR", ":8100"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		ServicesBasePath:       getEnv("SERVICES_BASE_PATH", "/root"),
		ServicesFile:           getEnv("SERVICES_FILE", ""),
		BetterStackSourceToken: getEnv("BETTERSTACK_SOURCE_TOKEN", ""),
		BetterStackIngestHost:  getEnv("BETTERSTACK_INGEST_HOST", ""),
	}

	if cfg.ServicesFile != "" {
		reg, err := LoadRegistry(cfg.ServicesFile)
		if err != nil {
			return nil, fmt.Errorf("load service registry: %w", err)
		}
		cfg.Services = reg.Services
		cfg.Categories = reg.Categories
	} else {
		cfg.Services = defaultServices()
		cfg.Categories = defaultCategories()
	}

	return cfg, nil
}

// Validate reports every missing required credential in one error so a
// misconfigured deployment fails with the full list at startup.
func (c *Config) Validate() error {
	var missing []string
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.SupabaseServiceKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_KEY")
	}
	if c.SupabaseJWTSecret == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("service registry is empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
