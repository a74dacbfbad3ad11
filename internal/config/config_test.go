package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_LISTEN_ADDR", "")
	t.Setenv("SERVICES_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8100", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/root", cfg.ServicesBasePath)
	assert.Contains(t, cfg.Services, "mcp")
	assert.Contains(t, cfg.Services, "supabase")
	assert.True(t, cfg.Services["supabase"].MultiContainer)
	assert.Equal(t, []string{"docker-compose.yml", "docker-compose.s3.yml"}, cfg.Services["supabase"].Compose)
	assert.Contains(t, cfg.Categories, "shared")
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := &Config{Services: defaultServices()}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL")
	assert.Contains(t, err.Error(), "SUPABASE_SERVICE_KEY")
	assert.Contains(t, err.Error(), "SUPABASE_JWT_SECRET")
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{
		SupabaseURL:        "https://example.supabase.co",
		SupabaseServiceKey: "service-key",
		SupabaseJWTSecret:  "jwt-secret",
		Services:           defaultServices(),
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmptyRegistry(t *testing.T) {
	cfg := &Config{
		SupabaseURL:        "https://example.supabase.co",
		SupabaseServiceKey: "service-key",
		SupabaseJWTSecret:  "jwt-secret",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is empty")
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	data := `
services:
  web:
    dir: apps/Web
    compose: [docker-compose.yml, docker-compose.prod.yml]
  worker:
    dir: apps/Worker
categories: [shared, web]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"docker-compose.yml", "docker-compose.prod.yml"}, reg.Services["web"].Compose)
	// compose defaults to a single docker-compose.yml when omitted
	assert.Equal(t, []string{"docker-compose.yml"}, reg.Services["worker"].Compose)
	assert.Equal(t, []string{"shared", "web"}, reg.Categories)
}

func TestLoadRegistry_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  broken: {}\n"), 0o644))

	_, err := LoadRegistry(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadRegistry_NoFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
