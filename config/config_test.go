package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pizzeria.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
web:
  port: 9090
database:
  type: postgres
  name: pizzeria
logger:
  mode: production
auth:
  jwt_secret: s3cret
  admin_password: pw
  token_ttl: 30m
`), 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "pizzeria", cfg.Database.Name)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	// untouched fields keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Web.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"PIZZERIA_WEB_PORT":       "8181",
		"PIZZERIA_DB_TYPE":        "postgres",
		"PIZZERIA_DB_DEBUG":       "true",
		"PIZZERIA_TOKEN_TTL":      "2h",
		"PIZZERIA_JWT_SECRET":     "from-env",
		"PIZZERIA_SYSTEM_NODE_ID": "7",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, 8181, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.EqualValues(t, 7, cfg.System.NodeID)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Database.Type = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Logger.Mode = "production"
	assert.Error(t, cfg.Validate(), "production without a jwt secret")
	cfg.Auth.JWTSecret = "x"
	cfg.Auth.AdminPassword = "y"
	assert.NoError(t, cfg.Validate())

	cfg.Web.Port = 0
	assert.Error(t, cfg.Validate())
}
