package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("JWT_EXPIRATION", "30m")
	t.Setenv("SEED_CATALOG", "false")
	t.Setenv("CHANNEL_POOL_SIZE", "not-a-number")
	t.Setenv("JANITOR_RETRY_DELAY", "10s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.JWTExpiration)
	assert.False(t, cfg.SeedCatalog)
	assert.Equal(t, 4, cfg.ChannelPoolSize)
	assert.Equal(t, BackendDisk, cfg.ImageBackend)
	assert.Equal(t, 10*time.Second, cfg.JanitorRetryDelay)
	assert.Equal(t, time.Minute, cfg.JanitorMaxRetryDelay)
}

func TestLoad_YAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
database_url: postgres://yaml/shop
image_timeout: 2s
janitor_max_attempts: 7
`), 0o600))
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "postgres://yaml/shop", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Second, cfg.ImageTimeout)
	assert.Equal(t, 7, cfg.JanitorMaxAttempts)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_URL=postgres://dotenv/shop\n"), 0o600))
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/shop", cfg.DatabaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	assert.EqualError(t, cfg.Validate(), "DATABASE_URL is required")

	cfg.DatabaseURL = "postgres://x"
	cfg.ImageBackend = BackendCloudinary
	assert.Error(t, cfg.Validate())

	cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret = "demo", "k", "s"
	assert.NoError(t, cfg.Validate())

	cfg.JanitorRetryDelay = -time.Second
	assert.Error(t, cfg.Validate())
	cfg.JanitorRetryDelay = time.Second

	cfg.ImageBackend = "s3"
	assert.Error(t, cfg.Validate())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
