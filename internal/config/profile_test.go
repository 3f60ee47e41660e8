package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	t.Run("Full profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "production.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: azure
  azure:
    account_name: platformstore
    account_key: base64key
    container: public
    bundle_container: bundles
database:
  engine: mysql
  host: db.internal
  port: 3306
  user: platform
  password: dbpass
  name: platform
broker:
  password: mqpass
web:
  allowed_hosts: example.org
  site_domain: example.org
  secret_key: prodkey
logging:
  dir: /var/log/platform
  level: warn
`), 0o600))

		cfg, err := LoadProfile(path)
		require.NoError(t, err)

		assert.Equal(t, StorageAzure, cfg.Storage.Backend)
		assert.Equal(t, "platformstore", cfg.Storage.Azure.AccountName)
		assert.Equal(t, EngineMySQL, cfg.Database.Engine)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Empty(t, cfg.Validate())
	})

	t.Run("Defaults applied to sparse profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dev.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: s3
  s3:
    access_key: AKIATEST
    secret_key: secret
    bucket: bundles
web:
  debug: true
database:
  user: dev
  name: dev
broker:
  password: guest
`), 0o600))

		cfg, err := LoadProfile(path)
		require.NoError(t, err)

		assert.Equal(t, EnginePostgres, cfg.Database.Engine)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "us-east-1", cfg.Storage.S3.Region)
		assert.Equal(t, 6379, cfg.Cache.Port)
		assert.Equal(t, 8000, cfg.Web.ServerPort)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestMasked(t *testing.T) {
	cfg := validBase()
	cfg.Database.Password = "dbpass"
	cfg.Broker.Password = "mqpass"

	masked := cfg.Masked()

	assert.Equal(t, "********", masked.Storage.S3.SecretKey)
	assert.Equal(t, "********", masked.Database.Password)
	assert.Equal(t, "********", masked.Broker.Password)
	assert.Equal(t, "********", masked.Web.SecretKey)
	// Оригинал не должен меняться.
	assert.Equal(t, "dbpass", cfg.Database.Password)
	assert.Equal(t, "secret", cfg.Storage.S3.SecretKey)
}
