package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "netdoc.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Inventory.StrictConnect)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NETDOC_DATABASE_DRIVER", "postgres")
	t.Setenv("NETDOC_DATABASE_DSN", "host=db user=netdoc dbname=netdoc")
	t.Setenv("NETDOC_SERVER_HTTP_PORT", "9090")
	t.Setenv("NETDOC_INVENTORY_STRICT_CONNECT", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=db user=netdoc dbname=netdoc", cfg.Database.DSN)
	assert.Equal(t, "9090", cfg.Server.HTTPPort)
	assert.True(t, cfg.Inventory.StrictConnect)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: mysql
  dsn: "netdoc:secret@tcp(db:3306)/netdoc?parseTime=true"
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "8080", cfg.Server.HTTPPort, "defaults fill the gaps")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"in memory", Config{Server: ServerConfig{HTTPPort: "80"}}, false},
		{"sqlite", Config{Server: ServerConfig{HTTPPort: "80"}, Database: DatabaseConfig{Driver: "sqlite", DSN: "x.db"}}, false},
		{"unknown driver", Config{Server: ServerConfig{HTTPPort: "80"}, Database: DatabaseConfig{Driver: "oracle", DSN: "x"}}, true},
		{"driver without dsn", Config{Server: ServerConfig{HTTPPort: "80"}, Database: DatabaseConfig{Driver: "mysql"}}, true},
		{"no port", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
