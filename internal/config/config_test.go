package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "opinion-engine", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, 10, cfg.Search.DefaultK)
	assert.Equal(t, 5, cfg.Cluster.DefaultNClusters)
	assert.Equal(t, "text-embedding-004", cfg.Embedding.Model)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.MySQL.MaxOpenConns)
	assert.Equal(t, 10, cfg.MySQL.MaxIdleConns)
	assert.Equal(t, 20, cfg.Redis.PoolSize)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9090

[embedding]
model = "text-embedding-3-small"
dimensions = 1536

[mysql]
host = "db.internal"
user = "engine"
password = "secret"
db = "opinions"
params = "parseTime=true"
max_open_conns = 8
max_idle_conns = 4

[redis]
pool_size = 6
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("APP_PORT", "7070")
	t.Setenv("EMBEDDING_CONCURRENCY", "8")
	t.Setenv("MYSQL_MAX_IDLE_CONNS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 8, cfg.Embedding.Concurrency)
	assert.Equal(t, "engine:secret@tcp(db.internal:3306)/opinions?parseTime=true", cfg.MySQLDSN())
	assert.Equal(t, 8, cfg.MySQL.MaxOpenConns)
	assert.Equal(t, 2, cfg.MySQL.MaxIdleConns)
	assert.Equal(t, 3600, cfg.MySQL.ConnMaxLifetimeSeconds)
	assert.Equal(t, 6, cfg.Redis.PoolSize)
}

func TestLoad_InvalidEnvKeepsFallback(t *testing.T) {
	t.Setenv("SEARCH_DEFAULT_K", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.DefaultK)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "auth without secret", env: map[string]string{"AUTH_ENABLED": "true"}},
		{name: "non-positive k", env: map[string]string{"SEARCH_DEFAULT_K": "0"}},
		{name: "non-positive clusters", env: map[string]string{"CLUSTER_DEFAULT_N_CLUSTERS": "-1"}},
		{name: "empty model", env: map[string]string{"EMBEDDING_MODEL": ""}},
		{name: "unknown driver", env: map[string]string{"DATABASE_DRIVER": "postgres"}},
		{name: "zero mysql pool", env: map[string]string{"MYSQL_MAX_OPEN_CONNS": "0"}},
		{name: "idle above open", env: map[string]string{"MYSQL_MAX_IDLE_CONNS": "80"}},
		{name: "zero redis pool", env: map[string]string{"REDIS_POOL_SIZE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
			assert.Error(t, err)
		})
	}
}
