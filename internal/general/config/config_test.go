package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  user: app
  password: secret
  database: tracking
rabbitmq:
  user: guest
  password: guest
jwt:
  secret_key: test-secret
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 5672, cfg.RabbitMQ.Port)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 3002, cfg.Service.Port)
	require.Equal(t, 9091, cfg.Service.MetricsPort)
	require.Equal(t, "https://exp.host/--/api/v2", cfg.Push.BaseURL)
	require.Equal(t, 100, cfg.Push.ChunkSize)
	require.Equal(t, 300, cfg.Push.ReceiptChunkSize)
}

func TestLoadFromFile_ExplicitValuesWin(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
service:
  port: 4000
  metrics_port: 9999
push:
  chunk_size: 25
`))
	require.NoError(t, err)

	require.Equal(t, 4000, cfg.Service.Port)
	require.Equal(t, 9999, cfg.Service.MetricsPort)
	require.Equal(t, 25, cfg.Push.ChunkSize)
}

func TestLoadFromFile_AggregatesValidationProblems(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, `
database:
  user: app
push:
  chunk_size: 500
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "database.password is required")
	require.Contains(t, err.Error(), "rabbitmq.user is required")
	require.Contains(t, err.Error(), "push.chunk_size must be in 1..100")
	require.Contains(t, err.Error(), "jwt.secret_key is required")
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFromFile_BadYAML(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "database: [not a map"))
	require.Error(t, err)
}
