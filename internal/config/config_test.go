package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
general_params:
  env: test
  secret_key: s3cret
http_server_params:
  http_server_address: 127.0.0.1
  http_server_port: "9090"
main_db_params:
  db_username: u
  db_password: p
  db_name: bookclub
  db_host: db
s3_params:
  endpoint: minio:9000
  access_key_id: a
  secret_access_key: b
  bucket_name: files
summary_params:
  model: test-model
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewConfigManager_AppliesDefaults(t *testing.T) {
	cm, err := NewConfigManager(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	c := cm.GetConfig()
	require.NoError(t, c.Validate())

	assert.Equal(t, 30, c.ChatParams.DefaultDurationMinutes)
	assert.Equal(t, 3, c.ChatParams.DefaultRoundCount)
	assert.Equal(t, time.Minute, c.ChatParams.VoteWindow)
	assert.Equal(t, 2400, c.SummaryParams.TranscriptBudget)
	assert.Equal(t, "openai", c.SummaryParams.Provider)
	assert.Equal(t, 5432, c.MainDBParams.Port)
	assert.Equal(t, "127.0.0.1:9090", c.HttpServerParams.GetAddress())
	assert.Equal(t, "postgres://u:p@db:5432/bookclub?connect_timeout=5&sslmode=disable", c.MainDBParams.GetDSN())
}

func TestNewConfigManager_EnvOverride(t *testing.T) {
	t.Setenv("APP_SUMMARY_PARAMS_PROVIDER", "anthropic")

	cm, err := NewConfigManager(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cm.GetConfig().SummaryParams.Provider)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cm, err := NewConfigManager(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing secret", func(c *Config) { c.GeneralParams.SecretKey = "" }},
		{"unknown env", func(c *Config) { c.GeneralParams.Env = "staging" }},
		{"unknown provider", func(c *Config) { c.SummaryParams.Provider = "ollama" }},
		{"max duration below default", func(c *Config) { c.ChatParams.MaxDurationMinutes = 10 }},
		{"zero vote window", func(c *Config) { c.ChatParams.VoteWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cm.GetConfig()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestNewConfigManager_MissingFile(t *testing.T) {
	_, err := NewConfigManager(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
