package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
server:
  listen: ":9090"
  timeout: 45s

discovery:
  root_url: https://example.com/therapists
  max_pages: 4
  page_format: "%s/page/%d"
  link_selectors: ["a.profile-card"]
  link_pattern: "/profile/"

extraction:
  selectors:
    name: ["h1.name", "h1"]
    rating: [".rating-value"]
  reveal_selector: "a.read-more"
  reveal_timeout: 3s

job:
  batch_size: 20
  concurrency: 4
  max_retries: 2
  retry_delay: 500ms

checkpoint:
  driver: sqlite
  dsn: "file:test.db"

llm:
  endpoint: http://localhost:11434/v1
  model: llama3
  response_format: json_object
`
		cfg, err := Load(writeConfig(t, configContent))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)

		assert.Equal(t, "https://example.com/therapists", cfg.Discovery.RootURL)
		assert.Equal(t, 4, cfg.Discovery.MaxPages)
		assert.Equal(t, "%s/page/%d", cfg.Discovery.PageFormat)
		assert.Equal(t, []string{"a.profile-card"}, cfg.Discovery.LinkSelectors)

		assert.Equal(t, []string{"h1.name", "h1"}, cfg.Extraction.Selectors.Name)
		assert.Equal(t, 3*time.Second, cfg.Extraction.RevealTimeout)
		assert.Equal(t, "href", cfg.Extraction.RevealAttr)

		assert.Equal(t, 20, cfg.Job.BatchSize)
		assert.Equal(t, 4, cfg.Job.Concurrency)
		assert.Equal(t, 2, cfg.Job.MaxRetries)
		assert.Equal(t, 500*time.Millisecond, cfg.Job.RetryDelay)

		assert.Equal(t, "sqlite", cfg.Checkpoint.Driver)
		assert.Equal(t, "file:test.db", cfg.Checkpoint.DSN)

		assert.Equal(t, "llama3", cfg.LLM.Model)
		assert.Equal(t, "json_object", cfg.LLM.ResponseFormat)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "discovery:\n  root_url: https://example.com/list\n"))
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
		assert.Equal(t, 10, cfg.Discovery.MaxPages)
		assert.Equal(t, "%s?page=%d", cfg.Discovery.PageFormat)
		assert.Equal(t, []string{"a[href]"}, cfg.Discovery.LinkSelectors)
		assert.Equal(t, 5, cfg.Browser.Sessions)
		assert.Equal(t, 10, cfg.Job.BatchSize)
		assert.Equal(t, 3, cfg.Job.Concurrency)
		assert.Equal(t, 0, cfg.Job.MaxRetries)
		assert.Equal(t, 2*time.Second, cfg.Job.RetryDelay)
		assert.Equal(t, "file", cfg.Checkpoint.Driver)
		assert.Equal(t, "profiles.json", cfg.Checkpoint.Profiles)
		assert.Equal(t, "scores.json", cfg.Checkpoint.Scores)
		assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
		assert.Equal(t, "text", cfg.LLM.ResponseFormat)
		assert.InDelta(t, 0.2, cfg.LLM.Temperature, 0.0001)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("PROFSCOUT_TEST_KEY", "sk-secret")
		cfg, err := Load(writeConfig(t, "llm:\n  api_key: ${PROFSCOUT_TEST_KEY}\n"))
		require.NoError(t, err)
		assert.Equal(t, "sk-secret", cfg.LLM.APIKey)
	})

	t.Run("file not found", func(t *testing.T) {
		cfg, err := Load("/non/existent/file.yml")
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configContent := `
invalid yaml content
  with bad indentation
    and no structure
`
		cfg, err := Load(writeConfig(t, configContent))
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "bad page format", content: "discovery:\n  page_format: \"%s/page\"\n", errMsg: "page_format"},
		{name: "bad link pattern", content: "discovery:\n  link_pattern: \"([a-z\"\n", errMsg: "link_pattern"},
		{name: "negative retries", content: "job:\n  max_retries: -1\n", errMsg: "max_retries"},
		{name: "unknown driver", content: "checkpoint:\n  driver: redis\n", errMsg: "checkpoint.driver"},
		{name: "s3 without bucket", content: "checkpoint:\n  driver: s3\n  s3_endpoint: localhost:9000\n", errMsg: "s3_bucket"},
		{name: "bad temperature", content: "llm:\n  temperature: 3\n", errMsg: "temperature"},
		{name: "bad response format", content: "llm:\n  response_format: xml\n", errMsg: "response_format"},
		{name: "short server timeout", content: "server:\n  timeout: 10ms\n", errMsg: "server timeout"},
		{name: "negative rate limit", content: "browser:\n  rate_limit: -2\n", errMsg: "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_GetServerConfig(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Listen = ":9090"
	cfg.Server.Timeout = 45 * time.Second

	listen, timeout := cfg.GetServerConfig()
	assert.Equal(t, ":9090", listen)
	assert.Equal(t, 45*time.Second, timeout)
}
