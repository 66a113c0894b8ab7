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
sources:
  bbc:
    link_selector: "div a"
    link_prefix: "https://www.bbc.com"
    text_selector: "p"
sections:
  - {source: bbc, url: "https://www.bbc.com/news/world/europe", category: Europe}
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Fetch.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.NotEmpty(t, cfg.Fetch.UserAgents)
	assert.Equal(t, 24*time.Hour, cfg.Extract.StaleAfter)
	assert.Equal(t, 4, cfg.Extract.Tolerance)
	assert.Equal(t, 100, cfg.Extract.MinWords)
	assert.Equal(t, 5, cfg.Extract.OrderSample)
	assert.Equal(t, []string{"VideoObject", "LiveBlogPosting"}, cfg.Extract.NonArticleTypes)
	assert.Equal(t, 5, cfg.Summarize.Concurrency)
	assert.InDelta(t, 0.5, cfg.Summarize.Temperature, 1e-6)
	assert.Equal(t, 1000, cfg.Summarize.MaxTokens)
	assert.Equal(t, "gemini", cfg.Summarize.Provider)
	assert.Equal(t, 2, cfg.Group.MinSamples)
	assert.Equal(t, "file", cfg.Storage.Backend)
	require.NoError(t, cfg.Validate())
}

func TestParse_ReadsDurationsAndSections(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
fetch:
  timeout: 5s
extract:
  stale_after: 36h
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 36*time.Hour, cfg.Extract.StaleAfter)
	require.Len(t, cfg.Sections, 1)
	assert.Equal(t, "bbc", cfg.Sections[0].Source)
	assert.Equal(t, "Europe", cfg.Sections[0].Category)
}

func TestValidate_UnknownSource(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
  - {source: cnn, url: "https://edition.cnn.com/world", category: World}
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source "cnn"`)
}

func TestValidate_BadProviderAndBackend(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
summarize:
  provider: claude
storage:
  backend: mongo
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarize.provider")
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestSource_InheritsHeaderSelector(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	src, ok := cfg.Source("bbc")
	require.True(t, ok)
	assert.Equal(t, "script[type='application/ld+json']", src.HeaderSelector)

	_, ok = cfg.Source("nope")
	assert.False(t, ok)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newsai.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("NEWSAI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FETCH_CONCURRENCY", "7")
	t.Setenv("NEWSAI_STORAGE", "sqlite")
	t.Setenv("STALE_AFTER", "12h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Summarize.Provider)
	assert.Equal(t, "gpt-3.5-turbo-0125", cfg.Summarize.Model)
	assert.Equal(t, "sk-test", cfg.Summarize.OpenAIAPIKey)
	assert.Equal(t, 7, cfg.Fetch.Concurrency)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 12*time.Hour, cfg.Extract.StaleAfter)
}

func TestLoad_ShippedConfig(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"bbc", "nyt", "aj", "ap"}, cfg.SourceNames())
	assert.Len(t, cfg.Sections, 31)
}
