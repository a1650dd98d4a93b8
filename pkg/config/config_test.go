package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lazy", cfg.Search.Mode)
	assert.Equal(t, 4, cfg.Indexer.Workers)
	assert.Equal(t, "index.complete", cfg.Kafka.Topics.IndexComplete)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
indexer:
  dataDir: /var/lib/bsbi
  name: cs276
  workers: 8
  mergeFanIn: 16
corpus:
  format: dir
  path: /data/CS276
  stem: true
search:
  mode: eager
  timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("SP_INDEXER_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/bsbi", cfg.Indexer.DataDir)
	assert.Equal(t, "cs276", cfg.Indexer.Name)
	assert.Equal(t, 2, cfg.Indexer.Workers)
	assert.Equal(t, 16, cfg.Indexer.MergeFanIn)
	assert.Equal(t, "dir", cfg.Corpus.Format)
	assert.True(t, cfg.Corpus.Stem)
	assert.Equal(t, "eager", cfg.Search.Mode)
	assert.Equal(t, 2*time.Second, cfg.Search.Timeout)
	// untouched sections keep their defaults
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"mode":    func(c *Config) { c.Search.Mode = "mmap" },
		"format":  func(c *Config) { c.Corpus.Format = "xml" },
		"workers": func(c *Config) { c.Indexer.Workers = 0 },
		"fan-in":  func(c *Config) { c.Indexer.MergeFanIn = 1 },
		"name":    func(c *Config) { c.Indexer.Name = "" },
		"rate":    func(c *Config) { c.Server.RateLimit = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
