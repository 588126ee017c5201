package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "endog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(WithEnvPrefix("ENDOG_TEST_DEFAULTS_"))
	require.NoError(t, err)

	assert.Equal(t, "endog.log", cfg.Journal.Path)
	assert.Equal(t, BackendFile, cfg.Journal.Backend)
	assert.Equal(t, "utf8", cfg.Journal.Encoding)
	assert.Equal(t, 4096, cfg.Journal.ChunkBytes)
	assert.Equal(t, 5*time.Second, cfg.Engine.Tolerance)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoad_File(t *testing.T) {
	path := writeConfigFile(t, `
journal:
  path: /var/lib/endog/events.db
  backend: sqlite
engine:
  tolerance: 250ms
log:
  level: debug
metrics:
  listen: "127.0.0.1:9090"
`)

	cfg, err := Load(WithConfigFile(path), WithEnvPrefix("ENDOG_TEST_FILE_"))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/endog/events.db", cfg.Journal.Path)
	assert.Equal(t, BackendSQLite, cfg.Journal.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.Tolerance)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Listen)
	assert.Equal(t, 4096, cfg.Journal.ChunkBytes, "unset keys keep defaults")
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfigFile(t, `
journal:
  path: from-file.log
  chunk_bytes: 64
engine:
  tolerance: 1s
`)
	t.Setenv("ENDOG_JOURNAL_PATH", "from-env.log")
	t.Setenv("ENDOG_JOURNAL_CHUNK_BYTES", "128")
	t.Setenv("ENDOG_ENGINE_TOLERANCE", "2s")

	cfg, err := Load(
		WithConfigFile(path),
		WithOverrides(map[string]any{"engine.tolerance": "3s"}),
	)
	require.NoError(t, err)

	assert.Equal(t, "from-env.log", cfg.Journal.Path, "env overrides file")
	assert.Equal(t, 128, cfg.Journal.ChunkBytes)
	assert.Equal(t, 3*time.Second, cfg.Engine.Tolerance, "overrides win")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Journal: JournalConfig{Path: "x.log", Backend: BackendFile, Encoding: "utf8", ChunkBytes: 4096},
			Engine:  EngineConfig{Tolerance: time.Second},
			Log:     LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing path", func(c *Config) { c.Journal.Path = "" }},
		{"unknown backend", func(c *Config) { c.Journal.Backend = "s3" }},
		{"unknown encoding", func(c *Config) { c.Journal.Encoding = "utf16" }},
		{"hex encoding", func(c *Config) { c.Journal.Encoding = "hex" }},
		{"chunk too small", func(c *Config) { c.Journal.ChunkBytes = 3 }},
		{"negative tolerance", func(c *Config) { c.Engine.Tolerance = -time.Second }},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidate_SQLiteIgnoresEncoding(t *testing.T) {
	cfg := Config{
		Journal: JournalConfig{Path: "x.db", Backend: BackendSQLite, Encoding: "bogus"},
		Log:     LogConfig{Level: "warn"},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
}

func TestMapProvider_ExpandsDottedKeys(t *testing.T) {
	got, err := mapProvider{"a.b.c": 1, "a.d": "x", "e": true}.Read()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, got)

	_, err = mapProvider{}.ReadBytes()
	assert.ErrorIs(t, err, ErrReadBytesNotSupported)
}
