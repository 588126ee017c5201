package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/endog/internal/textio"
)

// Journal backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Config is the endog process configuration.
type Config struct {
	Journal JournalConfig `koanf:"journal" json:"journal" yaml:"journal"`
	Engine  EngineConfig  `koanf:"engine" json:"engine" yaml:"engine"`
	Log     LogConfig     `koanf:"log" json:"log" yaml:"log"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// JournalConfig selects and configures the durable journal.
type JournalConfig struct {
	Path       string `koanf:"path" json:"path" yaml:"path"`
	Backend    string `koanf:"backend" json:"backend" yaml:"backend"`
	Encoding   string `koanf:"encoding" json:"encoding" yaml:"encoding"`
	ChunkBytes int    `koanf:"chunk_bytes" json:"chunk_bytes" yaml:"chunk_bytes"`
}

// EngineConfig configures the state engine.
type EngineConfig struct {
	Tolerance time.Duration `koanf:"tolerance" json:"tolerance" yaml:"tolerance"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `koanf:"level" json:"level" yaml:"level"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `koanf:"listen" json:"listen" yaml:"listen"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"journal.path":        "endog.log",
		"journal.backend":     BackendFile,
		"journal.encoding":    textio.UTF8.String(),
		"journal.chunk_bytes": textio.DefaultChunkBytes,
		"engine.tolerance":    "5s",
		"log.level":           "info",
		"metrics.listen":      "",
	}
}

// Load reads configuration from every source and validates it.
func Load(opts ...Option) (*Config, error) {
	var cfg Config
	if err := NewLoader(opts...).Load(Defaults(), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	var errs []error

	if c.Journal.Path == "" {
		errs = append(errs, fmt.Errorf("%w: journal.path is required", ErrInvalid))
	}
	switch c.Journal.Backend {
	case BackendFile:
		enc, err := c.Journal.TextEncoding()
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: journal.encoding: %w", ErrInvalid, err))
		} else if enc == textio.Hex {
			errs = append(errs, fmt.Errorf("%w: journal.encoding: hex is not line oriented", ErrInvalid))
		} else if c.Journal.ChunkBytes < enc.MaxWidth() {
			errs = append(errs, fmt.Errorf("%w: journal.chunk_bytes must be at least %d, got %d",
				ErrInvalid, enc.MaxWidth(), c.Journal.ChunkBytes))
		}
	case BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("%w: journal.backend must be %q or %q, got %q",
			ErrInvalid, BackendFile, BackendSQLite, c.Journal.Backend))
	}

	if c.Engine.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("%w: engine.tolerance must not be negative, got %s",
			ErrInvalid, c.Engine.Tolerance))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level: %w", ErrInvalid, err))
	}

	return errors.Join(errs...)
}

// TextEncoding parses the journal encoding name.
func (c JournalConfig) TextEncoding() (textio.Encoding, error) {
	return textio.ParseEncoding(c.Encoding)
}

// LogLevel returns the configured slog level. Invalid levels map to Info;
// Validate reports them.
func (c *Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}
