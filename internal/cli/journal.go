package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/endog/internal/config"
	"github.com/roach88/endog/internal/engine"
	"github.com/roach88/endog/internal/journal"
	"github.com/roach88/endog/internal/store"
	"github.com/roach88/endog/internal/tally"
)

// openJournal opens the configured journal backend.
func openJournal(cfg *config.Config) (journal.Journal, error) {
	if cfg.Journal.Backend == config.BackendSQLite {
		s, err := store.Open(cfg.Journal.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		return s, nil
	}

	enc, err := cfg.Journal.TextEncoding()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	f, err := journal.OpenFile(cfg.Journal.Path,
		journal.WithEncoding(enc),
		journal.WithChunkBytes(cfg.Journal.ChunkBytes),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return f, nil
}

// openEngine replays j into a tally engine. The caller closes the engine
// before j.
func openEngine(ctx context.Context, cfg *config.Config, j journal.Journal, logger *slog.Logger, opts ...engine.Option) (*tally.Engine, error) {
	ecfg := tally.Config(cfg.Journal.Path, cfg.Engine.Tolerance)
	ecfg.Journal = j

	opts = append([]engine.Option{engine.WithLogger(logger)}, opts...)
	eng, err := tally.Open(ctx, ecfg, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open engine", err)
	}
	return eng, nil
}

// errorCode returns the engine error code of err, or fallback.
func errorCode(err error, fallback string) string {
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return string(engErr.Code)
	}
	return fallback
}
