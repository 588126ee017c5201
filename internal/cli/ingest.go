package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/endog/internal/codec"
	"github.com/roach88/endog/internal/engine"
	"github.com/roach88/endog/internal/tally"
	"github.com/roach88/endog/internal/textio"
)

// Rejection codes for input lines that never reach the engine.
const (
	codeInvalidEvent = "INVALID_EVENT"
	codeSubmitFailed = "SUBMIT_FAILED"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Input         string
	NoWait        bool
	MetricsListen string
}

// Rejection describes an input line that was not accepted.
type Rejection struct {
	Line    int    `json:"line" yaml:"line"`
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// IngestResult summarizes an ingest run.
type IngestResult struct {
	Accepted   int         `json:"accepted" yaml:"accepted"`
	Rejected   int         `json:"rejected" yaml:"rejected"`
	Rejections []Rejection `json:"rejections,omitempty" yaml:"rejections,omitempty"`
	Pending    int         `json:"pending" yaml:"pending"`
	State      tally.State `json:"state" yaml:"state"`
	Total      int64       `json:"total" yaml:"total"`
}

// WriteText prints the rejections, the final counters, and a summary.
func (r IngestResult) WriteText(w io.Writer) error {
	for _, rej := range r.Rejections {
		fmt.Fprintf(w, "✗ line %d: %s: %s\n", rej.Line, rej.Code, rej.Message)
	}
	for _, k := range r.State.Keys() {
		fmt.Fprintf(w, "%s %d\n", k, r.State[k])
	}
	_, err := fmt.Fprintf(w, "%d accepted, %d rejected, %d pending, total %d\n",
		r.Accepted, r.Rejected, r.Pending, r.Total)
	return err
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit tally events read from stdin or a file",
		Long: `Submit newline-delimited JSON tally events to the engine.

Each line is one event: {"key": "apples", "delta": 3, "time": "..."}.
Events without an id get a UUIDv7; events without a time are stamped with
the current time. Rejected events are reported and skipped.

Unless --no-wait is given, ingest waits for the tolerance window of the
newest pending event to pass so that every accepted event is committed to
the journal before it prints the final state.

Exit codes:
  0 - All events accepted
  1 - One or more events rejected
  2 - Command error (invalid config, unreadable journal, etc.)

Examples:
  endog ingest < events.jsonl
  endog ingest --input events.jsonl --tolerance 2s
  endog ingest --metrics-listen :9090 < events.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "-", "input file, - for stdin")
	cmd.Flags().BoolVar(&opts.NoWait, "no-wait", false, "do not wait for pending events to commit")
	cmd.Flags().StringVar(&opts.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address (overrides metrics.listen)")

	return cmd
}

func runIngest(cmd *cobra.Command, opts *IngestOptions) error {
	ctx := cmd.Context()

	extra := map[string]any{}
	if cmd.Flags().Changed("metrics-listen") {
		extra["metrics.listen"] = opts.MetricsListen
	}
	cfg, err := loadConfig(cmd, opts.RootOptions, extra)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, opts.RootOptions, cfg)

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	if cfg.Metrics.Listen != "" {
		srv, err := serveMetrics(cfg.Metrics.Listen, reg, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer srv.Shutdown()
	}

	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	eng, err := openEngine(ctx, cfg, j, logger, engine.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer eng.Close()

	lines, closeInput, err := inputLines(cmd, opts.Input)
	if err != nil {
		return err
	}
	defer closeInput()

	result, err := submitLines(ctx, eng, lines, logger)
	if err != nil {
		return err
	}

	if !opts.NoWait {
		if err := waitForCommit(ctx, eng, cfg.Engine.Tolerance); err != nil {
			return err
		}
	}

	state := eng.State().Clone()
	result.State = state
	result.Total = state.Total()
	result.Pending = eng.Pending()
	if result.Pending > 0 {
		logger.Warn("pending events not committed", "pending", result.Pending)
	}

	if err := newFormatter(cmd, opts.RootOptions).Success(result); err != nil {
		return err
	}
	if result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d events rejected", result.Rejected))
	}
	return nil
}

// submitLines decodes, stamps, and submits every non-blank line.
func submitLines(ctx context.Context, eng *tally.Engine, lines iter.Seq2[string, error], logger *slog.Logger) (*IngestResult, error) {
	result := &IngestResult{}
	dec := codec.JSON[tally.Event]{Strict: true}
	ids := tally.UUIDv7Generator{}

	reject := func(n int, code string, err error) {
		result.Rejected++
		result.Rejections = append(result.Rejections, Rejection{Line: n, Code: code, Message: err.Error()})
		logger.Warn("event rejected", "line", n, "code", code, "error", err)
	}

	n := 0
	for line, err := range lines {
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read input", err)
		}
		n++
		if strings.TrimSpace(line) == "" {
			continue
		}

		ev, err := dec.Decode([]byte(line))
		if err != nil {
			reject(n, codeInvalidEvent, err)
			continue
		}
		ev = tally.Stamp(ev, ids, time.Now)

		if err := eng.Submit(ctx, ev); err != nil {
			if engine.IsEngineFailed(err) {
				return nil, WrapExitError(ExitFailure, "engine stopped", err)
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			reject(n, errorCode(err, codeSubmitFailed), err)
			continue
		}
		result.Accepted++
	}
	return result, nil
}

// waitForCommit waits until the newest pending event has left the
// tolerance window, then sweeps.
func waitForCommit(ctx context.Context, eng *tally.Engine, tolerance time.Duration) error {
	var latest time.Time
	for _, ev := range eng.PendingEvents() {
		if ev.Time.After(latest) {
			latest = ev.Time
		}
	}
	if latest.IsZero() {
		return nil
	}

	// Sweeps commit events strictly before now-tolerance.
	if wait := time.Until(latest.Add(tolerance + time.Millisecond)); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := eng.Sweep(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to commit events", err)
	}
	return nil
}

// inputLines returns the lines of the input file, or of stdin for "-".
func inputLines(cmd *cobra.Command, input string) (iter.Seq2[string, error], func() error, error) {
	if input == "-" || input == "" {
		return scanLines(cmd.InOrStdin()), func() error { return nil }, nil
	}

	r, err := textio.Open(input)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open input", err)
	}
	return r.Lines(), r.Close, nil
}

// scanLines yields the lines of a stream that cannot be read at an offset.
func scanLines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, textio.DefaultChunkBytes), 1<<20)
		for sc.Scan() {
			if !yield(sc.Text(), nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield("", err)
		}
	}
}
