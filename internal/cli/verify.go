package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/endog/internal/codec"
	"github.com/roach88/endog/internal/tally"
)

// Violation describes a journal record that breaks ordering or cannot be
// read.
type Violation struct {
	Record   int       `json:"record" yaml:"record"`
	Reason   string    `json:"reason" yaml:"reason"`
	Time     time.Time `json:"time,omitzero" yaml:"time,omitempty"`
	Previous time.Time `json:"previous,omitzero" yaml:"previous,omitempty"`
}

// VerifyResult summarizes a journal check.
type VerifyResult struct {
	Journal    string      `json:"journal" yaml:"journal"`
	Records    int         `json:"records" yaml:"records"`
	First      time.Time   `json:"first,omitzero" yaml:"first,omitempty"`
	Last       time.Time   `json:"last,omitzero" yaml:"last,omitempty"`
	Violations []Violation `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// OK reports whether the journal has no violations.
func (r VerifyResult) OK() bool {
	return len(r.Violations) == 0
}

// WriteText prints each violation and a summary line.
func (r VerifyResult) WriteText(w io.Writer) error {
	for _, v := range r.Violations {
		fmt.Fprintf(w, "✗ record %d: %s\n", v.Record, v.Reason)
	}
	if r.OK() {
		_, err := fmt.Fprintf(w, "✓ %s: %d records in order\n", r.Journal, r.Records)
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %d records, %d violations\n", r.Journal, r.Records, len(r.Violations))
	return err
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that journal records are readable and in time order",
		Long: `Check the journal without replaying it into an engine.

Every record must decode as a tally event with a timestamp, and timestamps
must never decrease from one record to the next. Sweeps commit events in
timestamp order, so a violation means the journal was edited, was written by
something other than the engine, or the clock moved backwards between
sessions. In the last case records still in the tolerance window on restart
are not rewritten, and a late event committed beside them is appended after
them.

Exit codes:
  0 - Journal is valid
  1 - One or more violations
  2 - Command error (invalid config, unreadable journal, etc.)

Examples:
  endog verify --journal tally.log
  endog verify --backend sqlite --journal tally.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, rootOpts)
		},
	}
	return cmd
}

func runVerify(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := loadConfig(cmd, opts, nil)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, opts, cfg)

	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	result := VerifyResult{Journal: cfg.Journal.Path}
	dec := codec.JSON[tally.Event]{}
	var prev time.Time

	for raw, err := range j.Replay(cmd.Context()) {
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		result.Records++
		n := result.Records

		ev, err := dec.Decode(raw)
		if err != nil {
			result.Violations = append(result.Violations, Violation{Record: n, Reason: err.Error()})
			continue
		}
		if ev.Time.IsZero() {
			result.Violations = append(result.Violations, Violation{Record: n, Reason: "missing timestamp"})
			continue
		}
		if ev.Time.Before(prev) {
			result.Violations = append(result.Violations, Violation{
				Record:   n,
				Reason:   fmt.Sprintf("time %s is before previous record %s", formatTime(ev.Time), formatTime(prev)),
				Time:     ev.Time,
				Previous: prev,
			})
		}

		if result.First.IsZero() {
			result.First = ev.Time
		}
		if ev.Time.After(prev) {
			prev = ev.Time
		}
		result.Last = ev.Time
	}

	logger.Debug("journal verified", "records", result.Records, "violations", len(result.Violations))

	if err := newFormatter(cmd, opts).Success(result); err != nil {
		return err
	}
	if !result.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d journal violations", len(result.Violations)))
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
