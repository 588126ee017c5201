package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/endog/internal/tally"
)

// StateResult is the engine state after replaying the journal.
type StateResult struct {
	Journal   string        `json:"journal" yaml:"journal"`
	State     tally.State   `json:"state" yaml:"state"`
	Baseline  tally.State   `json:"baseline" yaml:"baseline"`
	Total     int64         `json:"total" yaml:"total"`
	Pending   int           `json:"pending" yaml:"pending"`
	Watermark time.Time     `json:"watermark" yaml:"watermark"`
	Tolerance time.Duration `json:"tolerance" yaml:"tolerance"`
}

// WriteText prints one "key value" line per counter followed by a summary.
func (r StateResult) WriteText(w io.Writer) error {
	for _, k := range r.State.Keys() {
		fmt.Fprintf(w, "%s %d\n", k, r.State[k])
	}
	_, err := fmt.Fprintf(w, "total %d, %d pending, watermark %s\n",
		r.Total, r.Pending, r.Watermark.UTC().Format(time.RFC3339Nano))
	return err
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Replay the journal and print the current state",
		Long: `Replay the journal and print the current state.

Records older than the tolerance window form the baseline; newer records are
held as pending and folded on top of it, exactly as the engine does on
startup. Nothing is written to the journal.

Examples:
  endog state --journal tally.log
  endog state --backend sqlite --journal tally.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(cmd, rootOpts)
		},
	}
	return cmd
}

func runState(cmd *cobra.Command, opts *RootOptions) error {
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

	eng, err := openEngine(cmd.Context(), cfg, j, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	state := eng.State().Clone()
	result := StateResult{
		Journal:   cfg.Journal.Path,
		State:     state,
		Baseline:  eng.Baseline().Clone(),
		Total:     state.Total(),
		Pending:   eng.Pending(),
		Watermark: eng.Watermark(),
		Tolerance: eng.Tolerance(),
	}
	return newFormatter(cmd, opts).Success(result)
}
