package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/endog/internal/textio"
)

// LinesOptions holds flags for the lines command.
type LinesOptions struct {
	*RootOptions
	Encoding   string
	ChunkBytes int
	Chunks     bool
}

// LinesResult holds the decoded lines or chunks of a file.
type LinesResult struct {
	Path     string   `json:"path" yaml:"path"`
	Encoding string   `json:"encoding" yaml:"encoding"`
	Lines    []string `json:"lines,omitempty" yaml:"lines,omitempty"`
	Chunks   []string `json:"chunks,omitempty" yaml:"chunks,omitempty"`
}

// WriteText prints one line (or chunk) per output line.
func (r LinesResult) WriteText(w io.Writer) error {
	items := r.Lines
	if r.Chunks != nil {
		items = r.Chunks
	}
	for _, s := range items {
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}
	return nil
}

// NewLinesCommand creates the lines command.
func NewLinesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lines <file>",
		Short: "Decode a text file and print its lines",
		Long: `Decode a file lazily in fixed-size chunks and print its lines.

Multi-byte characters are never split across chunks. A file ending in a
newline yields a final empty line.

Encodings: utf8, latin1 (binary), windows-1252, ascii, hex.

Examples:
  endog lines journal.log
  endog lines data.txt --encoding latin1 --chunk-bytes 64
  endog lines data.txt --chunks --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLines(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Encoding, "encoding", textio.UTF8.String(), "file encoding")
	cmd.Flags().IntVar(&opts.ChunkBytes, "chunk-bytes", textio.DefaultChunkBytes, "bytes read per chunk")
	cmd.Flags().BoolVar(&opts.Chunks, "chunks", false, "print decoded chunks instead of lines")

	return cmd
}

func runLines(cmd *cobra.Command, opts *LinesOptions, path string) error {
	enc, err := textio.ParseEncoding(opts.Encoding)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid encoding", err)
	}

	r, err := textio.Open(path, textio.WithEncoding(enc), textio.WithChunkBytes(opts.ChunkBytes))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open file", err)
	}
	defer r.Close()

	result := LinesResult{Path: path, Encoding: enc.String()}
	if opts.Chunks {
		result.Chunks = []string{}
		for chunk, err := range r.Chunks() {
			if err != nil {
				return WrapExitError(ExitFailure, "failed to decode file", err)
			}
			result.Chunks = append(result.Chunks, chunk)
		}
	} else {
		for line, err := range r.Lines() {
			if err != nil {
				return WrapExitError(ExitFailure, "failed to decode file", err)
			}
			result.Lines = append(result.Lines, line)
		}
	}

	return newFormatter(cmd, opts.RootOptions).Success(result)
}
