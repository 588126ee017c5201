package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"sync"

	"github.com/roach88/endog/internal/textio"
)

// DefaultFilePerm is the permission used when the journal file is created.
const DefaultFilePerm = 0o644

// ErrEncodingNotLineOriented is returned for encodings that cannot carry
// newline-separated records (hex).
var ErrEncodingNotLineOriented = errors.New("journal: encoding is not line oriented")

// File is a Journal stored as a text file with one record per line.
//
// The file is created if absent. An empty file and a final record without a
// trailing newline are both valid.
type File struct {
	mu           sync.Mutex
	path         string
	f            *os.File
	enc          textio.Encoding
	chunkBytes   int
	needsNewline bool
}

// FileOption configures a File journal.
type FileOption func(*File)

// WithEncoding sets the text encoding of the journal file. Default: UTF-8.
func WithEncoding(enc textio.Encoding) FileOption {
	return func(j *File) {
		j.enc = enc
	}
}

// WithChunkBytes sets the read size used by Replay.
func WithChunkBytes(n int) FileOption {
	return func(j *File) {
		j.chunkBytes = n
	}
}

// OpenFile opens or creates the journal at path.
func OpenFile(path string, opts ...FileOption) (*File, error) {
	j := &File{
		path:       path,
		enc:        textio.UTF8,
		chunkBytes: textio.DefaultChunkBytes,
	}
	for _, opt := range opts {
		opt(j)
	}

	if !j.enc.Valid() {
		return nil, fmt.Errorf("open journal: %w: %s", textio.ErrUnsupportedEncoding, j.enc)
	}
	if j.enc == textio.Hex {
		return nil, fmt.Errorf("open journal: %w: %s", ErrEncodingNotLineOriented, j.enc)
	}
	if j.chunkBytes < j.enc.MaxWidth() {
		return nil, fmt.Errorf("open journal: %w: %d", textio.ErrChunkTooSmall, j.chunkBytes)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j.f = f

	needs, err := endsWithoutNewline(path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j.needsNewline = needs

	return j, nil
}

// Path returns the journal file path.
func (j *File) Path() string {
	return j.path
}

// Replay reads the journal lazily, line by line.
func (j *File) Replay(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		r, err := textio.Open(j.path, textio.WithEncoding(j.enc), textio.WithChunkBytes(j.chunkBytes))
		if err != nil {
			yield(nil, fmt.Errorf("replay journal: %w", err))
			return
		}
		defer r.Close()

		for line, err := range r.Lines() {
			if err != nil {
				yield(nil, fmt.Errorf("replay journal: %w", err))
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if line == "" {
				continue
			}
			if !yield([]byte(line), nil) {
				return
			}
		}
	}
}

// Append writes records, one per line, then fsyncs the file.
func (j *File) Append(ctx context.Context, records [][]byte) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return ErrClosed
	}

	var buf bytes.Buffer
	if j.needsNewline {
		buf.WriteByte('\n')
	}
	for i, rec := range records {
		raw, err := j.encodeLine(rec)
		if err != nil {
			return fmt.Errorf("append record %d: %w", i, err)
		}
		buf.Write(raw)
		buf.WriteByte('\n')
	}

	if _, err := j.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	j.needsNewline = false

	return nil
}

// Check reports whether rec can be stored as one line in the journal's
// encoding.
func (j *File) Check(rec []byte) error {
	_, err := j.encodeLine(rec)
	return err
}

func (j *File) encodeLine(rec []byte) ([]byte, error) {
	if bytes.IndexByte(rec, '\n') >= 0 {
		return nil, ErrMultilineRecord
	}
	return j.enc.Encode(rec)
}

// Close closes the journal file.
func (j *File) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

// endsWithoutNewline reports whether the file is non-empty and its last byte
// is not a newline.
func endsWithoutNewline(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return last[0] != '\n', nil
}

var (
	_ Journal = (*File)(nil)
	_ Checker = (*File)(nil)
)
