package textio

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// DefaultChunkBytes is the read size used when no option overrides it.
const DefaultChunkBytes = 4096

// ErrChunkTooSmall is returned when the chunk size cannot hold one code point.
var ErrChunkTooSmall = errors.New("textio: chunk size smaller than encoding width")

// Option configures a Reader.
type Option func(*options)

type options struct {
	encoding   Encoding
	chunkBytes int
}

// WithEncoding sets the file encoding. Default: UTF8.
func WithEncoding(enc Encoding) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

// WithChunkBytes sets the maximum number of bytes read per chunk.
// Default: DefaultChunkBytes.
func WithChunkBytes(n int) Option {
	return func(o *options) {
		o.chunkBytes = n
	}
}

// Reader lazily decodes a file. It is forward-only: once a sequence has
// consumed the file, open a new Reader to read it again.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	f    *os.File
	path string
	enc  Encoding
	buf  []byte
	off  int64
	done bool
}

// Open validates the options and opens path for reading.
// Option errors are reported before the file is touched.
func Open(path string, opts ...Option) (*Reader, error) {
	o := options{
		encoding:   UTF8,
		chunkBytes: DefaultChunkBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !o.encoding.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, o.encoding)
	}
	if width := o.encoding.MaxWidth(); o.chunkBytes < width {
		return nil, fmt.Errorf("%w: %d < %d for %s", ErrChunkTooSmall, o.chunkBytes, width, o.encoding)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &Reader{
		f:    f,
		path: path,
		enc:  o.encoding,
		buf:  make([]byte, o.chunkBytes),
	}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Encoding returns the encoding the reader decodes with.
func (r *Reader) Encoding() Encoding {
	return r.enc
}

// Chunks yields decoded chunks until end of file. The last chunk comes from
// a short read and may be empty. On error the sequence yields the error once
// and stops.
func (r *Reader) Chunks() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for !r.done {
			chunk, err := r.next()
			if err != nil {
				r.done = true
				yield("", err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Lines yields the decoded file split on "\n". A trailing newline produces a
// final empty line, matching strings.Split.
func (r *Reader) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if r.done {
			return
		}

		var pending strings.Builder
		for chunk, err := range r.Chunks() {
			if err != nil {
				yield("", err)
				return
			}
			pending.WriteString(chunk)
			if !strings.Contains(chunk, "\n") {
				continue
			}

			parts := strings.Split(pending.String(), "\n")
			for _, line := range parts[:len(parts)-1] {
				if !yield(line, nil) {
					return
				}
			}
			pending.Reset()
			pending.WriteString(parts[len(parts)-1])
		}

		for _, line := range strings.Split(pending.String(), "\n") {
			if !yield(line, nil) {
				return
			}
		}
	}
}

// next reads one chunk at the current offset.
func (r *Reader) next() (string, error) {
	n, err := r.f.ReadAt(r.buf, r.off)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s at offset %d: %w", r.path, r.off, err)
	}

	if n < len(r.buf) {
		r.done = true
		r.off += int64(n)
		return r.decode(r.buf[:n])
	}

	keep := n - r.enc.holdBack(r.buf)
	r.off += int64(keep)
	return r.decode(r.buf[:keep])
}

func (r *Reader) decode(b []byte) (string, error) {
	s, err := r.enc.Decode(b)
	if err != nil {
		return "", fmt.Errorf("%s at offset %d: %w", r.path, r.off, err)
	}
	return s, nil
}
