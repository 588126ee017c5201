package textio

import (
	"bytes"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestFile writes content to a fresh file and returns its path.
func writeTestFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func collectChunks(t *testing.T, path string, opts ...Option) []string {
	t.Helper()
	r, err := Open(path, opts...)
	require.NoError(t, err)
	defer r.Close()

	var chunks []string
	for chunk, err := range r.Chunks() {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	return chunks
}

func collectLines(t *testing.T, path string, opts ...Option) []string {
	t.Helper()
	r, err := Open(path, opts...)
	require.NoError(t, err)
	defer r.Close()

	var lines []string
	for line, err := range r.Lines() {
		require.NoError(t, err)
		lines = append(lines, line)
	}
	return lines
}

// assertRoundTrip checks both reader properties for one input.
func assertRoundTrip(t *testing.T, content []byte, enc Encoding, chunkBytes int) {
	t.Helper()
	path := writeTestFile(t, content)
	want, err := enc.Decode(content)
	require.NoError(t, err)

	opts := []Option{WithEncoding(enc), WithChunkBytes(chunkBytes)}

	chunks := collectChunks(t, path, opts...)
	assert.Equal(t, want, strings.Join(chunks, ""),
		"chunks enc=%s chunk=%d input=%x", enc, chunkBytes, content)

	lines := collectLines(t, path, opts...)
	assert.Equal(t, strings.Split(want, "\n"), lines,
		"lines enc=%s chunk=%d input=%x", enc, chunkBytes, content)
}

func TestOpen_Defaults(t *testing.T) {
	path := writeTestFile(t, []byte("hello"))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, UTF8, r.Encoding())
	assert.Len(t, r.buf, DefaultChunkBytes)
}

func TestOpen_UnsupportedEncodingFailsBeforeOpening(t *testing.T) {
	// The path does not exist: an open attempt would produce a different error.
	missing := filepath.Join(t.TempDir(), "missing.txt")

	_, err := Open(missing, WithEncoding(Encoding(99)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
	assert.NotErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_ChunkTooSmall(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")

	_, err := Open(missing, WithEncoding(UTF8), WithChunkBytes(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChunkTooSmall)

	// A single-byte encoding accepts a one-byte chunk.
	path := writeTestFile(t, []byte("ab"))
	r, err := Open(path, WithEncoding(Latin1), WithChunkBytes(1))
	require.NoError(t, err)
	r.Close()
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChunks_ReplacementCharacterFixtures(t *testing.T) {
	fixtures := []string{
		"",
		"�",
		"��",
		strings.Repeat("�", 24),
	}

	for _, fixture := range fixtures {
		assertRoundTrip(t, []byte(fixture), UTF8, 4)
	}
}

func TestChunks_NeverSplitsCodePoint(t *testing.T) {
	content := []byte("héllo wörld 😀 ∑ x\nnext line 日本語")

	for size := 4; size <= 12; size++ {
		t.Run("", func(t *testing.T) {
			chunks := collectChunks(t, writeTestFile(t, content), WithChunkBytes(size))
			for _, chunk := range chunks {
				assert.True(t, utf8.ValidString(chunk), "chunk %q", chunk)
				assert.NotContains(t, chunk, "�", "chunk %q", chunk)
			}
			assert.Equal(t, string(content), strings.Join(chunks, ""))
		})
	}
}

func TestChunks_ExactMultipleYieldsEmptyFinalChunk(t *testing.T) {
	chunks := collectChunks(t, writeTestFile(t, []byte("abcdefgh")), WithChunkBytes(4))
	assert.Equal(t, []string{"abcd", "efgh", ""}, chunks)
}

func TestChunks_HoldsBackIncompleteSequence(t *testing.T) {
	// "a" + 4-byte emoji: a 4-byte read ends inside the emoji.
	chunks := collectChunks(t, writeTestFile(t, []byte("a😀")), WithChunkBytes(4))
	assert.Equal(t, []string{"a", "😀", ""}, chunks)
}

func TestChunks_NotRestartable(t *testing.T) {
	r, err := Open(writeTestFile(t, []byte("abc")))
	require.NoError(t, err)
	defer r.Close()

	var first []string
	for chunk, err := range r.Chunks() {
		require.NoError(t, err)
		first = append(first, chunk)
	}
	assert.Equal(t, []string{"abc"}, first)

	count := 0
	for range r.Chunks() {
		count++
	}
	assert.Zero(t, count, "exhausted reader should yield nothing")

	for range r.Lines() {
		count++
	}
	assert.Zero(t, count, "exhausted reader should yield no lines")
}

func TestLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"empty file", "", []string{""}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"trailing newline", "a\nb\n", []string{"a", "b", ""}},
		{"only newline", "\n", []string{"", ""}},
		{"blank lines", "a\n\n\nb", []string{"a", "", "", "b"}},
		{"long line", strings.Repeat("x", 50) + "\ny", []string{strings.Repeat("x", 50), "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, size := range []int{4, 5, 7, 4096} {
				got := collectLines(t, writeTestFile(t, []byte(tt.content)), WithChunkBytes(size))
				assert.Equal(t, tt.want, got, "chunk size %d", size)
			}
		})
	}
}

func TestLines_EarlyBreak(t *testing.T) {
	r, err := Open(writeTestFile(t, []byte("one\ntwo\nthree\n")), WithChunkBytes(4))
	require.NoError(t, err)
	defer r.Close()

	var got []string
	for line, err := range r.Lines() {
		require.NoError(t, err)
		got = append(got, line)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestLines_MultiByteAcrossBoundaries(t *testing.T) {
	content := []byte("αβγ\n😀😀\n\nδ")
	for size := 4; size <= 9; size++ {
		got := collectLines(t, writeTestFile(t, content), WithChunkBytes(size))
		assert.Equal(t, []string{"αβγ", "😀😀", "", "δ"}, got, "chunk size %d", size)
	}
}

func TestRoundTrip_InvalidUTF8(t *testing.T) {
	inputs := [][]byte{
		{0xE2, 0x82},                   // truncated 3-byte sequence at EOF
		{0x41, 0xE2, 0x82, 0x41, 0x0A}, // truncated sequence followed by ASCII
		{0xF0, 0x9F, 0x98, 0x0A, 0x80}, // truncated 4-byte then stray continuation
		{0xE0, 0x80, 0x80, 0x80},       // overlong
		{0xED, 0xA0, 0x80, 0x41},       // surrogate
		{0xF4, 0x90, 0x80, 0x80},       // above U+10FFFF
		{0xC0, 0xC1, 0xF5, 0xFF, 0x0A}, // never-valid bytes
		bytes.Repeat([]byte{0x80}, 9),  // continuation run
	}

	for _, in := range inputs {
		for size := 4; size <= 9; size++ {
			assertRoundTrip(t, in, UTF8, size)
		}
	}
}

func TestRoundTrip_Randomized(t *testing.T) {
	encodings := []Encoding{UTF8, Latin1, Windows1252, ASCII, Hex}
	rng := rand.New(rand.NewPCG(1, 2))

	const iterations = 400
	const maxLen = 600
	for i := 0; i < iterations; i++ {
		enc := encodings[rng.IntN(len(encodings))]
		size := rng.IntN(maxLen + 1)
		chunkBytes := max(enc.MaxWidth(), int(math.Round(math.Sqrt(float64(rng.IntN(maxLen*2+1))))))

		content := make([]byte, 0, size)
		for j := 0; j < size; j++ {
			if rng.IntN(10) == 0 {
				content = append(content, '\n')
				continue
			}
			content = append(content, byte(rng.IntN(256)))
		}

		assertRoundTrip(t, content, enc, chunkBytes)
	}
}

func TestRoundTrip_ValidUTF8Randomized(t *testing.T) {
	alphabet := []rune("aZ09\n é ß ∑ 日本 😀 🎉  ")
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 200; i++ {
		var sb strings.Builder
		n := rng.IntN(200)
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[rng.IntN(len(alphabet))])
		}
		assertRoundTrip(t, []byte(sb.String()), UTF8, 4+rng.IntN(12))
	}
}
