package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	S    string    `json:"s"`
	Time time.Time `json:"time"`
	N    int64     `json:"n,omitempty"`
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"sorted keys", `{"zebra":1,"alpha":2,"beta":3}`, `{"alpha":2,"beta":3,"zebra":1}`},
		{"nested", `{"z":{"b":1,"a":2},"a":3}`, `{"a":3,"z":{"a":2,"b":1}}`},
		{"whitespace", "{ \"a\" : [ 1 , 2 ] }", `{"a":[1,2]}`},
		{"no html escaping", `{"a":"<b>&</b>"}`, `{"a":"<b>&</b>"}`},
		{"numbers verbatim", `[1.50,-0,12345678901234567890]`, `[1.50,-0,12345678901234567890]`},
		{"null and bools", `[null,true,false]`, `[null,true,false]`},
		{"newline escaped", `"a\nb"`, `"a\nb"`},
		{"line separator literal", "\"a\u2028b\"", "\"a\u2028b\""},
		{"escaped backslash kept", `"\\u2028"`, `"\\u2028"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestCanonicalize_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single "é".
	got, err := Canonicalize([]byte("{\"e\u0301\":\"e\u0301\"}"), NormalizeNFC())
	require.NoError(t, err)
	assert.Equal(t, "{\"\u00e9\":\"\u00e9\"}", string(got))
}

func TestCanonicalize_KeepsCodePoints(t *testing.T) {
	got, err := Canonicalize([]byte("{\"e\u0301\":\"e\u0301\"}"))
	require.NoError(t, err)
	assert.Equal(t, "{\"e\u0301\":\"e\u0301\"}", string(got))
}

func TestCanonicalize_UTF16KeyOrder(t *testing.T) {
	// U+FB01 sorts before U+1F600 in UTF-8 byte order but after it in UTF-16.
	got, err := Canonicalize([]byte(`{"😀":1,"ﬁ":2}`))
	require.NoError(t, err)
	assert.Equal(t, `{"😀":1,"ﬁ":2}`, string(got))
}

func TestCanonicalize_Invalid(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = Canonicalize([]byte(`{} {}`))
	assert.Error(t, err)
}

func TestJSON_NonNFCRoundTrip(t *testing.T) {
	c := JSON[testEvent]{}
	in := testEvent{S: "e\u0301", Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	rec, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, in.S, out.S)
	assert.NotEqual(t, "\u00e9", out.S)
}

func TestJSON_RoundTrip(t *testing.T) {
	c := JSON[testEvent]{}
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec, err := c.Encode(testEvent{S: "multi\nline", Time: ts, N: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"n":3,"s":"multi\nline","time":"2024-05-01T12:00:00Z"}`, string(rec))
	assert.NotContains(t, string(rec), "\n")

	ev, err := c.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, "multi\nline", ev.S)
	assert.True(t, ts.Equal(ev.Time))
	assert.Equal(t, int64(3), ev.N)
}

func TestJSON_Deterministic(t *testing.T) {
	c := JSON[map[string]any]{}
	a, err := c.Encode(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	b, err := c.Encode(map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestJSON_DecodeErrors(t *testing.T) {
	c := JSON[testEvent]{}

	_, err := c.Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = c.Decode([]byte(`{"s":"a"} trailing`))
	assert.Error(t, err)

	strict := JSON[testEvent]{Strict: true}
	_, err = strict.Decode([]byte(`{"s":"a","unknown":1}`))
	assert.Error(t, err)

	_, err = c.Decode([]byte(`{"s":"a","unknown":1}`))
	assert.NoError(t, err)
}
