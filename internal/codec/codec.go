// Package codec serializes events to single-line journal records.
//
// Records are canonical JSON: identical events always produce identical
// bytes, independent of map iteration order. Strings are written with their
// exact code points, so decoding a record yields the event that was encoded.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMultiline is returned when an encoder produces a record containing a
// newline, which would corrupt a line-oriented journal.
var ErrMultiline = errors.New("codec: record contains a newline")

// Codec converts events to journal records and back.
type Codec[E any] interface {
	Encode(event E) ([]byte, error)
	Decode(record []byte) (E, error)
}

// JSON encodes events with encoding/json and canonicalizes the output.
type JSON[E any] struct {
	// Strict rejects records carrying fields unknown to E.
	Strict bool
}

// Encode marshals event to a canonical single-line JSON record.
func (c JSON[E]) Encode(event E) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	out, err := Canonicalize(raw)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	if bytes.IndexByte(out, '\n') >= 0 {
		return nil, ErrMultiline
	}
	return out, nil
}

// Decode unmarshals a JSON record into an event.
func (c JSON[E]) Decode(record []byte) (E, error) {
	var event E
	dec := json.NewDecoder(bytes.NewReader(record))
	if c.Strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&event); err != nil {
		return event, fmt.Errorf("decode event: %w", err)
	}
	if dec.More() {
		return event, fmt.Errorf("decode event: trailing data after record")
	}
	return event, nil
}
