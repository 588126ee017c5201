package engine

import (
	"errors"
	"fmt"
	"time"
)

// Error represents a failure reported by the engine.
//
// Error includes structured fields for diagnostics. Timestamp and Watermark
// are set for admission failures; Record is the 1-based journal record
// number for CORRUPT_JOURNAL.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Timestamp is the event timestamp, if known.
	Timestamp time.Time

	// Watermark is the engine watermark at the time of the failure.
	Watermark time.Time

	// Record is the journal record number.
	Record int

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidTimestamp indicates the event has no valid timestamp.
	ErrCodeInvalidTimestamp ErrorCode = "INVALID_TIMESTAMP"

	// ErrCodeTooOld indicates the event is at or before the watermark.
	ErrCodeTooOld ErrorCode = "TOO_OLD"

	// ErrCodeApplicationFailure indicates the Applier rejected the event.
	ErrCodeApplicationFailure ErrorCode = "APPLICATION_FAILURE"

	// ErrCodeUnencodable indicates the event cannot be written as a journal
	// record, either by the Codec or in the journal's text encoding.
	ErrCodeUnencodable ErrorCode = "UNENCODABLE"

	// ErrCodeCorruptJournal indicates a journal record could not be replayed.
	ErrCodeCorruptJournal ErrorCode = "CORRUPT_JOURNAL"

	// ErrCodeIOFailure indicates the journal could not be read or written.
	ErrCodeIOFailure ErrorCode = "IO_FAILURE"

	// ErrCodeEngineFailed indicates an earlier sweep failed and the engine
	// no longer accepts work.
	ErrCodeEngineFailed ErrorCode = "ENGINE_FAILED"
)

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrInvalidTimestamp   = &Error{Code: ErrCodeInvalidTimestamp}
	ErrTooOld             = &Error{Code: ErrCodeTooOld}
	ErrApplicationFailure = &Error{Code: ErrCodeApplicationFailure}
	ErrUnencodable        = &Error{Code: ErrCodeUnencodable}
	ErrCorruptJournal     = &Error{Code: ErrCodeCorruptJournal}
	ErrIOFailure          = &Error{Code: ErrCodeIOFailure}
	ErrEngineFailed       = &Error{Code: ErrCodeEngineFailed}
)

var (
	// ErrInvalidConfig is returned by Open for unusable configuration.
	ErrInvalidConfig = errors.New("engine: invalid configuration")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine: closed")
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	switch {
	case e.Record > 0:
		msg += fmt.Sprintf(" (record=%d)", e.Record)
	case !e.Timestamp.IsZero() && !e.Watermark.IsZero():
		msg += fmt.Sprintf(" (timestamp=%s, watermark=%s)",
			e.Timestamp.Format(time.RFC3339Nano), e.Watermark.Format(time.RFC3339Nano))
	case !e.Timestamp.IsZero():
		msg += fmt.Sprintf(" (timestamp=%s)", e.Timestamp.Format(time.RFC3339Nano))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// IsTooOld returns true if the error is a TOO_OLD rejection.
// Uses errors.As to handle wrapped errors.
func IsTooOld(err error) bool {
	return hasCode(err, ErrCodeTooOld)
}

// IsInvalidTimestamp returns true if the error is an INVALID_TIMESTAMP rejection.
func IsInvalidTimestamp(err error) bool {
	return hasCode(err, ErrCodeInvalidTimestamp)
}

// IsApplicationFailure returns true if the Applier rejected an event.
func IsApplicationFailure(err error) bool {
	return hasCode(err, ErrCodeApplicationFailure)
}

// IsUnencodable returns true if the event could not be encoded as a record.
func IsUnencodable(err error) bool {
	return hasCode(err, ErrCodeUnencodable)
}

// IsCorruptJournal returns true if the journal could not be replayed.
func IsCorruptJournal(err error) bool {
	return hasCode(err, ErrCodeCorruptJournal)
}

// IsEngineFailed returns true if the engine was poisoned by a failed sweep.
func IsEngineFailed(err error) bool {
	return hasCode(err, ErrCodeEngineFailed)
}

// hasCode reports whether the outermost *Error in err's chain has code.
func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func newInvalidTimestampError() *Error {
	return &Error{
		Code:    ErrCodeInvalidTimestamp,
		Message: "event has no valid timestamp",
	}
}

func newTooOldError(ts, watermark time.Time) *Error {
	return &Error{
		Code:      ErrCodeTooOld,
		Message:   "rejecting event as too old",
		Timestamp: ts,
		Watermark: watermark,
	}
}

func newApplicationError(ts time.Time, err error) *Error {
	return &Error{
		Code:      ErrCodeApplicationFailure,
		Message:   "apply failed",
		Timestamp: ts,
		Err:       err,
	}
}

func newUnencodableError(ts time.Time, err error) *Error {
	return &Error{
		Code:      ErrCodeUnencodable,
		Message:   "cannot encode event as a journal record",
		Timestamp: ts,
		Err:       err,
	}
}

func newCorruptJournalError(record int, err error) *Error {
	return &Error{
		Code:    ErrCodeCorruptJournal,
		Message: "cannot replay journal record",
		Record:  record,
		Err:     err,
	}
}

func newIOError(op string, err error) *Error {
	return &Error{
		Code:    ErrCodeIOFailure,
		Message: op,
		Err:     err,
	}
}

func newEngineFailedError(cause error) *Error {
	return &Error{
		Code:    ErrCodeEngineFailed,
		Message: "engine stopped after a failed sweep",
		Err:     cause,
	}
}
