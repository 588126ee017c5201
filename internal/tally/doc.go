// Package tally is the endog demo domain: named counters driven by
// timestamped delta events.
//
// An Event adds Delta to the counter Key at Time. Applying an event that
// would drive a counter below zero fails with ErrNegativeBalance, which the
// engine surfaces as APPLICATION_FAILURE and leaves the state unchanged.
//
// Events are stored as canonical JSON, one per journal line:
//
//	{"delta":3,"id":"0190c3d2-...","key":"apples","time":"2024-05-01T12:00:00Z"}
package tally
