// Package engine implements the endog tolerant event-sourced state engine.
//
// The engine keeps two snapshots of a caller-defined state: Baseline, the
// durably committed state as of the watermark, and Current, Baseline with
// every pending event folded in. Events may arrive out of order as long as
// they are no older than the watermark; late arrivals are inserted into the
// pending buffer by timestamp and Current is recomputed.
//
// ARCHITECTURE:
//
// Submit:
// 1. Reject events with a zero timestamp (INVALID_TIMESTAMP)
// 2. Reject events at or before the watermark (TOO_OLD)
// 3. Insert into the buffer after any equal timestamps
// 4. Fold into a private clone; swap it in only on success
// 5. Schedule a sweep at timestamp + tolerance + 1ms
//
// Sweep:
// 1. cutoff = now - tolerance
// 2. Fold the buffer prefix older than cutoff into a clone of Baseline
// 3. Append that prefix to the journal (synchronous, one record per event)
// 4. Swap Baseline, set watermark = now, drop the prefix from the buffer
//
// A sweep failure leaves memory and disk disagreeing, so it is fatal: the
// engine is poisoned and every later Submit or Sweep returns ENGINE_FAILED.
//
// CONCURRENCY:
//
// Baseline, Current, the buffer and the watermark are guarded by one mutex.
// Clone, fold and swap happen entirely under it, and so does the journal
// append in Sweep, so disk never outruns the watermark. Sweeps are driven by
// a scheduler holding a min-heap of deadlines and a single timer. Sweep
// recomputes its prefix from live state, which makes coalesced or duplicate
// firings harmless.
//
// State values must implement Clone. State returns Current without copying;
// callers must treat it as read-only.
package engine
