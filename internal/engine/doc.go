// Package engine implements the limit-order upsert engine.
//
// Process derives an event's identity, then under a per-identity lock loads
// the record, creates it if absent, increments UpdatesCount, overwrites the
// remaining amount and saves. Run drives Process from a source.Source.
//
// ARCHITECTURE:
//
// Keyed Locking:
// A reference-counted mutex per identity serializes load-merge-save for one
// order while unrelated orders proceed in parallel. Lock entries are dropped
// as soon as nobody holds or awaits them.
//
// Run Loop:
//  1. Source.Next yields a Delivery (raw event + ack)
//  2. The event is parsed; malformed events are logged, acked and skipped
//  3. With one worker the loop calls Process directly. With N workers a
//     dispatcher routes each event to the bounded queue of shard
//     (identity mod N), so one identity is always handled by one goroutine
//  4. Success and skippable errors ack the delivery; a store error stops the
//     run without acking
//
// The store is the only shared mutable state. Backends additionally reject a
// save that is not the direct successor of the stored version, so two
// engines writing to one database cannot lose an update silently.
package engine
