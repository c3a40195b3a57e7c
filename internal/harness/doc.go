// Package harness runs YAML scenarios against an in-memory engine.
//
// # Scenario Format
//
//	name: create_then_update
//	description: "A second event for the same order updates it in place"
//	events:
//	  - maker_address: "0x1111111111111111111111111111111111111111"
//	    taker_address: "0x2222222222222222222222222222222222222222"
//	    maker_asset: "0x3333333333333333333333333333333333333333"
//	    taker_asset: "0x4444444444444444444444444444444444444444"
//	    maker_amount: "100"
//	    taker_amount: "200"
//	    expiration: "9999"
//	    remaining: "100"
//	  - maker_address: "0x11"
//	    expect_error: malformed
//	expect:
//	  - event: 0
//	    updates_count: 1
//	    remaining_amount: "100"
//	  - id: "0x…"
//	    exists: false
//
// Events are delivered in order through a single-worker engine.Run. Each
// event either merges (created or updated) or, when expect_error is set,
// must be rejected with that result. Expectations select a record by
// identity or by the event that names it.
//
// # Determinism
//
// The run ID is fixed (scenario run_id or "test-run-default") and the store
// is fresh per scenario, so the snapshot written by RunWithGolden is
// byte-identical across runs.
package harness
