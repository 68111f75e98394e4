// Package harness runs exchange scenarios against a real sequencer and
// driver and checks what happened.
//
// # Scenario Format
//
//	name: two_producers
//	description: "Arrival order is fetch order"
//	stagger: true
//	driver:
//	  respond: item_done      # put | none
//	sequences:
//	  - name: A
//	    responses: by_id      # fifo | none
//	    items:
//	      - { name: add, a: 1, b: 5 }
//	  - name: B
//	    items:
//	      - { name: add, a: 2, b: 2 }
//	assertions:
//	  - type: fetch_order
//	    items: [A-0001, B-0001]
//	  - type: responses_matched
//
// Files are checked against an embedded CUE schema, then decoded with
// unknown fields rejected.
//
// # Assertion Types
//
//   - fetch_order: item ids in the order the driver selected them
//   - fetch_count: number of items the driver selected
//   - sequence_order: order in which the named sequences were first served
//   - responses_matched: each request got exactly one response, linked to it
//   - sequence_error: the named sequence stopped with the given error code
//
// # Determinism
//
// Item ids come from a per-sequence counter and the trace store uses a
// logical clock. Each sequence's transcript is therefore identical across
// runs and is what golden files capture. Global interleaving of several
// multi-item sequences is not, and is left out of snapshots.
package harness
