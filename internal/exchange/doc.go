// Package exchange implements the hand-off between many sequences and one
// driver.
//
// ARCHITECTURE:
//
// A Channel pairs a FIFO request Queue with a ResponseStore and tracks the
// single item currently checked out by the driver:
//
//	sequencer ──SubmitRequest──▶ request queue ──FetchNext──▶ driver
//	sequence  ◀──FetchResponse── response store ◀──MarkDone(rsp)── driver
//
// FetchNext does not return until the producing sequence has released the
// item (finish_item), so the driver always sees a fully populated item.
// MarkDone completes it and optionally stores a response, which the
// producer retrieves oldest-first or by correlation id.
//
// ERRORS:
//
// All protocol failures are *SequenceError values with a Code. None are
// retried. A task waiting on a pulse that already fired is a deadlock, not
// an error; the protocol arms every wait before the step that could pulse
// it, and pulses that wake nobody are logged at DEBUG.
//
// CANCELLATION:
//
// Blocking calls take a context so goroutines can be shut down. Cancelling
// only stops the wait; the item is not withdrawn from the exchange.
package exchange
