// Package txn defines the sequence item carried through a sequencer and the
// edge-triggered signals that pace its hand-off.
//
// An Item moves through three one-shot events:
//
//	selected  - the consumer picked the item off the request queue
//	released  - the producer finished populating it (finish_item)
//	completed - the consumer marked it done
//
// Signals are edge-triggered: a pulse wakes only the waiters registered at
// that moment. Every wait in the protocol arms before the action that can
// trigger the pulse, so no pulse is lost to goroutine scheduling.
//
// Identity comes from an IDSource; items do not generate their own ids.
package txn
