// Package sequencer implements the arbiter between sequences and a driver.
//
// A sequence drives one item through three calls:
//
//	seqr.StartItem(ctx, req)  // queue it, wait for the driver to pick it
//	req.A, req.B = 1, 5       // populate
//	seqr.FinishItem(ctx, req) // release it, wait for the driver to finish
//	rsp, err := seqr.GetResponse(ctx, req.ID())
//
// The driver side lives on Channel(), see package exchange.
package sequencer
