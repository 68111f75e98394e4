// Package sequence implements producers: user-authored bodies that create
// items, hand them to a sequencer, and collect correlated responses.
//
//	seq := sequence.New("alu", func(ctx context.Context, s *sequence.Sequence) error {
//	    req := &AluReq{Item: txn.NewItem(ids, "alu-req")}
//	    if err := s.StartItem(ctx, req); err != nil {
//	        return err
//	    }
//	    req.A, req.B = 1, 5
//	    if err := s.FinishItem(ctx, req); err != nil {
//	        return err
//	    }
//	    rsp, err := sequence.As[*AluRsp](s.GetResponse(ctx, ""))
//	    ...
//	})
//	err := seq.Start(ctx, seqr)
//
// The orchestration runner decides which goroutine calls Start; this
// package does not launch goroutines of its own.
package sequence
