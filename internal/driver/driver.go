package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/seqx/internal/exchange"
	"github.com/roach88/seqx/internal/txn"
)

// ResponseMode selects how the driver hands a response back.
type ResponseMode int

const (
	// RespondInItemDone passes the response to MarkDone.
	RespondInItemDone ResponseMode = iota
	// RespondViaPut calls MarkDone(nil), then Put(rsp).
	RespondViaPut
	// RespondNone calls MarkDone(nil) and drops any response.
	RespondNone
)

func (m ResponseMode) String() string {
	switch m {
	case RespondInItemDone:
		return "item_done"
	case RespondViaPut:
		return "put"
	case RespondNone:
		return "none"
	}
	return fmt.Sprintf("ResponseMode(%d)", int(m))
}

// ParseResponseMode maps the scenario spelling onto a ResponseMode.
// The empty string means RespondInItemDone.
func ParseResponseMode(s string) (ResponseMode, error) {
	switch s {
	case "", "item_done":
		return RespondInItemDone, nil
	case "put":
		return RespondViaPut, nil
	case "none":
		return RespondNone, nil
	}
	return 0, fmt.Errorf("unknown response mode %q", s)
}

// Handler consumes one request and returns its response, or nil for none.
type Handler func(ctx context.Context, req txn.Transaction) (txn.Transaction, error)

// Option configures a Driver.
type Option func(*Driver)

// WithResponseMode sets the response mode. Default: RespondInItemDone.
func WithResponseMode(m ResponseMode) Option {
	return func(d *Driver) {
		d.mode = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// Driver is the consumer side of an exchange channel.
type Driver struct {
	port    exchange.DriverPort
	handler Handler
	mode    ResponseMode
	logger  *slog.Logger
	handled atomic.Int64
}

// New creates a driver that serves port with handler.
func New(port exchange.DriverPort, handler Handler, opts ...Option) *Driver {
	d := &Driver{
		port:    port,
		handler: handler,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handled returns the number of items completed so far.
func (d *Driver) Handled() int {
	return int(d.handled.Load())
}

// Run fetches, handles and completes items until ctx ends or the channel
// closes.
//
// A handler error completes the current item without a response and
// stops the loop.
func (d *Driver) Run(ctx context.Context) error {
	for {
		req, err := d.port.FetchNext(ctx)
		if err != nil {
			if errors.Is(err, exchange.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch next: %w", err)
		}

		rsp, herr := d.handler(ctx, req)
		if herr != nil {
			if err := d.port.MarkDone(nil); err != nil {
				d.logger.Error("mark done after handler failure", "item", req.SeqItem().ID(), "error", err)
			}
			return fmt.Errorf("handle %s: %w", req.SeqItem(), herr)
		}

		if err := d.complete(rsp); err != nil {
			return err
		}
		d.handled.Add(1)
	}
}

func (d *Driver) complete(rsp txn.Transaction) error {
	switch d.mode {
	case RespondInItemDone:
		return d.port.MarkDone(rsp)
	case RespondViaPut:
		if err := d.port.MarkDone(nil); err != nil {
			return err
		}
		if rsp == nil {
			return nil
		}
		return d.port.Put(rsp)
	default:
		if rsp != nil {
			d.logger.Debug("dropping response", "response", rsp.SeqItem().ID())
		}
		return d.port.MarkDone(nil)
	}
}
