package writer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/hooks"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

// Executor applies an op batch to a document.
type Executor interface {
	Apply(ctx context.Context, batch Batch) (*Result, error)
}

// Sender pushes an event to the connected desktop client. The gateway's
// client registry implements it.
type Sender interface {
	SendEvent(event string, payload any) error
}

// EventWriterApply is the event name batches are dispatched under.
const EventWriterApply = "writer.apply"

// DefaultApplyTimeout bounds how long a dispatched batch waits for the
// client's result.
const DefaultApplyTimeout = 30 * time.Second

// Dispatch errors.
var (
	ErrNoClient     = fmt.Errorf("writer: no client connected to apply edits")
	ErrApplyTimeout = fmt.Errorf("writer: timed out waiting for the client to apply edits")
	ErrUnknownBatch = fmt.Errorf("writer: no pending batch with that id")
)

// Dispatcher is the production Executor: it sends batches to the desktop
// client as writer.apply events and parks them until the client reports a
// writer.result, correlated by batch ID.
type Dispatcher struct {
	mu      sync.Mutex
	sender  Sender
	pending map[string]chan Result

	timeout time.Duration
	hooks   *hooks.Manager
	log     *logging.Logger
}

// NewDispatcher creates a dispatcher. A non-positive timeout falls back to
// the default. The hooks manager may be nil.
func NewDispatcher(timeout time.Duration, hk *hooks.Manager, log *logging.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultApplyTimeout
	}
	return &Dispatcher{
		pending: make(map[string]chan Result),
		timeout: timeout,
		hooks:   hk,
		log:     log.Sub("writer"),
	}
}

// Bind attaches the sender used for dispatches. Called by the gateway once
// its client registry exists; nil unbinds.
func (d *Dispatcher) Bind(s Sender) {
	d.mu.Lock()
	d.sender = s
	d.mu.Unlock()
}

// Pending returns how many batches are waiting on a client result.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Apply validates the batch, sends it to the client, and waits for the
// matching result.
func (d *Dispatcher) Apply(ctx context.Context, batch Batch) (*Result, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	sender := d.sender
	if sender == nil {
		d.mu.Unlock()
		return nil, ErrNoClient
	}
	ch := make(chan Result, 1)
	d.pending[batch.ID] = ch
	d.mu.Unlock()

	drop := func() {
		d.mu.Lock()
		delete(d.pending, batch.ID)
		d.mu.Unlock()
	}

	if err := sender.SendEvent(EventWriterApply, batch); err != nil {
		drop()
		return nil, fmt.Errorf("writer: dispatching batch: %w", err)
	}

	d.log.Debug().
		Str("batch", batch.ID).
		Str("document", batch.DocumentPath).
		Int("ops", len(batch.Ops)).
		Msg("batch dispatched")

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		d.emit(ctx, &res)
		return &res, nil
	case <-timer.C:
		drop()
		return nil, ErrApplyTimeout
	case <-ctx.Done():
		drop()
		return nil, ctx.Err()
	}
}

// Resolve completes a pending batch with the client's result. Results for
// unknown (or already timed-out) batches are rejected.
func (d *Dispatcher) Resolve(batchID string, res Result) error {
	d.mu.Lock()
	ch, ok := d.pending[batchID]
	if ok {
		delete(d.pending, batchID)
	}
	d.mu.Unlock()

	if !ok {
		return ErrUnknownBatch
	}
	res.BatchID = batchID
	ch <- res
	return nil
}

func (d *Dispatcher) emit(ctx context.Context, res *Result) {
	d.log.Info().
		Str("batch", res.BatchID).
		Int("applied", res.Applied).
		Int("failed", res.Failed).
		Msg("batch applied")
	if d.hooks == nil {
		return
	}
	d.hooks.Emit(ctx, hooks.EventWriterApplied, map[string]any{
		"batch_id": res.BatchID,
		"applied":  res.Applied,
		"failed":   res.Failed,
	})
}
