package writer

import (
	"context"
	"sync"
)

// Recorder is an in-memory Executor for tests and the dry-run CLI path: it
// validates and records batches instead of dispatching them. Result and Err
// configure what Apply returns; by default every op is reported applied.
type Recorder struct {
	mu      sync.Mutex
	batches []Batch

	Result *Result
	Err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Apply validates and records the batch.
func (r *Recorder) Apply(_ context.Context, batch Batch) (*Result, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.batches = append(r.batches, batch)
	r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	if r.Result != nil {
		res := *r.Result
		res.BatchID = batch.ID
		return &res, nil
	}
	return &Result{BatchID: batch.ID, Applied: len(batch.Ops)}, nil
}

// Batches returns every recorded batch in order.
func (r *Recorder) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Batch, len(r.batches))
	copy(out, r.batches)
	return out
}

// Last returns the most recently recorded batch.
func (r *Recorder) Last() (Batch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return Batch{}, false
	}
	return r.batches[len(r.batches)-1], true
}
