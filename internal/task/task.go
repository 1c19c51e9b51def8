// Package task runs backend calls on behalf of a view so that a view torn down
// before a response arrives never sees that response.
package task

import (
	"context"
	"sync"
)

// CancelFunc discards the outcome of a wrapped call. It is idempotent and a no-op
// once the call has settled.
type CancelFunc func()

// Wrap runs fn in its own goroutine. Unless the returned CancelFunc is called
// first, exactly one of onSuccess or onError runs, once. Cancelling also cancels
// the context passed to fn.
func Wrap[T any](ctx context.Context, fn func(context.Context) (T, error), onSuccess func(T), onError func(error)) CancelFunc {
	ctx, cancelCtx := context.WithCancel(ctx)
	h := &handle{cancelCtx: cancelCtx}
	go run(ctx, h, fn, onSuccess, onError)
	return h.cancel
}

func run[T any](ctx context.Context, h *handle, fn func(context.Context) (T, error), onSuccess func(T), onError func(error)) {
	v, err := fn(ctx)
	h.settle(func() {
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(v)
		}
	})
}

type handle struct {
	mu        sync.Mutex
	done      bool
	cancelCtx context.CancelFunc
}

// settle runs deliver unless the handle was cancelled first. Once settled, a
// cancel is a no-op, including one issued from inside deliver.
func (h *handle) settle(deliver func()) {
	h.mu.Lock()
	cancelled := h.done
	h.done = true
	h.mu.Unlock()

	defer h.cancelCtx()
	if !cancelled {
		deliver()
	}
}

func (h *handle) cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return
	}
	h.done = true
	h.cancelCtx()
}
