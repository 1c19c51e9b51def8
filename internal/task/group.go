package task

import (
	"context"
	"sync"
)

// Group scopes calls to the lifetime of one mounted view. Close cancels
// everything still in flight; calls started after Close never run.
type Group struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	handles []CancelFunc
	closed  bool
	fetched map[string]bool
}

// NewGroup returns a Group whose calls inherit ctx.
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{ctx: ctx, cancel: cancel, fetched: map[string]bool{}}
}

// Go wraps fn like Wrap and ties its cancellation to the group.
func Go[T any](g *Group, fn func(context.Context) (T, error), onSuccess func(T), onError func(error)) CancelFunc {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return func() {}
	}

	ctx, cancelCtx := context.WithCancel(g.ctx)
	h := &handle{cancelCtx: cancelCtx}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		run(ctx, h, fn, onSuccess, onError)
	}()
	g.handles = append(g.handles, h.cancel)
	return h.cancel
}

// Once is Go guarded by a per-concern flag: while a fetch for key is in flight
// or has succeeded, further calls are dropped. A failed fetch clears the flag.
// It reports whether a fetch was started.
func Once[T any](g *Group, key string, fn func(context.Context) (T, error), onSuccess func(T), onError func(error)) bool {
	g.mu.Lock()
	if g.closed || g.fetched[key] {
		g.mu.Unlock()
		return false
	}
	g.fetched[key] = true
	g.mu.Unlock()

	Go(g, fn, onSuccess, func(err error) {
		g.mu.Lock()
		delete(g.fetched, key)
		g.mu.Unlock()
		if onError != nil {
			onError(err)
		}
	})
	return true
}

// Fetched reports whether key has a fetch in flight or completed.
func (g *Group) Fetched(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetched[key]
}

// Wait blocks until every call started so far has settled or been cancelled
// and its callback, if any, has returned. Calls without a deadline can block
// Wait forever; Close from another goroutine releases it.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Close cancels every call started through the group.
func (g *Group) Close() {
	g.mu.Lock()
	handles := g.handles
	g.handles = nil
	g.closed = true
	g.mu.Unlock()

	for _, c := range handles {
		c()
	}
	g.cancel()
}
