package convert

import (
	"context"
	"sync"
)

// registry loads each resource at most once per key and shares the result.
// Concurrent callers for the same key wait for one load. Failed loads are
// not kept, so the next caller retries.
type registry[T any] struct {
	mu      sync.Mutex
	loaded  map[string]T
	loading map[string]*loadCall[T]
	load    func(key string) (T, error)
}

type loadCall[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newRegistry[T any](load func(key string) (T, error)) *registry[T] {
	return &registry[T]{
		loaded:  make(map[string]T),
		loading: make(map[string]*loadCall[T]),
		load:    load,
	}
}

func (r *registry[T]) get(ctx context.Context, key string) (T, error) {
	r.mu.Lock()
	if v, ok := r.loaded[key]; ok {
		r.mu.Unlock()
		return v, nil
	}
	call, inflight := r.loading[key]
	if !inflight {
		call = &loadCall[T]{done: make(chan struct{})}
		r.loading[key] = call
	}
	r.mu.Unlock()

	if !inflight {
		go r.run(key, call)
	}

	select {
	case <-call.done:
		return call.val, call.err
	case <-ctx.Done():
		var zero T
		return zero, context.Cause(ctx)
	}
}

// run completes the load even after every waiter has given up.
func (r *registry[T]) run(key string, call *loadCall[T]) {
	call.val, call.err = r.load(key)

	r.mu.Lock()
	delete(r.loading, key)
	if call.err == nil {
		r.loaded[key] = call.val
	}
	r.mu.Unlock()
	close(call.done)
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loaded)
}
