// Package future provides a resolve-once handle for values that become available
// later, possibly from another goroutine or another stack.
package future

import (
	"context"
	"errors"
	"sync"
)

var ErrAlreadySettled = errors.New("future already settled")

// Future holds a value of type T that is resolved or rejected exactly once.
// The settled outcome is cached; every Await after settlement returns it.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future with v. It returns ErrAlreadySettled if the
// future was settled before.
func (f *Future[T]) Resolve(v T) error {
	return f.settle(v, nil)
}

// Reject settles the future with err.
func (f *Future[T]) Reject(err error) error {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) error {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		settled = true
		close(f.done)
	})
	if !settled {
		return ErrAlreadySettled
	}
	return nil
}

// Done is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Settled reports whether the future has been resolved or rejected.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Go runs fn in its own goroutine and settles the returned future with its result.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// Then chains fn onto src. A rejected src rejects the result without calling fn.
func Then[T, U any](ctx context.Context, src *Future[T], fn func(ctx context.Context, v T) (U, error)) *Future[U] {
	return Go(ctx, func(ctx context.Context) (U, error) {
		v, err := src.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(ctx, v)
	})
}

// All gathers fs into one future whose value keeps the order of fs. It settles
// only after every input settled, or with the first rejection observed in order.
func All[T any](ctx context.Context, fs []*Future[T]) *Future[[]T] {
	return Go(ctx, func(ctx context.Context) ([]T, error) {
		out := make([]T, len(fs))
		var firstErr error
		for i, f := range fs {
			v, err := f.Await(ctx)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			out[i] = v
		}
		if firstErr != nil {
			return nil, firstErr
		}
		return out, nil
	})
}
