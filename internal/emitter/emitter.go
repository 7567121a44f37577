// Package emitter is a typed listener table. Listeners are keyed by the
// concrete (or interface) type of the values they want, run synchronously in
// registration order, and every registration hands back the function that
// cancels it.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
)

var ErrListenerPanic = errors.New("emitter: listener panicked")

type listener struct {
	types   []reflect.Type
	once    bool
	fired   atomic.Bool
	removed atomic.Bool
	fn      func(any)
}

func (l *listener) matches(t reflect.Type) bool {
	for _, want := range l.types {
		if t == want {
			return true
		}
		if want.Kind() == reflect.Interface && t.Implements(want) {
			return true
		}
	}
	return false
}

// Emitter is safe for concurrent use. Emit never holds the lock while running
// a listener, so listeners may register or cancel other listeners.
type Emitter struct {
	mu        sync.Mutex
	listeners []*listener
}

func New() *Emitter {
	return &Emitter{}
}

// Len reports the number of registered listeners.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func (e *Emitter) register(l *listener) (off func()) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()

	return func() { e.remove(l) }
}

func (e *Emitter) remove(l *listener) {
	if !l.removed.CompareAndSwap(false, true) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, it := range e.listeners {
		if it == l {
			// full slice expression so that a snapshot held by Emit
			// keeps its own backing array
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Emit runs every listener matching v's type. A panicking listener does not
// stop the others; panics are returned aggregated.
func (e *Emitter) Emit(v any) error {
	if v == nil {
		return nil
	}
	t := reflect.TypeOf(v)

	e.mu.Lock()
	snapshot := e.listeners
	e.mu.Unlock()

	var errs error
	for _, l := range snapshot {
		if l.removed.Load() || !l.matches(t) {
			continue
		}
		if l.once {
			if !l.fired.CompareAndSwap(false, true) {
				continue
			}
			e.remove(l)
		}
		if err := call(l.fn, v); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func call(fn func(any), v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanic, r)
		}
	}()
	fn(v)
	return nil
}

func typeOf[T any]() []reflect.Type {
	return []reflect.Type{reflect.TypeFor[T]()}
}

// On registers fn for every emitted value of type T. T may be an interface, in
// which case every value implementing it matches.
func On[T any](e *Emitter, fn func(T)) (off func()) {
	return e.register(&listener{
		types: typeOf[T](),
		fn:    func(v any) { fn(v.(T)) },
	})
}

// Once is On that cancels itself after the first call.
func Once[T any](e *Emitter, fn func(T)) (off func()) {
	return e.register(&listener{
		types: typeOf[T](),
		once:  true,
		fn:    func(v any) { fn(v.(T)) },
	})
}

// OnAny registers fn for values of any of the samples' types.
func OnAny(e *Emitter, fn func(any), samples ...any) (off func()) {
	types := make([]reflect.Type, 0, len(samples))
	for _, s := range samples {
		types = append(types, reflect.TypeOf(s))
	}
	return e.register(&listener{types: types, fn: fn})
}

// Pending is a registered, not yet resolved Wait. Registering before sending
// whatever provokes the awaited value avoids missing a fast reply.
type Pending[T any] struct {
	ch  chan T
	off func()
}

// Expect registers a one-shot listener for the next T accepted by pred (nil
// accepts everything).
func Expect[T any](e *Emitter, pred func(T) bool) *Pending[T] {
	p := &Pending[T]{ch: make(chan T, 1)}

	l := &listener{types: typeOf[T]()}
	l.fn = func(v any) {
		t := v.(T)
		if pred != nil && !pred(t) {
			return
		}
		if l.fired.CompareAndSwap(false, true) {
			e.remove(l)
			p.ch <- t
		}
	}
	p.off = e.register(l)

	return p
}

// Wait resolves exactly once. The listener is gone when Wait returns, whether
// or not it fired.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	defer p.off()

	select {
	case v := <-p.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Pending[T]) Cancel() {
	p.off()
}

func Wait[T any](ctx context.Context, e *Emitter, pred func(T) bool) (T, error) {
	return Expect(e, pred).Wait(ctx)
}
