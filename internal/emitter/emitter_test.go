package emitter_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blukai/skeldparty/internal/emitter"
	"github.com/matryer/is"
)

type ping struct{ n int }

type pong struct{ n int }

func (p pong) String() string { return fmt.Sprint(p.n) }

func TestOnRunsInRegistrationOrder(t *testing.T) {
	is := is.New(t)

	e := emitter.New()

	var calls []string
	emitter.On(e, func(p ping) { calls = append(calls, fmt.Sprintf("a%d", p.n)) })
	emitter.On(e, func(p ping) { calls = append(calls, fmt.Sprintf("b%d", p.n)) })
	emitter.On(e, func(p pong) { calls = append(calls, "pong") })

	is.NoErr(e.Emit(ping{1}))
	is.NoErr(e.Emit(ping{2}))
	is.Equal(calls, []string{"a1", "b1", "a2", "b2"})
}

func TestOffAndOnce(t *testing.T) {
	is := is.New(t)

	e := emitter.New()

	var on, once int
	off := emitter.On(e, func(ping) { on++ })
	emitter.Once(e, func(ping) { once++ })

	is.NoErr(e.Emit(ping{}))
	off()
	is.NoErr(e.Emit(ping{}))

	is.Equal(on, 1)
	is.Equal(once, 1)
	is.Equal(e.Len(), 0)
}

func TestInterfaceAndAny(t *testing.T) {
	is := is.New(t)

	e := emitter.New()

	var stringers, anys int
	emitter.On(e, func(fmt.Stringer) { stringers++ })
	emitter.OnAny(e, func(any) { anys++ }, ping{}, pong{})

	is.NoErr(e.Emit(ping{}))
	is.NoErr(e.Emit(pong{}))
	is.NoErr(e.Emit(42))

	is.Equal(stringers, 1)
	is.Equal(anys, 2)
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	is := is.New(t)

	e := emitter.New()

	ran := false
	emitter.On(e, func(ping) { panic("boom") })
	emitter.On(e, func(ping) { ran = true })

	err := e.Emit(ping{})
	is.True(errors.Is(err, emitter.ErrListenerPanic))
	is.True(ran)
}

func TestWait(t *testing.T) {
	is := is.New(t)

	t.Run("predicate", func(t *testing.T) {
		e := emitter.New()

		pending := emitter.Expect(e, func(p ping) bool { return p.n == 3 })
		for i := range 5 {
			is.NoErr(e.Emit(ping{i}))
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		got, err := pending.Wait(ctx)
		is.NoErr(err)
		is.Equal(got.n, 3)
		is.Equal(e.Len(), 0)
	})

	t.Run("concurrent emit", func(t *testing.T) {
		e := emitter.New()

		go func() {
			for e.Len() == 0 {
				time.Sleep(time.Millisecond)
			}
			_ = e.Emit(pong{7})
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		got, err := emitter.Wait[pong](ctx, e, nil)
		is.NoErr(err)
		is.Equal(got.n, 7)
	})

	t.Run("timeout removes listener", func(t *testing.T) {
		e := emitter.New()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := emitter.Wait[ping](ctx, e, nil)
		is.True(errors.Is(err, context.DeadlineExceeded))
		is.Equal(e.Len(), 0)
	})
}
