package protocol

import (
	"context"

	"github.com/blukai/skeldparty/internal/emitter"
	"github.com/hashicorp/go-multierror"
)

// Decoder is a Registry plus listeners for decoded messages.
type Decoder struct {
	*Registry
	events *emitter.Emitter
}

func NewDecoder(reg *Registry) *Decoder {
	return &Decoder{
		Registry: reg,
		events:   emitter.New(),
	}
}

func (d *Decoder) Emitter() *emitter.Emitter {
	return d.events
}

func (d *Decoder) DecodePacket(data []byte, dir Direction) (Packet, error) {
	return DecodePacket(data, dir, d.Registry)
}

// Emit fans p and everything nested in it out to listeners, depth first in
// wire order. Listener panics are collected, they never stop the walk.
func (d *Decoder) Emit(p Packet) error {
	var errs error
	if err := d.events.Emit(p); err != nil {
		errs = multierror.Append(errs, err)
	}

	var children []Message
	switch p := p.(type) {
	case *ReliablePacket:
		children = p.Children
	case *UnreliablePacket:
		children = p.Children
	}
	for _, child := range children {
		if err := d.EmitMessage(child); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (d *Decoder) EmitMessage(m Message) error {
	var errs error
	if err := d.events.Emit(m); err != nil {
		errs = multierror.Append(errs, err)
	}

	var children []Message
	switch m := m.(type) {
	case *GameDataMessage:
		children = m.Children
	case *GameDataToMessage:
		children = m.Children
	case *RpcMessage:
		if m.Call != nil {
			children = []Message{m.Call}
		}
	}
	for _, child := range children {
		if err := d.EmitMessage(child); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// On listens for decoded values of type T (a concrete message or packet type,
// or an interface such as Message).
func On[T any](d *Decoder, fn func(T)) (off func()) {
	return emitter.On(d.events, fn)
}

func Once[T any](d *Decoder, fn func(T)) (off func()) {
	return emitter.Once(d.events, fn)
}

// OnAny listens for any of the samples' types.
func OnAny(d *Decoder, fn func(any), samples ...any) (off func()) {
	return emitter.OnAny(d.events, fn, samples...)
}

func Expect[T any](d *Decoder, pred func(T) bool) *emitter.Pending[T] {
	return emitter.Expect(d.events, pred)
}

// Wait blocks until the next decoded T accepted by pred or until ctx is done.
func Wait[T any](ctx context.Context, d *Decoder, pred func(T) bool) (T, error) {
	return emitter.Wait(ctx, d.events, pred)
}
