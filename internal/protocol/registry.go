package protocol

import (
	"fmt"

	"github.com/blukai/skeldparty/internal/debug"
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/hashicorp/go-multierror"
)

// DecodeFunc decodes one payload. Returning a message together with an error
// means the message is usable but some nested part of it was not (the error
// is soft). Returning no message means the payload is garbage.
type DecodeFunc func(r *hazel.Reader, dir Direction, reg *Registry) (Message, error)

// Registry maps (namespace, tag) to codecs. It is built once at startup and
// only read afterwards.
type Registry struct {
	codecs map[Tag]DecodeFunc
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[Tag]DecodeFunc)}
}

// DefaultRegistry knows every root, game data and rpc message of this
// package. System-space codecs live next to the systems and are registered by
// systems.Register.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	registerRoot(reg)
	registerGameData(reg)
	registerRpc(reg)
	return reg
}

func (reg *Registry) Register(tag Tag, fn DecodeFunc) {
	_, ok := reg.codecs[tag]
	debug.Assertf(!ok, "%s registered twice", tag)
	reg.codecs[tag] = fn
}

func (reg *Registry) Registered(tag Tag) bool {
	_, ok := reg.codecs[tag]
	return ok
}

// Decode decodes the payload in r. Unregistered tags decode to an
// UnknownMessage holding the raw bytes.
func (reg *Registry) Decode(tag Tag, r *hazel.Reader, dir Direction) (Message, error) {
	fn, ok := reg.codecs[tag]
	if !ok {
		return &UnknownMessage{MessageTag: tag, Data: r.Rest()}, nil
	}

	msg, err := fn(r, dir, reg)
	if err == nil && r.Err() != nil {
		err = r.Err()
	}
	return msg, err
}

// DecodeChildren reads frames until r is exhausted. A frame that fails to
// decode is kept as an UnknownMessage and its error is collected; decoding
// carries on with the next sibling because the frame length is known.
func (reg *Registry) DecodeChildren(ns Namespace, r *hazel.Reader, dir Direction) ([]Message, error) {
	var (
		children []Message
		errs     error
	)
	for r.Left() > 0 {
		id, sub := r.Message()
		if r.Err() != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not read %s frame: %w", ns, r.Err()))
			break
		}

		tag := Tag{Namespace: ns, ID: id}
		raw := sub.Rest()

		msg, err := reg.Decode(tag, hazel.NewReader(raw), dir)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not decode %s: %w", tag, err))
		}
		if msg == nil {
			msg = &UnknownMessage{MessageTag: tag, Data: raw}
		}
		children = append(children, msg)
	}
	return children, errs
}

type deserializer interface {
	Message
	deserialize(r *hazel.Reader)
}

// registerFixed registers a message whose layout does not depend on
// direction and does not nest other messages.
func registerFixed[T any, P interface {
	*T
	deserializer
}](reg *Registry, tag Tag) {
	reg.Register(tag, func(r *hazel.Reader, _ Direction, _ *Registry) (Message, error) {
		m := P(new(T))
		m.deserialize(r)
		if r.Err() != nil {
			return nil, r.Err()
		}
		return m, nil
	})
}

// registerDirectional registers a tag whose layout differs between the two
// directions. Each side decodes into its own type.
func registerDirectional[S, C any, PS interface {
	*S
	deserializer
}, PC interface {
	*C
	deserializer
}](reg *Registry, tag Tag) {
	reg.Register(tag, func(r *hazel.Reader, dir Direction, _ *Registry) (Message, error) {
		var m deserializer
		if dir == Serverbound {
			m = PS(new(S))
		} else {
			m = PC(new(C))
		}
		m.deserialize(r)
		if r.Err() != nil {
			return nil, r.Err()
		}
		return m, nil
	})
}
