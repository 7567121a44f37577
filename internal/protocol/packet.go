package protocol

import (
	"errors"
	"fmt"

	"github.com/blukai/skeldparty/internal/hazel"
)

var ErrUnknownPacket = errors.New("unknown packet")

// Packet is the outermost unit, one per datagram. Byte 0 is always the tag.
type Packet interface {
	PacketTag() PacketTag
	Serialize(w *hazel.Writer, dir Direction)
}

// Acknowledgeable packets carry a nonce the receiver must acknowledge.
type Acknowledgeable interface {
	Packet
	AckNonce() uint16
}

var (
	_ Acknowledgeable = (*HelloPacket)(nil)
	_ Acknowledgeable = (*PingPacket)(nil)
	_ Acknowledgeable = (*ReliablePacket)(nil)
	_ Packet          = (*UnreliablePacket)(nil)
	_ Packet          = (*DisconnectPacket)(nil)
	_ Packet          = (*AcknowledgePacket)(nil)
)

type HelloPacket struct {
	Nonce         uint16
	HazelVersion  uint8
	ClientVersion Version
	Username      string
	AuthNonce     uint32
	Language      uint32
	ChatMode      uint8
}

func (p *HelloPacket) PacketTag() PacketTag { return PacketHello }
func (p *HelloPacket) AckNonce() uint16     { return p.Nonce }

func (p *HelloPacket) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint16BE(p.Nonce)
	w.Uint8(p.HazelVersion)
	w.Int32(int32(p.ClientVersion))
	w.Str(p.Username)
	w.Uint32(p.AuthNonce)
	w.Uint32(p.Language)
	w.Uint8(p.ChatMode)
}

func (p *HelloPacket) deserialize(r *hazel.Reader) {
	p.Nonce = r.Uint16BE()
	p.HazelVersion = r.Uint8()
	p.ClientVersion = Version(r.Int32())
	p.Username = r.Str()
	// older clients stop after the username
	if r.Left() > 0 {
		p.AuthNonce = r.Uint32()
		p.Language = r.Uint32()
		p.ChatMode = r.Uint8()
	}
}

type PingPacket struct {
	Nonce uint16
}

func (p *PingPacket) PacketTag() PacketTag { return PacketPing }
func (p *PingPacket) AckNonce() uint16     { return p.Nonce }

func (p *PingPacket) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint16BE(p.Nonce)
}

// AcknowledgePacket acknowledges Nonce. Bit i of Missing refers to nonce
// Nonce-i; a set bit means that packet has NOT been received. Bit 0 (the
// acknowledged nonce itself) is therefore always clear.
type AcknowledgePacket struct {
	Nonce   uint16
	Missing uint8
}

func (p *AcknowledgePacket) PacketTag() PacketTag { return PacketAcknowledge }

func (p *AcknowledgePacket) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint16BE(p.Nonce)
	w.Uint8(p.Missing)
}

// DisconnectPacket has three shapes on the wire: empty (no reason given),
// only the show-reason flag, or the flag plus a frame holding the reason (and
// a message when the reason is Custom).
type DisconnectPacket struct {
	ShowReason bool
	HasReason  bool
	Reason     DisconnectReason
	Message    string
}

func NewDisconnectPacket(reason DisconnectReason, message string) *DisconnectPacket {
	return &DisconnectPacket{
		ShowReason: true,
		HasReason:  true,
		Reason:     reason,
		Message:    message,
	}
}

func (p *DisconnectPacket) PacketTag() PacketTag { return PacketDisconnect }

func (p *DisconnectPacket) Serialize(w *hazel.Writer, _ Direction) {
	if p.HasReason {
		w.Bool(p.ShowReason)
		w.Begin(0)
		w.Uint8(uint8(p.Reason))
		if p.Reason == DisconnectCustom {
			w.Str(p.Message)
		}
		w.End()
	} else if p.ShowReason {
		w.Bool(true)
	}
}

func (p *DisconnectPacket) deserialize(r *hazel.Reader) error {
	if r.Left() == 0 {
		return nil
	}
	p.ShowReason = r.Bool()
	if r.Left() == 0 {
		return nil
	}

	_, sub := r.Message()
	p.HasReason = true
	p.Reason = DisconnectReason(sub.Uint8())
	if p.Reason == DisconnectCustom && sub.Left() > 0 {
		p.Message = sub.Str()
	}
	return sub.Err()
}

type ReliablePacket struct {
	Nonce    uint16
	Children []Message
}

func (p *ReliablePacket) PacketTag() PacketTag { return PacketReliable }
func (p *ReliablePacket) AckNonce() uint16     { return p.Nonce }

func (p *ReliablePacket) Serialize(w *hazel.Writer, dir Direction) {
	w.Uint16BE(p.Nonce)
	writeChildren(w, p.Children, dir)
}

type UnreliablePacket struct {
	Children []Message
}

func (p *UnreliablePacket) PacketTag() PacketTag { return PacketUnreliable }

func (p *UnreliablePacket) Serialize(w *hazel.Writer, dir Direction) {
	writeChildren(w, p.Children, dir)
}

func EncodePacket(p Packet, dir Direction) []byte {
	w := hazel.NewWriter()
	w.Uint8(uint8(p.PacketTag()))
	p.Serialize(w, dir)
	return w.Bytes()
}

// DecodePacket decodes one datagram. A nil packet means the datagram is
// unusable. A packet returned together with an error had some nested messages
// that failed to decode; they are kept as UnknownMessage values.
func DecodePacket(data []byte, dir Direction, reg *Registry) (Packet, error) {
	r := hazel.NewReader(data)

	tag := PacketTag(r.Uint8())
	if r.Err() != nil {
		return nil, fmt.Errorf("could not read packet tag: %w", r.Err())
	}

	switch tag {
	case PacketHello:
		p := &HelloPacket{}
		p.deserialize(r)
		if r.Err() != nil {
			return nil, fmt.Errorf("could not read hello: %w", r.Err())
		}
		return p, nil
	case PacketPing:
		p := &PingPacket{Nonce: r.Uint16BE()}
		if r.Err() != nil {
			return nil, fmt.Errorf("could not read ping: %w", r.Err())
		}
		return p, nil
	case PacketAcknowledge:
		p := &AcknowledgePacket{
			Nonce:   r.Uint16BE(),
			Missing: r.Uint8(),
		}
		if r.Err() != nil {
			return nil, fmt.Errorf("could not read acknowledge: %w", r.Err())
		}
		return p, nil
	case PacketDisconnect:
		p := &DisconnectPacket{}
		if err := p.deserialize(r); err != nil {
			return nil, fmt.Errorf("could not read disconnect: %w", err)
		}
		return p, nil
	case PacketReliable:
		p := &ReliablePacket{Nonce: r.Uint16BE()}
		if r.Err() != nil {
			return nil, fmt.Errorf("could not read reliable nonce: %w", r.Err())
		}
		var err error
		p.Children, err = reg.DecodeChildren(NamespaceRoot, r, dir)
		return p, err
	case PacketUnreliable:
		p := &UnreliablePacket{}
		var err error
		p.Children, err = reg.DecodeChildren(NamespaceRoot, r, dir)
		return p, err
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacket, tag)
	}
}
