// Package transport is the per-peer reliability layer: nonces, ack windows and
// resends. It owns no socket; bytes leave through a Sender and arrive through
// Receive. A Peer is not safe for concurrent use, it is meant to be driven by
// the single goroutine that owns the connection.
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/phuslu/log"
)

var (
	ErrTimedOut = errors.New("transport: peer timed out")
	ErrClosed   = errors.New("transport: peer closed")
)

const (
	DefaultResendInterval = 1500 * time.Millisecond
	DefaultMaxAttempts    = 8
)

// Sender writes one datagram to the remote end.
type Sender func(data []byte) error

type Config struct {
	// ResendInterval is how long an unacknowledged reliable packet waits
	// before it is sent again.
	ResendInterval time.Duration
	// MaxAttempts is the number of transmissions a reliable packet gets.
	// When the interval after the last one expires the peer times out.
	MaxAttempts int
	// FirstNonce is the nonce of the first packet; zero means 1.
	FirstNonce uint16
	// Direction of outbound packets.
	Direction protocol.Direction
	Registry  *protocol.Registry
	Clock     func() time.Time
	Metrics   *Metrics
	Logger    *log.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.ResendInterval <= 0 {
		cfg.ResendInterval = DefaultResendInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Registry == nil {
		cfg.Registry = protocol.DefaultRegistry()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		tmp := log.DefaultLogger
		cfg.Logger = &tmp
		cfg.Logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	return cfg
}

type Peer struct {
	cfg  Config
	send Sender

	nonce uint16
	sent  SentWindow
	recv  RecvWindow

	closed   bool
	timedOut bool
}

func NewPeer(cfg Config, send Sender) *Peer {
	cfg = cfg.withDefaults()

	nonce := cfg.FirstNonce
	if nonce == 0 {
		nonce = 1
	}

	return &Peer{
		cfg:  cfg,
		send: send,
		// nextNonce increments before use
		nonce: nonce - 1,
	}
}

func (p *Peer) Closed() bool   { return p.closed }
func (p *Peer) TimedOut() bool { return p.timedOut }

// Sent exposes the outbound window, mostly for inspection in tests.
func (p *Peer) Sent() *SentWindow { return &p.sent }

func (p *Peer) nextNonce() uint16 {
	p.nonce++
	if p.nonce == 0 {
		p.nonce = 1
	}
	return p.nonce
}

func (p *Peer) write(kind string, data []byte) error {
	if len(data) > protocol.MaxPacketSize {
		return fmt.Errorf("%s packet of %d bytes exceeds %d", kind, len(data), protocol.MaxPacketSize)
	}
	p.cfg.Metrics.observeSent(kind)
	return p.send(data)
}

func (p *Peer) sendTracked(kind string, pkt protocol.Packet, nonce uint16, resend bool) error {
	data := protocol.EncodePacket(pkt, p.cfg.Direction)
	sp := sentPacket{
		nonce:    nonce,
		resend:   resend,
		sentAt:   p.cfg.Clock(),
		attempts: 1,
	}
	if resend {
		sp.data = data
	}
	p.sent.push(sp)
	return p.write(kind, data)
}

// SendReliable sends children in one reliable packet and returns its nonce.
func (p *Peer) SendReliable(children ...protocol.Message) (uint16, error) {
	if p.closed {
		return 0, ErrClosed
	}

	nonce := p.nextNonce()
	pkt := &protocol.ReliablePacket{Nonce: nonce, Children: children}
	return nonce, p.sendTracked("reliable", pkt, nonce, true)
}

func (p *Peer) SendUnreliable(children ...protocol.Message) error {
	if p.closed {
		return ErrClosed
	}

	pkt := &protocol.UnreliablePacket{Children: children}
	return p.write("unreliable", protocol.EncodePacket(pkt, p.cfg.Direction))
}

// SendHello sends the handshake. Its nonce is filled in here.
func (p *Peer) SendHello(hello protocol.HelloPacket) (uint16, error) {
	if p.closed {
		return 0, ErrClosed
	}

	hello.Nonce = p.nextNonce()
	return hello.Nonce, p.sendTracked("hello", &hello, hello.Nonce, false)
}

func (p *Peer) SendPing() (uint16, error) {
	if p.closed {
		return 0, ErrClosed
	}

	nonce := p.nextNonce()
	return nonce, p.sendTracked("ping", &protocol.PingPacket{Nonce: nonce}, nonce, false)
}

// Disconnect tells the remote end goodbye and closes the peer. A nil packet
// sends a disconnect without a reason.
func (p *Peer) Disconnect(pkt *protocol.DisconnectPacket) error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true

	if pkt == nil {
		pkt = &protocol.DisconnectPacket{}
	}
	return p.write("disconnect", protocol.EncodePacket(pkt, p.cfg.Direction))
}

// Close stops the peer without telling the remote end.
func (p *Peer) Close() {
	p.closed = true
}

// Receive decodes one inbound datagram and runs the reliability bookkeeping
// for it. fresh is false for packets whose nonce was already seen; those are
// acknowledged again but must not be applied again. A packet returned with an
// error has nested messages that did not decode.
func (p *Peer) Receive(data []byte) (pkt protocol.Packet, fresh bool, err error) {
	if p.closed {
		return nil, false, ErrClosed
	}

	pkt, err = protocol.DecodePacket(data, p.cfg.Direction.Reverse(), p.cfg.Registry)
	if pkt == nil {
		return nil, false, err
	}

	fresh = true
	switch pkt := pkt.(type) {
	case protocol.Acknowledgeable:
		p.cfg.Metrics.observeReceived(packetKind(pkt))
		nonce := pkt.AckNonce()
		fresh = p.recv.Push(nonce)
		if !fresh {
			p.cfg.Metrics.observeDuplicate()
		}
		ack := &protocol.AcknowledgePacket{
			Nonce:   nonce,
			Missing: p.recv.MissingMask(nonce),
		}
		if sendErr := p.write("acknowledge", protocol.EncodePacket(ack, p.cfg.Direction)); sendErr != nil {
			p.cfg.Logger.Error().
				Uint16("nonce", nonce).
				Msgf("could not send acknowledge: %v", sendErr)
		}
	case *protocol.AcknowledgePacket:
		p.cfg.Metrics.observeReceived("acknowledge")
		if ackErr := p.handleAcknowledge(pkt); ackErr != nil {
			p.cfg.Logger.Error().
				Uint16("nonce", pkt.Nonce).
				Msgf("could not resend: %v", ackErr)
		}
	case *protocol.DisconnectPacket:
		p.cfg.Metrics.observeReceived("disconnect")
		p.closed = true
	default:
		p.cfg.Metrics.observeReceived(packetKind(pkt))
	}
	return pkt, fresh, err
}

func (p *Peer) handleAcknowledge(ack *protocol.AcknowledgePacket) error {
	if p.sent.Ack(ack.Nonce) {
		p.cfg.Metrics.observeAck()
	}

	// a clear bit means the remote end has that nonce
	for i := 1; i < WindowSize; i++ {
		if ack.Missing&(1<<i) == 0 {
			if p.sent.Ack(ack.Nonce - uint16(i)) {
				p.cfg.Metrics.observeAck()
			}
		}
	}

	resend := ack.Missing & p.sent.MissingMask(ack.Nonce)
	now := p.cfg.Clock()

	var err error
	for i := 1; i < WindowSize; i++ {
		if resend&(1<<i) == 0 {
			continue
		}
		sp := p.sent.lookup(ack.Nonce - uint16(i))
		if sp == nil || !sp.resend {
			continue
		}
		if werr := p.resend(sp, now); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func (p *Peer) resend(sp *sentPacket, now time.Time) error {
	sp.attempts++
	sp.sentAt = now
	p.cfg.Metrics.observeResend()
	return p.write("reliable", sp.data)
}

// Update resends reliable packets whose interval expired. It returns
// ErrTimedOut exactly once, when a packet runs out of attempts; the peer is
// closed from then on.
func (p *Peer) Update(now time.Time) error {
	if p.closed {
		return nil
	}

	for i := range p.sent.ring {
		sp := &p.sent.ring[i]
		if !sp.populated || sp.acked || !sp.resend {
			continue
		}
		if now.Sub(sp.sentAt) < p.cfg.ResendInterval {
			continue
		}

		if sp.attempts >= p.cfg.MaxAttempts {
			p.closed = true
			p.timedOut = true
			p.cfg.Metrics.observeTimeout()
			return fmt.Errorf("%w: nonce %d unacknowledged after %d attempts", ErrTimedOut, sp.nonce, sp.attempts)
		}

		if err := p.resend(sp, now); err != nil {
			return fmt.Errorf("could not resend nonce %d: %w", sp.nonce, err)
		}
	}
	return nil
}

func packetKind(pkt protocol.Packet) string {
	switch pkt.PacketTag() {
	case protocol.PacketUnreliable:
		return "unreliable"
	case protocol.PacketReliable:
		return "reliable"
	case protocol.PacketHello:
		return "hello"
	case protocol.PacketDisconnect:
		return "disconnect"
	case protocol.PacketAcknowledge:
		return "acknowledge"
	case protocol.PacketPing:
		return "ping"
	default:
		return "unknown"
	}
}
