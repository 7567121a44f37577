package transport_test

import (
	"errors"
	"testing"
	"time"

	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/transport"
	"github.com/matryer/is"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

type wire struct {
	sent [][]byte
}

func (w *wire) send(data []byte) error {
	w.sent = append(w.sent, append([]byte(nil), data...))
	return nil
}

func (w *wire) reset() {
	w.sent = nil
}

func (w *wire) decode(t *testing.T) []protocol.Packet {
	t.Helper()
	is := is.New(t)

	var packets []protocol.Packet
	for _, data := range w.sent {
		p, err := protocol.DecodePacket(data, protocol.Clientbound, protocol.DefaultRegistry())
		is.NoErr(err)
		packets = append(packets, p)
	}
	return packets
}

func newPeer(cfg transport.Config) (*transport.Peer, *wire, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	w := &wire{}
	cfg.Clock = clock.Now
	cfg.Direction = protocol.Clientbound
	return transport.NewPeer(cfg, w.send), w, clock
}

func reliableNonces(packets []protocol.Packet) []uint16 {
	var nonces []uint16
	for _, p := range packets {
		if r, ok := p.(*protocol.ReliablePacket); ok {
			nonces = append(nonces, r.Nonce)
		}
	}
	return nonces
}

func TestSentWindowMissingMask(t *testing.T) {
	is := is.New(t)

	var sw transport.SentWindow
	for nonce := uint16(1); nonce <= 12; nonce++ {
		sw.Push(nonce)
	}
	for nonce := uint16(5); nonce <= 12; nonce++ {
		if nonce != 7 && nonce != 11 {
			is.True(sw.Ack(nonce))
		}
	}

	// evicted by the ring
	_, ok := sw.Lookup(4)
	is.True(!ok)

	is.Equal(sw.MissingMask(12), uint8(1<<1|1<<5))
}

func TestAcknowledgeTriggersResendOfMissing(t *testing.T) {
	is := is.New(t)
	peer, w, _ := newPeer(transport.Config{})

	for i := 0; i < 12; i++ {
		_, err := peer.SendReliable(&protocol.StartGameMessage{Code: protocol.Code(i)})
		is.NoErr(err)
	}
	w.reset()

	_, _, err := peer.Receive(protocol.EncodePacket(&protocol.AcknowledgePacket{
		Nonce:   12,
		Missing: 1<<1 | 1<<5,
	}, protocol.Serverbound))
	is.NoErr(err)

	is.Equal(reliableNonces(w.decode(t)), []uint16{11, 7})
	is.Equal(peer.Sent().MissingMask(12), uint8(1<<1|1<<5))

	for _, nonce := range []uint16{5, 6, 8, 9, 10, 12} {
		acked, ok := peer.Sent().Lookup(nonce)
		is.True(ok)
		is.True(acked)
	}
}

func TestReceiveAcknowledges(t *testing.T) {
	is := is.New(t)
	peer, w, _ := newPeer(transport.Config{})

	receive := func(nonce uint16) bool {
		_, fresh, err := peer.Receive(protocol.EncodePacket(&protocol.ReliablePacket{
			Nonce:    nonce,
			Children: []protocol.Message{&protocol.StartGameMessage{Code: 1}},
		}, protocol.Serverbound))
		is.NoErr(err)
		return fresh
	}

	is.True(receive(1))
	is.True(receive(2))
	is.True(receive(4))
	is.True(!receive(2))

	packets := w.decode(t)
	is.Equal(len(packets), 4)
	is.Equal(packets[0], &protocol.AcknowledgePacket{Nonce: 1})
	is.Equal(packets[1], &protocol.AcknowledgePacket{Nonce: 2})
	// 3 never arrived
	is.Equal(packets[2], &protocol.AcknowledgePacket{Nonce: 4, Missing: 1 << 1})
	// duplicates are acknowledged again
	is.Equal(packets[3], &protocol.AcknowledgePacket{Nonce: 2})
}

func TestPingAndHelloAreAcknowledgedButNotResent(t *testing.T) {
	is := is.New(t)
	peer, w, clock := newPeer(transport.Config{})

	_, fresh, err := peer.Receive(protocol.EncodePacket(&protocol.PingPacket{Nonce: 9}, protocol.Serverbound))
	is.NoErr(err)
	is.True(fresh)
	is.Equal(w.decode(t), []protocol.Packet{&protocol.AcknowledgePacket{Nonce: 9}})
	w.reset()

	_, err = peer.SendHello(protocol.HelloPacket{Username: "bot"})
	is.NoErr(err)
	_, err = peer.SendPing()
	is.NoErr(err)
	w.reset()

	for i := 0; i < 20; i++ {
		is.NoErr(peer.Update(clock.Advance(transport.DefaultResendInterval)))
	}
	is.Equal(len(w.sent), 0)
	is.True(!peer.Closed())
}

func TestNonceWraps(t *testing.T) {
	is := is.New(t)
	peer, _, _ := newPeer(transport.Config{FirstNonce: 65534})

	var nonces []uint16
	for i := 0; i < 3; i++ {
		nonce, err := peer.SendReliable()
		is.NoErr(err)
		nonces = append(nonces, nonce)
	}
	is.Equal(nonces, []uint16{65534, 65535, 1})
}

func TestRetransmissionTimeout(t *testing.T) {
	is := is.New(t)
	peer, w, clock := newPeer(transport.Config{})

	for i := 0; i < 4; i++ {
		nonce, err := peer.SendReliable(&protocol.StartGameMessage{Code: 1})
		is.NoErr(err)
		_, _, err = peer.Receive(protocol.EncodePacket(&protocol.AcknowledgePacket{Nonce: nonce}, protocol.Serverbound))
		is.NoErr(err)
	}

	nonce, err := peer.SendReliable(&protocol.StartGameMessage{Code: 5})
	is.NoErr(err)
	is.Equal(nonce, uint16(5))
	w.reset()

	var timeouts int
	for i := 0; i < transport.DefaultMaxAttempts; i++ {
		err := peer.Update(clock.Advance(transport.DefaultResendInterval))
		if errors.Is(err, transport.ErrTimedOut) {
			timeouts++
			continue
		}
		is.NoErr(err)
	}

	is.Equal(timeouts, 1)
	is.True(peer.Closed())
	is.True(peer.TimedOut())

	// seven resends after the original transmission
	is.Equal(reliableNonces(w.decode(t)), []uint16{5, 5, 5, 5, 5, 5, 5})

	// nothing more after the timeout
	is.NoErr(peer.Update(clock.Advance(time.Hour)))
	_, err = peer.SendReliable()
	is.True(errors.Is(err, transport.ErrClosed))
}

func TestAckStopsResends(t *testing.T) {
	is := is.New(t)
	peer, w, clock := newPeer(transport.Config{ResendInterval: time.Second})

	nonce, err := peer.SendReliable(&protocol.StartGameMessage{Code: 1})
	is.NoErr(err)

	is.NoErr(peer.Update(clock.Advance(time.Second)))
	is.Equal(len(w.sent), 2)

	_, _, err = peer.Receive(protocol.EncodePacket(&protocol.AcknowledgePacket{Nonce: nonce}, protocol.Serverbound))
	is.NoErr(err)
	w.reset()

	for i := 0; i < 10; i++ {
		is.NoErr(peer.Update(clock.Advance(time.Second)))
	}
	is.Equal(len(w.sent), 0)
}

func TestRemoteDisconnectClosesPeer(t *testing.T) {
	is := is.New(t)
	peer, _, _ := newPeer(transport.Config{})

	p, _, err := peer.Receive(protocol.EncodePacket(protocol.NewDisconnectPacket(protocol.DisconnectExitGame, ""), protocol.Serverbound))
	is.NoErr(err)
	_, ok := p.(*protocol.DisconnectPacket)
	is.True(ok)
	is.True(peer.Closed())

	_, _, err = peer.Receive([]byte{byte(protocol.PacketPing), 0, 1})
	is.True(errors.Is(err, transport.ErrClosed))
}
