package lobbyserver_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/blukai/skeldparty/internal/emitter"
	"github.com/blukai/skeldparty/internal/lobbyserver"
	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/matryer/is"
)

func startServer(t *testing.T, cfg lobbyserver.Config) *lobbyserver.LobbyServer {
	t.Helper()
	is := is.New(t)

	cfg.Network = "udp4"
	cfg.Address = "127.0.0.1:0"
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 5 * time.Millisecond
	}
	ls, err := lobbyserver.NewLobbyServer(cfg)
	is.NoErr(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ls.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ls
}

// rawClient speaks the protocol by hand so a test controls every packet,
// acks included.
type rawClient struct {
	t     *testing.T
	conn  *net.UDPConn
	nonce uint16
	ack   bool
}

func dial(t *testing.T, ls *lobbyserver.LobbyServer, username string) *rawClient {
	t.Helper()
	is := is.New(t)

	conn, err := net.DialUDP("udp4", nil, ls.Addr())
	is.NoErr(err)
	t.Cleanup(func() { conn.Close() })

	c := &rawClient{t: t, conn: conn, ack: true}
	c.nonce++
	c.send(&protocol.HelloPacket{
		Nonce:         c.nonce,
		HazelVersion:  1,
		ClientVersion: protocol.DefaultVersion,
		Username:      username,
	})
	return c
}

func (c *rawClient) send(pkt protocol.Packet) {
	c.t.Helper()
	is := is.New(c.t)

	is.NoErr(c.conn.SetWriteDeadline(time.Now().Add(time.Second)))
	_, err := c.conn.Write(protocol.EncodePacket(pkt, protocol.Serverbound))
	is.NoErr(err)
}

func (c *rawClient) sendReliable(msgs ...protocol.Message) {
	c.t.Helper()
	c.nonce++
	c.send(&protocol.ReliablePacket{Nonce: c.nonce, Children: msgs})
}

// next returns the next packet that is not an acknowledge, acking it when
// the client acks.
func (c *rawClient) next() protocol.Packet {
	c.t.Helper()
	is := is.New(c.t)

	for {
		// decoded messages alias the buffer
		buf := make([]byte, protocol.MaxPacketSize)
		is.NoErr(c.conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
		n, err := c.conn.Read(buf)
		is.NoErr(err)

		pkt, err := protocol.DecodePacket(buf[:n], protocol.Clientbound, protocol.DefaultRegistry())
		is.NoErr(err)
		if _, ok := pkt.(*protocol.AcknowledgePacket); ok {
			continue
		}
		if a, ok := pkt.(protocol.Acknowledgeable); ok && c.ack {
			c.send(&protocol.AcknowledgePacket{Nonce: a.AckNonce()})
		}
		return pkt
	}
}

// expect skips packets until one carries a T.
func expect[T protocol.Message](c *rawClient) T {
	c.t.Helper()

	for {
		var children []protocol.Message
		switch pkt := c.next().(type) {
		case *protocol.ReliablePacket:
			children = pkt.Children
		case *protocol.UnreliablePacket:
			children = pkt.Children
		}
		for _, m := range children {
			if m, ok := m.(T); ok {
				return m
			}
		}
	}
}

func expectDisconnect(c *rawClient) *protocol.DisconnectPacket {
	c.t.Helper()

	for {
		if pkt, ok := c.next().(*protocol.DisconnectPacket); ok {
			return pkt
		}
	}
}

func hostAndJoin(c *rawClient) protocol.Code {
	c.t.Helper()

	c.sendReliable(&protocol.HostGameRequest{Options: protocol.DefaultGameOptions()})
	code := expect[*protocol.HostGameMessage](c).Code
	c.sendReliable(&protocol.JoinGameRequest{Code: code})
	expect[*protocol.JoinedGameMessage](c)
	return code
}

func TestHostJoinRelayLeave(t *testing.T) {
	is := is.New(t)

	ls := startServer(t, lobbyserver.Config{})

	a := dial(t, ls, "a")
	a.sendReliable(&protocol.HostGameRequest{Options: protocol.DefaultGameOptions()})
	code := expect[*protocol.HostGameMessage](a).Code

	a.sendReliable(&protocol.JoinGameRequest{Code: code})
	joined := expect[*protocol.JoinedGameMessage](a)
	is.Equal(joined.Code, code)
	is.Equal(joined.ClientID, int32(1))
	is.Equal(joined.HostID, int32(1))
	is.Equal(len(joined.Others), 0)

	b := dial(t, ls, "b")
	b.sendReliable(&protocol.JoinGameRequest{Code: code})
	joined = expect[*protocol.JoinedGameMessage](b)
	is.Equal(joined.ClientID, int32(2))
	is.Equal(joined.HostID, int32(1))
	is.Equal(joined.Others, []int32{1})

	announced := expect[*protocol.JoinGameMessage](a)
	is.Equal(*announced, protocol.JoinGameMessage{Code: code, ClientID: 2, HostID: 1})

	// game data goes to everyone else, unknown payloads untouched
	opaque := &protocol.UnknownMessage{MessageTag: protocol.GameDataTag(99), Data: []byte{1, 2, 3}}
	a.sendReliable(&protocol.GameDataMessage{Code: code, Children: []protocol.Message{
		&protocol.SceneChangeMessage{ClientID: 1, Scene: protocol.SceneOnlineGame},
		opaque,
	}})
	relayed := expect[*protocol.GameDataMessage](b)
	is.Equal(len(relayed.Children), 2)
	is.Equal(relayed.Children[1], opaque)

	snap, err := ls.Snapshot(context.Background())
	is.NoErr(err)
	is.Equal(len(snap), 1)
	is.Equal(snap[0].Members, []int32{1, 2})

	// the host leaves, the remaining member takes over
	a.send(protocol.NewDisconnectPacket(protocol.DisconnectExitGame, ""))
	removed := expect[*protocol.RemovePlayerMessage](b)
	is.Equal(removed.ClientID, int32(1))
	is.Equal(removed.HostID, int32(2))

	snap, err = ls.Snapshot(context.Background())
	is.NoErr(err)
	is.Equal(snap[0].HostID, int32(2))
}

func TestJoinRefused(t *testing.T) {
	ls := startServer(t, lobbyserver.Config{})

	t.Run("not found", func(t *testing.T) {
		is := is.New(t)
		c := dial(t, ls, "lost")
		c.sendReliable(&protocol.JoinGameRequest{Code: 12345})
		is.Equal(expectDisconnect(c).Reason, protocol.DisconnectGameNotFound)
	})

	t.Run("started", func(t *testing.T) {
		is := is.New(t)
		host := dial(t, ls, "host")
		code := hostAndJoin(host)
		host.sendReliable(&protocol.StartGameMessage{Code: code})
		expect[*protocol.StartGameMessage](host)

		late := dial(t, ls, "late")
		late.sendReliable(&protocol.JoinGameRequest{Code: code})
		is.Equal(expectDisconnect(late).Reason, protocol.DisconnectGameStarted)
	})
}

func TestKick(t *testing.T) {
	is := is.New(t)

	ls := startServer(t, lobbyserver.Config{})

	host := dial(t, ls, "host")
	code := hostAndJoin(host)
	guest := dial(t, ls, "guest")
	guest.sendReliable(&protocol.JoinGameRequest{Code: code})
	expect[*protocol.JoinedGameMessage](guest)

	host.sendReliable(&protocol.KickPlayerMessage{Code: code, ClientID: 2, Banned: true})
	kicked := expect[*protocol.KickPlayerMessage](guest)
	is.Equal(kicked.ClientID, int32(2))
	is.True(kicked.Banned)

	removed := expect[*protocol.RemovePlayerMessage](host)
	is.Equal(removed.Reason, protocol.DisconnectBanned)

	// same address, banned
	guest.sendReliable(&protocol.JoinGameRequest{Code: code})
	is.Equal(expectDisconnect(guest).Reason, protocol.DisconnectBanned)
}

func TestUnackedClientTimesOut(t *testing.T) {
	is := is.New(t)

	ls := startServer(t, lobbyserver.Config{
		ResendInterval: 20 * time.Millisecond,
		MaxAttempts:    3,
		IdleTimeout:    time.Minute,
	})

	disconnects := make(chan lobbyserver.ClientDisconnectEvent, 8)
	emitter.On(ls.Events(), func(e lobbyserver.ClientDisconnectEvent) {
		disconnects <- e
	})
	removed := emitter.Expect[lobbyserver.GameRemovedEvent](ls.Events(), nil)

	c := dial(t, ls, "silent")
	code := hostAndJoin(c)
	// stop acking; the server keeps resending the last reliable packets
	c.ack = false
	c.sendReliable(&protocol.AlterGameMessage{Code: code, Alter: protocol.AlterGameChangePrivacy, Value: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	select {
	case e := <-disconnects:
		is.Equal(e.ClientID, int32(1))
		is.True(e.TimedOut)
	case <-ctx.Done():
		t.Fatal("no disconnect")
	}

	gone, err := removed.Wait(ctx)
	is.NoErr(err)
	is.Equal(gone.Code, code)

	// nothing else fires for the same client
	time.Sleep(100 * time.Millisecond)
	is.Equal(len(disconnects), 0)

	snap, err := ls.Snapshot(ctx)
	is.NoErr(err)
	is.Equal(len(snap), 0)
}

func TestSnapshotHonorsContext(t *testing.T) {
	is := is.New(t)

	ls, err := lobbyserver.NewLobbyServer(lobbyserver.Config{Address: "127.0.0.1:0"})
	is.NoErr(err)

	// not running, nobody picks the call up
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = ls.Snapshot(ctx)
	is.True(errors.Is(err, context.DeadlineExceeded))
}
