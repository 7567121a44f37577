// Package lobbyclient connects to a lobby server and keeps a replica of the
// joined room. Like the server it runs a single goroutine that owns the
// connection and the room; everything else reaches it through Do.
package lobbyclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/room"
	"github.com/blukai/skeldparty/internal/transport"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDisconnected = errors.New("lobbyclient: disconnected")
	ErrNotInGame    = errors.New("lobbyclient: not in a game")
)

const (
	DefaultTickInterval = 50 * time.Millisecond
	DefaultPingInterval = time.Second
)

type Config struct {
	Network  string
	Address  string
	Username string
	Version  protocol.Version

	ResendInterval time.Duration
	MaxAttempts    int
	// TickInterval paces room updates and flushes.
	TickInterval time.Duration
	// PingInterval keeps an otherwise quiet connection alive.
	PingInterval time.Duration

	Prefabs  room.Prefabs
	Registry prometheus.Registerer
	Logger   *log.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.Network == "" {
		cfg.Network = "udp4"
	}
	if cfg.Version == 0 {
		cfg.Version = protocol.DefaultVersion
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if cfg.Logger == nil {
		tmp := log.DefaultLogger
		cfg.Logger = &tmp
		cfg.Logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	return cfg
}

type LobbyClient struct {
	cfg     Config
	conn    *net.UDPConn
	readBuf []byte
	logger  *log.Logger

	peer     *transport.Peer
	decoder  *protocol.Decoder
	room     *room.Room
	clientID int32
	lastSent time.Time
	lastTick time.Time

	inbox chan []byte
	calls chan func()
}

func NewLobbyClient(cfg Config) (*LobbyClient, error) {
	cfg = cfg.withDefaults()

	addr, err := net.ResolveUDPAddr(cfg.Network, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve udp addr: %w", err)
	}

	conn, err := net.DialUDP(cfg.Network, nil, addr)
	if err != nil {
		return nil, fmt.Errorf("could not dial udp: %w", err)
	}

	lc := &LobbyClient{
		cfg:     cfg,
		conn:    conn,
		readBuf: make([]byte, protocol.MaxPacketSize),
		logger:  cfg.Logger,

		decoder: protocol.NewDecoder(protocol.DefaultRegistry()),

		inbox: make(chan []byte, 64),
		calls: make(chan func()),
	}

	var metrics *transport.Metrics
	if cfg.Registry != nil {
		metrics = transport.NewMetrics(cfg.Registry, "skeldparty_client")
	}
	lc.peer = transport.NewPeer(transport.Config{
		ResendInterval: cfg.ResendInterval,
		MaxAttempts:    cfg.MaxAttempts,
		Direction:      protocol.Serverbound,
		Registry:       lc.decoder.Registry,
		Metrics:        metrics,
		Logger:         cfg.Logger,
	}, func(data []byte) error {
		lc.lastSent = time.Now()
		_, err := lc.conn.Write(data)
		return err
	})

	return lc, nil
}

// Decoder emits every packet and message the client receives, after the
// client applied it. Listeners run on the client goroutine and must not
// block.
func (lc *LobbyClient) Decoder() *protocol.Decoder {
	return lc.decoder
}

// Run drives the connection until ctx is done or the server stops
// answering.
func (lc *LobbyClient) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lc.runRecv(ctx)
		return nil
	})
	g.Go(func() error {
		return lc.runLoop(ctx)
	})

	err := g.Wait()
	if cerr := lc.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (lc *LobbyClient) runRecv(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := lc.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			lc.logger.Error().Msgf("could not set read deadline: %v", err)
			return
		}

		n, err := lc.conn.Read(lc.readBuf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			lc.logger.Error().Msgf("could not read: %v", err)
			continue
		}

		// decoded messages alias the datagram, the buffer is reused
		data := make([]byte, n)
		copy(data, lc.readBuf[:n])

		select {
		case lc.inbox <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (lc *LobbyClient) runLoop(ctx context.Context) error {
	ticker := time.NewTicker(lc.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !lc.peer.Closed() {
				_ = lc.peer.Disconnect(protocol.NewDisconnectPacket(protocol.DisconnectExitGame, ""))
			}
			return nil
		case data := <-lc.inbox:
			lc.handleDatagram(data)
		case now := <-ticker.C:
			if err := lc.tick(now); err != nil {
				return err
			}
		case fn := <-lc.calls:
			fn()
		}
	}
}

// Do runs fn on the client goroutine with the current room, nil before a
// game was joined.
func (lc *LobbyClient) Do(ctx context.Context, fn func(r *room.Room)) error {
	done := make(chan struct{})
	call := func() {
		defer close(done)
		fn(lc.room)
	}

	select {
	case lc.calls <- call:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (lc *LobbyClient) do(ctx context.Context, fn func()) error {
	return lc.Do(ctx, func(*room.Room) { fn() })
}

func (lc *LobbyClient) handleDatagram(data []byte) {
	pkt, fresh, err := lc.peer.Receive(data)
	if err != nil {
		lc.logger.Debug().Msgf("could not decode packet: %v", err)
	}
	if pkt == nil || !fresh {
		return
	}

	switch pkt := pkt.(type) {
	case *protocol.ReliablePacket:
		for _, m := range pkt.Children {
			lc.handleMessage(m)
		}
	case *protocol.UnreliablePacket:
		for _, m := range pkt.Children {
			lc.handleMessage(m)
		}
	case *protocol.DisconnectPacket:
		lc.logger.Info().
			Uint8("reason", uint8(pkt.Reason)).
			Str("message", pkt.Message).
			Msg("disconnected by server")
	}

	if err := lc.decoder.Emit(pkt); err != nil {
		lc.logger.Error().Msgf("listener failed: %v", err)
	}
}

func (lc *LobbyClient) handleMessage(m protocol.Message) {
	switch m := m.(type) {
	case *protocol.JoinedGameMessage:
		lc.clientID = m.ClientID
		lc.room = room.New(room.Config{
			Code:    m.Code,
			SelfID:  m.ClientID,
			HostID:  m.HostID,
			Prefabs: lc.cfg.Prefabs,
			Logger:  lc.logger,
		})
		for _, id := range m.Others {
			lc.room.AddPlayer(id)
		}
		lc.room.AddPlayer(m.ClientID)
		lc.logger.Info().
			Str("code", m.Code.String()).
			Int32("client_id", m.ClientID).
			Int32("host_id", m.HostID).
			Msg("joined game")
	case *protocol.JoinGameMessage:
		if r := lc.inGame(m.Code); r != nil {
			r.SetHostID(m.HostID)
			r.AddPlayer(m.ClientID)
		}
	case *protocol.RemovePlayerMessage:
		if r := lc.inGame(m.Code); r != nil {
			// a new host cleans up after the one who left
			r.SetHostID(m.HostID)
			r.RemovePlayer(m.ClientID)
		}
	case *protocol.StartGameMessage:
		if r := lc.inGame(m.Code); r != nil {
			r.Started = true
		}
	case *protocol.EndGameMessage:
		if r := lc.inGame(m.Code); r != nil {
			r.Started = false
		}
	case *protocol.AlterGameMessage:
		if r := lc.inGame(m.Code); r != nil && m.Alter == protocol.AlterGameChangePrivacy {
			r.Public = m.Value == 1
		}
	case *protocol.KickPlayerMessage:
		if r := lc.inGame(m.Code); r != nil && m.ClientID == lc.clientID {
			lc.logger.Info().Bool("banned", m.Banned).Msg("kicked from game")
			lc.room = nil
		}
	case *protocol.GameDataMessage:
		if r := lc.inGame(m.Code); r != nil {
			for _, child := range m.Children {
				r.HandleGameData(child)
			}
		}
	case *protocol.GameDataToMessage:
		if r := lc.inGame(m.Code); r != nil {
			for _, child := range m.Children {
				r.HandleGameData(child)
			}
		}
	}
}

func (lc *LobbyClient) inGame(code protocol.Code) *room.Room {
	if lc.room == nil || lc.room.Code() != code {
		return nil
	}
	return lc.room
}

func (lc *LobbyClient) tick(now time.Time) error {
	if lc.room != nil {
		dt := now.Sub(lc.lastTick)
		if lc.lastTick.IsZero() {
			dt = lc.cfg.TickInterval
		}
		lc.room.FixedUpdate(dt)

		for _, m := range lc.room.Flush() {
			if _, err := lc.peer.SendReliable(m); err != nil {
				lc.logger.Error().Msgf("could not send game data: %v", err)
			}
		}
	}
	lc.lastTick = now

	// nothing sent yet means no hello either, the server would drop a ping
	if !lc.peer.Closed() && !lc.lastSent.IsZero() && now.Sub(lc.lastSent) > lc.cfg.PingInterval {
		if _, err := lc.peer.SendPing(); err != nil {
			lc.logger.Error().Msgf("could not send ping: %v", err)
		}
	}

	if err := lc.peer.Update(now); err != nil {
		return fmt.Errorf("connection lost: %w", err)
	}
	return nil
}

// request sends on the client goroutine and waits for the first decoded
// value of the samples' types that match accepts. A disconnect fails it.
func (lc *LobbyClient) request(
	ctx context.Context,
	send func() error,
	match func(v any) bool,
	samples ...any,
) (any, error) {
	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)
	deliver := func(r result) {
		select {
		case ch <- r:
		default:
		}
	}

	var off func()
	err := lc.do(ctx, func() {
		off = protocol.OnAny(lc.decoder, func(v any) {
			if p, ok := v.(*protocol.DisconnectPacket); ok {
				deliver(result{err: fmt.Errorf("%w: reason %d", ErrDisconnected, p.Reason)})
				return
			}
			if match(v) {
				deliver(result{v: v})
			}
		}, append(samples, (*protocol.DisconnectPacket)(nil))...)

		if err := send(); err != nil {
			deliver(result{err: err})
		}
	})
	if err != nil {
		return nil, err
	}
	defer off()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Connect says hello and waits for the server to acknowledge it.
func (lc *LobbyClient) Connect(ctx context.Context) error {
	var nonce uint16
	_, err := lc.request(ctx, func() error {
		var err error
		nonce, err = lc.peer.SendHello(protocol.HelloPacket{
			HazelVersion:  1,
			ClientVersion: lc.cfg.Version,
			Username:      lc.cfg.Username,
		})
		return err
	}, func(v any) bool {
		return v.(*protocol.AcknowledgePacket).Nonce == nonce
	}, (*protocol.AcknowledgePacket)(nil))
	return err
}

// HostGame creates a game. Joining it is a separate step.
func (lc *LobbyClient) HostGame(ctx context.Context, options protocol.GameOptions) (protocol.Code, error) {
	v, err := lc.request(ctx, func() error {
		_, err := lc.peer.SendReliable(&protocol.HostGameRequest{Options: options})
		return err
	}, func(any) bool { return true }, (*protocol.HostGameMessage)(nil))
	if err != nil {
		return 0, err
	}
	return v.(*protocol.HostGameMessage).Code, nil
}

// JoinGame joins code and returns the client id the server assigned.
func (lc *LobbyClient) JoinGame(ctx context.Context, code protocol.Code) (int32, error) {
	v, err := lc.request(ctx, func() error {
		_, err := lc.peer.SendReliable(&protocol.JoinGameRequest{Code: code})
		return err
	}, func(v any) bool {
		return v.(*protocol.JoinedGameMessage).Code == code
	}, (*protocol.JoinedGameMessage)(nil))
	if err != nil {
		return 0, err
	}
	return v.(*protocol.JoinedGameMessage).ClientID, nil
}

// StartGame starts the joined game. Host only.
func (lc *LobbyClient) StartGame(ctx context.Context) error {
	var code protocol.Code
	_, err := lc.request(ctx, func() error {
		if lc.room == nil {
			return ErrNotInGame
		}
		code = lc.room.Code()
		_, err := lc.peer.SendReliable(&protocol.StartGameMessage{Code: code})
		return err
	}, func(v any) bool {
		return v.(*protocol.StartGameMessage).Code == code
	}, (*protocol.StartGameMessage)(nil))
	return err
}

// EnterGame loads into the game scene. The host sets up the room objects
// and spawns itself; everyone else announces the scene change and waits for
// the host to spawn them.
func (lc *LobbyClient) EnterGame(ctx context.Context) error {
	_, err := lc.request(ctx, func() error {
		r := lc.room
		if r == nil {
			return ErrNotInGame
		}
		r.Enqueue(&protocol.SceneChangeMessage{ClientID: r.SelfID(), Scene: protocol.SceneOnlineGame})

		if !r.IsHost() {
			return nil
		}
		if r.LobbyBehaviour() == nil {
			r.SpawnPrefab(protocol.SpawnLobbyBehaviour, room.RoomObjectID, protocol.SpawnFlagNone)
		}
		if r.GameData() == nil {
			r.SpawnPrefab(protocol.SpawnGameData, room.RoomObjectID, protocol.SpawnFlagNone)
		}
		r.SpawnPlayer(r.SelfID())
		// nothing to wait for
		return errSpawned
	}, func(v any) bool {
		sp := v.(*protocol.SpawnMessage)
		return sp.SpawnType == protocol.SpawnPlayer && sp.OwnerID == lc.clientID
	}, (*protocol.SpawnMessage)(nil))
	if errors.Is(err, errSpawned) {
		return nil
	}
	return err
}

var errSpawned = errors.New("spawned locally")
