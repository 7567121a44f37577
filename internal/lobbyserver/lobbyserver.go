// Package lobbyserver hosts games and relays game data between their
// members. One goroutine owns all state: datagrams, ticks and calls from
// other goroutines are funneled into it.
package lobbyserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/blukai/skeldparty/internal/emitter"
	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/transport"
	"github.com/cespare/xxhash/v2"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultIdleTimeout  = 10 * time.Second
	DefaultTickInterval = 50 * time.Millisecond
)

type Config struct {
	Network string
	Address string
	// MetricsAddr serves /metrics when set.
	MetricsAddr string

	ResendInterval time.Duration
	MaxAttempts    int
	// IdleTimeout drops clients that sent nothing for this long.
	IdleTimeout  time.Duration
	TickInterval time.Duration

	// Registry collects the server's metrics; a private one is made when
	// nil.
	Registry *prometheus.Registry
	Logger   *log.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.Network == "" {
		cfg.Network = "udp4"
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
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

type addrKey uint64

func makeAddrKey(addr netip.AddrPort) addrKey {
	return addrKey(xxhash.Sum64String(addr.String()))
}

type client struct {
	id       int32
	addr     netip.AddrPort
	peer     *transport.Peer
	lastSeen time.Time
	username string
	version  protocol.Version
	game     *game
}

type datagram struct {
	data []byte
	addr netip.AddrPort
}

type LobbyServer struct {
	cfg    Config
	conn   *net.UDPConn
	buf    []byte
	logger *log.Logger

	clients map[addrKey]*client
	byID    map[int32]*client
	games   map[protocol.Code]*game
	lastID  int32

	inbox chan datagram
	calls chan func()

	events           *emitter.Emitter
	metrics          *metrics
	transportMetrics *transport.Metrics
}

func NewLobbyServer(cfg Config) (*LobbyServer, error) {
	cfg = cfg.withDefaults()

	addr, err := net.ResolveUDPAddr(cfg.Network, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve udp addr: %w", err)
	}

	conn, err := net.ListenUDP(cfg.Network, addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen udp: %w", err)
	}

	ls := &LobbyServer{
		cfg:    cfg,
		conn:   conn,
		buf:    make([]byte, protocol.MaxPacketSize),
		logger: cfg.Logger,

		clients: make(map[addrKey]*client),
		byID:    make(map[int32]*client),
		games:   make(map[protocol.Code]*game),

		inbox: make(chan datagram, 64),
		calls: make(chan func()),

		events:           emitter.New(),
		metrics:          newMetrics(cfg.Registry, "skeldparty"),
		transportMetrics: transport.NewMetrics(cfg.Registry, "skeldparty"),
	}
	return ls, nil
}

// Addr can be useful to retreive server's address when LobbyServer was
// constructed with ":0".
func (ls *LobbyServer) Addr() *net.UDPAddr {
	return ls.conn.LocalAddr().(*net.UDPAddr)
}

// Events emits the server's events from the goroutine running the server.
func (ls *LobbyServer) Events() *emitter.Emitter {
	return ls.events
}

func (ls *LobbyServer) emit(event any) {
	if err := ls.events.Emit(event); err != nil {
		ls.logger.Error().Msgf("server listener failed: %v", err)
	}
}

// Run serves until ctx is done.
func (ls *LobbyServer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ls.runRecv(ctx)
		return nil
	})
	g.Go(func() error {
		ls.runLoop(ctx)
		return nil
	})
	if ls.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return ls.runMetrics(ctx)
		})
	}

	err := g.Wait()
	if cerr := ls.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (ls *LobbyServer) runRecv(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := ls.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			ls.logger.Error().Msgf("could not set read deadline: %v", err)
			return
		}

		n, addr, err := ls.conn.ReadFromUDPAddrPort(ls.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			ls.logger.Error().Msgf("could not read from udp: %v", err)
			continue
		}

		addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())

		// decoded messages alias the datagram, the buffer is reused
		data := make([]byte, n)
		copy(data, ls.buf[:n])

		select {
		case ls.inbox <- datagram{data: data, addr: addr}:
		case <-ctx.Done():
			return
		}
	}
}

func (ls *LobbyServer) runLoop(ctx context.Context) {
	ticker := time.NewTicker(ls.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ls.shutdown()
			return
		case dg := <-ls.inbox:
			ls.handleDatagram(dg.data, dg.addr)
		case now := <-ticker.C:
			ls.tick(now)
		case fn := <-ls.calls:
			fn()
		}
	}
}

func (ls *LobbyServer) runMetrics(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ls.cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(ls.cfg.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	ls.logger.Info().Msgf("serving metrics on %s", ls.cfg.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not serve metrics: %w", err)
	}
	return nil
}

// do runs fn on the server goroutine.
func (ls *LobbyServer) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case ls.calls <- func() { fn(); close(done) }:
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

func (ls *LobbyServer) shutdown() {
	for _, c := range ls.clients {
		if err := c.peer.Disconnect(protocol.NewDisconnectPacket(protocol.DisconnectServerRequest, "")); err != nil {
			ls.logger.Debug().Int32("client_id", c.id).Msgf("could not send disconnect: %v", err)
		}
	}
}

func (ls *LobbyServer) newClient(addr netip.AddrPort, now time.Time) *client {
	ls.lastID++
	c := &client{
		id:       ls.lastID,
		addr:     addr,
		lastSeen: now,
	}
	c.peer = transport.NewPeer(transport.Config{
		ResendInterval: ls.cfg.ResendInterval,
		MaxAttempts:    ls.cfg.MaxAttempts,
		Direction:      protocol.Clientbound,
		Metrics:        ls.transportMetrics,
		Logger:         ls.logger,
	}, func(data []byte) error {
		_, err := ls.conn.WriteToUDPAddrPort(data, addr)
		return err
	})

	ls.clients[makeAddrKey(addr)] = c
	ls.byID[c.id] = c
	ls.metrics.clients.Inc()
	return c
}

func (ls *LobbyServer) handleDatagram(data []byte, addr netip.AddrPort) {
	now := time.Now()

	c, ok := ls.clients[makeAddrKey(addr)]
	if !ok {
		// only a hello opens a connection
		if len(data) == 0 || protocol.PacketTag(data[0]) != protocol.PacketHello {
			ls.logger.Debug().
				Str("addr", addr.String()).
				Msg("ignoring datagram from unknown address")
			return
		}
		c = ls.newClient(addr, now)
	}
	c.lastSeen = now

	pkt, fresh, err := c.peer.Receive(data)
	if err != nil {
		ls.logger.Debug().
			Int32("client_id", c.id).
			Msgf("could not decode packet: %v", err)
	}
	if pkt == nil || !fresh {
		return
	}

	switch pkt := pkt.(type) {
	case *protocol.HelloPacket:
		c.username = pkt.Username
		c.version = pkt.ClientVersion
		ls.logger.Info().
			Int32("client_id", c.id).
			Str("username", c.username).
			Str("version", c.version.String()).
			Str("addr", addr.String()).
			Msg("client connected")
		ls.emit(ClientConnectEvent{ClientID: c.id, Username: c.username, Version: c.version})
	case *protocol.ReliablePacket:
		ls.handleMessages(c, pkt.Children, true)
	case *protocol.UnreliablePacket:
		ls.handleMessages(c, pkt.Children, false)
	case *protocol.DisconnectPacket:
		ls.removeClient(c, protocol.DisconnectExitGame, false)
	}
}

func (ls *LobbyServer) handleMessages(c *client, msgs []protocol.Message, reliable bool) {
	for _, m := range msgs {
		// a refused join drops the client midway
		if ls.byID[c.id] != c {
			return
		}
		ls.handleMessage(c, m, reliable)
	}
}

func (ls *LobbyServer) tick(now time.Time) {
	for _, c := range ls.clientList() {
		if err := c.peer.Update(now); err != nil {
			ls.logger.Info().
				Int32("client_id", c.id).
				Msgf("dropping client: %v", err)
			ls.removeClient(c, protocol.DisconnectError, false)
			continue
		}
		if now.Sub(c.lastSeen) > ls.cfg.IdleTimeout {
			ls.logger.Info().
				Int32("client_id", c.id).
				Msg("evicted idle client")
			ls.removeClient(c, protocol.DisconnectExitGame, true)
		}
	}

	for code, g := range ls.games {
		if len(g.members) == 0 && now.Sub(g.createdAt) > ls.cfg.IdleTimeout {
			ls.removeGame(code)
		}
	}
}

func (ls *LobbyServer) clientList() []*client {
	out := make([]*client, 0, len(ls.clients))
	for _, c := range ls.clients {
		out = append(out, c)
	}
	return out
}

// removeClient forgets c. With notify the client is told why.
func (ls *LobbyServer) removeClient(c *client, reason protocol.DisconnectReason, notify bool) {
	if ls.byID[c.id] != c {
		return
	}

	if c.game != nil {
		ls.leave(c, reason)
	}
	if notify && !c.peer.Closed() {
		if err := c.peer.Disconnect(protocol.NewDisconnectPacket(reason, "")); err != nil {
			ls.logger.Debug().Int32("client_id", c.id).Msgf("could not send disconnect: %v", err)
		}
	}
	c.peer.Close()

	delete(ls.clients, makeAddrKey(c.addr))
	delete(ls.byID, c.id)
	ls.metrics.clients.Dec()

	ls.logger.Info().
		Int32("client_id", c.id).
		Uint8("reason", uint8(reason)).
		Msg("client disconnected")
	ls.emit(ClientDisconnectEvent{ClientID: c.id, Reason: reason, TimedOut: c.peer.TimedOut()})
}

func (ls *LobbyServer) send(c *client, reliable bool, msgs ...protocol.Message) error {
	var err error
	if reliable {
		_, err = c.peer.SendReliable(msgs...)
	} else {
		err = c.peer.SendUnreliable(msgs...)
	}
	if err != nil {
		ls.logger.Error().
			Int32("client_id", c.id).
			Msgf("could not send: %v", err)
	}
	return err
}

// GameSnapshot describes a game at one point in time.
type GameSnapshot struct {
	Code    protocol.Code
	HostID  int32
	Members []int32
	Started bool
	Public  bool
	// NetObjects are the netids the server has seen spawned.
	NetObjects []uint32
}

// Snapshot lists the open games.
func (ls *LobbyServer) Snapshot(ctx context.Context) ([]GameSnapshot, error) {
	var out []GameSnapshot
	err := ls.do(ctx, func() {
		for _, g := range ls.sortedGames() {
			out = append(out, g.snapshot())
		}
	})
	return out, err
}
