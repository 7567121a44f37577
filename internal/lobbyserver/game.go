package lobbyserver

import (
	"slices"
	"time"

	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/room"
	"github.com/hashicorp/go-multierror"
)

type game struct {
	code      protocol.Code
	hostID    int32
	options   protocol.GameOptions
	members   map[int32]*client
	started   bool
	public    bool
	banned    map[string]struct{}
	createdAt time.Time

	// mirror follows the game data so the server knows what exists. It
	// never acts on it.
	mirror *room.Room
}

func (g *game) memberIDs() []int32 {
	ids := make([]int32, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (g *game) snapshot() GameSnapshot {
	s := GameSnapshot{
		Code:    g.code,
		HostID:  g.hostID,
		Members: g.memberIDs(),
		Started: g.started,
		Public:  g.public,
	}
	for _, c := range g.mirror.NetObjects() {
		s.NetObjects = append(s.NetObjects, c.NetID())
	}
	return s
}

func (ls *LobbyServer) sortedGames() []*game {
	out := make([]*game, 0, len(ls.games))
	for _, g := range ls.games {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *game) int {
		return int(int64(a.code) - int64(b.code))
	})
	return out
}

func (ls *LobbyServer) createGame(options protocol.GameOptions) *game {
	if options.Version == 0 {
		options = protocol.DefaultGameOptions()
	}
	code := protocol.RandomCode()
	for ls.games[code] != nil {
		code = protocol.RandomCode()
	}

	g := &game{
		code:      code,
		options:   options,
		members:   make(map[int32]*client),
		banned:    make(map[string]struct{}),
		createdAt: time.Now(),
		mirror: room.New(room.Config{
			Code:     code,
			Settings: options,
			Logger:   ls.logger,
		}),
	}
	ls.games[code] = g
	ls.metrics.games.Inc()

	ls.logger.Info().
		Str("code", code.String()).
		Msg("game created")
	ls.emit(GameCreatedEvent{Code: code})
	return g
}

func (ls *LobbyServer) removeGame(code protocol.Code) {
	if _, ok := ls.games[code]; !ok {
		return
	}
	delete(ls.games, code)
	ls.metrics.games.Dec()

	ls.logger.Info().
		Str("code", code.String()).
		Msg("game removed")
	ls.emit(GameRemovedEvent{Code: code})
}

// broadcast sends msgs to every member but except (0 for nobody).
func (ls *LobbyServer) broadcast(g *game, except int32, reliable bool, msgs ...protocol.Message) error {
	var errs error
	for _, id := range g.memberIDs() {
		if id == except {
			continue
		}
		if err := ls.send(g.members[id], reliable, msgs...); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// memberOf returns c's game when it is the one code names.
func memberOf(c *client, code protocol.Code) *game {
	if c.game == nil || c.game.code != code {
		return nil
	}
	return c.game
}

func (ls *LobbyServer) handleMessage(c *client, m protocol.Message, reliable bool) {
	switch m := m.(type) {
	case *protocol.HostGameRequest:
		g := ls.createGame(m.Options)
		ls.send(c, true, &protocol.HostGameMessage{Code: g.code})
	case *protocol.JoinGameRequest:
		ls.join(c, m.Code)
	case *protocol.StartGameMessage:
		g := memberOf(c, m.Code)
		if g == nil || g.hostID != c.id {
			return
		}
		g.started = true
		ls.broadcast(g, 0, true, &protocol.StartGameMessage{Code: g.code})
	case *protocol.EndGameMessage:
		g := memberOf(c, m.Code)
		if g == nil || g.hostID != c.id {
			return
		}
		g.started = false
		ls.broadcast(g, 0, true, m)
	case *protocol.GameDataMessage:
		g := memberOf(c, m.Code)
		if g == nil {
			return
		}
		for _, child := range m.Children {
			g.mirror.HandleGameData(child)
		}
		ls.metrics.relayed.WithLabelValues("gamedata").Inc()
		if err := ls.broadcast(g, c.id, reliable, m); err != nil {
			ls.logger.Debug().
				Str("code", g.code.String()).
				Msgf("relay incomplete: %v", err)
		}
	case *protocol.GameDataToMessage:
		g := memberOf(c, m.Code)
		if g == nil {
			return
		}
		to := g.members[m.Recipient]
		if to == nil {
			return
		}
		for _, child := range m.Children {
			g.mirror.HandleGameData(child)
		}
		ls.metrics.relayed.WithLabelValues("gamedatato").Inc()
		ls.send(to, reliable, m)
	case *protocol.AlterGameMessage:
		g := memberOf(c, m.Code)
		if g == nil || g.hostID != c.id {
			return
		}
		if m.Alter == protocol.AlterGameChangePrivacy {
			g.public = m.Value == 1
			g.mirror.Public = g.public
		}
		ls.broadcast(g, 0, true, m)
	case *protocol.KickPlayerMessage:
		g := memberOf(c, m.Code)
		if g == nil || g.hostID != c.id || m.ClientID == c.id {
			return
		}
		target := g.members[m.ClientID]
		if target == nil {
			return
		}
		reason := protocol.DisconnectKicked
		if m.Banned {
			reason = protocol.DisconnectBanned
			g.banned[target.addr.Addr().String()] = struct{}{}
		}
		ls.broadcast(g, 0, true, &protocol.KickPlayerMessage{Code: g.code, ClientID: target.id, Banned: m.Banned})
		ls.leave(target, reason)
	case *protocol.RemovePlayerRequest:
		g := memberOf(c, m.Code)
		if g == nil || g.hostID != c.id {
			return
		}
		if target := g.members[m.ClientID]; target != nil {
			ls.leave(target, m.Reason)
		}
	default:
		ls.logger.Debug().
			Int32("client_id", c.id).
			Str("tag", m.Tag().String()).
			Msg("ignoring message")
	}
}

func (ls *LobbyServer) refuse(c *client, reason protocol.DisconnectReason) {
	ls.logger.Info().
		Int32("client_id", c.id).
		Uint8("reason", uint8(reason)).
		Msg("refusing join")
	ls.removeClient(c, reason, true)
}

func (ls *LobbyServer) join(c *client, code protocol.Code) {
	g := ls.games[code]
	switch {
	case g == nil:
		ls.refuse(c, protocol.DisconnectGameNotFound)
		return
	case g == c.game:
		return
	case g.started:
		ls.refuse(c, protocol.DisconnectGameStarted)
		return
	case g.options.MaxPlayers > 0 && len(g.members) >= int(g.options.MaxPlayers):
		ls.refuse(c, protocol.DisconnectGameFull)
		return
	}
	if _, banned := g.banned[c.addr.Addr().String()]; banned {
		ls.refuse(c, protocol.DisconnectBanned)
		return
	}

	if c.game != nil {
		ls.leave(c, protocol.DisconnectExitGame)
	}

	others := g.memberIDs()
	g.members[c.id] = c
	c.game = g
	if g.hostID == 0 {
		g.hostID = c.id
		g.mirror.SetHostID(c.id)
	}
	g.mirror.AddPlayer(c.id)

	ls.send(c, true, &protocol.JoinedGameMessage{
		Code:     g.code,
		ClientID: c.id,
		HostID:   g.hostID,
		Others:   others,
	})
	ls.broadcast(g, c.id, true, &protocol.JoinGameMessage{
		Code:     g.code,
		ClientID: c.id,
		HostID:   g.hostID,
	})

	ls.logger.Info().
		Str("code", g.code.String()).
		Int32("client_id", c.id).
		Int32("host_id", g.hostID).
		Msg("player joined")
	ls.emit(PlayerJoinedEvent{Code: g.code, ClientID: c.id})
}

// leave takes c out of its game. A departing host hands over to the member
// with the lowest id; the last one out closes the game.
func (ls *LobbyServer) leave(c *client, reason protocol.DisconnectReason) {
	g := c.game
	if g == nil {
		return
	}
	delete(g.members, c.id)
	c.game = nil
	g.mirror.RemovePlayer(c.id)

	if len(g.members) == 0 {
		ls.removeGame(g.code)
		ls.emit(PlayerLeftEvent{Code: g.code, ClientID: c.id, Reason: reason})
		return
	}

	if g.hostID == c.id {
		g.hostID = g.memberIDs()[0]
		g.mirror.SetHostID(g.hostID)
		ls.logger.Info().
			Str("code", g.code.String()).
			Int32("host_id", g.hostID).
			Msg("host migrated")
	}

	ls.broadcast(g, 0, true, &protocol.RemovePlayerMessage{
		Code:     g.code,
		ClientID: c.id,
		HostID:   g.hostID,
		Reason:   reason,
	})
	ls.emit(PlayerLeftEvent{Code: g.code, ClientID: c.id, HostID: g.hostID, Reason: reason})
}
