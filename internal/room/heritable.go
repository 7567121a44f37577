package room

import (
	"github.com/blukai/skeldparty/internal/protocol"
)

// Heritable owns components: the room itself and every player.
type Heritable interface {
	ID() int32
	// Components returns the component slots. Despawned slots are nil.
	Components() []Component

	attach(slot int, c Component)
	detach(c Component)
}

// PlayerData is a client in the room. Its components sit at the positions
// of the player prefab: control, physics, transform.
type PlayerData struct {
	room       *Room
	clientID   int32
	components []Component
}

func (p *PlayerData) ID() int32               { return p.clientID }
func (p *PlayerData) ClientID() int32         { return p.clientID }
func (p *PlayerData) Components() []Component { return p.components }

func (p *PlayerData) attach(slot int, c Component) {
	for len(p.components) <= slot {
		p.components = append(p.components, nil)
	}
	p.components[slot] = c
}

func (p *PlayerData) detach(c Component) {
	for i, it := range p.components {
		if it == c {
			p.components[i] = nil
		}
	}
}

func (p *PlayerData) slot(i int) Component {
	if i < len(p.components) {
		return p.components[i]
	}
	return nil
}

func (p *PlayerData) Control() *PlayerControl {
	c, _ := p.slot(0).(*PlayerControl)
	return c
}

func (p *PlayerData) Physics() *PlayerPhysics {
	c, _ := p.slot(1).(*PlayerPhysics)
	return c
}

func (p *PlayerData) Transform() *CustomNetworkTransform {
	c, _ := p.slot(2).(*CustomNetworkTransform)
	return c
}

// Spawned reports whether the player has all of its components.
func (p *PlayerData) Spawned() bool {
	return p.Control() != nil && p.Physics() != nil && p.Transform() != nil
}

func (p *PlayerData) IsHost() bool {
	return p.room.hostID == p.clientID
}

func (p *PlayerData) IsSelf() bool {
	return p.room.selfID == p.clientID
}

// PlayerID is the in-game player id, or NoPlayer before the player spawned.
func (p *PlayerData) PlayerID() uint8 {
	if ctl := p.Control(); ctl != nil {
		return ctl.PlayerID
	}
	return NoPlayer
}

// Info is the player's roster entry, nil when the room has no game data yet.
func (p *PlayerData) Info() *protocol.PlayerInfo {
	gd := p.room.GameData()
	if gd == nil || p.PlayerID() == NoPlayer {
		return nil
	}
	return gd.Player(p.PlayerID())
}

// Room owns the components no player owns. Its slots are reused once freed,
// the positions of live components never move.
func (r *Room) ID() int32               { return RoomObjectID }
func (r *Room) Components() []Component { return r.components }

func (r *Room) attach(_ int, c Component) {
	for i, it := range r.components {
		if it == nil {
			r.components[i] = c
			return
		}
	}
	r.components = append(r.components, c)
}

func (r *Room) detach(c Component) {
	for i, it := range r.components {
		if it == c {
			r.components[i] = nil
		}
	}
}
