package room

import (
	"slices"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// Constructor builds a component around its networkable base.
type Constructor func(n Networkable) Component

// Prefabs lists, per spawn type, the components instantiated together. The
// order is part of the wire format: spawn messages carry component data in
// this order and players rely on control, physics, transform positions.
type Prefabs map[protocol.SpawnType][]Constructor

func DefaultPrefabs() Prefabs {
	return Prefabs{
		protocol.SpawnShipStatus:      {newSkeldShipStatus},
		protocol.SpawnMeetingHud:      {newMeetingHud},
		protocol.SpawnLobbyBehaviour:  {newLobbyBehaviour},
		protocol.SpawnGameData:        {newGameData, newVoteBanSystem},
		protocol.SpawnPlayer:          {newPlayerControl, newPlayerPhysics, newCustomNetworkTransform},
		protocol.SpawnHeadQuarters:    {newMiraShipStatus},
		protocol.SpawnAprilShipStatus: {newDleksShipStatus},
	}
}

// ShipPrefab returns the spawn type of the ship status for m.
func ShipPrefab(m protocol.MapID) (protocol.SpawnType, bool) {
	switch m {
	case protocol.MapSkeld:
		return protocol.SpawnShipStatus, true
	case protocol.MapMira:
		return protocol.SpawnHeadQuarters, true
	case protocol.MapDleks:
		return protocol.SpawnAprilShipStatus, true
	default:
		return 0, false
	}
}

// SpawnedObject is one instantiated prefab.
type SpawnedObject struct {
	Type       protocol.SpawnType
	OwnerID    int32
	Flags      uint8
	Components []Component
}

// snapshotter is a component whose spawn form can be written without
// consuming the changes it tracks below its dirty bit.
type snapshotter interface {
	snapshot(w *hazel.Writer)
}

// message builds the spawn message describing the object as it is now. With
// keepDirty the components keep their pending changes for the next flush.
func (obj *SpawnedObject) message(keepDirty bool) *protocol.SpawnMessage {
	msg := &protocol.SpawnMessage{
		SpawnType: obj.Type,
		OwnerID:   obj.OwnerID,
		Flags:     obj.Flags,
	}
	for _, c := range obj.Components {
		n := c.networkable()
		dirty := n.dirtyBit
		w := hazel.NewWriter()
		if s, ok := c.(snapshotter); ok && keepDirty {
			s.snapshot(w)
		} else {
			c.Serialize(w, true)
		}
		if keepDirty {
			n.dirtyBit = dirty
		}
		msg.Components = append(msg.Components, protocol.ComponentData{
			NetID: c.NetID(),
			Data:  w.Bytes(),
		})
	}
	return msg
}

// SpawnPrefab instantiates the prefab t for ownerID with fresh netids and
// queues the spawn message. Only the host spawns; anywhere else it returns
// nil.
func (r *Room) SpawnPrefab(t protocol.SpawnType, ownerID int32, flags uint8) *SpawnedObject {
	return r.spawnPrefab(t, ownerID, flags, nil)
}

func (r *Room) spawnPrefab(t protocol.SpawnType, ownerID int32, flags uint8, init func(*SpawnedObject)) *SpawnedObject {
	if !r.IsHost() {
		return nil
	}
	ctors, ok := r.prefabs[t]
	if !ok {
		return nil
	}
	if r.objects[ownerID] == nil {
		r.AddPlayer(ownerID)
	}

	obj := &SpawnedObject{Type: t, OwnerID: ownerID, Flags: flags}
	for slot, ctor := range ctors {
		r.netIDs++
		obj.Components = append(obj.Components, ctor(Networkable{
			room:      r,
			netID:     r.netIDs,
			ownerID:   ownerID,
			spawnType: t,
			slot:      slot,
		}))
	}
	if init != nil {
		init(obj)
	}

	for _, c := range obj.Components {
		r.spawnComponent(c)
	}
	r.spawned = append(r.spawned, obj)
	r.Enqueue(obj.message(false))
	r.emit(SpawnEvent{Object: obj})
	return obj
}

// SpawnPlayer gives a client its player object with the lowest free player
// id and adds it to the roster. Host only.
func (r *Room) SpawnPlayer(clientID int32) *SpawnedObject {
	if !r.IsHost() {
		return nil
	}
	if p := r.Player(clientID); p != nil && p.Control() != nil {
		return nil
	}

	playerID := r.freePlayerID()
	if playerID == NoPlayer {
		return nil
	}

	obj := r.spawnPrefab(protocol.SpawnPlayer, clientID, protocol.SpawnFlagClientCharacter, func(obj *SpawnedObject) {
		ctl := obj.Components[0].(*PlayerControl)
		ctl.PlayerID = playerID
		ctl.IsNew = true
	})
	if obj != nil && r.gameData != nil {
		r.gameData.AddPlayer(playerID)
	}
	return obj
}

func (r *Room) freePlayerID() uint8 {
	used := make(map[uint8]bool)
	for _, p := range r.Players() {
		if id := p.PlayerID(); id != NoPlayer {
			used[id] = true
		}
	}
	if r.gameData != nil {
		for id := range r.gameData.players {
			used[id] = true
		}
	}
	for id := uint8(0); id < NoPlayer; id++ {
		if !used[id] {
			return id
		}
	}
	return NoPlayer
}

// spawnComponent registers c. It reports false when the netid is already
// known, which makes a redelivered spawn harmless.
func (r *Room) spawnComponent(c Component) bool {
	n := c.networkable()
	if _, ok := r.netobjects[n.netID]; ok {
		return false
	}

	r.netobjects[n.netID] = c
	if owner := n.Owner(); owner != nil {
		owner.attach(n.slot, c)
	}
	if n.netID > r.netIDs {
		r.netIDs = n.netID
	}

	switch c := c.(type) {
	case *GameData:
		r.gameData = c
	case *VoteBanSystem:
		r.voteBan = c
	case *LobbyBehaviour:
		r.lobby = c
	case *MeetingHud:
		r.meetingHud = c
	case *ShipStatus:
		r.shipStatus = c
	}
	return true
}

// DespawnComponent removes c and queues the despawn. Host only; despawning
// something already gone does nothing.
func (r *Room) DespawnComponent(c Component) {
	if !r.IsHost() {
		return
	}
	r.despawn(c, true)
}

func (r *Room) despawn(c Component, broadcast bool) {
	n := c.networkable()
	if r.netobjects[n.netID] != c {
		return
	}

	delete(r.netobjects, n.netID)
	r.despawned[n.netID] = struct{}{}
	if owner := n.Owner(); owner != nil {
		owner.detach(c)
	}

	switch c {
	case Component(r.gameData):
		r.gameData = nil
	case Component(r.voteBan):
		r.voteBan = nil
	case Component(r.lobby):
		r.lobby = nil
	case Component(r.meetingHud):
		r.meetingHud = nil
	case Component(r.shipStatus):
		r.shipStatus = nil
	}

	for i, obj := range r.spawned {
		j := slices.Index(obj.Components, c)
		if j < 0 {
			continue
		}
		obj.Components = slices.Delete(slices.Clone(obj.Components), j, j+1)
		if len(obj.Components) == 0 {
			r.spawned = slices.Delete(r.spawned, i, i+1)
		}
		break
	}

	if broadcast {
		r.Enqueue(&protocol.DespawnMessage{NetID: n.netID})
	}
	r.emit(DespawnEvent{Component: c})
}

// replaySpawns sends every live object to a newcomer.
func (r *Room) replaySpawns(recipient int32) {
	for _, obj := range r.spawned {
		r.EnqueueTo(recipient, obj.message(true))
	}
}
