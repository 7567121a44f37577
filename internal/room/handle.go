package room

import (
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// HandleGameData applies one inbound game data message. Every case is safe
// to run with stale or duplicated input: unknown netids are ignored, spawns
// of known or despawned netids are ignored, despawns of unknown netids are
// ignored.
func (r *Room) HandleGameData(msg protocol.Message) {
	switch msg := msg.(type) {
	case *protocol.DataMessage:
		c := r.netobjects[msg.NetID]
		if c == nil || c.networkable().authoritative() {
			return
		}
		rd := hazel.NewReader(msg.Data)
		c.Deserialize(rd, false)
		if rd.Err() != nil {
			r.logger.Debug().
				Uint32("netid", msg.NetID).
				Str("classname", c.Classname()).
				Msgf("could not deserialize data: %v", rd.Err())
		}
	case *protocol.RpcMessage:
		c := r.netobjects[msg.NetID]
		if c == nil {
			return
		}
		c.HandleRPC(msg.Call)
	case *protocol.SpawnMessage:
		r.handleSpawn(msg)
	case *protocol.DespawnMessage:
		if c := r.netobjects[msg.NetID]; c != nil {
			r.despawn(c, false)
		}
	case *protocol.SceneChangeMessage:
		p := r.AddPlayer(msg.ClientID)
		r.emit(PlayerSceneChangeEvent{Player: p, Scene: msg.Scene})
		if r.IsHost() && msg.Scene == protocol.SceneOnlineGame && msg.ClientID != r.selfID {
			r.replaySpawns(msg.ClientID)
			r.SpawnPlayer(msg.ClientID)
		}
	case *protocol.ReadyMessage:
		if p := r.Player(msg.ClientID); p != nil {
			r.emit(PlayerReadyEvent{Player: p})
		}
	case *protocol.ClientInfoMessage:
		if p := r.Player(msg.ClientID); p != nil {
			r.emit(PlayerClientInfoEvent{Player: p, Platform: msg.Platform})
		}
	}
}

func (r *Room) handleSpawn(msg *protocol.SpawnMessage) {
	ctors, ok := r.prefabs[msg.SpawnType]
	if !ok {
		r.logger.Debug().
			Str("spawn_type", msg.SpawnType.String()).
			Msg("ignoring spawn of unknown prefab")
		return
	}

	for _, data := range msg.Components {
		if _, ok := r.netobjects[data.NetID]; ok {
			return
		}
		if _, ok := r.despawned[data.NetID]; ok {
			return
		}
	}

	obj := &SpawnedObject{Type: msg.SpawnType, OwnerID: msg.OwnerID, Flags: msg.Flags}
	for slot, data := range msg.Components {
		if slot >= len(ctors) {
			break
		}
		c := ctors[slot](Networkable{
			room:      r,
			netID:     data.NetID,
			ownerID:   msg.OwnerID,
			spawnType: msg.SpawnType,
			slot:      slot,
		})
		rd := hazel.NewReader(data.Data)
		c.Deserialize(rd, true)
		if rd.Err() != nil {
			// the whole object or nothing
			r.logger.Debug().
				Uint32("netid", data.NetID).
				Str("classname", c.Classname()).
				Msgf("dropping spawn, could not deserialize spawn data: %v", rd.Err())
			return
		}
		obj.Components = append(obj.Components, c)
	}

	if msg.OwnerID != RoomObjectID {
		r.AddPlayer(msg.OwnerID)
	}
	for _, c := range obj.Components {
		r.spawnComponent(c)
	}
	r.spawned = append(r.spawned, obj)
	r.emit(SpawnEvent{Object: obj})
}
