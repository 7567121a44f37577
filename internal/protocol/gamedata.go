package protocol

import (
	"fmt"

	"github.com/blukai/skeldparty/internal/hazel"
)

func registerGameData(reg *Registry) {
	registerFixed[DataMessage](reg, GameDataTag(GameDataData))
	reg.Register(GameDataTag(GameDataRpc), decodeRpc)
	registerFixed[SpawnMessage](reg, GameDataTag(GameDataSpawn))
	registerFixed[DespawnMessage](reg, GameDataTag(GameDataDespawn))
	registerFixed[SceneChangeMessage](reg, GameDataTag(GameDataSceneChange))
	registerFixed[ReadyMessage](reg, GameDataTag(GameDataReady))
	registerFixed[ClientInfoMessage](reg, GameDataTag(GameDataClientInfo))
}

// DataMessage is an incremental state update for one component. Data is
// opaque here; the component owning NetID knows how to read it.
type DataMessage struct {
	NetID uint32
	Data  []byte
}

func (m *DataMessage) Tag() Tag { return GameDataTag(GameDataData) }

func (m *DataMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Upacked(m.NetID)
	w.Write(m.Data)
}

func (m *DataMessage) deserialize(r *hazel.Reader) {
	m.NetID = r.Upacked()
	m.Data = r.Rest()
}

// RpcMessage calls Call on the component NetID. Call is decoded from the rpc
// namespace; a call nobody registered (or that did not decode) is kept as an
// UnknownMessage.
type RpcMessage struct {
	NetID uint32
	Call  Message
}

func (m *RpcMessage) Tag() Tag { return GameDataTag(GameDataRpc) }

func (m *RpcMessage) Serialize(w *hazel.Writer, dir Direction) {
	w.Upacked(m.NetID)
	w.Uint8(m.Call.Tag().ID)
	m.Call.Serialize(w, dir)
}

func decodeRpc(r *hazel.Reader, dir Direction, reg *Registry) (Message, error) {
	m := &RpcMessage{NetID: r.Upacked()}
	callID := r.Uint8()
	if r.Err() != nil {
		return nil, r.Err()
	}

	tag := RpcTag(callID)
	raw := r.Rest()
	call, err := reg.Decode(tag, hazel.NewReader(raw), dir)
	if err != nil {
		err = fmt.Errorf("could not decode %s on netid %d: %w", tag, m.NetID, err)
	}
	if call == nil {
		call = &UnknownMessage{MessageTag: tag, Data: raw}
	}
	m.Call = call
	return m, err
}

// CallID returns the rpc call id.
func (m *RpcMessage) CallID() uint8 {
	return m.Call.Tag().ID
}

// ComponentData is the spawn-mode serialization of one component.
type ComponentData struct {
	NetID uint32
	Data  []byte
}

// SpawnMessage instantiates the prefab SpawnType. Components follow the
// prefab's table order.
type SpawnMessage struct {
	SpawnType  SpawnType
	OwnerID    int32
	Flags      uint8
	Components []ComponentData
}

func (m *SpawnMessage) Tag() Tag { return GameDataTag(GameDataSpawn) }

func (m *SpawnMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Upacked(uint32(m.SpawnType))
	w.Packed(m.OwnerID)
	w.Uint8(m.Flags)
	w.Upacked(uint32(len(m.Components)))
	for _, c := range m.Components {
		w.Upacked(c.NetID)
		w.Begin(1)
		w.Write(c.Data)
		w.End()
	}
}

func (m *SpawnMessage) deserialize(r *hazel.Reader) {
	m.SpawnType = SpawnType(r.Upacked())
	m.OwnerID = r.Packed()
	m.Flags = r.Uint8()
	n := int(r.Upacked())
	m.Components = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		netID := r.Upacked()
		_, sub := r.Message()
		m.Components = append(m.Components, ComponentData{
			NetID: netID,
			Data:  sub.Rest(),
		})
	}
}

type DespawnMessage struct {
	NetID uint32
}

func (m *DespawnMessage) Tag() Tag { return GameDataTag(GameDataDespawn) }

func (m *DespawnMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Upacked(m.NetID)
}

func (m *DespawnMessage) deserialize(r *hazel.Reader) {
	m.NetID = r.Upacked()
}

const SceneOnlineGame = "OnlineGame"

type SceneChangeMessage struct {
	ClientID int32
	Scene    string
}

func (m *SceneChangeMessage) Tag() Tag { return GameDataTag(GameDataSceneChange) }

func (m *SceneChangeMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Packed(m.ClientID)
	w.Str(m.Scene)
}

func (m *SceneChangeMessage) deserialize(r *hazel.Reader) {
	m.ClientID = r.Packed()
	m.Scene = r.Str()
}

type ReadyMessage struct {
	ClientID int32
}

func (m *ReadyMessage) Tag() Tag { return GameDataTag(GameDataReady) }

func (m *ReadyMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Packed(m.ClientID)
}

func (m *ReadyMessage) deserialize(r *hazel.Reader) {
	m.ClientID = r.Packed()
}

type ClientInfoMessage struct {
	ClientID int32
	Platform uint32
}

func (m *ClientInfoMessage) Tag() Tag { return GameDataTag(GameDataClientInfo) }

func (m *ClientInfoMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Packed(m.ClientID)
	w.Upacked(m.Platform)
}

func (m *ClientInfoMessage) deserialize(r *hazel.Reader) {
	m.ClientID = r.Packed()
	m.Platform = r.Upacked()
}
