package room

import (
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

type PlayerJoinEvent struct {
	Player *PlayerData
}

type PlayerLeaveEvent struct {
	Player *PlayerData
}

type HostChangeEvent struct {
	From int32
	To   int32
}

type SpawnEvent struct {
	Object *SpawnedObject
}

type DespawnEvent struct {
	Component Component
}

type PlayerSceneChangeEvent struct {
	Player *PlayerData
	Scene  string
}

type PlayerReadyEvent struct {
	Player *PlayerData
}

type PlayerClientInfoEvent struct {
	Player   *PlayerData
	Platform uint32
}

type PlayerSetNameEvent struct {
	Player *PlayerData
	Name   string
}

type PlayerSetColorEvent struct {
	Player *PlayerData
	Color  uint8
}

type PlayerSetCosmeticEvent struct {
	Player *PlayerData
	Call   protocol.Message
}

type PlayerChatEvent struct {
	Player  *PlayerData
	Message string
}

type PlayerMurderEvent struct {
	Murderer *PlayerData
	Victim   *PlayerData
}

type PlayerCompleteTaskEvent struct {
	Player    *PlayerData
	TaskIndex uint32
}

type PlayerVentEvent struct {
	Player *PlayerData
	VentID uint32
	Enter  bool
}

type PlayerMoveEvent struct {
	Player   *PlayerData
	Position hazel.Vector2
	Velocity hazel.Vector2
	Snap     bool
}

type SetInfectedEvent struct {
	Impostors []uint8
}

type SyncSettingsEvent struct {
	Settings protocol.GameOptions
}

type StartCounterEvent struct {
	Seconds int8
}

type MeetingEvent struct {
	Caller *PlayerData
	// BodyID is protocol.NoBody for an emergency meeting
	BodyID uint8
}

type VoteEvent struct {
	Voter   uint8
	Suspect uint8
}

type VotingCompleteEvent struct {
	Exiled uint8
	Tie    bool
}

type PlayerExiledEvent struct {
	Player *PlayerData
}

type KickVoteEvent struct {
	Voter  int32
	Target int32
}

// ShipEvent wraps the events ship systems emit.
type ShipEvent struct {
	Event any
}
