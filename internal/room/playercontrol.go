package room

import (
	"fmt"
	"slices"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// number of player colors
const colorCount = 12

// PlayerControl is a player's identity and the target of most player rpcs.
//
// Every call has two paths. The exported method is for local input: it
// checks that this peer may make the change, applies it and queues the rpc.
// HandleRPC is for calls from the wire and only applies them.
type PlayerControl struct {
	Networkable
	IsNew    bool
	PlayerID uint8
}

func newPlayerControl(n Networkable) Component {
	return &PlayerControl{Networkable: n, PlayerID: NoPlayer}
}

func (c *PlayerControl) Classname() string { return "PlayerControl" }

func (c *PlayerControl) Serialize(w *hazel.Writer, spawn bool) bool {
	if spawn {
		w.Bool(c.IsNew)
		c.IsNew = false
	}
	w.Uint8(c.PlayerID)
	c.dirtyBit = 0
	return true
}

func (c *PlayerControl) Deserialize(r *hazel.Reader, spawn bool) {
	if spawn {
		c.IsNew = r.Bool()
	}
	c.PlayerID = r.Uint8()
}

func (c *PlayerControl) player() *PlayerData {
	p, _ := c.Owner().(*PlayerData)
	return p
}

func (c *PlayerControl) info() *protocol.PlayerInfo {
	if c.room.gameData == nil {
		return nil
	}
	return c.room.gameData.Player(c.PlayerID)
}

func (c *PlayerControl) isOwner() bool {
	return c.room.selfID != 0 && c.ownerID == c.room.selfID
}

func (c *PlayerControl) HandleRPC(call protocol.Message) {
	switch call := call.(type) {
	case *protocol.PlayAnimationMessage:
	case *protocol.CompleteTaskMessage:
		c.applyCompleteTask(call.TaskIndex)
	case *protocol.SyncSettingsMessage:
		c.room.Settings = call.Options
		c.room.emit(SyncSettingsEvent{Settings: call.Options})
	case *protocol.SetInfectedMessage:
		c.applySetInfected(call.Impostors)
	case *protocol.ExiledMessage:
		c.applyExiled()
	case *protocol.CheckNameMessage:
		if c.room.IsHost() {
			c.SetName(c.resolveName(call.Name))
		}
	case *protocol.SetNameMessage:
		c.applySetName(call.Name)
	case *protocol.CheckColorMessage:
		if c.room.IsHost() {
			c.SetColor(c.resolveColor(call.Color))
		}
	case *protocol.SetColorMessage:
		c.applySetColor(call.Color)
	case *protocol.SetHatMessage:
		c.applyCosmetic(call)
	case *protocol.SetSkinMessage:
		c.applyCosmetic(call)
	case *protocol.SetPetMessage:
		c.applyCosmetic(call)
	case *protocol.ReportDeadBodyMessage:
		if c.room.IsHost() {
			c.StartMeeting(call.BodyID)
		}
	case *protocol.MurderPlayerMessage:
		c.applyMurder(call.VictimNetID)
	case *protocol.SendChatMessage:
		c.room.emit(PlayerChatEvent{Player: c.player(), Message: call.Message})
	case *protocol.StartMeetingMessage:
		c.room.emit(MeetingEvent{Caller: c.player(), BodyID: call.BodyID})
	case *protocol.SetScannerMessage:
	case *protocol.SendChatNoteMessage:
	case *protocol.SetStartCounterMessage:
		c.room.emit(StartCounterEvent{Seconds: call.Time})
	case *protocol.SetTasksMessage:
		if gd := c.room.gameData; gd != nil {
			gd.applySetTasks(call.PlayerID, call.Tasks)
		}
	}
}

// CheckName asks the host for a name. The host answers with SetName.
func (c *PlayerControl) CheckName(name string) {
	if !c.isOwner() {
		return
	}
	if c.room.IsHost() {
		c.SetName(c.resolveName(name))
		return
	}
	c.rpc(&protocol.CheckNameMessage{Name: name})
}

// resolveName makes name unique among the other players.
func (c *PlayerControl) resolveName(name string) string {
	taken := func(candidate string) bool {
		for _, p := range c.room.Players() {
			if p.clientID == c.ownerID {
				continue
			}
			if info := p.Info(); info != nil && info.Name == candidate {
				return true
			}
		}
		return false
	}

	candidate := name
	for i := 1; taken(candidate); i++ {
		candidate = fmt.Sprintf("%s %d", name, i)
	}
	return candidate
}

// SetName sets the player's name. Host only.
func (c *PlayerControl) SetName(name string) {
	if !c.room.IsHost() {
		return
	}
	c.applySetName(name)
	c.rpc(&protocol.SetNameMessage{Name: name})
}

func (c *PlayerControl) applySetName(name string) {
	if info := c.info(); info != nil && info.Name != name {
		info.Name = name
		c.room.gameData.markPlayerDirty(c.PlayerID)
	}
	c.room.emit(PlayerSetNameEvent{Player: c.player(), Name: name})
}

func (c *PlayerControl) CheckColor(color uint8) {
	if !c.isOwner() {
		return
	}
	if c.room.IsHost() {
		c.SetColor(c.resolveColor(color))
		return
	}
	c.rpc(&protocol.CheckColorMessage{Color: color})
}

// resolveColor returns color, or the next one nobody else wears.
func (c *PlayerControl) resolveColor(color uint8) uint8 {
	var taken []uint8
	for _, p := range c.room.Players() {
		if p.clientID == c.ownerID {
			continue
		}
		if info := p.Info(); info != nil {
			taken = append(taken, info.Color)
		}
	}

	for i := 0; i < colorCount; i++ {
		candidate := uint8((int(color) + i) % colorCount)
		if !slices.Contains(taken, candidate) {
			return candidate
		}
	}
	return color % colorCount
}

// SetColor sets the player's color. Host only.
func (c *PlayerControl) SetColor(color uint8) {
	if !c.room.IsHost() {
		return
	}
	c.applySetColor(color)
	c.rpc(&protocol.SetColorMessage{Color: color})
}

func (c *PlayerControl) applySetColor(color uint8) {
	if info := c.info(); info != nil && info.Color != color {
		info.Color = color
		c.room.gameData.markPlayerDirty(c.PlayerID)
	}
	c.room.emit(PlayerSetColorEvent{Player: c.player(), Color: color})
}

// SetCosmetic sets a hat, skin or pet. Owner only.
func (c *PlayerControl) SetCosmetic(call protocol.Message) {
	if !c.isOwner() {
		return
	}
	switch call.(type) {
	case *protocol.SetHatMessage, *protocol.SetSkinMessage, *protocol.SetPetMessage:
	default:
		return
	}
	c.applyCosmetic(call)
	c.rpc(call)
}

func (c *PlayerControl) applyCosmetic(call protocol.Message) {
	if info := c.info(); info != nil {
		switch call := call.(type) {
		case *protocol.SetHatMessage:
			info.Hat = call.Hat
		case *protocol.SetSkinMessage:
			info.Skin = call.Skin
		case *protocol.SetPetMessage:
			info.Pet = call.Pet
		}
		c.room.gameData.markPlayerDirty(c.PlayerID)
	}
	c.room.emit(PlayerSetCosmeticEvent{Player: c.player(), Call: call})
}

// SendChat says something. Owner only.
func (c *PlayerControl) SendChat(message string) {
	if !c.isOwner() {
		return
	}
	c.room.emit(PlayerChatEvent{Player: c.player(), Message: message})
	c.rpc(&protocol.SendChatMessage{Message: message})
}

// CompleteTask marks one of the player's tasks done. Owner only.
func (c *PlayerControl) CompleteTask(taskIndex uint32) {
	if !c.isOwner() {
		return
	}
	c.applyCompleteTask(taskIndex)
	c.rpc(&protocol.CompleteTaskMessage{TaskIndex: taskIndex})
}

func (c *PlayerControl) applyCompleteTask(taskIndex uint32) {
	if info := c.info(); info != nil && int(taskIndex) < len(info.Tasks) {
		info.Tasks[taskIndex].Complete = true
		c.room.gameData.markPlayerDirty(c.PlayerID)
	}
	c.room.emit(PlayerCompleteTaskEvent{Player: c.player(), TaskIndex: taskIndex})
}

// MurderPlayer kills victim. Owner only, and only while both are alive.
func (c *PlayerControl) MurderPlayer(victim *PlayerControl) {
	if !c.isOwner() || victim == nil {
		return
	}
	if info := victim.info(); info != nil && info.Dead() {
		return
	}
	c.applyMurder(victim.netID)
	c.rpc(&protocol.MurderPlayerMessage{VictimNetID: victim.netID})
}

func (c *PlayerControl) applyMurder(victimNetID uint32) {
	victim, _ := c.room.netobjects[victimNetID].(*PlayerControl)
	if victim == nil {
		return
	}
	if info := victim.info(); info != nil {
		info.Flags |= protocol.PlayerFlagDead
		c.room.gameData.markPlayerDirty(victim.PlayerID)
	}
	c.room.emit(PlayerMurderEvent{Murderer: c.player(), Victim: victim.player()})
}

// ReportDeadBody asks the host for a meeting. bodyID is protocol.NoBody for
// the emergency button.
func (c *PlayerControl) ReportDeadBody(bodyID uint8) {
	if !c.isOwner() {
		return
	}
	if c.room.IsHost() {
		c.StartMeeting(bodyID)
		return
	}
	c.rpc(&protocol.ReportDeadBodyMessage{BodyID: bodyID})
}

// StartMeeting spawns the meeting hud and announces the meeting. Host only,
// and only when no meeting is running.
func (c *PlayerControl) StartMeeting(bodyID uint8) {
	if !c.room.IsHost() || c.room.meetingHud != nil {
		return
	}
	c.room.emit(MeetingEvent{Caller: c.player(), BodyID: bodyID})
	c.rpc(&protocol.StartMeetingMessage{BodyID: bodyID})
	c.room.spawnPrefab(protocol.SpawnMeetingHud, RoomObjectID, protocol.SpawnFlagNone, func(obj *SpawnedObject) {
		obj.Components[0].(*MeetingHud).fill(c.room, c.PlayerID)
	})
}

// SetInfected picks the impostors. Host only.
func (c *PlayerControl) SetInfected(impostors []uint8) {
	if !c.room.IsHost() {
		return
	}
	c.applySetInfected(impostors)
	c.rpc(&protocol.SetInfectedMessage{Impostors: slices.Clone(impostors)})
}

func (c *PlayerControl) applySetInfected(impostors []uint8) {
	if gd := c.room.gameData; gd != nil {
		for _, id := range impostors {
			if info := gd.Player(id); info != nil {
				info.Flags |= protocol.PlayerFlagImpostor
				gd.markPlayerDirty(id)
			}
		}
	}
	c.room.emit(SetInfectedEvent{Impostors: slices.Clone(impostors)})
}

// Exile marks the player dead after a vote. Host only.
func (c *PlayerControl) Exile() {
	if !c.room.IsHost() {
		return
	}
	c.applyExiled()
	c.rpc(&protocol.ExiledMessage{})
}

func (c *PlayerControl) applyExiled() {
	if info := c.info(); info != nil {
		info.Flags |= protocol.PlayerFlagDead
		c.room.gameData.markPlayerDirty(c.PlayerID)
	}
	c.room.emit(PlayerExiledEvent{Player: c.player()})
}

// SyncSettings pushes the room settings to everyone. Host only.
func (c *PlayerControl) SyncSettings(options protocol.GameOptions) {
	if !c.room.IsHost() {
		return
	}
	c.room.Settings = options
	c.room.emit(SyncSettingsEvent{Settings: options})
	c.rpc(&protocol.SyncSettingsMessage{Options: options})
}

// SetStartCounter drives the lobby countdown; -1 stops it. Host only.
func (c *PlayerControl) SetStartCounter(seq uint32, seconds int8) {
	if !c.room.IsHost() {
		return
	}
	c.room.emit(StartCounterEvent{Seconds: seconds})
	c.rpc(&protocol.SetStartCounterMessage{Seq: seq, Time: seconds})
}
