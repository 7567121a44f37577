package room

import (
	"slices"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// GameData is the roster: one PlayerInfo per player id. Updates carry only
// the players that changed, each in a frame tagged with the player id.
type GameData struct {
	Networkable
	players map[uint8]*protocol.PlayerInfo
	dirty   map[uint8]bool
}

func newGameData(n Networkable) Component {
	return &GameData{
		Networkable: n,
		players:     make(map[uint8]*protocol.PlayerInfo),
		dirty:       make(map[uint8]bool),
	}
}

func (c *GameData) Classname() string { return "GameData" }

func (c *GameData) Player(playerID uint8) *protocol.PlayerInfo {
	return c.players[playerID]
}

// Players returns the roster ordered by player id.
func (c *GameData) Players() []*protocol.PlayerInfo {
	ids := make([]uint8, 0, len(c.players))
	for id := range c.players {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]*protocol.PlayerInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.players[id])
	}
	return out
}

// markPlayerDirty queues the player's entry for the next update. Only the
// host keeps track; everyone else gets the entries from it.
func (c *GameData) markPlayerDirty(playerID uint8) {
	if !c.authoritative() {
		return
	}
	c.dirty[playerID] = true
	c.dirtyBit = 1
}

// AddPlayer adds a roster entry. Host only.
func (c *GameData) AddPlayer(playerID uint8) *protocol.PlayerInfo {
	if !c.authoritative() {
		return nil
	}
	if info := c.players[playerID]; info != nil {
		return info
	}
	info := &protocol.PlayerInfo{PlayerID: playerID}
	c.players[playerID] = info
	c.markPlayerDirty(playerID)
	return info
}

func (c *GameData) markDisconnected(playerID uint8) {
	info := c.players[playerID]
	if info == nil || !c.authoritative() {
		return
	}
	info.Flags |= protocol.PlayerFlagDisconnected
	c.markPlayerDirty(playerID)
}

func (c *GameData) Serialize(w *hazel.Writer, spawn bool) bool {
	defer func() {
		clear(c.dirty)
		c.dirtyBit = 0
	}()

	if spawn {
		players := c.Players()
		w.Upacked(uint32(len(players)))
		for _, info := range players {
			w.Uint8(info.PlayerID)
			info.Serialize(w)
		}
		return true
	}

	if len(c.dirty) == 0 {
		return false
	}
	for _, info := range c.Players() {
		if !c.dirty[info.PlayerID] {
			continue
		}
		w.Begin(info.PlayerID)
		info.Serialize(w)
		w.End()
	}
	return true
}

func (c *GameData) Deserialize(r *hazel.Reader, spawn bool) {
	if spawn {
		n := int(r.Upacked())
		for i := 0; i < n && r.Err() == nil; i++ {
			info := &protocol.PlayerInfo{PlayerID: r.Uint8()}
			info.Deserialize(r)
			if r.Err() == nil {
				c.players[info.PlayerID] = info
			}
		}
		return
	}

	for r.Left() > 0 && r.Err() == nil {
		id, sub := r.Message()
		info := &protocol.PlayerInfo{PlayerID: id}
		info.Deserialize(sub)
		if sub.Err() == nil {
			c.players[id] = info
		}
	}
}

func (c *GameData) HandleRPC(call protocol.Message) {
	switch call := call.(type) {
	case *protocol.SetTasksMessage:
		c.applySetTasks(call.PlayerID, call.Tasks)
	case *protocol.UpdateGameDataMessage:
		for i := range call.Players {
			info := call.Players[i]
			c.players[info.PlayerID] = &info
		}
	}
}

// SetTasks hands out a player's tasks. Host only.
func (c *GameData) SetTasks(playerID uint8, tasks []uint8) {
	if !c.authoritative() {
		return
	}
	c.applySetTasks(playerID, tasks)
	c.rpc(&protocol.SetTasksMessage{PlayerID: playerID, Tasks: slices.Clone(tasks)})
}

func (c *GameData) applySetTasks(playerID uint8, tasks []uint8) {
	info := c.players[playerID]
	if info == nil {
		return
	}
	info.Tasks = info.Tasks[:0]
	for _, id := range tasks {
		info.Tasks = append(info.Tasks, protocol.TaskInfo{ID: uint32(id)})
	}
	c.markPlayerDirty(playerID)
}
