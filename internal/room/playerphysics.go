package room

import (
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// PlayerPhysics has no state of its own, only the vent rpcs.
type PlayerPhysics struct {
	Networkable
	// VentID is the vent the player is in, or -1.
	VentID int64
}

func newPlayerPhysics(n Networkable) Component {
	return &PlayerPhysics{Networkable: n, VentID: -1}
}

func (c *PlayerPhysics) Classname() string { return "PlayerPhysics" }

func (c *PlayerPhysics) Serialize(*hazel.Writer, bool) bool {
	c.dirtyBit = 0
	return false
}

func (c *PlayerPhysics) Deserialize(*hazel.Reader, bool) {}

func (c *PlayerPhysics) HandleRPC(call protocol.Message) {
	switch call := call.(type) {
	case *protocol.EnterVentMessage:
		c.applyVent(call.VentID, true)
	case *protocol.ExitVentMessage:
		c.applyVent(call.VentID, false)
	}
}

func (c *PlayerPhysics) applyVent(ventID uint32, enter bool) {
	if enter {
		c.VentID = int64(ventID)
	} else {
		c.VentID = -1
	}
	p, _ := c.Owner().(*PlayerData)
	c.room.emit(PlayerVentEvent{Player: p, VentID: ventID, Enter: enter})
}

// EnterVent and ExitVent are owner only.
func (c *PlayerPhysics) EnterVent(ventID uint32) {
	if !c.authoritative() {
		return
	}
	c.applyVent(ventID, true)
	c.rpc(&protocol.EnterVentMessage{VentID: ventID})
}

func (c *PlayerPhysics) ExitVent(ventID uint32) {
	if !c.authoritative() {
		return
	}
	c.applyVent(ventID, false)
	c.rpc(&protocol.ExitVentMessage{VentID: ventID})
}
