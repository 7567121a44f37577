package room

import (
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/room/systems"
)

// ShipStatus owns a map's systems. Its dirty mask has one bit per system
// type.
type ShipStatus struct {
	Networkable
	classname string
	systems   []systems.System
}

func newShipStatus(n Networkable, classname string, table systems.Table) *ShipStatus {
	c := &ShipStatus{Networkable: n, classname: classname}
	c.systems = table.Build(c)
	return c
}

func newSkeldShipStatus(n Networkable) Component {
	return newShipStatus(n, "ShipStatus", systems.SkeldTable)
}

func newMiraShipStatus(n Networkable) Component {
	return newShipStatus(n, "MiraShipStatus", systems.MiraTable)
}

func newDleksShipStatus(n Networkable) Component {
	return newShipStatus(n, "DleksShipStatus", systems.SkeldTable)
}

func (c *ShipStatus) Classname() string { return c.classname }

// Systems returns the systems in wire order.
func (c *ShipStatus) Systems() []systems.System { return c.systems }

func (c *ShipStatus) System(t protocol.SystemType) systems.System {
	for _, s := range c.systems {
		if s.Type() == t {
			return s
		}
	}
	return nil
}

func (c *ShipStatus) Emit(event any) {
	c.room.emit(ShipEvent{Event: event})
}

func (c *ShipStatus) Serialize(w *hazel.Writer, spawn bool) bool {
	return systems.WriteAll(w, c, c.systems, spawn)
}

func (c *ShipStatus) snapshot(w *hazel.Writer) {
	systems.Snapshot(w, c.systems)
}

func (c *ShipStatus) Deserialize(r *hazel.Reader, spawn bool) {
	systems.ReadAll(r, c.systems, spawn)
}

func (c *ShipStatus) HandleRPC(call protocol.Message) {
	if !c.room.IsHost() {
		return
	}
	switch call := call.(type) {
	case *protocol.RepairSystemMessage:
		p := c.room.PlayerByNetID(call.PlayerNetID)
		if p == nil || !p.Spawned() {
			return
		}
		c.repair(call.System, p.PlayerID(), call.Amount)
	case *protocol.CloseDoorsOfTypeMessage:
		c.closeDoors(call.System)
	}
}

func (c *ShipStatus) repair(t protocol.SystemType, playerID uint8, amount uint8) {
	if s := c.System(t); s != nil {
		s.HandleRepair(playerID, amount)
	}
}

func (c *ShipStatus) closeDoors(room protocol.SystemType) {
	if doors, ok := c.System(protocol.SystemDoors).(*systems.AutoDoors); ok {
		doors.CloseDoorsOfType(room)
	}
}

// RepairSystem acts on a system as the local player. The host applies it
// directly, everyone else asks the host.
func (c *ShipStatus) RepairSystem(t protocol.SystemType, amount uint8) {
	p := c.room.Player(c.room.selfID)
	if p == nil || p.Control() == nil {
		return
	}
	if c.room.IsHost() {
		c.repair(t, p.PlayerID(), amount)
		return
	}
	c.rpc(&protocol.RepairSystemMessage{System: t, PlayerNetID: p.Control().NetID(), Amount: amount})
}

// CloseDoorsOfType closes every door of a room.
func (c *ShipStatus) CloseDoorsOfType(room protocol.SystemType) {
	if c.room.IsHost() {
		c.closeDoors(room)
		return
	}
	c.rpc(&protocol.CloseDoorsOfTypeMessage{System: room})
}

// FixedUpdate advances the systems. Only the host runs them; everyone else
// follows its data.
func (c *ShipStatus) FixedUpdate(dt time.Duration) {
	if !c.authoritative() {
		return
	}
	for _, s := range c.systems {
		s.Tick(dt)
	}
}
