package room

import (
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// CustomNetworkTransform is a player's position. Updates carry a sequence
// number; anything not newer than what was applied is dropped, so reordered
// or repeated datagrams cannot move a player back.
type CustomNetworkTransform struct {
	Networkable
	Seq      uint16
	Position hazel.Vector2
	Velocity hazel.Vector2
}

func newCustomNetworkTransform(n Networkable) Component {
	return &CustomNetworkTransform{Networkable: n}
}

func (c *CustomNetworkTransform) Classname() string { return "CustomNetworkTransform" }

// newer reports whether seq comes after cur, allowing for wrap around.
func newer(seq, cur uint16) bool {
	return seq != cur && seq-cur < 1<<15
}

func (c *CustomNetworkTransform) Serialize(w *hazel.Writer, _ bool) bool {
	w.Uint16(c.Seq)
	w.Vector2(c.Position)
	w.Vector2(c.Velocity)
	c.dirtyBit = 0
	return true
}

func (c *CustomNetworkTransform) Deserialize(r *hazel.Reader, spawn bool) {
	seq := r.Uint16()
	position := r.Vector2()
	velocity := r.Vector2()
	if r.Err() != nil {
		return
	}
	if !spawn && !newer(seq, c.Seq) {
		return
	}

	c.Seq = seq
	c.Position = position
	c.Velocity = velocity
	if !spawn {
		p, _ := c.Owner().(*PlayerData)
		c.room.emit(PlayerMoveEvent{Player: p, Position: position, Velocity: velocity})
	}
}

func (c *CustomNetworkTransform) HandleRPC(call protocol.Message) {
	if call, ok := call.(*protocol.SnapToMessage); ok {
		c.applySnap(call.Position, call.Seq)
	}
}

func (c *CustomNetworkTransform) applySnap(position hazel.Vector2, seq uint16) {
	if !newer(seq, c.Seq) {
		return
	}
	c.Seq = seq
	c.Position = position
	c.Velocity = hazel.Vector2{}
	p, _ := c.Owner().(*PlayerData)
	c.room.emit(PlayerMoveEvent{Player: p, Position: position, Snap: true})
}

// Move records a new position for the next flush. Owner only.
func (c *CustomNetworkTransform) Move(position, velocity hazel.Vector2) {
	if !c.authoritative() {
		return
	}
	c.Seq++
	c.Position = position
	c.Velocity = velocity
	c.dirtyBit = 1
}

// SnapTo teleports the player. The owner or the host may do it.
func (c *CustomNetworkTransform) SnapTo(position hazel.Vector2) {
	if !c.authoritative() && !c.room.IsHost() {
		return
	}
	seq := c.Seq + 1
	c.applySnap(position, seq)
	c.rpc(&protocol.SnapToMessage{Position: position, Seq: seq})
}
