package room

import (
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// Component is one networked object. Concrete components embed Networkable.
type Component interface {
	NetID() uint32
	OwnerID() int32
	SpawnType() protocol.SpawnType
	Classname() string

	// Serialize writes the full state (spawn) or what changed since the
	// last write. It reports whether anything was written, and clears the
	// dirty state either way.
	Serialize(w *hazel.Writer, spawn bool) bool
	Deserialize(r *hazel.Reader, spawn bool)

	// HandleRPC applies an inbound call. Calls a component does not know
	// are ignored.
	HandleRPC(call protocol.Message)
	FixedUpdate(dt time.Duration)

	networkable() *Networkable
}

// Networkable is the part every component shares.
type Networkable struct {
	room      *Room
	netID     uint32
	ownerID   int32
	spawnType protocol.SpawnType
	slot      int
	dirtyBit  uint32
}

func (n *Networkable) NetID() uint32                 { return n.netID }
func (n *Networkable) OwnerID() int32                { return n.ownerID }
func (n *Networkable) SpawnType() protocol.SpawnType { return n.spawnType }
func (n *Networkable) Room() *Room                   { return n.room }
func (n *Networkable) DirtyBit() uint32              { return n.dirtyBit }
func (n *Networkable) SetDirtyBit(bit uint32)        { n.dirtyBit = bit }
func (n *Networkable) networkable() *Networkable     { return n }

// Owner resolves the owner on every call; it is nil once the owner is gone.
func (n *Networkable) Owner() Heritable {
	return n.room.objects[n.ownerID]
}

// Alive reports whether the component is still spawned.
func (n *Networkable) Alive() bool {
	return n.room.netobjects[n.netID] != nil
}

// authoritative reports whether this peer decides the component's state.
func (n *Networkable) authoritative() bool {
	return n.room.IsAuthority(n.ownerID)
}

// rpc enqueues call for everyone else. Callers have already applied it.
func (n *Networkable) rpc(call protocol.Message) {
	n.room.Enqueue(&protocol.RpcMessage{NetID: n.netID, Call: call})
}

func (n *Networkable) FixedUpdate(time.Duration) {}
