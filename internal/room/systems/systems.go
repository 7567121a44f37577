// Package systems holds the ship systems: small state machines owned by a
// ship status component. A system has no dirty flag of its own. Its bit
// (1 << type) lives in the parent's mask; MarkDirty sets it and the parent
// decides what to serialize from the mask.
package systems

import (
	"fmt"
	"time"

	"github.com/blukai/skeldparty/internal/debug"
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// Repair amounts shared by the sabotageable systems.
const (
	RepairSabotage uint8 = 0x80
	RepairReset    uint8 = 0x10
)

// Ship is the aggregate a system reports to.
type Ship interface {
	DirtyBit() uint32
	SetDirtyBit(bit uint32)
	System(t protocol.SystemType) System
	Emit(event any)
}

func bit(t protocol.SystemType) uint32 {
	debug.Assertf(t < 32, "system type %d does not fit a dirty mask", t)
	return 1 << t
}

func MarkDirty(ship Ship, t protocol.SystemType) {
	ship.SetDirtyBit(ship.DirtyBit() | bit(t))
}

func IsDirty(ship Ship, t protocol.SystemType) bool {
	return ship.DirtyBit()&bit(t) != 0
}

// System is one ship system. Write and Read take spawn=true for a full
// snapshot and spawn=false for an update. As a protocol.Message a system
// serializes its full snapshot under the system namespace.
type System interface {
	protocol.Message
	Type() protocol.SystemType
	Write(w *hazel.Writer, spawn bool)
	Read(r *hazel.Reader, spawn bool)
	HandleRepair(playerID uint8, amount uint8)
	Tick(dt time.Duration)
}

// Sabotageable systems report whether they are currently broken.
type Sabotageable interface {
	System
	Sabotaged() bool
}

// base carries what every system shares.
type base struct {
	ship Ship
	typ  protocol.SystemType
}

func (b *base) Type() protocol.SystemType { return b.typ }
func (b *base) Tag() protocol.Tag         { return protocol.SystemTag(b.typ) }
func (b *base) markDirty()                { MarkDirty(b.ship, b.typ) }

// Events

type SabotageEvent struct {
	System protocol.SystemType
}

type RepairEvent struct {
	System   protocol.SystemType
	PlayerID uint8
}

// CriticalEvent fires when a critical sabotage (reactor, oxygen) runs out of
// time. What it means for the game is up to the host.
type CriticalEvent struct {
	System protocol.SystemType
}

type DoorsEvent struct {
	Doors  []int
	Closed bool
}

// Constructor builds a system attached to ship.
type Constructor func(ship Ship, t protocol.SystemType) System

// Entry is one row of a ship's system table.
type Entry struct {
	Type protocol.SystemType
	New  Constructor
}

// Table is a ship's ordered system list. The order is the wire order of the
// ship status data and must match on both ends.
type Table []Entry

// Build instantiates every system of the table.
func (t Table) Build(ship Ship) []System {
	out := make([]System, 0, len(t))
	for _, e := range t {
		out = append(out, e.New(ship, e.Type))
	}
	return out
}

var SkeldTable = Table{
	{protocol.SystemReactor, NewReactor},
	{protocol.SystemElectrical, NewSwitch},
	{protocol.SystemO2, NewLifeSupp},
	{protocol.SystemMedBay, NewMedScan},
	{protocol.SystemSecurity, NewSecurityCamera},
	{protocol.SystemComms, NewHudOverride},
	{protocol.SystemDoors, NewSkeldDoors},
	{protocol.SystemSabotage, NewSabotage},
}

var MiraTable = Table{
	{protocol.SystemReactor, NewReactor},
	{protocol.SystemElectrical, NewSwitch},
	{protocol.SystemO2, NewLifeSupp},
	{protocol.SystemMedBay, NewMedScan},
	{protocol.SystemComms, NewHqHud},
	{protocol.SystemSabotage, NewSabotage},
	{protocol.SystemDecontamination, NewDecon},
}

// deltaResetter is a system that tracks which of its parts changed, beyond
// the ship's bit for it.
type deltaResetter interface {
	resetDelta()
}

// WriteAll writes every system in order (spawn) or the mask followed by the
// dirty systems (update). The mask is rebuilt from the systems present, and
// reset afterwards, along with whatever the systems track themselves.
func WriteAll(w *hazel.Writer, ship Ship, list []System, spawn bool) bool {
	if spawn {
		for _, s := range list {
			s.Write(w, true)
			if d, ok := s.(deltaResetter); ok {
				d.resetDelta()
			}
		}
		ship.SetDirtyBit(0)
		return true
	}

	var mask uint32
	for _, s := range list {
		if IsDirty(ship, s.Type()) {
			mask |= bit(s.Type())
		}
	}
	ship.SetDirtyBit(0)
	if mask == 0 {
		return false
	}

	w.Upacked(mask)
	for _, s := range list {
		if mask&bit(s.Type()) != 0 {
			s.Write(w, false)
		}
	}
	return true
}

// Snapshot writes every system in spawn form and leaves all pending changes
// in place, for a replay to one peer while the rest still wait for the
// update.
func Snapshot(w *hazel.Writer, list []System) {
	for _, s := range list {
		s.Write(w, true)
	}
}

// ReadAll mirrors WriteAll.
func ReadAll(r *hazel.Reader, list []System, spawn bool) {
	if spawn {
		for _, s := range list {
			s.Read(r, true)
		}
		return
	}

	mask := r.Upacked()
	for _, s := range list {
		if r.Err() != nil {
			return
		}
		if mask&bit(s.Type()) != 0 {
			s.Read(r, false)
		}
	}
}

type detachedShip struct {
	dirty uint32
}

func (d *detachedShip) DirtyBit() uint32                  { return d.dirty }
func (d *detachedShip) SetDirtyBit(bit uint32)            { d.dirty = bit }
func (d *detachedShip) System(protocol.SystemType) System { return nil }
func (d *detachedShip) Emit(any)                          {}

// Register adds a system-namespace codec for every known system. Decoded
// systems are detached from any ship. Where two ships put different systems
// under one type (comms), the Skeld one wins.
func Register(reg *protocol.Registry) {
	seen := make(map[protocol.SystemType]bool)
	for _, table := range []Table{SkeldTable, MiraTable} {
		for _, e := range table {
			if seen[e.Type] {
				continue
			}
			seen[e.Type] = true

			e := e
			reg.Register(protocol.SystemTag(e.Type), func(r *hazel.Reader, _ protocol.Direction, _ *protocol.Registry) (protocol.Message, error) {
				s := e.New(&detachedShip{}, e.Type)
				s.Read(r, true)
				if r.Err() != nil {
					return nil, fmt.Errorf("could not read %s: %w", e.Type, r.Err())
				}
				return s, nil
			})
		}
	}
}

func seconds(dt time.Duration) float32 {
	return float32(dt.Seconds())
}
