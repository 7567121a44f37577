package systems

import (
	"slices"
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// how long a closed door stays closed
const doorCloseTime = 10 * time.Second

// skeldDoorsByRoom maps a room to the doors that close with it.
var skeldDoorsByRoom = map[protocol.SystemType][]int{
	protocol.SystemCafeteria:   {0, 3, 8},
	protocol.SystemStorage:     {1, 7, 12},
	protocol.SystemUpperEngine: {2, 5},
	protocol.SystemLowerEngine: {4, 11},
	protocol.SystemSecurity:    {6},
	protocol.SystemElectrical:  {9},
	protocol.SystemMedBay:      {10},
}

const skeldDoorCount = 13

type door struct {
	Open   bool
	closed time.Duration
}

// AutoDoors are doors that reopen on their own. Besides the bit in the
// ship's mask they keep a mask of their own: an update carries only the
// doors that changed.
type AutoDoors struct {
	base
	Doors     []door
	byRoom    map[protocol.SystemType][]int
	doorDirty uint32
}

func NewSkeldDoors(ship Ship, t protocol.SystemType) System {
	s := &AutoDoors{
		base:   base{ship: ship, typ: t},
		Doors:  make([]door, skeldDoorCount),
		byRoom: skeldDoorsByRoom,
	}
	for i := range s.Doors {
		s.Doors[i].Open = true
	}
	return s
}

func (s *AutoDoors) setDoor(i int, open bool) {
	if s.Doors[i].Open == open {
		return
	}
	s.Doors[i].Open = open
	s.doorDirty |= 1 << i
	s.markDirty()
}

func (s *AutoDoors) resetDelta() { s.doorDirty = 0 }

func (s *AutoDoors) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *AutoDoors) Write(w *hazel.Writer, spawn bool) {
	if spawn {
		for _, d := range s.Doors {
			w.Bool(d.Open)
		}
		return
	}

	w.Upacked(s.doorDirty)
	for i, d := range s.Doors {
		if s.doorDirty&(1<<i) != 0 {
			w.Bool(d.Open)
		}
	}
	s.doorDirty = 0
}

func (s *AutoDoors) Read(r *hazel.Reader, spawn bool) {
	if spawn {
		for i := range s.Doors {
			s.Doors[i].Open = r.Bool()
		}
		return
	}

	mask := r.Upacked()
	for i := range s.Doors {
		if mask&(1<<i) != 0 {
			s.Doors[i].Open = r.Bool()
		}
	}
}

// CloseDoorsOfType closes every door of room.
func (s *AutoDoors) CloseDoorsOfType(room protocol.SystemType) {
	doors := s.byRoom[room]
	if len(doors) == 0 {
		return
	}

	for _, i := range doors {
		s.setDoor(i, false)
		s.Doors[i].closed = 0
	}
	s.ship.Emit(DoorsEvent{Doors: slices.Clone(doors), Closed: true})
}

// HandleRepair opens the door whose id is in the low five bits.
func (s *AutoDoors) HandleRepair(_ uint8, amount uint8) {
	i := int(amount & 0x1f)
	if i >= len(s.Doors) || s.Doors[i].Open {
		return
	}
	s.setDoor(i, true)
	s.ship.Emit(DoorsEvent{Doors: []int{i}})
}

func (s *AutoDoors) Tick(dt time.Duration) {
	var opened []int
	for i := range s.Doors {
		if s.Doors[i].Open {
			continue
		}
		s.Doors[i].closed += dt
		if s.Doors[i].closed >= doorCloseTime {
			s.setDoor(i, true)
			opened = append(opened, i)
		}
	}
	if len(opened) > 0 {
		s.ship.Emit(DoorsEvent{Doors: opened})
	}
}
