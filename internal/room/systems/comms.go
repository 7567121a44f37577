package systems

import (
	"slices"
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// HudOverride is Skeld's comms: one flag, broken or not.
type HudOverride struct {
	base
	Active bool
}

func NewHudOverride(ship Ship, t protocol.SystemType) System {
	return &HudOverride{base: base{ship: ship, typ: t}}
}

func (s *HudOverride) Sabotaged() bool { return s.Active }

func (s *HudOverride) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *HudOverride) Write(w *hazel.Writer, _ bool) {
	w.Bool(s.Active)
}

func (s *HudOverride) Read(r *hazel.Reader, _ bool) {
	s.Active = r.Bool()
}

func (s *HudOverride) HandleRepair(playerID uint8, amount uint8) {
	if amount == RepairSabotage {
		if s.Active {
			return
		}
		s.Active = true
		s.markDirty()
		s.ship.Emit(SabotageEvent{System: s.typ})
		return
	}

	if s.Active {
		s.Active = false
		s.markDirty()
		s.ship.Emit(RepairEvent{System: s.typ, PlayerID: playerID})
	}
}

func (s *HudOverride) Tick(time.Duration) {}

// HqHud repair amounts. The low nibble is the console.
const (
	HqHudStart    uint8 = 0x40
	HqHudStop     uint8 = 0x20
	HqHudComplete uint8 = 0x10
)

// HqHud is Mira's comms: two consoles that both need to be completed.
type HqHud struct {
	base
	Active    []consolePair
	Completed []uint8
}

func NewHqHud(ship Ship, t protocol.SystemType) System {
	return &HqHud{
		base: base{ship: ship, typ: t},
		// a working hq hud has both consoles completed
		Completed: []uint8{0, 1},
	}
}

func (s *HqHud) Sabotaged() bool {
	return len(s.Completed) < 2
}

func (s *HqHud) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *HqHud) Write(w *hazel.Writer, _ bool) {
	w.Upacked(uint32(len(s.Active)))
	for _, c := range s.Active {
		w.Uint8(c.PlayerID)
		w.Uint8(c.Console)
	}
	w.BytesAndSize(s.Completed)
}

func (s *HqHud) Read(r *hazel.Reader, _ bool) {
	n := int(r.Upacked())
	s.Active = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		s.Active = append(s.Active, consolePair{PlayerID: r.Uint8(), Console: r.Uint8()})
	}
	s.Completed = append([]uint8(nil), r.BytesAndSize()...)
}

func (s *HqHud) HandleRepair(playerID uint8, amount uint8) {
	console := amount & 0xf

	switch {
	case amount == RepairSabotage:
		if s.Sabotaged() {
			return
		}
		s.Active = nil
		s.Completed = nil
		s.markDirty()
		s.ship.Emit(SabotageEvent{System: s.typ})
	case amount&HqHudStart != 0:
		pair := consolePair{PlayerID: playerID, Console: console}
		if slices.Contains(s.Active, pair) {
			return
		}
		s.Active = append(s.Active, pair)
		s.markDirty()
	case amount&HqHudStop != 0:
		i := slices.Index(s.Active, consolePair{PlayerID: playerID, Console: console})
		if i < 0 {
			return
		}
		s.Active = slices.Delete(s.Active, i, i+1)
		s.markDirty()
	case amount&HqHudComplete != 0:
		if !s.Sabotaged() || slices.Contains(s.Completed, console) {
			return
		}
		s.Completed = append(s.Completed, console)
		s.markDirty()
		if !s.Sabotaged() {
			s.ship.Emit(RepairEvent{System: s.typ, PlayerID: playerID})
		}
	}
}

func (s *HqHud) Tick(time.Duration) {}
