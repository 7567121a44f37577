package systems

import (
	"slices"
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

const (
	lifeSuppCountdown = 30
	lifeSuppIdle      = 10000
)

const LifeSuppCompleteConsole uint8 = 0x40

// LifeSupp runs out of oxygen unless both consoles get their code entered.
type LifeSupp struct {
	base
	Countdown float32
	Completed []uint32
}

func NewLifeSupp(ship Ship, t protocol.SystemType) System {
	return &LifeSupp{
		base:      base{ship: ship, typ: t},
		Countdown: lifeSuppIdle,
	}
}

func (s *LifeSupp) Sabotaged() bool {
	return s.Countdown < lifeSuppIdle
}

func (s *LifeSupp) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *LifeSupp) Write(w *hazel.Writer, _ bool) {
	w.Float32(s.Countdown)
	w.Upacked(uint32(len(s.Completed)))
	for _, id := range s.Completed {
		w.Upacked(id)
	}
}

func (s *LifeSupp) Read(r *hazel.Reader, _ bool) {
	s.Countdown = r.Float32()
	n := int(r.Upacked())
	s.Completed = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		s.Completed = append(s.Completed, r.Upacked())
	}
}

func (s *LifeSupp) HandleRepair(playerID uint8, amount uint8) {
	switch {
	case amount == RepairSabotage:
		if s.Sabotaged() {
			return
		}
		s.Countdown = lifeSuppCountdown
		s.Completed = nil
		s.markDirty()
		s.ship.Emit(SabotageEvent{System: s.typ})
	case amount == RepairReset:
		if !s.Sabotaged() {
			return
		}
		s.Countdown = lifeSuppIdle
		s.Completed = nil
		s.markDirty()
		s.ship.Emit(RepairEvent{System: s.typ, PlayerID: playerID})
	case amount&LifeSuppCompleteConsole != 0:
		if !s.Sabotaged() {
			return
		}
		console := uint32(amount & 3)
		if slices.Contains(s.Completed, console) {
			return
		}
		s.Completed = append(s.Completed, console)
		s.markDirty()
		if len(s.Completed) >= 2 {
			s.Countdown = lifeSuppIdle
			s.Completed = nil
			s.ship.Emit(RepairEvent{System: s.typ, PlayerID: playerID})
		}
	}
}

func (s *LifeSupp) Tick(dt time.Duration) {
	if !s.Sabotaged() || s.Countdown <= 0 {
		return
	}

	before := s.Countdown
	s.Countdown -= seconds(dt)
	if s.Countdown <= 0 {
		s.Countdown = 0
		s.markDirty()
		s.ship.Emit(CriticalEvent{System: s.typ})
		return
	}
	// clients count down on their own, resync every five seconds
	if int(before)/5 != int(s.Countdown)/5 {
		s.markDirty()
	}
}
