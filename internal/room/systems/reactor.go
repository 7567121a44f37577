package systems

import (
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

const (
	reactorCountdown = 30
	// countdown value of a reactor that is not sabotaged
	reactorIdle = 10000
)

// reactor repair amounts
const (
	ReactorAddConsole    uint8 = 0x40
	ReactorRemoveConsole uint8 = 0x20
)

type consolePair struct {
	PlayerID uint8
	Console  uint8
}

// Reactor melts down unless two players hold the two hand scanners at once.
type Reactor struct {
	base
	Countdown float32
	Consoles  []consolePair
}

func NewReactor(ship Ship, t protocol.SystemType) System {
	return &Reactor{
		base:      base{ship: ship, typ: t},
		Countdown: reactorIdle,
	}
}

func (s *Reactor) Sabotaged() bool {
	return s.Countdown < reactorIdle
}

func (s *Reactor) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *Reactor) Write(w *hazel.Writer, _ bool) {
	w.Float32(s.Countdown)
	w.Upacked(uint32(len(s.Consoles)))
	for _, c := range s.Consoles {
		w.Uint8(c.PlayerID)
		w.Uint8(c.Console)
	}
}

func (s *Reactor) Read(r *hazel.Reader, _ bool) {
	s.Countdown = r.Float32()
	n := int(r.Upacked())
	s.Consoles = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		s.Consoles = append(s.Consoles, consolePair{PlayerID: r.Uint8(), Console: r.Uint8()})
	}
}

func (s *Reactor) fix(playerID uint8) {
	s.Countdown = reactorIdle
	s.Consoles = nil
	s.markDirty()
	s.ship.Emit(RepairEvent{System: s.typ, PlayerID: playerID})
}

func (s *Reactor) HandleRepair(playerID uint8, amount uint8) {
	switch {
	case amount == RepairSabotage:
		if s.Sabotaged() {
			return
		}
		s.Countdown = reactorCountdown
		s.Consoles = nil
		s.markDirty()
		s.ship.Emit(SabotageEvent{System: s.typ})
	case amount == RepairReset:
		if s.Sabotaged() {
			s.fix(playerID)
		}
	case amount&ReactorAddConsole != 0:
		if !s.Sabotaged() {
			return
		}
		pair := consolePair{PlayerID: playerID, Console: amount & 3}
		for _, c := range s.Consoles {
			if c == pair {
				return
			}
		}
		s.Consoles = append(s.Consoles, pair)
		s.markDirty()

		consoles := make(map[uint8]bool)
		for _, c := range s.Consoles {
			consoles[c.Console] = true
		}
		if len(consoles) >= 2 {
			s.fix(playerID)
		}
	case amount&ReactorRemoveConsole != 0:
		console := amount & 3
		for i, c := range s.Consoles {
			if c.PlayerID == playerID && c.Console == console {
				s.Consoles = append(s.Consoles[:i], s.Consoles[i+1:]...)
				s.markDirty()
				return
			}
		}
	}
}

func (s *Reactor) Tick(dt time.Duration) {
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
