package systems

import (
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// decontamination states, a bit set
const (
	DeconIdle      uint8 = 0
	DeconEnter     uint8 = 1 << 0
	DeconClosed    uint8 = 1 << 1
	DeconExit      uint8 = 1 << 2
	DeconHeadingUp uint8 = 1 << 3
)

// seconds spent in each of enter, closed and exit
const deconStep = 3

// Decon cycles a decontamination chamber: enter, closed, exit. Repair amount
// 1 starts a cycle heading up, 2 heading down.
type Decon struct {
	base
	Timer uint8
	State uint8

	elapsed time.Duration
}

func NewDecon(ship Ship, t protocol.SystemType) System {
	return &Decon{base: base{ship: ship, typ: t}}
}

func (s *Decon) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *Decon) Write(w *hazel.Writer, _ bool) {
	w.Uint8(s.Timer)
	w.Uint8(s.State)
}

func (s *Decon) Read(r *hazel.Reader, _ bool) {
	s.Timer = r.Uint8()
	s.State = r.Uint8()
}

func (s *Decon) HandleRepair(_ uint8, amount uint8) {
	if s.State != DeconIdle {
		return
	}

	switch amount {
	case 1:
		s.State = DeconEnter | DeconHeadingUp
	case 2:
		s.State = DeconEnter
	default:
		return
	}
	s.Timer = deconStep
	s.elapsed = 0
	s.markDirty()
}

func (s *Decon) Tick(dt time.Duration) {
	if s.State == DeconIdle {
		return
	}

	s.elapsed += dt
	if s.elapsed < time.Second {
		return
	}
	s.elapsed -= time.Second

	if s.Timer > 0 {
		s.Timer--
	}
	if s.Timer == 0 {
		heading := s.State & DeconHeadingUp
		switch {
		case s.State&DeconEnter != 0:
			s.State = DeconClosed | heading
			s.Timer = deconStep
		case s.State&DeconClosed != 0:
			s.State = DeconExit | heading
			s.Timer = deconStep
		default:
			s.State = DeconIdle
		}
	}
	s.markDirty()
}
