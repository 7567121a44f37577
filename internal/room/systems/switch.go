package systems

import (
	"math/rand/v2"
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

const switchCount = 5

// brightness change per second
const switchFade = 255

// Switch is electrical: five switches that have to match the expected
// pattern. Value is the light level clients render.
type Switch struct {
	base
	Expected uint8
	Actual   uint8
	Value    uint8
}

func NewSwitch(ship Ship, t protocol.SystemType) System {
	return &Switch{
		base:  base{ship: ship, typ: t},
		Value: 255,
	}
}

func (s *Switch) Sabotaged() bool {
	return s.Expected != s.Actual
}

func (s *Switch) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *Switch) Write(w *hazel.Writer, _ bool) {
	w.Uint8(s.Expected)
	w.Uint8(s.Actual)
	w.Uint8(s.Value)
}

func (s *Switch) Read(r *hazel.Reader, _ bool) {
	s.Expected = r.Uint8()
	s.Actual = r.Uint8()
	s.Value = r.Uint8()
}

func (s *Switch) HandleRepair(playerID uint8, amount uint8) {
	if amount&RepairSabotage != 0 {
		if s.Sabotaged() {
			return
		}
		flip := uint8(1 + rand.IntN(1<<switchCount-1))
		s.Expected = s.Actual ^ flip
		s.markDirty()
		s.ship.Emit(SabotageEvent{System: s.typ})
		return
	}

	if amount >= switchCount {
		return
	}
	wasSabotaged := s.Sabotaged()
	s.Actual ^= 1 << amount
	s.markDirty()
	if wasSabotaged && !s.Sabotaged() {
		s.ship.Emit(RepairEvent{System: s.typ, PlayerID: playerID})
	}
}

func (s *Switch) Tick(dt time.Duration) {
	step := int(seconds(dt) * switchFade)
	if step < 1 {
		step = 1
	}

	v := int(s.Value)
	if s.Sabotaged() {
		v = max(v-step, 0)
	} else {
		v = min(v+step, 255)
	}
	if uint8(v) == s.Value {
		return
	}
	s.Value = uint8(v)
	if s.Value == 0 || s.Value == 255 {
		s.markDirty()
	}
}
