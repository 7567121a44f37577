package systems

import (
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

const sabotageCooldown = 30

// Sabotage gates the other sabotageable systems behind a shared cooldown.
// The repair amount is the type of the system to break.
type Sabotage struct {
	base
	Cooldown float32
}

func NewSabotage(ship Ship, t protocol.SystemType) System {
	return &Sabotage{base: base{ship: ship, typ: t}}
}

func (s *Sabotage) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *Sabotage) Write(w *hazel.Writer, _ bool) {
	w.Float32(s.Cooldown)
}

func (s *Sabotage) Read(r *hazel.Reader, _ bool) {
	s.Cooldown = r.Float32()
}

func (s *Sabotage) HandleRepair(playerID uint8, amount uint8) {
	if s.Cooldown > 0 {
		return
	}

	target, ok := s.ship.System(protocol.SystemType(amount)).(Sabotageable)
	if !ok || target.Sabotaged() {
		return
	}
	target.HandleRepair(playerID, RepairSabotage)
	s.Cooldown = sabotageCooldown
	s.markDirty()
}

func (s *Sabotage) Tick(dt time.Duration) {
	if s.Cooldown <= 0 {
		return
	}
	s.Cooldown -= seconds(dt)
	if s.Cooldown <= 0 {
		s.Cooldown = 0
		s.markDirty()
	}
}
