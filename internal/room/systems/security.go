package systems

import (
	"slices"
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// SecurityCamera tracks who is watching the cameras. Amount 1 starts
// watching, anything else stops.
type SecurityCamera struct {
	base
	Watching []uint8
}

func NewSecurityCamera(ship Ship, t protocol.SystemType) System {
	return &SecurityCamera{base: base{ship: ship, typ: t}}
}

func (s *SecurityCamera) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *SecurityCamera) Write(w *hazel.Writer, _ bool) {
	w.BytesAndSize(s.Watching)
}

func (s *SecurityCamera) Read(r *hazel.Reader, _ bool) {
	s.Watching = append([]uint8(nil), r.BytesAndSize()...)
}

func (s *SecurityCamera) HandleRepair(playerID uint8, amount uint8) {
	i := slices.Index(s.Watching, playerID)
	if amount == 1 {
		if i >= 0 {
			return
		}
		s.Watching = append(s.Watching, playerID)
	} else {
		if i < 0 {
			return
		}
		s.Watching = slices.Delete(s.Watching, i, i+1)
	}
	s.markDirty()
}

func (s *SecurityCamera) Tick(time.Duration) {}
