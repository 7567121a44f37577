package systems

import (
	"slices"
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

const (
	MedScanAdd    uint8 = 0x80
	MedScanRemove uint8 = 0x40
)

// MedScan is the queue of players waiting for the scanner.
type MedScan struct {
	base
	Queue []uint8
}

func NewMedScan(ship Ship, t protocol.SystemType) System {
	return &MedScan{base: base{ship: ship, typ: t}}
}

func (s *MedScan) Serialize(w *hazel.Writer, _ protocol.Direction) { s.Write(w, true) }

func (s *MedScan) Write(w *hazel.Writer, _ bool) {
	w.BytesAndSize(s.Queue)
}

func (s *MedScan) Read(r *hazel.Reader, _ bool) {
	s.Queue = append([]uint8(nil), r.BytesAndSize()...)
}

func (s *MedScan) HandleRepair(playerID uint8, amount uint8) {
	switch {
	case amount&MedScanAdd != 0:
		if slices.Contains(s.Queue, playerID) {
			return
		}
		s.Queue = append(s.Queue, playerID)
		s.markDirty()
	case amount&MedScanRemove != 0:
		i := slices.Index(s.Queue, playerID)
		if i < 0 {
			return
		}
		s.Queue = slices.Delete(s.Queue, i, i+1)
		s.markDirty()
	}
}

func (s *MedScan) Tick(time.Duration) {}
