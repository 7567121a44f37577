package transport

import "time"

// WindowSize is the number of nonces an acknowledgement can describe.
const WindowSize = 8

type sentPacket struct {
	nonce     uint16
	acked     bool
	resend    bool
	data      []byte
	sentAt    time.Time
	attempts  int
	populated bool
}

// SentWindow tracks the most recent outbound nonces. Pushing a ninth evicts
// the oldest, which from then on can be neither acknowledged nor resent.
type SentWindow struct {
	ring [WindowSize]sentPacket
	head int
}

func (sw *SentWindow) push(p sentPacket) {
	p.populated = true
	sw.ring[sw.head] = p
	sw.head = (sw.head + 1) % WindowSize
}

// Push tracks nonce as sent and unacknowledged.
func (sw *SentWindow) Push(nonce uint16) {
	sw.push(sentPacket{nonce: nonce})
}

func (sw *SentWindow) lookup(nonce uint16) *sentPacket {
	for i := range sw.ring {
		if sw.ring[i].populated && sw.ring[i].nonce == nonce {
			return &sw.ring[i]
		}
	}
	return nil
}

// Lookup reports whether nonce is tracked and whether it was acknowledged.
func (sw *SentWindow) Lookup(nonce uint16) (acked, ok bool) {
	p := sw.lookup(nonce)
	if p == nil {
		return false, false
	}
	return p.acked, true
}

// Ack marks nonce acknowledged. It reports whether this changed anything.
func (sw *SentWindow) Ack(nonce uint16) bool {
	p := sw.lookup(nonce)
	if p == nil || p.acked {
		return false
	}
	p.acked = true
	p.data = nil
	return true
}

// MissingMask describes the tracked nonces up to and including latest: bit i
// is set when latest-i is tracked and still unacknowledged.
func (sw *SentWindow) MissingMask(latest uint16) uint8 {
	var mask uint8
	for i := 0; i < WindowSize; i++ {
		p := sw.lookup(latest - uint16(i))
		if p != nil && !p.acked {
			mask |= 1 << i
		}
	}
	return mask
}

// RecvWindow remembers the most recent inbound nonces for duplicate detection
// and for building acknowledgements.
type RecvWindow struct {
	ring    [WindowSize]uint16
	filled  int
	head    int
	first   uint16
	started bool
}

func (rw *RecvWindow) Has(nonce uint16) bool {
	for i := 0; i < rw.filled; i++ {
		if rw.ring[i] == nonce {
			return true
		}
	}
	return false
}

// Push records nonce. It returns false when nonce was already recorded.
func (rw *RecvWindow) Push(nonce uint16) (fresh bool) {
	if rw.Has(nonce) {
		return false
	}
	if !rw.started {
		rw.started = true
		rw.first = nonce
	}

	rw.ring[rw.head] = nonce
	rw.head = (rw.head + 1) % WindowSize
	if rw.filled < WindowSize {
		rw.filled++
	}
	return true
}

// MissingMask builds the mask acknowledging nonce: bit i is set when
// nonce-i was not received. Offsets before the first nonce ever received are
// never reported missing.
func (rw *RecvWindow) MissingMask(nonce uint16) uint8 {
	if !rw.started {
		return 0
	}

	distance := int(nonce - rw.first)
	var mask uint8
	for i := 1; i < WindowSize && i <= distance; i++ {
		prev := nonce - uint16(i)
		// zero is skipped when the nonce wraps
		if prev != 0 && !rw.Has(prev) {
			mask |= 1 << i
		}
	}
	return mask
}
