package scheduler

/*
 * mac68k - Scheduler checkpoint support
 *
 * The record format matches the versioned, explicit-offset, big-endian
 * encoding github.com/user-none/go-chip-m68k uses for its own CPU state.
 */

import (
	"encoding/binary"
	"fmt"
)

const schedSerializeVersion = 1

// pendingEvent is a name-resolved-later record read back from a
// checkpoint: it is not yet a live event until Start re-resolves its
// (source, name) pair against the registry built up as devices
// re-construct themselves.
type pendingEvent struct {
	when   uint64
	source string
	name   string
	data   uint64
}

// Serialize writes the scheduler's POD prefix followed by the pending
// event list.11 point 3.
func (s *Scheduler) Serialize() []byte {
	buf := make([]byte, 0, 64+len(s.queue)*32)
	var hdr [1 + 8 + 8 + 8 + 1]byte
	hdr[0] = schedSerializeVersion
	binary.BigEndian.PutUint64(hdr[1:], s.Cycles())
	binary.BigEndian.PutUint64(hdr[9:], s.instrs)
	binary.BigEndian.PutUint64(hdr[17:], s.seq)
	hdr[25] = byte(s.mode)
	buf = append(buf, hdr[:]...)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(s.queue)))
	buf = append(buf, countBuf[:]...)

	for _, e := range s.queue {
		buf = appendEventRecord(buf, e.when, e.source, e.name, e.data)
	}
	return buf
}

func appendEventRecord(buf []byte, when uint64, source, name string, data uint64) []byte {
	var fixed [24]byte
	binary.BigEndian.PutUint64(fixed[0:], when)
	binary.BigEndian.PutUint64(fixed[8:], data)
	binary.BigEndian.PutUint16(fixed[16:], uint16(len(source)))
	binary.BigEndian.PutUint16(fixed[18:], uint16(len(name)))
	buf = append(buf, fixed[:20]...)
	buf = append(buf, source...)
	buf = append(buf, name...)
	return buf
}

// PendingRestore holds a scheduler that has loaded its POD prefix and
// parked unresolved events, waiting for Start.
type PendingRestore struct {
	cycles uint64
	instrs uint64
	seq    uint64
	mode   Mode
	events []pendingEvent
}

// Deserialize parses a checkpoint produced by Serialize. It does not
// touch the live scheduler: call Start with the result once every device
// has re-registered its event types.
func Deserialize(buf []byte) (*PendingRestore, error) {
	if len(buf) < 26 {
		return nil, fmt.Errorf("scheduler: checkpoint record too short (%d bytes)", len(buf))
	}
	if buf[0] != schedSerializeVersion {
		return nil, fmt.Errorf("scheduler: unsupported checkpoint version %d", buf[0])
	}
	pr := &PendingRestore{
		cycles: binary.BigEndian.Uint64(buf[1:]),
		instrs: binary.BigEndian.Uint64(buf[9:]),
		seq:    binary.BigEndian.Uint64(buf[17:]),
		mode:   Mode(buf[25]),
	}
	off := 26
	if off+4 > len(buf) {
		return nil, fmt.Errorf("scheduler: checkpoint missing event count")
	}
	count := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	for i := 0; i < count; i++ {
		if off+20 > len(buf) {
			return nil, fmt.Errorf("scheduler: checkpoint truncated at event %d", i)
		}
		when := binary.BigEndian.Uint64(buf[off:])
		data := binary.BigEndian.Uint64(buf[off+8:])
		srcLen := int(binary.BigEndian.Uint16(buf[off+16:]))
		nameLen := int(binary.BigEndian.Uint16(buf[off+18:]))
		off += 20
		if off+srcLen+nameLen > len(buf) {
			return nil, fmt.Errorf("scheduler: checkpoint truncated at event %d name", i)
		}
		source := string(buf[off : off+srcLen])
		off += srcLen
		name := string(buf[off : off+nameLen])
		off += nameLen
		pr.events = append(pr.events, pendingEvent{when: when, source: source, name: name, data: data})
	}
	return pr, nil
}

// Start resolves a PendingRestore's events against the scheduler's current
// registry and installs the POD state. Every device must have already
// called RegisterEventType for every (source, name) pair the checkpoint
// names, or Start returns an error naming the unresolved record.
func (s *Scheduler) Start(pr *PendingRestore) error {
	s.now = pr.cycles
	s.instrs = pr.instrs
	s.seq = pr.seq
	s.mode = pr.mode
	s.queue = s.queue[:0]

	for _, pe := range pr.events {
		cb, ok := s.registry[eventKey{pe.source, pe.name}]
		if !ok {
			return fmt.Errorf("scheduler: unresolved checkpoint event (%s,%s)", pe.source, pe.name)
		}
		e := &event{when: pe.when, seq: s.seq, source: pe.source, name: pe.name, data: pe.data, cb: cb}
		s.seq++
		s.queue = append(s.queue, e)
	}
	// Re-heapify rather than re-Push one at a time: order among equal
	// timestamps need only match modulo insertion order.
	fixHeap(&s.queue)
	return nil
}

func fixHeap(h *eventHeap) {
	n := len(*h)
	for i := n/2 - 1; i >= 0; i-- {
		siftDown(h, i, n)
	}
}

func siftDown(h *eventHeap, i, n int) {
	for {
		l, r, smallest := 2*i+1, 2*i+2, i
		if l < n && (*h).Less(l, smallest) {
			smallest = l
		}
		if r < n && (*h).Less(r, smallest) {
			smallest = r
		}
		if smallest == i {
			return
		}
		(*h).Swap(i, smallest)
		i = smallest
	}
}
