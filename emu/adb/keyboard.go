package adb

/*
 * mac68k - ADB and pre-ADB keyboard device models
 *
 * Copyright 2024, Richard Cornwell
 */

import "github.com/paleoemu/mac68k/emu/scheduler"

// Keyboard is the SE/30 ADB keyboard device: a small scancode queue
// answered via Talk R0, with device address/handler-ID settable via
// Listen R3.
type Keyboard struct {
	addr      int
	handlerID uint8
	queue     []uint8
}

// NewKeyboard constructs an ADB keyboard at the default address (2).
func NewKeyboard() *Keyboard {
	return &Keyboard{addr: 2, handlerID: 1}
}

// KeyEvent queues a scancode; bit 7 marks key-up, matching the ADB
// register-0 convention.
func (k *Keyboard) KeyEvent(code uint8, down bool) {
	b := code &^ 0x80
	if !down {
		b |= 0x80
	}
	k.queue = append(k.queue, b)
}

// Talk implements Device.
func (k *Keyboard) Talk(register int) ([]byte, bool) {
	switch register {
	case 0:
		b0, b1 := uint8(0xFF), uint8(0xFF)
		if len(k.queue) > 0 {
			b0 = k.queue[0]
		}
		if len(k.queue) > 1 {
			b1 = k.queue[1]
		}
		n := len(k.queue)
		if n > 2 {
			n = 2
		}
		k.queue = k.queue[n:]
		return []byte{b0, b1}, true
	case 3:
		return []byte{byte(k.addr) & 0x0F, k.handlerID}, true
	}
	return nil, false
}

// Listen implements Device.
func (k *Keyboard) Listen(register int, data []byte) {
	if register == 3 && len(data) >= 2 {
		k.addr = int(data[0]) & 0x0F
		k.handlerID = data[1]
	}
}

// HasPending implements Device.
func (k *Keyboard) HasPending() bool { return len(k.queue) > 0 }

// Pre-ADB (Mac Plus) keyboard protocol commands.
const (
	legacyInquiry     = 0x10
	legacyInstant     = 0x14
	legacyModelNumber = 0x16
	legacyTest        = 0x36
)

const (
	legacyNullReply         = 0x7B
	legacyModelReply        = 0x0B
	legacyTestReply         = 0x7D
	legacyInquiryTimeoutCyc = uint64(250 * scheduler.ReferenceHz / 1000)
)

// legacyResponseDelayCyc is computed at runtime (not a const) since 2.64ms
// does not divide ReferenceHz into a whole number of cycles.
var referenceHzF = float64(scheduler.ReferenceHz)

var legacyResponseDelayCyc = uint64(2.64 * referenceHzF / 1000)

// virtualKeyTable maps a host virtual-key code to a Mac-Plus raw key
// code; entries with extended set true emit the 0x79 prefix byte first
// (arrow and keypad keys)
type legacyKeyMapping struct {
	code     uint8
	extended bool
}

var virtualKeyTable = map[uint8]legacyKeyMapping{
	// A small subset: three letter keys and the four arrow keys that
	// exercise the 0x79-prefix path. Keys not listed here pass their low
	// 7 bits through unchanged as the raw key code.
	'A': {0x41, false}, 'B': {0x47, false}, 'C': {0x45, false},
	0x25: {0x0D, true}, // left arrow
	0x26: {0x0B, true}, // up arrow
	0x27: {0x05, true}, // right arrow
	0x28: {0x11, true}, // down arrow
}

// LegacyKeyboard is the Mac Plus pre-ADB keyboard: an 8-byte queue state
// machine with a fixed response delay and auto-repeat suppression,
// entirely distinct from the ADB protocol above.
type LegacyKeyboard struct {
	Name string
	sch  *scheduler.Scheduler
	cb   LegacyCallbacks

	queue          []uint8
	pressed        [128]bool
	inquiryPending bool
	pendingReply   uint8
}

// LegacyCallbacks wires the legacy keyboard to whatever register shuttles
// its reply byte back to the host (the VIA shift register on a Plus).
type LegacyCallbacks struct {
	Reply func(b uint8)
}

func NewLegacyKeyboard(name string, sch *scheduler.Scheduler, cb LegacyCallbacks) *LegacyKeyboard {
	k := &LegacyKeyboard{Name: name, sch: sch, cb: cb}
	sch.RegisterEventType(name, "kbdreply", k.sendReply)
	sch.RegisterEventType(name, "kbdinquiry-timeout", k.inquiryTimeout)
	return k
}

// Command processes a host command byte.
func (k *LegacyKeyboard) Command(cmd uint8) {
	switch cmd {
	case legacyInquiry:
		if len(k.queue) > 0 {
			k.scheduleReply(k.popByte())
			return
		}
		k.inquiryPending = true
		k.sch.Schedule(k.Name, "kbdinquiry-timeout", 0, legacyInquiryTimeoutCyc, 0)
	case legacyInstant:
		if len(k.queue) > 0 {
			k.scheduleReply(k.popByte())
		} else {
			k.scheduleReply(legacyNullReply)
		}
	case legacyModelNumber:
		k.queue = k.queue[:0]
		k.scheduleReply(legacyModelReply)
	case legacyTest:
		k.scheduleReply(legacyTestReply)
	}
}

// KeyEvent translates and queues a host key transition, suppressing
// auto-repeat via the pressed table, and satisfies a pending INQUIRY
// immediately if one is outstanding.
func (k *LegacyKeyboard) KeyEvent(vkey uint8, down bool) {
	idx := vkey & 0x7F
	if down {
		if k.pressed[idx] {
			return
		}
		k.pressed[idx] = true
	} else {
		k.pressed[idx] = false
	}

	mapping, ok := virtualKeyTable[vkey]
	if !ok {
		mapping = legacyKeyMapping{code: idx, extended: false}
	}
	const queueCap = 8
	need := 1
	if mapping.extended {
		need = 2
	}
	if len(k.queue)+need > queueCap {
		return
	}
	if mapping.extended {
		k.queue = append(k.queue, 0x79)
	}
	b := mapping.code
	if !down {
		b |= 0x80
	}
	k.queue = append(k.queue, b)

	if k.inquiryPending {
		k.inquiryPending = false
		k.sch.Remove(k.Name, "kbdinquiry-timeout", false, 0)
		k.scheduleReply(k.popByte())
	}
}

func (k *LegacyKeyboard) popByte() uint8 {
	if len(k.queue) == 0 {
		return legacyNullReply
	}
	b := k.queue[0]
	k.queue = k.queue[1:]
	return b
}

func (k *LegacyKeyboard) scheduleReply(b uint8) {
	k.pendingReply = b
	k.sch.Remove(k.Name, "kbdreply", false, 0)
	k.sch.Schedule(k.Name, "kbdreply", 0, legacyResponseDelayCyc, 0)
}

func (k *LegacyKeyboard) sendReply(_ uint64) {
	if k.cb.Reply != nil {
		k.cb.Reply(k.pendingReply)
	}
}

func (k *LegacyKeyboard) inquiryTimeout(_ uint64) {
	if !k.inquiryPending {
		return
	}
	k.inquiryPending = false
	k.scheduleReply(legacyNullReply)
}
