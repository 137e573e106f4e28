// Package adb implements the SE/30 Apple Desktop Bus transceiver: command
// decode off the VIA shift register, the Cmd/Even/Odd/Idle bus-state
// machine carried on VIA port B bits 5:4, and the keyboard/mouse device
// models addressed over it.
package adb

/*
 * mac68k - ADB transceiver, keyboard, and mouse
 *
 * Copyright 2024, Richard Cornwell
 */

// State is the bus phase encoded on VIA port B's ST1:ST0 lines.
type State int

const (
	StateCmd State = iota
	StateEven
	StateOdd
	StateIdle
)

// Command types, bits 3:2 of the command byte.
const (
	cmdReset = 0
	cmdFlush = 1
	cmdListen = 2
	cmdTalk  = 3
)

// Callbacks wires the transceiver to the VIA.
type Callbacks struct {
	InputSR func(b uint8) // Deliver a reply byte into the VIA shift register.
	SRQ     func(asserted bool)
}

// Device is an ADB peripheral addressable by the transceiver.
type Device interface {
	Talk(register int) (data []byte, ok bool)
	Listen(register int, data []byte)
	HasPending() bool
}

// Transceiver decodes one ADB command/reply cycle at a time. A real
// SE/30 bus supports multiple attached devices; this core wires exactly
// the conventional keyboard (address 2) and mouse (address 3) slots.
// Address collisions between third-party devices are out of scope (see
// DESIGN.md).
type Transceiver struct {
	cb Callbacks

	state State

	keyboardAddr int
	mouseAddr    int
	keyboard     Device
	mouse        Device

	pendingType int
	pendingAddr int
	pendingReg  int
	haveCmd     bool

	listenBuf []byte

	replyBytes []byte
	replyPos   int
}

// New constructs a transceiver with the conventional keyboard/mouse
// addresses (2 and 3).
func New(cb Callbacks, keyboard, mouse Device) *Transceiver {
	return &Transceiver{cb: cb, keyboardAddr: 2, mouseAddr: 3, keyboard: keyboard, mouse: mouse}
}

// SetState updates the ST1:ST0 bus-state lines (VIA port B bits 5:4); bit5
// is ST1, bit4 is ST0.
func (t *Transceiver) SetState(st1, st0 bool) {
	var s State
	switch {
	case !st1 && !st0:
		s = StateIdle
	case !st1 && st0:
		s = StateEven
	case st1 && !st0:
		s = StateOdd
	default:
		s = StateCmd
	}
	if s == t.state {
		return
	}
	t.state = s
	switch s {
	case StateEven, StateOdd:
		t.deliverNextReplyByte()
	case StateIdle:
		t.updateSRQ()
	}
}

// HandleShiftOut receives a byte the host shifted out via the VIA SR
// while the bus state selects command decode or Listen data.
func (t *Transceiver) HandleShiftOut(b uint8) {
	switch t.state {
	case StateCmd:
		t.decodeCommand(b)
	case StateEven, StateOdd:
		if t.haveCmd && t.pendingType == cmdListen {
			t.listenBuf = append(t.listenBuf, b)
			if len(t.listenBuf) >= 2 {
				t.applyListen()
			}
		}
	}
}

func (t *Transceiver) decodeCommand(b uint8) {
	t.pendingAddr = int(b>>4) & 0xF
	t.pendingType = int(b>>2) & 0x3
	t.pendingReg = int(b) & 0x3
	t.haveCmd = true
	t.listenBuf = t.listenBuf[:0]

	switch t.pendingType {
	case cmdReset:
		t.resetAll()
	case cmdFlush:
		t.flushDevice(t.pendingAddr)
	case cmdTalk:
		t.prepareTalkReply()
	}
}

func (t *Transceiver) targetFor(addr int) Device {
	switch addr {
	case t.keyboardAddr:
		return t.keyboard
	case t.mouseAddr:
		return t.mouse
	}
	return nil
}

func (t *Transceiver) prepareTalkReply() {
	dev := t.targetFor(t.pendingAddr)
	t.replyBytes = nil
	t.replyPos = 0
	if dev == nil {
		return
	}
	data, ok := dev.Talk(t.pendingReg)
	if ok {
		t.replyBytes = data
	}
}

func (t *Transceiver) applyListen() {
	dev := t.targetFor(t.pendingAddr)
	data := append([]byte(nil), t.listenBuf...)
	t.listenBuf = t.listenBuf[:0]
	if dev == nil {
		return
	}
	dev.Listen(t.pendingReg, data)
	if t.pendingReg == 3 && len(data) >= 1 {
		t.reassignAddress(t.pendingAddr, int(data[0])&0x0F)
	}
}

func (t *Transceiver) reassignAddress(old, updated int) {
	if t.keyboardAddr == old {
		t.keyboardAddr = updated
	}
	if t.mouseAddr == old {
		t.mouseAddr = updated
	}
}

func (t *Transceiver) resetAll() {
	t.keyboardAddr = 2
	t.mouseAddr = 3
}

func (t *Transceiver) flushDevice(addr int) {
	// Flush discards any buffered input; this core's device models keep
	// no buffered-but-unsent state beyond what Talk already drains, so
	// there is nothing further to clear here.
	_ = addr
}

// deliverNextReplyByte pushes the next pending reply byte (or the dummy
// terminator) into the VIA shift register on entry to Even/Odd, keeping
// SRQ high while bytes remain and dropping it on the final dummy byte.
func (t *Transceiver) deliverNextReplyByte() {
	if t.pendingType != cmdTalk || t.cb.InputSR == nil {
		return
	}
	if t.replyPos < len(t.replyBytes) {
		t.cb.InputSR(t.replyBytes[t.replyPos])
		t.replyPos++
		if t.cb.SRQ != nil {
			t.cb.SRQ(true)
		}
		return
	}
	// Final dummy byte: reply exhausted, SRQ drops.
	t.cb.InputSR(0xFF)
	if t.cb.SRQ != nil {
		t.cb.SRQ(false)
	}
}

// updateSRQ refreshes the service-request line while idle, based on
// whether any attached device has data pending.
func (t *Transceiver) updateSRQ() {
	if t.cb.SRQ == nil {
		return
	}
	pending := (t.keyboard != nil && t.keyboard.HasPending()) ||
		(t.mouse != nil && t.mouse.HasPending())
	t.cb.SRQ(pending)
}
