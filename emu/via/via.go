// Package via implements the 6522 Versatile Interface Adapter: two 8-bit
// ports with data-direction registers, two 16-bit timers, a shift
// register, and the usual four control lines, aggregated into a single
// IRQ output.
package via

/*
 * mac68k - VIA (6522) emulation
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"fmt"

	"github.com/paleoemu/mac68k/emu/device"
	"github.com/paleoemu/mac68k/emu/scheduler"
)

// Standard 6522 IFR/IER bit assignments.
const (
	flagCA2 = 1 << 0
	flagCA1 = 1 << 1
	flagSR  = 1 << 2
	flagCB2 = 1 << 3
	flagCB1 = 1 << 4
	flagT2  = 1 << 5
	flagT1  = 1 << 6
	flagIRQ = 1 << 7
)

// Register selects, decoded from CPU address lines 9..12.
const (
	regORB = iota
	regORA
	regDDRB
	regDDRA
	regT1CL
	regT1CH
	regT1LL
	regT1LH
	regT2CL
	regT2CH
	regSR
	regACR
	regPCR
	regIFR
	regIER
	regORANoHS
)

// Callbacks wires the VIA to the rest of the machine. Cross-device
// coupling is by direct call; nil callbacks are no-ops.
type Callbacks struct {
	IRQ         func(asserted bool)
	PortAOutput func(driven uint8)
	PortBOutput func(driven uint8)
	ShiftOut    func(byte uint8)
}

// VIA is one 6522 instance. Name identifies it to the scheduler for
// checkpoint-portable event registration (e.g. "via0").
type VIA struct {
	Name string
	sch  *scheduler.Scheduler
	cb   Callbacks

	// Port registers.
	orb, ora   uint8
	ddrb, ddra uint8
	ira, irb   uint8 // Latched input lines (driven by SetPortA/SetPortB).

	// Timers. The live counter values derive from (start, armed-cycle)
	// pairs; no shadow counter field is kept.
	t1l uint16
	t2l uint16
	t1armed  uint64 // Cycle count when T1 was armed.
	t1start  uint16
	t2armed  uint64
	t2start  uint16
	t1Fired  bool // Whether the one-shot has fired since last (re)arm.
	t2Fired  bool

	sr  uint8
	acr uint8
	pcr uint8
	ifr uint8
	ier uint8

	ca1, ca2, cb1, cb2 bool // Current control line levels.

	srShifting bool // Shift-out in progress (cancelled by mode change).
}

// New constructs a VIA. name must be unique across the machine's devices.
func New(name string, sch *scheduler.Scheduler, cb Callbacks) *VIA {
	v := &VIA{Name: name, sch: sch, cb: cb}
	sch.RegisterEventType(name, "t1expire", v.t1Expire)
	sch.RegisterEventType(name, "t2expire", v.t2Expire)
	sch.RegisterEventType(name, "srshift", v.srShiftComplete)
	return v
}

func reg(addr uint32) int {
	return int((addr >> 9) & 0xF)
}

// Read8 and Write8 implement device.MMIO. Byte accesses only; a wide
// access reaching here (promoted by the memory map) simply hits each byte
// register twice, which is harmless since VIA registers are stateless to
// repeat reads except where noted.
func (v *VIA) Read8(addr uint32) uint8 {
	switch reg(addr) {
	case regORB:
		return (v.orb & v.ddrb) | (v.irb &^ v.ddrb)
	case regORA, regORANoHS:
		return (v.ora & v.ddra) | (v.ira &^ v.ddra)
	case regDDRB:
		return v.ddrb
	case regDDRA:
		return v.ddra
	case regT1CL:
		v.ifr &^= flagT1
		v.recomputeIRQ()
		return uint8(v.liveT1())
	case regT1CH:
		return uint8(v.liveT1() >> 8)
	case regT1LL:
		return uint8(v.t1l)
	case regT1LH:
		return uint8(v.t1l >> 8)
	case regT2CL:
		v.ifr &^= flagT2
		v.recomputeIRQ()
		return uint8(v.liveT2())
	case regT2CH:
		return uint8(v.liveT2() >> 8)
	case regSR:
		v.ifr &^= flagSR
		v.recomputeIRQ()
		return v.sr
	case regACR:
		return v.acr
	case regPCR:
		return v.pcr
	case regIFR:
		f := v.ifr
		if f&v.ier&0x7F != 0 {
			f |= flagIRQ
		}
		return f
	case regIER:
		return v.ier | 0x80
	}
	return 0
}

func (v *VIA) Write8(addr uint32, val uint8) {
	switch reg(addr) {
	case regORB:
		v.orb = val
		if v.cb.PortBOutput != nil {
			v.cb.PortBOutput((v.orb & v.ddrb) | (v.irb &^ v.ddrb))
		}
	case regORA, regORANoHS:
		v.ora = val
		if v.cb.PortAOutput != nil {
			v.cb.PortAOutput((v.ora & v.ddra) | (v.ira &^ v.ddra))
		}
	case regDDRB:
		v.ddrb = val
	case regDDRA:
		v.ddra = val
	case regT1LL, regT1CL:
		v.t1l = (v.t1l & 0xFF00) | uint16(val)
	case regT1CH:
		v.t1l = (v.t1l & 0x00FF) | uint16(val)<<8
		v.ifr &^= flagT1
		v.recomputeIRQ()
		v.armT1()
	case regT1LH:
		v.t1l = (v.t1l & 0x00FF) | uint16(val)<<8
		v.ifr &^= flagT1
		v.recomputeIRQ()
	case regT2CL:
		v.t2l = (v.t2l & 0xFF00) | uint16(val)
	case regT2CH:
		v.t2l = (v.t2l & 0x00FF) | uint16(val)<<8
		v.ifr &^= flagT2
		v.recomputeIRQ()
		v.armT2()
	case regSR:
		v.sr = val
		if v.acr&0x10 != 0 {
			v.startShiftOut()
		}
	case regACR:
		old := v.acr
		v.acr = val
		if (old^val)&0x1C != 0 {
			// SR mode changed mid-shift: cancel the pending completion.
			v.sch.Remove(v.Name, "srshift", false, 0)
			v.srShifting = false
		}
	case regPCR:
		v.pcr = val
	case regIFR:
		v.ifr &^= val & 0x7F
		v.recomputeIRQ()
	case regIER:
		if val&0x80 != 0 {
			v.ier |= val & 0x7F
		} else {
			v.ier &^= val & 0x7F
		}
		v.recomputeIRQ()
	}
}

// recomputeIRQ: IFR bit 7 is
// the OR of IFR[6:0]&IER[6:0]; any transition invokes the IRQ callback.
func (v *VIA) recomputeIRQ() {
	asserted := v.ifr&v.ier&0x7F != 0
	if v.cb.IRQ != nil {
		v.cb.IRQ(asserted)
	}
}

func (v *VIA) setIFR(bit uint8) {
	before := v.ifr&v.ier&0x7F != 0
	v.ifr |= bit
	after := v.ifr&v.ier&0x7F != 0
	if before != after && v.cb.IRQ != nil {
		v.cb.IRQ(after)
	}
}

// --- Timer 1 ---

func (v *VIA) liveT1() uint16 {
	elapsed := (v.sch.Cycles() - v.t1armed) / 10
	return v.t1start - uint16(elapsed)
}

func (v *VIA) armT1() {
	v.t1start = v.t1l
	v.t1armed = v.sch.Cycles()
	v.t1Fired = false
	delay := (uint64(v.t1l) + 1) * 10
	v.sch.Remove(v.Name, "t1expire", false, 0)
	v.sch.Schedule(v.Name, "t1expire", 0, delay, 0)
}

func (v *VIA) t1Expire(_ uint64) {
	v.setIFR(flagT1)
	mode := (v.acr >> 6) & 3
	switch mode {
	case 0: // one-shot, PB7 unaffected
	case 1: // free-running
		v.rearmT1()
	case 2: // one-shot with PB7 output: PB7 goes high on timeout
		if v.ddrb&0x80 != 0 {
			v.orb |= 0x80
		}
	case 3: // free-running with PB7 toggle
		if v.ddrb&0x80 != 0 {
			v.orb ^= 0x80
		}
		v.rearmT1()
	}
}

func (v *VIA) rearmT1() {
	v.t1start = v.t1l
	v.t1armed = v.sch.Cycles()
	delay := (uint64(v.t1l) + 1) * 10
	if delay == 0 {
		delay = 10
	}
	v.sch.Schedule(v.Name, "t1expire", 0, delay, 0)
}

// --- Timer 2 ---

func (v *VIA) liveT2() uint16 {
	elapsed := (v.sch.Cycles() - v.t2armed) / 10
	return v.t2start - uint16(elapsed)
}

func (v *VIA) armT2() {
	v.t2start = v.t2l
	v.t2armed = v.sch.Cycles()
	v.sch.Remove(v.Name, "t2expire", false, 0)
	delay := (uint64(v.t2l) + 1) * 10
	v.sch.Schedule(v.Name, "t2expire", 0, delay, 0)
}

// t2Expire sets IFR.T2 exactly once after the initial timeout; the
// counter (per liveT2) keeps decrementing and wrapping but no further
// IFR assertion occurs until the counter is rearmed, since T2 in one-shot mode is not rescheduled here. Pulse-
// counting mode (ACR bit 5 set) is not modeled: this core has no PB6
// pulse source wired to any device, so it is left as a stub that behaves
// like one-shot (see DESIGN.md).
func (v *VIA) t2Expire(_ uint64) {
	v.setIFR(flagT2)
}

// --- Shift register ---

func (v *VIA) startShiftOut() {
	v.srShifting = true
	v.sch.Remove(v.Name, "srshift", false, 0)
	v.sch.Schedule(v.Name, "srshift", 0, 8*10, 0)
}

func (v *VIA) srShiftComplete(_ uint64) {
	if !v.srShifting {
		return
	}
	v.srShifting = false
	if v.cb.ShiftOut != nil {
		v.cb.ShiftOut(v.sr)
	}
	v.setIFR(flagSR)
}

// InputSR deposits an externally shifted-in byte and raises the SR interrupt flag.
func (v *VIA) InputSR(b uint8) {
	v.sr = b
	v.setIFR(flagSR)
}

// --- Control lines ---

func edgeMatches(positiveSel, rising bool) bool {
	return positiveSel == rising
}

// SetCA1 delivers a new level on CA1; an edge matching PCR's selection
// sets the CA1 interrupt flag.
func (v *VIA) SetCA1(level bool) {
	rising := level && !v.ca1
	falling := !level && v.ca1
	v.ca1 = level
	positiveSel := v.pcr&0x01 != 0
	if (rising || falling) && edgeMatches(positiveSel, rising) {
		v.setIFR(flagCA1)
	}
}

func (v *VIA) SetCB1(level bool) {
	rising := level && !v.cb1
	falling := !level && v.cb1
	v.cb1 = level
	positiveSel := v.pcr&0x10 != 0
	if (rising || falling) && edgeMatches(positiveSel, rising) {
		v.setIFR(flagCB1)
	}
}

// SetCA2/SetCB2 model the input sub-modes of PCR[3:1]/[7:5] (modes 0-3:
// input). Output modes (4-7) are not modeled as inputs.
func (v *VIA) SetCA2(level bool) {
	sub := (v.pcr >> 1) & 0x7
	if sub >= 4 {
		return
	}
	rising := level && !v.ca2
	falling := !level && v.ca2
	v.ca2 = level
	positiveSel := sub&0x2 != 0
	if (rising || falling) && edgeMatches(positiveSel, rising) {
		v.setIFR(flagCA2)
	}
}

func (v *VIA) SetCB2(level bool) {
	sub := (v.pcr >> 5) & 0x7
	if sub >= 4 {
		return
	}
	rising := level && !v.cb2
	falling := !level && v.cb2
	v.cb2 = level
	positiveSel := sub&0x2 != 0
	if (rising || falling) && edgeMatches(positiveSel, rising) {
		v.setIFR(flagCB2)
	}
}

// SetPortA/SetPortB drive the input-side bits of a port (bits not
// configured as output per DDR); used by devices wired to the port, e.g.
// ADB/SCSI/SCC handshake lines.
func (v *VIA) SetPortA(bits uint8) { v.ira = bits }
func (v *VIA) SetPortB(bits uint8) { v.irb = bits }

func (v *VIA) Shutdown()                 {}
func (v *VIA) Debug(option string) error { return fmt.Errorf("via: unknown debug option %q", option) }

// --- Checkpoint ---

const viaCheckpointVersion = 1

// Serialize writes the register file, timer arming state, and control
// line levels; pending timer/shift events live in the scheduler's own
// record, so rearming on restore is unnecessary.
func (v *VIA) Serialize() []byte {
	e := device.NewEncoder(viaCheckpointVersion)
	e.U8(v.orb)
	e.U8(v.ora)
	e.U8(v.ddrb)
	e.U8(v.ddra)
	e.U8(v.ira)
	e.U8(v.irb)
	e.U16(v.t1l)
	e.U16(v.t2l)
	e.U64(v.t1armed)
	e.U16(v.t1start)
	e.U64(v.t2armed)
	e.U16(v.t2start)
	e.Bool(v.t1Fired)
	e.Bool(v.t2Fired)
	e.U8(v.sr)
	e.U8(v.acr)
	e.U8(v.pcr)
	e.U8(v.ifr)
	e.U8(v.ier)
	e.Bool(v.ca1)
	e.Bool(v.ca2)
	e.Bool(v.cb1)
	e.Bool(v.cb2)
	e.Bool(v.srShifting)
	return e.Bytes()
}

func (v *VIA) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, viaCheckpointVersion)
	v.orb = d.U8()
	v.ora = d.U8()
	v.ddrb = d.U8()
	v.ddra = d.U8()
	v.ira = d.U8()
	v.irb = d.U8()
	v.t1l = d.U16()
	v.t2l = d.U16()
	v.t1armed = d.U64()
	v.t1start = d.U16()
	v.t2armed = d.U64()
	v.t2start = d.U16()
	v.t1Fired = d.Bool()
	v.t2Fired = d.Bool()
	v.sr = d.U8()
	v.acr = d.U8()
	v.pcr = d.U8()
	v.ifr = d.U8()
	v.ier = d.U8()
	v.ca1 = d.Bool()
	v.ca2 = d.Bool()
	v.cb1 = d.Bool()
	v.cb2 = d.Bool()
	v.srShifting = d.Bool()
	if err := d.Err(); err != nil {
		return fmt.Errorf("via %s: %w", v.Name, err)
	}
	v.recomputeIRQ()
	return nil
}
