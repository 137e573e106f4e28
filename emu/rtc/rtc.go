// Package rtc implements the Macintosh real-time clock / PRAM chip: a
// four-line serial protocol (clock, data, enable) carrying an 8-bit
// command, an optional data byte, and extended two-byte PRAM addressing,
// plus a 1-Hz scheduler-driven seconds ticker.
package rtc

/*
 * mac68k - RTC / PRAM emulation
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"fmt"

	"github.com/paleoemu/mac68k/emu/device"
	"github.com/paleoemu/mac68k/emu/scheduler"
)

// macEpochOffset converts Unix seconds to the Mac epoch (1904-01-01).
const macEpochOffset = 2_082_844_800

// Callbacks wires the RTC to the rest of the machine.
type Callbacks struct {
	// OneSecondPulse is invoked high-then-low once per second, driving the
	// VIA's CA2-equivalent one-second interrupt line.
	OneSecondPulse func(asserted bool)
}

type phase int

const (
	phaseIdle phase = iota
	phaseExtByte1
	phaseDataOut
	phaseDataIn
)

// RTC models the four-wire PRAM/clock chip.
type RTC struct {
	Name string
	sch  *scheduler.Scheduler
	cb   Callbacks

	clockLevel bool
	enable     bool

	shiftIn  uint8
	bitCount int
	ph       phase

	cmd0, cmd1 uint8

	writeProtect bool

	seconds  uint32
	lowPRAM  [16]uint8
	extPRAM  [4]uint8
	fullPRAM [256]uint8

	shiftOut      uint8
	outShiftCount int
	outPending    bool
}

// defaultPRAM is the factory parameter-RAM image a ROM expects to find
// on a machine whose battery never died: a middling speaker volume,
// SCSI ID 0 as the boot preference, and the standard double-click/caret
// timing values. New copies it into the low bank and into the first 16
// bytes of the 256-byte PRAM; the 4-entry extended bank starts zeroed.
var defaultPRAM = [16]uint8{
	0x00, 0x00, 0x00, 0x00,
	0xCC, 0x0A, 0xCC, 0x0A, // default serial port configuration
	0x00, 0x00,
	0x63, 0x00, // misc flags: boot from internal drive
	0x03, 0x88, // volume 3, standard click timing
	0x00, 0x00,
}

// New constructs an RTC seeded with the given Unix time and factory PRAM
// contents; a checkpoint restore overwrites both.
func New(name string, sch *scheduler.Scheduler, cb Callbacks, unixSeconds uint32) *RTC {
	r := &RTC{Name: name, sch: sch, cb: cb, seconds: unixSeconds + macEpochOffset}
	r.lowPRAM = defaultPRAM
	copy(r.fullPRAM[:16], defaultPRAM[:])
	sch.RegisterEventType(name, "tick", r.tick)
	sch.RegisterEventType(name, "pulselow", r.pulseLow)
	sch.Schedule(name, "tick", 0, scheduler.ReferenceHz, 0)
	return r
}

// SetEnable drives the chip-enable line.
func (r *RTC) SetEnable(level bool) {
	r.enable = level
	if !level {
		r.ph = phaseIdle
		r.bitCount = 0
	}
}

// SetClock delivers a new clock-line level and returns the RTC's current
// data-line output. A rising edge while enabled samples the data line
// into the command/data shift path; once a read command is dispatched,
// each falling edge instead shifts the reply byte out.
func (r *RTC) SetClock(level, data bool) bool {
	rising := level && !r.clockLevel
	falling := !level && r.clockLevel
	r.clockLevel = level

	if rising && r.enable {
		if r.ph == phaseDataOut {
			// Command/ext bytes already consumed the shift-in path above;
			// inbound bits are ignored while a reply is outbound.
		} else {
			r.shiftBit(data)
		}
	}
	if falling && r.ph == phaseDataOut {
		r.shiftOut <<= 1
		r.outShiftCount++
		if r.outShiftCount >= 8 {
			r.outPending = false
			r.ph = phaseIdle
			r.outShiftCount = 0
		}
	}
	return r.outputBit()
}

func (r *RTC) outputBit() bool {
	if !r.outPending {
		return false
	}
	return r.shiftOut&0x80 != 0
}

// DataOut peeks the current data-line output without advancing the
// shift-out state (a host samples this before driving a falling edge).
func (r *RTC) DataOut() bool { return r.outputBit() }

func (r *RTC) shiftBit(data bool) {
	r.shiftIn = r.shiftIn<<1 | b2u8(data)
	r.bitCount++

	switch r.ph {
	case phaseIdle:
		if r.bitCount == 8 {
			r.cmd0 = r.shiftIn
			r.bitCount = 0
			r.shiftIn = 0
			if isFullExtended(r.cmd0) {
				r.ph = phaseExtByte1
			} else if r.cmd0&0x80 != 0 {
				r.dispatchRead(r.cmd0, 0)
				r.ph = phaseDataOut
			} else {
				r.ph = phaseDataIn
			}
		}
	case phaseExtByte1:
		if r.bitCount == 8 {
			r.cmd1 = r.shiftIn
			r.bitCount = 0
			r.shiftIn = 0
			if r.cmd0&0x80 != 0 {
				r.dispatchRead(r.cmd0, r.cmd1)
				r.ph = phaseDataOut
			} else {
				r.ph = phaseDataIn
			}
		}
	case phaseDataIn:
		if r.bitCount == 8 {
			r.applyWrite(r.cmd0, r.cmd1, r.shiftIn)
			r.ph = phaseIdle
			r.bitCount = 0
			r.shiftIn = 0
		}
	}
}

// Register-class disambiguation: bits 5:3 of the command byte select
// the extended classes. Pattern 0x38 is the 256-byte PRAM, which uses
// the full two-byte addressing form; pattern 0x28 is the 4-entry
// extended bank, addressed in the single byte by bits 3:2. The remaining
// space splits on bit 6 into the four seconds bytes and the 16-entry
// low-PRAM bank addressed by bits 5:2.
func isFullExtended(cmd0 uint8) bool { return cmd0&0x38 == 0x38 }
func isExt4(cmd0 uint8) bool         { return cmd0&0x38 == 0x28 }

func pramAddr(cmd0, cmd1 uint8) int {
	return int(cmd0&0x07)<<5 | int(cmd1&0xFC)>>2
}

// dispatchRead loads shiftOut with the addressed register's value and
// arms output shifting; outPending flips the data line externally via
// SetClock's return value.
func (r *RTC) dispatchRead(cmd0, cmd1 uint8) {
	r.outPending = true
	switch {
	case isFullExtended(cmd0):
		r.shiftOut = r.fullPRAM[pramAddr(cmd0, cmd1)]
	case isExt4(cmd0):
		r.shiftOut = r.extPRAM[(cmd0>>2)&0x3]
	case cmd0&0x40 != 0:
		idx := (cmd0 >> 2) & 0x3
		r.shiftOut = uint8(r.seconds >> (8 * idx))
	default:
		r.shiftOut = r.lowPRAM[(cmd0>>2)&0x0F]
	}
}

func (r *RTC) applyWrite(cmd0, cmd1, val uint8) {
	switch {
	case isFullExtended(cmd0):
		addr := pramAddr(cmd0, cmd1)
		if r.writeProtect && addr != 0x35 {
			return
		}
		r.fullPRAM[addr] = val
		if addr == 0x35 {
			r.writeProtect = val&0x80 != 0
		}
	case r.writeProtect:
		// All other writes silently dropped while write-protected.
	case isExt4(cmd0):
		r.extPRAM[(cmd0>>2)&0x3] = val
	case cmd0&0x40 != 0:
		idx := uint((cmd0 >> 2) & 0x3)
		shift := 8 * idx
		mask := uint32(0xFF) << shift
		r.seconds = (r.seconds &^ mask) | uint32(val)<<shift
	default:
		r.lowPRAM[(cmd0>>2)&0x0F] = val
	}
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (r *RTC) tick(_ uint64) {
	r.seconds++
	if r.cb.OneSecondPulse != nil {
		r.cb.OneSecondPulse(true)
	}
	r.sch.Schedule(r.Name, "pulselow", 0, 1000, 0)
	r.sch.Schedule(r.Name, "tick", 0, scheduler.ReferenceHz, 0)
}

func (r *RTC) pulseLow(_ uint64) {
	if r.cb.OneSecondPulse != nil {
		r.cb.OneSecondPulse(false)
	}
}

func (r *RTC) Shutdown()                 {}
func (r *RTC) Debug(option string) error { return fmt.Errorf("rtc: unknown debug option %q", option) }

// --- Checkpoint ---

const rtcCheckpointVersion = 1

// Serialize writes the serial-protocol shift state, the seconds counter,
// and all three PRAM banks. The 1-Hz ticker itself is a scheduler event
// and restores through the scheduler's record.
func (r *RTC) Serialize() []byte {
	e := device.NewEncoder(rtcCheckpointVersion)
	e.Bool(r.clockLevel)
	e.Bool(r.enable)
	e.U8(r.shiftIn)
	e.U8(uint8(r.bitCount))
	e.U8(uint8(r.ph))
	e.U8(r.cmd0)
	e.U8(r.cmd1)
	e.Bool(r.writeProtect)
	e.U32(r.seconds)
	e.Fix(r.lowPRAM[:])
	e.Fix(r.extPRAM[:])
	e.Fix(r.fullPRAM[:])
	e.U8(r.shiftOut)
	e.U8(uint8(r.outShiftCount))
	e.Bool(r.outPending)
	return e.Bytes()
}

func (r *RTC) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, rtcCheckpointVersion)
	r.clockLevel = d.Bool()
	r.enable = d.Bool()
	r.shiftIn = d.U8()
	r.bitCount = int(d.U8())
	r.ph = phase(d.U8())
	r.cmd0 = d.U8()
	r.cmd1 = d.U8()
	r.writeProtect = d.Bool()
	r.seconds = d.U32()
	d.Fix(r.lowPRAM[:])
	d.Fix(r.extPRAM[:])
	d.Fix(r.fullPRAM[:])
	r.shiftOut = d.U8()
	r.outShiftCount = int(d.U8())
	r.outPending = d.Bool()
	if err := d.Err(); err != nil {
		return fmt.Errorf("rtc %s: %w", r.Name, err)
	}
	return nil
}
