// Package asc implements the SE/30 Apple Sound Chip: a 2 KiB SRAM window
// shared between FIFO mode (two 1 KiB circular buffers) and wavetable
// mode (four phase-accumulator voices), plus the latched FIFO-half-empty
// IRQ wire.
package asc

/*
 * mac68k - ASC (Apple Sound Chip) emulation
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"fmt"

	"github.com/paleoemu/mac68k/emu/device"
)

const (
	sramSize    = 0x800
	regBase     = 0x800
	fifoHalf    = 512
	fifoLen     = 1024
	voiceStride = 0x200
	voiceCount  = 4
)

// Mode selects the chip's rendering discipline.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeFIFO
	ModeWavetable
)

// Callbacks wires the ASC to the rest of the machine.
type Callbacks struct {
	// IRQ drives the audio VIA's CB1 input, active-low.
	IRQ func(asserted bool)
}

type fifoChannel struct {
	buf        [fifoLen]uint8
	writeIdx   int
	readIdx    int
	count      int
	halfFlag   bool
	emptyFlag  bool
}

type voice struct {
	phase uint32
	incr  uint32
}

// ASC is one chip instance.
type ASC struct {
	sram [sramSize]uint8
	cb   Callbacks

	mode    Mode
	volume  uint8 // 3-bit digital volume.
	waveCtl uint8 // Bit per enabled voice.

	fifo  [2]fifoChannel
	voice [voiceCount]voice
}

func New(cb Callbacks) *ASC {
	return &ASC{cb: cb}
}

// Read8/Write8 implement device.MMIO over the combined SRAM+register
// window (registers begin at 0x800).
func (a *ASC) Read8(addr uint32) uint8 {
	if addr < regBase {
		return a.sram[addr]
	}
	return a.readReg(addr - regBase)
}

func (a *ASC) Write8(addr uint32, val uint8) {
	if addr < regBase {
		a.writeSRAM(addr, val)
		return
	}
	a.writeReg(addr-regBase, val)
}

// writeSRAM pushes into the owning channel's FIFO in FIFO mode; in
// wavetable mode it is a plain SRAM write into the voice's table.
func (a *ASC) writeSRAM(addr uint32, val uint8) {
	a.sram[addr] = val
	if a.mode != ModeFIFO {
		return
	}
	ch := 0
	if addr >= 0x400 {
		ch = 1
	}
	a.pushFIFO(ch, val)
}

func (a *ASC) pushFIFO(ch int, val uint8) {
	f := &a.fifo[ch]
	if f.count >= fifoLen {
		return
	}
	f.buf[f.writeIdx] = val
	f.writeIdx = (f.writeIdx + 1) % fifoLen
	f.count++
	f.emptyFlag = false
}

const (
	regVersion    = 0x00
	regMode       = 0x01
	regControl    = 0x02
	regFIFOIRQ    = 0x03
	regWaveCtrl   = 0x04
	regVolume     = 0x05
)

func (a *ASC) readReg(reg uint32) uint8 {
	switch reg {
	case regMode:
		return uint8(a.mode)
	case regFIFOIRQ:
		v := a.fifoIRQStatus()
		// Read-clears the latched half-empty bits.
		a.fifo[0].halfFlag = false
		a.fifo[1].halfFlag = false
		return v
	case regWaveCtrl:
		return a.waveCtl
	case regVolume:
		return a.volume
	}
	return 0
}

func (a *ASC) writeReg(reg uint32, val uint8) {
	switch reg {
	case regMode:
		a.mode = Mode(val & 0x3)
	case regWaveCtrl:
		a.waveCtl = val
	case regVolume:
		a.volume = val & 0x7
	case 0x10, 0x11, 0x12, 0x13: // per-voice increment bytes: accepted and ignored; increments are set through SetVoiceIncrement
	}
}

// SetVoiceIncrement sets voice n's 9.15 fixed-point phase increment
// directly; a real machine would program this through the register
// window, but the per-voice register layout varies by chip revision
// and nothing in this core decodes it, so increments are set through
// this explicit API (see DESIGN.md).
func (a *ASC) SetVoiceIncrement(n int, incr uint32) {
	if n < 0 || n >= voiceCount {
		return
	}
	a.voice[n].incr = incr
}

// fifoIRQStatus reports both FIFO flags: half-empty (latched) in bit 0/1
// per channel, fully-empty (level) in bit 2/3.
func (a *ASC) fifoIRQStatus() uint8 {
	var v uint8
	if a.fifo[0].halfFlag {
		v |= 0x01
	}
	if a.fifo[1].halfFlag {
		v |= 0x02
	}
	if a.fifo[0].emptyFlag {
		v |= 0x04
	}
	if a.fifo[1].emptyFlag {
		v |= 0x08
	}
	return v
}

func (a *ASC) updateIRQ() {
	asserted := a.fifoIRQStatus() != 0
	if a.cb.IRQ != nil {
		a.cb.IRQ(asserted)
	}
}

// RenderFrame produces one stereo-ish output sample pair (mono summed in
// wavetable mode, per-channel in FIFO mode), advancing
// chip state by exactly one output frame.
func (a *ASC) RenderFrame() (left, right int16) {
	switch a.mode {
	case ModeFIFO:
		left = a.popFIFO(0)
		right = a.popFIFO(1)
	case ModeWavetable:
		var sum int32
		for i := range a.voice {
			if a.waveCtl&(1<<uint(i)) == 0 {
				continue
			}
			v := &a.voice[i]
			idx := (v.phase >> 15) & 0x1FF
			sample := int8(a.sram[i*voiceStride+int(idx)])
			sum += int32(sample)
			v.phase = (v.phase + v.incr) & 0xFFFFFF
		}
		scaled := int16(sum) * int16(a.volume+1) / 8
		left, right = scaled, scaled
	}
	return
}

func (a *ASC) popFIFO(ch int) int16 {
	f := &a.fifo[ch]
	before := f.count
	var raw uint8
	if f.count > 0 {
		raw = f.buf[f.readIdx]
		f.readIdx = (f.readIdx + 1) % fifoLen
		f.count--
	}
	if f.count == 0 {
		f.emptyFlag = true
	}
	if before >= fifoHalf && f.count < fifoHalf {
		f.halfFlag = true
		a.updateIRQ()
	}
	signed := int16(int32(raw) - 128)
	return signed * int16(a.volume+1) / 8
}

func (a *ASC) Shutdown()                 {}
func (a *ASC) Debug(option string) error { return fmt.Errorf("asc: unknown debug option %q", option) }

// --- Checkpoint ---

const ascCheckpointVersion = 1

func (a *ASC) Serialize() []byte {
	e := device.NewEncoder(ascCheckpointVersion)
	e.Fix(a.sram[:])
	e.U8(uint8(a.mode))
	e.U8(a.volume)
	e.U8(a.waveCtl)
	for i := range a.fifo {
		f := &a.fifo[i]
		e.Fix(f.buf[:])
		e.U16(uint16(f.writeIdx))
		e.U16(uint16(f.readIdx))
		e.U16(uint16(f.count))
		e.Bool(f.halfFlag)
		e.Bool(f.emptyFlag)
	}
	for i := range a.voice {
		e.U32(a.voice[i].phase)
		e.U32(a.voice[i].incr)
	}
	return e.Bytes()
}

func (a *ASC) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, ascCheckpointVersion)
	d.Fix(a.sram[:])
	a.mode = Mode(d.U8())
	a.volume = d.U8()
	a.waveCtl = d.U8()
	for i := range a.fifo {
		f := &a.fifo[i]
		d.Fix(f.buf[:])
		f.writeIdx = int(d.U16())
		f.readIdx = int(d.U16())
		f.count = int(d.U16())
		f.halfFlag = d.Bool()
		f.emptyFlag = d.Bool()
	}
	for i := range a.voice {
		a.voice[i].phase = d.U32()
		a.voice[i].incr = d.U32()
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("asc: %w", err)
	}
	a.updateIRQ()
	return nil
}
