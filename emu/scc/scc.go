// Package scc implements the Zilog 8530 Serial Communications Controller:
// two channels, an indirect write-register pointer, SDLC framing on
// channel B, a shared baud-rate generator per channel, and DCD/loopback
// handling.
package scc

/*
 * mac68k - SCC (8530) emulation
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"fmt"

	"github.com/paleoemu/mac68k/emu/device"
	"github.com/paleoemu/mac68k/emu/scheduler"
)

const (
	maxFrames    = 8
	maxFrameLen  = 1024
	rr3ChannelExt = 1 << 1 // Simplified per-channel "ext/status" bit used in RR3.
)

// Channel is one of the two SCC channels (A=0, B=1).
type Channel int

const (
	ChannelA Channel = iota
	ChannelB
)

// Callbacks wires the SCC to the rest of the machine.
type Callbacks struct {
	IRQ func(asserted bool)
}

type chanState struct {
	wr [16]uint8
	rr [16]uint8

	hunt   bool
	rxFIFO [][]byte // Queued inbound SDLC frames, each already framed.
	curRX  []byte   // Frame currently being drained byte-by-byte.
	curPos int

	dcd bool
}

// SCC is the two-channel controller. Name identifies it to the scheduler.
type SCC struct {
	Name string
	sch  *scheduler.Scheduler
	cb   Callbacks

	ptr    [2]int // Pending write-register pointer per channel (WR0 bits 2:0).
	ch     [2]chanState
	vector uint8 // WR2, chip-global.
}

func New(name string, sch *scheduler.Scheduler, cb Callbacks) *SCC {
	s := &SCC{Name: name, sch: sch, cb: cb}
	s.ch[ChannelA].hunt = true
	s.ch[ChannelB].hunt = true
	s.sch.RegisterEventType(name, "brgA", s.brgZeroCount(ChannelA))
	s.sch.RegisterEventType(name, "brgB", s.brgZeroCount(ChannelB))
	return s
}

// --- Register access ---

// WriteControl handles a control-register byte for the given channel: the
// first write after a pointer reset selects a WR, subsequent writes (or
// a write while a pointer is pending) target that register.
func (s *SCC) WriteControl(ch Channel, val uint8) {
	c := &s.ch[ch]
	reg := s.ptr[ch]
	s.ptr[ch] = 0

	c.wr[reg] = val
	switch reg {
	case 0:
		if val&0x07 != 0 && val&0x38 == 0 {
			s.ptr[ch] = int(val & 0x07)
		}
		if val&0x38 == 0x38 { // Reset highest IUS (simplified: no-op here).
		}
	case 2:
		s.vector = val
	case 9:
		if val&0xC0 != 0 { // hardware/channel reset bits: reinitialize hunt.
			s.ch[ChannelB].hunt = true
			s.ch[ChannelB].curRX = nil
		}
	case 3:
		// WR3: receiver enable (bit0) toggles hunt re-entry.
		if val&0x01 != 0 && ch == ChannelB {
			c.hunt = true
		}
	case 14:
		if val&0x01 != 0 {
			s.armBRG(ch)
		} else {
			s.sch.Remove(s.Name, brgEventName(ch), false, 0)
		}
	}
	s.pumpRX(ch)
}

// ReadControl reads a status register for the given channel; RR2 has
// channel-dependent behaviour.
func (s *SCC) ReadControl(ch Channel) uint8 {
	reg := s.ptr[ch]
	s.ptr[ch] = 0
	c := &s.ch[ch]

	switch reg {
	case 2:
		if ch == ChannelA {
			return s.vector
		}
		return s.vector | s.highestPriorityStatus()
	case 3:
		rr3 := uint8(0)
		if len(c.curRX) > 0 {
			rr3 |= 0x04 // RX character available equivalent, channel B bit.
		}
		if c.dcd {
			rr3 |= rr3ChannelExt
		}
		return rr3
	case 0:
		rr0 := uint8(0)
		if c.curPos < len(c.curRX) {
			rr0 |= 0x01 // Rx char available.
		}
		if c.dcd {
			rr0 |= 0x08
		}
		return rr0
	case 8:
		return s.ReadData(ch)
	}
	return c.rr[reg]
}

// highestPriorityStatus encodes channel B's pending status into WR2 per
// the hardware vector-modification table; this core only distinguishes
// "no status" from "RX available", sufficient for the single consumer
// (the ADB/keyboard/mouse and disk stacks) that relies on vectored
// interrupts here.
func (s *SCC) highestPriorityStatus() uint8 {
	if len(s.ch[ChannelB].curRX) > s.ch[ChannelB].curPos {
		return 0x06 << 1
	}
	return 0
}

// ReadData reads register 8 (the RX data FIFO) for a channel.
func (s *SCC) ReadData(ch Channel) uint8 {
	c := &s.ch[ch]
	if c.curPos >= len(c.curRX) {
		return 0
	}
	b := c.curRX[c.curPos]
	c.curPos++
	if c.curPos >= len(c.curRX) {
		// End of frame: signalled on the last byte, then hunt re-enters.
		c.curRX = nil
		c.curPos = 0
		c.hunt = true
		s.pumpRX(ch)
	}
	return b
}

// WriteData writes register 8 (TX data); loopback mode (WR14 bit 4)
// routes it straight back into the RX FIFO as a one-byte frame.
func (s *SCC) WriteData(ch Channel, val uint8) {
	c := &s.ch[ch]
	if c.wr[14]&0x10 != 0 {
		s.InputFrame(ch, []byte{val})
	}
}

// --- SDLC frame delivery ---

// InputFrame queues an inbound SDLC frame.
// Frames are dropped if the bounded queue is full, the frame exceeds the
// maximum length, or address filtering rejects the first byte.
func (s *SCC) InputFrame(ch Channel, frame []byte) {
	c := &s.ch[ch]
	if len(frame) == 0 || len(frame) > maxFrameLen || len(c.rxFIFO) >= maxFrames {
		return
	}
	if c.wr[3]&0x01 != 0 && ch == ChannelB { // address-search enabled
		if frame[0] != 0xFF && frame[0] != c.wr[6] {
			return
		}
	}
	c.rxFIFO = append(c.rxFIFO, frame)
	s.pumpRX(ch)
}

// pumpRX moves a queued frame into the current-RX slot when hunting, and
// raises the RX interrupt if MIE and the per-channel RX interrupt enable
// (WR1 bit 3 family) are set.
func (s *SCC) pumpRX(ch Channel) {
	c := &s.ch[ch]
	if !c.hunt || c.curRX != nil || len(c.rxFIFO) == 0 {
		return
	}
	c.curRX = c.rxFIFO[0]
	c.rxFIFO = c.rxFIFO[1:]
	c.curPos = 0
	c.hunt = false

	if s.ch[ChannelB].wr[9]&0x08 != 0 && c.wr[1]&0x18 != 0 { // MIE && RX int enable
		if s.cb.IRQ != nil {
			s.cb.IRQ(true)
		}
	}
}

// --- Baud-rate generator ---

func brgEventName(ch Channel) string {
	if ch == ChannelA {
		return "brgA"
	}
	return "brgB"
}

func (s *SCC) armBRG(ch Channel) {
	c := &s.ch[ch]
	tc := uint64(c.wr[12]) | uint64(c.wr[13])<<8
	s.sch.Schedule(s.Name, brgEventName(ch), uint64(ch), tc+1, 0)
}

func (s *SCC) brgZeroCount(ch Channel) scheduler.Callback {
	return func(_ uint64) {
		c := &s.ch[ch]
		if c.wr[14]&0x01 == 0 {
			return
		}
		if c.wr[15]&0x04 != 0 && c.wr[1]&0x01 != 0 {
			if s.cb.IRQ != nil {
				s.cb.IRQ(true)
			}
		}
		s.armBRG(ch)
	}
}

// SetDCD delivers an external DCD level for the channel.
func (s *SCC) SetDCD(ch Channel, asserted bool) {
	c := &s.ch[ch]
	c.dcd = asserted
	if c.wr[15]&0x08 != 0 && s.cb.IRQ != nil {
		s.cb.IRQ(true)
	}
}

func (s *SCC) Shutdown()                 {}
func (s *SCC) Debug(option string) error { return fmt.Errorf("scc: unknown debug option %q", option) }

// --- Checkpoint ---

const sccCheckpointVersion = 1

// Serialize writes the chip-global pointer/vector state and, per channel,
// the register files plus the queued and in-flight SDLC frames as
// length-prefixed tables.
func (s *SCC) Serialize() []byte {
	e := device.NewEncoder(sccCheckpointVersion)
	e.U8(uint8(s.ptr[0]))
	e.U8(uint8(s.ptr[1]))
	e.U8(s.vector)
	for i := range s.ch {
		c := &s.ch[i]
		e.Fix(c.wr[:])
		e.Fix(c.rr[:])
		e.Bool(c.hunt)
		e.Bool(c.dcd)
		e.U32(uint32(c.curPos))
		e.Table(c.curRX)
		e.U32(uint32(len(c.rxFIFO)))
		for _, frame := range c.rxFIFO {
			e.Table(frame)
		}
	}
	return e.Bytes()
}

func (s *SCC) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, sccCheckpointVersion)
	s.ptr[0] = int(d.U8())
	s.ptr[1] = int(d.U8())
	s.vector = d.U8()
	for i := range s.ch {
		c := &s.ch[i]
		d.Fix(c.wr[:])
		d.Fix(c.rr[:])
		c.hunt = d.Bool()
		c.dcd = d.Bool()
		c.curPos = int(d.U32())
		c.curRX = d.Table()
		if len(c.curRX) == 0 {
			c.curRX = nil
		}
		n := int(d.U32())
		c.rxFIFO = nil
		for f := 0; f < n && d.Err() == nil; f++ {
			c.rxFIFO = append(c.rxFIFO, d.Table())
		}
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("scc %s: %w", s.Name, err)
	}
	return nil
}
