package rtc

/*
 * mac68k - RTC tests.
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"testing"

	"github.com/paleoemu/mac68k/emu/scheduler"
)

type stepCPU struct{ pc uint32 }

func (c *stepCPU) RunSprint(budget *int) { c.pc += uint32(*budget); *budget = 0 }
func (c *stepCPU) CurrentPC() uint32     { return c.pc }

func newTest(unixSeconds uint32) (*RTC, *scheduler.Scheduler) {
	sch := scheduler.New(&stepCPU{})
	r := New("rtc0", sch, Callbacks{}, unixSeconds)
	return r, sch
}

func clockByte(r *RTC, val uint8) {
	r.SetEnable(true)
	for i := 7; i >= 0; i-- {
		bit := val&(1<<uint(i)) != 0
		r.SetClock(false, bit)
		r.SetClock(true, bit)
	}
}

func readByte(r *RTC) uint8 {
	var out uint8
	for i := 0; i < 8; i++ {
		bit := r.DataOut()
		out <<= 1
		if bit {
			out |= 1
		}
		r.SetClock(false, false) // falling edge advances to the next bit
		r.SetClock(true, false)
	}
	return out
}

func TestSeedsMacEpoch(t *testing.T) {
	r, _ := newTest(0)
	if r.seconds != macEpochOffset {
		t.Errorf("seconds = %d, want %d", r.seconds, macEpochOffset)
	}
}

func TestLowPRAMWriteReadRoundTrip(t *testing.T) {
	r, _ := newTest(0)
	// cmd byte: write (bit7=0), class bits6:4=0 (low-PRAM), sub 5:2 = 0x05, fixed bits 01.
	cmd := uint8(0x05<<2 | 0x01)
	clockByte(r, cmd)
	clockByte(r, 0x77)
	if r.lowPRAM[5] != 0x77 {
		t.Errorf("lowPRAM[5] = %#x, want 0x77", r.lowPRAM[5])
	}

	r2, _ := newTest(0)
	r2.lowPRAM[5] = 0x77
	readCmd := uint8(0x80 | 0x05<<2 | 0x01)
	clockByte(r2, readCmd)
	got := readByte(r2)
	if got != 0x77 {
		t.Errorf("read back = %#x, want 0x77", got)
	}
}

func TestWriteProtectBlocksWrites(t *testing.T) {
	r, _ := newTest(0)
	// Set write-protect via extended register 0x35.
	cmd0 := uint8(0x38 | 0x01) // full-extended write
	cmd1 := uint8((0x35 << 2) & 0xFC)
	clockByte(r, cmd0)
	clockByte(r, cmd1)
	clockByte(r, 0x80)
	if !r.writeProtect {
		t.Fatal("write-protect flag not latched")
	}

	before := r.lowPRAM[3]
	wcmd := uint8(0x03<<2 | 0x01)
	clockByte(r, wcmd)
	clockByte(r, 0xFF)
	if r.lowPRAM[3] != before {
		t.Error("write succeeded while write-protected")
	}
}

func TestTickerIncrementsSecondsAndPulses(t *testing.T) {
	r, sch := newTest(0)
	var pulses []bool
	r.cb.OneSecondPulse = func(a bool) { pulses = append(pulses, a) }

	sch.Run(int(scheduler.ReferenceHz/4) + 300)
	if r.seconds != macEpochOffset+1 {
		t.Errorf("seconds after one tick = %d, want %d", r.seconds, macEpochOffset+1)
	}
	if len(pulses) < 2 || !pulses[0] || pulses[1] {
		t.Errorf("pulses = %v, want [true false ...]", pulses)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	r, _ := newTest(1000)
	clockByte(r, 0x35) // write command, low-PRAM slot 0x0D
	clockByte(r, 0x5A)
	r.writeProtect = true
	r.fullPRAM[0x42] = 0xAA

	rec := r.Serialize()

	r2, _ := newTest(0)
	if err := r2.Deserialize(rec); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if r2.seconds != r.seconds {
		t.Errorf("seconds = %d, want %d", r2.seconds, r.seconds)
	}
	if !r2.writeProtect {
		t.Error("write-protect flag lost")
	}
	if r2.fullPRAM[0x42] != 0xAA {
		t.Errorf("fullPRAM[0x42] = %#x, want 0xAA", r2.fullPRAM[0x42])
	}
}

func TestFactoryPRAMDefaults(t *testing.T) {
	r, _ := newTest(0)
	if r.lowPRAM != defaultPRAM {
		t.Error("low PRAM not seeded with factory defaults")
	}
	readCmd := uint8(0x80 | 0x0C<<2 | 0x01) // read low-PRAM slot 0x0C
	clockByte(r, readCmd)
	if got := readByte(r); got != defaultPRAM[0x0C] {
		t.Errorf("PRAM slot 0x0C reads %#x, want %#x", got, defaultPRAM[0x0C])
	}
}
