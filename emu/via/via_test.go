package via

/*
 * mac68k - VIA tests.
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

func addr(reg int) uint32 { return uint32(reg) << 9 }

// TestT1OneShot: latch T1 with 0x00FF,
// arm it, and confirm IFR.T1 is set exactly 2560 cycles later (256*10)
// and not before.
func TestT1OneShot(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	sch.SetMode(scheduler.MaxSpeed)
	v := New("via0", sch, Callbacks{})

	v.Write8(addr(regT1LL), 0xFF)
	v.Write8(addr(regT1CH), 0x00) // arms the timer

	sch.Run(2560/4 - 1)
	if v.ifr&flagT1 != 0 {
		t.Fatal("T1 fired early")
	}
	sch.Run(2)
	if v.ifr&flagT1 == 0 {
		t.Fatal("T1 did not fire at expected deadline")
	}
}

func TestT1FreeRunningRearms(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	v := New("via0", sch, Callbacks{})
	v.Write8(addr(regACR), 1<<6) // free-running, PB7 unaffected
	v.Write8(addr(regT1LL), 0x09)
	v.Write8(addr(regT1CH), 0x00) // period = 10*10 = 100 cycles

	sch.Run(1000)
	if v.ifr&flagT1 == 0 {
		t.Fatal("T1 never fired")
	}
	if !sch.IsScheduled("via0", "t1expire") {
		t.Error("free-running T1 did not rearm")
	}
}

func TestPortAWriteInvokesCallback(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	var driven uint8
	v := New("via0", sch, Callbacks{PortAOutput: func(b uint8) { driven = b }})
	v.Write8(addr(regDDRA), 0xFF)
	v.Write8(addr(regORA), 0x55)
	if driven != 0x55 {
		t.Errorf("driven = %#x, want 0x55", driven)
	}
}

func TestPortAReadMixesInputAndOutput(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	v := New("via0", sch, Callbacks{})
	v.Write8(addr(regDDRA), 0x0F) // low nibble output, high nibble input
	v.Write8(addr(regORA), 0xAA)
	v.SetPortA(0xF0)
	got := v.Read8(addr(regORA))
	if got != 0xFA { // low nibble from ORA (0xA), high nibble from input (0xF0)
		t.Errorf("port A read = %#x, want 0xfa", got)
	}
}

func TestIRQAggregation(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	var irqLevel bool
	var transitions int
	v := New("via0", sch, Callbacks{IRQ: func(a bool) { irqLevel = a; transitions++ }})

	v.Write8(addr(regIER), 0x80|flagCA1) // enable CA1
	v.SetCA1(false)
	v.SetCA1(true) // rising edge, default PCR selects negative edge -> no fire
	if irqLevel {
		t.Fatal("unexpected IRQ on non-matching edge")
	}

	v.Write8(addr(regPCR), 0x01) // select positive edge for CA1
	v.SetCA1(false)
	v.SetCA1(true)
	if !irqLevel {
		t.Error("expected IRQ asserted after matching CA1 edge")
	}

	v.Write8(addr(regIFR), flagCA1) // clear by writing 1
	if irqLevel {
		t.Error("expected IRQ deasserted after IFR clear")
	}
}

func TestShiftOutSchedulesCompletion(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	var shifted uint8
	var got bool
	v := New("via0", sch, Callbacks{ShiftOut: func(b uint8) { shifted = b; got = true }})
	v.Write8(addr(regACR), 0x10) // SR output mode
	v.Write8(addr(regSR), 0x42)

	sch.Run(80/4 - 1)
	if got {
		t.Fatal("shift completed too early")
	}
	sch.Run(10)
	if !got || shifted != 0x42 {
		t.Errorf("shift out: got=%v shifted=%#x, want true 0x42", got, shifted)
	}
}

func TestACRModeChangeCancelsShift(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	v := New("via0", sch, Callbacks{})
	v.Write8(addr(regACR), 0x10)
	v.Write8(addr(regSR), 0x42)
	v.Write8(addr(regACR), 0x00) // disable SR mid-shift
	if sch.IsScheduled("via0", "srshift") {
		t.Error("shift completion still scheduled after mode change")
	}
}

func TestInputSRSetsFlag(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	v := New("via0", sch, Callbacks{})
	v.InputSR(0x99)
	if v.sr != 0x99 {
		t.Errorf("sr = %#x, want 0x99", v.sr)
	}
	if v.ifr&flagSR == 0 {
		t.Error("SR flag not set after InputSR")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	v := New("via0", sch, Callbacks{})
	v.Write8(addr(regDDRB), 0xF0)
	v.Write8(addr(regORB), 0xA5)
	v.Write8(addr(regT1LL), 0x34)
	v.Write8(addr(regT1CH), 0x12) // arms T1
	v.Write8(addr(regIER), 0x80|flagT1)
	v.SetCA1(true)

	rec := v.Serialize()

	v2 := New("via0", scheduler.New(&stepCPU{}), Callbacks{})
	if err := v2.Deserialize(rec); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got := v2.Serialize(); !equalBytes(got, rec) {
		t.Error("re-serialized record differs from original")
	}
	if v2.ddrb != 0xF0 || v2.orb != 0xA5 || v2.t1l != 0x1234 {
		t.Errorf("restored registers: ddrb=%#x orb=%#x t1l=%#x", v2.ddrb, v2.orb, v2.t1l)
	}
}

func TestDeserializeRejectsTruncatedRecord(t *testing.T) {
	v := New("via0", scheduler.New(&stepCPU{}), Callbacks{})
	rec := v.Serialize()
	if err := v.Deserialize(rec[:5]); err == nil {
		t.Fatal("expected an error for a truncated record")
	}
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
