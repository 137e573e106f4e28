package scc

/*
 * mac68k - SCC tests.
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

func newTest() (*SCC, *scheduler.Scheduler) {
	sch := scheduler.New(&stepCPU{})
	s := New("scc0", sch, Callbacks{})
	return s, sch
}

func TestHuntDeliversFrame(t *testing.T) {
	s, _ := newTest()
	s.InputFrame(ChannelB, []byte{0x11, 0x22, 0x33})

	for i, want := range []byte{0x11, 0x22, 0x33} {
		got := s.ReadData(ChannelB)
		if got != want {
			t.Errorf("byte %d = %#x, want %#x", i, got, want)
		}
	}
	if !s.ch[ChannelB].hunt {
		t.Error("hunt did not re-enter after frame drained")
	}
}

func TestAddressFilterDropsNonMatching(t *testing.T) {
	s, _ := newTest()
	s.ch[ChannelB].wr[3] = 0x01 // address-search
	s.ch[ChannelB].wr[6] = 0x42
	s.InputFrame(ChannelB, []byte{0x99, 0xAA})
	if len(s.ch[ChannelB].rxFIFO) != 0 {
		t.Error("non-matching address frame was not dropped")
	}
	s.InputFrame(ChannelB, []byte{0x42, 0xAA})
	if s.ReadData(ChannelB) != 0x42 {
		t.Error("matching address frame was dropped")
	}
}

func TestBoundedFrameQueue(t *testing.T) {
	s, _ := newTest()
	s.ch[ChannelB].hunt = false // keep frames queued instead of draining
	for i := 0; i < maxFrames+2; i++ {
		s.InputFrame(ChannelB, []byte{byte(i)})
	}
	if len(s.ch[ChannelB].rxFIFO) != maxFrames {
		t.Errorf("queued frames = %d, want %d", len(s.ch[ChannelB].rxFIFO), maxFrames)
	}
}

func TestLoopback(t *testing.T) {
	s, _ := newTest()
	s.ch[ChannelA].wr[14] = 0x10
	s.WriteData(ChannelA, 0x55)
	if got := s.ReadData(ChannelA); got != 0x55 {
		t.Errorf("loopback byte = %#x, want 0x55", got)
	}
}

func TestBRGZeroCountRaisesIRQ(t *testing.T) {
	s, sch := newTest()
	var irq bool
	s.cb.IRQ = func(a bool) { irq = a }
	s.ch[ChannelB].wr[9] = 0x08 // MIE, used by pumpRX elsewhere
	s.ch[ChannelB].wr[1] = 0x01 // external/status interrupt enable
	s.ch[ChannelB].wr[15] = 0x04
	s.ch[ChannelB].wr[12] = 9
	s.ch[ChannelB].wr[13] = 0
	s.ch[ChannelB].wr[14] = 0x01 // BRG enable
	s.armBRG(ChannelB)

	sch.Run(20)
	if !irq {
		t.Error("expected IRQ after BRG zero count")
	}
}

func TestRR2ChannelBEncodesStatus(t *testing.T) {
	s, _ := newTest()
	s.vector = 0x00
	s.InputFrame(ChannelB, []byte{0x01})
	s.ptr[ChannelB] = 2
	got := s.ReadControl(ChannelB)
	if got == s.vector {
		t.Error("RR2 on channel B did not encode status")
	}
}

func TestDCDSetsRR3Ext(t *testing.T) {
	s, _ := newTest()
	s.SetDCD(ChannelB, true)
	s.ptr[ChannelB] = 3
	if s.ReadControl(ChannelB)&rr3ChannelExt == 0 {
		t.Error("RR3 ext bit not set after SetDCD")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	s, _ := newTest()
	s.WriteControl(ChannelA, 0x02) // select WR2
	s.WriteControl(ChannelA, 0x40) // vector
	s.InputFrame(ChannelB, []byte{0x11, 0x22})
	s.InputFrame(ChannelB, []byte{0x33})
	_ = s.ReadData(ChannelB) // leave the first frame half-drained

	rec := s.Serialize()

	s2, _ := newTest()
	if err := s2.Deserialize(rec); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got := s2.ReadData(ChannelB); got != 0x22 {
		t.Errorf("resumed frame byte = %#x, want 0x22", got)
	}
	if got := s2.ReadData(ChannelB); got != 0x33 {
		t.Errorf("next frame byte = %#x, want 0x33", got)
	}
	if s2.vector != 0x40 {
		t.Errorf("vector = %#x, want 0x40", s2.vector)
	}
}
