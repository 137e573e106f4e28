package adb

/*
 * mac68k - ADB transceiver, keyboard, and mouse tests.
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

// TestTalkR0ReturnsQueuedKeyboardBytes sends a command byte selecting
// Talk, address 2 (keyboard), register 0,
// and confirm the queued scancode comes back with 0xFF padding.
func TestTalkR0ReturnsQueuedKeyboardBytes(t *testing.T) {
	kbd := NewKeyboard()
	kbd.KeyEvent(0x41, true)

	var replies []uint8
	tr := New(Callbacks{InputSR: func(b uint8) { replies = append(replies, b) }}, kbd, NewMouse())

	tr.SetState(true, true) // Cmd
	const talkR0 = 0x2<<4 | 0x3<<2 | 0
	tr.HandleShiftOut(talkR0)

	tr.SetState(false, true) // Even: deliver first reply byte
	tr.SetState(true, true)  // back to Cmd (forces re-entry next time)
	tr.SetState(true, false) // Odd: deliver second reply byte

	if len(replies) != 2 {
		t.Fatalf("got %d reply bytes, want 2", len(replies))
	}
	if replies[0] != 0x41 {
		t.Errorf("replies[0] = %#x, want 0x41", replies[0])
	}
	if replies[1] != 0xFF {
		t.Errorf("replies[1] = %#x, want 0xFF padding", replies[1])
	}
}

func TestListenR3UpdatesMouseAddress(t *testing.T) {
	mouse := NewMouse()
	tr := New(Callbacks{}, NewKeyboard(), mouse)

	tr.SetState(true, true) // Cmd
	const listenR3 = 0x3<<4 | 0x2<<2 | 3
	tr.HandleShiftOut(listenR3)

	tr.SetState(false, true) // Even: first data byte
	tr.HandleShiftOut(0x05)  // new address 5
	tr.SetState(true, false) // Odd: second data byte
	tr.HandleShiftOut(0x01)  // handler ID 1

	data, ok := mouse.Talk(3)
	if !ok {
		t.Fatal("mouse Talk R3 returned !ok")
	}
	if data[0] != 0x05 {
		t.Errorf("mouse address = %#x, want 0x05", data[0])
	}
}

func TestMouseRegister0Encoding(t *testing.T) {
	m := NewMouse()
	m.Move(10, -20)
	m.SetButton(true)

	data, ok := m.Talk(0)
	if !ok || len(data) != 2 {
		t.Fatalf("Talk(0) = %v, %v", data, ok)
	}
	if data[0]&0x80 != 0 {
		t.Error("button-down should clear bit 7 of byte 0")
	}
	if data[1]&0x80 == 0 {
		t.Error("byte 1 bit 7 must always be set")
	}
	if m.dx != 0 || m.dy != 0 {
		t.Error("deltas not zeroed after Talk R0")
	}
}

func TestLegacyKeyboardInquiryRespondsOnKeypress(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	var reply uint8
	var got bool
	k := NewLegacyKeyboard("kbd0", sch, LegacyCallbacks{Reply: func(b uint8) { reply = b; got = true }})

	k.Command(legacyInquiry)
	k.KeyEvent('A', true)

	sch.Run(int(legacyResponseDelayCyc)/4 + 10)
	if !got {
		t.Fatal("no reply delivered after keypress satisfied INQUIRY")
	}
	if reply != 0x41 {
		t.Errorf("reply = %#x, want 0x41", reply)
	}
}

func TestLegacyKeyboardModelNumber(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	var reply uint8
	k := NewLegacyKeyboard("kbd0", sch, LegacyCallbacks{Reply: func(b uint8) { reply = b }})
	k.Command(legacyModelNumber)
	sch.Run(int(legacyResponseDelayCyc)/4 + 10)
	if reply != legacyModelReply {
		t.Errorf("reply = %#x, want %#x", reply, legacyModelReply)
	}
}

func TestQuadratureMousePulsesOppositeSecondaryByDirection(t *testing.T) {
	for _, tc := range []struct {
		dx   int
		same bool // secondary equals primary
	}{
		{4, true},   // rightward
		{-4, false}, // leftward
	} {
		sch := scheduler.New(&stepCPU{})
		var primary, xLevels []bool
		m := NewQuadratureMouse("mouse0", sch, QuadratureCallbacks{
			Primary: func(axis int, level bool) {
				if axis == axisX {
					primary = append(primary, level)
				}
			},
			Secondary: func(axis int, level bool) {
				if axis == axisX {
					xLevels = append(xLevels, level)
				}
			},
		})
		m.Move(tc.dx, 0)
		sch.Run(quadratureSlotCyc/4 + 10)
		if len(xLevels) == 0 {
			t.Fatal("no X pulses observed")
		}
		for i := range xLevels {
			if (xLevels[i] == primary[i]) != tc.same {
				t.Errorf("dx=%d pulse %d: primary=%v secondary=%v, want equal=%v", tc.dx, i, primary[i], xLevels[i], tc.same)
			}
		}
	}
}
