package adb

/*
 * mac68k - Input device checkpoint records
 */

import (
	"fmt"

	"github.com/paleoemu/mac68k/emu/device"
)

const adbCheckpointVersion = 1

// Serialize writes the transceiver's bus-state machine and any in-flight
// command, listen, or reply bytes.
func (t *Transceiver) Serialize() []byte {
	e := device.NewEncoder(adbCheckpointVersion)
	e.U8(uint8(t.state))
	e.U8(uint8(t.keyboardAddr))
	e.U8(uint8(t.mouseAddr))
	e.U8(uint8(t.pendingType))
	e.U8(uint8(t.pendingAddr))
	e.U8(uint8(t.pendingReg))
	e.Bool(t.haveCmd)
	e.Table(t.listenBuf)
	e.Table(t.replyBytes)
	e.U32(uint32(t.replyPos))
	return e.Bytes()
}

func (t *Transceiver) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, adbCheckpointVersion)
	t.state = State(d.U8())
	t.keyboardAddr = int(d.U8())
	t.mouseAddr = int(d.U8())
	t.pendingType = int(d.U8())
	t.pendingAddr = int(d.U8())
	t.pendingReg = int(d.U8())
	t.haveCmd = d.Bool()
	t.listenBuf = d.Table()
	t.replyBytes = d.Table()
	if len(t.replyBytes) == 0 {
		t.replyBytes = nil
	}
	t.replyPos = int(d.U32())
	if err := d.Err(); err != nil {
		return fmt.Errorf("adb transceiver: %w", err)
	}
	return nil
}

func (k *Keyboard) Serialize() []byte {
	e := device.NewEncoder(adbCheckpointVersion)
	e.U8(uint8(k.addr))
	e.U8(k.handlerID)
	e.Table(k.queue)
	return e.Bytes()
}

func (k *Keyboard) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, adbCheckpointVersion)
	k.addr = int(d.U8())
	k.handlerID = d.U8()
	k.queue = d.Table()
	if len(k.queue) == 0 {
		k.queue = nil
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("adb keyboard: %w", err)
	}
	return nil
}

func (m *Mouse) Serialize() []byte {
	e := device.NewEncoder(adbCheckpointVersion)
	e.U8(uint8(m.addr))
	e.U8(m.handlerID)
	e.I32(int32(m.dx))
	e.I32(int32(m.dy))
	e.Bool(m.buttonDown)
	return e.Bytes()
}

func (m *Mouse) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, adbCheckpointVersion)
	m.addr = int(d.U8())
	m.handlerID = d.U8()
	m.dx = int(d.I32())
	m.dy = int(d.I32())
	m.buttonDown = d.Bool()
	if err := d.Err(); err != nil {
		return fmt.Errorf("adb mouse: %w", err)
	}
	return nil
}

func (k *LegacyKeyboard) Serialize() []byte {
	e := device.NewEncoder(adbCheckpointVersion)
	e.Table(k.queue)
	var pressed [128]byte
	for i, p := range k.pressed {
		if p {
			pressed[i] = 1
		}
	}
	e.Fix(pressed[:])
	e.Bool(k.inquiryPending)
	e.U8(k.pendingReply)
	return e.Bytes()
}

func (k *LegacyKeyboard) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, adbCheckpointVersion)
	k.queue = d.Table()
	if len(k.queue) == 0 {
		k.queue = nil
	}
	var pressed [128]byte
	d.Fix(pressed[:])
	for i := range k.pressed {
		k.pressed[i] = pressed[i] != 0
	}
	k.inquiryPending = d.Bool()
	k.pendingReply = d.U8()
	if err := d.Err(); err != nil {
		return fmt.Errorf("keyboard %s: %w", k.Name, err)
	}
	return nil
}

func (m *QuadratureMouse) Serialize() []byte {
	e := device.NewEncoder(adbCheckpointVersion)
	e.Bool(m.primaryX)
	e.Bool(m.primaryY)
	e.I32(int32(m.pendingX))
	e.I32(int32(m.pendingY))
	e.I32(int32(m.dirX))
	e.I32(int32(m.dirY))
	e.Bool(m.scheduledX)
	e.Bool(m.scheduledY)
	return e.Bytes()
}

func (m *QuadratureMouse) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, adbCheckpointVersion)
	m.primaryX = d.Bool()
	m.primaryY = d.Bool()
	m.pendingX = int(d.I32())
	m.pendingY = int(d.I32())
	m.dirX = int(d.I32())
	m.dirY = int(d.I32())
	m.scheduledX = d.Bool()
	m.scheduledY = d.Bool()
	if err := d.Err(); err != nil {
		return fmt.Errorf("mouse %s: %w", m.Name, err)
	}
	return nil
}
