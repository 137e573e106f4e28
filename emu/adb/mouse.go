package adb

/*
 * mac68k - ADB and pre-ADB (quadrature) mouse device models
 *
 * Copyright 2024, Richard Cornwell
 */

import "github.com/paleoemu/mac68k/emu/scheduler"

// Mouse is the SE/30 ADB mouse device: accumulated deltas reported via
// Talk R0, zeroed on delivery.
type Mouse struct {
	addr      int
	handlerID uint8
	dx, dy    int
	buttonDown bool
}

// NewMouse constructs an ADB mouse at the default address (3).
func NewMouse() *Mouse {
	return &Mouse{addr: 3, handlerID: 1}
}

// Move accumulates a relative motion event.
func (m *Mouse) Move(dx, dy int) {
	m.dx += dx
	m.dy += dy
}

// SetButton updates the current button state.
func (m *Mouse) SetButton(down bool) { m.buttonDown = down }

// encodeDelta clamps to [-64, 63] and two's-complements to a 7-bit field.
func encodeDelta(d int) uint8 {
	if d > 63 {
		d = 63
	}
	if d < -64 {
		d = -64
	}
	return uint8(d) & 0x7F
}

// Talk implements Device.
func (m *Mouse) Talk(register int) ([]byte, bool) {
	switch register {
	case 0:
		var btn uint8 = 0x80 // bit 7 high: button up (active-low convention).
		if m.buttonDown {
			btn = 0
		}
		b0 := btn | encodeDelta(m.dy)
		b1 := 0x80 | encodeDelta(m.dx)
		m.dx, m.dy = 0, 0
		return []byte{b0, b1}, true
	case 3:
		return []byte{byte(m.addr) & 0x0F, m.handlerID}, true
	}
	return nil, false
}

// Listen implements Device.
func (m *Mouse) Listen(register int, data []byte) {
	if register == 3 && len(data) >= 2 {
		m.addr = int(data[0]) & 0x0F
		m.handlerID = data[1]
	}
}

// HasPending implements Device.
func (m *Mouse) HasPending() bool { return m.dx != 0 || m.dy != 0 }

const quadratureSlotCyc = 10000

// QuadratureCallbacks wires the Plus mouse's two axes to the lines real
// hardware drives: the primary edge per axis is an SCC DCD line, the
// secondary is a VIA port-B bit, and the button is VIA PB3.
type QuadratureCallbacks struct {
	Primary   func(axis int, level bool)
	Secondary func(axis int, level bool)
	Button    func(pressedLevel bool) // Active-low: true means button up.
}

const (
	axisX = 0
	axisY = 1
)

// QuadratureMouse is the Plus-era quadrature mouse: movement deltas drive
// per-axis pulse trains at a fixed slot period, offset by half a slot
// between axes to avoid simultaneous edges.
type QuadratureMouse struct {
	Name string
	sch  *scheduler.Scheduler
	cb   QuadratureCallbacks

	primaryX, primaryY bool
	pendingX, pendingY int
	dirX, dirY         int
	scheduledX, scheduledY bool
}

func NewQuadratureMouse(name string, sch *scheduler.Scheduler, cb QuadratureCallbacks) *QuadratureMouse {
	m := &QuadratureMouse{Name: name, sch: sch, cb: cb}
	sch.RegisterEventType(name, "pulsex", m.pulseX)
	sch.RegisterEventType(name, "pulsey", m.pulseY)
	return m
}

// Move halves the incoming delta to dampen host jitter and queues pulses
// for whichever axes moved.
func (m *QuadratureMouse) Move(dx, dy int) {
	dx /= 2
	dy /= 2
	if dx != 0 {
		m.dirX = sign(dx)
		m.pendingX += abs(dx)
		if !m.scheduledX {
			m.scheduledX = true
			m.sch.Schedule(m.Name, "pulsex", 0, quadratureSlotCyc, 0)
		}
	}
	if dy != 0 {
		m.dirY = sign(dy)
		m.pendingY += abs(dy)
		if !m.scheduledY {
			m.scheduledY = true
			m.sch.Schedule(m.Name, "pulsey", 0, quadratureSlotCyc/2, 0)
		}
	}
}

// SetButton drives PB3, active-low.
func (m *QuadratureMouse) SetButton(pressed bool) {
	if m.cb.Button != nil {
		m.cb.Button(!pressed)
	}
}

func (m *QuadratureMouse) pulseX(_ uint64) {
	if m.pendingX <= 0 {
		m.scheduledX = false
		return
	}
	m.primaryX = !m.primaryX
	if m.cb.Primary != nil {
		m.cb.Primary(axisX, m.primaryX)
	}
	secondary := m.primaryX
	if m.dirX < 0 {
		secondary = !m.primaryX
	}
	if m.cb.Secondary != nil {
		m.cb.Secondary(axisX, secondary)
	}
	m.pendingX--
	m.sch.Schedule(m.Name, "pulsex", 0, quadratureSlotCyc, 0)
}

func (m *QuadratureMouse) pulseY(_ uint64) {
	if m.pendingY <= 0 {
		m.scheduledY = false
		return
	}
	m.primaryY = !m.primaryY
	if m.cb.Primary != nil {
		m.cb.Primary(axisY, m.primaryY)
	}
	// Downward motion: secondary = !primary. Upward: secondary = primary.
	secondary := !m.primaryY
	if m.dirY < 0 {
		secondary = m.primaryY
	}
	if m.cb.Secondary != nil {
		m.cb.Secondary(axisY, secondary)
	}
	m.pendingY--
	m.sch.Schedule(m.Name, "pulsey", 0, quadratureSlotCyc, 0)
}

func sign(v int) int {
	if v < 0 {
		return -1
	}
	return 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
