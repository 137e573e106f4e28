// Package machine wires the scheduler, memory map, CPU, and peripheral
// devices into the two machine models this core supports (Mac Plus and
// Mac SE/30). Cross-device coupling is by direct call: VIA output
// callback -> ADB; ADB -> VIA shift register; SCC/VIA IRQ callback ->
// machine IRQ aggregator; mouse event -> SCC DCD + VIA input.
package machine

/*
 * mac68k - Machine assembly
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"fmt"
	"strings"

	"github.com/paleoemu/mac68k/emu/adb"
	"github.com/paleoemu/mac68k/emu/asc"
	"github.com/paleoemu/mac68k/emu/checkpoint"
	"github.com/paleoemu/mac68k/emu/cpu"
	"github.com/paleoemu/mac68k/emu/debug"
	"github.com/paleoemu/mac68k/emu/disk"
	"github.com/paleoemu/mac68k/emu/iwm"
	"github.com/paleoemu/mac68k/emu/memmap"
	"github.com/paleoemu/mac68k/emu/rtc"
	"github.com/paleoemu/mac68k/emu/scc"
	"github.com/paleoemu/mac68k/emu/scheduler"
	"github.com/paleoemu/mac68k/emu/scsi"
	"github.com/paleoemu/mac68k/emu/sound"
	"github.com/paleoemu/mac68k/emu/via"
)

// Model selects which peripheral complement a Machine assembles.
type Model int

const (
	ModelPlus Model = iota
	ModelSE30
)

// Address ranges devices are mapped at. These follow the real Mac Plus/
// SE/30 bus layout closely enough to exercise the emu/memmap range
// decode path; exact overlay/slot-space aliasing a real ROM depends on
// is out of scope.
const (
	romBase = 0x00400000
	romSize = 0x00100000

	// Device ranges sit well above any RAM/ROM configuration this core
	// supports (max 4 MiB RAM), spaced far enough apart that each
	// device's own internal address-bit decode (its "reg(addr)" helper)
	// can never bleed into its neighbor.
	viaBase = 0x00F00000
	viaSize = 0x00002000

	via2Base = 0x00F10000 // SE/30 second VIA.
	via2Size = 0x00002000

	sccBase = 0x00F20000 // Decoded by adapters.sccMMIO via low address bits.
	sccSize = 0x00002000

	iwmBase = 0x00F30000
	iwmSize = 0x00002000

	scsiBase = 0x00F40000
	scsiSize = 0x00000020

	ascBase = 0x00F50000
	ascSize = 0x00001000 // 0x800 SRAM window + registers from 0x800 up.

	vblPeriodCycles = scheduler.ReferenceHz / 60 // approximate 60 Hz VBL.
)

// Machine owns every device instance for one running emulated computer.
type Machine struct {
	Model Model

	sch *scheduler.Scheduler
	mem *memmap.MemoryMap
	cpu *cpu.CPU

	via0 *via.VIA
	via1 *via.VIA // SE/30 only.
	scc  *scc.SCC
	iwm  iwm.Controller // *iwm.IWM (Plus) or *iwm.SWIM (SE/30, adds ISM/MFM).
	scsi *scsi.Bus
	rtc  *rtc.RTC
	asc  *asc.ASC      // SE/30 only.
	snd  *sound.Source // Plus only.

	adbBus    *adb.Transceiver // SE/30 only.
	adbKbd    *adb.Keyboard
	adbMouse  *adb.Mouse
	legacyKbd *adb.LegacyKeyboard  // Plus only.
	quadMouse *adb.QuadratureMouse // Plus only.
	plusPortB uint8                // shadow of VIA0 port-B external input bits (Plus).
	via0PortA uint8                // shadow of VIA0 port-A external input bits (RTC data line).

	irq *irqAggregator

	dbg *debug.Debugger

	ram    []byte
	ramTop uint32

	// MaxSpeed/RealTime/HardwareAccuracy host-pacing state.
	vblSecondsEWMA  float64
	loopSecondsEWMA float64
	hwAccum         float64
}

// New assembles a Machine for the given model with ramSize bytes of RAM
// and the supplied ROM image mapped at romBase.
func New(model Model, ramSize int, rom []byte) (*Machine, error) {
	m := &Machine{Model: model, ram: make([]byte, ramSize), ramTop: uint32(ramSize)}

	m.mem = memmap.New()
	m.mem.Add(&memmap.Range{Base: 0, Size: uint32(ramSize), Name: "ram", Bytes: m.ram, Write: true})
	if len(rom) > 0 {
		romBytes := make([]byte, len(rom))
		copy(romBytes, rom)
		m.mem.Add(&memmap.Range{Base: romBase, Size: uint32(len(romBytes)), Name: "rom", Bytes: romBytes, Write: false})
	}

	m.cpu = cpu.New(m.mem)
	m.sch = scheduler.New(m.cpu)

	m.irq = &irqAggregator{deliver: func(level uint8) {
		var vec *uint8
		m.cpu.RequestInterrupt(level, vec)
	}}

	m.via0 = via.New("via0", m.sch, via.Callbacks{
		IRQ: func(asserted bool) { m.irq.set(irqVIA1, asserted) },
		// PortBOutput and ShiftOut only matter on the SE/30, where
		// software drives the ADB state lines and shift register through
		// this VIA. m.adbBus is nil on the Plus, where the
		// keyboard/mouse instead use the InputSR path directly.
		PortBOutput: func(driven uint8) {
			if m.adbBus == nil {
				return
			}
			st1 := driven&0x20 != 0
			st0 := driven&0x10 != 0
			m.adbBus.SetState(st1, st0)
		},
		ShiftOut: func(b uint8) {
			if m.adbBus == nil {
				return
			}
			m.adbBus.HandleShiftOut(b)
		},
		// PortAOutput bit-bangs the RTC's serial protocol: PA2 enable,
		// PA1 clock, PA0 data. The data line is bidirectional on real
		// hardware via a DDR flip; this core approximates that by
		// always writing the RTC's current output bit back into the VIA's
		// port-A input shadow after processing the clock edge.
		PortAOutput: func(driven uint8) {
			m.rtc.SetEnable(driven&0x04 != 0)
			out := m.rtc.SetClock(driven&0x02 != 0, driven&0x01 != 0)
			m.setVia0PortABit(0x01, out)
			// On the Plus the same port also carries the sound volume
			// (bits 5:3 here) and the main/alternate buffer select
			// (bit 6); see DESIGN.md for this port's pin assignment.
			if m.snd != nil {
				m.snd.SetVolume((driven >> 3) & 0x7)
				m.snd.SetBuffer(driven&0x40 != 0)
			}
		},
	})
	m.mem.Add(&memmap.Range{Base: viaBase, Size: viaSize, Name: "via0", Handler: m.via0})

	m.scc = scc.New("scc", m.sch, scc.Callbacks{
		IRQ: func(asserted bool) { m.irq.set(irqSCC, asserted) },
	})
	m.mem.Add(&memmap.Range{Base: sccBase, Size: sccSize, Name: "scc", Handler: &sccMMIO{s: m.scc}})

	if model == ModelSE30 {
		m.iwm = iwm.NewSWIM("iwm", m.sch) // SE/30's SWIM adds ISM/MFM atop IWM's GCR.
	} else {
		m.iwm = iwm.New("iwm", m.sch)
	}
	m.mem.Add(&memmap.Range{Base: iwmBase, Size: iwmSize, Name: "iwm", Handler: m.iwm})

	m.scsi = scsi.New()
	m.mem.Add(&memmap.Range{Base: scsiBase, Size: scsiSize, Name: "scsi", Handler: &scsiMMIO{b: m.scsi}})

	m.rtc = rtc.New("rtc", m.sch, rtc.Callbacks{
		OneSecondPulse: func(asserted bool) { m.via0.SetCA2(asserted) },
	}, 0)

	switch model {
	case ModelSE30:
		if err := m.wireSE30(); err != nil {
			return nil, err
		}
	case ModelPlus:
		m.wirePlus()
	default:
		return nil, fmt.Errorf("machine: unknown model %d", model)
	}

	return m, nil
}

// wireSE30 adds the second VIA, the ASC sound chip, and the ADB
// transceiver + keyboard + mouse pair.
func (m *Machine) wireSE30() error {
	m.via1 = via.New("via1", m.sch, via.Callbacks{
		IRQ: func(asserted bool) { m.irq.set(irqVIA2, asserted) },
	})
	m.mem.Add(&memmap.Range{Base: via2Base, Size: via2Size, Name: "via1", Handler: m.via1})

	m.asc = asc.New(asc.Callbacks{
		IRQ: func(asserted bool) { m.via1.SetCB1(asserted) },
	})
	m.mem.Add(&memmap.Range{Base: ascBase, Size: ascSize, Name: "asc", Handler: &ascMMIO{a: m.asc}})

	m.adbKbd = adb.NewKeyboard()
	m.adbMouse = adb.NewMouse()
	m.adbBus = adb.New(adb.Callbacks{
		InputSR: m.via0.InputSR,
		// SRQ has no dedicated model pin in this core and is wired onto
		// VIA0's CA2. The RTC's one-second pulse (wired in New for both
		// models) drives the same input, so on the SE/30 the two share
		// it. See DESIGN.md for the tradeoff.
		SRQ: m.via0.SetCA2,
	}, m.adbKbd, m.adbMouse)

	return nil
}

// wirePlus adds the legacy keyboard and quadrature mouse and the VBL
// sound driver.
func (m *Machine) wirePlus() {
	m.snd = sound.New(m.mem, m.ramTop, sound.Callbacks{})

	m.legacyKbd = adb.NewLegacyKeyboard("kbd", m.sch, adb.LegacyCallbacks{
		Reply: m.via0.InputSR,
	})

	m.quadMouse = adb.NewQuadratureMouse("mouse", m.sch, adb.QuadratureCallbacks{
		Primary: func(axis int, level bool) {
			if axis == 0 {
				m.scc.SetDCD(scc.ChannelB, level)
			} else {
				m.scc.SetDCD(scc.ChannelA, level)
			}
		},
		Secondary: func(axis int, level bool) {
			bit := uint8(0x10)
			if axis == 0 {
				bit = 0x20
			}
			m.setPlusPortBBit(bit, level)
		},
		Button: func(up bool) { m.setPlusPortBBit(0x08, up) },
	})
}

// SetSoundSink attaches a host audio sink on the Plus model; a no-op on
// the SE/30, which renders through the ASC's RenderFrame pull API
// instead.
func (m *Machine) SetSoundSink(fn func(samples []uint8, volume uint8)) {
	if m.snd != nil {
		m.snd.SetEmit(fn)
	}
}

func (m *Machine) setVia0PortABit(bit uint8, level bool) {
	if level {
		m.via0PortA |= bit
	} else {
		m.via0PortA &^= bit
	}
	m.via0.SetPortA(m.via0PortA)
}

func (m *Machine) setPlusPortBBit(bit uint8, level bool) {
	if level {
		m.plusPortB |= bit
	} else {
		m.plusPortB &^= bit
	}
	m.via0.SetPortB(m.plusPortB)
}

// InsertFloppy mounts img in the numbered IWM drive.
func (m *Machine) InsertFloppy(drive int, img *disk.Image) {
	m.iwm.InsertDisk(drive, img)
}

// AttachSCSI attaches img as SCSI target id.
func (m *Machine) AttachSCSI(id int, img *disk.Image) {
	m.scsi.Attach(id, img)
}

// EjectFloppy flushes and unmounts the image in drive.
func (m *Machine) EjectFloppy(drive int) *disk.Image {
	return m.iwm.EjectDisk(drive)
}

// DetachSCSI unwires the target at SCSI id and returns its image, if any.
func (m *Machine) DetachSCSI(id int) *disk.Image {
	t := m.scsi.Detach(id)
	img, _ := t.(*disk.Image)
	return img
}

// SetDebugger installs the optional breakpoint/trace collaborator.
func (m *Machine) SetDebugger(d *debug.Debugger) {
	m.dbg = d
	m.sch.SetDebugger(d)
}

// Debug routes a "DEBUG <category> <option>..." config directive
// (config/debugconfig) to the named device's own Debug(option) method,
// toggling device-internal debug flags distinct from the util/debug
// per-category log level.
func (m *Machine) Debug(category string, option string) error {
	switch strings.ToUpper(category) {
	case "VIA", "VIA1":
		return m.via0.Debug(option)
	case "VIA2":
		if m.via1 == nil {
			return fmt.Errorf("machine: VIA2 not present on this model")
		}
		return m.via1.Debug(option)
	case "SCC":
		return m.scc.Debug(option)
	case "IWM":
		return m.iwm.Debug(option)
	case "SCSI":
		return m.scsi.Debug(option)
	case "RTC":
		return m.rtc.Debug(option)
	case "ASC":
		if m.asc == nil {
			return fmt.Errorf("machine: ASC not present on this model")
		}
		return m.asc.Debug(option)
	case "ADB":
		if m.adbBus == nil {
			return fmt.Errorf("machine: ADB not present on this model")
		}
		return fmt.Errorf("adb: unknown debug option %q", option)
	default:
		return fmt.Errorf("machine: unknown debug category %q", category)
	}
}

// Debugger returns the installed breakpoint/trace collaborator, or nil if
// SetDebugger was never called.
func (m *Machine) Debugger() *debug.Debugger { return m.dbg }

// Step runs the scheduler for exactly n instructions, for the "step"
// console command; MainLoop is the normal host-driven entry point.
func (m *Machine) Step(n int) int { return m.sch.Run(n) }

// KeyEvent dispatches a host key press/release to whichever keyboard
// model owns.
func (m *Machine) KeyEvent(code uint8, down bool) {
	if m.Model == ModelSE30 {
		m.adbKbd.KeyEvent(code, down)
		return
	}
	m.legacyKbd.KeyEvent(code, down)
}

// MouseMove dispatches a host mouse delta to whichever mouse model owns.
func (m *Machine) MouseMove(dx, dy int) {
	if m.Model == ModelSE30 {
		m.adbMouse.Move(dx, dy)
		return
	}
	m.quadMouse.Move(dx, dy)
}

// MouseButton dispatches a host mouse button edge.
func (m *Machine) MouseButton(down bool) {
	if m.Model == ModelSE30 {
		m.adbMouse.SetButton(down)
		return
	}
	m.quadMouse.SetButton(down)
}

// Screen geometry: 1-bit packed, 512x342,
// row-major, MSB = leftmost pixel, 1 = black. The buffer lives at a fixed
// offset below the top of RAM, where the Plus ROM places its main screen.
const (
	screenWidth      = 512
	screenHeight     = 342
	screenBytes      = screenWidth * screenHeight / 8
	screenMainOffset = 0x5900 // main screen base = ramTop - this
)

// Framebuffer returns the live 1-bit packed screen buffer as a read-only
// view into guest RAM. Callers must not write through it.
func (m *Machine) Framebuffer() []byte {
	if m.ramTop < screenMainOffset {
		return nil
	}
	base := m.ramTop - screenMainOffset
	return m.ram[base : base+screenBytes]
}

// TriggerVBL fires the once-per-frame hooks devices hang off vertical
// blank: the Plus sound driver's buffer extraction.
func (m *Machine) TriggerVBL() {
	if m.snd != nil {
		m.snd.TriggerVBL()
	}
}

// vblPeriodInstr converts the fixed-cycle VBL period into an instruction
// budget at the scheduler's current CPI.
func (m *Machine) vblPeriodInstr() int {
	cpi := uint64(m.sch.Mode().CPI())
	return int(vblPeriodCycles / cpi)
}

// MainLoop is the host-coupling entry point: given the host's
// elapsed wall-clock time since the last call, it runs zero or more VBL
// periods depending on the scheduler's mode.
func (m *Machine) MainLoop(hostSeconds float64) {
	switch m.sch.Mode() {
	case scheduler.RealTime:
		m.mainLoopRealTime(hostSeconds)
	case scheduler.HardwareAccuracy:
		m.mainLoopHardwareAccuracy(hostSeconds)
	default:
		m.mainLoopMaxSpeed(hostSeconds)
	}
}

const ewmaAlpha = 0.1

func ewma(avg, sample float64) float64 {
	if avg == 0 {
		return sample
	}
	return avg + ewmaAlpha*(sample-avg)
}

func (m *Machine) runOneVBL() {
	m.TriggerVBL()
	m.sch.Run(m.vblPeriodInstr())
}

// mainLoopRealTime runs exactly one VBL per host frame when the frame is
// within +-50% of a VBL period; otherwise it skips, avoiding a runaway
// catch-up burst on a stalled host loop.
func (m *Machine) mainLoopRealTime(hostSeconds float64) {
	vblSeconds := float64(vblPeriodCycles) / scheduler.ReferenceHz
	m.vblSecondsEWMA = ewma(m.vblSecondsEWMA, vblSeconds)
	if hostSeconds < vblSeconds*0.5 || hostSeconds > vblSeconds*1.5 {
		return
	}
	m.runOneVBL()
}

// mainLoopMaxSpeed runs as many VBLs as fit in roughly half of the
// observed host loop time, using an EWMA estimate of seconds-per-VBL.
func (m *Machine) mainLoopMaxSpeed(hostSeconds float64) {
	m.loopSecondsEWMA = ewma(m.loopSecondsEWMA, hostSeconds)
	vblSeconds := float64(vblPeriodCycles) / scheduler.ReferenceHz
	m.vblSecondsEWMA = ewma(m.vblSecondsEWMA, vblSeconds)
	if m.vblSecondsEWMA <= 0 {
		m.runOneVBL()
		return
	}
	budget := m.loopSecondsEWMA * 0.5
	count := int(budget / m.vblSecondsEWMA)
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		m.runOneVBL()
	}
}

// mainLoopHardwareAccuracy accumulates host elapsed time and consumes it
// in whole-VBL increments, preserving long-run wall-clock alignment even
// when individual host frames jitter.
func (m *Machine) mainLoopHardwareAccuracy(hostSeconds float64) {
	vblSeconds := float64(vblPeriodCycles) / scheduler.ReferenceHz
	m.hwAccum += hostSeconds
	for m.hwAccum >= vblSeconds {
		m.runOneVBL()
		m.hwAccum -= vblSeconds
	}
}

// --- Checkpoint ---

// component adapts a device's Serialize method to checkpoint.Component
// without each device importing the checkpoint package.
type component struct {
	name string
	ser  func() []byte
}

func (c component) Name() string      { return c.name }
func (c component) Serialize() []byte { return c.ser() }

func cpuRecord(c *cpu.CPU) []byte {
	buf := make([]byte, c.SerializeSize())
	_ = c.Serialize(buf)
	return buf
}

func (m *Machine) machineRecord() []byte {
	return []byte{m.plusPortB, m.via0PortA}
}

// Checkpoint assembles a full-machine snapshot buffer: the CPU, RAM,
// every device's plain-data record, the mounted disk images (keyed by
// drive/target slot, identified by filename), and finally the scheduler
// with its pending event queue. The floppy controller's record is built
// before the disk records so its dirty-track flush lands in the image
// bytes that get written.
func (m *Machine) Checkpoint() []byte {
	components := []checkpoint.Component{
		component{"cpu", func() []byte { return cpuRecord(m.cpu) }},
		component{"ram", func() []byte { return m.ram }},
		component{"machine", m.machineRecord},
		component{"via0", m.via0.Serialize},
		component{"scc", m.scc.Serialize},
		component{"iwm", m.iwm.Serialize},
		component{"scsi", m.scsi.Serialize},
		component{"rtc", m.rtc.Serialize},
	}
	if m.Model == ModelSE30 {
		components = append(components,
			component{"via1", m.via1.Serialize},
			component{"asc", m.asc.Serialize},
			component{"adb", m.adbBus.Serialize},
			component{"adbkbd", m.adbKbd.Serialize},
			component{"adbmouse", m.adbMouse.Serialize},
		)
	} else {
		components = append(components,
			component{"kbd", m.legacyKbd.Serialize},
			component{"mouse", m.quadMouse.Serialize},
		)
	}
	for d := 0; d < 2; d++ {
		if img := m.iwm.DiskAt(d); img != nil {
			components = append(components,
				component{fmt.Sprintf("floppy%d", d), img.Serialize})
		}
	}
	for id := 0; id < 8; id++ {
		if img, ok := m.scsi.TargetAt(id).(*disk.Image); ok {
			components = append(components,
				component{fmt.Sprintf("scsidisk%d", id), img.Serialize})
		}
	}
	components = append(components, component{"scheduler", m.sch.Serialize})
	return checkpoint.Build(components)
}

// restoreDevice applies one named record through the matching device's
// Deserialize, treating a missing record as "device keeps its reset
// state" so a Plus checkpoint restores into a Plus machine without
// phantom SE/30 records.
func restoreDevice(byName map[string][]byte, name string, apply func([]byte) error) error {
	data, ok := byName[name]
	if !ok {
		return nil
	}
	if err := apply(data); err != nil {
		return fmt.Errorf("machine: restore %s: %w", name, err)
	}
	return nil
}

// Restore applies a checkpoint buffer built by Checkpoint. Devices are
// restored first; the scheduler comes last so its Deserialize/Start pair
// resolves event callback names against the registry the devices
// populated during New. Host-relative pacing
// state (the EWMA estimators) resets to fresh defaults rather than
// restoring.
func (m *Machine) Restore(buf []byte) error {
	records, err := checkpoint.Parse(buf)
	if err != nil {
		return err
	}
	byName := checkpoint.Lookup(records)

	if data, ok := byName["ram"]; ok {
		if len(data) != len(m.ram) {
			return fmt.Errorf("machine: restore ram: %d bytes, machine has %d", len(data), len(m.ram))
		}
		copy(m.ram, data)
	}
	if data, ok := byName["machine"]; ok {
		if len(data) != 2 {
			return fmt.Errorf("machine: restore machine record: %d bytes, want 2", len(data))
		}
		m.plusPortB = data[0]
		m.via0PortA = data[1]
	}

	type restoreStep struct {
		name  string
		apply func([]byte) error
	}
	steps := []restoreStep{
		{"cpu", m.cpu.Deserialize},
		{"via0", m.via0.Deserialize},
		{"scc", m.scc.Deserialize},
		{"iwm", m.iwm.Deserialize},
		{"scsi", m.scsi.Deserialize},
		{"rtc", m.rtc.Deserialize},
	}
	if m.Model == ModelSE30 {
		steps = append(steps,
			restoreStep{"via1", m.via1.Deserialize},
			restoreStep{"asc", m.asc.Deserialize},
			restoreStep{"adb", m.adbBus.Deserialize},
			restoreStep{"adbkbd", m.adbKbd.Deserialize},
			restoreStep{"adbmouse", m.adbMouse.Deserialize},
		)
	} else {
		steps = append(steps,
			restoreStep{"kbd", m.legacyKbd.Deserialize},
			restoreStep{"mouse", m.quadMouse.Deserialize},
		)
	}
	for _, st := range steps {
		if err := restoreDevice(byName, st.name, st.apply); err != nil {
			return err
		}
	}

	for d := 0; d < 2; d++ {
		if data, ok := byName[fmt.Sprintf("floppy%d", d)]; ok {
			img, err := disk.Restore(data)
			if err != nil {
				return fmt.Errorf("machine: restore floppy%d: %w", d, err)
			}
			m.iwm.InsertDisk(d, img)
		}
	}
	for id := 0; id < 8; id++ {
		if data, ok := byName[fmt.Sprintf("scsidisk%d", id)]; ok {
			img, err := disk.Restore(data)
			if err != nil {
				return fmt.Errorf("machine: restore scsidisk%d: %w", id, err)
			}
			m.scsi.Attach(id, img)
		}
	}

	if data, ok := byName["scheduler"]; ok {
		pr, err := scheduler.Deserialize(data)
		if err != nil {
			return fmt.Errorf("machine: restore scheduler: %w", err)
		}
		if err := m.sch.Start(pr); err != nil {
			return fmt.Errorf("machine: restore scheduler: %w", err)
		}
	}

	m.vblSecondsEWMA = 0
	m.loopSecondsEWMA = 0
	m.hwAccum = 0
	return nil
}
