package machine

/*
 * mac68k - machine assembly tests.
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"bytes"
	"testing"

	"github.com/paleoemu/mac68k/emu/debug"
	"github.com/paleoemu/mac68k/emu/disk"
)

type fakeDisasm struct{}

func (fakeDisasm) Disassemble(pc uint32) string { return "" }

type fakeLogger struct{}

func (fakeLogger) WouldLog(string, int) bool { return true }
func (fakeLogger) Log(string)                {}

func TestNewPlusWiresLegacyInputDevices(t *testing.T) {
	m, err := New(ModelPlus, 512*1024, nil)
	if err != nil {
		t.Fatalf("New(Plus): %v", err)
	}
	if m.via0 == nil || m.scc == nil || m.iwm == nil || m.scsi == nil || m.rtc == nil {
		t.Fatal("Plus machine missing a core device")
	}
	if m.snd == nil || m.legacyKbd == nil || m.quadMouse == nil {
		t.Fatal("Plus machine missing its sound/input devices")
	}
	if m.via1 != nil || m.asc != nil || m.adbBus != nil {
		t.Error("Plus machine should not construct SE/30-only devices")
	}
}

func TestNewSE30WiresADBDevices(t *testing.T) {
	m, err := New(ModelSE30, 4*1024*1024, nil)
	if err != nil {
		t.Fatalf("New(SE30): %v", err)
	}
	if m.via1 == nil || m.asc == nil || m.adbBus == nil || m.adbKbd == nil || m.adbMouse == nil {
		t.Fatal("SE/30 machine missing an ADB-era device")
	}
	if m.snd != nil || m.legacyKbd != nil || m.quadMouse != nil {
		t.Error("SE/30 machine should not construct Plus-only devices")
	}
}

func TestMouseMoveRoutesByModel(t *testing.T) {
	se30, _ := New(ModelSE30, 4*1024*1024, nil)
	se30.MouseMove(5, -5)
	data, ok := se30.adbMouse.Talk(0)
	if !ok || len(data) != 2 {
		t.Fatalf("expected ADB mouse register 0 reply, got %v ok=%v", data, ok)
	}

	plus, _ := New(ModelPlus, 512*1024, nil)
	plus.MouseMove(4, 0) // should not panic even though it drives SCC/VIA lines async.
}

func TestIRQAggregatorPicksHighestAssertedLevel(t *testing.T) {
	var delivered uint8
	a := &irqAggregator{deliver: func(level uint8) { delivered = level }}

	a.set(irqVIA1, true)
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
	a.set(irqSCC, true)
	if delivered != 2 {
		t.Fatalf("delivered = %d, want 2 (SCC outranks VIA1)", delivered)
	}
	a.set(irqSCC, false)
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1 after SCC clears", delivered)
	}
	a.set(irqVIA1, false)
	if delivered != 0 {
		t.Fatalf("delivered = %d, want 0 once nothing is asserted", delivered)
	}
}

func TestDebugRoutesToDeviceAndRejectsMissingModel(t *testing.T) {
	plus, _ := New(ModelPlus, 512*1024, nil)
	if err := plus.Debug("VIA", "bogus"); err == nil {
		t.Error("expected an error for an unknown VIA debug option")
	}
	if err := plus.Debug("VIA2", "bogus"); err == nil {
		t.Error("VIA2 should not be present on the Plus model")
	}
	if err := plus.Debug("BOGUS", "x"); err == nil {
		t.Error("expected an error for an unknown debug category")
	}

	se30, _ := New(ModelSE30, 4*1024*1024, nil)
	if err := se30.Debug("ASC", "bogus"); err == nil {
		t.Error("expected an error for an unknown ASC debug option")
	}
	if err := se30.Debug("SCSI", "bogus"); err == nil {
		t.Error("expected an error for an unknown SCSI debug option")
	}
}

func TestDebuggerStepAndEjectDetach(t *testing.T) {
	m, _ := New(ModelPlus, 512*1024, nil)

	if m.Debugger() != nil {
		t.Fatal("Debugger should be nil before SetDebugger is called")
	}
	m.SetDebugger(debug.New(fakeDisasm{}, fakeLogger{}, 16, 16))
	if m.Debugger() == nil {
		t.Fatal("Debugger should be set after SetDebugger")
	}

	m.Step(1)

	img := disk.New("floppy.img", disk.KindFloppy, true, make([]byte, 800*1024))
	m.InsertFloppy(0, img)
	if got := m.EjectFloppy(0); got != img {
		t.Errorf("EjectFloppy returned %v, want the inserted image", got)
	}
	if got := m.EjectFloppy(0); got != nil {
		t.Errorf("EjectFloppy on an empty drive returned %v, want nil", got)
	}

	scsiImg := disk.New("disk.img", disk.KindHardDisk, true, make([]byte, 20*1024*1024))
	m.AttachSCSI(0, scsiImg)
	if got := m.DetachSCSI(0); got != scsiImg {
		t.Errorf("DetachSCSI returned %v, want the attached image", got)
	}
	if got := m.DetachSCSI(0); got != nil {
		t.Errorf("DetachSCSI on an empty id returned %v, want nil", got)
	}
}

func TestCheckpointRestoreRoundTrip(t *testing.T) {
	m, _ := New(ModelPlus, 512*1024, nil)
	buf := m.Checkpoint()
	if len(buf) == 0 {
		t.Fatal("Checkpoint produced an empty buffer")
	}
	if err := m.Restore(buf); err != nil {
		t.Fatalf("Restore: %v", err)
	}
}

// TestCheckpointRestoreIntoFreshMachine: populate a machine's RAM,
// device registers, and
// mounted disks, snapshot it, restore into a brand-new machine of the
// same model, and require every device record and the framebuffer to
// come back byte-identical.
func TestCheckpointRestoreIntoFreshMachine(t *testing.T) {
	const ramSize = 512 * 1024
	m1, err := New(ModelPlus, ramSize, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Paint a recognizable framebuffer pattern.
	if m1.Framebuffer() == nil {
		t.Fatal("Framebuffer returned nil for a 512K machine")
	}
	base := int(m1.ramTop) - screenMainOffset
	for i := 0; i < screenBytes; i++ {
		m1.ram[base+i] = byte(i)
	}

	// Touch device registers: arm VIA T1 (this also leaves a pending
	// scheduler event to round-trip) and poke the SCC vector.
	m1.via0.Write8(uint32(4<<9), 0xFF)  // T1 latch low
	m1.via0.Write8(uint32(5<<9), 0x12)  // T1 counter high: arms the timer
	m1.scc.WriteControl(0, 0x02)        // select WR2
	m1.scc.WriteControl(0, 0x40)        // vector

	// Mount disks with patterned contents.
	fdata := make([]byte, 400*1024)
	for i := range fdata {
		fdata[i] = byte(i * 7)
	}
	m1.InsertFloppy(0, disk.New("boot.img", disk.KindFloppy, true, fdata))
	sdata := make([]byte, 64*1024)
	for i := range sdata {
		sdata[i] = byte(i * 3)
	}
	m1.AttachSCSI(2, disk.New("hd.img", disk.KindHardDisk, true, sdata))

	buf := m1.Checkpoint()

	m2, err := New(ModelPlus, ramSize, nil)
	if err != nil {
		t.Fatalf("New (fresh): %v", err)
	}
	if err := m2.Restore(buf); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	records := map[string][2][]byte{
		"via0":  {m1.via0.Serialize(), m2.via0.Serialize()},
		"scc":   {m1.scc.Serialize(), m2.scc.Serialize()},
		"iwm":   {m1.iwm.Serialize(), m2.iwm.Serialize()},
		"scsi":  {m1.scsi.Serialize(), m2.scsi.Serialize()},
		"rtc":   {m1.rtc.Serialize(), m2.rtc.Serialize()},
		"kbd":   {m1.legacyKbd.Serialize(), m2.legacyKbd.Serialize()},
		"mouse": {m1.quadMouse.Serialize(), m2.quadMouse.Serialize()},
	}
	for name, pair := range records {
		if !bytes.Equal(pair[0], pair[1]) {
			t.Errorf("%s record differs after restore", name)
		}
	}
	if !bytes.Equal(m1.Framebuffer(), m2.Framebuffer()) {
		t.Error("framebuffer differs after restore")
	}
	if m1.sch.Cycles() != m2.sch.Cycles() {
		t.Errorf("cycles = %d after restore, want %d", m2.sch.Cycles(), m1.sch.Cycles())
	}
	if !m2.sch.IsScheduled("via0", "t1expire") {
		t.Error("pending VIA T1 event lost across restore")
	}

	img := m2.iwm.DiskAt(0)
	if img == nil {
		t.Fatal("floppy image lost across restore")
	}
	if img.Filename() != "boot.img" {
		t.Errorf("floppy filename = %q, want boot.img", img.Filename())
	}
	if !bytes.Equal(img.Bytes(), fdata) {
		t.Error("floppy contents differ after restore")
	}
	hd, ok := m2.scsi.TargetAt(2).(*disk.Image)
	if !ok {
		t.Fatal("SCSI target lost across restore")
	}
	if !bytes.Equal(hd.Bytes(), sdata) {
		t.Error("SCSI disk contents differ after restore")
	}
}

func TestCheckpointRestoreSE30Devices(t *testing.T) {
	m1, _ := New(ModelSE30, 4*1024*1024, nil)

	// Put the ASC into FIFO mode and push a few samples so its SRAM and
	// FIFO counters have non-reset values to round-trip.
	m1.asc.Write8(ascRegModeAddr, 1)
	for i := 0; i < 16; i++ {
		m1.asc.Write8(uint32(i), byte(0x80+i))
	}
	m1.adbKbd.KeyEvent(0x0B, true)

	buf := m1.Checkpoint()

	m2, _ := New(ModelSE30, 4*1024*1024, nil)
	if err := m2.Restore(buf); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !bytes.Equal(m1.asc.Serialize(), m2.asc.Serialize()) {
		t.Error("ASC record differs after restore")
	}
	if !bytes.Equal(m1.adbKbd.Serialize(), m2.adbKbd.Serialize()) {
		t.Error("ADB keyboard record differs after restore")
	}
	if !bytes.Equal(m1.adbBus.Serialize(), m2.adbBus.Serialize()) {
		t.Error("ADB transceiver record differs after restore")
	}
}

// ascRegModeAddr is the mode register's offset inside the ASC window
// (registers begin at 0x800).
const ascRegModeAddr = 0x800 + 0x01
