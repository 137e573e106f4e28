package iwm

/*
 * mac68k - IWM tests.
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"testing"

	"github.com/paleoemu/mac68k/emu/disk"
	"github.com/paleoemu/mac68k/emu/scheduler"
)

type stepCPU struct{ pc uint32 }

func (c *stepCPU) RunSprint(budget *int) { c.pc += uint32(*budget); *budget = 0 }
func (c *stepCPU) CurrentPC() uint32     { return c.pc }

func addr(reg int, set bool) uint32 {
	a := uint32(reg) << 9
	if set {
		a |= 1
	}
	return a
}

func newTestImage() *disk.Image {
	data := make([]byte, 80*12*512)
	return disk.New("test.img", disk.KindFloppy, true, data)
}

// TestGCRSectorRoundTrip: encode a
// track, corrupt the image, flush the track back, and confirm the
// original sector bytes are recovered.
func TestGCRSectorRoundTrip(t *testing.T) {
	img := newTestImage()
	for i := range img.Bytes()[:512] {
		img.Bytes()[i] = byte(i * 7)
	}
	original := append([]byte(nil), img.Bytes()[:512]...)

	track := encodeTrack(img, 0)

	// Corrupt the live image, then flush-decode the GCR track back.
	for i := range img.Bytes()[:512] {
		img.Bytes()[i] = 0
	}
	decodeTrackInto(track, img, 0)

	for i, want := range original {
		if img.Bytes()[i] != want {
			t.Fatalf("byte %d = %#x, want %#x", i, img.Bytes()[i], want)
		}
	}
}

func TestSectorsPerTrackZones(t *testing.T) {
	cases := map[int]int{0: 12, 15: 12, 16: 11, 31: 11, 32: 10, 63: 9, 79: 8}
	for track, want := range cases {
		if got := sectorsPerTrack(track); got != want {
			t.Errorf("sectorsPerTrack(%d) = %d, want %d", track, got, want)
		}
	}
}

func TestInterleaveOrderIsPermutation(t *testing.T) {
	order := interleaveOrder(12)
	seen := make(map[int]bool)
	for _, s := range order {
		if seen[s] {
			t.Fatalf("sector %d appears twice in interleave order", s)
		}
		seen[s] = true
	}
	if len(seen) != 12 {
		t.Errorf("interleave order covers %d sectors, want 12", len(seen))
	}
}

func TestMotorOnArmsSpinUp(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	m := New("iwm0", sch)

	m.Write8(addr(0, true), 0)  // CA0=1
	m.Write8(addr(1, true), 0)  // CA1=1
	m.Write8(addr(2, false), 0) // CA2=0
	m.Write8(addr(3, true), 0)  // LSTRB pulse -> motor toggle (on)

	if m.Ready(0) {
		t.Fatal("drive reported ready immediately after motor on")
	}
	sch.Run(int(spinUpDelayCyc)/4 + 10)
	if !m.Ready(0) {
		t.Error("drive not ready after spin-up delay elapsed")
	}
}

func TestStepAdvancesTrackWithinBounds(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	m := New("iwm0", sch)
	m.drives[0].dirTN = 1

	m.Write8(addr(0, false), 0)
	m.Write8(addr(1, false), 0)
	m.Write8(addr(2, true), 0)
	m.Write8(addr(3, true), 0) // step

	if m.drives[0].track != 1 {
		t.Errorf("track = %d, want 1", m.drives[0].track)
	}
}

func TestEjectFlushesAndClearsImage(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	m := New("iwm0", sch)
	img := newTestImage()
	m.InsertDisk(0, img)

	m.Write8(addr(0, false), 0)
	m.Write8(addr(1, true), 0)
	m.Write8(addr(2, true), 0)
	m.Write8(addr(3, true), 0) // eject

	if m.drives[0].image != nil {
		t.Error("image pointer not cleared after eject")
	}
}

func TestWriteProtectSense(t *testing.T) {
	sch := scheduler.New(&stepCPU{})
	m := New("iwm0", sch)
	img := disk.New("ro.img", disk.KindFloppy, false, make([]byte, 12*512))
	m.InsertDisk(0, img)

	m.ca0, m.ca1, m.ca2 = false, true, true // /WRTPRT lookup
	if !m.senseBit() {
		t.Error("expected /WRTPRT sense true for read-only image")
	}
}
