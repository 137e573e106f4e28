// Package iwm implements the Integrated Woz Machine floppy controller:
// 16 pseudo-registers addressed through control-line sub-addresses, the
// drive status state machine, the GCR codec and sector layout, and
// step/motor/eject handling.
package iwm

/*
 * mac68k - IWM floppy controller emulation
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"fmt"

	"github.com/paleoemu/mac68k/emu/device"
	"github.com/paleoemu/mac68k/emu/disk"
	"github.com/paleoemu/mac68k/emu/scheduler"
)

const (
	tracksPerDisk  = 80
	spinUpDelayCyc = 400 * (scheduler.ReferenceHz / 1000) // 400ms in cycles
)

// gcr6and2 is the standard 64-entry 6-to-8 GCR codeword table.
var gcr6and2 = [64]byte{
	0x96, 0x97, 0x9A, 0x9B, 0x9D, 0x9E, 0x9F, 0xA6,
	0xA7, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF, 0xB2, 0xB3,
	0xB4, 0xB5, 0xB6, 0xB7, 0xB9, 0xBA, 0xBB, 0xBC,
	0xBD, 0xBE, 0xBF, 0xCB, 0xCD, 0xCE, 0xCF, 0xD3,
	0xD6, 0xD7, 0xD9, 0xDA, 0xDB, 0xDC, 0xDD, 0xDE,
	0xDF, 0xE5, 0xE6, 0xE7, 0xE9, 0xEA, 0xEB, 0xEC,
	0xED, 0xEE, 0xEF, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6,
	0xF7, 0xF9, 0xFA, 0xFB, 0xFC, 0xFD, 0xFE, 0xFF,
}

var gcrDecodeTable = buildDecodeTable()

func buildDecodeTable() map[byte]byte {
	m := make(map[byte]byte, 64)
	for v, enc := range gcr6and2 {
		m[enc] = byte(v)
	}
	return m
}

// sectorsPerTrack implements the zone table: 12 sectors
// for tracks 0-15, decreasing by one per 16-track zone.
func sectorsPerTrack(track int) int {
	zone := track / 16
	n := 12 - zone
	if n < 1 {
		n = 1
	}
	return n
}

// interleaveOrder returns the fixed 2:1 interleave order for a track's
// sector count: order[physicalSlot] is the logical sector number placed
// there.
func interleaveOrder(n int) []int {
	order := make([]int, n)
	filled := make([]bool, n)
	pos := 0
	for s := 0; s < n; s++ {
		for filled[pos] {
			pos = (pos + 1) % n
		}
		order[pos] = s
		filled[pos] = true
		pos = (pos + 2) % n
	}
	return order
}

type driveState struct {
	image     *disk.Image
	track     int
	dirTN     int // Step direction, -1 or +1.
	motorOn   bool
	spinTimer bool // True while spin-up callback is pending.
	tachBase  uint64

	trackGCR   [][]byte // Lazily (re-)encoded per track.
	trackDirty []bool

	trackMFM [][]mfmByte // Lazily synthesized per track, SWIM ISM mode only.
}

func newDriveState() *driveState {
	return &driveState{
		trackGCR:   make([][]byte, tracksPerDisk),
		trackDirty: make([]bool, tracksPerDisk),
		trackMFM:   make([][]mfmByte, tracksPerDisk),
	}
}

// IWM is one controller instance with two drive slots; the SELECT line
// picks which drive the state machine talks to.
type IWM struct {
	Name string
	sch  *scheduler.Scheduler

	drives [2]*driveState
	sel    int // Currently selected drive (0 or 1).

	ca0, ca1, ca2 bool
	lstrb         bool
	enable        bool
	q6, q7        bool

	mode uint8 // Mode register (write-only).

	latchOffset int // Circular offset into the current track's GCR stream.

	writeBufEmpty bool

	// onModeWrite, when non-nil, is notified of every raw mode-register
	// write alongside IWM's own handling of it. SWIM hooks this to watch
	// for the four-consecutive-writes pattern that switches the
	// controller's personality into ISM/MFM mode.
	onModeWrite func(val uint8)
}

func New(name string, sch *scheduler.Scheduler) *IWM {
	m := &IWM{Name: name, sch: sch, writeBufEmpty: true}
	m.drives[0] = newDriveState()
	m.drives[1] = newDriveState()
	sch.RegisterEventType(name, "spinup", m.spinUpComplete)
	return m
}

// InsertDisk mounts an image into drive d (0 or 1).
func (m *IWM) InsertDisk(d int, img *disk.Image) {
	m.drives[d].image = img
	for i := range m.drives[d].trackGCR {
		m.drives[d].trackGCR[i] = nil
		m.drives[d].trackDirty[i] = false
		m.drives[d].trackMFM[i] = nil
	}
}

func reg(addr uint32) int { return int((addr >> 9) & 0xF) }

// Write8 asserts/deasserts the control line the given sub-address maps
// to: even addresses clear, odd addresses set.
func (m *IWM) Write8(addr uint32, val uint8) {
	r := reg(addr)
	set := addr&1 != 0
	switch r {
	case 0:
		m.ca0 = set
	case 1:
		m.ca1 = set
	case 2:
		m.ca2 = set
	case 3:
		m.lstrb = set
		if set {
			m.doCommand()
		}
	case 4:
		m.enable = set
	case 5:
		// SELECT affects drive addressing only, not a pure control latch.
		m.sel = boolToInt(set)
	case 6:
		m.q6 = set
	case 7:
		m.q7 = set
	}
	if m.q6 && m.q7 && set {
		m.mode = val
		if m.onModeWrite != nil {
			m.onModeWrite(val)
		}
	}
	if m.q6 && !m.q7 && set {
		m.writeToData(val)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (m *IWM) Read8(addr uint32) uint8 {
	switch {
	case m.q6 && !m.q7:
		return m.statusRegister()
	case !m.q6 && m.q7:
		return m.handshakeRegister()
	case !m.q6 && !m.q7:
		return m.dataRegister()
	default:
		return 0
	}
}

func (m *IWM) statusRegister() uint8 {
	v := m.mode & 0x1F
	if m.enable {
		v |= 0x20
	}
	if m.senseBit() {
		v |= 0x80
	}
	return v
}

func (m *IWM) handshakeRegister() uint8 {
	var v uint8
	if m.writeBufEmpty {
		v |= 0x80
	}
	return v
}

func (m *IWM) dataRegister() uint8 {
	d := m.drives[m.sel]
	track := m.trackBytes(d)
	if len(track) == 0 {
		return 0
	}
	if m.mode&0x02 != 0 { // latch mode (bit 1 commonly gates this)
		for {
			b := track[m.latchOffset]
			m.latchOffset = (m.latchOffset + 1) % len(track)
			if b&0x80 != 0 {
				return b
			}
		}
	}
	b := track[m.latchOffset]
	m.latchOffset = (m.latchOffset + 1) % len(track)
	return b
}

// writeToData is a stub: write support is not required for the initial
// port, so the handshake register simply reports the
// buffer ready again on the next read.
func (m *IWM) writeToData(val uint8) {
	m.writeBufEmpty = true
}

func (m *IWM) trackBytes(d *driveState) []byte {
	if d.image == nil {
		return nil
	}
	if d.trackGCR[d.track] == nil || d.trackDirty[d.track] {
		d.trackGCR[d.track] = encodeTrack(d.image, d.track)
		d.trackDirty[d.track] = false
	}
	return d.trackGCR[d.track]
}

// senseBit resolves the 4-bit (CA0,CA1,CA2,SEL) drive-status lookup.
func (m *IWM) senseBit() bool {
	d := m.drives[m.sel]
	switch {
	case !m.ca0 && !m.ca1 && !m.ca2: // direction
		return d.dirTN > 0
	case m.ca0 && !m.ca1 && !m.ca2: // step in progress (always settles immediately here)
		return false
	case !m.ca0 && m.ca1 && !m.ca2: // motor
		return d.motorOn
	case m.ca0 && m.ca1 && !m.ca2: // eject in progress
		return false
	case !m.ca0 && !m.ca1 && m.ca2: // /DRVIN (drive installed)
		return false // false == present, active-low semantics folded in by caller
	case m.ca0 && !m.ca1 && m.ca2: // /CSTIN (disk present)
		return d.image == nil
	case !m.ca0 && m.ca1 && m.ca2: // /WRTPRT
		return d.image == nil || !d.image.Writable()
	case m.ca0 && m.ca1 && m.ca2: // /TK0
		return d.track != 0
	}
	return false
}

// doCommand handles an LSTRB pulse: CA0/CA1/CA2/SELECT encode step,
// eject, or motor on/off.
func (m *IWM) doCommand() {
	d := m.drives[m.sel]
	switch {
	case !m.ca0 && !m.ca1 && m.ca2: // step
		d.track += d.dirTN
		if d.track < 0 {
			d.track = 0
		}
		if d.track > tracksPerDisk-1 {
			d.track = tracksPerDisk - 1
		}
	case m.ca0 && !m.ca1 && !m.ca2: // set direction
		if m.q6 {
			d.dirTN = 1
		} else {
			d.dirTN = -1
		}
	case !m.ca0 && m.ca1 && m.ca2: // eject
		m.flushModified(d)
		d.image = nil
	case m.ca0 && m.ca1 && !m.ca2: // motor toggle
		if !d.motorOn {
			d.motorOn = true
			d.spinTimer = true
			m.sch.Schedule(m.Name, "spinup", uint64(m.sel), spinUpDelayCyc, 0)
		} else {
			d.motorOn = false
			d.spinTimer = false
		}
	}
}

func (m *IWM) spinUpComplete(data uint64) {
	m.drives[data].spinTimer = false
}

// Ready reports /READY: false while motor spin-up is pending.
func (m *IWM) Ready(d int) bool {
	return !m.drives[d].spinTimer
}

// DiskAt returns the image mounted in drive d, or nil.
func (m *IWM) DiskAt(d int) *disk.Image { return m.drives[d].image }

// EjectDisk flushes any dirty tracks back to the image and unmounts drive
// d, returning the image that was mounted (nil if the drive was empty).
func (m *IWM) EjectDisk(d int) *disk.Image {
	img := m.drives[d].image
	if img == nil {
		return nil
	}
	m.flushModified(m.drives[d])
	m.drives[d].image = nil
	return img
}

// flushModified re-decodes any GCR track marked dirty back into the
// image's sector data.
func (m *IWM) flushModified(d *driveState) {
	if d.image == nil {
		return
	}
	for t := 0; t < tracksPerDisk; t++ {
		if !d.trackDirty[t] || d.trackGCR[t] == nil {
			continue
		}
		decodeTrackInto(d.trackGCR[t], d.image, t)
		d.trackDirty[t] = false
	}
}

func (m *IWM) Shutdown() {}
func (m *IWM) Debug(option string) error {
	return fmt.Errorf("iwm: unknown debug option %q", option)
}

// --- Checkpoint ---

const iwmCheckpointVersion = 1

// Serialize writes the control lines and per-drive mechanical state.
// Dirty GCR tracks are flushed back into the mounted image first, so the
// track caches stay derived data and the disk's own checkpoint record
// (written by the machine, keyed by filename) carries the authoritative
// sector bytes; caches re-encode lazily after restore.
func (m *IWM) Serialize() []byte {
	for _, d := range m.drives {
		m.flushModified(d)
	}
	e := device.NewEncoder(iwmCheckpointVersion)
	e.U8(uint8(m.sel))
	e.Bool(m.ca0)
	e.Bool(m.ca1)
	e.Bool(m.ca2)
	e.Bool(m.lstrb)
	e.Bool(m.enable)
	e.Bool(m.q6)
	e.Bool(m.q7)
	e.U8(m.mode)
	e.U32(uint32(m.latchOffset))
	e.Bool(m.writeBufEmpty)
	for _, d := range m.drives {
		e.U8(uint8(d.track))
		e.I32(int32(d.dirTN))
		e.Bool(d.motorOn)
		e.Bool(d.spinTimer)
		e.U64(d.tachBase)
	}
	return e.Bytes()
}

func (m *IWM) Deserialize(buf []byte) error {
	d := device.NewDecoder(buf, iwmCheckpointVersion)
	m.sel = int(d.U8())
	m.ca0 = d.Bool()
	m.ca1 = d.Bool()
	m.ca2 = d.Bool()
	m.lstrb = d.Bool()
	m.enable = d.Bool()
	m.q6 = d.Bool()
	m.q7 = d.Bool()
	m.mode = d.U8()
	m.latchOffset = int(d.U32())
	m.writeBufEmpty = d.Bool()
	for _, drv := range m.drives {
		drv.track = int(d.U8())
		drv.dirTN = int(d.I32())
		drv.motorOn = d.Bool()
		drv.spinTimer = d.Bool()
		drv.tachBase = d.U64()
		for t := range drv.trackGCR {
			drv.trackGCR[t] = nil
			drv.trackDirty[t] = false
			drv.trackMFM[t] = nil
		}
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("iwm %s: %w", m.Name, err)
	}
	return nil
}
