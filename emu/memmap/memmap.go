package memmap

/*
 * mac68k - Memory-mapped I/O dispatch
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"log/slog"

	dev "github.com/paleoemu/mac68k/emu/device"
)

// A Range is one entry in the memory map: either a flat RAM/ROM backing
// store or a device's register window.
type Range struct {
	Base    uint32
	Size    uint32
	Name    string
	Handler dev.MMIO // nil for a flat-array range; use Bytes directly instead.
	Bytes   []byte   // backing store for RAM/ROM ranges; nil for device ranges.
	Write   bool     // false for ROM: writes are dropped.
}

func (r *Range) contains(addr uint32) bool {
	return addr >= r.Base && addr < r.Base+r.Size
}

// MemoryMap is a small ordered list of non-overlapping ranges. Lookup is
// a flat scan; the map holds at most a few dozen entries, so anything
// fancier would not pay for itself.
type MemoryMap struct {
	ranges []*Range
}

func New() *MemoryMap {
	return &MemoryMap{}
}

// Add registers a new range. Ranges must not overlap; Add panics on
// overlap, since a colliding MMIO decode is a programmer error, not a
// runtime condition.
func (m *MemoryMap) Add(r *Range) {
	for _, existing := range m.ranges {
		if r.Base < existing.Base+existing.Size && existing.Base < r.Base+r.Size {
			panic("memmap: range " + r.Name + " overlaps " + existing.Name)
		}
	}
	m.ranges = append(m.ranges, r)
}

// Remove drops the range with the given name, used on device teardown.
func (m *MemoryMap) Remove(name string) {
	for i, r := range m.ranges {
		if r.Name == name {
			m.ranges = append(m.ranges[:i], m.ranges[i+1:]...)
			return
		}
	}
}

func (m *MemoryMap) find(addr uint32) *Range {
	for _, r := range m.ranges {
		if r.contains(addr) {
			return r
		}
	}
	return nil
}

// Read8 returns 0 for an unmapped address.
func (m *MemoryMap) Read8(addr uint32) uint8 {
	r := m.find(addr)
	if r == nil {
		slog.Debug("memmap: unmapped read8", "addr", addr)
		return 0
	}
	if r.Bytes != nil {
		return r.Bytes[addr-r.Base]
	}
	return r.Handler.Read8(addr)
}

// Write8 drops writes to an unmapped address or a read-only (ROM) range.
func (m *MemoryMap) Write8(addr uint32, val uint8) {
	r := m.find(addr)
	if r == nil {
		slog.Debug("memmap: unmapped write8", "addr", addr)
		return
	}
	if r.Bytes != nil {
		if r.Write {
			r.Bytes[addr-r.Base] = val
		}
		return
	}
	r.Handler.Write8(addr, val)
}

// Read16 and Read32 promote to successive big-endian byte accesses, so
// devices only ever implement byte handlers.
func (m *MemoryMap) Read16(addr uint32) uint16 {
	hi := m.Read8(addr)
	lo := m.Read8(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

func (m *MemoryMap) Write16(addr uint32, val uint16) {
	m.Write8(addr, uint8(val>>8))
	m.Write8(addr+1, uint8(val))
}

func (m *MemoryMap) Read32(addr uint32) uint32 {
	hi := m.Read16(addr)
	lo := m.Read16(addr + 2)
	return uint32(hi)<<16 | uint32(lo)
}

func (m *MemoryMap) Write32(addr uint32, val uint32) {
	m.Write16(addr, uint16(val>>16))
	m.Write16(addr+2, uint16(val))
}
