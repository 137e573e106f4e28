// Package sound implements the Plus-era VBL sound driver: once per
// vertical blank it extracts a 370-sample 8-bit PWM block from the
// top-of-RAM sound buffer and forwards it, with the current volume, to
// a host sink.
package sound

/*
 * mac68k - VBL sound extraction
 *
 * Copyright 2024, Richard Cornwell
 */

import "github.com/paleoemu/mac68k/emu/memmap"

const (
	mainOffset      = 0x300
	alternateOffset = 0x5C00
	wrapOffset      = 90
	wrapCount       = 90
	leadCount       = 280
	blockSize       = leadCount + wrapCount // 370
)

// Callbacks forwards the extracted block to the host audio sink, which
// owns silence detection and latency management.
type Callbacks struct {
	Emit func(samples []uint8, volume uint8)
}

// Source reads the sound buffer out of guest RAM on each VBL.
type Source struct {
	mem    *memmap.MemoryMap
	ramTop uint32
	alt    bool
	volume uint8
	cb     Callbacks
}

// New constructs a sound source; ramTop is the address one past the end
// of installed RAM, matching the "top of RAM" base the buffer offsets
// are relative to.
func New(mem *memmap.MemoryMap, ramTop uint32, cb Callbacks) *Source {
	return &Source{mem: mem, ramTop: ramTop, cb: cb}
}

// SetEmit installs or replaces the host sink, for front ends that attach
// audio output after construction.
func (s *Source) SetEmit(fn func(samples []uint8, volume uint8)) { s.cb.Emit = fn }

// SetVolume latches the 3-bit volume register.
func (s *Source) SetVolume(v uint8) { s.volume = v & 0x7 }

// SetBuffer selects which of the two 512-word buffers (main/alternate)
// the next VBL reads from.
func (s *Source) SetBuffer(alternate bool) { s.alt = alternate }

// TriggerVBL extracts one 370-byte PWM block and forwards it: the first 280 samples come from word offset 90, the last 90
// wrap from offset 0.
func (s *Source) TriggerVBL() {
	base := s.ramTop - mainOffset
	if s.alt {
		base = s.ramTop - alternateOffset
	}

	samples := make([]uint8, blockSize)
	for i := 0; i < leadCount; i++ {
		word := s.mem.Read16(base + uint32((wrapOffset+i)*2))
		samples[i] = uint8(word >> 8)
	}
	for i := 0; i < wrapCount; i++ {
		word := s.mem.Read16(base + uint32(i*2))
		samples[leadCount+i] = uint8(word >> 8)
	}

	if s.cb.Emit != nil {
		s.cb.Emit(samples, s.volume)
	}
}
