package sound

/*
 * mac68k - sound tests.
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"testing"

	"github.com/paleoemu/mac68k/emu/memmap"
)

func newTestMem(ramTop uint32) *memmap.MemoryMap {
	m := memmap.New()
	m.Add(&memmap.Range{Base: 0, Size: ramTop, Name: "ram", Bytes: make([]byte, ramTop), Write: true})
	return m
}

func TestTriggerVBLExtractsMainBuffer(t *testing.T) {
	const ramTop = 0x100000
	mem := newTestMem(ramTop)
	base := uint32(ramTop - mainOffset)
	for i := 0; i < 512; i++ {
		mem.Write16(base+uint32(i*2), uint16(i)<<8|0x00FF)
	}

	var got []uint8
	var gotVol uint8
	s := New(mem, ramTop, Callbacks{Emit: func(samples []uint8, vol uint8) {
		got = samples
		gotVol = vol
	}})
	s.SetVolume(5)
	s.TriggerVBL()

	if len(got) != blockSize {
		t.Fatalf("got %d samples, want %d", len(got), blockSize)
	}
	if got[0] != 90 {
		t.Errorf("got[0] = %d, want 90 (high byte of word at offset 90)", got[0])
	}
	if got[leadCount] != 0 {
		t.Errorf("got[leadCount] = %d, want 0 (wrap to offset 0)", got[leadCount])
	}
	if gotVol != 5 {
		t.Errorf("volume = %d, want 5", gotVol)
	}
}

func TestSetBufferSelectsAlternate(t *testing.T) {
	const ramTop = 0x100000
	mem := newTestMem(ramTop)
	base := uint32(ramTop - alternateOffset)
	mem.Write16(base+uint32(wrapOffset*2), 0x2A00)

	var got []uint8
	s := New(mem, ramTop, Callbacks{Emit: func(samples []uint8, _ uint8) { got = samples }})
	s.SetBuffer(true)
	s.TriggerVBL()

	if got[0] != 0x2A {
		t.Errorf("got[0] = %#x, want 0x2a from alternate buffer", got[0])
	}
}
