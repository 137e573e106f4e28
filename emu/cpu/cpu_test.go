package cpu

/*
 * mac68k - CPU wrapper tests.
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"testing"

	"github.com/paleoemu/mac68k/emu/memmap"
)

func newTestCPU() (*CPU, *memmap.MemoryMap) {
	mem := memmap.New()
	ram := make([]byte, 0x10000)
	// Reset vector: SSP=0x2000, PC=0x400 (a NOP forest follows).
	ram[0], ram[1], ram[2], ram[3] = 0, 0, 0x20, 0x00
	ram[4], ram[5], ram[6], ram[7] = 0, 0, 0x04, 0x00
	for i := 0x400; i < 0x410; i += 2 {
		ram[i], ram[i+1] = 0x4E, 0x71 // NOP
	}
	mem.Add(&memmap.Range{Base: 0, Size: uint32(len(ram)), Name: "ram", Bytes: ram, Write: true})
	return New(mem), mem
}

func TestResetVector(t *testing.T) {
	c, _ := newTestCPU()
	if pc := c.CurrentPC(); pc != 0x400 {
		t.Errorf("PC after reset = %06x, want 000400", pc)
	}
}

func TestRunSprintAdvancesPC(t *testing.T) {
	c, _ := newTestCPU()
	budget := 4
	c.RunSprint(&budget)
	if budget != 0 {
		t.Errorf("budget left = %d, want 0", budget)
	}
	if pc := c.CurrentPC(); pc != 0x408 {
		t.Errorf("PC after 4 NOPs = %06x, want 000408", pc)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	c, _ := newTestCPU()
	budget := 2
	c.RunSprint(&budget)

	buf := make([]byte, c.SerializeSize())
	if err := c.Serialize(buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	c2, _ := newTestCPU()
	if err := c2.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if c2.CurrentPC() != c.CurrentPC() {
		t.Errorf("PC after restore = %06x, want %06x", c2.CurrentPC(), c.CurrentPC())
	}
}
