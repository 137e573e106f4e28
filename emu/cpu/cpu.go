// Package cpu adapts the real 68000 engine (github.com/user-none/go-chip-m68k)
// to this core's scheduler.Sprinter contract and memmap.MemoryMap bus.
//
// The CPU interpreter itself is explicitly out of scope for this
// repository: it is a collaborator reached only through this
// thin wrapper, never reimplemented here.
package cpu

/*
 * mac68k - CPU collaborator wiring
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	m68k "github.com/user-none/go-chip-m68k"

	"github.com/paleoemu/mac68k/emu/memmap"
)

// bus adapts memmap.MemoryMap to m68k.Bus.
type bus struct {
	mem *memmap.MemoryMap
}

func (b *bus) Read(op m68k.Size, addr uint32) uint32 {
	switch op {
	case m68k.Byte:
		return uint32(b.mem.Read8(addr))
	case m68k.Word:
		return uint32(b.mem.Read16(addr))
	default:
		return b.mem.Read32(addr)
	}
}

func (b *bus) Write(op m68k.Size, addr uint32, val uint32) {
	switch op {
	case m68k.Byte:
		b.mem.Write8(addr, uint8(val))
	case m68k.Word:
		b.mem.Write16(addr, uint16(val))
	default:
		b.mem.Write32(addr, val)
	}
}

func (b *bus) Reset() {}

// CPU wraps m68k.CPU, presenting the scheduler's instruction-budget
// sprint contract. One instruction == one m68k.CPU.Step() call,
// regardless of that instruction's real variable cost: the scheduler's
// fixed-CPI model is a deliberate abstraction layered above the real
// engine (see DESIGN.md).
type CPU struct {
	core *m68k.CPU
	bus  *bus
}

// New constructs a CPU wired to the given memory map and performs the
// engine's own hardware reset (reads initial SSP/PC from addresses 0/4).
func New(mem *memmap.MemoryMap) *CPU {
	b := &bus{mem: mem}
	return &CPU{core: m68k.New(b), bus: b}
}

// RunSprint implements scheduler.Sprinter: decrements *budget by the
// number of instructions executed, stopping early only if the CPU halts.
func (c *CPU) RunSprint(budget *int) {
	for *budget > 0 {
		cost := c.core.Step()
		*budget--
		if cost == 0 { // halted (double bus fault) or STOP with no pending interrupt
			if c.core.Halted() {
				return
			}
		}
	}
}

func (c *CPU) CurrentPC() uint32 {
	return c.core.Registers().PC
}

func (c *CPU) Registers() m68k.Registers {
	return c.core.Registers()
}

func (c *CPU) SetRegisters(r m68k.Registers) {
	c.core.SetState(r)
}

// RequestInterrupt delivers a pending interrupt level to the engine; the
// machine's IRQ aggregator is the only caller.
func (c *CPU) RequestInterrupt(level uint8, vector *uint8) {
	c.core.RequestInterrupt(level, vector)
}

func (c *CPU) Halted() bool { return c.core.Halted() }

// SerializeSize and Serialize/Deserialize forward to the engine's own POD
// encoding, used verbatim as the CPU's checkpoint record.
func (c *CPU) SerializeSize() int { return c.core.SerializeSize() }

func (c *CPU) Serialize(buf []byte) error { return c.core.Serialize(buf) }

func (c *CPU) Deserialize(buf []byte) error { return c.core.Deserialize(buf) }
