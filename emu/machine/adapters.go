package machine

/*
 * mac68k - MMIO adapters binding device register APIs to memmap.MemoryMap
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"github.com/paleoemu/mac68k/emu/asc"
	"github.com/paleoemu/mac68k/emu/scc"
	"github.com/paleoemu/mac68k/emu/scsi"
)

// ascMMIO rebases bus addresses into the ASC's own window (0x000-0x7FF
// SRAM, registers from 0x800), which emu/asc decodes relative to zero.
type ascMMIO struct {
	a *asc.ASC
}

func (m *ascMMIO) Read8(addr uint32) uint8 {
	return m.a.Read8(addr & 0xFFF)
}

func (m *ascMMIO) Write8(addr uint32, val uint8) {
	m.a.Write8(addr&0xFFF, val)
}

// sccMMIO decodes the Z8530's address-bit register selection (bit 1
// chooses control vs. data, bit 2 chooses channel B vs. A) into the
// per-channel calls emu/scc exposes directly.
type sccMMIO struct {
	s *scc.SCC
}

func (m *sccMMIO) channel(addr uint32) scc.Channel {
	if addr&0x04 != 0 {
		return scc.ChannelB
	}
	return scc.ChannelA
}

func (m *sccMMIO) Read8(addr uint32) uint8 {
	ch := m.channel(addr)
	if addr&0x02 != 0 {
		return m.s.ReadControl(ch)
	}
	return m.s.ReadData(ch)
}

func (m *sccMMIO) Write8(addr uint32, val uint8) {
	ch := m.channel(addr)
	if addr&0x02 != 0 {
		m.s.WriteControl(ch, val)
		return
	}
	m.s.WriteData(ch, val)
}

// scsiMMIO decodes the NCR 5380's low three address bits into its eight
// pseudo-registers. This core's emu/scsi only models the subset of
// registers the emulated command set actually exercises (mode, initiator command,
// data, status, message); the remaining offsets read as zero and drop
// writes, which is enough to drive the phase machine from the command
// set named there.
type scsiMMIO struct {
	b *scsi.Bus
}

func (m *scsiMMIO) Read8(addr uint32) uint8 {
	switch addr & 0x07 {
	case 0:
		return m.b.ReadDataIn()
	case 1:
		return m.b.ReadICR()
	case 2:
		return m.b.ReadMR()
	case 3:
		return m.b.ReadStatus()
	case 4:
		return m.b.ReadMessage()
	default:
		return 0
	}
}

func (m *scsiMMIO) Write8(addr uint32, val uint8) {
	switch addr & 0x07 {
	case 0:
		m.b.WriteODR(val)
	case 1:
		m.b.WriteICR(val)
	case 2:
		m.b.WriteMR(val)
	}
}
