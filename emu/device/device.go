/*
mac68k Peripheral device interfaces

	Copyright (c) 2024, Richard Cornwell

	Permission is hereby granted, free of charge, to any person obtaining a
	copy of this software and associated documentation files (the "Software"),
	to deal in the Software without restriction, including without limitation
	the rights to use, copy, modify, merge, publish, distribute, sublicense,
	and/or sell copies of the Software, and to permit persons to whom the
	Software is furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
	RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
	IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
	CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/
package device

// MMIO is the interface every memory-mapped peripheral implements. The
// memory map promotes 16/32-bit accesses to a sequence of 8-bit accesses
// at monotonically increasing addresses, so only byte handlers are
// required of a device.
type MMIO interface {
	Read8(addr uint32) uint8
	Write8(addr uint32, val uint8)
}

// Device is the lifecycle contract every peripheral satisfies, independent
// of whether it is memory-mapped (a disk image behind a SCSI target is a
// Device but not an MMIO).
type Device interface {
	Shutdown()                 // Close any open resources (disk images, files).
	Debug(option string) error // Enable or adjust a debug category.
}

// IRQLine is a level- or edge-sensitive interrupt output. Implementations
// call SetIRQ only on transition; the receiver ORs it into a wider
// aggregate and must not assume edge-only delivery.
type IRQLine interface {
	SetIRQ(asserted bool)
}

// Disassembler is the collaborator emu/debug's trace ring uses to render a
// PC into guest mnemonics. The real 68000 disassembler tables are out of
// scope for this core; callers needing more than a hex PC
// dump supply their own implementation.
type Disassembler interface {
	Disassemble(pc uint32) string
}

// NoDev marks the absence of a device at a target/address/slot.
const NoDev uint16 = 0xffff

// BE16 and PutBE16/BE32/PutBE32 centralize the big-endian byte order used
// by every wire format in this core: devices never
// depend on host endianness.
func BE16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func PutBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func BE32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func PutBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
