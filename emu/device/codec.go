/*
mac68k Checkpoint record encoding helpers

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

import "fmt"

// Encoder builds a device checkpoint record: big-endian, fixed field
// order, variable-length tables written with a 32-bit length prefix.
// Every device writes its plain-data state through one of these so all
// records share the same wire conventions.
type Encoder struct {
	buf []byte
}

// NewEncoder starts a record with a one-byte version tag.
func NewEncoder(version uint8) *Encoder {
	return &Encoder{buf: []byte{version}}
}

func (e *Encoder) U8(v uint8)   { e.buf = append(e.buf, v) }
func (e *Encoder) U16(v uint16) { e.buf = append(e.buf, byte(v>>8), byte(v)) }
func (e *Encoder) U32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) U64(v uint64) {
	e.U32(uint32(v >> 32))
	e.U32(uint32(v))
}

// I32 encodes a signed value in two's complement.
func (e *Encoder) I32(v int32) { e.U32(uint32(v)) }

func (e *Encoder) Bool(v bool) {
	b := uint8(0)
	if v {
		b = 1
	}
	e.U8(b)
}

// Fix writes raw bytes with no length prefix; the decoder must know the
// size (fixed-size register files, PRAM banks, SRAM).
func (e *Encoder) Fix(b []byte) { e.buf = append(e.buf, b...) }

// Table writes a length-prefixed variable-size byte slice (queues, FIFO
// frames, disk contents).
func (e *Encoder) Table(b []byte) {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// Bytes returns the finished record.
func (e *Encoder) Bytes() []byte { return e.buf }

// Decoder walks a record produced by Encoder. Errors are sticky: after
// the first short read every further accessor returns zero values, and
// the caller checks Err once at the end.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder checks the record's version tag before any field is read.
func NewDecoder(buf []byte, version uint8) *Decoder {
	d := &Decoder{buf: buf}
	if len(buf) < 1 {
		d.err = fmt.Errorf("checkpoint record empty")
		return d
	}
	if buf[0] != version {
		d.err = fmt.Errorf("checkpoint record version %d, want %d", buf[0], version)
		return d
	}
	d.off = 1
	return d
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.err = fmt.Errorf("checkpoint record truncated at offset %d", d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) U8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) U16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return BE16(b)
}

func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return BE32(b)
}

func (d *Decoder) U64() uint64 {
	hi := d.U32()
	lo := d.U32()
	return uint64(hi)<<32 | uint64(lo)
}

func (d *Decoder) I32() int32 { return int32(d.U32()) }

func (d *Decoder) Bool() bool { return d.U8() != 0 }

// Fix copies n raw bytes into dst (the fixed-size counterpart of
// Encoder.Fix).
func (d *Decoder) Fix(dst []byte) {
	b := d.take(len(dst))
	if b != nil {
		copy(dst, b)
	}
}

// Table reads a length-prefixed byte slice, bounding the length against
// the remaining record so a corrupt prefix cannot force a huge
// allocation.
func (d *Decoder) Table() []byte {
	n := int(d.U32())
	if d.err != nil {
		return nil
	}
	if n > len(d.buf)-d.off {
		d.err = fmt.Errorf("checkpoint record length %d exceeds remaining %d bytes", n, len(d.buf)-d.off)
		return nil
	}
	out := make([]byte, n)
	d.Fix(out)
	return out
}

// Err reports the first decoding failure, or nil if the whole record was
// consumed cleanly.
func (d *Decoder) Err() error { return d.err }
