package iwm

/*
 * mac68k - GCR sector encode/decode
 *
 * The on-disk framing (sync bytes, marks, zone table, interleave) is
 * modeled faithfully; the rotating three-byte running checksum real
 * controllers compute is not reproduced byte-exactly. This codec
 * implements a self-consistent XOR running checksum
 * and the standard 6-and-2 bit-packing (3 raw bytes <-> 4 GCR bytes,
 * since 4*6 = 3*8 = 24 bits) so encode/decode round-trip exactly; see
 * DESIGN.md for the scoping decision.
 */

import "github.com/paleoemu/mac68k/emu/disk"

const tagLen = 12
const dataLen = 512
const bodyLen = tagLen + dataLen // 524, padded to 525 (multiple of 3) before GCR packing.

// trackByteOffset returns the flat byte offset of a (track, sector) pair
// in a standard single-sided image, honoring the zone table.
func trackByteOffset(track, sector int) int {
	off := 0
	for t := 0; t < track; t++ {
		off += sectorsPerTrack(t) * 512
	}
	return off + sector*512
}

// encode3to4 packs 3 raw bytes into 4 six-bit GCR codewords.
func encode3to4(b0, b1, b2 byte) [4]byte {
	v0 := (b0&0xC0)>>2 | (b1&0xC0)>>4 | (b2&0xC0)>>6
	return [4]byte{
		gcrByte(v0),
		gcrByte(b0 & 0x3F),
		gcrByte(b1 & 0x3F),
		gcrByte(b2 & 0x3F),
	}
}

// decode4to3 is the inverse of encode3to4; input bytes are already
// GCR-decoded six-bit values.
func decode4to3(v0, v1, v2, v3 byte) (byte, byte, byte) {
	b0 := (v0&0x30)<<2 | v1
	b1 := (v0&0x0C)<<4 | v2
	b2 := (v0&0x03)<<6 | v3
	return b0, b1, b2
}

func gcrByte(sixBits byte) byte { return gcr6and2[sixBits&0x3F] }

func gcrDecode(b byte) byte {
	v, ok := gcrDecodeTable[b]
	if !ok {
		return 0
	}
	return v
}

// encodeTrack builds the GCR byte stream for one track: sync, header,
// and sector bodies in the fixed on-disk order, for every sector the
// zone table assigns to this track.
func encodeTrack(img *disk.Image, track int) []byte {
	n := sectorsPerTrack(track)
	order := interleaveOrder(n)
	var out []byte
	for slot := 0; slot < n; slot++ {
		out = append(out, encodeSector(img, track, order[slot])...)
	}
	return out
}

func encodeSector(img *disk.Image, track, sector int) []byte {
	var out []byte
	out = append(out, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	out = append(out, 0xD5, 0xAA, 0x96)

	const fmtByte = byte(0x22) // standard GCR format byte for this port.
	chk := byte(track) ^ byte(sector) ^ fmtByte
	h := encode3to4(byte(track), byte(sector), fmtByte)
	out = append(out, h[1], h[2], h[3], gcrByte(chk&0x3F))
	out = append(out, 0xDE, 0xAA, 0xFF)

	out = append(out, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	out = append(out, 0xD5, 0xAA, 0xAD, gcrByte(byte(sector)&0x3F))

	raw := make([]byte, bodyLen+1) // +1 pad byte so length is a multiple of 3.
	copy(raw[tagLen:], safeSlice(img.Bytes(), trackByteOffset(track, sector), dataLen))

	var ca, cb, cc byte
	for i := 0; i+2 < len(raw); i += 3 {
		e0 := raw[i] ^ cc
		e1 := raw[i+1] ^ e0
		e2 := raw[i+2] ^ e1
		g := encode3to4(e0, e1, e2)
		out = append(out, g[:]...)
		ca, cb, cc = e0, e1, e2
	}
	csum := encode3to4(ca, cb, cc)
	out = append(out, csum[:]...)
	out = append(out, 0xDE, 0xAA, 0xFF)
	return out
}

func safeSlice(b []byte, off, n int) []byte {
	out := make([]byte, n)
	if off < 0 || off >= len(b) {
		return out
	}
	end := off + n
	if end > len(b) {
		end = len(b)
	}
	copy(out, b[off:end])
	return out
}

// decodeTrackInto scans a track's GCR bytes for data-mark headers
// (0xD5 0xAA 0xAD) and writes each decoded sector back into the image.
func decodeTrackInto(track []byte, img *disk.Image, trackNum int) {
	for i := 0; i+3 < len(track); i++ {
		if track[i] != 0xD5 || track[i+1] != 0xAA || track[i+2] != 0xAD {
			continue
		}
		sectorNum := int(gcrDecode(track[i+3]))
		data, ok := decodeSectorBody(track, i+4)
		if !ok {
			continue
		}
		off := trackByteOffset(trackNum, sectorNum)
		dst := img.Bytes()
		if off+dataLen <= len(dst) {
			copy(dst[off:off+dataLen], data)
		}
	}
}

func decodeSectorBody(track []byte, start int) ([]byte, bool) {
	const groups = (bodyLen + 1) / 3
	if start+groups*4+4 > len(track) {
		return nil, false
	}
	raw := make([]byte, 0, groups*3)
	var cc byte
	for g := 0; g < groups; g++ {
		p := start + g*4
		v0 := gcrDecode(track[p])
		v1 := gcrDecode(track[p+1])
		v2 := gcrDecode(track[p+2])
		v3 := gcrDecode(track[p+3])
		e0, e1, e2 := decode4to3(v0, v1, v2, v3)
		b0 := e0 ^ cc
		b1 := e1 ^ e0
		b2 := e2 ^ e1
		raw = append(raw, b0, b1, b2)
		cc = e2
	}
	if len(raw) < bodyLen {
		return nil, false
	}
	return raw[tagLen : tagLen+dataLen], true
}
