// Package disk models a mounted disk image: a flat 512-byte-block
// addressable byte store backing both the SCSI target (emu/scsi.Target)
// and the floppy controller (emu/iwm), with the write-protect and
// dirty-tracking behaviour the checkpoint and flush-on-eject paths
// depend on.
package disk

/*
 * mac68k - Disk image collaborator
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"fmt"

	"github.com/paleoemu/mac68k/emu/device"
)

const blockSize = 512

// Kind distinguishes the two image shapes this core mounts.
type Kind int

const (
	KindHardDisk Kind = iota
	KindFloppy
)

// Image is an in-memory disk image, loaded from and flushed back to a
// host file by the caller.
type Image struct {
	filename string
	kind     Kind
	writable bool
	data     []byte
	dirty    bool
}

// New wraps raw bytes already read from filename.
func New(filename string, kind Kind, writable bool, data []byte) *Image {
	return &Image{filename: filename, kind: kind, writable: writable, data: data}
}

func (im *Image) Filename() string { return im.filename }
func (im *Image) Kind() Kind       { return im.kind }
func (im *Image) Writable() bool   { return im.writable }
func (im *Image) Dirty() bool      { return im.dirty }
func (im *Image) Size() int        { return len(im.data) }

// Bytes exposes the raw backing store, e.g. for the floppy controller's
// GCR re-encode-on-modify pass.
func (im *Image) Bytes() []byte { return im.data }

func (im *Image) BlockCount() uint32 { return uint32(len(im.data) / blockSize) }

// ReadBlock implements scsi.Target.
func (im *Image) ReadBlock(lba uint32, buf []byte) error {
	off := int(lba) * blockSize
	if off+blockSize > len(im.data) {
		return fmt.Errorf("disk: read block %d out of range (size %d)", lba, len(im.data))
	}
	copy(buf, im.data[off:off+blockSize])
	return nil
}

// WriteBlock implements scsi.Target.
func (im *Image) WriteBlock(lba uint32, buf []byte) error {
	if !im.writable {
		return fmt.Errorf("disk: write to read-only image %s", im.filename)
	}
	off := int(lba) * blockSize
	if off+blockSize > len(im.data) {
		return fmt.Errorf("disk: write block %d out of range (size %d)", lba, len(im.data))
	}
	copy(im.data[off:off+blockSize], buf)
	im.dirty = true
	return nil
}

// MarkClean clears the dirty bit once a flush has completed.
func (im *Image) MarkClean() { im.dirty = false }

// --- Checkpoint ---

const imageCheckpointVersion = 1

// Serialize writes the full image: the filename (the stable identifier
// across checkpoints), its mount attributes, and the block contents.
func (im *Image) Serialize() []byte {
	e := device.NewEncoder(imageCheckpointVersion)
	e.Table([]byte(im.filename))
	e.U8(uint8(im.kind))
	e.Bool(im.writable)
	e.Bool(im.dirty)
	e.Table(im.data)
	return e.Bytes()
}

// Restore reconstructs an Image from a record written by Serialize.
func Restore(buf []byte) (*Image, error) {
	d := device.NewDecoder(buf, imageCheckpointVersion)
	im := &Image{}
	im.filename = string(d.Table())
	im.kind = Kind(d.U8())
	im.writable = d.Bool()
	im.dirty = d.Bool()
	im.data = d.Table()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("disk: %w", err)
	}
	return im, nil
}
