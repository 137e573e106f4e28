// Package checkpoint implements the top-level snapshot format and the
// sequence-numbered, crash-atomic file dance the front end uses to
// persist and locate checkpoints.
package checkpoint

/*
 * mac68k - Checkpoint format and atomicity
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// buildID is written into every checkpoint header and checked on restore
// so a snapshot from an incompatible build is rejected outright rather than partially restored.
const buildID = "mac68k-core-1"

// Component is anything with a POD-prefix state struct that participates
// in a checkpoint: devices, the disk images, and the scheduler itself.
type Component interface {
	Name() string
	Serialize() []byte
}

// Record is one parsed-out component entry: a name and its raw payload,
// not yet applied to any live device.
type Record struct {
	Name string
	Data []byte
}

// Build assembles a full checkpoint buffer: the build-id header followed
// by one length-prefixed record per component.
func Build(components []Component) []byte {
	buf := appendString(nil, buildID)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(components)))
	buf = append(buf, countBuf[:]...)
	for _, c := range components {
		buf = appendString(buf, c.Name())
		rec := c.Serialize()
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(rec)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, rec...)
	}
	return buf
}

// Parse splits a checkpoint buffer into its component records after
// verifying the build-id header matches this binary.
func Parse(buf []byte) ([]Record, error) {
	id, off, err := readString(buf, 0)
	if err != nil {
		return nil, err
	}
	if id != buildID {
		return nil, fmt.Errorf("checkpoint: build id %q does not match this binary (%q)", id, buildID)
	}
	if off+4 > len(buf) {
		return nil, fmt.Errorf("checkpoint: truncated component count")
	}
	count := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4

	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		var name string
		name, off, err = readString(buf, off)
		if err != nil {
			return nil, err
		}
		if off+4 > len(buf) {
			return nil, fmt.Errorf("checkpoint: truncated record length for %q", name)
		}
		n := int(binary.BigEndian.Uint32(buf[off:]))
		off += 4
		if off+n > len(buf) {
			return nil, fmt.Errorf("checkpoint: truncated record body for %q", name)
		}
		records = append(records, Record{Name: name, Data: buf[off : off+n]})
		off += n
	}
	return records, nil
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func readString(buf []byte, off int) (string, int, error) {
	if off+2 > len(buf) {
		return "", off, fmt.Errorf("checkpoint: truncated string length")
	}
	n := int(binary.BigEndian.Uint16(buf[off:]))
	off += 2
	if off+n > len(buf) {
		return "", off, fmt.Errorf("checkpoint: truncated string body")
	}
	return string(buf[off : off+n]), off + n, nil
}

// Lookup maps component names to the record holding their payload, for
// dispatching to each device's own restore step.
func Lookup(records []Record) map[string][]byte {
	m := make(map[string][]byte, len(records))
	for _, r := range records {
		m[r.Name] = r.Data
	}
	return m
}

// --- Front-end atomicity ---

// WriteSequenced persists data as sequence number seq in dir, following
// the pending -> checkpoint -> flush -> complete -> garbage-collect
// dance: a crash at any point before the final
// ".complete" write leaves no ambiguous state, since FindLatestComplete
// only considers sequences with both files present.
func WriteSequenced(dir string, seq int, data []byte) error {
	base := sequenceName(seq)
	pendingPath := filepath.Join(dir, base+".pending")
	if err := os.WriteFile(pendingPath, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", pendingPath, err)
	}

	checkpointPath := filepath.Join(dir, base+".checkpoint")
	if err := os.Rename(pendingPath, checkpointPath); err != nil {
		return fmt.Errorf("checkpoint: rename %s: %w", pendingPath, err)
	}
	if err := syncFile(checkpointPath); err != nil {
		return fmt.Errorf("checkpoint: flush %s: %w", checkpointPath, err)
	}

	completePath := filepath.Join(dir, base+".complete")
	if err := os.WriteFile(completePath, nil, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", completePath, err)
	}

	gcOlderThan(dir, seq)
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// gcOlderThan removes every checkpoint-family file whose sequence number
// is below seq, once seq's own ".complete" marker has landed.
func gcOlderThan(dir string, seq int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		n, ok := parseSequence(e.Name())
		if ok && n < seq {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// FindLatestComplete returns the path to the highest-sequence checkpoint
// file that has a matching ".complete" marker, or ok=false if none do.
func FindLatestComplete(dir string) (path string, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	complete := make(map[int]bool)
	checkpoints := make(map[int]string)
	for _, e := range entries {
		name := e.Name()
		seq, okSeq := parseSequence(name)
		if !okSeq {
			continue
		}
		switch {
		case strings.HasSuffix(name, ".complete"):
			complete[seq] = true
		case strings.HasSuffix(name, ".checkpoint"):
			checkpoints[seq] = filepath.Join(dir, name)
		}
	}
	best := -1
	for seq := range checkpoints {
		if complete[seq] && seq > best {
			best = seq
		}
	}
	if best < 0 {
		return "", false
	}
	return checkpoints[best], true
}

func sequenceName(seq int) string { return fmt.Sprintf("%07d", seq) }

func parseSequence(name string) (int, bool) {
	dot := strings.IndexByte(name, '.')
	if dot <= 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:dot])
	if err != nil {
		return 0, false
	}
	return n, true
}
