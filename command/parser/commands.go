/*
 * mac68k - Command executer.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paleoemu/mac68k/emu/debug"
	"github.com/paleoemu/mac68k/emu/disk"
	"github.com/paleoemu/mac68k/emu/machine"
)

const defaultCheckpointPath = "checkpoint.bin"

// attach <floppy|scsi> <slot> <file> [ro]
func attach(line *cmdLine, m *machine.Machine) (bool, error) {
	kind := line.getWord()
	slotStr := line.getWord()
	slot, err := strconv.Atoi(slotStr)
	if err != nil {
		return false, errors.New("attach requires a numeric slot: " + slotStr)
	}

	line.skipSpace()
	if line.isEOL() {
		return false, errors.New("attach requires a file name")
	}
	// parseQuoteString expects pos to sit one character before the value,
	// matching config/configparser's TypeFile convention.
	line.pos--
	filename, ok := line.parseQuoteString()
	if !ok || filename == "" {
		return false, errors.New("attach requires a file name")
	}
	writable := line.getWord() != "ro"

	data, err := os.ReadFile(filename)
	if err != nil {
		return false, err
	}

	switch kind {
	case "floppy":
		m.InsertFloppy(slot, disk.New(filename, disk.KindFloppy, writable, data))
	case "scsi":
		m.AttachSCSI(slot, disk.New(filename, disk.KindHardDisk, writable, data))
	default:
		return false, errors.New("attach requires floppy or scsi: " + kind)
	}
	return false, nil
}

func attachComplete(_ *cmdLine) []string {
	return []string{"floppy ", "scsi "}
}

// detach <floppy|scsi> <slot>
func detach(line *cmdLine, m *machine.Machine) (bool, error) {
	kind := line.getWord()
	slotStr := line.getWord()
	slot, err := strconv.Atoi(slotStr)
	if err != nil {
		return false, errors.New("detach requires a numeric slot: " + slotStr)
	}

	var img *disk.Image
	switch kind {
	case "floppy":
		img = m.EjectFloppy(slot)
	case "scsi":
		img = m.DetachSCSI(slot)
	default:
		return false, errors.New("detach requires floppy or scsi: " + kind)
	}
	if img == nil {
		return false, fmt.Errorf("nothing attached at %s %d", kind, slot)
	}
	return false, nil
}

func parseHexAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, errors.New("expected a hex address: " + s)
	}
	return uint32(v), nil
}

// break <addr>
func breakpoint(line *cmdLine, m *machine.Machine) (bool, error) {
	d := m.Debugger()
	if d == nil {
		return false, errors.New("no debugger installed")
	}
	pc, err := parseHexAddr(line.getWord())
	if err != nil {
		return false, err
	}
	d.AddBreakpoint(pc)
	return false, nil
}

// unbreak <addr>
func unbreak(line *cmdLine, m *machine.Machine) (bool, error) {
	d := m.Debugger()
	if d == nil {
		return false, errors.New("no debugger installed")
	}
	pc, err := parseHexAddr(line.getWord())
	if err != nil {
		return false, err
	}
	d.RemoveBreakpoint(pc)
	return false, nil
}

// log <start>-<end> <category> <level> [message...]
func logpoint(line *cmdLine, m *machine.Machine) (bool, error) {
	d := m.Debugger()
	if d == nil {
		return false, errors.New("no debugger installed")
	}

	rangeTok := line.getWord()
	lo, hi, found := strings.Cut(rangeTok, "-")
	if !found {
		return false, errors.New("log requires a <start>-<end> address range")
	}
	start, err := parseHexAddr(lo)
	if err != nil {
		return false, err
	}
	end, err := parseHexAddr(hi)
	if err != nil {
		return false, err
	}

	category := strings.ToUpper(line.getWord())
	if category == "" {
		return false, errors.New("log requires a category")
	}

	levelStr := line.getWord()
	level, err := strconv.Atoi(levelStr)
	if err != nil {
		return false, errors.New("log requires a numeric level: " + levelStr)
	}

	d.AddLogpoint(&debug.Logpoint{Start: start, End: end, Category: category, Level: level, Message: line.rest()})
	return false, nil
}

func logComplete(_ *cmdLine) []string { return nil }

// step [n]
func step(line *cmdLine, m *machine.Machine) (bool, error) {
	n := 1
	if tok := line.getWord(); tok != "" {
		parsed, err := strconv.Atoi(tok)
		if err != nil {
			return false, errors.New("step requires a numeric count: " + tok)
		}
		n = parsed
	}
	executed := m.Step(n)
	fmt.Printf("executed %d instruction(s)\n", executed)
	return false, nil
}

// trace toggles the debugger's active (single-step/trace) mode.
func trace(_ *cmdLine, m *machine.Machine) (bool, error) {
	d := m.Debugger()
	if d == nil {
		return false, errors.New("no debugger installed")
	}
	d.SetActive(!d.Active())
	for _, l := range d.Show() {
		fmt.Println(l)
	}
	return false, nil
}

// checkpoint [path]
func doCheckpoint(line *cmdLine, m *machine.Machine) (bool, error) {
	path := line.rest()
	if path == "" {
		path = defaultCheckpointPath
	}
	return false, os.WriteFile(path, m.Checkpoint(), 0o644)
}

// restore <path>
func restore(line *cmdLine, m *machine.Machine) (bool, error) {
	path := line.rest()
	if path == "" {
		return false, errors.New("restore requires a file path")
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return false, m.Restore(buf)
}

// set <category> <option>
func set(line *cmdLine, m *machine.Machine) (bool, error) {
	category := line.getWord()
	option := line.getWord()
	if category == "" || option == "" {
		return false, errors.New("set requires a category and an option")
	}
	return false, m.Debug(category, option)
}

// show [category] lists logpoints, optionally filtered by category, and
// the debugger's PC/log trace ring.
func show(line *cmdLine, m *machine.Machine) (bool, error) {
	d := m.Debugger()
	if d == nil {
		return false, errors.New("no debugger installed")
	}
	category := strings.ToUpper(line.getWord())
	for _, lp := range d.Logpoints() {
		if category != "" && lp.Category != category {
			continue
		}
		fmt.Printf("%08x-%08x %s level=%d hits=%d %s\n", lp.Start, lp.End, lp.Category, lp.Level, lp.Hits, lp.Message)
	}
	for _, l := range d.Show() {
		fmt.Println(l)
	}
	return false, nil
}

func categoryComplete(_ *cmdLine) []string {
	return []string{"via ", "via2 ", "scc ", "iwm ", "scsi ", "rtc ", "asc ", "adb "}
}

// quit
func quit(_ *cmdLine, _ *machine.Machine) (bool, error) {
	return true, nil
}
