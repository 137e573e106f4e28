// Package debug implements the optional breakpoint/logpoint/trace
// collaborator the scheduler calls once per sprint when active.
package debug

/*
 * mac68k - Breakpoints, logpoints, and the PC/log trace ring
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"fmt"

	"github.com/paleoemu/mac68k/emu/device"
)

// Logger is the logging-sink collaborator: category/
// level registration lives with the caller, WouldLog is the fast-path
// predicate checked before any formatting work.
type Logger interface {
	WouldLog(category string, level int) bool
	Log(line string)
}

// Logpoint fires once per instruction whose PC falls within [Start, End).
type Logpoint struct {
	Start, End uint32
	Category   string
	Level      int
	Message    string
	Hits       uint64
}

type traceKind int

const (
	traceKindPC traceKind = iota
	traceKindLog
)

type traceEntry struct {
	kind   traceKind
	pc     uint32
	logIdx int
}

// Debugger implements scheduler.Debugger: breakpoints, logpoints, and a
// ring of PC/log trace entries with a parallel log-text ring.
type Debugger struct {
	disasm device.Disassembler
	log    Logger

	breakpoints map[uint32]bool
	skipOnce    map[uint32]bool
	logpoints   []*Logpoint

	traceRing  []traceEntry
	traceHead  int
	traceCount int

	logTextRing []string
	logHead     int
	logCount    int

	active bool
}

// New constructs a Debugger with fixed-size trace and log-text rings.
func New(disasm device.Disassembler, log Logger, traceSize, logTextSize int) *Debugger {
	return &Debugger{
		disasm:      disasm,
		log:         log,
		breakpoints: make(map[uint32]bool),
		skipOnce:    make(map[uint32]bool),
		traceRing:   make([]traceEntry, traceSize),
		logTextRing: make([]string, logTextSize),
	}
}

// Active implements scheduler.Debugger.
func (d *Debugger) Active() bool { return d.active }

// SetActive turns tracing/breakpoint checking on or off.
func (d *Debugger) SetActive(v bool) { d.active = v }

// AddBreakpoint and RemoveBreakpoint manage the PC breakpoint set.
func (d *Debugger) AddBreakpoint(pc uint32) { d.breakpoints[pc] = true }
func (d *Debugger) RemoveBreakpoint(pc uint32) {
	delete(d.breakpoints, pc)
	delete(d.skipOnce, pc)
}

// AddLogpoint registers a new logpoint.
func (d *Debugger) AddLogpoint(lp *Logpoint) { d.logpoints = append(d.logpoints, lp) }

// Logpoints returns the registered logpoints, for `show`-style reporting
// of hit counters.
func (d *Debugger) Logpoints() []*Logpoint { return d.logpoints }

func (d *Debugger) pushTrace(e traceEntry) {
	d.traceRing[d.traceHead] = e
	d.traceHead = (d.traceHead + 1) % len(d.traceRing)
	if d.traceCount < len(d.traceRing) {
		d.traceCount++
	}
}

func (d *Debugger) recordLogText(s string) int {
	idx := d.logHead
	d.logTextRing[idx] = s
	d.logHead = (d.logHead + 1) % len(d.logTextRing)
	if d.logCount < len(d.logTextRing) {
		d.logCount++
	}
	return idx
}

// BreakAndTrace implements scheduler.Debugger: records a PC trace entry,
// evaluates logpoints, and reports whether pc is an un-skipped
// breakpoint.
func (d *Debugger) BreakAndTrace(pc uint32) bool {
	d.pushTrace(traceEntry{kind: traceKindPC, pc: pc})

	for _, lp := range d.logpoints {
		if pc < lp.Start || pc >= lp.End {
			continue
		}
		lp.Hits++
		if d.log == nil || !d.log.WouldLog(lp.Category, lp.Level) {
			continue
		}
		msg := lp.Message
		if msg == "" {
			msg = fmt.Sprintf("logpoint hit at %#x", pc)
		}
		idx := d.recordLogText(msg)
		d.pushTrace(traceEntry{kind: traceKindLog, logIdx: idx})
		d.log.Log(msg)
	}

	if !d.breakpoints[pc] {
		return false
	}
	if d.skipOnce[pc] {
		delete(d.skipOnce, pc)
		return false
	}
	d.skipOnce[pc] = true
	return true
}

// Show walks the trace ring from tail (oldest) to head (newest),
// disassembling PC entries and indenting log entries.
func (d *Debugger) Show() []string {
	n := d.traceCount
	out := make([]string, 0, n)
	idx := (d.traceHead - n + len(d.traceRing)) % len(d.traceRing)
	for i := 0; i < n; i++ {
		e := d.traceRing[idx]
		switch e.kind {
		case traceKindPC:
			line := fmt.Sprintf("%#08x", e.pc)
			if d.disasm != nil {
				line = d.disasm.Disassemble(e.pc)
			}
			out = append(out, line)
		case traceKindLog:
			out = append(out, "    "+d.logTextRing[e.logIdx])
		}
		idx = (idx + 1) % len(d.traceRing)
	}
	return out
}
