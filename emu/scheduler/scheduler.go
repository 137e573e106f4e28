// Package scheduler implements the discrete-event virtual-time scheduler
// that drives the whole machine: it advances CPU time in bounded sprints,
// drains due events between sprints, and owns the run-mode pacing logic
// that adapts CPU throughput to the host's own clock.
//
// The event queue is a binary min-heap keyed by absolute timestamp,
// with a monotonic insertion counter breaking ties FIFO.
package scheduler

/*
 * mac68k - Event scheduler
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

import (
	"container/heap"
	"fmt"
)

// ReferenceHz is the fixed CPU clock the cycle counter is expressed in.
const ReferenceHz = 7_833_600

// Mode selects the pacing strategy.
type Mode int

const (
	MaxSpeed Mode = iota
	RealTime
	HardwareAccuracy
)

// CPI returns the constant cycles-per-instruction for a mode.
func (m Mode) CPI() int {
	if m == HardwareAccuracy {
		return 12
	}
	return 4
}

// Callback is invoked when a scheduled event fires. It must be total: no
// error return, no panics for guest-driven conditions.
type Callback func(data uint64)

type eventKey struct {
	source string
	name   string
}

// Sprinter is the CPU collaborator: the scheduler decrements
// budget in place as instructions execute and never inspects guest state
// beyond what RunSprint reports.
type Sprinter interface {
	// RunSprint executes instructions until budget reaches 0 or the CPU
	// stops itself (halt); it decrements *budget by the number executed.
	RunSprint(budget *int)
	CurrentPC() uint32
}

// event is one entry in the heap: an absolute firing cycle, the resolved
// callback, and the checkpoint-portable name pair.
type event struct {
	when   uint64
	seq    uint64
	source string
	name   string
	data   uint64
	cb     Callback
	index  int
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when < h[j].when
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Debugger is the optional collaborator the scheduler calls once per
// sprint. BreakAndTrace returns true to stop the run.
type Debugger interface {
	Active() bool
	BreakAndTrace(pc uint32) bool
}

// Scheduler owns virtual time, the event heap, and the CPU sprint loop.
type Scheduler struct {
	now    uint64 // Current cycle count.
	cpu    Sprinter
	mode   Mode
	debug  Debugger
	queue  eventHeap
	seq    uint64
	stop   bool
	instrs uint64 // Total instructions executed.

	registry map[eventKey]Callback

	// In-flight sprint bookkeeping, folded into cycle queries so
	// callbacks see a consistent clock mid-sprint.
	sprintBase     uint64
	sprintTotal    int
	sprintBurndown int
	sprintRunning  bool

	// HardwareAccuracy / RealTime pacing state.
	vblErrorAccum float64
}

// New creates a scheduler bound to a CPU collaborator.
func New(cpu Sprinter) *Scheduler {
	s := &Scheduler{
		cpu:      cpu,
		registry: make(map[eventKey]Callback),
	}
	heap.Init(&s.queue)
	return s
}

// RegisterEventType must be called (normally from device construction)
// before any event naming (source, name) is scheduled, so that a restored
// checkpoint can resolve the event back to a live callback.
func (s *Scheduler) RegisterEventType(source, name string, cb Callback) {
	s.registry[eventKey{source, name}] = cb
}

// Schedule queues an event. Exactly one of delayCycles/delayNs must be
// nonzero; violating that is a programmer error and panics.
func (s *Scheduler) Schedule(source, name string, data uint64, delayCycles uint64, delayNs float64) {
	if (delayCycles == 0) == (delayNs == 0) {
		panic(fmt.Sprintf("scheduler: Schedule(%s,%s) needs exactly one of cycles/ns nonzero", source, name))
	}
	cb, ok := s.registry[eventKey{source, name}]
	if !ok {
		panic(fmt.Sprintf("scheduler: event type (%s,%s) was never registered", source, name))
	}
	delay := delayCycles
	if delayNs != 0 {
		delay = uint64(delayNs * ReferenceHz / 1e9)
		if delay == 0 {
			delay = 1
		}
	}
	e := &event{
		when:   s.Cycles() + delay,
		seq:    s.seq,
		source: source,
		name:   name,
		data:   data,
		cb:     cb,
	}
	s.seq++
	heap.Push(&s.queue, e)
}

// Remove cancels every pending event matching callback identity
// (source, name[, data]). Passing matchData=false ignores data.
func (s *Scheduler) Remove(source, name string, matchData bool, data uint64) {
	kept := s.queue[:0]
	for _, e := range s.queue {
		if e.source == source && e.name == name && (!matchData || e.data == data) {
			continue
		}
		kept = append(kept, e)
	}
	s.queue = kept
	heap.Init(&s.queue)
}

// IsScheduled reports whether any event matches (source, name).
func (s *Scheduler) IsScheduled(source, name string) bool {
	for _, e := range s.queue {
		if e.source == source && e.name == name {
			return true
		}
	}
	return false
}

// Cycles returns the current virtual cycle count, folding in-flight sprint
// progress so callbacks that schedule relative delays mid-sprint see a
// consistent clock.
func (s *Scheduler) Cycles() uint64 {
	if !s.sprintRunning {
		return s.now
	}
	executed := s.sprintTotal - s.sprintBurndown
	return s.sprintBase + uint64(executed)*uint64(s.mode.CPI())
}

// TotalInstructions returns the lifetime count of executed instructions.
func (s *Scheduler) TotalInstructions() uint64 { return s.instrs }

// SetMode changes the pacing mode, resetting the VBL error accumulator.
func (s *Scheduler) SetMode(m Mode) {
	s.mode = m
	s.vblErrorAccum = 0
}

func (s *Scheduler) Mode() Mode { return s.mode }

// SetDebugger installs the optional debug/trace collaborator.
func (s *Scheduler) SetDebugger(d Debugger) { s.debug = d }

// Stop requests the run loop exit after the current sprint.
func (s *Scheduler) Stop() { s.stop = true }

// nextDelay returns the cycle delay until the head event, or a large
// sentinel if the queue is empty.
func (s *Scheduler) nextDelay() uint64 {
	if len(s.queue) == 0 {
		return 1 << 32
	}
	head := s.queue[0]
	if head.when <= s.now {
		return 0
	}
	return head.when - s.now
}

// Run executes the sprint loop until budget
// instructions have executed or Stop/the debugger halts it. Returns the
// number of instructions actually executed.
func (s *Scheduler) Run(budget int) int {
	s.stop = false
	executedTotal := 0
	cpi := uint64(s.mode.CPI())

	for executedTotal < budget && !s.stop {
		remaining := budget - executedTotal

		// 1. Sprint size is min(remaining, delay-to-next-event-in-instructions).
		delayCycles := s.nextDelay()
		delayInstr := int(delayCycles / cpi)
		if delayCycles%cpi != 0 || delayInstr == 0 {
			delayInstr++ // at least 1 instruction of overshoot allowed
		}
		sprint := remaining
		if delayInstr < sprint {
			sprint = delayInstr
		}
		if sprint < 1 {
			sprint = 1
		}

		// 2. Debugger clamps the sprint to 1 instruction when active.
		debugActive := s.debug != nil && s.debug.Active()
		if debugActive {
			sprint = 1
		}

		// 3-4. Run the sprint; burndown decrements in place.
		s.sprintBase = s.now
		s.sprintTotal = sprint
		s.sprintBurndown = sprint
		s.sprintRunning = true
		s.cpu.RunSprint(&s.sprintBurndown)
		executed := s.sprintTotal - s.sprintBurndown
		s.sprintRunning = false

		// A CPU that increments its own burndown, or a cycle counter
		// climbing past 2^60, is a wiring bug, not a guest condition.
		if s.sprintBurndown > s.sprintTotal || executed < 0 {
			panic("scheduler: sprint burndown exceeds the planned total")
		}
		if s.now >= 1<<60 {
			panic("scheduler: cycle counter out of range")
		}

		s.now += uint64(executed) * cpi
		s.instrs += uint64(executed)
		executedTotal += executed

		// 5. Debugger hook.
		if debugActive {
			if s.debug.BreakAndTrace(s.cpu.CurrentPC()) {
				s.stop = true
			}
		}

		// 6. Drain due events.
		s.drain()

		if executed == 0 {
			// CPU made no progress (halted); avoid spinning forever.
			break
		}
	}
	return executedTotal
}

func (s *Scheduler) drain() {
	for len(s.queue) > 0 && s.queue[0].when <= s.now {
		e := heap.Pop(&s.queue).(*event)
		e.cb(e.data)
	}
}
