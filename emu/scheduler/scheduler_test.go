package scheduler

/*
 * mac68k - Scheduler tests.
 *
 * Copyright 2024, Richard Cornwell
 */

import "testing"

// stepCPU is a minimal Sprinter: it always executes the full budget
// (never halts).
type stepCPU struct {
	pc uint32
}

func (c *stepCPU) RunSprint(budget *int) {
	c.pc += uint32(*budget)
	*budget = 0
}

func (c *stepCPU) CurrentPC() uint32 { return c.pc }

func TestSchedulerBasic(t *testing.T) {
	cpu := &stepCPU{}
	s := New(cpu)
	s.SetMode(MaxSpeed) // CPI = 4

	fired := 0
	s.RegisterEventType("test", "E", func(_ uint64) { fired++ })
	s.Schedule("test", "E", 0, 1000, 0)

	executed := s.Run(500)
	if executed != 500 {
		t.Errorf("executed = %d, want 500", executed)
	}
	if s.now != 2000 {
		t.Errorf("cycles = %d, want 2000", s.now)
	}
	if s.TotalInstructions() != 500 {
		t.Errorf("total instructions = %d, want 500", s.TotalInstructions())
	}
	if fired != 1 {
		t.Errorf("event fired %d times, want 1", fired)
	}
}

func TestScheduleRequiresExactlyOneDelay(t *testing.T) {
	s := New(&stepCPU{})
	s.RegisterEventType("t", "e", func(_ uint64) {})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic scheduling with both cycles and ns zero")
		}
	}()
	s.Schedule("t", "e", 0, 0, 0)
}

func TestRemoveCancelsPending(t *testing.T) {
	s := New(&stepCPU{})
	fired := false
	s.RegisterEventType("t", "e", func(_ uint64) { fired = true })
	s.Schedule("t", "e", 0, 100, 0)
	s.Remove("t", "e", false, 0)

	s.Run(1000)
	if fired {
		t.Error("removed event still fired")
	}
}

func TestFIFOTieBreak(t *testing.T) {
	s := New(&stepCPU{})
	var order []int
	s.RegisterEventType("t", "a", func(d uint64) { order = append(order, int(d)) })
	s.Schedule("t", "a", 1, 10, 0)
	s.Schedule("t", "a", 2, 10, 0)
	s.Schedule("t", "a", 3, 10, 0)

	s.Run(100)
	want := []int{1, 2, 3}
	for i, w := range want {
		if order[i] != w {
			t.Errorf("order[%d] = %d, want %d", i, order[i], w)
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := New(&stepCPU{})
	s.RegisterEventType("t", "e", func(_ uint64) {})
	s.Schedule("t", "e", 42, 500, 0)
	s.Run(10)

	buf := s.Serialize()

	s2 := New(&stepCPU{})
	s2.RegisterEventType("t", "e", func(_ uint64) {})
	pr, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if err := s2.Start(pr); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s2.Cycles() != s.Cycles() {
		t.Errorf("cycles after restore = %d, want %d", s2.Cycles(), s.Cycles())
	}
	if len(s2.queue) != len(s.queue) {
		t.Errorf("queue length after restore = %d, want %d", len(s2.queue), len(s.queue))
	}
}

func TestUnresolvedEventAbortsRestore(t *testing.T) {
	s := New(&stepCPU{})
	s.RegisterEventType("t", "e", func(_ uint64) {})
	s.Schedule("t", "e", 0, 500, 0)
	buf := s.Serialize()

	s2 := New(&stepCPU{}) // no RegisterEventType call
	pr, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if err := s2.Start(pr); err == nil {
		t.Fatal("expected error resolving unregistered event")
	}
}
