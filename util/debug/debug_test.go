package debug

import (
	"testing"

	config "github.com/paleoemu/mac68k/config/configparser"
)

func TestWouldLogGatesOnConfiguredLevel(t *testing.T) {
	levels = map[string]int{}

	if WouldLog("VIA", 1) {
		t.Fatal("category with no configured level should not log")
	}

	SetLevel("via", 2)
	if !WouldLog("VIA", 1) {
		t.Error("level 1 should pass once VIA is configured at 2")
	}
	if !WouldLog("via", 2) {
		t.Error("level 2 should pass once VIA is configured at 2")
	}
	if WouldLog("VIA", 3) {
		t.Error("level 3 should not pass when VIA is configured at 2")
	}
}

func TestSetLevelsDirective(t *testing.T) {
	levels = map[string]int{}

	if err := setLevels(0, "", []config.Option{{Name: "3"}}); err == nil {
		t.Error("expected an error for an empty category")
	}
	if err := setLevels(0, "SCC", nil); err == nil {
		t.Error("expected an error with no level option")
	}
	if err := setLevels(0, "SCC", []config.Option{{Name: "notanumber"}}); err == nil {
		t.Error("expected an error for a non-numeric level")
	}

	if err := setLevels(0, "SCC", []config.Option{{Name: "3"}}); err != nil {
		t.Fatalf("setLevels: %v", err)
	}
	if !WouldLog("SCC", 3) {
		t.Error("SCC should be configured at level 3")
	}
}

func TestSinkSatisfiesLoggerInterface(t *testing.T) {
	var s Sink
	levels = map[string]int{}
	SetLevel("IWM", 1)
	if !s.WouldLog("IWM", 1) {
		t.Error("Sink.WouldLog should defer to the package-level table")
	}
	s.Log("unopened file should not panic")
}
