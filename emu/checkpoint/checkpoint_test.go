package checkpoint

/*
 * mac68k - checkpoint tests.
 *
 * Copyright 2024, Richard Cornwell
 */

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeComponent struct {
	name string
	data []byte
}

func (f *fakeComponent) Name() string     { return f.name }
func (f *fakeComponent) Serialize() []byte { return f.data }

func TestBuildParseRoundTrip(t *testing.T) {
	components := []Component{
		&fakeComponent{name: "via0", data: []byte{1, 2, 3}},
		&fakeComponent{name: "rtc0", data: []byte{4, 5}},
	}
	buf := Build(components)

	records, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := Lookup(records)
	if string(m["via0"]) != "\x01\x02\x03" {
		t.Errorf("via0 record = %v, want [1 2 3]", m["via0"])
	}
	if len(m["rtc0"]) != 2 {
		t.Errorf("rtc0 record length = %d, want 2", len(m["rtc0"]))
	}
}

func TestParseRejectsWrongBuildID(t *testing.T) {
	buf := appendString(nil, "some-other-build")
	if _, err := Parse(buf); err == nil {
		t.Error("expected error for mismatched build id")
	}
}

// TestAtomicSequenceGC: write three
// sequenced checkpoints and confirm only the latest complete one
// survives, and that FindLatestComplete picks it.
func TestAtomicSequenceGC(t *testing.T) {
	dir := t.TempDir()

	for seq := 1; seq <= 3; seq++ {
		if err := WriteSequenced(dir, seq, []byte{byte(seq)}); err != nil {
			t.Fatalf("WriteSequenced(%d): %v", seq, err)
		}
	}

	path, ok := FindLatestComplete(dir)
	if !ok {
		t.Fatal("FindLatestComplete found nothing")
	}
	if filepath.Base(path) != "0000003.checkpoint" {
		t.Errorf("latest checkpoint = %s, want 0000003.checkpoint", filepath.Base(path))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 { // 0000003.checkpoint + 0000003.complete
		t.Errorf("dir has %d entries after GC, want 2: %v", len(entries), entries)
	}
}

func TestFindLatestCompleteIgnoresIncompletePending(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "0000001.pending"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := FindLatestComplete(dir); ok {
		t.Error("FindLatestComplete should ignore a lone .pending file")
	}
}
