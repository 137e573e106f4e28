package models

import (
	"testing"

	config "github.com/paleoemu/mac68k/config/configparser"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"1024", 1024},
		{"512K", 512 * 1024},
		{"4M", 4 * 1024 * 1024},
		{"4m", 4 * 1024 * 1024},
	}
	for _, c := range cases {
		got, err := parseSize(c.in)
		if err != nil {
			t.Errorf("parseSize(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	if _, err := parseSize(""); err == nil {
		t.Error("expected an error for an empty size")
	}
	if _, err := parseSize("nope"); err == nil {
		t.Error("expected an error for a non-numeric size")
	}
}

func TestCreatePlusDefaultsRAM(t *testing.T) {
	current = nil
	if err := createPlus(0, "", nil); err != nil {
		t.Fatalf("createPlus: %v", err)
	}
	if Current() == nil {
		t.Fatal("Current() should return the constructed machine")
	}
}

func TestCreateSE30WithExplicitRAM(t *testing.T) {
	current = nil
	opts := []config.Option{{Name: "RAM", EqualOpt: "8M"}}
	if err := createSE30(0, "", opts); err != nil {
		t.Fatalf("createSE30: %v", err)
	}
	if Current() == nil {
		t.Fatal("Current() should return the constructed machine")
	}
}

func TestAttachFloppyRequiresMachineFirst(t *testing.T) {
	current = nil
	opts := []config.Option{{Name: "FILE", EqualOpt: "/nonexistent/disk.img"}}
	if err := attachFloppy(0, "", opts); err == nil {
		t.Error("expected an error attaching a floppy before a model line")
	}
}

func TestDiskOptionsRequiresFile(t *testing.T) {
	if _, _, err := diskOptions(nil); err == nil {
		t.Error("expected an error with no FILE option")
	}
	filename, writable, err := diskOptions([]config.Option{
		{Name: "FILE", EqualOpt: "disk.img"},
		{Name: "RO"},
	})
	if err != nil {
		t.Fatalf("diskOptions: %v", err)
	}
	if filename != "disk.img" || writable {
		t.Errorf("diskOptions = (%q, %v), want (disk.img, false)", filename, writable)
	}
}
