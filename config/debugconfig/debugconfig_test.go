package debugconfig

import (
	"os"
	"testing"

	config "github.com/paleoemu/mac68k/config/configparser"
	"github.com/paleoemu/mac68k/emu/models"
)

func TestSetDebugRequiresCategory(t *testing.T) {
	if err := setDebug(0, "", nil); err == nil {
		t.Error("expected an error for an empty category")
	}
}

func loadConfigLine(t *testing.T, line string) error {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "debugconfig-*.cfg")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	name := f.Name()
	f.Close()
	return config.LoadConfigFile(name)
}

func TestSetDebugRoutesToDeviceAndRejectsMissingMachine(t *testing.T) {
	if models.Current() == nil {
		if err := loadConfigLine(t, "DEBUG VIA BOGUS"); err == nil {
			t.Error("expected an error before any PLUS/SE30 line has run")
		}
	}

	if err := loadConfigLine(t, "PLUS X"); err != nil {
		t.Fatalf("PLUS: %v", err)
	}
	if models.Current() == nil {
		t.Fatal("expected PLUS directive to construct a machine")
	}

	if err := loadConfigLine(t, "DEBUG VIA BOGUS"); err == nil {
		t.Error("expected an error for an unknown VIA debug option")
	}
	if err := loadConfigLine(t, "DEBUG BOGUS OPT"); err == nil {
		t.Error("expected an error for an unknown debug category")
	}
}
