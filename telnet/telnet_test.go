package telnet

import "testing"

func TestStripIACRemovesNegotiationBytes(t *testing.T) {
	line := []byte{'q', 'u', 'i', 't', tnIAC, tnWILL, tnOptionEcho, '!'}
	got := string(stripIAC(line))
	if got != "quit!" {
		t.Errorf("stripIAC = %q, want %q", got, "quit!")
	}
}

func TestStripIACEscapedIAC(t *testing.T) {
	line := []byte{'a', tnIAC, tnIAC, 'b'}
	got := string(stripIAC(line))
	if got != "a\xffb" {
		t.Errorf("stripIAC = %q, want literal 0xff preserved", got)
	}
}
