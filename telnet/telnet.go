/*
 * mac68k - telnet server
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

package telnet

import (
	"bufio"
	"fmt"
	"net"

	"github.com/paleoemu/mac68k/command/parser"
	"github.com/paleoemu/mac68k/emu/machine"
)

// Telnet protocol constants.
const (
	tnIAC  byte = 255 // protocol delim
	tnDONT byte = 254 // dont
	tnDO   byte = 253 // do
	tnWONT byte = 252 // wont
	tnWILL byte = 251 // will
	tnSB   byte = 250 // sub negotiation begin
	tnSE   byte = 240 // sub negotiation end

	tnOptionBinary byte = 0  // binary data transfer
	tnOptionEcho   byte = 1  // echo
	tnOptionSGA    byte = 3  // suppress go ahead
)

// initString puts a connecting client into character-at-a-time, no local
// echo mode, the same negotiation every command-line telnet client honors.
var initString = []byte{
	tnIAC, tnWILL, tnOptionEcho,
	tnIAC, tnWILL, tnOptionSGA,
	tnIAC, tnWILL, tnOptionBinary,
	tnIAC, tnDO, tnOptionBinary,
}

// stripIAC removes telnet IAC command sequences from a line of input,
// leaving the command text a human typed. It does not attempt full option
// negotiation beyond what initString already requested.
func stripIAC(line []byte) []byte {
	out := make([]byte, 0, len(line))
	for i := 0; i < len(line); i++ {
		if line[i] != tnIAC {
			out = append(out, line[i])
			continue
		}
		if i+1 >= len(line) {
			break
		}
		switch line[i+1] {
		case tnWILL, tnWONT, tnDO, tnDONT:
			i += 2 // skip the option byte too
		case tnSB:
			for i < len(line) && line[i] != tnSE {
				i++
			}
		case tnIAC:
			out = append(out, tnIAC)
			i++
		default:
			i++
		}
	}
	return out
}

// handleClient drives one remote session: negotiate character mode, then
// run parser.ProcessCommand against m for every line received, the same
// shell command/reader.ConsoleReader runs against process stdio.
func handleClient(conn net.Conn, m *machine.Machine) {
	defer conn.Close()

	if _, err := conn.Write(initString); err != nil {
		return
	}
	fmt.Fprint(conn, "mac68k> ")

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := stripIAC(scanner.Bytes())
		if len(line) == 0 {
			fmt.Fprint(conn, "mac68k> ")
			continue
		}

		quit, err := parser.ProcessCommand(string(line), m)
		if err != nil {
			fmt.Fprintf(conn, "error: %s\r\n", err.Error())
		}
		if quit {
			return
		}
		fmt.Fprint(conn, "mac68k> ")
	}
}
