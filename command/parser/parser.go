/*
 * mac68k - Command parser.
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

// Package parser implements the interactive console's command language:
// attach/detach, break/unbreak, log, step, trace, checkpoint/restore,
// set/show, and quit, dispatched against the running machine.
package parser

import (
	"errors"
	"strings"
	"unicode"

	"github.com/paleoemu/mac68k/emu/machine"
)

type cmd struct {
	name     string
	min      int
	process  func(*cmdLine, *machine.Machine) (bool, error)
	complete func(*cmdLine) []string
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "attach", min: 2, process: attach, complete: attachComplete},
	{name: "detach", min: 2, process: detach, complete: attachComplete},
	{name: "break", min: 3, process: breakpoint},
	{name: "unbreak", min: 3, process: unbreak},
	{name: "log", min: 3, process: logpoint, complete: logComplete},
	{name: "step", min: 2, process: step},
	{name: "trace", min: 2, process: trace},
	{name: "checkpoint", min: 2, process: doCheckpoint},
	{name: "restore", min: 3, process: restore},
	{name: "set", min: 3, process: set, complete: categoryComplete},
	{name: "show", min: 2, process: show, complete: categoryComplete},
	{name: "quit", min: 1, process: quit},
}

// ProcessCommand executes one line of console input against m. The bool
// return reports whether the console should exit (the "quit" command).
func ProcessCommand(commandLine string, m *machine.Machine) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("ambiguous command: " + name)
	}
	return match[0].process(&line, m)
}

// CompleteCmd returns the set of completions for commandLine, for
// interactive line editing.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	if !line.isEOL() && line.pos > 0 && unicode.IsSpace(rune(line.line[line.pos-1])) {
		match := matchList(name)
		if len(match) != 1 || match[0].complete == nil {
			return nil
		}
		return match[0].complete(&line)
	}

	matches := make([]string, 0, len(cmdList))
	for _, m := range cmdList {
		if strings.HasPrefix(m.name, name) {
			matches = append(matches, m.name+" ")
		}
	}
	return matches
}

// matchCommand reports whether command is an unambiguous abbreviation of
// match.name at least match.min characters long.
func matchCommand(match cmd, command string) bool {
	if len(command) < match.min || len(command) > len(match.name) {
		return false
	}
	return match.name[:len(command)] == command
}

func matchList(command string) []cmd {
	if command == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, command) {
			match = append(match, m)
		}
	}
	return match
}

func (line *cmdLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

func (line *cmdLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

func (line *cmdLine) getPeek() byte {
	if line.pos+1 >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// parseQuoteString reads a "quoted string" or a bare space-delimited token
// starting one character after line.pos, the same convention
// config/configparser's parser uses.
func (line *cmdLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	if line.getPeek() == '"' {
		inQuote = true
		line.pos++
	}

	for {
		line.pos++
		if line.pos >= len(line.line) {
			return value, true
		}
		by := line.line[line.pos]
		if by == '"' && inQuote {
			return value, true
		}
		if !inQuote && unicode.IsSpace(rune(by)) {
			return value, true
		}
		value += string(by)
	}
}

// getWord reads the next whitespace-delimited token, lowercased.
func (line *cmdLine) getWord() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}
	start := line.pos
	for line.pos < len(line.line) && !unicode.IsSpace(rune(line.line[line.pos])) && line.line[line.pos] != '#' {
		line.pos++
	}
	return strings.ToLower(line.line[start:line.pos])
}

// rest returns everything remaining on the line, unmodified.
func (line *cmdLine) rest() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}
	return strings.TrimRight(line.line[line.pos:], "\r\n")
}
