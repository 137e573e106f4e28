/*
 * mac68k - Log debug data to a file
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

// Package debug implements the "Log" ambient component: per-category runtime levels with a zero-cost
// disabled fast path, distinct from emu/debug's breakpoint/trace rings.
package debug

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	config "github.com/paleoemu/mac68k/config/configparser"
)

var (
	logFile *os.File
	levels  = map[string]int{}
)

// Sink satisfies emu/debug.Logger, so this package's file and level table
// can be passed directly as the Logger collaborator a Debugger is built
// with.
type Sink struct{}

// WouldLog implements emu/debug.Logger.
func (Sink) WouldLog(category string, level int) bool { return WouldLog(category, level) }

// Log implements emu/debug.Logger.
func (Sink) Log(line string) {
	if logFile == nil {
		return
	}
	fmt.Fprintln(logFile, line)
}

// WouldLog is the fast-path predicate callers check before any
// formatting work: true once category's configured level is at least level.
func WouldLog(category string, level int) bool {
	return level <= levels[strings.ToUpper(category)]
}

// SetLevel configures the runtime level for category; 0 (the default)
// disables it entirely.
func SetLevel(category string, level int) { levels[strings.ToUpper(category)] = level }

// Logf emits a formatted line to the debug file if category is enabled
// at level.
func Logf(category string, level int, format string, a ...interface{}) {
	if !WouldLog(category, level) {
		return
	}
	fmt.Fprintf(logFile, category+": "+format+"\n", a...)
}

// register on initialize.
func init() {
	config.RegisterFile("DEBUGFILE", create)
	config.RegisterModel("LOG", config.TypeOptions, setLevels)
}

// Create the debug output file from a "DEBUGFILE <name>" directive.
func create(_ uint16, fileName string, _ []config.Option) error {
	if logFile != nil {
		return fmt.Errorf("can't have more than one debug file, previous: %s", logFile.Name())
	}

	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("unable to create debug file: %s", fileName)
	}

	logFile = file
	return nil
}

// setLevels parses a "LOG <category> <level>" directive (one category per
// line, the same shape config/debugconfig uses for "DEBUG CHANNEL ...")
// into a per-category runtime level.
func setLevels(_ uint16, category string, options []config.Option) error {
	if category == "" {
		return errors.New("log directive requires a category")
	}
	if len(options) != 1 || options[0].Name == "" {
		return fmt.Errorf("log category %s requires a level", category)
	}
	level, err := strconv.Atoi(options[0].Name)
	if err != nil {
		return fmt.Errorf("log category %s level must be a number: %s", category, options[0].Name)
	}
	SetLevel(category, level)
	return nil
}
