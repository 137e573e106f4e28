/*
 * mac68k - Main process.
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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/paleoemu/mac68k/command/reader"
	config "github.com/paleoemu/mac68k/config/configparser"
	"github.com/paleoemu/mac68k/emu/debug"
	"github.com/paleoemu/mac68k/emu/models"
	"github.com/paleoemu/mac68k/telnet"
	logger "github.com/paleoemu/mac68k/util/logger"

	_ "github.com/paleoemu/mac68k/config/debugconfig"
)

var Logger *slog.Logger

// vblHz is the host tick rate driving Machine.MainLoop when no real display
// front-end supplies vsync timing; it stands in for the 60.15Hz Plus/SE30
// vertical blank rate the machine's pacing modes assume.
const vblHz = 60

func main() {
	optConfig := getopt.StringLong("config", 'c', "mac68k.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optROM := getopt.StringLong("rom", 'r', "", "ROM image, overrides the config file's ROM= option")
	optTelnet := getopt.StringLong("telnet", 't', "", "Remote console port, e.g. 6400")
	optHeadless := getopt.BoolLong("headless", 0, "Run without an interactive console on stdin")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	debugLevel := false
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, &debugLevel))
	slog.SetDefault(Logger)

	Logger.Info("mac68k started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		Logger.Error("configuration file " + *optConfig + " can't be found")
		os.Exit(1)
	}

	configPath := *optConfig
	if *optROM != "" {
		path, err := romOverrideConfig(*optConfig, *optROM)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
		configPath = path
		defer os.Remove(configPath)
	}

	if err := config.LoadConfigFile(configPath); err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}

	m := models.Current()
	if m == nil {
		Logger.Error("configuration file did not contain a PLUS or SE30 line")
		os.Exit(1)
	}

	m.SetDebugger(debug.New(hexDisassembler{}, consoleLogger{}, 256, 4096))

	if *optTelnet != "" {
		if err := telnet.Start(*optTelnet, m); err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
	}

	if !*optHeadless {
		go reader.ConsoleReader(m)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / vblHz)
	defer ticker.Stop()

	last := time.Now()
loop:
	for {
		select {
		case <-sigChan:
			fmt.Println("Got quit signal")
			break loop
		case now := <-ticker.C:
			m.MainLoop(now.Sub(last).Seconds())
			last = now
		}
	}

	Logger.Info("shutting down")
	if *optTelnet != "" {
		telnet.Stop()
	}
	Logger.Info("stopped")
}

// romOverrideConfig writes a temp config file that sets the ROM image ahead
// of the caller's own config file, so --rom can supply a ROM without editing
// the PLUS/SE30 line (a model line's own ROM= option still wins).
func romOverrideConfig(configPath, romPath string) (string, error) {
	body, err := os.ReadFile(configPath)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "mac68k-*.cfg")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "ROM %s\n", romPath); err != nil {
		return "", err
	}
	if _, err := f.Write(body); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// hexDisassembler is the fallback emu/device.Disassembler the package doc
// comment describes: a raw PC dump, since a full 68000 mnemonic table is out
// of scope for this core.
type hexDisassembler struct{}

func (hexDisassembler) Disassemble(pc uint32) string { return fmt.Sprintf("%08x", pc) }

// consoleLogger satisfies emu/debug.Logger by writing through the default
// slog logger, so breakpoint/logpoint hits land in the same log stream as
// everything else.
type consoleLogger struct{}

func (consoleLogger) WouldLog(category string, level int) bool { return true }

func (consoleLogger) Log(message string) { slog.Info(message) }
