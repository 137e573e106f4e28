/*
 * mac68k - Config-driven machine construction
 *
 * Copyright 2024, Richard Cornwell
 */

// Package models registers the "PLUS" and "SE30" config directives that
// drive machine construction, plus the FLOPPY/SCSI image-attach lines;
// each registers a config creator in an init() function.
package models

import (
	"errors"
	"os"
	"strconv"
	"strings"

	config "github.com/paleoemu/mac68k/config/configparser"
	"github.com/paleoemu/mac68k/emu/disk"
	"github.com/paleoemu/mac68k/emu/machine"
)

const (
	defaultPlusRAM = 1 * 1024 * 1024
	defaultSE30RAM = 4 * 1024 * 1024
)

// pendingROM holds a ROM image set by a "ROM <path>" directive ahead of
// the PLUS/SE30 line, for the --rom CLI flag to plug in without requiring
// the operator to edit their config file's model line.
var pendingROM []byte

// current is the machine the most recent PLUS/SE30 config line built.
// This core supports exactly one running machine per process, so a
// single package-level handle (set once during config load, read by
// debugconfig and the CLI afterward) suffices in place of a generic
// device registry.
var current *machine.Machine

// Current returns the constructed machine, or nil before a PLUS/SE30
// config directive has run.
func Current() *machine.Machine { return current }

func init() {
	config.RegisterModel("PLUS", config.TypeOptions, createPlus)
	config.RegisterModel("SE30", config.TypeOptions, createSE30)
	config.RegisterModel("FLOPPY", config.TypeModel, attachFloppy)
	config.RegisterModel("SCSI", config.TypeModel, attachSCSIDisk)
	config.RegisterFile("ROM", setPendingROM)
}

// setPendingROM handles a standalone "ROM <path>" line, read ahead of the
// PLUS/SE30 line. It lets the --rom CLI flag supply a ROM image without the
// operator editing their model line's own ROM= option, which still wins if
// present.
func setPendingROM(_ uint16, path string, _ []config.Option) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pendingROM = data
	return nil
}

func createPlus(_ uint16, _ string, options []config.Option) error {
	m, err := build(machine.ModelPlus, defaultPlusRAM, options)
	if err != nil {
		return err
	}
	current = m
	return nil
}

func createSE30(_ uint16, _ string, options []config.Option) error {
	m, err := build(machine.ModelSE30, defaultSE30RAM, options)
	if err != nil {
		return err
	}
	current = m
	return nil
}

func build(model machine.Model, ramSize int, options []config.Option) (*machine.Machine, error) {
	var rom []byte
	for _, opt := range options {
		switch strings.ToUpper(opt.Name) {
		case "RAM":
			size, err := parseSize(opt.EqualOpt)
			if err != nil {
				return nil, err
			}
			ramSize = size

		case "ROM":
			if opt.EqualOpt == "" {
				return nil, errors.New("rom option missing filename")
			}
			data, err := os.ReadFile(opt.EqualOpt)
			if err != nil {
				return nil, err
			}
			rom = data

		default:
			return nil, errors.New("model invalid option " + opt.Name)
		}
	}
	if rom == nil {
		rom = pendingROM
	}
	return machine.New(model, ramSize, rom)
}

// parseSize accepts a decimal byte count or a K/M-suffixed shorthand,
// matching the config grammar's "<number><K|M>" address form.
func parseSize(s string) (int, error) {
	if s == "" {
		return 0, errors.New("ram option missing size")
	}
	mult := 1
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("ram size must be a number: " + s)
	}
	return n * mult, nil
}

// attachFloppy handles "FLOPPY <drive> FILE=path [RW]".
func attachFloppy(devNum uint16, _ string, options []config.Option) error {
	if current == nil {
		return errors.New("floppy requires a PLUS or SE30 line first")
	}
	filename, writable, err := diskOptions(options)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	img := disk.New(filename, disk.KindFloppy, writable, data)
	current.InsertFloppy(int(devNum), img)
	return nil
}

// attachSCSIDisk handles "SCSI <id> FILE=path [RW]".
func attachSCSIDisk(devNum uint16, _ string, options []config.Option) error {
	if current == nil {
		return errors.New("scsi requires a PLUS or SE30 line first")
	}
	filename, writable, err := diskOptions(options)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	img := disk.New(filename, disk.KindHardDisk, writable, data)
	current.AttachSCSI(int(devNum), img)
	return nil
}

func diskOptions(options []config.Option) (filename string, writable bool, err error) {
	writable = true
	for _, opt := range options {
		switch strings.ToUpper(opt.Name) {
		case "FILE":
			if opt.EqualOpt == "" {
				return "", false, errors.New("file option missing filename")
			}
			filename = opt.EqualOpt

		case "-R", "RO", "NORING":
			writable = false

		case "-RW", "RW", "RING":
			writable = true

		default:
			return "", false, errors.New("disk invalid option " + opt.Name)
		}
	}
	if filename == "" {
		return "", false, errors.New("disk image requires FILE=path")
	}
	return filename, writable, nil
}
