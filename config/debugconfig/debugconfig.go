/*
 * mac68k - Debug options configuration.
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

// Package debugconfig registers the "DEBUG <category> <option>..." config
// directive that toggles a running device's own debug flags, distinct from
// util/debug's per-category log level.
package debugconfig

import (
	"errors"
	"strings"

	config "github.com/paleoemu/mac68k/config/configparser"
	"github.com/paleoemu/mac68k/emu/models"
)

// register a device on initialize.
func init() {
	config.RegisterModel("DEBUG", config.TypeOptions, setDebug)
}

// setDebug handles "DEBUG <category> <option> [<option>...]", forwarding
// each option token to the active machine's Debug dispatcher. category is
// one of VIA, VIA2, SCC, IWM, SCSI, RTC, ASC, or ADB.
func setDebug(_ uint16, category string, options []config.Option) error {
	if category == "" {
		return errors.New("debug directive requires a category")
	}

	m := models.Current()
	if m == nil {
		return errors.New("debug requires a PLUS or SE30 line first")
	}

	for _, opt := range options {
		if err := m.Debug(category, strings.ToUpper(opt.Name)); err != nil {
			return err
		}
		for _, value := range opt.Value {
			if err := m.Debug(category, strings.ToUpper(*value)); err != nil {
				return err
			}
		}
	}
	return nil
}
