// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui holds terminal output helpers for the codescribe CLI.
//
// Colors follow --no-color and NO_COLOR; fatih/color also turns them off
// when stdout is not a terminal.
//
//   - Red: failed jobs, files and units
//   - Yellow: warnings, partially documented files
//   - Green: documented units, completed jobs
//   - Cyan: counts and neutral information
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// Out receives every message printed by this package.
var Out io.Writer = os.Stdout

// InitColors sets the global color switch; call it right after flag parsing.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

func Successf(format string, args ...any) {
	_, _ = Green.Fprintf(Out, "✓ "+format+"\n", args...)
}

func Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(Out, "⚠ "+format+"\n", args...)
}

func Errorf(format string, args ...any) {
	_, _ = Red.Fprintf(Out, "✗ "+format+"\n", args...)
}

func Infof(format string, args ...any) {
	_, _ = Cyan.Fprintf(Out, "ℹ "+format+"\n", args...)
}

// Header prints a bold title underlined with "=".
func Header(text string) {
	_, _ = Bold.Fprintln(Out, text)
	fmt.Fprintln(Out, strings.Repeat("=", len([]rune(text))))
}

// Label returns text in bold for inline use.
func Label(text string) string {
	return Bold.Sprint(text)
}

func DimText(text string) string {
	return Dim.Sprint(text)
}

func CountText(count int) string {
	return Cyan.Sprint(count)
}

// StatusText colors a job, file or unit status by outcome.
func StatusText(status string) string {
	switch status {
	case "completed", "done", "ok":
		return Green.Sprint(status)
	case "failed":
		return Red.Sprint(status)
	case "skipped", "running":
		return Yellow.Sprint(status)
	}
	return Dim.Sprint(status)
}

// Ratio renders "documented/total" colored by how complete it is.
func Ratio(documented, total int) string {
	s := fmt.Sprintf("%d/%d", documented, total)
	switch {
	case documented == total:
		return Green.Sprint(s)
	case documented == 0:
		return Red.Sprint(s)
	}
	return Yellow.Sprint(s)
}
