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

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/codescribe/pkg/jobs"
)

// progressSettings decides whether and where the CLI draws progress.
// Progress goes to stderr so that --json output on stdout stays clean.
type progressSettings struct {
	enabled bool
	out     io.Writer
	color   bool
}

func progressFor(globals GlobalFlags) progressSettings {
	return progressSettings{
		enabled: !globals.Quiet && isatty.IsTerminal(os.Stderr.Fd()),
		out:     os.Stderr,
		color:   !globals.NoColor,
	}
}

// unitBar counts processed units out of total. Nil when disabled.
func (s progressSettings) unitBar(total int, label string) *progressbar.ProgressBar {
	if !s.enabled {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(s.color),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// spinner runs while the amount of work is unknown. Nil when disabled.
func (s progressSettings) spinner(label string) *progressbar.ProgressBar {
	if !s.enabled {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(s.color),
	)
}

// jobTracker renders a batch job from its snapshots: a spinner until every
// file is extracted and the unit total is fixed, then a bar over units.
type jobTracker struct {
	settings progressSettings
	spin     *progressbar.ProgressBar
	bar      *progressbar.ProgressBar
}

func newJobTracker(s progressSettings) *jobTracker {
	return &jobTracker{settings: s, spin: s.spinner("Extracting units")}
}

func (t *jobTracker) update(snap jobs.Snapshot) {
	if !t.settings.enabled {
		return
	}
	if t.bar == nil && (snap.TotalUnits > 0 || snap.Status.Terminal()) {
		if t.spin != nil {
			_ = t.spin.Finish()
			t.spin = nil
		}
		t.bar = t.settings.unitBar(snap.TotalUnits, jobLabel(snap))
	}
	switch {
	case t.bar != nil:
		t.bar.Describe(jobLabel(snap))
		_ = t.bar.Set(snap.DoneUnits)
	case t.spin != nil:
		_ = t.spin.Add(1)
	}
}

func (t *jobTracker) finish() {
	if t.spin != nil {
		_ = t.spin.Finish()
	}
	if t.bar != nil {
		_ = t.bar.Finish()
	}
}

// jobLabel describes a snapshot in a few words.
func jobLabel(snap jobs.Snapshot) string {
	switch snap.Status {
	case jobs.StatusQueued:
		return "Queued"
	case jobs.StatusCompleted:
		return "Completed"
	case jobs.StatusFailed:
		return "Failed"
	}
	done := 0
	for _, f := range snap.Files {
		if f.Status.Terminal() {
			done++
		}
	}
	label := fmt.Sprintf("Documenting (%d/%d files)", done, len(snap.Files))
	if snap.FailedUnits > 0 {
		label += fmt.Sprintf(", %d failed", snap.FailedUnits)
	}
	return label
}
