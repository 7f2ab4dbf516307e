// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// trackerBarWidth is the fixed width of the sweep progress bar.
const trackerBarWidth = 40

// Tracker renders a shared progress bar for concurrent workers and
// keeps log lines from tearing through it. All methods are safe for
// concurrent use.
type Tracker struct {
	mu        sync.Mutex
	out       io.Writer
	total     int
	completed int
	started   time.Time
	active    bool
}

// NewTracker creates a tracker for total units of work, writing to
// stdout.
func NewTracker(total int) *Tracker {
	return &Tracker{out: os.Stdout, total: total, started: time.Now()}
}

// NewTrackerTo creates a tracker writing to w (for tests).
func NewTrackerTo(total int, w io.Writer) *Tracker {
	return &Tracker{out: w, total: total, started: time.Now()}
}

// Advance marks one unit complete and redraws the bar with the given
// status label.
func (t *Tracker) Advance(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.draw(label)
}

// Logf clears the bar line, writes one log line, and redraws the bar
// so concurrent workers can report without garbling the display.
func (t *Tracker) Logf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		fmt.Fprint(t.out, "\r\033[K")
	}
	fmt.Fprintf(t.out, format+"\n", args...)
	if t.active {
		t.draw("")
	}
}

// Finish completes the bar and moves to a fresh line. In machine
// mode it prints a single plain count instead.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed < t.total {
		t.completed = t.total
	}
	if !ShouldShowProgress() {
		fmt.Fprintf(t.out, "%d/%d\n", t.completed, t.total)
		return
	}
	t.draw("done")
	fmt.Fprintln(t.out)
	t.active = false
}

// Completed reports how many units have finished.
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// draw must be called with the lock held. The live bar is suppressed
// in machine mode; workers' Logf lines still come through plainly.
func (t *Tracker) draw(label string) {
	if t.total <= 0 || !ShouldShowProgress() {
		return
	}
	t.active = true
	bar := ProgressBar(t.completed, t.total, trackerBarWidth)
	line := fmt.Sprintf("\r\033[K%s %d/%d ETA %s", bar, t.completed, t.total, t.eta())
	if label != "" {
		line += " " + Styles.Muted.Render(label)
	}
	fmt.Fprint(t.out, line)
}

// eta estimates remaining time from the average pace so far.
func (t *Tracker) eta() string {
	if t.completed == 0 || t.completed >= t.total {
		return "~0s"
	}
	perUnit := time.Since(t.started) / time.Duration(t.completed)
	remaining := perUnit * time.Duration(t.total-t.completed)
	switch {
	case remaining < time.Second:
		return "~<1s"
	case remaining < time.Minute:
		return fmt.Sprintf("~%ds", int(remaining.Seconds()))
	case remaining < time.Hour:
		return fmt.Sprintf("~%dm%ds", int(remaining.Minutes()), int(remaining.Seconds())%60)
	default:
		return fmt.Sprintf("~%dh%dm", int(remaining.Hours()), int(remaining.Minutes())%60)
	}
}
