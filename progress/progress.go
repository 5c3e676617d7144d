// Package progress prints a single-line document counter to a terminal.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Tracker reports how many documents of a batch have been processed.
// It satisfies ingestion.Progress.
type Tracker struct {
	writer         io.Writer
	reportInterval int

	mu           sync.Mutex
	total        int
	done         int
	failed       int
	lastReported int
	startTime    time.Time
	started      bool
}

// NewTracker creates a tracker that reports every reportInterval documents.
func NewTracker(writer io.Writer, reportInterval int) *Tracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &Tracker{writer: writer, reportInterval: reportInterval}
}

// Start resets the tracker for a batch of total documents.
func (t *Tracker) Start(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = total
	t.done = 0
	t.failed = 0
	t.lastReported = 0
	t.startTime = time.Now()
	t.started = true
}

// Done records one processed document.
func (t *Tracker) Done(failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}
	if t.done < t.total {
		t.done++
	}
	if failed {
		t.failed++
	}
	if t.done-t.lastReported >= t.reportInterval {
		t.report()
		t.lastReported = t.done
	}
}

// Finish prints the final line.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}
	t.report()
	fmt.Fprintln(t.writer)
	t.started = false
}

// Elapsed returns the time since Start.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return 0
	}
	return time.Since(t.startTime)
}

// report must be called with the lock held.
func (t *Tracker) report() {
	rate := float64(t.done) / time.Since(t.startTime).Seconds()
	percentage := 0.0
	if t.total > 0 {
		percentage = float64(t.done) / float64(t.total) * 100.0
	}
	fmt.Fprintf(t.writer, "\rIngested %d/%d (%.1f%%), %d failed - %.1f docs/s",
		t.done, t.total, percentage, t.failed, rate)
}
