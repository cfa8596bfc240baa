package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// progressBar redraws a single status line for one zoom level while
// workers report finished tiles.
type progressBar struct {
	w        io.Writer
	total    int64
	done     atomic.Int64
	empty    atomic.Int64
	label    string
	barWidth int
	start    time.Time
	stop     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex
}

func newProgressBar(w io.Writer, label string, total int64) *progressBar {
	pb := &progressBar{
		w:        w,
		total:    total,
		label:    label,
		barWidth: 30,
		start:    time.Now(),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go pb.run()
	return pb
}

// Increment records a finished tile. Safe for concurrent use.
func (pb *progressBar) Increment(empty bool) {
	pb.done.Add(1)
	if empty {
		pb.empty.Add(1)
	}
}

// Finish stops refreshing and prints the final state.
func (pb *progressBar) Finish() {
	close(pb.stop)
	<-pb.stopped
	pb.draw()
	fmt.Fprint(pb.w, "\n")
}

func (pb *progressBar) run() {
	defer close(pb.stopped)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-pb.stop:
			return
		case <-ticker.C:
			pb.draw()
		}
	}
}

func (pb *progressBar) draw() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	fmt.Fprintf(pb.w, "\r%s\033[K", pb.line(time.Since(pb.start)))
}

func (pb *progressBar) line(elapsed time.Duration) string {
	done := pb.done.Load()
	frac := 0.0
	if pb.total > 0 {
		frac = min(float64(done)/float64(pb.total), 1)
	}
	filled := int(float64(pb.barWidth) * frac)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.barWidth-filled)

	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(done) / secs
	}
	return fmt.Sprintf("%s [%s] %3.0f%%  %d/%d tiles (%d empty)  %.0f/s  %s",
		pb.label, bar, frac*100, done, pb.total, pb.empty.Load(), rate, formatDuration(elapsed))
}

// formatDuration formats a duration concisely (e.g. "1m23s", "45s", "0s").
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) - m*60
	return fmt.Sprintf("%dm%02ds", m, s)
}
