package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const progressBarWidth = 30

// Progress reports how far a batch build got. On a terminal it redraws one
// bar line; otherwise it prints a line every tenth of the batch.
type Progress struct {
	mu       sync.Mutex
	w        io.Writer
	tty      bool
	total    int
	done     int
	failed   int
	lastStep int
	started  time.Time
}

// NewProgress creates a progress reporter writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, tty: isTerminal(w)}
}

// Start resets the reporter for a batch of total entries.
func (p *Progress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.done, p.failed, p.lastStep = 0, 0, 0
	p.started = time.Now()
	p.render()
}

// Advance records one finished entry. Safe for concurrent use by build
// workers.
func (p *Progress) Advance(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if failed {
		p.failed++
	}
	p.render()
}

// Finish terminates the bar line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tty && p.total > 0 {
		fmt.Fprintln(p.w)
	}
}

func (p *Progress) render() {
	if p.total == 0 {
		return
	}

	if !p.tty {
		step := p.done * 10 / p.total
		if p.done != p.total && step == p.lastStep {
			return
		}
		p.lastStep = step
		fmt.Fprintf(p.w, "%d/%d entries (%d failed)\n", p.done, p.total, p.failed)
		return
	}

	filled := progressBarWidth * p.done / p.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)
	elapsed := time.Since(p.started).Round(100 * time.Millisecond)
	fmt.Fprintf(p.w, "\r[%s] %d/%d entries, %d failed, %s", bar, p.done, p.total, p.failed, elapsed)
}
