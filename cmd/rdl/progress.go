package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vertextoedge/resumable-download/internal/domain"
	"github.com/vertextoedge/resumable-download/internal/service/transfer"
	"github.com/vertextoedge/resumable-download/internal/util/ratelimiter"
)

// redrawInterval bounds how often the status line is rewritten
const redrawInterval = 200 * time.Millisecond

// progressPrinter redraws a single status line from progress samples.
// Samples arriving faster than the redraw interval only replace the pending
// line; Finish flushes it.
type progressPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	redraw  *ratelimiter.Limiter
	width   int
	pending string
	printed bool
}

var _ transfer.Listener = (*progressPrinter)(nil)

func newProgressPrinter(w io.Writer, now ratelimiter.Clock) *progressPrinter {
	return &progressPrinter{w: w, redraw: ratelimiter.NewWithClock(redrawInterval, now)}
}

func (p *progressPrinter) OnUpdate(sample domain.ProgressSample) {
	line := formatProgress(sample)

	p.mu.Lock()
	defer p.mu.Unlock()

	if ok, _ := p.redraw.Allow(); !ok {
		p.pending = line
		return
	}
	p.draw(line)
}

func (p *progressPrinter) draw(line string) {
	pad := ""
	if n := p.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	p.width = len(line)
	p.pending = ""
	p.printed = true
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
}

func (p *progressPrinter) OnSuccess(string) {}
func (p *progressPrinter) OnFailure(error)  {}

// Finish draws the last throttled sample and ends the status line
func (p *progressPrinter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != "" {
		p.draw(p.pending)
	}
	if p.printed {
		fmt.Fprintln(p.w)
		p.printed = false
	}
}

func formatProgress(sample domain.ProgressSample) string {
	read := humanize.Bytes(uint64(sample.ReadBytes))
	speed := humanize.Bytes(uint64(sample.Speed)) + "/s"

	if !sample.HasTotal() {
		return fmt.Sprintf("%s  %s", read, speed)
	}

	percent := sample.Percent()
	if percent < 0 {
		// empty file
		percent = 100
	}
	line := fmt.Sprintf("%s / %s  %5.1f%%  %s",
		read, humanize.Bytes(uint64(sample.TotalBytes)), percent, speed)
	if sample.HasETA() {
		line += "  ETA " + sample.ETA().Round(time.Second).String()
	}
	return line
}
