package ingest

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// progress redraws a single status line, at most every 200ms.
type progress struct {
	w     io.Writer
	start time.Time
	every rate.Sometimes
}

func newProgress(w io.Writer) *progress {
	return &progress{
		w:     w,
		start: time.Now(),
		every: rate.Sometimes{First: 1, Interval: 200 * time.Millisecond},
	}
}

func (p *progress) update(s *Summary) {
	if p.w == nil {
		return
	}
	p.every.Do(func() { p.draw(s) })
}

func (p *progress) finish(s *Summary) {
	if p.w == nil {
		return
	}
	p.draw(s)
	fmt.Fprintln(p.w)
}

func (p *progress) draw(s *Summary) {
	fmt.Fprintf(p.w, "\r[%s] %d processed: %d written, %d skipped, %d failed",
		time.Since(p.start).Truncate(time.Second), s.Total(), s.Written, s.Skipped, s.Failed)
}
