// Package progress prints a single, self-overwriting percentage line for a
// download in flight.
package progress

import (
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-colorable"
)

const (
	colorTitle   = "\033[31m"
	colorPercent = "\033[33m"
	colorReset   = "\033[39m"
)

// Tracker holds the state of one download. The first progress callback
// records the remaining byte count as the baseline against which later
// callbacks are measured. Create a new Tracker for every download.
type Tracker struct {
	w        io.Writer
	title    string
	color    bool
	baseline int64
	drawn    bool
}

// NewTracker returns a tracker writing to w, or to standard output when w is nil.
func NewTracker(w io.Writer, title string, color bool) *Tracker {
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	return &Tracker{w: w, title: title, color: color}
}

// OnProgress is called after each chunk with the number of bytes still missing.
func (t *Tracker) OnProgress(chunk int, remaining int64) {
	if t.baseline == 0 {
		t.baseline = remaining
	}
	t.drawn = true
	pct := humanize.FtoaWithDigits(t.Percent(remaining), 2)
	if t.color {
		fmt.Fprintf(t.w, "%s[%s] - %s%s%%%s\r", colorTitle, t.title, colorPercent, pct, colorReset)
		return
	}
	fmt.Fprintf(t.w, "[%s] - %s%%\r", t.title, pct)
}

// OnComplete resets the baseline and terminates the progress line.
func (t *Tracker) OnComplete(path string) {
	t.baseline = 0
	t.drawn = false
	fmt.Fprintln(t.w)
}

// Abort terminates a progress line left open by a failed download, so the
// next message starts on a fresh line. It writes nothing if no line is open.
func (t *Tracker) Abort() {
	if !t.drawn {
		return
	}
	t.drawn = false
	fmt.Fprintln(t.w)
}

// Percent returns the completion for remaining bytes, rounded to two decimals.
func (t *Tracker) Percent(remaining int64) float64 {
	if t.baseline <= 0 {
		if remaining <= 0 {
			return 100
		}
		return 0
	}
	pct := 100 - float64(remaining)/float64(t.baseline)*100
	return math.Round(pct*100) / 100
}

// Baseline returns the recorded baseline, zero before the first callback.
func (t *Tracker) Baseline() int64 { return t.baseline }
