package loadgen

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/function61/hostkit/pkg/byteshuman"
	"github.com/function61/hostkit/pkg/duration"
	"github.com/function61/hostkit/pkg/tui"
	"github.com/mattn/go-isatty"
)

const barLength = 30

// on a terminal, progress is redrawn in place. otherwise (redirected to a file, or
// streamed back from a remote host) one line per update.
type Renderer struct {
	out         io.Writer
	interactive bool
}

func NewRenderer(out io.Writer, interactive bool) *Renderer {
	return &Renderer{out: out, interactive: interactive}
}

func NewStdoutRenderer() *Renderer {
	fd := os.Stdout.Fd()

	return NewRenderer(os.Stdout, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

func (r *Renderer) Memory(status MemoryStatus) {
	switch status.Phase {
	case MemoryAllocating:
		r.progress(status.Allocated, status.Total, fmt.Sprintf(
			"allocated %s of %s",
			byteshuman.Humanize(status.Allocated),
			byteshuman.Humanize(status.Total)))
	case MemoryHolding:
		until := "until interrupted"
		if status.HoldLeft > 0 {
			until = "releasing in " + duration.Clock(status.HoldLeft)
		}

		r.progress(status.Allocated, status.Total, fmt.Sprintf(
			"holding %s, %s",
			byteshuman.Humanize(status.Allocated),
			until))
	case MemoryReleased:
		r.done(fmt.Sprintf("released %s", byteshuman.Humanize(status.Total)))
	}
}

func (r *Renderer) CPU(status CPUStatus) {
	if status.Finished {
		r.done(fmt.Sprintf(
			"%d workers ran for %s (%d rounds)",
			status.Workers,
			duration.Humanize(status.Elapsed),
			status.Rounds))
		return
	}

	if status.Duration == 0 {
		r.line(fmt.Sprintf(
			"%d workers busy for %s, until interrupted",
			status.Workers,
			duration.Clock(status.Elapsed)))
		return
	}

	r.progress(
		uint64(status.Elapsed/time.Millisecond),
		uint64(status.Duration/time.Millisecond),
		fmt.Sprintf("%d workers busy, %s left", status.Workers, duration.Clock(status.Duration-status.Elapsed)))
}

func (r *Renderer) progress(done uint64, total uint64, detail string) {
	if !r.interactive {
		r.line(detail)
		return
	}

	r.line(tui.ProgressLine(done, total, barLength, tui.ProgressBarDefaultTheme(), detail))
}

func (r *Renderer) line(text string) {
	if r.interactive {
		// \x1b[K clears leftovers of a longer previous line
		fmt.Fprintf(r.out, "\r%s\x1b[K", text)
	} else {
		fmt.Fprintln(r.out, text)
	}
}

func (r *Renderer) done(text string) {
	r.line(text)

	if r.interactive {
		fmt.Fprintln(r.out)
	}
}
