package transfer

import (
	"fmt"
	"io"
	"time"
)

const (
	// redrawInterval limits how often the status line is repainted.
	redrawInterval = 100 * time.Millisecond
	// clearLine returns the cursor to column zero and erases the line.
	clearLine = "\r\033[2K"
	kilobyte  = 1024
)

// progressLine counts written bytes and repaints one terminal line.
type progressLine struct {
	out      io.Writer
	total    int64
	written  int64
	lastDraw time.Time
}

func newProgressLine(out io.Writer, total int64) *progressLine {
	return &progressLine{out: out, total: total}
}

func (p *progressLine) Write(b []byte) (int, error) {
	p.written += int64(len(b))

	if time.Since(p.lastDraw) >= redrawInterval {
		p.draw()
	}

	return len(b), nil
}

// Finish paints the final state and moves to the next line.
func (p *progressLine) Finish() {
	p.draw()
	_, _ = fmt.Fprintln(p.out)
}

func (p *progressLine) draw() {
	p.lastDraw = time.Now()
	_, _ = fmt.Fprint(p.out, clearLine+p.String())
}

func (p *progressLine) String() string {
	if p.total <= 0 {
		return fmt.Sprintf("Downloaded %d KB", p.written/kilobyte)
	}

	percent := p.written * 100 / p.total
	if percent > 100 {
		percent = 100
	}

	return fmt.Sprintf("Downloaded %d of %d KB (%d%%)", p.written/kilobyte, p.total/kilobyte, percent)
}
