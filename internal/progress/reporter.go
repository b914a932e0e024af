package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides feedback while a town file is transferred.
// total is -1 when the size is not known up front.
type Reporter interface {
	Start(total int64, label string)
	Add(n int)
	Finish()
}

// NewReporter returns a TerminalReporter if running in an interactive terminal,
// or a CIReporter if the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{out: os.Stderr}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a byte progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int64, label string) {
	r.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Add(n int) {
	if r.bar != nil {
		_ = r.bar.Add(n)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints one line at start, at each quarter, and at the end.
type CIReporter struct {
	out   io.Writer
	label string
	total int64
	done  int64
	step  int
}

// NewCIReporter returns a CIReporter writing to w.
func NewCIReporter(w io.Writer) *CIReporter { return &CIReporter{out: w} }

func (r *CIReporter) Start(total int64, label string) {
	r.total, r.label, r.done, r.step = total, label, 0, 0
	if total >= 0 {
		fmt.Fprintf(r.out, "%s: %d bytes\n", label, total)
	} else {
		fmt.Fprintf(r.out, "%s\n", label)
	}
}

func (r *CIReporter) Add(n int) {
	r.done += int64(n)
	if r.total <= 0 {
		return
	}
	for r.step < 3 && r.done*4 >= r.total*int64(r.step+1) {
		r.step++
		fmt.Fprintf(r.out, "%s: %d%%\n", r.label, r.step*25)
	}
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(r.out, "%s: done (%d bytes)\n", r.label, r.done)
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Start(int64, string) {}
func (Nop) Add(int)             {}
func (Nop) Finish()             {}

// Reader reports every read from r to rep.
func Reader(r io.Reader, rep Reporter) io.Reader {
	if rep == nil {
		return r
	}
	return &reader{r: r, rep: rep}
}

type reader struct {
	r   io.Reader
	rep Reporter
}

func (p *reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.rep.Add(n)
	}
	return n, err
}

// Writer reports every write to w to rep.
func Writer(w io.Writer, rep Reporter) io.Writer {
	if rep == nil {
		return w
	}
	return &writer{w: w, rep: rep}
}

type writer struct {
	w   io.Writer
	rep Reporter
}

func (p *writer) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.rep.Add(n)
	}
	return n, err
}
