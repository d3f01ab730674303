package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"migrator/internal/migrate"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Progress is a Sink that advances a progress bar once per item outcome.
type Progress struct {
	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	failed int
}

func NewProgress(w io.Writer, total int) *Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("migrating"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
	return &Progress{bar: bar}
}

func (p *Progress) Write(v any) error {
	o, ok := v.(migrate.Outcome)
	if !ok {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !o.OK() {
		p.failed++
		p.bar.Describe(fmt.Sprintf("migrating (%d failed)", p.failed))
	}
	return p.bar.Add(1)
}

func (p *Progress) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar.Finish()
}
