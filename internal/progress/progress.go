// Package progress renders scan progress on stderr.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar wraps progressbar. A nil *Bar and a disabled Bar are both no-ops.
type Bar struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// New creates a progress display on stderr.
// Use total=-1 for spinner mode (directory walk), total>0 for a determinate
// bar (fingerprinting, where the file count is known up front).
func New(enabled bool, total int64) *Bar {
	return NewWithWriter(enabled, total, os.Stderr)
}

// NewWithWriter is New with an explicit output writer.
func NewWithWriter(enabled bool, total int64, out io.Writer) *Bar {
	if !enabled {
		return &Bar{}
	}

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(out),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetElapsedTime(false),
		)
		return &Bar{bar: progressbar.NewOptions(-1, opts...), out: out}
	}

	opts = append(opts,
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
	)
	return &Bar{bar: progressbar.NewOptions64(total, opts...), out: out}
}

// Enabled reports whether the bar renders anything.
func (b *Bar) Enabled() bool { return b != nil && b.bar != nil }

// Add advances a determinate bar by n.
func (b *Bar) Add(n int) {
	if b.Enabled() {
		_ = b.bar.Add(n)
	}
}

// Describe updates the description line.
func (b *Bar) Describe(s fmt.Stringer) {
	if b.Enabled() {
		b.bar.Describe(s.String())
	}
}

// Finish clears the bar and prints a final summary line.
func (b *Bar) Finish(s fmt.Stringer) {
	if b.Enabled() {
		_ = b.bar.Finish()
		fmt.Fprintln(b.out, "✔ "+s.String())
	}
}
