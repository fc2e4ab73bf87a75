// Package progress reports scan progress to an injected renderer.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Reporter receives progress at file granularity.
type Reporter interface {
	Start(total int, label string)
	Update(index int, label string)
	Finish()
}

// Nop ignores all progress.
type Nop struct{}

func (Nop) Start(int, string)  {}
func (Nop) Update(int, string) {}
func (Nop) Finish()            {}

// Safe wraps a Reporter so that a panic inside it is logged and swallowed.
// Calls are serialized, so the wrapped Reporter need not be goroutine-safe.
type Safe struct {
	mu     sync.Mutex
	r      Reporter
	logger *log.Logger
	failed bool
}

// NewSafe wraps r. A nil r behaves like Nop.
func NewSafe(r Reporter, logger *log.Logger) *Safe {
	if r == nil {
		r = Nop{}
	}
	return &Safe{r: r, logger: logger}
}

func (s *Safe) Start(total int, label string) {
	s.call(func() { s.r.Start(total, label) })
}

func (s *Safe) Update(index int, label string) {
	s.call(func() { s.r.Update(index, label) })
}

func (s *Safe) Finish() {
	s.call(func() { s.r.Finish() })
}

// call runs fn unless the reporter already failed once.
func (s *Safe) call(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.failed = true
			if s.logger != nil {
				s.logger.Warn("progress reporter failed, disabling", "panic", r)
			}
		}
	}()
	fn()
}

// Line renders progress as a single rewritten terminal line.
type Line struct {
	w     io.Writer
	total int
	label string
}

// NewLine creates a Line renderer writing to w.
func NewLine(w io.Writer) *Line {
	return &Line{w: w}
}

func (l *Line) Start(total int, label string) {
	l.total = total
	l.label = label
	fmt.Fprintf(l.w, "\r%s: 0/%d", label, total)
}

func (l *Line) Update(index int, current string) {
	if l.total > 0 {
		pct := float64(index) / float64(l.total) * 100
		fmt.Fprintf(l.w, "\r\033[K%s: %d/%d (%.1f%%) %s", l.label, index, l.total, pct, truncate(current, 50))
		return
	}
	fmt.Fprintf(l.w, "\r\033[K%s: %d %s", l.label, index, truncate(current, 50))
}

func (l *Line) Finish() {
	fmt.Fprintf(l.w, "\r\033[K%s: done\n", l.label)
}

// truncate keeps the tail of s, which for paths is the informative part.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n+3:])
}
