// Package statusline renders a live single-line progress summary to a
// terminal: the same overwrite-stale-characters-then-rewind-cursor trick a
// build tool uses to show per-worker status without scrolling the terminal,
// here collapsed to the single overall-progress line the scheduler core
// reports through (see internal/scheduler.Scheduler.Status).
package statusline

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// IsTerminal reports whether fd refers to an interactive terminal.
func IsTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}

// Renderer rewrites a single status line in place. It is a no-op when stdout
// is not a terminal, so piping mlgit's output never produces escape codes.
type Renderer struct {
	enabled bool

	mu   sync.Mutex
	line string
	last time.Time
}

// New builds a Renderer bound to stdout.
func New() *Renderer {
	return &Renderer{enabled: IsTerminal(os.Stdout.Fd())}
}

// Update rewrites the status line to newLine, throttled to once per 100ms to
// avoid slowing down the scheduler loop with excessive terminal writes.
func (r *Renderer) Update(newLine string) {
	if r == nil || !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if diff := len(r.line) - len(newLine); diff > 0 {
		newLine += strings.Repeat(" ", diff)
	}
	r.line = newLine
	if time.Since(r.last) < 100*time.Millisecond {
		return
	}
	r.last = time.Now()
	fmt.Println(r.line)
	fmt.Print("\033[1A") // restore cursor position
}

// Done prints the final status line without rewinding the cursor.
func (r *Renderer) Done() {
	if r == nil || !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Println(r.line)
}
