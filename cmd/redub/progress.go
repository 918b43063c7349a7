package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// progressPrinter renders orchestrator progress. On a terminal it redraws a
// single status line; otherwise it prints one line per new message.
type progressPrinter struct {
	out  io.Writer
	live bool

	mu      sync.Mutex
	last    string
	width   int
	pending bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, live: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *progressPrinter) update(message string, fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf("[%3.0f%%] %s", clampFraction(fraction)*100, message)
	if p.live {
		pad := ""
		if n := p.width - len(line); n > 0 {
			pad = strings.Repeat(" ", n)
		}
		fmt.Fprintf(p.out, "\r%s%s", line, pad)
		p.width = len(line)
		p.pending = true
		return
	}
	if message == p.last {
		return
	}
	p.last = message
	fmt.Fprintln(p.out, line)
}

// finish terminates a live status line.
func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending {
		fmt.Fprintln(p.out)
		p.pending = false
	}
}

func clampFraction(v float64) float64 {
	return min(max(v, 0), 1)
}
