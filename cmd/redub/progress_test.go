package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)
	if p.live {
		t.Fatal("buffer must not be treated as a terminal")
	}

	p.update("extracting audio", 0.05)
	p.update("extracting audio", 0.06)
	p.update("synthesizing speech", 0.3)
	p.update("done", 1.2)
	p.finish()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{"[  5%] extracting audio", "[ 30%] synthesizing speech", "[100%] done"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestProgressPrinterLiveRedraw(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{out: &buf, live: true}

	p.update("synthesizing speech", 0.3)
	p.update("mix", 0.85)
	p.finish()

	got := buf.String()
	if !strings.HasPrefix(got, "\r[ 30%] synthesizing speech\r[ 85%] mix") {
		t.Fatalf("unexpected live output %q", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Fatalf("finish must end the status line, got %q", got)
	}
}
