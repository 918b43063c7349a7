package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	15:04:05.000 WARN  background 0123abcd/background  separation failed event_type=... error=...
//
// The component, job id and stage are lifted out of the attributes into the
// line prefix; everything else follows as key=value pairs.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool

	component string
	jobID     string
	stage     string
	prefix    string // group path for attributes added by WithAttrs
	attrs     []byte // pre-rendered " k=v" pairs
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line := h.clone()
	r.Attrs(func(a slog.Attr) bool {
		line.add(a)
		return true
	})

	var b strings.Builder
	b.WriteString(ts.Format("2006-01-02 15:04:05.000"))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s", levelName(r.Level))
	if line.component != "" {
		b.WriteByte(' ')
		b.WriteString(line.component)
	}
	if line.jobID != "" || line.stage != "" {
		b.WriteByte(' ')
		b.WriteString(shortID(line.jobID))
		if line.jobID != "" && line.stage != "" {
			b.WriteByte('/')
		}
		b.WriteString(line.stage)
	}
	b.WriteString("  ")
	if msg := strings.TrimSpace(r.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	b.Write(line.attrs)
	if h.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&b, " source=%s:%d", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		c.add(a)
	}
	return c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix += name + "."
	return c
}

func (h *consoleHandler) clone() *consoleHandler {
	c := *h
	c.attrs = append([]byte(nil), h.attrs...)
	return &c
}

// add records a in the handler. Top-level component, job and stage keys
// go to the prefix; the last one set wins.
func (h *consoleHandler) add(a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if h.prefix == "" {
		switch a.Key {
		case FieldComponent:
			h.component = a.Value.String()
			return
		case FieldJobID:
			h.jobID = a.Value.String()
			return
		case FieldStage:
			h.stage = a.Value.String()
			return
		}
	}
	if a.Value.Kind() == slog.KindGroup {
		saved := h.prefix
		if a.Key != "" {
			h.prefix += a.Key + "."
		}
		for _, nested := range a.Value.Group() {
			h.add(nested)
		}
		h.prefix = saved
		return
	}
	h.attrs = append(h.attrs, ' ')
	h.attrs = append(h.attrs, h.prefix...)
	h.attrs = append(h.attrs, a.Key...)
	h.attrs = append(h.attrs, '=')
	h.attrs = append(h.attrs, consoleValue(a.Value)...)
}

func consoleValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
