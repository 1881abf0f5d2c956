package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var levelColors = map[slog.Level]string{
	slog.LevelError: "\x1b[31m",
	slog.LevelWarn:  "\x1b[33m",
	slog.LevelInfo:  "\x1b[34m",
	slog.LevelDebug: "\x1b[90m",
}

const colorReset = "\x1b[0m"

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

// consoleHandler renders one line per record:
//
//	2026-01-02T15:04:05Z INFO component: message [file.go:12] key=value ...
//
// The component attribute becomes the line prefix instead of a key. Attributes
// bound through WithAttrs are rendered once and reused.
type consoleHandler struct {
	out       *syncWriter
	level     slog.Leveler
	source    bool
	color     bool
	component string
	bound     string
	group     string
}

func newPrettyHandler(w io.Writer, lvl slog.Leveler, addSource, color bool) slog.Handler {
	return &consoleHandler{out: &syncWriter{w: w}, level: lvl, source: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var sb strings.Builder
	sb.WriteString(h.bound)
	for _, a := range attrs {
		next.appendAttr(&sb, h.group, a)
	}
	next.bound = sb.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.group + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	if !h.Enabled(context.Background(), r.Level) {
		return nil
	}

	rec := *h
	var fields strings.Builder
	fields.WriteString(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		rec.appendAttr(&fields, h.group, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}

	var line strings.Builder
	line.Grow(96 + fields.Len())
	line.WriteString(ts.UTC().Format(time.RFC3339))
	line.WriteByte(' ')
	line.WriteString(h.label(r.Level))
	line.WriteByte(' ')
	if rec.component != "" {
		line.WriteString(rec.component)
		line.WriteString(": ")
	}
	line.WriteString(msg)
	if h.source && r.PC != 0 {
		if src := r.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	line.WriteString(fields.String())
	line.WriteByte('\n')
	return h.out.write([]byte(line.String()))
}

// appendAttr writes a as " key=value", flattening groups into dotted keys.
// A top-level component attribute replaces the line prefix instead.
func (h *consoleHandler) appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			h.appendAttr(sb, prefix, g)
		}
		return
	}
	if prefix == "" && a.Key == FieldComponent {
		h.component = a.Value.String()
		return
	}
	if a.Key == "" {
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(prefix)
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	sb.WriteString(renderValue(a.Value))
}

func (h *consoleHandler) label(level slog.Level) string {
	base := slog.LevelDebug
	switch {
	case level >= slog.LevelError:
		base = slog.LevelError
	case level >= slog.LevelWarn:
		base = slog.LevelWarn
	case level >= slog.LevelInfo:
		base = slog.LevelInfo
	}
	if !h.color {
		return base.String()
	}
	return levelColors[base] + base.String() + colorReset
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindBool, slog.KindInt64, slog.KindUint64, slog.KindDuration:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func shouldColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
