package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const consoleTimestampLayout = "2006-01-02 15:04:05"

// subjectKeys are lifted out of the trailing key=value list and rendered in
// the line prefix instead.
var subjectKeys = map[string]bool{
	FieldComponent: true,
	FieldVideoID:   true,
	FieldStage:     true,
	FieldHost:      true,
}

// prettyHandler renders one human-readable line per record:
//
//	2026-01-02 15:04:05 WARN [transcode] Video #7 (convert) @ nas - msg key=value
type prettyHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	prefix    string
	attrs     []field
	addSource bool
}

type field struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: new(sync.Mutex), w: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	fields := append([]field(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = collect(fields, h.prefix, attr)
		return true
	})

	subject := make(map[string]string, len(subjectKeys))
	var rest strings.Builder
	for _, f := range fields {
		if subjectKeys[f.key] {
			if _, seen := subject[f.key]; !seen {
				subject[f.key] = strings.TrimSpace(attrString(f.value))
			}
			continue
		}
		fmt.Fprintf(&rest, " %s=%s", f.key, formatValue(f.value))
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var line strings.Builder
	line.WriteString(ts.Local().Format(consoleTimestampLayout))
	line.WriteString(" " + levelLabel(record.Level))
	if c := subject[FieldComponent]; c != "" {
		line.WriteString(" [" + c + "]")
	}
	if s := composeSubject(subject[FieldVideoID], subject[FieldStage], subject[FieldHost]); s != "" {
		line.WriteString(" " + s)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(" - " + msg)
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	line.WriteString(rest.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

// composeSubject renders "Video #12 (convert) @ 192.168.0.25" style prefixes.
func composeSubject(videoID, stage, host string) string {
	var parts []string
	if videoID != "" && videoID != "0" {
		parts = append(parts, "Video #"+videoID)
	}
	if stage != "" {
		parts = append(parts, "("+stage+")")
	}
	if host != "" {
		parts = append(parts, "@ "+host)
	}
	return strings.Join(parts, " ")
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]field(nil), h.attrs...)
	for _, attr := range attrs {
		next.attrs = collect(next.attrs, h.prefix, attr)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// collect appends attr to dst, flattening groups into dotted keys.
func collect(dst []field, prefix string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range value.Group() {
			dst = collect(dst, prefix, member)
		}
		return dst
	}
	if attr.Key == "" {
		return dst
	}
	return append(dst, field{key: prefix + attr.Key, value: value})
}

func levelLabel(level slog.Level) string {
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
