package logging

import (
	"context"
	"log/slog"
	"time"
)

// BufferHandler is a slog.Handler that writes entries to the shared ring
// buffer so recent history is queryable through the API.
type BufferHandler struct {
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewBufferHandler creates a handler writing to the package ring buffer.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle stores the record in the ring buffer.
func (h *BufferHandler) Handle(_ context.Context, record slog.Record) error {
	buffer := GetBuffer()
	if buffer == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp: record.Time,
		Level:     levelToString(record.Level),
		Message:   record.Message,
	}

	attrs := make(map[string]any)
	for _, attr := range h.attrs {
		flattenAttr(attrs, h.group, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(attrs, h.group, attr)
		return true
	})

	if module, ok := attrs["module"].(string); ok {
		entry.Module = module
		delete(attrs, "module")
	}
	if len(attrs) > 0 {
		entry.Attrs = attrs
	}

	buffer.Add(entry)
	return nil
}

// WithAttrs returns a new handler with the given attributes added.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &BufferHandler{level: h.level, attrs: merged, group: h.group}
}

// WithGroup returns a new handler with the given group name.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &BufferHandler{level: h.level, attrs: h.attrs, group: group}
}

// flattenAttr adds an attribute to the map, expanding groups with dotted keys.
func flattenAttr(dst map[string]any, prefix string, attr slog.Attr) {
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, a := range attr.Value.Group() {
			flattenAttr(dst, key, a)
		}
		return
	}
	v := attr.Value.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		dst[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = v.Duration().String()
	default:
		dst[key] = v.Any()
	}
}

// levelToString converts slog.Level to a lowercase string.
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
