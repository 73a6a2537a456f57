package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/journal"
)

// JournalHandler is a slog.Handler that writes to the systemd journal
// with structured fields.
type JournalHandler struct {
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewJournalHandler creates a new systemd journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// IsJournalAvailable reports whether the systemd journal is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal with structured fields.
func (h *JournalHandler) Handle(_ context.Context, record slog.Record) error {
	fields := map[string]string{
		"SYSLOG_IDENTIFIER": "framegrab",
	}

	for _, attr := range h.attrs {
		addAttrToFields(fields, h.group, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		addAttrToFields(fields, h.group, attr)
		return true
	})

	return journal.Send(record.Message, mapLevelToPriority(record.Level), fields)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &JournalHandler{level: h.level, attrs: merged, group: h.group}
}

// WithGroup returns a new handler with the given group name.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "_" + name
	}
	return &JournalHandler{level: h.level, attrs: h.attrs, group: group}
}

// addAttrToFields converts a slog attribute into journal field format.
// Journal field names must be uppercase ASCII.
func addAttrToFields(fields map[string]string, prefix string, attr slog.Attr) {
	key := attr.Key
	if prefix != "" {
		key = prefix + "_" + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, a := range attr.Value.Group() {
			addAttrToFields(fields, key, a)
		}
		return
	}
	fields[sanitizeFieldName(key)] = fmt.Sprint(attr.Value.Resolve().Any())
}

// sanitizeFieldName uppercases and replaces characters the journal rejects.
func sanitizeFieldName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// mapLevelToPriority converts slog levels to journal priorities.
func mapLevelToPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}
