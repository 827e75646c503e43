package handler

import (
	"log/slog"
	"strings"
)

// Formatter renders one log record as the message text of an event.
// attrs are the handler-level attributes accumulated through WithAttrs,
// already qualified with their group prefixes; groups are the open
// groups that apply to the record's own attributes.
type Formatter interface {
	Format(r slog.Record, attrs []slog.Attr, groups []string) (string, error)
}

// FormatterFunc adapts a function to the Formatter interface.
type FormatterFunc func(r slog.Record, attrs []slog.Attr, groups []string) (string, error)

// Format calls f.
func (f FormatterFunc) Format(r slog.Record, attrs []slog.Attr, groups []string) (string, error) {
	return f(r, attrs, groups)
}

// TextFormatter renders records as "LEVEL message key=value" lines.
// The event's own timestamp carries the record time, so the line does
// not repeat it. Group names join their member keys with dots.
type TextFormatter struct{}

// Format renders the record.
func (TextFormatter) Format(r slog.Record, attrs []slog.Attr, groups []string) (string, error) {
	var sb strings.Builder
	sb.WriteString(r.Level.String())
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	for _, a := range attrs {
		appendAttr(&sb, "", a)
	}

	prefix := strings.Join(groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&sb, prefix, a)
		return true
	})

	return sb.String(), nil
}

func appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = joinKey(prefix, a.Key)
		}
		for _, member := range a.Value.Group() {
			appendAttr(sb, groupPrefix, member)
		}
		return
	}

	// Zero attrs are ignored, matching the built-in handlers.
	if a.Key == "" {
		return
	}

	sb.WriteByte(' ')
	sb.WriteString(joinKey(prefix, a.Key))
	sb.WriteByte('=')
	sb.WriteString(a.Value.String())
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
