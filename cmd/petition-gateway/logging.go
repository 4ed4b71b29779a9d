// ABOUTME: slog setup for the gateway binary
// ABOUTME: Colorized terminal handler that masks credential attributes, or JSON for log shipping

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/petition-gateway/internal/config"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	return slog.New(newHandler(os.Stderr, cfg))
}

func newHandler(w io.Writer, cfg config.LoggingConfig) slog.Handler {
	level := parseLevel(cfg.Level)
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if sensitiveKey(a.Key) {
					return slog.String(a.Key, redacted)
				}
				return a
			},
		})
	}
	return &terminalHandler{out: &lockedWriter{w: w}, level: level}
}

const redacted = "[redacted]"

var sensitiveWords = map[string]bool{
	"secret": true, "password": true, "verifier": true, "proof": true,
	"token": true, "salt": true, "ephemeral": true,
}

// sensitiveKey reports whether an attribute could carry SRP or session material,
// judged by the last word of the key ("client_proof", "newSalt").
func sensitiveKey(key string) bool {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	if len(words) == 0 {
		return false
	}
	last := words[len(words)-1]
	// camelCase keys: take the trailing capitalized word
	if i := strings.LastIndexFunc(last, func(r rune) bool { return r >= 'A' && r <= 'Z' }); i > 0 {
		last = last[i:]
	}
	return sensitiveWords[strings.ToLower(last)]
}

// lockedWriter is shared by every handler derived from the same root.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, line)
	return err
}

type terminalHandler struct {
	out    *lockedWriter
	level  slog.Level
	prefix string
	// pre holds attributes rendered by WithAttrs.
	pre string
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: color.MagentaString("DBG"),
	slog.LevelInfo:  color.CyanString("INF"),
	slog.LevelWarn:  color.YellowString("WRN"),
	slog.LevelError: color.New(color.FgRed, color.Bold).Sprint("ERR"),
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	if tag, ok := levelTags[r.Level]; ok {
		b.WriteString(tag)
	} else {
		b.WriteString(r.Level.String())
	}
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.pre)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')
	return h.out.write(b.String())
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.pre)
	for _, a := range attrs {
		writeAttr(&b, h.prefix, a)
	}
	next := *h
	next.pre = b.String()
	return &next
}

func (h *terminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix, ga)
		}
		return
	}

	val := a.Value.String()
	if sensitiveKey(a.Key) {
		val = redacted
	}
	b.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
	b.WriteString(val)
}
