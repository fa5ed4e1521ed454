package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/randalmurphal/gitlab-artifact-cleanup/config"
)

// newLogger builds the run logger: human-readable lines on w at the configured
// verbosity, plus a rotated JSON log file at debug level when log_file is set.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, func(), error) {
	h := &teeHandler{}
	closeFn := func() {}

	if level, ok := consoleLevel(cfg.Verbosity); ok {
		h.console = newConsoleHandler(w, level, colorEnabled(w, cfg.NoColor))
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		h.file = slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}).
			WithAttrs([]slog.Attr{slog.String("app", config.AppName)})
		closeFn = func() { _ = file.Close() }
	}

	return slog.New(h), closeFn, nil
}

func consoleLevel(verbosity string) (slog.Level, bool) {
	switch verbosity {
	case config.VerbosityQuiet:
		return 0, false
	case config.VerbosityError:
		return slog.LevelError, true
	case config.VerbosityWarn:
		return slog.LevelWarn, true
	case config.VerbosityDebug:
		return slog.LevelDebug, true
	default:
		return slog.LevelInfo, true
	}
}

func colorEnabled(w io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd conversion is safe on all supported platforms
}

// fileOnly returns a logger writing only to the log file of a logger made by
// newLogger.
func fileOnly(logger *slog.Logger) *slog.Logger {
	if h, ok := logger.Handler().(*teeHandler); ok && h.file != nil {
		return slog.New(h.file)
	}
	return slog.New(slog.DiscardHandler)
}

// teeHandler sends records to the console and the log file handler.
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (h *teeHandler) handlers() []slog.Handler {
	var out []slog.Handler
	if h.console != nil {
		out = append(out, h.console)
	}
	if h.file != nil {
		out = append(out, h.file)
	}
	return out
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sub := range h.handlers() {
		if sub.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, sub := range h.handlers() {
		if !sub.Enabled(ctx, r.Level) {
			continue
		}
		if err := sub.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &teeHandler{}
	if h.console != nil {
		out.console = h.console.WithAttrs(attrs)
	}
	if h.file != nil {
		out.file = h.file.WithAttrs(attrs)
	}
	return out
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	out := &teeHandler{}
	if h.console != nil {
		out.console = h.console.WithGroup(name)
	}
	if h.file != nil {
		out.file = h.file.WithGroup(name)
	}
	return out
}

var levelNames = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARNING",
	slog.LevelError: "ERROR",
}

var levelColors = map[slog.Level]lipgloss.Color{
	slog.LevelDebug: lipgloss.Color("8"),
	slog.LevelInfo:  lipgloss.Color("12"),
	slog.LevelWarn:  lipgloss.Color("11"),
	slog.LevelError: lipgloss.Color("9"),
}

// consoleHandler prints "[LEVEL] message key=value ..." lines.
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	tags   map[slog.Level]string
	prefix string // group prefix for attribute keys
	attrs  string // preformatted attributes
}

func newConsoleHandler(w io.Writer, level slog.Leveler, color bool) *consoleHandler {
	tags := make(map[slog.Level]string, len(levelNames))
	var renderer *lipgloss.Renderer
	if color {
		renderer = lipgloss.NewRenderer(w)
	}
	for lvl, name := range levelNames {
		if renderer != nil {
			name = renderer.NewStyle().Foreground(levelColors[lvl]).Bold(lvl >= slog.LevelWarn).Render(name)
		}
		tags[lvl] = "[" + name + "]"
	}
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, tags: tags}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(h.tag(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	buf.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) tag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.tags[slog.LevelError]
	case level >= slog.LevelWarn:
		return h.tags[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return h.tags[slog.LevelInfo]
	default:
		return h.tags[slog.LevelDebug]
	}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var buf bytes.Buffer
	buf.WriteString(h.attrs)
	for _, a := range attrs {
		appendAttr(&buf, h.prefix, a)
	}
	out := *h
	out.attrs = buf.String()
	return &out
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.prefix = h.prefix + name + "."
	return &out
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			appendAttr(buf, p, ga)
		}
		return
	}

	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	s := v.String()
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		s = strconv.Quote(s)
	}
	buf.WriteString(s)
}
