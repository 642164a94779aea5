package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type Config struct {
	Level     slog.Level
	Format    string
	Output    io.Writer
	AddSource bool
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Output:    os.Stderr,
		AddSource: false,
	}
}

var (
	level   = new(slog.LevelVar)
	current atomic.Pointer[slog.Handler]
)

func init() {
	var h slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	current.Store(&h)
}

func Init(cfg Config) {
	level.Set(cfg.Level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	current.Store(&handler)
	slog.SetDefault(slog.New(handler))
}

// SetLevel changes the level of every logger handed out by this package.
func SetLevel(l slog.Level) {
	level.Set(l)
}

func Level() slog.Level {
	return level.Level()
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

func Debug(msg string, args ...any) { slog.Debug(msg, args...) }
func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }

// ForComponent returns a logger tagged with the component name. Package-level
// loggers are created before Init runs, so the handler is resolved per record.
func ForComponent(component string) *slog.Logger {
	return slog.New(lazyHandler{}).With("component", component)
}

func With(args ...any) *slog.Logger {
	return slog.New(lazyHandler{}).With(args...)
}

type lazyHandler struct {
	wrap func(slog.Handler) slog.Handler
}

func (h lazyHandler) resolve() slog.Handler {
	base := *current.Load()
	if h.wrap == nil {
		return base
	}
	return h.wrap(base)
}

func (h lazyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= level.Level()
}

func (h lazyHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h lazyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prev := h.wrap
	return lazyHandler{wrap: func(base slog.Handler) slog.Handler {
		if prev != nil {
			base = prev(base)
		}
		return base.WithAttrs(attrs)
	}}
}

func (h lazyHandler) WithGroup(name string) slog.Handler {
	prev := h.wrap
	return lazyHandler{wrap: func(base slog.Handler) slog.Handler {
		if prev != nil {
			base = prev(base)
		}
		return base.WithGroup(name)
	}}
}
