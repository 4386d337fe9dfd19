// Package log builds the slog.Logger used by the device stack and holds the
// raw endpoint traffic logger.
//
// Without a log file, records below Error go to stdout and Error and above go
// to stderr, so redirecting stderr captures only failures.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LevelTrace sits below Debug and is used for per-transfer endpoint traffic.
const LevelTrace slog.Level = -8

func ParseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// discardHandler mirrors slog.DiscardHandler, which needs go1.24; this module
// must also build with go1.21 toolchains.
type discardHandler struct{}

func (dh discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (dh discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (dh discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return dh }
func (dh discardHandler) WithGroup(string) slog.Handler             { return dh }

// Discard returns a logger that drops every record, for running a device
// stack silently.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// renameLevels renders LevelTrace as TRACE; slog would print DEBUG-4.
func renameLevels(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

func textOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, ReplaceAttr: renameLevels}
}

// fanout sends each record to every target handler.
type fanout struct{ targets []slog.Handler }

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.targets {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.targets {
		_ = h.Handle(ctx, r)
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(f.targets))
	for i, h := range f.targets {
		out[i] = h.WithAttrs(attrs)
	}
	return fanout{targets: out}
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(f.targets))
	for i, h := range f.targets {
		out[i] = h.WithGroup(name)
	}
	return fanout{targets: out}
}

// belowError suppresses Error and above on the wrapped handler. The stderr
// handler carries those, and without this they would appear twice.
type belowError struct{ h slog.Handler }

func (b belowError) Enabled(ctx context.Context, level slog.Level) bool {
	return level < slog.LevelError && b.h.Enabled(ctx, level)
}

func (b belowError) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return nil
	}
	return b.h.Handle(ctx, r)
}

func (b belowError) WithAttrs(attrs []slog.Attr) slog.Handler {
	return belowError{h: b.h.WithAttrs(attrs)}
}

func (b belowError) WithGroup(name string) slog.Handler {
	return belowError{h: b.h.WithGroup(name)}
}

// SetupLogger builds a slog.Logger from the configured level name and an
// optional log file path. The returned closers own any opened file.
func SetupLogger(logLevel, logFile string) (*slog.Logger, []io.Closer, error) {
	level := ParseLevel(logLevel)
	var targets []slog.Handler

	if logFile == "" {
		targets = append(targets,
			belowError{h: slog.NewTextHandler(os.Stdout, textOptions(level))},
			slog.NewTextHandler(os.Stderr, textOptions(slog.LevelError)))
	} else {
		targets = append(targets, slog.NewTextHandler(os.Stderr, textOptions(level)))
	}

	var closeFiles []io.Closer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		closeFiles = append(closeFiles, f)
		targets = append(targets, slog.NewTextHandler(f, textOptions(level)))
	}
	return slog.New(fanout{targets: targets}), closeFiles, nil
}
