// Package log provides the logging facade used across scf.
// It wraps the Kratos logging system with a zerolog backend and exposes
// package-level helpers for each level.
package log

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Level represents the logging level.
type Level int32

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority.
	ErrorLevel
)

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
// Unknown names map to InfoLevel.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return DebugLevel
	case "warn", "WARN", "warning":
		return WarnLevel
	case "error", "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) kratos() log.Level {
	switch l {
	case DebugLevel:
		return log.LevelDebug
	case WarnLevel:
		return log.LevelWarn
	case ErrorLevel:
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

var (
	// base is the unfiltered logger the helper is rebuilt from on level changes.
	base atomic.Pointer[log.Logger]
	// helperStore holds the active helper; nil means the fallback is used.
	helperStore atomic.Pointer[log.Helper]
	level       atomic.Int32
)

func init() {
	level.Store(int32(InfoLevel))
}

// SetLogger installs l as the backing logger. Records below the current
// level are dropped.
func SetLogger(l log.Logger) {
	if l == nil {
		base.Store(nil)
		helperStore.Store(nil)
		return
	}
	base.Store(&l)
	rebuild()
}

// SetLevel changes the minimum level of the installed logger.
func SetLevel(l Level) {
	level.Store(int32(l))
	rebuild()
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	return Level(level.Load())
}

func rebuild() {
	b := base.Load()
	if b == nil {
		return
	}
	filtered := log.NewFilter(*b, log.FilterLevel(GetLevel().kratos()))
	helperStore.Store(log.NewHelper(filtered))
}

// Logger returns the installed Kratos logger, or nil before initialization.
func Logger() log.Logger {
	if b := base.Load(); b != nil {
		return *b
	}
	return nil
}

// fallbackLogger writes plain lines to stderr before a logger is installed.
type fallbackLogger struct{}

func (fallbackLogger) logf(lvl Level, name, format string, args ...any) {
	if lvl < GetLevel() {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(os.Stderr, "[%s] [%s] [scf-log-fallback] %s\n", ts, name, fmt.Sprintf(format, args...))
}

var fallback fallbackLogger

func helper() *log.Helper {
	return helperStore.Load()
}

func Debug(a ...any) {
	if h := helper(); h != nil {
		h.Debug(a...)
	} else {
		fallback.logf(DebugLevel, "DEBUG", "%s", fmt.Sprint(a...))
	}
}

func Debugf(format string, a ...any) {
	if h := helper(); h != nil {
		h.Debugf(format, a...)
	} else {
		fallback.logf(DebugLevel, "DEBUG", format, a...)
	}
}

func DebugfCtx(ctx context.Context, format string, a ...any) {
	if h := helper(); h != nil {
		h.WithContext(ctx).Debugf(format, a...)
	} else {
		fallback.logf(DebugLevel, "DEBUG", format, a...)
	}
}

func Debugw(keyvals ...any) {
	if h := helper(); h != nil {
		h.Debugw(keyvals...)
	}
}

func Info(a ...any) {
	if h := helper(); h != nil {
		h.Info(a...)
	} else {
		fallback.logf(InfoLevel, "INFO", "%s", fmt.Sprint(a...))
	}
}

func Infof(format string, a ...any) {
	if h := helper(); h != nil {
		h.Infof(format, a...)
	} else {
		fallback.logf(InfoLevel, "INFO", format, a...)
	}
}

func InfofCtx(ctx context.Context, format string, a ...any) {
	if h := helper(); h != nil {
		h.WithContext(ctx).Infof(format, a...)
	} else {
		fallback.logf(InfoLevel, "INFO", format, a...)
	}
}

func Infow(keyvals ...any) {
	if h := helper(); h != nil {
		h.Infow(keyvals...)
	}
}

func Warn(a ...any) {
	if h := helper(); h != nil {
		h.Warn(a...)
	} else {
		fallback.logf(WarnLevel, "WARN", "%s", fmt.Sprint(a...))
	}
}

func Warnf(format string, a ...any) {
	if h := helper(); h != nil {
		h.Warnf(format, a...)
	} else {
		fallback.logf(WarnLevel, "WARN", format, a...)
	}
}

func WarnfCtx(ctx context.Context, format string, a ...any) {
	if h := helper(); h != nil {
		h.WithContext(ctx).Warnf(format, a...)
	} else {
		fallback.logf(WarnLevel, "WARN", format, a...)
	}
}

func Warnw(keyvals ...any) {
	if h := helper(); h != nil {
		h.Warnw(keyvals...)
	}
}

func Error(a ...any) {
	if h := helper(); h != nil {
		h.Error(a...)
	} else {
		fallback.logf(ErrorLevel, "ERROR", "%s", fmt.Sprint(a...))
	}
}

func Errorf(format string, a ...any) {
	if h := helper(); h != nil {
		h.Errorf(format, a...)
	} else {
		fallback.logf(ErrorLevel, "ERROR", format, a...)
	}
}

func ErrorfCtx(ctx context.Context, format string, a ...any) {
	if h := helper(); h != nil {
		h.WithContext(ctx).Errorf(format, a...)
	} else {
		fallback.logf(ErrorLevel, "ERROR", format, a...)
	}
}

func Errorw(keyvals ...any) {
	if h := helper(); h != nil {
		h.Errorw(keyvals...)
	}
}
