package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/rs/zerolog"

	"github.com/go-lynx/scf/conf"
)

// callerSkip is the frame depth from the Kratos valuer to the caller of a
// package-level helper such as Infof.
const callerSkip = 5

var (
	closerMu sync.Mutex
	closer   io.Closer
)

// InitLogger installs a zerolog backed logger configured by c.
// Records carry the service name and version plus trace/span ids when the
// logging call has a context with an active span.
func InitLogger(name, version string, c conf.Log) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	var writers []io.Writer
	if c.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})
	} else {
		writers = append(writers, os.Stderr)
	}

	var fileWriter *batchWriter
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		fileWriter = newBatchWriter(f, 0, time.Second)
		writers = append(writers, fileWriter)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	if smp := sampler(c.Sampling); smp != nil {
		zl = zl.Sample(smp)
	}

	logger := log.With(zeroLogLogger{logger: zl},
		"caller", log.Caller(callerSkip),
		"service.name", name,
		"service.version", version,
		"trace.id", tracing.TraceID(),
		"span.id", tracing.SpanID(),
	)

	lvl := ParseLevel(c.Level)
	SetStack(c.Stack, ErrorLevel)
	level.Store(int32(lvl))
	SetLogger(logger)

	closerMu.Lock()
	old := closer
	closer = nil
	if fileWriter != nil {
		closer = fileWriter
	}
	closerMu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close flushes and closes the log file, if any. The console logger stays
// installed.
func Close() error {
	closerMu.Lock()
	c := closer
	closer = nil
	closerMu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}
