package log

import (
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"

	"github.com/go-lynx/scf/conf"
)

// zeroLogLogger adapts a zerolog.Logger to the Kratos log.Logger interface.
// Values are written as typed zerolog fields so descriptors, durations and
// errors keep their natural encoding.
type zeroLogLogger struct {
	logger zerolog.Logger
}

// Log implements log.Logger.
func (l zeroLogLogger) Log(level log.Level, keyvals ...any) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "BAD_VALUE")
	}

	var event *zerolog.Event
	switch level {
	case log.LevelDebug:
		event = l.logger.Debug()
	case log.LevelInfo:
		event = l.logger.Info()
	case log.LevelWarn:
		event = l.logger.Warn()
	case log.LevelError:
		event = l.logger.Error()
	case log.LevelFatal:
		event = l.logger.Fatal()
	default:
		event = l.logger.Warn().Interface("original_level", level)
	}
	// Sampled out.
	if event == nil {
		return nil
	}

	var msg string
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("BAD_KEY_%d", i)
		}
		val := keyvals[i+1]
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(val)
			continue
		}
		event = field(event, key, val)
	}

	if sc := getStackConfig(); sc.enabled && level >= sc.minLevel {
		if stack := captureStack(); stack != "" {
			event = event.Str("stack", stack)
		}
	}

	event.Msg(msg)
	return nil
}

func field(e *zerolog.Event, key string, val any) *zerolog.Event {
	switch v := val.(type) {
	case nil:
		return e
	case string:
		// trace.id and span.id valuers yield "" outside a span.
		if v == "" && (key == "trace.id" || key == "span.id") {
			return e
		}
		return e.Str(key, v)
	case error:
		if key == "err" || key == "error" {
			return e.Err(v)
		}
		return e.AnErr(key, v)
	case time.Duration:
		return e.Dur(key, v)
	case time.Time:
		return e.Time(key, v)
	case bool:
		return e.Bool(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case uint32:
		return e.Uint32(key, v)
	case float64:
		return e.Float64(key, v)
	case fmt.Stringer:
		return e.Stringer(key, v)
	default:
		return e.Interface(key, val)
	}
}

// sampler builds the zerolog sampler for c, or nil when nothing is thinned.
// Warnings and errors always pass.
func sampler(c conf.LogSampling) zerolog.Sampler {
	if !c.Enabled {
		return nil
	}
	debug, info := levelSampler(c.Debug), levelSampler(c.Info)
	if debug == nil && info == nil {
		return nil
	}
	return &zerolog.LevelSampler{DebugSampler: debug, InfoSampler: info}
}

// levelSampler passes PerSecond records each second, then one in Every of
// the rest. Every of zero drops the rest.
func levelSampler(c conf.LevelSampling) zerolog.Sampler {
	var next zerolog.Sampler
	if c.Every > 0 {
		next = &zerolog.BasicSampler{N: c.Every}
	}
	if c.PerSecond == 0 {
		return next
	}
	return &zerolog.BurstSampler{Burst: c.PerSecond, Period: time.Second, NextSampler: next}
}
