package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// InitLogger configures the global logger. An empty file logs to stderr
// (human readable on a terminal, JSON otherwise), otherwise output goes to a
// lumberjack-rotated file.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var out io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	if file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	l := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))
	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLogLevel changes the level of the global logger. Unknown levels fall back to info.
func SetLogLevel(level string) {
	mu.Lock()
	logger = logger.Level(parseLevel(level))
	mu.Unlock()
}

// SetLoggerForTest replaces the global logger.
func SetLoggerForTest(l zerolog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Debug logs msg with key/value pairs at debug level.
func Debug(msg string, kv ...any) { write(zerolog.DebugLevel, msg, kv) }

// Info logs msg with key/value pairs at info level.
func Info(msg string, kv ...any) { write(zerolog.InfoLevel, msg, kv) }

// Warn logs msg with key/value pairs at warn level.
func Warn(msg string, kv ...any) { write(zerolog.WarnLevel, msg, kv) }

// Error logs msg with key/value pairs at error level.
func Error(msg string, kv ...any) { write(zerolog.ErrorLevel, msg, kv) }

func write(level zerolog.Level, msg string, kv []any) {
	l := Logger()
	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	if len(kv) > 0 {
		ev = ev.Fields(kv)
	}
	ev.Msg(msg)
}
