// Package logger provides the leveled, optionally colorized logger used
// across the module. The default instance reads its level from LOG_LEVEL.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func parseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	level    Level
	colorize bool
}

// New returns a logger writing to out at the given level. Colorization is on
// by default; disable it when writing to files.
func New(out io.Writer, level Level) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{out: out, level: level, colorize: true}
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the process-wide logger, created on first use with the
// level taken from the LOG_LEVEL environment variable (INFO when unset).
func Default() *Logger {
	once.Do(func() {
		level := LevelInfo
		if env, ok := parseLevel(os.Getenv("LOG_LEVEL")); ok {
			level = env
		}
		defaultLogger = New(os.Stdout, level)
	})
	return defaultLogger
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) SetColorize(colorize bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colorize = colorize
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	tag := "[" + level.String() + "]"
	if l.colorize {
		switch level {
		case LevelDebug:
			tag = colorGray + tag + colorReset
		case LevelInfo:
			tag = colorBlue + tag + colorReset
		case LevelWarn:
			tag = colorYellow + tag + colorReset
		case LevelError:
			tag = colorRed + tag + colorReset
		}
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	fmt.Fprintln(l.out, time.Now().Format("2006-01-02 15:04:05"), tag, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// Package-level helpers on the default logger.

func Debugf(format string, args ...any) { Default().Debugf(format, args...) }
func Infof(format string, args ...any)  { Default().Infof(format, args...) }
func Warnf(format string, args ...any)  { Default().Warnf(format, args...) }
func Errorf(format string, args ...any) { Default().Errorf(format, args...) }
