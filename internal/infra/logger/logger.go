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
	default:
		return "ERROR"
	}
}

// Logger is a small levelled logger. It is always passed in, never global.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	file  io.WriteCloser
	level Level
	now   func() time.Time
}

func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level, now: time.Now}
}

// NewWithFile writes every line to the file at filePath as well as to out.
// The file receives Debug lines regardless of level so that a run can be inspected afterwards.
func NewWithFile(out io.Writer, level Level, filePath string) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	l := New(out, level)
	l.file = f
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger { return New(io.Discard, LevelError+1) }

func (l *Logger) log(lvl Level, format string, v ...any) {
	toOut := lvl >= l.level
	if !toOut && l.file == nil {
		return
	}

	timestamp := l.now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	fullMsg := fmt.Sprintf("%s [%s] %s\n", timestamp, lvl, msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		_, _ = io.WriteString(l.file, fullMsg)
	}
	if toOut {
		_, _ = io.WriteString(l.out, fullMsg)
	}
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "error":
		return LevelError
	default:
		return LevelWarn
	}
}

// FromVerbosity maps the repeatable -v flag: 0 warnings only, 1 info, 2+ debug.
// With no -v the configured fallback level applies.
func FromVerbosity(count int, fallback Level) Level {
	switch {
	case count >= 2:
		return LevelDebug
	case count == 1:
		return LevelInfo
	default:
		return fallback
	}
}

func (l *Logger) Level() Level { return l.level }

func (l *Logger) Debug(f string, v ...any) { l.log(LevelDebug, f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.log(LevelInfo, f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.log(LevelWarn, f, v...) }
func (l *Logger) Error(f string, v ...any) { l.log(LevelError, f, v...) }

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
