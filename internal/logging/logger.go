package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Level uint8

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

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes timestamped leveled lines through a buffered worker so the
// scoring hot path never blocks on file I/O. Lines are dropped when the
// buffer is full.
type Logger struct {
	level Level
	out   io.Writer
	file  *os.File
	lines chan string
	wg    sync.WaitGroup
}

func New(level Level, out io.Writer) *Logger {
	l := &Logger{
		level: level,
		out:   out,
		lines: make(chan string, 8192),
	}
	l.wg.Add(1)
	go l.worker()
	return l
}

// NewFile opens path for appending and tees every line to stderr as well.
func NewFile(level Level, path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := New(level, io.MultiWriter(f, os.Stderr))
	l.file = f
	return l, nil
}

func (l *Logger) worker() {
	defer l.wg.Done()
	for line := range l.lines {
		io.WriteString(l.out, line)
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	line := fmt.Sprintf("[%s] [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"), level, fmt.Sprintf(format, args...))
	select {
	case l.lines <- line:
	default:
		// Buffer full, drop rather than block the caller.
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }

func (l *Logger) Close() error {
	close(l.lines)
	l.wg.Wait()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

var global *Logger

// Init installs the process-wide logger used by the package-level helpers.
func Init(level Level, path string) error {
	logger, err := NewFile(level, path)
	if err != nil {
		return err
	}
	global = logger
	return nil
}

func Close() {
	if global != nil {
		global.Close()
		global = nil
	}
}

func Debug(format string, args ...interface{}) {
	if global != nil {
		global.Debug(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if global != nil {
		global.Info(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if global != nil {
		global.Warn(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if global != nil {
		global.Error(format, args...)
	}
}
