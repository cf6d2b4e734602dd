// Package debug provides the levelled run logger and a small timing tracker.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level is the minimum severity a Logger prints.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps the DEBUG_LOGGING / LOG_LEVEL settings onto a Level.
func ParseLevel(debugLogging bool, logLevel string) Level {
	if debugLogging {
		return LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes one line per event, each suffixed with the milliseconds
// elapsed since the previous line.
type Logger struct {
	mu    sync.Mutex
	out   *log.Logger
	level Level
	last  time.Time
	now   func() time.Time

	good lipgloss.Style
	info lipgloss.Style
	warn lipgloss.Style
	gray lipgloss.Style
}

// New creates a Logger writing to w. Colours are dropped when w is not a terminal.
func New(w io.Writer, level Level) *Logger {
	r := lipgloss.NewRenderer(w)
	return &Logger{
		out:   log.New(w, "", 0),
		level: level,
		now:   time.Now,
		good:  r.NewStyle().Foreground(lipgloss.Color("2")),
		info:  r.NewStyle().Foreground(lipgloss.Color("4")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("3")),
		gray:  r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Stderr is a Logger on os.Stderr at LevelInfo.
func Stderr() *Logger {
	return New(os.Stderr, LevelInfo)
}

// Discard returns a Logger that prints nothing.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

// SetLevel changes the minimum printed severity.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Good reports a completed step.
func (l *Logger) Good(format string, args ...any) {
	l.emit(LevelInfo, colorGood, format, args...)
}

// Info reports progress detail.
func (l *Logger) Info(format string, args ...any) {
	l.emit(LevelDebug, colorInfo, format, args...)
}

// Trace reports request-level detail.
func (l *Logger) Trace(format string, args ...any) {
	l.emit(LevelTrace, colorGray, format, args...)
}

// Warn reports a recoverable problem.
func (l *Logger) Warn(format string, args ...any) {
	l.emit(LevelWarn, colorWarn, format, args...)
}

// Problem reports a failure or a wait the user should know about.
func (l *Logger) Problem(format string, args ...any) {
	l.emit(LevelError, colorNone, format, args...)
}

type color int

const (
	colorNone color = iota
	colorGood
	colorInfo
	colorWarn
	colorGray
)

func (l *Logger) emit(level Level, c color, format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	switch c {
	case colorGood:
		msg = l.good.Render(msg)
	case colorInfo:
		msg = l.info.Render(msg)
	case colorWarn:
		msg = l.warn.Render(msg)
	case colorGray:
		msg = l.gray.Render(msg)
	}

	now := l.now()
	var delta time.Duration
	if !l.last.IsZero() {
		delta = now.Sub(l.last)
	}
	l.last = now

	l.out.Print(msg + l.gray.Render(fmt.Sprintf(" (%dms)", delta.Milliseconds())))
}
