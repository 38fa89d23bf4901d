// Package logger provides a simple leveled logger for cellsh
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// LogLevel represents the log level
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota
	// INFO level for general informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string to LogLevel
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Colors for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorGray   = "\033[90m"
)

// Logger is a simple leveled logger
type Logger struct {
	mu       sync.Mutex
	level    LogLevel
	output   io.Writer
	noColor  bool
	showTime bool
}

// Config holds logger configuration
type Config struct {
	Level    string
	Output   io.Writer // defaults to stderr
	NoColor  bool
	ShowTime bool
}

// New creates a new logger with the given configuration
func New(cfg *Config) *Logger {
	level := INFO
	output := io.Writer(os.Stderr)
	noColor := false
	showTime := false

	if cfg != nil {
		if cfg.Level != "" {
			level = ParseLogLevel(cfg.Level)
		}
		if cfg.Output != nil {
			output = cfg.Output
		}
		noColor = cfg.NoColor
		showTime = cfg.ShowTime
	}

	// Detect if output is a terminal
	if !noColor {
		if f, ok := output.(*os.File); ok {
			noColor = !isatty.IsTerminal(f.Fd())
		} else {
			noColor = true
		}
	}

	return &Logger{
		level:    level,
		output:   output,
		noColor:  noColor,
		showTime: showTime,
	}
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput sets the output writer and disables color
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.noColor = true
}

// log is the internal logging method
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	var levelStr, color string
	switch level {
	case DEBUG:
		levelStr = "DEBUG"
		color = colorGray
	case INFO:
		levelStr = "INFO "
		color = colorGreen
	case WARN:
		levelStr = "WARN "
		color = colorYellow
	case ERROR:
		levelStr = "ERROR"
		color = colorRed
	}

	if l.noColor {
		if l.showTime {
			fmt.Fprintf(l.output, "%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), levelStr, msg)
		} else {
			fmt.Fprintf(l.output, "[%s] %s\n", levelStr, msg)
		}
	} else {
		if l.showTime {
			fmt.Fprintf(l.output, "%s [%s%s%s] %s\n",
				time.Now().Format("2006-01-02 15:04:05"),
				color, levelStr, colorReset, msg)
		} else {
			fmt.Fprintf(l.output, "[%s%s%s] %s\n", color, levelStr, colorReset, msg)
		}
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}
