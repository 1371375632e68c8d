// Package log provides the leveled key/value logger used across gpp. Records go to
// stderr as text (colored on a terminal) or as JSON lines, so command output on stdout
// stays machine readable.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

var levelColors = [...]string{
	DebugLevel: "\033[36m", // cyan
	InfoLevel:  "\033[32m", // green
	WarnLevel:  "\033[33m", // yellow
	ErrorLevel: "\033[31m", // red
}

const colorReset = "\033[0m"

func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a level name (debug, info, warn/warning, error) into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger interface defines structured logging methods. Arguments after the message
// are key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Stderr     io.Writer
}

// sink is the destination shared by a logger and the loggers derived with With.
type sink struct {
	mu         sync.Mutex
	w          io.Writer
	level      Level
	jsonOutput bool
	colors     bool
}

// DefaultLogger is the default implementation of Logger.
type DefaultLogger struct {
	sink   *sink
	fields []field
}

var (
	defaultLogger *DefaultLogger
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	w := cfg.Stderr
	if w == nil {
		w = os.Stderr
	}
	return &DefaultLogger{sink: &sink{
		w:          w,
		level:      cfg.Level,
		jsonOutput: cfg.JSONOutput,
		colors:     isTerminal(w),
	}}
}

// Default returns the process-wide logger writing to stderr at info level.
func Default() *DefaultLogger {
	once.Do(func() {
		defaultLogger = New(LoggerConfig{Level: InfoLevel, Stderr: os.Stderr})
	})
	return defaultLogger
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || runtime.GOOS == "windows" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// IsTTY checks if the standard error is a TTY
func IsTTY() bool {
	return isTerminal(os.Stderr)
}

// field is one key/value pair of a record.
type field struct {
	key   string
	value interface{}
}

// fields pairs up key/value args. A leading odd argument is kept under "arg".
func fields(args ...interface{}) []field {
	var out []field
	if len(args)%2 != 0 {
		out = append(out, field{key: "arg", value: args[0]})
		args = args[1:]
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		out = append(out, field{key: key, value: args[i+1]})
	}
	return out
}

// formatMessage renders msg followed by key=value pairs.
func formatMessage(msg string, fs []field) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for _, f := range fs {
		fmt.Fprintf(&sb, " %s=%v", f.key, f.value)
	}
	return sb.String()
}

// encodeJSON renders a record as one JSON object. Errors are stored as their message.
func encodeJSON(timestamp string, level Level, msg string, fs []field) []byte {
	entry := make(map[string]interface{}, len(fs)+3)
	for _, f := range fs {
		if err, ok := f.value.(error); ok {
			entry[f.key] = err.Error()
			continue
		}
		entry[f.key] = f.value
	}
	entry["timestamp"] = timestamp
	entry["level"] = level.String()
	entry["message"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(map[string]string{
			"timestamp": timestamp,
			"level":     level.String(),
			"message":   formatMessage(msg, fs),
		})
	}
	return data
}

func (l *DefaultLogger) write(level Level, msg string, args []interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fs := append(append([]field(nil), l.fields...), fields(args...)...)

	if s.jsonOutput {
		fmt.Fprintln(s.w, string(encodeJSON(timestamp, level, msg, fs)))
		return
	}

	text := formatMessage(msg, fs)
	if s.colors {
		text = levelColors[level] + text + colorReset
	}
	fmt.Fprintf(s.w, "[%s] %s: %s\n", timestamp, level, text)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.write(DebugLevel, msg, args)
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.write(InfoLevel, msg, args)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.write(WarnLevel, msg, args)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.write(ErrorLevel, msg, args)
}

// With returns a logger that adds the given key/value pairs to every record. It shares
// the level and output of l.
func (l *DefaultLogger) With(args ...interface{}) Logger {
	return &DefaultLogger{
		sink:   l.sink,
		fields: append(append([]field(nil), l.fields...), fields(args...)...),
	}
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.jsonOutput = enabled
}

// ProgressSpinner animates a message on stderr while a long operation runs. It draws
// nothing when stderr is not a terminal.
type ProgressSpinner struct {
	mu      sync.Mutex
	message string
	frame   int
	writer  io.Writer
	enabled bool
	stop    chan struct{}
	done    chan struct{}
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewProgressSpinner creates a new progress spinner
func NewProgressSpinner(message string) *ProgressSpinner {
	return &ProgressSpinner{
		message: message,
		writer:  os.Stderr,
		enabled: IsTTY(),
	}
}

// Start begins the spinner animation
func (p *ProgressSpinner) Start() {
	if !p.enabled || p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.animate()
}

// Stop stops the spinner and clears its line.
func (p *ProgressSpinner) Stop() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop = nil
	fmt.Fprint(p.writer, "\r\033[K")
}

// Message updates the spinner message
func (p *ProgressSpinner) Message(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *ProgressSpinner) animate() {
	defer close(p.done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			fmt.Fprintf(p.writer, "\r\033[36m%s\033[0m %s", spinnerFrames[p.frame%len(spinnerFrames)], p.message)
			p.frame++
			p.mu.Unlock()
		case <-p.stop:
			return
		}
	}
}
