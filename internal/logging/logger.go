package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level. Unknown names map to LevelInfo.
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

// Format represents the log output format.
type Format int

const (
	// FormatText outputs logs in human-readable text format.
	FormatText Format = iota
	// FormatJSON outputs one JSON object per line.
	FormatJSON
)

// ParseFormat parses a string into a Format. Unknown names map to FormatText.
func ParseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatText
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	// WithConnID returns a logger that tags every entry with conn_id.
	WithConnID(connID string) Logger
	// WithFields returns a logger carrying the given key/value pairs.
	WithFields(keysAndValues ...interface{}) Logger
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path opened for append.
	Output string
}

type field struct {
	key   string
	value interface{}
}

type logger struct {
	level  Level
	format Format
	output io.Writer
	mu     *sync.Mutex
	fields []field
	now    func() time.Time
}

// New creates a Logger from cfg. An output file that cannot be opened
// falls back to stdout.
func New(cfg Config) Logger {
	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}

	return NewWriter(output, ParseLevel(cfg.Level), ParseFormat(cfg.Format))
}

// NewWriter creates a Logger that writes to w.
func NewWriter(w io.Writer, level Level, format Format) Logger {
	return &logger{
		level:  level,
		format: format,
		output: w,
		mu:     &sync.Mutex{},
		now:    time.Now,
	}
}

// NewNop creates a logger that discards all output.
func NewNop() Logger {
	return nopLogger{}
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues)
}

func (l *logger) WithConnID(connID string) Logger {
	return l.WithFields("conn_id", connID)
}

func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	child := *l
	child.fields = appendFields(append([]field(nil), l.fields...), keysAndValues)
	return &child
}

// appendFields adds well-formed key/value pairs. A trailing key without a
// value and non-string keys are dropped.
func appendFields(dst []field, keysAndValues []interface{}) []field {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		dst = append(dst, field{key: key, value: normalize(keysAndValues[i+1])})
	}
	return dst
}

// normalize renders errors and Stringers as text so both formats agree.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

func (l *logger) log(level Level, msg string, keysAndValues []interface{}) {
	if level < l.level {
		return
	}

	fields := appendFields(append([]field(nil), l.fields...), keysAndValues)
	ts := l.now().UTC().Format(time.RFC3339)

	var buf bytes.Buffer
	if l.format == FormatJSON {
		writeJSON(&buf, ts, level, msg, fields)
	} else {
		writeText(&buf, ts, level, msg, fields)
	}
	buf.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.output.Write(buf.Bytes())
}

func writeText(buf *bytes.Buffer, ts string, level Level, msg string, fields []field) {
	fmt.Fprintf(buf, "%s [%s] %s", ts, level, msg)
	for _, f := range fields {
		fmt.Fprintf(buf, " %s=%v", f.key, f.value)
	}
}

func writeJSON(buf *bytes.Buffer, ts string, level Level, msg string, fields []field) {
	buf.WriteByte('{')
	writeJSONPair(buf, "ts", ts)
	buf.WriteByte(',')
	writeJSONPair(buf, "level", level.String())
	buf.WriteByte(',')
	writeJSONPair(buf, "msg", msg)
	for _, f := range fields {
		buf.WriteByte(',')
		writeJSONPair(buf, f.key, f.value)
	}
	buf.WriteByte('}')
}

func writeJSONPair(buf *bytes.Buffer, key string, value interface{}) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
	v, err := json.Marshal(value)
	if err != nil {
		v, _ = json.Marshal(fmt.Sprintf("%v", value))
	}
	buf.Write(v)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func (n nopLogger) WithConnID(string) Logger         { return n }
func (n nopLogger) WithFields(...interface{}) Logger { return n }
