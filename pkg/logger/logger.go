// Package logger writes one JSON object per line for the clinical hours
// service. Loggers derived with With share their parent's writer lock.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelFatal exits the process after writing.
	LevelFatal
)

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
	case LevelFatal:
		return "fatal"
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel maps a config value to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// Field is one key-value pair of a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }

// Err records err under "error". A nil error is omitted from the line.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration records d as milliseconds.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key + "_ms", Value: float64(d.Microseconds()) / 1000}
}

// Domain fields.
func StudentID(id string) Field     { return String("student_id", id) }
func RecordID(id string) Field      { return String("record_id", id) }
func AttendanceDate(d string) Field { return String("attendance_date", d) }
func AttendanceType(t string) Field { return String("attendance_type", t) }
func Hours(h float64) Field         { return Float64("hours", h) }
func Count(key string, n int) Field { return Int(key, n) }
func Component(name string) Field   { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// RequestIDKey is the field carrying the request id.
const RequestIDKey = "request_id"

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// Options configures New.
type Options struct {
	Output    io.Writer
	Level     Level
	AddCaller bool
}

// Logger writes structured lines. Safe for concurrent use.
type Logger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	addCaller bool
	fields    []Field
	exit      func(int)
}

// New creates a logger writing to opts.Output, stdout when nil.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{
		mu:        &sync.Mutex{},
		out:       opts.Output,
		level:     opts.Level,
		addCaller: opts.AddCaller,
		exit:      os.Exit,
	}
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the shared info-level stdout logger.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(Options{Level: LevelInfo, AddCaller: true})
	})
	return defaultLogger
}

// With returns a logger that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.fields = make([]Field, 0, len(l.fields)+len(fields))
	child.fields = append(child.fields, l.fields...)
	child.fields = append(child.fields, fields...)
	return &child
}

// WithRequestID is With(String(RequestIDKey, id)).
func (l *Logger) WithRequestID(id string) *Logger {
	return l.With(String(RequestIDKey, id))
}

// Enabled reports whether lines at level are written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

// Fatal writes the line and exits with status 1.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.write(LevelFatal, msg, fields)
	l.exit(1)
}

func (l *Logger) write(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}

	line := make(map[string]any, len(l.fields)+len(fields)+4)
	for _, f := range l.fields {
		setField(line, f)
	}
	for _, f := range fields {
		setField(line, f)
	}
	line["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	line["level"] = level.String()
	line["msg"] = msg
	if l.addCaller {
		if _, file, no, ok := runtime.Caller(2); ok {
			line["caller"] = file[strings.LastIndex(file, "/")+1:] + ":" + strconv.Itoa(no)
		}
	}

	data, err := sonic.ConfigStd.Marshal(line)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":%q,"msg":%q,"log_error":%q}`, level.String(), msg, err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(data, '\n'))
}

func setField(line map[string]any, f Field) {
	if f.Key == "" || (f.Key == "error" && f.Value == nil) {
		return
	}
	line[f.Key] = f.Value
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
