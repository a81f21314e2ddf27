// Package logger is the JSON request logger of the HTTP layer. Each record
// is one flat JSON object per line, so request fields sit next to time,
// level and msg.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a record.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "LEVEL(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l]
}

// ParseLevel maps LOG_LEVEL values to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Field is one key of a record.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field  { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Err renders err as its message; a nil error renders as null.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Fields shared by the gamification handlers.
func UserID(id string) Field            { return String("user_id", id) }
func Source(source string) Field        { return String("source", source) }
func Points(points int) Field           { return Int("points", points) }
func TotalPoints(total int64) Field     { return Field{Key: "total_points", Value: total} }
func AchievementCode(code string) Field { return String("achievement_code", code) }
func Component(name string) Field       { return String("component", name) }
func Latency(d time.Duration) Field     { return Field{Key: "latency_ms", Value: float64(d.Microseconds()) / 1000} }

// Options configures New.
type Options struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	Level  Level
	// AddCaller adds "caller":"file.go:line" to every record.
	AddCaller bool
}

// sink is shared by a logger and everything derived from it with With.
type sink struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	addCaller bool
	now       func() time.Time
}

// Logger writes records to a sink with a fixed set of leading fields.
// Loggers are safe for concurrent use.
type Logger struct {
	sink   *sink
	fields []Field
}

func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{sink: &sink{
		out:       opts.Output,
		level:     opts.Level,
		addCaller: opts.AddCaller,
		now:       time.Now,
	}}
}

// Default logs info and above to stdout.
func Default() *Logger {
	return New(Options{Level: LevelInfo})
}

// With returns a child logger that adds fields to every record. The parent
// is not changed.
func (l *Logger) With(fields ...Field) *Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{sink: l.sink, fields: merged}
}

// RequestIDKey is the field carrying the X-Request-ID of a request.
const RequestIDKey = "request_id"

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

func (l *Logger) write(level Level, msg string, fields []Field) {
	s := l.sink
	if level < s.level {
		return
	}

	record := make(map[string]any, len(l.fields)+len(fields)+4)
	for _, f := range l.fields {
		record[f.Key] = f.Value
	}
	for _, f := range fields {
		record[f.Key] = f.Value
	}
	record["time"] = s.now().UTC().Format(time.RFC3339Nano)
	record["level"] = level.String()
	record["msg"] = msg
	if s.addCaller {
		// Skip write and the level method.
		if _, file, line, ok := runtime.Caller(2); ok {
			record["caller"] = file[strings.LastIndexByte(file, '/')+1:] + ":" + strconv.Itoa(line)
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":%q,"msg":%q,"log_error":%q}`, level.String(), msg, err.Error()))
	}
	data = append(data, '\n')

	s.mu.Lock()
	_, _ = s.out.Write(data)
	s.mu.Unlock()
}

type ctxKey struct{}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext, or fallback when
// there is none.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return fallback
}
