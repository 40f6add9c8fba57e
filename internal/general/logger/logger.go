package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// ----- Public wire types -----

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// LogEntry is the single-line JSON format written to stdout.
type LogEntry struct {
	Timestamp string       `json:"timestamp"`            // ISO 8601 format timestamp
	Level     string       `json:"level"`                // DEBUG | INFO | ERROR
	Service   string       `json:"service"`              // service name (e.g., tracking-service)
	Action    string       `json:"action"`               // event name (e.g., update_accepted)
	Message   string       `json:"message"`              // human-readable description
	Hostname  string       `json:"hostname"`             // service hostname
	RequestID string       `json:"request_id,omitempty"` // correlation ID for tracing
	DriverID  string       `json:"driver_id,omitempty"`  // driver identifier (when applicable)
	Details   any          `json:"details,omitempty"`    // optional: extra fields (map or struct)
	Error     *ErrorObject `json:"error,omitempty"`      // optional: error details
}

// Level ordering for the minimum-level gate.
const (
	levelDebug = iota
	levelInfo
	levelError
)

// ----- Logger -----

type Logger struct {
	service  string
	hostname string
	minLevel int
	mu       sync.Mutex
}

// New creates a structured logger for the given service. The minimum
// level is taken from LOG_LEVEL (DEBUG|INFO|ERROR, default DEBUG).
func New(service string) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	min := levelDebug
	switch strings.ToUpper(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "INFO":
		min = levelInfo
	case "ERROR":
		min = levelError
	}

	return &Logger{service: service, hostname: hn, minLevel: min}
}

// emit marshals and prints a single JSON line to stdout.
func (l *Logger) emit(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(e)
	if err == nil {
		fmt.Println(string(b))
		return
	}

	// retry once without Details (common source of marshal errors)
	e.Details = nil
	if b, err := json.Marshal(e); err == nil {
		fmt.Println(string(b))
		return
	}

	// last resort: keep stdout JSON-shaped by hand
	fmt.Printf(`{"timestamp":%q,"level":"ERROR","service":%q,"action":"logger_marshal_failed","message":%q}`+"\n",
		nowISO(), l.service, strings.TrimSpace(err.Error()))
}

func (l *Logger) entry(ctx context.Context, level, action, msg string, details any) LogEntry {
	return LogEntry{
		Timestamp: nowISO(),
		Level:     level,
		Service:   l.service,
		Action:    safeAction(action),
		Message:   strings.TrimSpace(msg),
		Hostname:  l.hostname,
		RequestID: fromCtx(ctx, ctxKeyRequestID),
		DriverID:  fromCtx(ctx, ctxKeyDriverID),
		Details:   details,
	}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	if l.minLevel > levelDebug {
		return
	}
	l.emit(l.entry(ctx, "DEBUG", action, msg, details))
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	if l.minLevel > levelInfo {
		return
	}
	l.emit(l.entry(ctx, "INFO", action, msg, details))
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}

	e := l.entry(ctx, "ERROR", action, msg, details)
	e.Error = &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}
	l.emit(e)
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "schoolride_request_id"
	ctxKeyDriverID  ctxKey = "schoolride_driver_id"
)

// WithRequestID returns a new context carrying request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithDriverID returns a new context carrying driver_id.
func (l *Logger) WithDriverID(ctx context.Context, driverID string) context.Context {
	if strings.TrimSpace(driverID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyDriverID, driverID)
}

func fromCtx(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ----- Small utilities -----

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
