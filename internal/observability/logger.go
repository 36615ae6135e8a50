package observability

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
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
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info.
func ParseLevel(value string) Level {
	switch strings.TrimSpace(strings.ToLower(value)) {
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

type Logger struct {
	base *log.Logger
	min  Level
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, LevelInfo)
}

func NewLoggerTo(w io.Writer, min Level) *Logger {
	return &Logger{base: log.New(w, "", 0), min: min}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.write(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(LevelWarn, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(LevelError, message, fields)
}

func (l *Logger) write(level Level, message string, fields map[string]any) {
	if l == nil || level < l.min {
		return
	}

	payload := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"message":   message,
	}
	for k, v := range fields {
		payload[k] = v
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		l.base.Println(`{"level":"error","message":"failed to encode log"}`)
		return
	}

	l.base.Println(string(encoded))
}
