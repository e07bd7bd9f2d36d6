package observability

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Logger writes one JSON object per line. Auth audit events go through Warn
// with identity id, jti and a reason category where applicable.
type Logger struct {
	base *log.Logger
}

func NewLogger() *Logger {
	return &Logger{base: log.New(os.Stdout, "", 0)}
}

func (l *Logger) Info(event string, fields map[string]any) {
	l.write("info", event, fields)
}

func (l *Logger) Warn(event string, fields map[string]any) {
	l.write("warn", event, fields)
}

func (l *Logger) Error(event string, fields map[string]any) {
	l.write("error", event, fields)
}

func (l *Logger) write(level, event string, fields map[string]any) {
	payload := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		payload[k] = v
	}
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload["level"] = level
	payload["event"] = event

	encoded, err := json.Marshal(payload)
	if err != nil {
		l.base.Println(`{"level":"error","event":"log_encode_failed"}`)
		return
	}

	l.base.Println(string(encoded))
}
