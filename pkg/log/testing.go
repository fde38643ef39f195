package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TestLogger captures log entries in memory as JSON lines so tests can
// verify what was logged without touching process-wide state.
type TestLogger struct {
	buffer *bytes.Buffer
	fields map[string]interface{}
}

// NewTestLogger creates a TestLogger and returns it together with the
// buffer holding the captured output.
func NewTestLogger() (*TestLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	return &TestLogger{
		buffer: buffer,
		fields: make(map[string]interface{}),
	}, buffer
}

// Debug records a debug-level entry.
func (t *TestLogger) Debug(msg string, fields ...any) { t.writeLog("DEBUG", msg, fields...) }

// Info records an info-level entry.
func (t *TestLogger) Info(msg string, fields ...any) { t.writeLog("INFO", msg, fields...) }

// Warn records a warn-level entry.
func (t *TestLogger) Warn(msg string, fields ...any) { t.writeLog("WARN", msg, fields...) }

// Error records an error-level entry.
func (t *TestLogger) Error(msg string, fields ...any) { t.writeLog("ERROR", msg, fields...) }

// With returns a logger that includes the given fields in every entry.
func (t *TestLogger) With(fields ...any) *TestLogger {
	newFields := make(map[string]interface{})
	for k, v := range t.fields {
		newFields[k] = v
	}
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			newFields[key] = err.Error()
		} else {
			newFields[key] = fields[i+1]
		}
	}
	return &TestLogger{buffer: t.buffer, fields: newFields}
}

func (t *TestLogger) writeLog(level, msg string, fields ...any) {
	entry := map[string]interface{}{
		"level":   level,
		"message": msg,
	}
	for k, v := range t.fields {
		entry[k] = v
	}
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			entry[key] = err.Error()
		} else {
			entry[key] = fields[i+1]
		}
	}
	jsonData, _ := json.Marshal(entry)
	t.buffer.WriteString(string(jsonData) + "\n")
}

// GetLogEntries parses the captured output into structured entries.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.buffer.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured entry contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.buffer.String(), message)
}

// ContainsField reports whether any captured entry has key set to value.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if fieldValue, exists := entry[key]; exists && fieldValue == value {
			return true
		}
	}
	return false
}

// Clear discards all captured content.
func (t *TestLogger) Clear() {
	t.buffer.Reset()
}
