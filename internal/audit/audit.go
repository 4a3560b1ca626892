// Package audit provides append-only structured logging for credential
// store operations.
//
// Each operation is recorded as one line of JSON. A Logger also satisfies
// metrics.Sink, writing a payload-free credential_access entry per event.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Action describes what happened.
type Action string

const (
	ActionFind               Action = "credential_find"
	ActionAdd                Action = "credential_add"
	ActionEncryptionPassword Action = "encryption_password"
	ActionAccess             Action = "credential_access"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Service   string    `json:"service,omitempty"`
	Account   string    `json:"account,omitempty"`
	Status    int32     `json:"status"`
	Actor     string    `json:"actor,omitempty"` // "cli", "scenario", "test"
	Error     string    `json:"error,omitempty"`
}

// Logger writes audit entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens an audit log file for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Log writes an audit entry.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// RecordAccess logs an ActionAccess entry. Write failures are dropped.
func (l *Logger) RecordAccess() {
	_ = l.Log(Entry{Action: ActionAccess})
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}
