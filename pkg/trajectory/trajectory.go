// Package trajectory implements the append-only JSONL trajectory log
// (C11): one line per routing decision or tool outcome, best-effort so a
// logging failure never breaks the session.
package trajectory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is the tagged-union trajectory entry persisted to
// <workspace>/logs/trajectory.jsonl.
type Record struct {
	Kind string `json:"kind"` // "route" | "tool"

	// Route fields.
	Turn          int    `json:"turn"`
	SelectedModel string `json:"selected_model,omitempty"`
	Class         string `json:"class,omitempty"`
	InputPreview  string `json:"input_preview,omitempty"`

	// Tool fields.
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
	OK   *bool          `json:"ok,omitempty"`

	Timestamp time.Time `json:"ts"`
}

// Logger appends Records to a single JSONL file under a mutex, matching
// §5's "append-only file handle guarded by a mutex, flushed immediately".
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	enabled bool
}

// New opens (creating if necessary) path for append. When enabled is
// false, all Log* calls are no-ops without ever touching the filesystem.
func New(path string, enabled bool) (*Logger, error) {
	if !enabled {
		return &Logger{enabled: false}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Logger{file: f, enabled: true}, nil
}

// LogRoute appends a Route record.
func (l *Logger) LogRoute(turn int, selectedModel, class, inputPreview string) {
	l.append(Record{
		Kind:          "route",
		Turn:          turn,
		SelectedModel: selectedModel,
		Class:         class,
		InputPreview:  inputPreview,
		Timestamp:     time.Now(),
	})
}

// LogToolCall appends a Tool record.
func (l *Logger) LogToolCall(turn int, name string, args map[string]any, ok bool) {
	l.append(Record{
		Kind:      "tool",
		Turn:      turn,
		Name:      name,
		Args:      args,
		OK:        &ok,
		Timestamp: time.Now(),
	})
}

func (l *Logger) append(rec Record) {
	if l == nil || !l.enabled || l.file == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(data) // best-effort: I/O errors must not break the session
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
