package llm

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinhnx/vtcode/pkg/paths"
)

// networkLogEntry is one request/response pair recorded by LoggingTransport.
type networkLogEntry struct {
	RequestID       string            `json:"request_id"`
	Timestamp       time.Time         `json:"timestamp"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	ResponseStatus  int               `json:"response_status,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	DurationMS      int64             `json:"duration_ms"`
	Error           string            `json:"error,omitempty"`
}

// LoggingTransport is an http.RoundTripper shared by every provider
// adapter: it logs requests/responses to network.jsonl, masking
// Authorization/x-api-key headers, and never buffers SSE response bodies
// (which would block a streaming caller until completion).
type LoggingTransport struct {
	base    http.RoundTripper
	logFile *os.File
	mu      sync.Mutex
	enabled bool
}

// NewLoggingTransport wraps base (or http.DefaultTransport if nil),
// logging every round trip when enabled is true.
func NewLoggingTransport(base http.RoundTripper, enabled bool) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &LoggingTransport{base: base, enabled: enabled}
	if enabled {
		t.initLogFile()
	}
	return t
}

func (t *LoggingTransport) initLogFile() {
	dir := paths.LogsBaseDir(".")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "network.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return
	}
	t.logFile = f
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t == nil || !t.enabled || t.logFile == nil {
		if t == nil {
			return http.DefaultTransport.RoundTrip(req)
		}
		return t.base.RoundTrip(req)
	}

	entry := networkLogEntry{
		RequestID:      uuid.NewString(),
		Timestamp:      time.Now(),
		Method:         req.Method,
		URL:            req.URL.String(),
		RequestHeaders: sanitizeHeaders(req.Header),
	}
	isStreaming := req.Header.Get("Accept") == "text/event-stream"

	if req.Body != nil && req.Body != http.NoBody {
		if bodyBytes, err := io.ReadAll(req.Body); err == nil {
			entry.RequestBody = truncateBody(string(bodyBytes))
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	entry.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		entry.Error = err.Error()
		t.log(entry)
		return nil, err
	}

	entry.ResponseStatus = resp.StatusCode
	entry.ResponseHeaders = sanitizeHeaders(resp.Header)

	if !isStreaming && resp.Body != nil {
		if bodyBytes, readErr := io.ReadAll(resp.Body); readErr == nil {
			entry.ResponseBody = truncateBody(string(bodyBytes))
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	} else if isStreaming {
		entry.ResponseBody = "[streaming - body not captured]"
	}

	t.log(entry)
	return resp, nil
}

func (t *LoggingTransport) log(entry networkLogEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logFile == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	t.logFile.Write(data)
	t.logFile.Write([]byte("\n"))
}

// Close closes the underlying log file, if any.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logFile != nil {
		return t.logFile.Close()
	}
	return nil
}

func sanitizeHeaders(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for key, values := range headers {
		lower := strings.ToLower(key)
		if lower == "authorization" || lower == "x-api-key" {
			result[key] = "[REDACTED]"
		} else {
			result[key] = strings.Join(values, ", ")
		}
	}
	return result
}

func truncateBody(body string) string {
	const maxLen = 10000
	if len(body) > maxLen {
		return body[:maxLen] + "\n...[truncated]"
	}
	return body
}
