package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

func TestAnthropicProvider_Generate_ParsesTextAndToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("expected an anthropic-version header")
		}
		fmt.Fprint(w, `{
			"model": "claude-3.5-sonnet",
			"content": [
				{"type": "text", "text": "Looking at the files."},
				{"type": "tool_use", "id": "call-1", "name": "list_files", "input": {"path": "."}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 20, "output_tokens": 8}
		}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL, nil)
	resp, err := p.Generate(context.Background(), Request{
		Model:    "claude-3.5-sonnet",
		Messages: []Message{{Role: RoleUser, Content: "list the files"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Looking at the files." {
		t.Fatalf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "list_files" {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 28 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if resp.FinishReason.Kind != "tool_calls" {
		t.Fatalf("finish reason = %+v", resp.FinishReason)
	}
}

func TestAnthropicProvider_Generate_UnauthorizedStatusReturnsAuthenticationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid api key"}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("bad-key", server.URL, nil)
	_, err := p.Generate(context.Background(), Request{
		Model:    "claude-3.5-sonnet",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if vterrors.KindOf(err) != vterrors.KindAuthentication {
		t.Fatalf("kind = %q, want authentication", vterrors.KindOf(err))
	}
}

func TestToAnthropicRequest_ToolResponseBecomesUserToolResultBlock(t *testing.T) {
	req := Request{
		Model: "claude-3.5-sonnet",
		Messages: []Message{
			{Role: RoleUser, Content: "list files"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call-1", Name: "list_files", Arguments: map[string]any{"path": "."}}}},
			{Role: RoleTool, ToolCallID: "call-1", Content: "a.go\nb.go"},
		},
	}
	wire := toAnthropicRequest(req)
	if len(wire.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(wire.Messages))
	}
	last := wire.Messages[2]
	if last.Role != "user" {
		t.Fatalf("tool-result message role = %q, want user", last.Role)
	}
	if len(last.Content) != 1 || last.Content[0].Type != "tool_result" || last.Content[0].ToolUseID != "call-1" {
		t.Fatalf("tool-result block = %+v", last.Content)
	}
}

func TestFromAnthropicStopReason(t *testing.T) {
	cases := map[string]string{
		"end_turn":      "stop",
		"stop_sequence": "stop",
		"max_tokens":    "length",
		"tool_use":      "tool_calls",
		"weird":         "error",
	}
	for raw, want := range cases {
		if got := fromAnthropicStopReason(raw).Kind; got != want {
			t.Errorf("fromAnthropicStopReason(%q) = %q, want %q", raw, got, want)
		}
	}
}
