package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

func TestOpenAIProvider_ValidateRequest_RequiresModelAndMessages(t *testing.T) {
	p := NewOpenAIProvider("key", "", nil)

	if err := p.ValidateRequest(Request{}); err == nil {
		t.Fatal("expected an error for an empty request")
	}
	if err := p.ValidateRequest(Request{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenAIProvider_Generate_ParsesContentToolCallsAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"model": "gpt-4o-mini",
			"choices": [{
				"message": {
					"content": "",
					"tool_calls": [{"id":"call-1","type":"function","function":{"name":"list_files","arguments":"{\"path\":\".\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, nil)
	resp, err := p.Generate(context.Background(), Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "list the files"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "list_files" {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Arguments["path"] != "." {
		t.Fatalf("arguments = %+v", resp.ToolCalls[0].Arguments)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if resp.FinishReason.Kind != "tool_calls" {
		t.Fatalf("finish reason = %+v", resp.FinishReason)
	}
}

func TestOpenAIProvider_Generate_NonOKStatusReturnsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limited"}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, nil)
	_, err := p.Generate(context.Background(), Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
	if vterrors.KindOf(err) != vterrors.KindProvider {
		t.Fatalf("kind = %q, want provider", vterrors.KindOf(err))
	}
}

func TestOpenAIProvider_Generate_UnauthorizedReturnsAuthenticationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid api key"}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider("bad-key", server.URL, nil)
	_, err := p.Generate(context.Background(), Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if vterrors.KindOf(err) != vterrors.KindAuthentication {
		t.Fatalf("kind = %q, want authentication", vterrors.KindOf(err))
	}
	if vterrors.IsRecoverable(err) {
		t.Fatal("an authentication error must not be treated as recoverable")
	}
}

func TestOpenAIProvider_Stream_AccumulatesDeltasAndFinalToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"},\"finish_reason\":\"\"}]}\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"\"}]}\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":2,\"total_tokens\":5}}\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, nil)
	ch := p.Stream(context.Background(), Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Stream:   true,
	})

	var content string
	var sawFinalUsage bool
	for ev := range ch {
		if ev.Err != nil {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
		content += ev.ContentDelta
		if ev.Usage != nil {
			sawFinalUsage = true
			if ev.Usage.TotalTokens != 5 {
				t.Errorf("usage = %+v", ev.Usage)
			}
		}
	}
	if content != "Hello" {
		t.Fatalf("accumulated content = %q, want %q", content, "Hello")
	}
	if !sawFinalUsage {
		t.Fatal("expected the final event to carry usage")
	}
}
