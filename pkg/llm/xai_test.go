package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestXAIProvider_NameAndModels(t *testing.T) {
	p := NewXAIProvider("key", "", nil)
	if p.Name() != "xai" {
		t.Errorf("Name() = %q, want xai", p.Name())
	}
	if len(p.SupportedModels()) == 0 {
		t.Error("expected at least one supported model")
	}
}

func TestXAIProvider_Generate_DelegatesToOpenAIWireFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}],"usage":{"total_tokens":3}}`)
	}))
	defer server.Close()

	p := NewXAIProvider("key", server.URL, nil)
	resp, err := p.Generate(context.Background(), Request{
		Model:    "grok-2",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hi" {
		t.Fatalf("content = %q", resp.Content)
	}
}
