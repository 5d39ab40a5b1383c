package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenRouterProvider_NameAndModels(t *testing.T) {
	p := NewOpenRouterProvider("key", "", nil)
	if p.Name() != "openrouter" {
		t.Errorf("Name() = %q, want openrouter", p.Name())
	}
	found := false
	for _, m := range p.SupportedModels() {
		if m == "anthropic/claude-3.5-sonnet" {
			found = true
		}
	}
	if !found {
		t.Error("expected the vendor/model catalog to include an anthropic entry")
	}
}

func TestOpenRouterProvider_Generate_DelegatesToOpenAIWireFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}],"usage":{"total_tokens":3}}`)
	}))
	defer server.Close()

	p := NewOpenRouterProvider("key", server.URL, nil)
	resp, err := p.Generate(context.Background(), Request{
		Model:    "meta-llama/llama-3.1-70b-instruct",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hi" {
		t.Fatalf("content = %q", resp.Content)
	}
}
