package llm

import (
	"testing"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

func TestProviderFromModel_RecognizesEachVendorPrefix(t *testing.T) {
	cases := map[string]string{
		"gpt-4o-mini":            "openai",
		"gpt-4.1":                "openai",
		"o1-mini":                "openai",
		"o3-mini":                "openai",
		"claude-3-5-sonnet":      "anthropic",
		"gemini-1.5-pro":         "gemini",
		"palm-2":                 "gemini",
		"grok-2":                 "xai",
		"meta-llama/llama-3-70b": "openrouter",
		"anthropic/claude-3@1":   "openrouter",
	}
	for model, want := range cases {
		got, ok := ProviderFromModel(model)
		if !ok {
			t.Errorf("ProviderFromModel(%q): ok = false, want true", model)
			continue
		}
		if got != want {
			t.Errorf("ProviderFromModel(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestProviderFromModel_UnrecognizedModelReturnsFalse(t *testing.T) {
	if _, ok := ProviderFromModel("some-bespoke-model"); ok {
		t.Fatalf("expected ok=false for an unrecognized model name")
	}
}

func TestFactory_NewFactoryRegistersEveryAdapter(t *testing.T) {
	f := NewFactory()
	for _, name := range []string{"openai", "anthropic", "gemini", "xai", "openrouter"} {
		if _, err := f.CreateProvider(name, ProviderConfig{}); err != nil {
			t.Errorf("CreateProvider(%q) failed: %v", name, err)
		}
	}
}

func TestFactory_CreateProvider_UnknownNameReturnsInvalidParameters(t *testing.T) {
	f := NewFactory()
	_, err := f.CreateProvider("made-up-vendor", ProviderConfig{})
	if err == nil {
		t.Fatal("expected an error for an unregistered provider name")
	}
	if vterrors.KindOf(err) != vterrors.KindInvalidParameters {
		t.Fatalf("kind = %q, want invalid_parameters", vterrors.KindOf(err))
	}
}

func TestFactory_RegisterOverridesExistingConstructor(t *testing.T) {
	f := NewFactory()
	called := false
	f.Register("openai", func(ProviderConfig) Provider {
		called = true
		return nil
	})

	if _, err := f.CreateProvider("openai", ProviderConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected the overriding constructor to run")
	}
}

func TestFactory_CreatedProvidersReportNameAndModels(t *testing.T) {
	f := NewFactory()
	provider, err := f.CreateProvider("openai", ProviderConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", provider.Name())
	}
	if len(provider.SupportedModels()) == 0 {
		t.Error("expected at least one supported model")
	}
}
