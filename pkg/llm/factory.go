package llm

import (
	"strings"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

// ProviderConfig carries the per-provider settings needed to construct a
// Provider: an API key, an optional base URL override, and the shared
// logging transport every provider's http.Client is built with.
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Transport *LoggingTransport
}

// Factory constructs Providers by name, keeping a registry of
// constructors so callers never switch on provider name themselves.
type Factory struct {
	constructors map[string]func(ProviderConfig) Provider
}

// NewFactory builds a Factory pre-registered with every adapter in this
// package.
func NewFactory() *Factory {
	f := &Factory{constructors: make(map[string]func(ProviderConfig) Provider)}
	f.Register("openai", func(cfg ProviderConfig) Provider { return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Transport) })
	f.Register("anthropic", func(cfg ProviderConfig) Provider { return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Transport) })
	f.Register("gemini", func(cfg ProviderConfig) Provider { return NewGeminiProvider(cfg.APIKey, cfg.BaseURL, cfg.Transport) })
	f.Register("xai", func(cfg ProviderConfig) Provider { return NewXAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Transport) })
	f.Register("openrouter", func(cfg ProviderConfig) Provider { return NewOpenRouterProvider(cfg.APIKey, cfg.BaseURL, cfg.Transport) })
	return f
}

// Register adds or overrides the constructor for name.
func (f *Factory) Register(name string, ctor func(ProviderConfig) Provider) {
	f.constructors[name] = ctor
}

// CreateProvider builds the named provider, or KindInvalidParameters if
// name is not registered.
func (f *Factory) CreateProvider(name string, cfg ProviderConfig) (Provider, error) {
	ctor, ok := f.constructors[name]
	if !ok {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "unknown provider: "+name).
			WithSuggestions("known providers: openai, anthropic, gemini, xai, openrouter")
	}
	return ctor(cfg), nil
}

// ProviderFromModel infers a provider name from a bare model string
// (§4.8): gpt-/o1/o3 prefixes select openai, claude- selects anthropic,
// a "gemini" substring or "palm" prefix selects gemini, grok- selects
// xai, and a model containing "/" or "@" (vendor-qualified, OpenRouter's
// convention) selects openrouter. Returns ok=false when no rule matches.
func ProviderFromModel(model string) (name string, ok bool) {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt-"), strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		return "openai", true
	case strings.HasPrefix(lower, "claude-"):
		return "anthropic", true
	case strings.Contains(lower, "gemini"), strings.HasPrefix(lower, "palm"):
		return "gemini", true
	case strings.HasPrefix(lower, "grok-"):
		return "xai", true
	case strings.Contains(lower, "/"), strings.Contains(lower, "@"):
		return "openrouter", true
	default:
		return "", false
	}
}
