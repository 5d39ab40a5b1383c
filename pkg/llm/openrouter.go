package llm

const openRouterBaseURL = "https://openrouter.ai/api/v1"

var openRouterModelList = []string{
	"openai/gpt-4o",
	"anthropic/claude-3.5-sonnet",
	"google/gemini-2.0-flash",
	"meta-llama/llama-3.1-70b-instruct",
}

// OpenRouterProvider proxies OpenRouter's aggregated catalog, which
// speaks the same chat-completions wire format as OpenAI with a
// "vendor/model" naming convention.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider builds an OpenRouter provider.
func NewOpenRouterProvider(apiKey, baseURL string, transport *LoggingTransport) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	return &OpenRouterProvider{OpenAIProvider: NewOpenAIProvider(apiKey, baseURL, transport)}
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

func (p *OpenRouterProvider) SupportedModels() []string { return openRouterModelList }
