package llm

const xaiBaseURL = "https://api.x.ai/v1"

var xaiModelList = []string{
	"grok-2",
	"grok-2-mini",
	"grok-beta",
}

// XAIProvider is Grok's chat-completions endpoint, which is wire-compatible
// with OpenAI's; only the base URL, model list, and provider name differ.
type XAIProvider struct {
	*OpenAIProvider
}

// NewXAIProvider builds an xAI provider.
func NewXAIProvider(apiKey, baseURL string, transport *LoggingTransport) *XAIProvider {
	if baseURL == "" {
		baseURL = xaiBaseURL
	}
	return &XAIProvider{OpenAIProvider: NewOpenAIProvider(apiKey, baseURL, transport)}
}

func (p *XAIProvider) Name() string { return "xai" }

func (p *XAIProvider) SupportedModels() []string { return xaiModelList }
