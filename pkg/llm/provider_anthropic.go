package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

const anthropicBaseURL = "https://api.anthropic.com"
const anthropicVersion = "2023-06-01"

var anthropicModelList = []string{
	"claude-3.5-sonnet",
	"claude-3.5-haiku",
	"claude-3-opus",
}

// AnthropicProvider speaks the Claude Messages API wire format (§4.7):
// the system prompt is a top-level field rather than a message, and tool
// results travel as user-role messages wrapping a tool_result block keyed
// by the originating tool_use id.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicProvider builds a provider against baseURL (anthropicBaseURL
// when empty), logging every round trip through transport when non-nil.
func NewAnthropicProvider(apiKey, baseURL string, transport *LoggingTransport) *AnthropicProvider {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	var rt http.RoundTripper = http.DefaultTransport
	if transport != nil {
		rt = transport
	}
	return &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: rt,
		},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) SupportedModels() []string { return anthropicModelList }

func (p *AnthropicProvider) ValidateRequest(req Request) error { return validateCommon(req) }

type anthropicContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type anthropicMessageWire struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicToolWire struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

type anthropicRequestWire struct {
	Model       string                 `json:"model"`
	System      string                 `json:"system,omitempty"`
	Messages    []anthropicMessageWire `json:"messages"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature float64                `json:"temperature,omitempty"`
	Stream      bool                   `json:"stream"`
	Tools       []anthropicToolWire    `json:"tools,omitempty"`
	ToolChoice  map[string]any         `json:"tool_choice,omitempty"`
}

type anthropicResponseWire struct {
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// toAnthropicRequest converts req to the Messages API shape. Assistant
// messages carrying ToolCalls become tool_use blocks; Tool-role messages
// become a user message wrapping a single tool_result block referencing
// ToolCallID, since Anthropic has no standalone "tool" role.
func toAnthropicRequest(req Request) anthropicRequestWire {
	wire := anthropicRequestWire{
		Model:       req.Model,
		System:      req.SystemPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}
	if wire.MaxTokens == 0 {
		wire.MaxTokens = 4096
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleTool:
			wire.Messages = append(wire.Messages, anthropicMessageWire{
				Role: "user",
				Content: []anthropicContentBlock{
					{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content},
				},
			})
		case RoleAssistant:
			var blocks []anthropicContentBlock
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
			}
			wire.Messages = append(wire.Messages, anthropicMessageWire{Role: "assistant", Content: blocks})
		case RoleSystem:
			if wire.System != "" {
				wire.System += "\n\n"
			}
			wire.System += m.Content
		case RoleUser:
			wire.Messages = append(wire.Messages, anthropicMessageWire{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}

	for _, td := range req.Tools {
		wire.Tools = append(wire.Tools, anthropicToolWire{Name: td.Name, Description: td.Description, InputSchema: td.Parameters})
	}
	switch req.ToolChoice {
	case ToolChoiceNone:
		wire.ToolChoice = map[string]any{"type": "none"}
	case ToolChoiceAny, ToolChoiceRequired:
		wire.ToolChoice = map[string]any{"type": "any"}
	case ToolChoiceAuto:
		wire.ToolChoice = map[string]any{"type": "auto"}
	}

	return wire
}

func fromAnthropicStopReason(raw string) FinishReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return StopFinish()
	case "max_tokens":
		return LengthFinish()
	case "tool_use":
		return ToolCallsFinish()
	default:
		return ErrorFinish(raw)
	}
}

func fromAnthropicContent(blocks []anthropicContentBlock) (string, []ToolCall) {
	var textParts []string
	var calls []ToolCall
	for _, b := range blocks {
		switch b.Type {
		case "text":
			textParts = append(textParts, b.Text)
		case "tool_use":
			calls = append(calls, ToolCall{ID: b.ID, Name: b.Name, Arguments: b.Input})
		}
	}
	return strings.Join(textParts, "\n"), calls
}

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, err
	}
	wire := toAnthropicRequest(req)
	wire.Stream = false

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "marshaling anthropic request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "building anthropic request", err)
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindNetwork, "anthropic request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return nil, vterrors.Provider(resp.StatusCode, buf.String())
	}

	var wireResp anthropicResponseWire
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "decoding anthropic response", err)
	}

	content, calls := fromAnthropicContent(wireResp.Content)
	return &Response{
		Content:      content,
		ToolCalls:    calls,
		Usage:        Usage{PromptTokens: wireResp.Usage.InputTokens, CompletionTokens: wireResp.Usage.OutputTokens, TotalTokens: wireResp.Usage.InputTokens + wireResp.Usage.OutputTokens},
		FinishReason: fromAnthropicStopReason(wireResp.StopReason),
		Model:        wireResp.Model,
	}, nil
}

// Stream falls back to a single terminal event: Claude's SSE event
// format (message_start/content_block_delta/message_stop) needs a
// dedicated decoder the ambient spec does not require yet.
func (p *AnthropicProvider) Stream(ctx context.Context, req Request) <-chan StreamEvent {
	return singleEventStream(ctx, p.Generate, req)
}
