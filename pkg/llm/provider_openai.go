package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

const openAIBaseURL = "https://api.openai.com/v1"

var openAIModelList = []string{
	"gpt-4.1",
	"gpt-4o",
	"gpt-4o-mini",
	"o1-mini",
	"o3-mini",
}

// OpenAIProvider speaks the OpenAI chat-completions wire format (§4.7):
// system prompt as a leading "system" message, tools as function
// declarations, tool results as role "tool" carrying tool_call_id.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider builds a provider against baseURL (openAIBaseURL when
// empty), logging every round trip through transport when non-nil.
func NewOpenAIProvider(apiKey, baseURL string, transport *LoggingTransport) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	var rt http.RoundTripper = http.DefaultTransport
	if transport != nil {
		rt = transport
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: rt,
		},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SupportedModels() []string { return openAIModelList }

func (p *OpenAIProvider) ValidateRequest(req Request) error { return validateCommon(req) }

type openAIMessage struct {
	Role       string               `json:"role"`
	Content    string               `json:"content,omitempty"`
	ToolCalls  []openAIToolCallWire `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
}

type openAIToolCallWire struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIToolWire struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

type openAIRequestWire struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAIToolWire `json:"tools,omitempty"`
	ToolChoice  any              `json:"tool_choice,omitempty"`
	MaxTokens   int              `json:"max_completion_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

type openAIResponseWire struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string               `json:"content"`
			ToolCalls []openAIToolCallWire `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIStreamChunkWire struct {
	Choices []struct {
		Delta struct {
			Content   string               `json:"content"`
			ToolCalls []openAIToolCallWire `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func toOpenAIRequest(req Request) openAIRequestWire {
	wire := openAIRequestWire{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}
	if req.SystemPrompt != "" {
		wire.Messages = append(wire.Messages, openAIMessage{Role: string(RoleSystem), Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		om := openAIMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			wireCall := openAIToolCallWire{ID: tc.ID, Type: "function"}
			wireCall.Function.Name = tc.Name
			wireCall.Function.Arguments = string(args)
			om.ToolCalls = append(om.ToolCalls, wireCall)
		}
		wire.Messages = append(wire.Messages, om)
	}
	for _, td := range req.Tools {
		wt := openAIToolWire{Type: "function"}
		wt.Function.Name = td.Name
		wt.Function.Description = td.Description
		wt.Function.Parameters = td.Parameters
		wire.Tools = append(wire.Tools, wt)
	}
	switch req.ToolChoice {
	case ToolChoiceNone, ToolChoiceAuto, ToolChoiceRequired:
		wire.ToolChoice = string(req.ToolChoice)
	case ToolChoiceAny:
		wire.ToolChoice = "required"
	}
	return wire
}

func fromOpenAIFinishReason(raw string) FinishReason {
	switch raw {
	case "stop":
		return StopFinish()
	case "length":
		return LengthFinish()
	case "tool_calls":
		return ToolCallsFinish()
	case "content_filter":
		return ContentFilterFinish()
	default:
		return ErrorFinish(raw)
	}
}

func fromOpenAIToolCalls(wire []openAIToolCallWire) []ToolCall {
	calls := make([]ToolCall, 0, len(wire))
	for _, w := range wire {
		var args map[string]any
		_ = json.Unmarshal([]byte(w.Function.Arguments), &args)
		calls = append(calls, ToolCall{ID: w.ID, Name: w.Function.Name, Arguments: args})
	}
	return calls
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, err
	}
	wire := toOpenAIRequest(req)
	wire.Stream = false

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "marshaling openai request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "building openai request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindNetwork, "openai request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return nil, vterrors.Provider(resp.StatusCode, buf.String())
	}

	var wireResp openAIResponseWire
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "decoding openai response", err)
	}
	if len(wireResp.Choices) == 0 {
		return nil, vterrors.New(vterrors.KindProvider, "openai response contained no choices")
	}
	choice := wireResp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		ToolCalls:    fromOpenAIToolCalls(choice.Message.ToolCalls),
		Usage:        Usage{PromptTokens: wireResp.Usage.PromptTokens, CompletionTokens: wireResp.Usage.CompletionTokens, TotalTokens: wireResp.Usage.TotalTokens},
		FinishReason: fromOpenAIFinishReason(choice.FinishReason),
		Model:        wireResp.Model,
	}, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) <-chan StreamEvent {
	ch := make(chan StreamEvent, 8)
	go func() {
		defer close(ch)
		if err := p.ValidateRequest(req); err != nil {
			ch <- StreamEvent{Err: err}
			return
		}
		wire := toOpenAIRequest(req)
		wire.Stream = true

		body, err := json.Marshal(wire)
		if err != nil {
			ch <- StreamEvent{Err: vterrors.Wrap(vterrors.KindInternal, "marshaling openai request", err)}
			return
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			ch <- StreamEvent{Err: vterrors.Wrap(vterrors.KindInternal, "building openai request", err)}
			return
		}
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			ch <- StreamEvent{Err: vterrors.Wrap(vterrors.KindNetwork, "openai streaming request failed", err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var buf bytes.Buffer
			buf.ReadFrom(resp.Body)
			ch <- StreamEvent{Err: vterrors.Provider(resp.StatusCode, buf.String())}
			return
		}

		var accumulated []ToolCall
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var chunk openAIStreamChunkWire
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0]
			ev := StreamEvent{ContentDelta: delta.Delta.Content}
			if len(delta.Delta.ToolCalls) > 0 {
				accumulated = append(accumulated, fromOpenAIToolCalls(delta.Delta.ToolCalls)...)
			}
			if delta.FinishReason != "" {
				fr := fromOpenAIFinishReason(delta.FinishReason)
				ev.FinishReason = &fr
				ev.ToolCallsDelta = accumulated
			}
			if chunk.Usage != nil {
				ev.Usage = &Usage{PromptTokens: chunk.Usage.PromptTokens, CompletionTokens: chunk.Usage.CompletionTokens, TotalTokens: chunk.Usage.TotalTokens}
			}
			ch <- ev
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamEvent{Err: vterrors.Wrap(vterrors.KindNetwork, "reading openai stream", err)}
		}
	}()
	return ch
}
