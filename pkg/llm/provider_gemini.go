package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var geminiModelList = []string{
	"gemini-2.0-flash",
	"gemini-2.0-pro",
	"gemini-1.5-flash",
}

// GeminiProvider speaks the generateContent wire format (§4.7): the
// system prompt becomes systemInstruction rather than a message, Tool
// messages map to role "function" carrying a functionResponse part, and
// RoleAssistant tool calls become functionCall parts. Gemini synthesizes
// no call ids of its own, so this adapter assigns call_<n> ids in
// declaration order on the way in.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiProvider builds a provider against baseURL (geminiBaseURL when
// empty), logging every round trip through transport when non-nil.
func NewGeminiProvider(apiKey, baseURL string, transport *LoggingTransport) *GeminiProvider {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	var rt http.RoundTripper = http.DefaultTransport
	if transport != nil {
		rt = transport
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: rt,
		},
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) SupportedModels() []string { return geminiModelList }

func (p *GeminiProvider) ValidateRequest(req Request) error { return validateCommon(req) }

type geminiPart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *geminiFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResp `json:"functionResponse,omitempty"`
}

type geminiFuncCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFuncResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiRequestWire struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature,omitempty"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponseWire struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// callIDToName tracks the synthesized call_<n> id assigned to each
// functionCall so a later Tool-role message naming that id can be turned
// back into the matching function name for functionResponse.
func toGeminiRequest(req Request) (geminiRequestWire, map[string]string) {
	wire := geminiRequestWire{}
	wire.GenerationConfig.Temperature = req.Temperature
	wire.GenerationConfig.MaxOutputTokens = req.MaxTokens

	if req.SystemPrompt != "" {
		wire.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	callIDToName := make(map[string]string)
	callCounter := 0

	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if wire.SystemInstruction == nil {
				wire.SystemInstruction = &geminiContent{}
			}
			wire.SystemInstruction.Parts = append(wire.SystemInstruction.Parts, geminiPart{Text: m.Content})
		case RoleUser:
			wire.Contents = append(wire.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		case RoleAssistant:
			var parts []geminiPart
			if m.Content != "" {
				parts = append(parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				callID := tc.ID
				if callID == "" {
					callCounter++
					callID = fmt.Sprintf("call_%d", callCounter)
				}
				callIDToName[callID] = tc.Name
				parts = append(parts, geminiPart{FunctionCall: &geminiFuncCall{Name: tc.Name, Args: tc.Arguments}})
			}
			wire.Contents = append(wire.Contents, geminiContent{Role: "model", Parts: parts})
		case RoleTool:
			name := callIDToName[m.ToolCallID]
			if name == "" {
				name = m.ToolCallID
			}
			wire.Contents = append(wire.Contents, geminiContent{
				Role: "function",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFuncResp{Name: name, Response: map[string]any{"result": m.Content}},
				}},
			})
		}
	}

	for _, td := range req.Tools {
		wire.Tools = append(wire.Tools, geminiTool{FunctionDeclarations: []geminiFunctionDecl{
			{Name: td.Name, Description: td.Description, Parameters: td.Parameters},
		}})
	}

	return wire, callIDToName
}

func fromGeminiFinishReason(raw string) FinishReason {
	switch raw {
	case "STOP":
		return StopFinish()
	case "MAX_TOKENS":
		return LengthFinish()
	case "SAFETY", "RECITATION":
		return ContentFilterFinish()
	case "":
		return StopFinish()
	default:
		return ErrorFinish(raw)
	}
}

func fromGeminiContent(content geminiContent) (string, []ToolCall) {
	var textParts []string
	var calls []ToolCall
	callCounter := 0
	for _, part := range content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
		if part.FunctionCall != nil {
			callCounter++
			calls = append(calls, ToolCall{
				ID:        fmt.Sprintf("call_%d", callCounter),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	return strings.Join(textParts, "\n"), calls
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, err
	}
	wire, _ := toGeminiRequest(req)

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "marshaling gemini request", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, url.PathEscape(req.Model), url.QueryEscape(p.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "building gemini request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindNetwork, "gemini request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return nil, vterrors.Provider(resp.StatusCode, buf.String())
	}

	var wireResp geminiResponseWire
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "decoding gemini response", err)
	}
	if len(wireResp.Candidates) == 0 {
		return nil, vterrors.New(vterrors.KindProvider, "gemini response contained no candidates")
	}

	candidate := wireResp.Candidates[0]
	content, calls := fromGeminiContent(candidate.Content)
	return &Response{
		Content:   content,
		ToolCalls: calls,
		Usage: Usage{
			PromptTokens:     wireResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: wireResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wireResp.UsageMetadata.TotalTokenCount,
		},
		FinishReason: fromGeminiFinishReason(candidate.FinishReason),
		Model:        req.Model,
	}, nil
}

// Stream falls back to a single terminal event: streamGenerateContent
// uses a distinct SSE-adjacent chunking format the ambient spec does not
// require yet.
func (p *GeminiProvider) Stream(ctx context.Context, req Request) <-chan StreamEvent {
	return singleEventStream(ctx, p.Generate, req)
}
