// Package llm defines the common LLM request/response model (§3/§4.7),
// the Provider abstraction, wire-format adapters for each supported
// provider, and the Factory/Router (§4.8) that pick a provider and model
// from a model name or a task classification.
package llm

import "time"

// Role is a Message's position in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is the conversation atom (§3). Tool messages carry ToolCallID
// matching a prior Assistant ToolCall id; System messages, when present,
// appear at most once and first — an invariant the run-loop enforces,
// not this type.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-issued invocation of a registered tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolChoice controls whether/which tools the model may call.
type ToolChoice string

const (
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceAny      ToolChoice = "any"
	ToolChoiceRequired ToolChoice = "required"
)

// ReasoningEffort requests a reasoning budget on models that support it.
type ReasoningEffort string

const (
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// ToolDefinition is the LLM-visible description of a registered tool,
// mirroring pkg/tool.Definition without importing pkg/tool (llm sits
// below tool in the dependency graph; the run-loop converts one to the
// other).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a provider-agnostic chat completion request (§3 LLMRequest).
type Request struct {
	Messages           []Message
	SystemPrompt       string
	Tools              []ToolDefinition
	Model              string
	MaxTokens          int
	Temperature        float64
	Stream             bool
	ToolChoice         ToolChoice
	ParallelToolCalls  bool
	ReasoningEffort     ReasoningEffort
}

// FinishReason normalizes each provider's completion/stop reason.
type FinishReason struct {
	Kind string // "stop" | "length" | "tool_calls" | "content_filter" | "error"
	Raw  string // original provider string, populated when Kind == "error"
}

func StopFinish() FinishReason         { return FinishReason{Kind: "stop"} }
func LengthFinish() FinishReason       { return FinishReason{Kind: "length"} }
func ToolCallsFinish() FinishReason    { return FinishReason{Kind: "tool_calls"} }
func ContentFilterFinish() FinishReason { return FinishReason{Kind: "content_filter"} }
func ErrorFinish(raw string) FinishReason { return FinishReason{Kind: "error", Raw: raw} }

// Usage reports token accounting for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a provider-agnostic chat completion response (§3 LLMResponse).
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	Usage        Usage
	FinishReason FinishReason
	Model        string
}

// StreamEvent is one incremental piece of a streaming Response.
type StreamEvent struct {
	ContentDelta string
	ToolCallsDelta []ToolCall // fully-formed calls accumulated so far, emitted on completion
	Usage        *Usage      // set only on the final event
	FinishReason *FinishReason
	Err          error
}

// TaskClass is the routing classification for one user turn (§3).
type TaskClass string

const (
	TaskSimple         TaskClass = "simple"
	TaskStandard       TaskClass = "standard"
	TaskComplex        TaskClass = "complex"
	TaskCodegenHeavy   TaskClass = "codegen_heavy"
	TaskRetrievalHeavy TaskClass = "retrieval_heavy"
)

// RouteDecision is the outcome of routing one turn.
type RouteDecision struct {
	Class TaskClass
	Model string
}

// CostEvent is an ambient usage-accounting record for one provider call;
// it is local accounting, not a billing service (Non-goals exclude the
// latter, not the former). The run-loop does not build or emit it.
type CostEvent struct {
	SessionID        string    `json:"session_id"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	EstimatedUSD     float64   `json:"estimated_usd"`
	Timestamp        time.Time `json:"timestamp"`
}
