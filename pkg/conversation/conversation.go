// Package conversation holds one session's in-memory message history:
// appending turns, converting to the provider-agnostic llm.Message shape,
// and the token accounting the run-loop's context trim step consults.
// History is process-local (§1 Non-goals: no daemon/server mode), so
// there is no on-disk session store here.
package conversation

import (
	"strings"
	"time"

	"github.com/vinhnx/vtcode/pkg/llm"
)

// Message is one turn of a session's history. Content is always plain
// text; vtcode does not carry multimodal parts.
type Message struct {
	Role        llm.Role
	Content     string
	Timestamp   time.Time
	Tokens      int
	ToolCalls   []llm.ToolCall
	ToolCallID  string
	IsSummary   bool
	IsTruncated bool
	Reasoning   string
}

// Conversation manages one session's message history.
type Conversation struct {
	SessionID       string
	Messages        []Message
	TokenCount      int
	CompactionCount int
}

// New creates an empty conversation.
func New(sessionID string) *Conversation {
	return &Conversation{SessionID: sessionID, Messages: []Message{}}
}

// AddUserMessage appends a user turn.
func (c *Conversation) AddUserMessage(content string) {
	c.append(Message{Role: llm.RoleUser, Content: content, Timestamp: time.Now(), Tokens: CountTokens(content)})
}

// AddSystemMessage appends the session's system prompt. By convention
// this is called at most once, before any other message.
func (c *Conversation) AddSystemMessage(content string) {
	c.append(Message{Role: llm.RoleSystem, Content: content, Timestamp: time.Now(), Tokens: CountTokens(content)})
}

// AddAssistantMessage appends an assistant turn with no tool calls.
func (c *Conversation) AddAssistantMessage(content string) {
	c.AddAssistantMessageWithReasoning(content, "")
}

// AddAssistantMessageWithReasoning appends an assistant turn carrying a
// reasoning-model's thinking trace alongside its visible content.
func (c *Conversation) AddAssistantMessageWithReasoning(content, reasoning string) {
	c.append(Message{
		Role:      llm.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		Tokens:    CountTokens(content) + CountTokens(reasoning),
		Reasoning: reasoning,
	})
}

// AddToolCallMessage appends an assistant turn that issues tool calls;
// the message carries no visible content.
func (c *Conversation) AddToolCallMessage(toolCalls []llm.ToolCall) {
	c.append(Message{
		Role:      llm.RoleAssistant,
		Timestamp: time.Now(),
		Tokens:    estimateToolCallTokens(toolCalls),
		ToolCalls: toolCalls,
	})
}

// AddToolResponseMessage appends a tool-result turn matching a prior
// ToolCall's id.
func (c *Conversation) AddToolResponseMessage(toolCallID, content string) {
	c.append(Message{
		Role:       llm.RoleTool,
		Content:    content,
		Timestamp:  time.Now(),
		Tokens:     CountTokens(content),
		ToolCallID: toolCallID,
	})
}

func (c *Conversation) append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.TokenCount += msg.Tokens
}

// ToLLMMessages converts the history to the provider-agnostic Message
// slice a llm.Request carries. A reasoning-only assistant turn (some
// "thinking" models return text solely in the reasoning channel) is
// surfaced as Content so downstream providers still see it.
func (c *Conversation) ToLLMMessages() []llm.Message {
	msgs := make([]llm.Message, len(c.Messages))
	for i, msg := range c.Messages {
		content := msg.Content
		if msg.Role == llm.RoleAssistant && content == "" && len(msg.ToolCalls) == 0 && strings.TrimSpace(msg.Reasoning) != "" {
			content = msg.Reasoning
		}
		msgs[i] = llm.Message{
			Role:       msg.Role,
			Content:    content,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		}
	}
	return msgs
}

// GetLastN returns the last n messages (or all of them if n >= len).
func (c *Conversation) GetLastN(n int) []Message {
	if n >= len(c.Messages) {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Clear empties the conversation.
func (c *Conversation) Clear() {
	c.Messages = []Message{}
	c.TokenCount = 0
	c.CompactionCount = 0
}

func estimateToolCallTokens(toolCalls []llm.ToolCall) int {
	total := 0
	for _, tc := range toolCalls {
		total += CountTokens(tc.Name)
		for k, v := range tc.Arguments {
			total += CountTokens(k)
			if s, ok := v.(string); ok {
				total += CountTokens(s)
			}
		}
		total += 10 // structural overhead per call
	}
	return total
}

// NeedsCompaction reports whether the history has grown past threshold
// (a fraction in (0,1]) of maxTokens.
func (c *Conversation) NeedsCompaction(maxTokens int, threshold float64) bool {
	return float64(c.TokenCount) >= float64(maxTokens)*threshold
}

// UpdateTokenCount recomputes TokenCount from each message's Tokens
// field, backfilling any message left at zero.
func (c *Conversation) UpdateTokenCount() {
	total := 0
	for i := range c.Messages {
		if c.Messages[i].Tokens == 0 {
			c.Messages[i].Tokens = CountTokens(c.Messages[i].Content)
		}
		total += c.Messages[i].Tokens
	}
	c.TokenCount = total
}
