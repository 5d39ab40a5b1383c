package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinhnx/vtcode/pkg/llm"
)

func TestNew_StartsEmpty(t *testing.T) {
	conv := New("session-1")

	assert.Equal(t, "session-1", conv.SessionID)
	assert.Empty(t, conv.Messages)
	assert.Zero(t, conv.TokenCount)
}

func TestAddUserMessage_AppendsWithTokens(t *testing.T) {
	conv := New("s")
	conv.AddUserMessage("hello world")

	require.Len(t, conv.Messages, 1)
	msg := conv.Messages[0]
	assert.Equal(t, llm.RoleUser, msg.Role)
	assert.Equal(t, "hello world", msg.Content)
	assert.Positive(t, msg.Tokens)
	assert.Equal(t, msg.Tokens, conv.TokenCount)
}

func TestAddSystemMessage_SetsSystemRole(t *testing.T) {
	conv := New("s")
	conv.AddSystemMessage("you are a helpful assistant")

	require.Len(t, conv.Messages, 1)
	assert.Equal(t, llm.RoleSystem, conv.Messages[0].Role)
}

func TestAddAssistantMessageWithReasoning_CountsBothChannels(t *testing.T) {
	conv := New("s")
	conv.AddAssistantMessageWithReasoning("the answer is 4", "2+2=4")

	msg := conv.Messages[0]
	assert.Equal(t, "the answer is 4", msg.Content)
	assert.Equal(t, "2+2=4", msg.Reasoning)
	assert.Equal(t, CountTokens("the answer is 4")+CountTokens("2+2=4"), msg.Tokens)
}

func TestAddToolCallMessage_CarriesCallsNoContent(t *testing.T) {
	conv := New("s")
	calls := []llm.ToolCall{{ID: "call-1", Name: "list_files", Arguments: map[string]any{"path": "."}}}
	conv.AddToolCallMessage(calls)

	msg := conv.Messages[0]
	assert.Equal(t, llm.RoleAssistant, msg.Role)
	assert.Empty(t, msg.Content)
	assert.Equal(t, calls, msg.ToolCalls)
	assert.Positive(t, msg.Tokens)
}

func TestAddToolResponseMessage_CarriesMatchingCallID(t *testing.T) {
	conv := New("s")
	conv.AddToolResponseMessage("call-1", `{"success":true}`)

	msg := conv.Messages[0]
	assert.Equal(t, llm.RoleTool, msg.Role)
	assert.Equal(t, "call-1", msg.ToolCallID)
	assert.Equal(t, `{"success":true}`, msg.Content)
}

func TestToLLMMessages_SurfacesReasoningWhenContentEmpty(t *testing.T) {
	conv := New("s")
	conv.AddAssistantMessageWithReasoning("", "thinking out loud")

	llmMsgs := conv.ToLLMMessages()
	require.Len(t, llmMsgs, 1)
	assert.Equal(t, "thinking out loud", llmMsgs[0].Content)
}

func TestToLLMMessages_PrefersContentOverReasoningWhenBothPresent(t *testing.T) {
	conv := New("s")
	conv.AddAssistantMessageWithReasoning("final answer", "scratch work")

	llmMsgs := conv.ToLLMMessages()
	assert.Equal(t, "final answer", llmMsgs[0].Content)
}

func TestToLLMMessages_PreservesOrderAndToolLinkage(t *testing.T) {
	conv := New("s")
	conv.AddUserMessage("list the files")
	calls := []llm.ToolCall{{ID: "call-1", Name: "list_files"}}
	conv.AddToolCallMessage(calls)
	conv.AddToolResponseMessage("call-1", `{"files":[]}`)
	conv.AddAssistantMessage("done")

	llmMsgs := conv.ToLLMMessages()
	require.Len(t, llmMsgs, 4)
	assert.Equal(t, llm.RoleUser, llmMsgs[0].Role)
	assert.Equal(t, llm.RoleAssistant, llmMsgs[1].Role)
	assert.Equal(t, calls, llmMsgs[1].ToolCalls)
	assert.Equal(t, llm.RoleTool, llmMsgs[2].Role)
	assert.Equal(t, "call-1", llmMsgs[2].ToolCallID)
	assert.Equal(t, llm.RoleAssistant, llmMsgs[3].Role)
}

func TestGetLastN_ReturnsTrailingSlice(t *testing.T) {
	conv := New("s")
	for i := 0; i < 5; i++ {
		conv.AddUserMessage("msg")
	}

	last := conv.GetLastN(2)
	assert.Len(t, last, 2)
}

func TestGetLastN_ReturnsAllWhenNExceedsLength(t *testing.T) {
	conv := New("s")
	conv.AddUserMessage("only one")

	last := conv.GetLastN(10)
	assert.Len(t, last, 1)
}

func TestClear_ResetsHistoryAndCounters(t *testing.T) {
	conv := New("s")
	conv.AddUserMessage("hello")
	conv.CompactionCount = 3

	conv.Clear()

	assert.Empty(t, conv.Messages)
	assert.Zero(t, conv.TokenCount)
	assert.Zero(t, conv.CompactionCount)
}

func TestNeedsCompaction_RespectsThreshold(t *testing.T) {
	conv := New("s")
	conv.TokenCount = 900

	assert.True(t, conv.NeedsCompaction(1000, 0.9))
	assert.False(t, conv.NeedsCompaction(1000, 0.91))
}

func TestUpdateTokenCount_BackfillsZeroTokenMessages(t *testing.T) {
	conv := New("s")
	conv.Messages = append(conv.Messages, Message{Role: llm.RoleUser, Content: "backfill me"})

	conv.UpdateTokenCount()

	assert.Positive(t, conv.Messages[0].Tokens)
	assert.Equal(t, conv.Messages[0].Tokens, conv.TokenCount)
}

func TestCountTokens_NonEmptyTextIsPositive(t *testing.T) {
	assert.Positive(t, CountTokens("a reasonably long sentence to tokenize"))
}

func TestCountTokens_EmptyStringIsZero(t *testing.T) {
	assert.Zero(t, CountTokens(""))
}

func TestCountTokensForMessages_IncludesPerMessageOverhead(t *testing.T) {
	messages := []Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	}

	total := CountTokensForMessages(messages)
	bare := CountTokens("hi") + CountTokens("hello")
	assert.Greater(t, total, bare, "per-message and structural overhead should be added on top of raw content tokens")
}
