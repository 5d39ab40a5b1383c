package agent

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinhnx/vtcode/pkg/conversation"
	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/llm"
	"github.com/vinhnx/vtcode/pkg/plan"
	"github.com/vinhnx/vtcode/pkg/tool"
	"github.com/vinhnx/vtcode/pkg/tool/builtin"
	"github.com/vinhnx/vtcode/pkg/trajectory"
)

// fakeProvider returns responses in order (the last one repeats once
// exhausted) and records every request it was handed, so tests can
// assert on call count and on what the run-loop sent upstream.
type fakeProvider struct {
	responses []llm.Response
	calls     int
	requests  []llm.Request
}

func (p *fakeProvider) Name() string              { return "fake" }
func (p *fakeProvider) SupportedModels() []string { return []string{"gpt-4o-mini"} }
func (p *fakeProvider) ValidateRequest(llm.Request) error { return nil }

func (p *fakeProvider) next(req llm.Request) llm.Response {
	p.requests = append(p.requests, req)
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return p.responses[idx]
}

func (p *fakeProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	resp := p.next(req)
	return &resp, nil
}

func (p *fakeProvider) Stream(_ context.Context, req llm.Request) <-chan llm.StreamEvent {
	resp := p.next(req)
	ch := make(chan llm.StreamEvent, 1)
	ch <- llm.StreamEvent{
		ContentDelta:   resp.Content,
		ToolCallsDelta: resp.ToolCalls,
		Usage:          &resp.Usage,
		FinishReason:   &resp.FinishReason,
	}
	close(ch)
	return ch
}

type fakeListTool struct {
	calls int32
}

func (t *fakeListTool) Name() string        { return "list_files" }
func (t *fakeListTool) Description() string { return "lists files in the workspace" }
func (t *fakeListTool) Parameters() builtin.ParameterSchema {
	return builtin.ParameterSchema{Type: "object"}
}
func (t *fakeListTool) Execute(map[string]any) (*builtin.Result, error) {
	atomic.AddInt32(&t.calls, 1)
	return builtin.Ok(map[string]any{"files": []string{"a.go", "b.go"}}), nil
}

func newTestRouter(maxParallel int) *llm.Router {
	return llm.NewRouter(llm.RouterConfig{
		DefaultModel: "gpt-4o-mini",
		BudgetsByClass: map[llm.TaskClass]llm.Budget{
			llm.TaskSimple:   {MaxTokens: 1000, MaxParallelTools: maxParallel, LatencyTargetMS: 2000},
			llm.TaskStandard: {MaxTokens: 4000, MaxParallelTools: maxParallel, LatencyTargetMS: 6000},
		},
	}, nil)
}

func newTestLoop(t *testing.T, cfg Config, provider llm.Provider, registry *tool.Registry, refiner PromptRefiner) (*Loop, *conversation.Conversation) {
	t.Helper()
	factory := llm.NewFactory()
	factory.Register("openai", func(llm.ProviderConfig) llm.Provider { return provider })

	traj, err := trajectory.New("", false)
	require.NoError(t, err)

	conv := conversation.New("test-session")
	if registry == nil {
		registry = tool.NewRegistry(tool.Config{})
	}

	loop := New(cfg, conv, factory, map[string]llm.ProviderConfig{"openai": {APIKey: "test-key"}}, newTestRouter(2), registry, traj, plan.NewManager(), refiner, nil)
	return loop, conv
}

func TestRunTurn_FinalResponseNoToolCalls(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{
		{Content: "hello there", FinishReason: llm.StopFinish()},
	}}
	loop, conv := newTestLoop(t, Config{MaxConversationTurns: 5}, provider, nil, nil)

	err := loop.RunTurn(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	last := conv.Messages[len(conv.Messages)-1]
	assert.Equal(t, llm.RoleAssistant, last.Role)
	assert.Equal(t, "hello there", last.Content)
}

func TestRunTurn_ExecutesToolCallThenFinalizes(t *testing.T) {
	listTool := &fakeListTool{}
	registry := tool.NewRegistry(tool.Config{})
	registry.Register(tool.Registration{
		Definition: tool.Definition{Name: "list_files", Description: "lists files", Parameters: builtin.ParameterSchema{Type: "object"}},
		Capability: tool.CapabilityFileListing,
		LLMVisible: true,
		Tool:       listTool,
	})

	provider := &fakeProvider{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "list_files", Arguments: map[string]any{}}}, FinishReason: llm.ToolCallsFinish()},
		{Content: "done", FinishReason: llm.StopFinish()},
	}}
	loop, conv := newTestLoop(t, Config{MaxConversationTurns: 5}, provider, registry, nil)

	err := loop.RunTurn(context.Background(), "list the files please")
	require.NoError(t, err)

	assert.EqualValues(t, 1, listTool.calls)
	assert.Equal(t, 2, provider.calls)

	var sawToolResponse bool
	for _, m := range conv.Messages {
		if m.Role == llm.RoleTool && m.ToolCallID == "call-1" {
			sawToolResponse = true
			assert.Contains(t, m.Content, "a.go")
		}
	}
	assert.True(t, sawToolResponse, "expected a tool response message for call-1")
	assert.Equal(t, "done", conv.Messages[len(conv.Messages)-1].Content)
}

func TestRunTurn_ToolNotFoundReturnsStructuredErrorContent(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "does_not_exist", Arguments: map[string]any{}}}, FinishReason: llm.ToolCallsFinish()},
		{Content: "recovered", FinishReason: llm.StopFinish()},
	}}
	loop, conv := newTestLoop(t, Config{MaxConversationTurns: 5}, provider, nil, nil)

	err := loop.RunTurn(context.Background(), "call something bogus")
	require.NoError(t, err)

	var toolMsg *conversation.Message
	for i := range conv.Messages {
		if conv.Messages[i].Role == llm.RoleTool {
			toolMsg = &conv.Messages[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Contains(t, toolMsg.Content, "tool_not_found")
}

func TestRunTurn_RejectsWhenTurnLimitReached(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{{Content: "x", FinishReason: llm.StopFinish()}}}
	loop, _ := newTestLoop(t, Config{MaxConversationTurns: 1}, provider, nil, nil)

	require.NoError(t, loop.RunTurn(context.Background(), "first"))

	err := loop.RunTurn(context.Background(), "second")
	require.Error(t, err)
	assert.Equal(t, vterrors.KindInvalidParameters, vterrors.KindOf(err))
}

func TestRunTurn_CancelledContextReturnsErrorWithoutCallingProvider(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{{Content: "unused", FinishReason: llm.StopFinish()}}}
	loop, conv := newTestLoop(t, Config{MaxConversationTurns: 5}, provider, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.RunTurn(ctx, "hi")
	require.Error(t, err)
	assert.Equal(t, vterrors.KindCancelled, vterrors.KindOf(err))
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, "[cancelled]", conv.Messages[len(conv.Messages)-1].Content)
}

func TestRunTurn_AppliesPromptRefinementWhenEnabled(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{{Content: "ok", FinishReason: llm.StopFinish()}}}
	loop, conv := newTestLoop(t, Config{MaxConversationTurns: 5, RefinePromptsEnabled: true}, provider, nil, RefinerStub{})

	require.NoError(t, loop.RunTurn(context.Background(), "hi"))

	var sawRefined bool
	for _, m := range conv.Messages {
		if m.Role == llm.RoleUser && strings.HasPrefix(m.Content, "[REFINED]") {
			sawRefined = true
		}
	}
	assert.True(t, sawRefined, "expected the refined prompt, not the raw input, to be recorded")
}

func TestRunTurn_SkipsRefinementWhenDisabled(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{{Content: "ok", FinishReason: llm.StopFinish()}}}
	loop, conv := newTestLoop(t, Config{MaxConversationTurns: 5, RefinePromptsEnabled: false}, provider, nil, RefinerStub{})

	require.NoError(t, loop.RunTurn(context.Background(), "hi"))

	assert.Equal(t, "hi", conv.Messages[0].Content)
}

func TestAllReadOnly_DenyParallelWhenAnyToolWritesOrIsUnknown(t *testing.T) {
	registry := tool.NewRegistry(tool.Config{})
	registry.Register(tool.Registration{
		Definition: tool.Definition{Name: "list_files"},
		Capability: tool.CapabilityFileListing,
		LLMVisible: true,
		Tool:       &fakeListTool{},
	})
	registry.Register(tool.Registration{
		Definition: tool.Definition{Name: "run_terminal_cmd"},
		Capability: tool.CapabilityBash,
		LLMVisible: true,
		Tool:       &fakeListTool{},
	})

	assert.True(t, allReadOnly(registry, []llm.ToolCall{{Name: "list_files"}}))
	assert.False(t, allReadOnly(registry, []llm.ToolCall{{Name: "list_files"}, {Name: "run_terminal_cmd"}}))
	assert.False(t, allReadOnly(registry, []llm.ToolCall{{Name: "unregistered_tool"}}))
}

func TestRunTurn_TrimContextDropsOldestMessagesOnceOverBudget(t *testing.T) {
	provider := &fakeProvider{responses: []llm.Response{{Content: "ack", FinishReason: llm.StopFinish()}}}
	loop, conv := newTestLoop(t, Config{
		MaxConversationTurns: 50,
		TokenBudget:          1,
		KeepRecentTurns:      2,
	}, provider, nil, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, loop.RunTurn(context.Background(), strings.Repeat("word ", 20)))
	}

	assert.Greater(t, conv.CompactionCount, 0, "expected trimContext to have compacted at least once")
	assert.LessOrEqual(t, len(conv.Messages), 20, "trimming should keep history bounded")

	for _, m := range conv.Messages {
		if m.Role == llm.RoleTool {
			t.Fatalf("unexpected orphaned tool message in trimmed history: %+v", m)
		}
	}
}
