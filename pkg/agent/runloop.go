// Package agent implements the turn-based run-loop (C12): acquiring
// input, routing, trimming context, generating, parsing and executing
// tool calls, and looping until the model returns a final response.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vinhnx/vtcode/pkg/conversation"
	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/llm"
	"github.com/vinhnx/vtcode/pkg/plan"
	"github.com/vinhnx/vtcode/pkg/streaming"
	"github.com/vinhnx/vtcode/pkg/tool"
	"github.com/vinhnx/vtcode/pkg/tool/builtin"
	"github.com/vinhnx/vtcode/pkg/toolcall"
	"github.com/vinhnx/vtcode/pkg/trajectory"
)

// Renderer is the UI surface the run-loop drives; kept minimal so a
// headless caller (tests, `ask`) can supply a no-op implementation.
type Renderer interface {
	RenderAssistantChunk(delta string)
	RenderAssistantFinal(content string)
	RenderToolCall(name string, args map[string]any)
	RenderToolResult(name string, result *builtin.Result)
	RenderError(err error)
}

// PromptRefiner issues the optional auxiliary rewrite call from step 2.
// A nil PromptRefiner disables refinement outright.
type PromptRefiner interface {
	Refine(ctx context.Context, input string) (string, error)
}

// RefinerStub implements PromptRefiner for VTCODE_PROMPT_REFINER_STUB:
// deterministic, network-free, used by tests and CI.
type RefinerStub struct{}

func (RefinerStub) Refine(_ context.Context, input string) (string, error) {
	return "[REFINED] " + input, nil
}

// Config bounds the run-loop's behavior; all fields have sane zero
// values (MaxConversationTurns 0 places no limit on turns).
type Config struct {
	MaxConversationTurns int
	TokenBudget          int
	KeepRecentTurns      int
	RefinePromptsEnabled bool
	EnableSelfReview     bool
	MaxReviewPasses      int
	ToolCallRetries      int
	ToolCallRetryBase    time.Duration
}

// Loop owns one session's worth of state: history, turn counter,
// provider, router, tool registry, trajectory logger, plan manager, and
// UI renderer.
type Loop struct {
	cfg Config

	conversation    *conversation.Conversation
	providers       *llm.Factory
	providerConfigs map[string]llm.ProviderConfig
	router          *llm.Router
	registry        *tool.Registry
	trajectory      *trajectory.Logger
	planManager     *plan.Manager
	refiner         PromptRefiner
	renderer        Renderer

	turn int
}

// New constructs a Loop. providers/router/registry/trajectoryLogger must
// be non-nil; refiner and renderer may be nil (refinement disabled, UI
// output discarded). providerConfigs supplies the API key (and optional
// base URL/transport) each provider name resolves to; a provider with no
// entry is constructed with a zero ProviderConfig.
func New(cfg Config, conv *conversation.Conversation, providers *llm.Factory, providerConfigs map[string]llm.ProviderConfig, router *llm.Router, registry *tool.Registry, trajectoryLogger *trajectory.Logger, planManager *plan.Manager, refiner PromptRefiner, renderer Renderer) *Loop {
	if cfg.KeepRecentTurns <= 0 {
		cfg.KeepRecentTurns = 8
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 32000
	}
	if cfg.ToolCallRetries <= 0 {
		cfg.ToolCallRetries = 2
	}
	if cfg.ToolCallRetryBase <= 0 {
		cfg.ToolCallRetryBase = 200 * time.Millisecond
	}
	if renderer == nil {
		renderer = noopRenderer{}
	}
	return &Loop{
		cfg:             cfg,
		conversation:    conv,
		providers:       providers,
		providerConfigs: providerConfigs,
		router:          router,
		registry:        registry,
		trajectory:      trajectoryLogger,
		planManager:     planManager,
		refiner:         refiner,
		renderer:        renderer,
	}
}

type noopRenderer struct{}

func (noopRenderer) RenderAssistantChunk(string)                   {}
func (noopRenderer) RenderAssistantFinal(string)                   {}
func (noopRenderer) RenderToolCall(string, map[string]any)         {}
func (noopRenderer) RenderToolResult(string, *builtin.Result)      {}
func (noopRenderer) RenderError(error)                             {}

// RunTurn executes one user turn per §4.12 steps 2-12. Step 1 (reading
// input and dispatching slash commands) is the caller's responsibility:
// by the time userInput reaches RunTurn it is already known to be a
// model-directed message, not a slash command.
func (l *Loop) RunTurn(ctx context.Context, userInput string) error {
	if l.cfg.MaxConversationTurns > 0 && l.turn >= l.cfg.MaxConversationTurns {
		return vterrors.New(vterrors.KindInvalidParameters, "conversation turn limit reached")
	}
	l.turn++
	l.registry.SetTurn(l.turn)

	// Step 2: optional prompt refinement.
	refined := userInput
	if l.cfg.RefinePromptsEnabled && l.refiner != nil {
		if out, err := l.refiner.Refine(ctx, userInput); err == nil && strings.TrimSpace(out) != "" {
			refined = out
		}
	}

	// Step 3: route.
	decision := l.router.Route(ctx, refined)
	if l.trajectory != nil {
		l.trajectory.LogRoute(l.turn, decision.Model, string(decision.Class), preview(refined))
	}

	// Step 4: append user message.
	l.conversation.AddUserMessage(refined)

	// Step 5: trim context.
	l.trimContext()

	budget := l.router.BudgetFor(decision.Class)

	for {
		select {
		case <-ctx.Done():
			l.conversation.AddAssistantMessage("[cancelled]")
			return vterrors.Wrap(vterrors.KindCancelled, "turn cancelled", ctx.Err())
		default:
		}

		// Step 6: prune tool schema.
		allowed := allowedCapabilities(decision.Class)
		defs := l.registry.BuildFunctionDeclarations(allowed)
		tools := make([]llm.ToolDefinition, 0, len(defs))
		for _, d := range defs {
			tools = append(tools, llm.ToolDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  schemaToMap(d.Parameters),
			})
		}

		providerName, ok := llm.ProviderFromModel(decision.Model)
		if !ok {
			return vterrors.New(vterrors.KindInvalidParameters, "no provider recognizes model: "+decision.Model)
		}
		provider, err := l.providers.CreateProvider(providerName, l.providerConfigs[providerName])
		if err != nil {
			return err
		}

		req := llm.Request{
			Messages:          l.conversation.ToLLMMessages(),
			Tools:             tools,
			Model:             decision.Model,
			MaxTokens:         budget.MaxTokens,
			Stream:            true,
			ToolChoice:        llm.ToolChoiceAuto,
			ParallelToolCalls: budget.MaxParallelTools > 1,
		}

		// Step 7: generate, streaming chunks through the renderer.
		resp, err := l.generate(ctx, provider, req)
		if err != nil {
			if vterrors.KindOf(err) == vterrors.KindCancelled {
				l.conversation.AddAssistantMessage("[cancelled]")
			}
			l.renderer.RenderError(err)
			return err
		}

		// Step 9: parse tool calls (structured, falling back to textual).
		calls := resp.ToolCalls
		if len(calls) == 0 && strings.Contains(resp.Content, "default_api.") {
			for _, extracted := range toolcall.ExtractTextual(resp.Content) {
				calls = append(calls, llm.ToolCall{Name: extracted.Name, Arguments: extracted.Args})
			}
		}

		if len(calls) == 0 {
			// Step 12: final response.
			final := resp.Content
			if l.cfg.EnableSelfReview {
				final = l.selfReview(ctx, provider, decision.Model, final)
			}
			l.conversation.AddAssistantMessage(final)
			l.renderer.RenderAssistantFinal(final)
			return nil
		}

		// Step 10: execute tool calls, possibly in parallel.
		l.conversation.AddToolCallMessage(calls)
		results := l.executeToolCalls(ctx, calls, budget.MaxParallelTools > 1)
		for i, call := range calls {
			res := results[i]
			l.renderer.RenderToolResult(call.Name, res.result)
			content, _ := tool.ToJSON(res.result)
			if res.err != nil {
				content = formatToolError(res.err)
			}
			l.conversation.AddToolResponseMessage(call.ID, content)
		}

		// Step 11: loop back to generation with the updated history.
	}
}

type toolCallOutcome struct {
	result *builtin.Result
	err    error
}

// executeToolCalls runs each call in order, optionally fanning out
// read-only batches concurrently (§5): writes (Editing, Bash) always
// serialize, and results land back in request order regardless of
// completion order.
func (l *Loop) executeToolCalls(ctx context.Context, calls []llm.ToolCall, allowParallel bool) []toolCallOutcome {
	results := make([]toolCallOutcome, len(calls))

	if !allowParallel || !allReadOnly(l.registry, calls) {
		for i, call := range calls {
			l.renderer.RenderToolCall(call.Name, call.Arguments)
			res, err := l.executeWithRetry(ctx, call)
			results[i] = toolCallOutcome{result: res, err: err}
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		l.renderer.RenderToolCall(call.Name, call.Arguments)
		g.Go(func() error {
			res, err := l.executeWithRetry(gctx, call)
			results[i] = toolCallOutcome{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// executeWithRetry retries retryable errors with exponential backoff
// (default 2 retries, 200ms * 2^k), per §4.12 step 10.
func (l *Loop) executeWithRetry(ctx context.Context, call llm.ToolCall) (*builtin.Result, error) {
	delay := l.cfg.ToolCallRetryBase
	var lastErr error
	for attempt := 0; attempt <= l.cfg.ToolCallRetries; attempt++ {
		res, err := l.registry.ExecuteTool(ctx, call.Name, call.Arguments)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !vterrors.IsRecoverable(err) || attempt == l.cfg.ToolCallRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func allReadOnly(registry *tool.Registry, calls []llm.ToolCall) bool {
	for _, call := range calls {
		capability, ok := registry.CapabilityOf(call.Name)
		if !ok || !capability.ReadOnly() {
			return false
		}
	}
	return true
}

// generate drives a streaming provider call, rendering deltas as they
// arrive and assembling the final Response (§4.12 step 7). Providers
// hand back already-parsed events; each content delta is split with
// C9's ChunkText before rendering.
func (l *Loop) generate(ctx context.Context, provider llm.Provider, req llm.Request) (*llm.Response, error) {
	if !req.Stream {
		return provider.Generate(ctx, req)
	}

	var content strings.Builder
	var finalCalls []llm.ToolCall
	var usage llm.Usage
	var finish llm.FinishReason

	for event := range provider.Stream(ctx, req) {
		if event.Err != nil {
			return nil, event.Err
		}
		if event.ContentDelta != "" {
			for _, chunk := range streaming.ChunkText(event.ContentDelta) {
				l.renderer.RenderAssistantChunk(chunk)
			}
			content.WriteString(event.ContentDelta)
		}
		if len(event.ToolCallsDelta) > 0 {
			finalCalls = event.ToolCallsDelta
		}
		if event.Usage != nil {
			usage = *event.Usage
		}
		if event.FinishReason != nil {
			finish = *event.FinishReason
		}
	}

	return &llm.Response{
		Content:      content.String(),
		ToolCalls:    finalCalls,
		Usage:        usage,
		FinishReason: finish,
		Model:        req.Model,
	}, nil
}

// selfReview issues one bounded critique-and-revise pass (§4.12 step 12).
func (l *Loop) selfReview(ctx context.Context, provider llm.Provider, model, content string) string {
	maxPasses := l.cfg.MaxReviewPasses
	if maxPasses <= 0 {
		maxPasses = 1
	}
	current := content
	for pass := 0; pass < maxPasses; pass++ {
		req := llm.Request{
			Messages: []llm.Message{
				{Role: llm.RoleUser, Content: "Critique and, if needed, revise the following response for correctness and clarity. Return only the final response text.\n\n" + current},
			},
			Model:     model,
			MaxTokens: 4000,
		}
		resp, err := provider.Generate(ctx, req)
		if err != nil || strings.TrimSpace(resp.Content) == "" {
			break
		}
		current = resp.Content
	}
	return current
}

// trimContext drops the oldest non-system messages once the estimated
// token count exceeds the configured budget, keeping the most recent
// KeepRecentTurns messages unconditionally and never separating a
// ToolCalls-bearing Assistant message from its paired Tool message
// (§4.12 step 5).
func (l *Loop) trimContext() {
	msgs := l.conversation.Messages
	if len(msgs) <= l.cfg.KeepRecentTurns {
		return
	}
	if !l.conversation.NeedsCompaction(l.cfg.TokenBudget, 0.9) {
		return
	}

	keepFrom := len(msgs) - l.cfg.KeepRecentTurns
	for keepFrom > 0 && msgs[keepFrom].ToolCallID != "" {
		// Would split a Tool message from its Assistant ToolCalls message;
		// extend the kept window backward until the pairing is intact.
		keepFrom--
	}

	var system []conversation.Message
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			system = append(system, m)
		}
	}

	trimmed := append(system, msgs[keepFrom:]...)
	l.conversation.Messages = trimmed
	l.conversation.UpdateTokenCount()
	l.conversation.CompactionCount++
}

func allowedCapabilities(class llm.TaskClass) map[tool.CapabilityLevel]bool {
	if class != llm.TaskRetrievalHeavy {
		return nil
	}
	return map[tool.CapabilityLevel]bool{
		tool.CapabilityFileListing: true,
		tool.CapabilityFileReading: true,
		tool.CapabilityCodeSearch:  true,
	}
}

func schemaToMap(schema builtin.ParameterSchema) map[string]any {
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

func preview(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func formatToolError(err error) string {
	agentErr, ok := err.(*vterrors.AgentError)
	if !ok {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return fmt.Sprintf(`{"error":%q,"kind":%q,"recoverable":%v}`, agentErr.Error(), vterrors.KindOf(agentErr), agentErr.Recoverable())
}
