package llm

import (
	"context"
	"strings"
)

// RouterConfig supplies the per-TaskClass model overrides and generation
// budgets the Router consults after classifying an input.
type RouterConfig struct {
	DefaultModel         string
	ModelsByClass        map[TaskClass]string
	BudgetsByClass        map[TaskClass]Budget
	LLMClassifierModel   string // empty disables the optional LLM classifier step
	HeuristicClassification bool
}

// Budget bounds one task class's generation: the token ceiling, the
// maximum tool calls issued in one parallel batch, and a soft latency
// target used only for telemetry.
type Budget struct {
	MaxTokens       int
	MaxParallelTools int
	LatencyTargetMS int
}

// Classifier asks a small model for a single-word TaskClass label,
// returning ok=false on any failure so the caller falls back to the
// heuristic result.
type Classifier interface {
	Classify(ctx context.Context, input string) (TaskClass, bool)
}

// Router picks a TaskClass and model for one turn's input (§4.8).
type Router struct {
	config     RouterConfig
	classifier Classifier
}

// NewRouter builds a Router. classifier may be nil, in which case only
// the heuristic rules run.
func NewRouter(config RouterConfig, classifier Classifier) *Router {
	return &Router{config: config, classifier: classifier}
}

var (
	codegenKeywords   = []string{"apply_patch", "unified diff", "patch", "edit_file", "create_file"}
	retrievalKeywords = []string{"search", "web", "google", "docs", "cite", "source", "up-to-date"}
	complexKeywords   = []string{"plan", "multi-step", "decompose", "orchestrate", "architecture", "benchmark", "implement end-to-end", "design api", "refactor module", "evaluate", "tests suite"}
)

// classifyHeuristic implements the deterministic §4.8 rule ladder. Order
// matters: codegen and retrieval signals are checked before length-based
// complexity, and Simple is checked last so an empty or trivial prompt
// never masks an explicit codegen/retrieval keyword.
func classifyHeuristic(input string) TaskClass {
	lower := strings.ToLower(input)

	if strings.Contains(input, "```") || strings.Contains(lower, "diff --git") || containsAny(lower, codegenKeywords) {
		return TaskCodegenHeavy
	}
	if containsAny(lower, retrievalKeywords) {
		return TaskRetrievalHeavy
	}
	if containsAny(lower, complexKeywords) || len(input) > 1200 {
		return TaskComplex
	}
	if len(input) < 120 {
		return TaskSimple
	}
	return TaskStandard
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Route classifies input and selects a model (§4.8). The LLM classifier
// step, when configured, overrides the heuristic result; any failure
// (ctx cancelled, classifier returns ok=false) falls back to the
// heuristic, so Route never blocks indefinitely on a misbehaving
// classifier model.
func (r *Router) Route(ctx context.Context, input string) RouteDecision {
	class := classifyHeuristic(input)

	if r.classifier != nil && r.config.LLMClassifierModel != "" {
		if llmClass, ok := r.classifier.Classify(ctx, input); ok {
			class = llmClass
		}
	}

	model := r.config.ModelsByClass[class]
	if model == "" {
		model = r.config.DefaultModel
	}

	return RouteDecision{Class: class, Model: model}
}

// BudgetFor returns the generation budget configured for class, or the
// zero Budget if none is configured.
func (r *Router) BudgetFor(class TaskClass) Budget {
	return r.config.BudgetsByClass[class]
}
