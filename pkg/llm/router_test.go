package llm

import (
	"context"
	"strings"
	"testing"
)

func TestClassifyHeuristic_CodegenSignalsTakePriority(t *testing.T) {
	cases := []string{
		"please apply_patch to fix this",
		"```go\nfunc main() {}\n```",
		"can you edit_file to add a guard clause",
	}
	for _, input := range cases {
		if got := classifyHeuristic(input); got != TaskCodegenHeavy {
			t.Errorf("classifyHeuristic(%q) = %q, want codegen_heavy", input, got)
		}
	}
}

func TestClassifyHeuristic_RetrievalSignals(t *testing.T) {
	if got := classifyHeuristic("search the web for the latest docs"); got != TaskRetrievalHeavy {
		t.Errorf("got %q, want retrieval_heavy", got)
	}
}

func TestClassifyHeuristic_ComplexSignalsOrLength(t *testing.T) {
	if got := classifyHeuristic("please plan and orchestrate a multi-step migration"); got != TaskComplex {
		t.Errorf("got %q, want complex", got)
	}
	if got := classifyHeuristic(strings.Repeat("a", 1300)); got != TaskComplex {
		t.Errorf("long input: got %q, want complex", got)
	}
}

func TestClassifyHeuristic_SimpleForShortInput(t *testing.T) {
	if got := classifyHeuristic("hi"); got != TaskSimple {
		t.Errorf("got %q, want simple", got)
	}
}

func TestClassifyHeuristic_StandardForMidLengthPlainInput(t *testing.T) {
	input := strings.Repeat("word ", 30) // > 120 chars, no special keywords, < 1200 chars
	if got := classifyHeuristic(input); got != TaskStandard {
		t.Errorf("got %q, want standard", got)
	}
}

func TestRoute_PicksModelByClass(t *testing.T) {
	router := NewRouter(RouterConfig{
		DefaultModel: "default-model",
		ModelsByClass: map[TaskClass]string{
			TaskSimple: "simple-model",
		},
	}, nil)

	decision := router.Route(context.Background(), "hi")
	if decision.Class != TaskSimple {
		t.Fatalf("class = %q, want simple", decision.Class)
	}
	if decision.Model != "simple-model" {
		t.Fatalf("model = %q, want simple-model", decision.Model)
	}
}

func TestRoute_FallsBackToDefaultModelWhenClassUnmapped(t *testing.T) {
	router := NewRouter(RouterConfig{DefaultModel: "default-model"}, nil)

	decision := router.Route(context.Background(), "hi")
	if decision.Model != "default-model" {
		t.Fatalf("model = %q, want default-model", decision.Model)
	}
}

type stubClassifier struct {
	class TaskClass
	ok    bool
}

func (s stubClassifier) Classify(context.Context, string) (TaskClass, bool) {
	return s.class, s.ok
}

func TestRoute_LLMClassifierOverridesHeuristicWhenConfigured(t *testing.T) {
	router := NewRouter(RouterConfig{
		DefaultModel:       "default-model",
		LLMClassifierModel: "router-model",
		ModelsByClass: map[TaskClass]string{
			TaskComplex: "complex-model",
		},
	}, stubClassifier{class: TaskComplex, ok: true})

	decision := router.Route(context.Background(), "hi") // heuristic would say simple
	if decision.Class != TaskComplex {
		t.Fatalf("class = %q, want complex (classifier should override heuristic)", decision.Class)
	}
	if decision.Model != "complex-model" {
		t.Fatalf("model = %q, want complex-model", decision.Model)
	}
}

func TestRoute_FallsBackToHeuristicWhenClassifierDeclines(t *testing.T) {
	router := NewRouter(RouterConfig{
		DefaultModel:       "default-model",
		LLMClassifierModel: "router-model",
	}, stubClassifier{ok: false})

	decision := router.Route(context.Background(), "hi")
	if decision.Class != TaskSimple {
		t.Fatalf("class = %q, want simple (heuristic fallback)", decision.Class)
	}
}

func TestRoute_IgnoresClassifierWhenNoLLMClassifierModelConfigured(t *testing.T) {
	router := NewRouter(RouterConfig{
		DefaultModel: "default-model",
	}, stubClassifier{class: TaskComplex, ok: true})

	decision := router.Route(context.Background(), "hi")
	if decision.Class != TaskSimple {
		t.Fatalf("class = %q, want simple (classifier configured but LLMClassifierModel empty)", decision.Class)
	}
}

func TestBudgetFor_ReturnsZeroValueForUnconfiguredClass(t *testing.T) {
	router := NewRouter(RouterConfig{}, nil)

	budget := router.BudgetFor(TaskComplex)
	if budget != (Budget{}) {
		t.Fatalf("budget = %+v, want zero value", budget)
	}
}

func TestBudgetFor_ReturnsConfiguredBudget(t *testing.T) {
	want := Budget{MaxTokens: 8000, MaxParallelTools: 2, LatencyTargetMS: 6000}
	router := NewRouter(RouterConfig{
		BudgetsByClass: map[TaskClass]Budget{TaskStandard: want},
	}, nil)

	if got := router.BudgetFor(TaskStandard); got != want {
		t.Fatalf("budget = %+v, want %+v", got, want)
	}
}
