package config_test

import (
	"testing"

	"github.com/vinhnx/vtcode/pkg/config"
)

func TestDefault_PassesValidate(t *testing.T) {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefault_PopulatesCoreFields(t *testing.T) {
	cfg := config.Default()

	if cfg.Agent.DefaultModel == "" {
		t.Fatalf("default model should be populated")
	}
	if cfg.Tools.DefaultPolicy == "" {
		t.Fatalf("tools.default_policy should be populated")
	}
	if len(cfg.Router.Budgets) == 0 {
		t.Fatalf("router.budgets should be populated for every task class")
	}
}

func TestValidate_RejectsUnknownDefaultPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.DefaultPolicy = config.ToolPolicy("sometimes")

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown default_policy")
	}
}

func TestValidate_RejectsUnknownPerToolPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Policies["run_terminal_command"] = config.ToolPolicy("maybe")

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown per-tool policy")
	}
}

func TestValidate_RejectsZeroMaxConversationTurns(t *testing.T) {
	cfg := config.Default()
	cfg.Agent.MaxConversationTurns = 0

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for max_conversation_turns=0")
	}
}

func TestValidate_RejectsInvalidPTYDimensionsWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.PTY.Enabled = true
	cfg.PTY.DefaultRows = 0

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for pty.default_rows=0")
	}
}

func TestValidate_IgnoresPTYDimensionsWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.PTY.Enabled = false
	cfg.PTY.DefaultRows = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("pty dimensions should not be checked while disabled: %v", err)
	}
}

func TestValidate_RejectsZeroRouterBudget(t *testing.T) {
	cfg := config.Default()
	cfg.Router.Budgets["simple"] = config.RouteBudget{MaxTokens: 0, MaxParallelTool: 1}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for router budget with max_tokens=0")
	}
}

func TestApplyEnv_PromptRefinerStubEnablesRefinement(t *testing.T) {
	t.Setenv("VTCODE_PROMPT_REFINER_STUB", "1")
	cfg := config.Default()

	cfg.ApplyEnv()

	if !cfg.Agent.RefinePromptsEnabled {
		t.Fatalf("expected refine_prompts_enabled to be set by VTCODE_PROMPT_REFINER_STUB")
	}
}

func TestAPIKeyEnvVar_KnownProviders(t *testing.T) {
	cases := map[string]string{
		"openai":     "OPENAI_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"gemini":     "GEMINI_API_KEY",
		"xai":        "XAI_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}
	for provider, want := range cases {
		if got := config.APIKeyEnvVar(provider); got != want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestAPIKeyEnvVar_UnknownProviderReturnsEmpty(t *testing.T) {
	if got := config.APIKeyEnvVar("made-up"); got != "" {
		t.Errorf("APIKeyEnvVar(unknown) = %q, want empty string", got)
	}
}
