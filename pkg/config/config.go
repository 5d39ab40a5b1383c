// Package config defines the typed configuration record for a workspace:
// every vtcode.toml section (§6), plus Default() and ApplyEnv(), which
// overlay the environment variables the run-loop and providers read.
// There is no TOML decoder here: the on-disk format is out of scope, but
// the shape a loader would populate is fixed by this package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ToolPolicy is one of the three dispositions a tool call can resolve to.
type ToolPolicy string

const (
	PolicyAllow  ToolPolicy = "allow"
	PolicyPrompt ToolPolicy = "prompt"
	PolicyDeny   ToolPolicy = "deny"
)

// Config is the full workspace configuration ([agent]/[security]/[tools]/
// [commands]/[pty]/[router]).
type Config struct {
	Agent    AgentConfig    `toml:"agent"`
	Security SecurityConfig `toml:"security"`
	Tools    ToolsConfig    `toml:"tools"`
	Commands CommandsConfig `toml:"commands"`
	PTY      PTYConfig      `toml:"pty"`
	Router   RouterConfig   `toml:"router"`
}

// AgentConfig is [agent].
type AgentConfig struct {
	Provider              string `toml:"provider"`
	DefaultModel          string `toml:"default_model"`
	Theme                 string `toml:"theme"`
	MaxConversationTurns  int    `toml:"max_conversation_turns"`
	ReasoningEffort       string `toml:"reasoning_effort"`
	RefinePromptsEnabled  bool   `toml:"refine_prompts_enabled"`
	RefinePromptsModel    string `toml:"refine_prompts_model"`
	ProjectDocMaxBytes    int    `toml:"project_doc_max_bytes"`
}

// SecurityConfig is [security].
type SecurityConfig struct {
	HumanInTheLoop bool `toml:"human_in_the_loop"`
}

// ToolConstraints is one `[tools.<name>]` sub-table.
type ToolConstraints struct {
	MaxItemsPerCall       int      `toml:"max_items_per_call"`
	MaxResultsPerCall     int      `toml:"max_results_per_call"`
	MaxBytesPerRead       int      `toml:"max_bytes_per_read"`
	AllowedModes          []string `toml:"allowed_modes"`
	DefaultResponseFormat string   `toml:"default_response_format"`
}

// ToolsConfig is [tools].
type ToolsConfig struct {
	DefaultPolicy ToolPolicy                 `toml:"default_policy"`
	Policies      map[string]ToolPolicy      `toml:"policies"`
	Constraints   map[string]ToolConstraints `toml:"constraints"`
}

// CommandsConfig is [commands]: shell command allow/deny surfaces consulted
// by the command safety filter.
type CommandsConfig struct {
	AllowList  []string `toml:"allow_list"`
	DenyList   []string `toml:"deny_list"`
	AllowGlob  []string `toml:"allow_glob"`
	DenyGlob   []string `toml:"deny_glob"`
	AllowRegex []string `toml:"allow_regex"`
	DenyRegex  []string `toml:"deny_regex"`
}

// PTYConfig is [pty].
type PTYConfig struct {
	Enabled              bool `toml:"enabled"`
	DefaultRows          int  `toml:"default_rows"`
	DefaultCols          int  `toml:"default_cols"`
	MaxSessions          int  `toml:"max_sessions"`
	CommandTimeoutSecond int  `toml:"command_timeout_seconds"`
}

// RouteBudget is one `[router.budgets.<class>]` entry.
type RouteBudget struct {
	MaxTokens       int `toml:"max_tokens"`
	MaxParallelTool int `toml:"max_parallel_tools"`
	LatencyMSTarget int `toml:"latency_ms_target"`
}

// RouterConfig is [router].
type RouterConfig struct {
	Enabled                 bool                   `toml:"enabled"`
	HeuristicClassification bool                   `toml:"heuristic_classification"`
	LLMRouterModel          string                 `toml:"llm_router_model"`
	Models                  map[string]string      `toml:"models"`
	Budgets                 map[string]RouteBudget `toml:"budgets"`
}

const (
	defaultModel               = "gpt-4o-mini"
	defaultProvider            = "openai"
	defaultMaxConversationTurn = 200
	defaultProjectDocMaxBytes  = 32 * 1024
	defaultPTYRows             = 24
	defaultPTYCols             = 80
	defaultPTYMaxSessions      = 4
	defaultPTYTimeoutSeconds   = 120
)

// Default returns the configuration a fresh workspace starts from, the
// same shape `init` would write out.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Provider:             defaultProvider,
			DefaultModel:         defaultModel,
			Theme:                "default",
			MaxConversationTurns: defaultMaxConversationTurn,
			ReasoningEffort:      "medium",
			RefinePromptsEnabled: false,
			RefinePromptsModel:   defaultModel,
			ProjectDocMaxBytes:   defaultProjectDocMaxBytes,
		},
		Security: SecurityConfig{
			HumanInTheLoop: true,
		},
		Tools: ToolsConfig{
			DefaultPolicy: PolicyPrompt,
			Policies: map[string]ToolPolicy{
				"read_file":  PolicyAllow,
				"list_files": PolicyAllow,
				"grep_search": PolicyAllow,
			},
			Constraints: map[string]ToolConstraints{},
		},
		Commands: CommandsConfig{
			AllowList: []string{"go test", "go build", "go vet", "go fmt"},
			DenyList:  []string{"rm -rf /", "shutdown", "reboot"},
		},
		PTY: PTYConfig{
			Enabled:              true,
			DefaultRows:          defaultPTYRows,
			DefaultCols:          defaultPTYCols,
			MaxSessions:          defaultPTYMaxSessions,
			CommandTimeoutSecond: defaultPTYTimeoutSeconds,
		},
		Router: RouterConfig{
			Enabled:                 true,
			HeuristicClassification: true,
			Models: map[string]string{
				"simple":           defaultModel,
				"standard":         defaultModel,
				"complex":          "gpt-4.1",
				"codegen_heavy":    "gpt-4.1",
				"retrieval_heavy":  defaultModel,
			},
			Budgets: map[string]RouteBudget{
				"simple":          {MaxTokens: 2000, MaxParallelTool: 1, LatencyMSTarget: 2000},
				"standard":        {MaxTokens: 8000, MaxParallelTool: 2, LatencyMSTarget: 6000},
				"complex":         {MaxTokens: 32000, MaxParallelTool: 4, LatencyMSTarget: 20000},
				"codegen_heavy":   {MaxTokens: 32000, MaxParallelTool: 4, LatencyMSTarget: 20000},
				"retrieval_heavy": {MaxTokens: 16000, MaxParallelTool: 4, LatencyMSTarget: 15000},
			},
		},
	}
}

// ApplyEnv overlays the §6 environment variables this process reads. API
// keys themselves live outside Config (read directly by the provider
// factory); ApplyEnv only covers variables that change Config's own
// fields.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("VTCODE_PROMPT_REFINER_STUB"); v != "" {
		c.Agent.RefinePromptsEnabled = true
		c.Agent.RefinePromptsModel = "stub"
	}
	if v := strings.TrimSpace(os.Getenv("VTAGENT_STREAMING_CHARS_PER_CHUNK")); v != "" {
		// Consumed directly by pkg/streaming; Config has no field for it,
		// so ApplyEnv leaves Config unchanged for this variable.
		if _, err := strconv.Atoi(v); err != nil {
			return
		}
	}
}

// Validate rejects a Config with an invalid enum value or out-of-range
// numeric field before the agent starts using it.
func (c *Config) Validate() error {
	switch c.Tools.DefaultPolicy {
	case PolicyAllow, PolicyPrompt, PolicyDeny:
	default:
		return fmt.Errorf("tools.default_policy: invalid value %q (must be allow, prompt, or deny)", c.Tools.DefaultPolicy)
	}
	for name, policy := range c.Tools.Policies {
		switch policy {
		case PolicyAllow, PolicyPrompt, PolicyDeny:
		default:
			return fmt.Errorf("tools.policies.%s: invalid value %q", name, policy)
		}
	}
	if c.Agent.MaxConversationTurns <= 0 {
		return fmt.Errorf("agent.max_conversation_turns must be > 0")
	}
	if c.Agent.ProjectDocMaxBytes < 0 {
		return fmt.Errorf("agent.project_doc_max_bytes must be >= 0")
	}
	if c.PTY.Enabled {
		if c.PTY.DefaultRows <= 0 || c.PTY.DefaultCols <= 0 {
			return fmt.Errorf("pty.default_rows and pty.default_cols must be > 0")
		}
		if c.PTY.MaxSessions <= 0 {
			return fmt.Errorf("pty.max_sessions must be > 0")
		}
		if c.PTY.CommandTimeoutSecond <= 0 {
			return fmt.Errorf("pty.command_timeout_seconds must be > 0")
		}
	}
	for class, budget := range c.Router.Budgets {
		if budget.MaxTokens <= 0 {
			return fmt.Errorf("router.budgets.%s.max_tokens must be > 0", class)
		}
		if budget.MaxParallelTool <= 0 {
			return fmt.Errorf("router.budgets.%s.max_parallel_tools must be > 0", class)
		}
	}
	return nil
}

// APIKeyEnvVar returns the environment variable §6 names for provider's
// API key, or "" for an unrecognized provider.
func APIKeyEnvVar(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini", "google":
		return "GEMINI_API_KEY"
	case "xai":
		return "XAI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
