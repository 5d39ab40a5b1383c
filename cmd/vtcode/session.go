package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/term"

	"github.com/vinhnx/vtcode/pkg/agent"
	"github.com/vinhnx/vtcode/pkg/cache"
	"github.com/vinhnx/vtcode/pkg/config"
	"github.com/vinhnx/vtcode/pkg/conversation"
	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/llm"
	"github.com/vinhnx/vtcode/pkg/pathguard"
	"github.com/vinhnx/vtcode/pkg/plan"
	"github.com/vinhnx/vtcode/pkg/policy"
	"github.com/vinhnx/vtcode/pkg/safety"
	"github.com/vinhnx/vtcode/pkg/sandbox"
	"github.com/vinhnx/vtcode/pkg/tool"
	"github.com/vinhnx/vtcode/pkg/tool/builtin"
	"github.com/vinhnx/vtcode/pkg/trajectory"
)

// session is the process's single live workspace session: everything a
// subcommand needs to either run a turn or inspect persisted state.
type session struct {
	workspace string
	cfg       *config.Config
	guard     *pathguard.Guard
	registry  *tool.Registry
	policy    *policy.Store
	loop      *agent.Loop
	conv      *conversation.Conversation
}

// toolBuiltinNames lists every tool this build registers, in registration
// order, so the policy store's "known tools" set and the LLM-visible
// declaration set agree.
var toolBuiltinNames = []string{
	"read_file", "write_file", "edit_file", "list_files",
	"grep_search", "simple_search", "ast_grep_search",
	"find_symbol", "explain_context", "run_terminal_cmd", "apply_patch",
	"update_plan",
}

// newSession builds every §4 component for one run of the CLI: path
// guard, cache, safety classifier, sandbox executor, the tool registry
// with every built-in registered, the policy store, the trajectory
// logger, the provider factory and router, and the run-loop tying them
// together. The workspace directory must already exist.
func newSession(opts startupOptions) (*session, error) {
	workspace, err := filepath.Abs(opts.workspace)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInvalidParameters, "resolve workspace", err)
	}

	cfg, err := loadConfig(workspace)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if opts.model != "" {
		cfg.Agent.DefaultModel = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, withExitCode(vterrors.Wrap(vterrors.KindInvalidParameters, "invalid configuration", err), exitConfigError)
	}

	guard, err := pathguard.New(workspace, nil)
	if err != nil {
		return nil, withExitCode(err, exitConfigError)
	}
	fileCache := cache.New(cache.WithTTL(0), cache.WithCapacityBytes(64<<20))

	classifier := safety.New(safety.Lists{
		AllowList:  cfg.Commands.AllowList,
		DenyList:   cfg.Commands.DenyList,
		AllowGlob:  cfg.Commands.AllowGlob,
		DenyGlob:   cfg.Commands.DenyGlob,
		AllowRegex: cfg.Commands.AllowRegex,
		DenyRegex:  cfg.Commands.DenyRegex,
	})
	executor := sandbox.New()

	policyPath := filepath.Join(workspace, ".vtcode", "tool-policy.json")
	policyStore, err := policy.Open(policyPath, toolBuiltinNames)
	if err != nil {
		return nil, withExitCode(vterrors.Wrap(vterrors.KindInternal, "open tool policy store", err), exitConfigError)
	}
	for name, p := range cfg.Tools.Policies {
		_ = policyStore.SetPolicy(name, policy.ParsePolicy(string(p)))
	}

	var confirmer policy.Confirmer
	if opts.skipConfirmations || !cfg.Security.HumanInTheLoop {
		confirmer = policy.AutoApprove()
	} else {
		confirmer = stdinConfirmer{}
	}

	trajectoryPath := filepath.Join(workspace, "logs", "trajectory.jsonl")
	trajectoryLogger, err := trajectory.New(trajectoryPath, true)
	if err != nil {
		return nil, withExitCode(vterrors.Wrap(vterrors.KindInternal, "open trajectory log", err), exitConfigError)
	}

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tracerProvider)

	registry := tool.NewRegistry(tool.Config{
		PolicyStore:       policyStore,
		Confirmer:         confirmer,
		Trajectory:        registryTrajectoryAdapter{trajectoryLogger},
		Metrics:           prometheus.NewRegistry(),
		Tracer:            tracerProvider.Tracer("vtcode/tool"),
		ValidationRules:   pathValidationRules(workspace),
		OnValidationError: logValidationError,
	})
	registerBuiltinTools(registry, guard, fileCache, classifier, executor)

	planManager := plan.NewManager()
	planTool := plan.NewUpdatePlanTool(planManager)
	registry.Register(tool.Registration{
		Definition: tool.Definition{
			Name:        planTool.Name(),
			Description: planTool.Description(),
			Parameters:  planTool.Parameters(),
		},
		Capability: tool.CapabilityEditing,
		LLMVisible: true,
		Tool:       planTool,
	})

	factory := llm.NewFactory()
	providerConfigs := map[string]llm.ProviderConfig{}
	for _, name := range []string{"openai", "anthropic", "gemini", "xai", "openrouter"} {
		envVar := opts.apiKeyEnv
		if envVar == "" {
			envVar = config.APIKeyEnvVar(name)
		}
		providerConfigs[name] = llm.ProviderConfig{APIKey: os.Getenv(envVar)}
	}

	router := llm.NewRouter(llm.RouterConfig{
		DefaultModel:            cfg.Agent.DefaultModel,
		ModelsByClass:           modelsByClassFrom(cfg.Router.Models),
		BudgetsByClass:          budgetsByClassFrom(cfg.Router.Budgets),
		LLMClassifierModel:      cfg.Router.LLMRouterModel,
		HeuristicClassification: cfg.Router.HeuristicClassification,
	}, nil)

	conv := conversation.New(ulid.Make().String())
	conv.AddSystemMessage(systemPrompt(workspace))

	var refiner agent.PromptRefiner
	if cfg.Agent.RefinePromptsEnabled {
		refiner = agent.RefinerStub{}
	}

	loop := agent.New(agent.Config{
		MaxConversationTurns: cfg.Agent.MaxConversationTurns,
		RefinePromptsEnabled: cfg.Agent.RefinePromptsEnabled,
	}, conv, factory, providerConfigs, router, registry, trajectoryLogger, planManager, refiner, newlineRenderer{verbose: opts.verbose})

	return &session{
		workspace: workspace,
		cfg:       cfg,
		guard:     guard,
		registry:  registry,
		policy:    policyStore,
		loop:      loop,
		conv:      conv,
	}, nil
}

func loadConfig(workspace string) (*config.Config, error) {
	// TOML decoding is out of scope; every workspace runs with the
	// built-in defaults, optionally overridden by environment variables
	// and CLI flags. `vtcode.toml` is written by `init` as a record of
	// that effective configuration, not read back by this process.
	_ = workspace
	return config.Default(), nil
}

func modelsByClassFrom(models map[string]string) map[llm.TaskClass]string {
	out := make(map[llm.TaskClass]string, len(models))
	for class, model := range models {
		out[llm.TaskClass(class)] = model
	}
	return out
}

func budgetsByClassFrom(budgets map[string]config.RouteBudget) map[llm.TaskClass]llm.Budget {
	out := make(map[llm.TaskClass]llm.Budget, len(budgets))
	for class, b := range budgets {
		out[llm.TaskClass(class)] = llm.Budget{
			MaxTokens:        b.MaxTokens,
			MaxParallelTools: b.MaxParallelTool,
			LatencyTargetMS:  b.LatencyMSTarget,
		}
	}
	return out
}

// pathToolsWithPathParam lists the registered tools that get a "path"
// rule in pathValidationRules. apply_patch takes no "path" argument (its
// target paths live inside the patch text), so its rule never fires.
var pathToolsWithPathParam = []string{
	"read_file", "write_file", "edit_file", "list_files",
	"grep_search", "simple_search", "ast_grep_search",
	"find_symbol", "explain_context", "apply_patch",
}

// pathValidationRules builds the Validation middleware rules that reject
// a "path" argument escaping workspace before the tool ever runs, as a
// second line of defense alongside pathguard's own resolution checks.
func pathValidationRules(workspace string) []tool.ValidationRule {
	rules := make([]tool.ValidationRule, 0, len(pathToolsWithPathParam)+1)
	for _, name := range pathToolsWithPathParam {
		rules = append(rules, tool.ValidationRule{
			Tool:     name,
			Param:    "path",
			Validate: tool.ValidatePath(workspace),
		})
	}
	rules = append(rules, tool.ValidationRule{
		Tool:     "run_terminal_cmd",
		Param:    "command",
		Validate: tool.ValidateNonEmpty(),
	})
	return rules
}

func logValidationError(toolName, param, msg string) {
	fmt.Fprintf(os.Stderr, "validation: %s.%s: %s\n", toolName, param, msg)
}

func registerBuiltinTools(registry *tool.Registry, guard *pathguard.Guard, fileCache *cache.Cache, classifier *safety.Classifier, executor *sandbox.Executor) {
	searcher := builtin.NewDefaultStructuralSearcher()

	register := func(t tool.Tool, capability tool.CapabilityLevel, llmVisible bool) {
		registry.Register(tool.Registration{
			Definition: tool.Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()},
			Capability: capability,
			LLMVisible: llmVisible,
			Tool:       t,
		})
	}

	register(builtin.NewReadFileTool(guard, fileCache), tool.CapabilityFileReading, true)
	register(builtin.NewWriteFileTool(guard, fileCache), tool.CapabilityEditing, true)
	register(builtin.NewEditFileTool(guard, fileCache), tool.CapabilityEditing, true)
	register(builtin.NewListFilesTool(guard), tool.CapabilityFileListing, true)
	register(builtin.NewGrepSearchTool(guard), tool.CapabilityCodeSearch, true)
	register(builtin.NewSimpleSearchTool(guard), tool.CapabilityCodeSearch, true)
	register(builtin.NewAstGrepSearchTool(guard, searcher), tool.CapabilityCodeSearch, true)
	register(builtin.NewFindSymbolTool(guard, searcher), tool.CapabilityCodeSearch, true)
	register(builtin.NewExplainContextTool(guard, searcher), tool.CapabilityCodeSearch, true)
	register(builtin.NewShellTool(guard, classifier, executor), tool.CapabilityBash, true)
	// apply_patch is not LLM-visible by default (§4.4: assistants use
	// edit_file for clarity); it stays registered so a human operator or
	// a future batch-patch path can still dispatch it through the
	// registry's policy/middleware pipeline.
	register(builtin.NewApplyPatchTool(guard, fileCache), tool.CapabilityEditing, false)
}

// registryTrajectoryAdapter narrows *trajectory.Logger to the single
// method pkg/tool's Registry needs, matching its locally-declared
// TrajectoryLogger interface.
type registryTrajectoryAdapter struct {
	logger *trajectory.Logger
}

func (a registryTrajectoryAdapter) LogToolCall(turn int, name string, args map[string]any, ok bool) {
	a.logger.LogToolCall(turn, name, args, ok)
}

func systemPrompt(workspace string) string {
	return fmt.Sprintf("You are vtcode, a terminal coding agent operating in %s. Use the available tools to read, search, and modify files; ask before destructive actions unless explicitly told otherwise.", workspace)
}

// stdinIsTerminal reports whether stdin is attached to a terminal; a
// non-interactive stdin (piped input, a CI job) can never answer a
// confirmation prompt, so the confirmer denies outright instead of
// blocking on a read that will never complete.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// stdinConfirmer presents each Prompt-policy tool call on stderr and
// reads a single-line decision from stdin, matching §4.5's four-way
// ApproveOnce/ApproveAlways/DenyOnce/DenyAlways contract.
type stdinConfirmer struct{}

func (stdinConfirmer) Confirm(toolName, argsSummary string) (policy.Decision, error) {
	if !stdinIsTerminal() {
		return policy.DenyOnce, nil
	}
	fmt.Fprintf(os.Stderr, "\n%s wants to run %s with: %s\n", promptStyle.Render("vtcode"), toolName, argsSummary)
	fmt.Fprint(os.Stderr, "Allow? [y]es once / [a]lways / [n]o once / [d]eny always: ")
	var line string
	if _, err := fmt.Scanln(&line); err != nil {
		return policy.DenyOnce, nil
	}
	switch line {
	case "a", "always", "A":
		return policy.ApproveAlways, nil
	case "d", "deny", "D":
		return policy.DenyAlways, nil
	case "n", "no", "N":
		return policy.DenyOnce, nil
	default:
		return policy.ApproveOnce, nil
	}
}

var (
	promptStyle = lipgloss.NewStyle().Bold(true)
	toolStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

// newlineRenderer prints the run-loop's output to stdout as each chunk
// arrives and logs tool activity to stderr when verbose is set.
type newlineRenderer struct {
	verbose bool
}

func (r newlineRenderer) RenderAssistantChunk(delta string) {
	fmt.Print(delta)
}

func (r newlineRenderer) RenderAssistantFinal(content string) {
	fmt.Println()
}

func (r newlineRenderer) RenderToolCall(name string, args map[string]any) {
	if r.verbose {
		fmt.Fprintln(os.Stderr, toolStyle.Render(fmt.Sprintf("[tool] %s %v", name, args)))
	}
}

func (r newlineRenderer) RenderToolResult(name string, result *builtin.Result) {
	if r.verbose {
		fmt.Fprintln(os.Stderr, toolStyle.Render(fmt.Sprintf("[tool] %s -> success=%v", name, result != nil && result.Success)))
	}
}

func (r newlineRenderer) RenderError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("error: %v", err)))
}
