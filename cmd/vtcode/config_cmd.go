package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vinhnx/vtcode/pkg/config"
	"github.com/vinhnx/vtcode/pkg/trajectory"
)

// runInit writes a default vtcode.toml into the workspace, the way the
// teacher's own `config init` seeds a fresh checkout.
func runInit(opts startupOptions, args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing vtcode.toml")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	workspace, err := filepath.Abs(opts.workspace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitConfigError
	}
	path := filepath.Join(workspace, "vtcode.toml")
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "error: %s already exists (use --force to overwrite)\n", path)
		return exitConfigError
	}

	if err := os.WriteFile(path, []byte(encodeTOML(config.Default())), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", path, err)
		return exitFailure
	}
	fmt.Printf("wrote %s\n", path)
	return exitOK
}

// runConfig prints the effective configuration as TOML, or writes it to
// --output if given.
func runConfig(opts startupOptions, args []string) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	output := fs.String("output", "", "write the effective configuration to this path instead of stdout")
	asJSON := fs.Bool("json", false, "print as JSON instead of TOML")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	cfg := config.Default()
	cfg.ApplyEnv()
	if opts.model != "" {
		cfg.Agent.DefaultModel = opts.model
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitConfigError
	}

	var rendered string
	if *asJSON {
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitFailure
		}
		rendered = string(b) + "\n"
	} else {
		rendered = encodeTOML(cfg)
	}

	if *output == "" {
		fmt.Print(rendered)
		return exitOK
	}
	if err := os.WriteFile(*output, []byte(rendered), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", *output, err)
		return exitFailure
	}
	fmt.Printf("wrote %s\n", *output)
	return exitOK
}

// runTrajectory prints a compact summary of the persisted trajectory
// log: the most recent --top routing decisions and tool outcomes, printed
// in file order (oldest first).
func runTrajectory(opts startupOptions, args []string) int {
	fs := flag.NewFlagSet("trajectory", flag.ContinueOnError)
	file := fs.String("file", "", "trajectory log path (default <workspace>/logs/trajectory.jsonl)")
	top := fs.Int("top", 20, "number of most recent records to show")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	path := *file
	if path == "" {
		workspace, err := filepath.Abs(opts.workspace)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitConfigError
		}
		path = filepath.Join(workspace, "logs", "trajectory.jsonl")
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitFailure
	}
	defer f.Close()

	var records []trajectory.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		var rec trajectory.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitFailure
	}

	if len(records) > *top {
		records = records[len(records)-*top:]
	}
	for _, rec := range records {
		switch rec.Kind {
		case "route":
			fmt.Printf("turn %d  route    model=%s class=%s input=%q\n", rec.Turn, rec.SelectedModel, rec.Class, rec.InputPreview)
		case "tool":
			ok := rec.OK != nil && *rec.OK
			fmt.Printf("turn %d  tool     name=%s ok=%v\n", rec.Turn, rec.Name, ok)
		default:
			fmt.Printf("turn %d  %s\n", rec.Turn, rec.Kind)
		}
	}
	return exitOK
}

// encodeTOML renders cfg as the §6 TOML shape. TOML decoding is out of
// scope for this build, so this hand-rolled encoder only needs to cover
// the fixed Config shape, not arbitrary documents.
func encodeTOML(cfg *config.Config) string {
	var b []byte
	w := func(format string, args ...any) {
		b = append(b, []byte(fmt.Sprintf(format, args...))...)
	}

	w("[agent]\n")
	w("provider = %q\n", cfg.Agent.Provider)
	w("default_model = %q\n", cfg.Agent.DefaultModel)
	w("theme = %q\n", cfg.Agent.Theme)
	w("max_conversation_turns = %d\n", cfg.Agent.MaxConversationTurns)
	w("reasoning_effort = %q\n", cfg.Agent.ReasoningEffort)
	w("refine_prompts_enabled = %v\n", cfg.Agent.RefinePromptsEnabled)
	w("refine_prompts_model = %q\n", cfg.Agent.RefinePromptsModel)
	w("project_doc_max_bytes = %d\n\n", cfg.Agent.ProjectDocMaxBytes)

	w("[security]\n")
	w("human_in_the_loop = %v\n\n", cfg.Security.HumanInTheLoop)

	w("[tools]\n")
	w("default_policy = %q\n\n", cfg.Tools.DefaultPolicy)
	if len(cfg.Tools.Policies) > 0 {
		w("[tools.policies]\n")
		for _, name := range sortedPolicyKeys(cfg.Tools.Policies) {
			w("%s = %q\n", name, cfg.Tools.Policies[name])
		}
		w("\n")
	}

	w("[commands]\n")
	w("allow_list = %s\n", tomlStringArray(cfg.Commands.AllowList))
	w("deny_list = %s\n\n", tomlStringArray(cfg.Commands.DenyList))

	w("[pty]\n")
	w("enabled = %v\n", cfg.PTY.Enabled)
	w("default_rows = %d\n", cfg.PTY.DefaultRows)
	w("default_cols = %d\n", cfg.PTY.DefaultCols)
	w("max_sessions = %d\n", cfg.PTY.MaxSessions)
	w("command_timeout_seconds = %d\n\n", cfg.PTY.CommandTimeoutSecond)

	w("[router]\n")
	w("enabled = %v\n", cfg.Router.Enabled)
	w("heuristic_classification = %v\n", cfg.Router.HeuristicClassification)
	w("llm_router_model = %q\n\n", cfg.Router.LLMRouterModel)
	if len(cfg.Router.Models) > 0 {
		w("[router.models]\n")
		for _, class := range sortedModelKeys(cfg.Router.Models) {
			w("%s = %q\n", class, cfg.Router.Models[class])
		}
		w("\n")
	}
	for _, class := range sortedBudgetKeys(cfg.Router.Budgets) {
		budget := cfg.Router.Budgets[class]
		w("[router.budgets.%s]\n", class)
		w("max_tokens = %d\n", budget.MaxTokens)
		w("max_parallel_tools = %d\n", budget.MaxParallelTool)
		w("latency_ms_target = %d\n\n", budget.LatencyMSTarget)
	}

	return string(b)
}

func sortedPolicyKeys(m map[string]config.ToolPolicy) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedModelKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedBudgetKeys(m map[string]config.RouteBudget) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func tomlStringArray(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	out := "["
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", v)
	}
	return out + "]"
}
