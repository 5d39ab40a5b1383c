package builtin

import (
	"context"
	"strings"
	"time"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/pathguard"
	"github.com/vinhnx/vtcode/pkg/safety"
	"github.com/vinhnx/vtcode/pkg/sandbox"
)

// ShellTool implements run_terminal_cmd/bash (§4.4): argv validated by the
// command safety filter, working directory resolved by the path guard,
// executed by the sandbox in terminal, pty, or streaming mode.
type ShellTool struct {
	guard      *pathguard.Guard
	classifier *safety.Classifier
	executor   *sandbox.Executor
}

// NewShellTool constructs a run_terminal_cmd/bash tool.
func NewShellTool(guard *pathguard.Guard, classifier *safety.Classifier, executor *sandbox.Executor) *ShellTool {
	return &ShellTool{guard: guard, classifier: classifier, executor: executor}
}

func (t *ShellTool) Name() string { return "run_terminal_cmd" }
func (t *ShellTool) Description() string {
	return "Run a validated shell command in the workspace, in terminal, pty, or streaming mode."
}

func (t *ShellTool) SupportedModes() []string {
	return []string{string(sandbox.ModeTerminal), string(sandbox.ModePty), string(sandbox.ModeStreaming)}
}

func (t *ShellTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"command":      {Type: "array", Description: "Command argv, e.g. [\"go\", \"test\", \"./...\"].", Items: &PropertySchema{Type: "string"}},
			"working_dir":  {Type: "string", Description: "Working directory, relative to the workspace root.", Default: "."},
			"timeout_secs": {Type: "integer", Description: "Timeout in seconds.", Default: 30},
			"mode":         {Type: "string", Description: "terminal | pty | streaming", Default: "terminal", Enum: []string{"terminal", "pty", "streaming"}},
		},
		Required: []string{"command"},
	}
}

func (t *ShellTool) Execute(params map[string]any) (*Result, error) {
	return t.ExecuteMode(string(sandbox.ModeTerminal), params)
}

func (t *ShellTool) ExecuteMode(mode string, params map[string]any) (*Result, error) {
	argv, err := argvParam(params["command"])
	if err != nil {
		return nil, err
	}

	decision := t.classifier.Classify(argv, strings.Join(argv, " "))
	if !decision.Allowed {
		return nil, vterrors.New(vterrors.KindPermissionDenied, "command rejected by safety filter: "+decision.Reason)
	}

	workingDir, _ := params["working_dir"].(string)
	if workingDir == "" {
		workingDir = "."
	}
	resolvedDir, err := t.guard.Resolve(workingDir)
	if err != nil {
		return nil, err
	}

	timeoutSecs := intParam(params["timeout_secs"], 0)
	timeout := sandbox.DefaultTimeout
	if timeoutSecs > 0 {
		timeout = time.Duration(timeoutSecs) * time.Second
	}

	if paramMode, _ := params["mode"].(string); paramMode != "" {
		mode = paramMode
	}
	if mode == "" {
		mode = string(sandbox.ModeTerminal)
	}

	result, err := t.executor.Run(context.Background(), argv, sandbox.Options{
		WorkDir: resolvedDir,
		Timeout: timeout,
		Mode:    sandbox.Mode(mode),
	})
	if err != nil {
		return nil, err
	}

	return Ok(map[string]any{
		"success":    result.Success,
		"exit_code":  result.ExitCode,
		"stdout":     result.Stdout,
		"stderr":     result.Stderr,
		"mode":       string(result.Mode),
		"used_shell": result.UsedShell,
	}), nil
}

func argvParam(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "command must be a non-empty argv array")
	}
	argv := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, vterrors.New(vterrors.KindInvalidParameters, "every command element must be a non-empty string")
		}
		argv = append(argv, s)
	}
	return argv, nil
}
