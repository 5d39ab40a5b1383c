// Package policy implements the Tool-Policy Store (C5): a per-tool
// Allow/Prompt/Deny decision, optional constraints, persisted as JSON at
// <workspace>/.vtcode/tool-policy.json.
package policy

// Policy is the standing decision for a tool.
type Policy string

const (
	Allow  Policy = "allow"
	Prompt Policy = "prompt"
	Deny   Policy = "deny"
)

// ParsePolicy parses a policy string from config, defaulting to Prompt
// for anything unrecognized.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case Allow, Prompt, Deny:
		return Policy(s)
	default:
		return Prompt
	}
}

// Constraints are optional per-tool caps injected into a tool call's
// arguments before execution (§4.6 step 4).
type Constraints struct {
	MaxItemsPerCall     *int     `json:"max_items_per_call,omitempty"`
	MaxResultsPerCall   *int     `json:"max_results_per_call,omitempty"`
	MaxBytesPerRead     *int64   `json:"max_bytes_per_read,omitempty"`
	AllowedModes        []string `json:"allowed_modes,omitempty"`
	DefaultResponseFmt  string   `json:"default_response_format,omitempty"`
}

// Decision is the outcome of an interactive confirmation prompt.
type Decision string

const (
	ApproveOnce   Decision = "approve_once"
	ApproveAlways Decision = "approve_always"
	DenyOnce      Decision = "deny_once"
	DenyAlways    Decision = "deny_always"
)

func (d Decision) String() string { return string(d) }

// Approved reports whether the decision permits this call to proceed.
func (d Decision) Approved() bool {
	return d == ApproveOnce || d == ApproveAlways
}

// Persists reports whether the decision should be written back to the store.
func (d Decision) Persists() bool {
	return d == ApproveAlways || d == DenyAlways
}

// Confirmer is the injected interface the registry calls when a tool's
// policy is Prompt. Implementations present the tool name and an
// argument summary to the human and return their decision.
type Confirmer interface {
	Confirm(toolName string, argsSummary string) (Decision, error)
}

// ConfirmerFunc adapts a plain function to Confirmer.
type ConfirmerFunc func(toolName, argsSummary string) (Decision, error)

func (f ConfirmerFunc) Confirm(toolName, argsSummary string) (Decision, error) {
	return f(toolName, argsSummary)
}

// AutoApprove is a deterministic Confirmer for tests and --skip-confirmations.
func AutoApprove() Confirmer {
	return ConfirmerFunc(func(string, string) (Decision, error) { return ApproveOnce, nil })
}

// AutoDeny is a deterministic Confirmer for tests.
func AutoDeny() Confirmer {
	return ConfirmerFunc(func(string, string) (Decision, error) { return DenyOnce, nil })
}

// defaultAllowReadOnly lists the tools given Allow by default on first run.
var defaultAllowReadOnly = map[string]bool{
	"list_files":    true,
	"read_file":     true,
	"grep_search":   true,
	"simple_search": true,
}
