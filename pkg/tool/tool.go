// Package tool defines the Tool interface, the LLM-visible declaration
// shape, and the Registry (C6) that validates, polices, dispatches, and
// normalizes every tool call.
package tool

import (
	"encoding/json"

	"github.com/vinhnx/vtcode/pkg/tool/builtin"
)

// CapabilityLevel classifies a tool for visibility filtering and for
// gating parallel execution (§5: only FileListing/FileReading/CodeSearch
// tools may run concurrently).
type CapabilityLevel string

const (
	CapabilityFileListing CapabilityLevel = "file_listing"
	CapabilityFileReading CapabilityLevel = "file_reading"
	CapabilityCodeSearch  CapabilityLevel = "code_search"
	CapabilityEditing     CapabilityLevel = "editing"
	CapabilityBash        CapabilityLevel = "bash"
)

// ReadOnly reports whether tools of this capability level may run in a
// parallel batch.
func (c CapabilityLevel) ReadOnly() bool {
	switch c {
	case CapabilityFileListing, CapabilityFileReading, CapabilityCodeSearch:
		return true
	default:
		return false
	}
}

// Tool is the interface every built-in tool implements. validate_args is
// folded into Execute: implementations validate before acting and return
// an *errors.AgentError of KindInvalidParameters on bad input, matching
// the registry's generic schema check as a second line of defense.
type Tool interface {
	Name() string
	Description() string
	Parameters() builtin.ParameterSchema
	Execute(params map[string]any) (*builtin.Result, error)
}

// ModalTool is implemented by tools exposing more than one execution
// mode (currently only run_terminal_cmd/bash).
type ModalTool interface {
	Tool
	SupportedModes() []string
	ExecuteMode(mode string, params map[string]any) (*builtin.Result, error)
}

// Definition is the immutable, LLM-visible description of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  builtin.ParameterSchema
}

// ToOpenAIFunction converts a tool declaration to the OpenAI-family
// function-calling wire shape; Anthropic/Gemini providers adapt it
// further (see pkg/llm).
func ToOpenAIFunction(d Definition) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  d.Parameters,
		},
	}
}

// ToJSON serializes a tool result to plain JSON.
func ToJSON(r *builtin.Result) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromJSON parses a tool result previously serialized with ToJSON.
func FromJSON(s string) (*builtin.Result, error) {
	var result builtin.Result
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
