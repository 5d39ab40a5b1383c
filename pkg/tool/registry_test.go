package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/policy"
	"github.com/vinhnx/vtcode/pkg/tool/builtin"
)

// stubTool is a minimal Tool used to exercise the registry's dispatch
// path without pulling in a real builtin implementation.
type stubTool struct {
	name   string
	result *builtin.Result
	err    error
	calls  int
}

func (s *stubTool) Name() string                           { return s.name }
func (s *stubTool) Description() string                    { return "stub tool" }
func (s *stubTool) Parameters() builtin.ParameterSchema     { return builtin.ParameterSchema{Type: "object"} }
func (s *stubTool) Execute(params map[string]any) (*builtin.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(Config{})
}

func TestRegistry_ExecuteTool_NotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.ExecuteTool(context.Background(), "nonexistent", nil)
	require.Error(t, err)
	require.Equal(t, vterrors.KindToolNotFound, vterrors.KindOf(err))
}

func TestRegistry_ExecuteTool_Success(t *testing.T) {
	r := newTestRegistry(t)
	st := &stubTool{name: "echo", result: builtin.Ok(map[string]any{"output": "hi"})}
	r.Register(Registration{
		Definition: Definition{Name: "echo"},
		Capability: CapabilityFileReading,
		LLMVisible: true,
		Tool:       st,
	})

	result, err := r.ExecuteTool(context.Background(), "echo", map[string]any{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, st.calls)
}

func TestRegistry_ExecuteTool_ToolErrorPropagates(t *testing.T) {
	r := newTestRegistry(t)
	st := &stubTool{name: "broken", err: errors.New("boom")}
	r.Register(Registration{
		Definition: Definition{Name: "broken"},
		Capability: CapabilityBash,
		LLMVisible: true,
		Tool:       st,
	})

	_, err := r.ExecuteTool(context.Background(), "broken", map[string]any{})
	require.Error(t, err)
}

func TestRegistry_ExecuteTool_MissingRequiredParameter(t *testing.T) {
	r := newTestRegistry(t)
	st := &stubTool{name: "needs_path", result: builtin.Ok(nil)}
	r.Register(Registration{
		Definition: Definition{
			Name: "needs_path",
			Parameters: builtin.ParameterSchema{
				Type:     "object",
				Required: []string{"path"},
			},
		},
		Capability: CapabilityFileReading,
		LLMVisible: true,
		Tool:       st,
	})

	_, err := r.ExecuteTool(context.Background(), "needs_path", map[string]any{})
	require.Error(t, err)
	require.Equal(t, vterrors.KindInvalidParameters, vterrors.KindOf(err))
	require.Equal(t, 0, st.calls, "tool must not run when validation fails")
}

func TestRegistry_ExecuteTool_DeniedByPolicy(t *testing.T) {
	dir := t.TempDir()
	store, err := policy.Open(dir+"/policy.json", []string{"locked"})
	require.NoError(t, err)
	require.NoError(t, store.SetPolicy("locked", policy.Deny))

	r := NewRegistry(Config{PolicyStore: store})
	st := &stubTool{name: "locked", result: builtin.Ok(nil)}
	r.Register(Registration{
		Definition: Definition{Name: "locked"},
		Capability: CapabilityEditing,
		LLMVisible: true,
		Tool:       st,
	})

	_, err = r.ExecuteTool(context.Background(), "locked", map[string]any{})
	require.Error(t, err)
	require.Equal(t, vterrors.KindPolicyViolation, vterrors.KindOf(err))
	require.Equal(t, 0, st.calls)
}

func TestRegistry_ExecuteTool_PromptPolicyUsesConfirmer(t *testing.T) {
	dir := t.TempDir()
	store, err := policy.Open(dir+"/policy.json", []string{"risky"})
	require.NoError(t, err)
	require.NoError(t, store.SetPolicy("risky", policy.Prompt))

	r := NewRegistry(Config{PolicyStore: store, Confirmer: policy.AutoApprove()})
	st := &stubTool{name: "risky", result: builtin.Ok(nil)}
	r.Register(Registration{
		Definition: Definition{Name: "risky"},
		Capability: CapabilityEditing,
		LLMVisible: true,
		Tool:       st,
	})

	_, err = r.ExecuteTool(context.Background(), "risky", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, 1, st.calls)
}

func TestRegistry_AvailableTools_FiltersLLMVisible(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(Registration{Definition: Definition{Name: "visible"}, LLMVisible: true, Tool: &stubTool{name: "visible"}})
	r.Register(Registration{Definition: Definition{Name: "hidden"}, LLMVisible: false, Tool: &stubTool{name: "hidden"}})

	names := r.AvailableTools()
	require.Contains(t, names, "visible")
	require.NotContains(t, names, "hidden")
}

func TestRegistry_CapabilityOf(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(Registration{
		Definition: Definition{Name: "lister"},
		Capability: CapabilityFileListing,
		LLMVisible: true,
		Tool:       &stubTool{name: "lister"},
	})

	cap, ok := r.CapabilityOf("lister")
	require.True(t, ok)
	require.True(t, cap.ReadOnly())

	_, ok = r.CapabilityOf("missing")
	require.False(t, ok)
}

func TestRegistry_AllowedTools_GatesExposureAndDispatch(t *testing.T) {
	r := NewRegistry(Config{AllowedTools: []string{"read_file"}})
	r.Register(Registration{
		Definition: Definition{Name: "read_file"},
		LLMVisible: true,
		Tool:       &stubTool{name: "read_file", result: builtin.Ok(nil)},
	})
	blocked := &stubTool{name: "write_file", result: builtin.Ok(nil)}
	r.Register(Registration{
		Definition: Definition{Name: "write_file"},
		LLMVisible: true,
		Tool:       blocked,
	})

	names := r.AvailableTools()
	require.Contains(t, names, "read_file")
	require.NotContains(t, names, "write_file")

	defs := r.BuildFunctionDeclarations(nil)
	found := false
	for _, d := range defs {
		if d.Name == "write_file" {
			found = true
		}
	}
	require.False(t, found, "write_file must not be exposed outside the allow-list")

	_, err := r.ExecuteTool(context.Background(), "write_file", map[string]any{})
	require.Error(t, err)
	require.Equal(t, vterrors.KindPolicyViolation, vterrors.KindOf(err))
	require.Equal(t, 0, blocked.calls, "disallowed tool must never run")
}

func TestRegistry_ValidationMiddleware_RejectsEscapingPath(t *testing.T) {
	st := &stubTool{name: "read_file", result: builtin.Ok(nil)}
	r := NewRegistry(Config{
		ValidationRules: []ValidationRule{
			{Tool: "read_file", Param: "path", Validate: ValidatePath(t.TempDir())},
		},
	})
	r.Register(Registration{
		Definition: Definition{Name: "read_file"},
		LLMVisible: true,
		Tool:       st,
	})

	_, err := r.ExecuteTool(context.Background(), "read_file", map[string]any{"path": "../../etc/passwd"})
	require.Error(t, err)
	require.Equal(t, 0, st.calls, "tool must not run when the path escapes the workspace")
}

func TestRegistry_ValidationMiddleware_AllowsInWorkspacePath(t *testing.T) {
	dir := t.TempDir()
	st := &stubTool{name: "read_file", result: builtin.Ok(nil)}
	r := NewRegistry(Config{
		ValidationRules: []ValidationRule{
			{Tool: "read_file", Param: "path", Validate: ValidatePath(dir)},
		},
	})
	r.Register(Registration{
		Definition: Definition{Name: "read_file"},
		LLMVisible: true,
		Tool:       st,
	})

	_, err := r.ExecuteTool(context.Background(), "read_file", map[string]any{"path": "main.go"})
	require.NoError(t, err)
	require.Equal(t, 1, st.calls)
}
