package plan

import (
	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/tool/builtin"
)

// UpdatePlanTool exposes Manager.Update as a model-callable tool.
type UpdatePlanTool struct {
	manager *Manager
}

// NewUpdatePlanTool builds the update_plan tool over manager.
func NewUpdatePlanTool(manager *Manager) *UpdatePlanTool {
	return &UpdatePlanTool{manager: manager}
}

func (t *UpdatePlanTool) Name() string { return "update_plan" }

func (t *UpdatePlanTool) Description() string {
	return "Replace the current task plan with an ordered list of 1-12 steps. Use this to track progress on multi-step work; at most one step may be in_progress at a time."
}

func (t *UpdatePlanTool) Parameters() builtin.ParameterSchema {
	return builtin.ParameterSchema{
		Type: "object",
		Properties: map[string]builtin.PropertySchema{
			"explanation": {Type: "string", Description: "Optional short rationale for this plan update."},
			"steps": {
				Type:        "array",
				Description: `Ordered list of 1-12 plan steps, each {"text": string, "status": "pending"|"in_progress"|"completed"}.`,
				Items:       &builtin.PropertySchema{Type: "object", Description: "A single plan step."},
			},
		},
		Required: []string{"steps"},
	}
}

func (t *UpdatePlanTool) Execute(params map[string]any) (*builtin.Result, error) {
	explanation, _ := params["explanation"].(string)

	rawSteps, ok := params["steps"].([]any)
	if !ok || len(rawSteps) == 0 {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "steps must be a non-empty array")
	}

	steps := make([]Step, 0, len(rawSteps))
	for _, raw := range rawSteps {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, vterrors.New(vterrors.KindInvalidParameters, "each step must be an object with text and status")
		}
		text, _ := m["text"].(string)
		status, _ := m["status"].(string)
		steps = append(steps, Step{Text: text, Status: StepStatus(status)})
	}

	updated, err := t.manager.Update(explanation, steps)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInvalidParameters, err.Error(), err)
	}

	return builtin.Ok(map[string]any{
		"explanation": updated.Explanation,
		"steps":       updated.Steps,
		"version":     updated.Version,
		"updated_at":  updated.UpdatedAt,
	}), nil
}
