package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/policy"
	"github.com/vinhnx/vtcode/pkg/tool/builtin"
)

// TrajectoryLogger is the subset of pkg/trajectory.Logger the registry
// needs; declared locally so pkg/tool does not import pkg/trajectory for
// just one method, keeping the registry -> {policy, cache, tools,
// trajectory} dependency graph a DAG per the design notes.
type TrajectoryLogger interface {
	LogToolCall(turn int, name string, args map[string]any, ok bool)
}

// Registration is the immutable record of a registered tool.
type Registration struct {
	Definition             Definition
	Capability             CapabilityLevel
	RequiresWorkspaceWrite bool
	LLMVisible             bool
	Tool                   Tool
}

// Validatable is implemented by tools with tool-specific argument
// validation beyond the generic schema check (§4.6 step 2).
type Validatable interface {
	ValidateArgs(params map[string]any) error
}

// Registry is the central dispatcher (C6): immutable set of registrations
// after construction, holding references to the policy store, cache, and
// trajectory logger for the session.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]Registration
	policyStore   *policy.Store
	confirmer     policy.Confirmer
	trajectory    TrajectoryLogger
	turn          int

	chain Middleware

	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	tracer       trace.Tracer
	allowedTools []string
}

// Config configures Registry construction.
type Config struct {
	PolicyStore *policy.Store
	Confirmer   policy.Confirmer
	Trajectory  TrajectoryLogger
	Metrics     *prometheus.Registry // nil disables metrics entirely
	Tracer      trace.Tracer         // nil disables per-call spans
	Retry       RetryConfig
	Timeout     time.Duration
	MaxResultBytes int
	// AllowedTools restricts both LLM exposure and dispatch to this set
	// (matched via IsToolAllowed); empty means every registered tool is
	// reachable. Lets a task-class-scoped session narrow the surface a
	// model can see and call without re-registering a smaller set.
	AllowedTools []string
	// ValidationRules run as a middleware stage ahead of Retry, catching
	// bad parameter values (e.g. a path escaping the workspace) before a
	// transient-failure retry would otherwise re-attempt the same bad call.
	ValidationRules    []ValidationRule
	OnValidationError  func(tool, param, msg string)
}

// NewRegistry constructs an empty Registry; call Register for each tool.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		registrations: make(map[string]Registration),
		policyStore:   cfg.PolicyStore,
		confirmer:     cfg.Confirmer,
		trajectory:    cfg.Trajectory,
		tracer:        cfg.Tracer,
		allowedTools:  cfg.AllowedTools,
	}

	if cfg.Metrics != nil {
		r.callsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vtcode_tool_calls_total",
			Help: "Tool calls processed by the registry.",
		}, []string{"tool", "outcome"})
		r.callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "vtcode_tool_duration_seconds",
			Help: "Tool call duration in seconds.",
		}, []string{"tool"})
		cfg.Metrics.MustRegister(r.callsTotal, r.callDuration)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxResultBytes := cfg.MaxResultBytes
	if maxResultBytes <= 0 {
		maxResultBytes = 256 * 1024
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2, Jitter: 0.2}
	}

	r.chain = Chain(
		PanicRecovery(),
		Timeout(timeout, nil),
		Validation(ValidationConfig{Rules: cfg.ValidationRules}, cfg.OnValidationError),
		Retry(retryCfg),
		ResultSizeLimit(maxResultBytes, "... [truncated]"),
	)
	return r
}

// Register adds a tool registration. Registrations are only added at
// startup; the map is read-only afterward except through the mutex
// guarding concurrent reads during execution.
func (r *Registry) Register(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[reg.Definition.Name] = reg
}

// SetTurn updates the turn counter used in trajectory log records.
func (r *Registry) SetTurn(turn int) { r.turn = turn }

// AvailableTools returns names where llm_visible is true and, when an
// allow-list is configured, the name passes IsToolAllowed.
func (r *Registry) AvailableTools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.registrations))
	for name, reg := range r.registrations {
		if reg.LLMVisible && IsToolAllowed(name, r.allowedTools) {
			names = append(names, name)
		}
	}
	return names
}

// BuildFunctionDeclarations returns the LLM-visible tool set, optionally
// filtered to capability levels in allowedCapabilities (nil/empty means
// no filtering) and always filtered through the registry's allow-list.
func (r *Registry) BuildFunctionDeclarations(allowedCapabilities map[CapabilityLevel]bool) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []Definition
	for name, reg := range r.registrations {
		if !reg.LLMVisible {
			continue
		}
		if !IsToolAllowed(name, r.allowedTools) {
			continue
		}
		if len(allowedCapabilities) > 0 && !allowedCapabilities[reg.Capability] {
			continue
		}
		defs = append(defs, reg.Definition)
	}
	return defs
}

func (r *Registry) lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registrations[name]
	return reg, ok
}

// CapabilityOf reports the registered capability level for name, used by
// the run-loop to decide whether a batch of tool calls is eligible for
// parallel execution (§5: only read-only capability levels may fan out).
func (r *Registry) CapabilityOf(name string) (CapabilityLevel, bool) {
	reg, ok := r.lookup(name)
	if !ok {
		return "", false
	}
	return reg.Capability, true
}

// ExecuteTool runs the 8-step pipeline from §4.6: resolve, validate,
// policy check, constraint injection, execute, normalize, log, return.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any) (*builtin.Result, error) {
	start := time.Now()

	// 1. Resolve.
	reg, ok := r.lookup(name)
	if !ok {
		r.recordOutcome(name, false, start)
		return nil, vterrors.New(vterrors.KindToolNotFound, fmt.Sprintf("unknown tool %q", name))
	}
	if !IsToolAllowed(name, r.allowedTools) {
		r.recordOutcome(name, false, start)
		return nil, vterrors.New(vterrors.KindPolicyViolation, fmt.Sprintf("tool %q is outside the session's allowed tool set", name))
	}

	// 2. Validate args.
	if err := validateSchema(reg.Definition.Parameters, args); err != nil {
		r.recordOutcome(name, false, start)
		return nil, err
	}
	if v, ok := reg.Tool.(Validatable); ok {
		if err := v.ValidateArgs(args); err != nil {
			r.recordOutcome(name, false, start)
			return nil, vterrors.Wrap(vterrors.KindInvalidParameters, "tool-specific validation failed", err)
		}
	}

	// 3. Policy check.
	if r.policyStore != nil {
		p := r.policyStore.PolicyFor(name)
		switch p {
		case policy.Deny:
			r.recordOutcome(name, false, start)
			return nil, vterrors.New(vterrors.KindPolicyViolation, fmt.Sprintf("tool %q is denied by policy", name))
		case policy.Prompt:
			if r.confirmer == nil {
				r.recordOutcome(name, false, start)
				return nil, vterrors.New(vterrors.KindPolicyViolation, fmt.Sprintf("tool %q requires confirmation but none is configured", name))
			}
			decision, err := r.confirmer.Confirm(name, summarizeArgs(args))
			if err != nil {
				r.recordOutcome(name, false, start)
				return nil, vterrors.Wrap(vterrors.KindInternal, "confirmation callback failed", err)
			}
			if decision.Persists() {
				newPolicy := policy.Deny
				if decision.Approved() {
					newPolicy = policy.Allow
				}
				_ = r.policyStore.SetPolicy(name, newPolicy)
			}
			if !decision.Approved() {
				r.recordOutcome(name, false, start)
				return nil, vterrors.New(vterrors.KindPolicyViolation, fmt.Sprintf("tool %q call denied by user", name))
			}
		}
	}

	// 4. Constraint injection.
	if r.policyStore != nil {
		constraints := r.policyStore.ConstraintsFor(name)
		var capNote string
		args, capNote = applyConstraints(name, args, constraints)
		if capNote != "" {
			args["_policy_note"] = capNote
		}
		if len(constraints.AllowedModes) > 0 {
			if mode, ok := args["mode"].(string); ok && !contains(constraints.AllowedModes, mode) {
				r.recordOutcome(name, false, start)
				return nil, vterrors.New(vterrors.KindPolicyViolation, fmt.Sprintf("mode %q not permitted for tool %q", mode, name))
			}
		}
	}

	// 5. Execute, via the shared middleware chain (panic recovery, timeout,
	// retry, result size limit).
	callID := ulid.Make().String()
	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "tool."+name, trace.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("tool.call_id", callID),
		))
		defer span.End()
	}
	execCtx := &ExecutionContext{
		Context:   ctx,
		ToolName:  name,
		Tool:      reg.Tool,
		CallID:    callID,
		Params:    args,
		StartTime: start,
	}
	executor := r.chain(func(ec *ExecutionContext) (*builtin.Result, error) {
		return reg.Tool.Execute(ec.Params)
	})
	result, err := executor(execCtx)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		r.recordOutcome(name, false, start)
		r.logToolCall(name, args, false)
		return nil, err
	}

	// 6. Normalize output.
	result = normalizeToolOutput(result)

	// 7. Log.
	ok = result == nil || result.Success
	r.logToolCall(name, args, ok)
	r.recordOutcome(name, ok, start)
	if span != nil {
		span.SetAttributes(attribute.Bool("tool.success", ok))
		if !ok {
			span.SetStatus(codes.Error, "tool reported failure")
		}
	}

	// 8. Return.
	return result, nil
}

func (r *Registry) logToolCall(name string, args map[string]any, ok bool) {
	if r.trajectory != nil {
		r.trajectory.LogToolCall(r.turn, name, args, ok)
	}
}

func (r *Registry) recordOutcome(name string, ok bool, start time.Time) {
	if r.callsTotal == nil {
		return
	}
	outcome := "error"
	if ok {
		outcome = "success"
	}
	r.callsTotal.WithLabelValues(name, outcome).Inc()
	r.callDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// normalizeToolOutput implements §4.6 step 6: ensure a top-level success
// flag defaulting true, trim trailing whitespace from stdout/stderr, and
// rename a bare "output" field to "stdout" when no stdout is present.
func normalizeToolOutput(result *builtin.Result) *builtin.Result {
	if result == nil {
		return builtin.Ok(nil)
	}
	if result.Fields == nil {
		result.Fields = map[string]any{}
	}
	if _, hasStdout := result.Fields["stdout"]; !hasStdout {
		if output, ok := result.Fields["output"]; ok {
			result.Fields["stdout"] = output
			delete(result.Fields, "output")
		}
	}
	for _, key := range []string{"stdout", "stderr"} {
		if s, ok := result.Fields[key].(string); ok {
			result.Fields[key] = strings.TrimRight(s, " \t\n")
		}
	}
	return result
}

// applyConstraints implements §4.6 step 4's per-tool cap injection.
func applyConstraints(name string, args map[string]any, c policy.Constraints) (map[string]any, string) {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}

	var note string
	if c.DefaultResponseFmt != "" {
		if _, ok := out["response_format"]; !ok {
			out["response_format"] = c.DefaultResponseFmt
		}
	}

	switch name {
	case "list_files":
		if c.MaxItemsPerCall != nil {
			if capped := capInt(out, "max_items", *c.MaxItemsPerCall); capped {
				note = fmt.Sprintf("max_items capped to %d by policy", *c.MaxItemsPerCall)
			}
		}
	case "grep_search":
		if c.MaxResultsPerCall != nil {
			if capped := capInt(out, "max_results", *c.MaxResultsPerCall); capped {
				note = fmt.Sprintf("max_results capped to %d by policy", *c.MaxResultsPerCall)
			}
		}
	case "read_file":
		if c.MaxBytesPerRead != nil {
			if capped := capInt64(out, "max_bytes", *c.MaxBytesPerRead); capped {
				note = fmt.Sprintf("max_bytes capped to %d by policy", *c.MaxBytesPerRead)
			}
		}
	}
	return out, note
}

func capInt(args map[string]any, key string, cap int) bool {
	current, ok := toInt(args[key])
	if !ok || current > cap || current <= 0 {
		args[key] = cap
		return ok && current > cap
	}
	return false
}

func capInt64(args map[string]any, key string, cap int64) bool {
	current, ok := toInt64(args[key])
	if !ok || current > cap || current <= 0 {
		args[key] = cap
		return ok && current > cap
	}
	return false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "(no arguments)"
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ", ")
}

// validateSchema is the generic check against parameters_schema: every
// name in Required must be present in args.
func validateSchema(schema builtin.ParameterSchema, args map[string]any) error {
	for _, required := range schema.Required {
		if _, ok := args[required]; !ok {
			return vterrors.New(vterrors.KindInvalidParameters, fmt.Sprintf("missing required parameter %q", required))
		}
	}
	return nil
}
