// Package errors defines the agent's error taxonomy: a single tagged
// struct type carrying a Kind, a message, recovery suggestions, and an
// optional wrapped cause.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an AgentError for retry and UI-presentation decisions.
type Kind string

const (
	KindInvalidParameters Kind = "invalid_parameters"
	KindToolNotFound      Kind = "tool_not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindResourceNotFound  Kind = "resource_not_found"
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindPolicyViolation   Kind = "policy_violation"
	KindAuthentication    Kind = "authentication"
	KindProvider          Kind = "provider"
	KindTextNotFound      Kind = "text_not_found"
	KindAmbiguous         Kind = "ambiguous"
	KindCancelled         Kind = "cancelled"
	KindInternal          Kind = "internal"
)

// AgentError is the single structured error type used across the agent.
// Tool implementations, providers, and the registry all return *AgentError
// (or wrap a plain error with New/Wrap) so the run-loop can make uniform
// retry and recovery decisions.
type AgentError struct {
	Kind        Kind
	Message     string
	Cause       error
	Suggestions []string

	// Status/Body carry the originating HTTP status/response body for
	// errors built by Provider, regardless of which Kind it classified
	// the status into (KindProvider, KindAuthentication, or
	// KindInvalidParameters).
	Status int
	Body   string
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AgentError) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, &AgentError{Kind: KindX}) comparisons by Kind.
func (e *AgentError) Is(target error) bool {
	t, ok := target.(*AgentError)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an AgentError of the given kind.
func New(kind Kind, message string) *AgentError {
	return &AgentError{Kind: kind, Message: message}
}

// Wrap constructs an AgentError of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *AgentError {
	return &AgentError{Kind: kind, Message: message, Cause: cause}
}

// Provider classifies an HTTP non-2xx provider response: 401/403 (bad or
// rejected credentials) become KindAuthentication, a 400 whose body names
// a model problem becomes KindInvalidParameters, and everything else stays
// KindProvider (retryable by the run-loop for 408/429/5xx per Recoverable).
func Provider(status int, body string) *AgentError {
	switch {
	case status == 401 || status == 403:
		return &AgentError{
			Kind:    KindAuthentication,
			Message: fmt.Sprintf("provider rejected credentials (status %d)", status),
			Status:  status,
			Body:    body,
		}
	case status == 400 && isModelNameIssue(body):
		return &AgentError{
			Kind:    KindInvalidParameters,
			Message: fmt.Sprintf("provider rejected the request: invalid or unknown model (status %d)", status),
			Status:  status,
			Body:    body,
		}
	default:
		return &AgentError{
			Kind:    KindProvider,
			Message: fmt.Sprintf("provider returned status %d", status),
			Status:  status,
			Body:    body,
		}
	}
}

// isModelNameIssue sniffs a 400 response body for language providers use
// to reject an unrecognized or malformed model identifier.
func isModelNameIssue(body string) bool {
	lower := strings.ToLower(body)
	if !strings.Contains(lower, "model") {
		return false
	}
	phrases := []string{
		"does not exist", "not found", "not supported",
		"invalid model", "unknown model", "unrecognized model",
	}
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// WithSuggestions appends recovery suggestions and returns the receiver.
func (e *AgentError) WithSuggestions(s ...string) *AgentError {
	e.Suggestions = append(e.Suggestions, s...)
	return e
}

// Recoverable reports whether the run-loop may retry the operation that
// produced this error, per the taxonomy in the error-handling design.
func (e *AgentError) Recoverable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindTimeout:
		return true
	case KindProvider:
		return e.Status == 408 || e.Status == 429 || (e.Status >= 500 && e.Status <= 599)
	case KindResourceNotFound:
		return false
	default:
		return false
	}
}

// RecoverySuggestions returns human-readable recovery hints, falling back
// to a generic suggestion derived from Kind when none were attached.
func (e *AgentError) RecoverySuggestions() []string {
	if len(e.Suggestions) > 0 {
		return e.Suggestions
	}
	switch e.Kind {
	case KindInvalidParameters:
		return []string{"check the tool's parameter schema and retry with corrected arguments"}
	case KindToolNotFound:
		return []string{"call available_tools to list tools registered in this session"}
	case KindPermissionDenied:
		return []string{"the path or command is outside the allowed boundary; choose a different target"}
	case KindResourceNotFound:
		return []string{"verify the path exists before retrying, or create it first"}
	case KindPolicyViolation:
		return []string{"ask the user to change the tool's policy, then retry"}
	case KindTextNotFound:
		return []string{"re-read the file and supply an old_str that matches exactly once"}
	case KindAmbiguous:
		return []string{"include more surrounding context in old_str so it matches a single location"}
	default:
		return nil
	}
}

// KindOf extracts the Kind of err if it is (or wraps) an *AgentError.
func KindOf(err error) Kind {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsRecoverable reports whether err is an *AgentError with Recoverable() true.
func IsRecoverable(err error) bool {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Recoverable()
	}
	return false
}
