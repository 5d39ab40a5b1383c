// Package plan tracks the session's current task plan: an ordered list
// of steps the model maintains via the update_plan tool. The plan is
// process-local and is never written to disk.
package plan

import (
	"strings"
	"sync"
	"time"
)

// StepStatus is one PlanStep's progress state.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
)

// Step is one unit of the plan.
type Step struct {
	Text   string     `json:"text"`
	Status StepStatus `json:"status"`
}

const (
	minSteps = 1
	maxSteps = 12
)

// TaskPlan is the full state of the session's plan (§3).
type TaskPlan struct {
	Explanation string    `json:"explanation,omitempty"`
	Steps       []Step    `json:"steps"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Manager owns the single session-wide TaskPlan, serializing reads and
// writes behind a mutex (snapshot/update_plan may be called from a tool
// invocation concurrently with a UI render).
type Manager struct {
	mu   sync.Mutex
	plan TaskPlan
}

// NewManager returns a Manager with an empty plan (version 0).
func NewManager() *Manager {
	return &Manager{}
}

// Snapshot returns the current plan.
func (m *Manager) Snapshot() TaskPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plan
}

// Error is a plan validation failure (§4.13's PlanError).
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// Update validates and replaces the plan's explanation and steps,
// incrementing Version and refreshing UpdatedAt on success (§4.13):
// steps must number 1..12, every step's text must be non-empty after
// trimming, and at most one step may be InProgress.
func (m *Manager) Update(explanation string, steps []Step) (TaskPlan, error) {
	if len(steps) < minSteps || len(steps) > maxSteps {
		return TaskPlan{}, &Error{Reason: "steps must number between 1 and 12"}
	}

	inProgress := 0
	normalized := make([]Step, len(steps))
	for i, s := range steps {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			return TaskPlan{}, &Error{Reason: "step text must not be empty"}
		}
		if s.Status == StepInProgress {
			inProgress++
		}
		normalized[i] = Step{Text: text, Status: s.Status}
	}
	if inProgress > 1 {
		return TaskPlan{}, &Error{Reason: "at most one step may be in_progress"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.plan = TaskPlan{
		Explanation: explanation,
		Steps:       normalized,
		Version:     m.plan.Version + 1,
		UpdatedAt:   time.Now(),
	}
	return m.plan, nil
}
