// Package paths centralizes the persisted-state layout rooted at a
// workspace directory: the .vtcode state dir, logs dir, and their
// children.
package paths

import "path/filepath"

// EnvLogDir names the environment variable for a logs base directory
// override. No function in this package reads it: LogsBaseDir always
// returns the workspace-relative path.
const EnvLogDir = "VTCODE_LOG_DIR"

// StateDir returns "<workspace>/.vtcode".
func StateDir(workspace string) string {
	return filepath.Join(workspace, ".vtcode")
}

// ToolPolicyFile returns "<workspace>/.vtcode/tool-policy.json".
func ToolPolicyFile(workspace string) string {
	return filepath.Join(StateDir(workspace), "tool-policy.json")
}

// ProjectsDir returns "<workspace>/.vtcode/projects".
func ProjectsDir(workspace string) string {
	return filepath.Join(StateDir(workspace), "projects")
}

// LogsBaseDir returns "<workspace>/.vtcode/logs" for structured session
// logging (distinct from the trajectory log, which lives at LogsDir).
func LogsBaseDir(workspace string) string {
	return filepath.Join(StateDir(workspace), "logs")
}

// LogsDir returns "<workspace>/logs", the directory holding trajectory.jsonl.
func LogsDir(workspace string) string {
	return filepath.Join(workspace, "logs")
}

// TrajectoryFile returns "<workspace>/logs/trajectory.jsonl".
func TrajectoryFile(workspace string) string {
	return filepath.Join(LogsDir(workspace), "trajectory.jsonl")
}
