// Package pathguard resolves workspace-relative paths to canonical,
// contained paths, rejecting escapes and gitignored targets before any
// tool touches the filesystem.
package pathguard

import (
	"os"
	"path/filepath"
	"strings"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

// ExcludePredicate reports whether a canonical path should be treated as
// excluded (e.g. gitignored). The registry consumes this as an opaque
// boolean predicate; pathguard has no gitignore-parsing logic of its own.
type ExcludePredicate func(canonicalPath string) bool

// Guard resolves paths rooted at a single workspace directory.
type Guard struct {
	root    string
	exclude ExcludePredicate
}

// New creates a Guard rooted at workspaceRoot. exclude may be nil, in
// which case no path is ever treated as excluded.
func New(workspaceRoot string, exclude ExcludePredicate) (*Guard, error) {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInvalidParameters, "resolve workspace root", err)
	}
	if exclude == nil {
		exclude = func(string) bool { return false }
	}
	return &Guard{root: filepath.Clean(abs), exclude: exclude}, nil
}

// Root returns the canonical workspace root.
func (g *Guard) Root() string { return g.root }

// IsExcluded reports whether canonicalPath matches the guard's exclude
// predicate, for walkers that need to skip gitignored entries without
// resolving a user-supplied path.
func (g *Guard) IsExcluded(canonicalPath string) bool { return g.exclude(canonicalPath) }

// ForCreate resolves path the same way as Resolve, but does not require
// every intermediate directory to already exist (used by write_file when
// create_dirs is requested).
func (g *Guard) ForCreate(userPath string) (string, error) {
	return g.resolve(userPath, true)
}

// Resolve implements resolve(workspace_root, user_path) from the path
// guard contract: absolute paths must canonicalize inside root, relative
// paths are joined to root, `..` escapes are rejected, symlink targets
// must also resolve inside root, and excluded paths are rejected. Escapes
// and exclusions both return KindPermissionDenied; they differ only in
// message and recovery suggestion.
func (g *Guard) Resolve(userPath string) (string, error) {
	return g.resolve(userPath, false)
}

func (g *Guard) resolve(userPath string, allowMissingParents bool) (string, error) {
	raw := strings.TrimSpace(userPath)
	if raw == "" {
		return "", vterrors.New(vterrors.KindInvalidParameters, "path cannot be empty")
	}

	var candidate string
	if filepath.IsAbs(raw) {
		candidate = filepath.Clean(raw)
	} else {
		candidate = filepath.Clean(filepath.Join(g.root, raw))
	}

	if !isWithin(g.root, candidate) {
		return "", vterrors.New(vterrors.KindPermissionDenied, "path \""+raw+"\" escapes workspace root")
	}

	resolved := g.resolveSymlinks(candidate, allowMissingParents)
	if !isWithin(g.root, resolved) {
		return "", vterrors.New(vterrors.KindPermissionDenied, "path \""+raw+"\" escapes workspace root via symlink")
	}

	if g.exclude(resolved) {
		return "", vterrors.New(vterrors.KindPermissionDenied, "path \""+raw+"\" is excluded").
			WithSuggestions("the path matches a gitignore rule; choose a tracked path")
	}

	return resolved, nil
}

// resolveSymlinks follows symlinks in candidate. If the file itself
// doesn't exist (create operations), it walks up to the nearest existing
// ancestor and resolves that, reattaching the missing suffix, per rule
// (e) in the contract: non-existent intermediate directories are
// acceptable for create operations only.
func (g *Guard) resolveSymlinks(candidate string, allowMissingParents bool) string {
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		return filepath.Clean(resolved)
	}
	if !allowMissingParents {
		return filepath.Clean(candidate)
	}

	dir := filepath.Dir(candidate)
	suffix := []string{filepath.Base(candidate)}
	for {
		if resolvedDir, err := filepath.EvalSymlinks(dir); err == nil {
			p := resolvedDir
			for i := len(suffix) - 1; i >= 0; i-- {
				p = filepath.Join(p, suffix[i])
			}
			return filepath.Clean(p)
		}
		if _, err := os.Stat(dir); err == nil {
			// exists but EvalSymlinks failed for another reason; stop climbing
			return filepath.Clean(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Clean(candidate)
		}
		suffix = append(suffix, filepath.Base(dir))
		dir = parent
	}
}

func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	rel = filepath.Clean(rel)
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Rel returns target relative to the workspace root, or target itself if
// it cannot be made relative.
func (g *Guard) Rel(target string) string {
	rel, err := filepath.Rel(g.root, target)
	if err != nil {
		return target
	}
	return rel
}
