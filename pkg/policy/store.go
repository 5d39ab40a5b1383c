package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const schemaVersion = 1

// record is the on-disk shape persisted at <workspace>/.vtcode/tool-policy.json.
type record struct {
	SchemaVersion  int                    `json:"schema_version"`
	AvailableTools []string               `json:"available_tools"`
	Policies       map[string]Policy      `json:"policies"`
	Constraints    map[string]Constraints `json:"constraints"`
}

// Store is the single-writer, snapshot-consistent policy store. Reads take
// an RLock; the only writer is the confirmation path (set_policy) and
// update_available_tools/bulk operations, matching §5's concurrency model.
type Store struct {
	mu   sync.RWMutex
	path string
	data record
}

// Open loads path if it exists, or initializes a new record (not written
// to disk until the first change is saved) with every known tool set to Prompt and the
// read-only defaults set to Allow.
func Open(path string, knownTools []string) (*Store, error) {
	s := &Store{path: path}

	if data, err := os.ReadFile(path); err == nil {
		var r record
		if jsonErr := json.Unmarshal(data, &r); jsonErr == nil {
			s.data = r
			s.data.UpdateAvailableTools(knownTools)
			return s, nil
		}
	}

	s.data = record{
		SchemaVersion: schemaVersion,
		Policies:      make(map[string]Policy),
		Constraints:   make(map[string]Constraints),
	}
	s.data.UpdateAvailableTools(knownTools)
	return s, nil
}

// UpdateAvailableTools records the known tool set and assigns a default
// policy (Prompt, or Allow for the built-in read-only tools) to any tool
// not already tracked.
func (r *record) UpdateAvailableTools(names []string) {
	if r.Policies == nil {
		r.Policies = make(map[string]Policy)
	}
	r.AvailableTools = append([]string{}, names...)
	for _, name := range names {
		if _, ok := r.Policies[name]; ok {
			continue
		}
		if defaultAllowReadOnly[name] {
			r.Policies[name] = Allow
		} else {
			r.Policies[name] = Prompt
		}
	}
}

// PolicyFor returns the tool's policy, defaulting to Prompt for unknown tools.
func (s *Store) PolicyFor(tool string) Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.data.Policies[tool]; ok {
		return p
	}
	return Prompt
}

// ConstraintsFor returns the tool's constraints, the zero value if none set.
func (s *Store) ConstraintsFor(tool string) Constraints {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Constraints[tool]
}

// SetPolicy sets tool's policy and persists the change.
func (s *Store) SetPolicy(tool string, p Policy) error {
	s.mu.Lock()
	if s.data.Policies == nil {
		s.data.Policies = make(map[string]Policy)
	}
	s.data.Policies[tool] = p
	s.mu.Unlock()
	return s.save()
}

// SetConstraints sets tool's constraints and persists the change.
func (s *Store) SetConstraints(tool string, c Constraints) error {
	s.mu.Lock()
	if s.data.Constraints == nil {
		s.data.Constraints = make(map[string]Constraints)
	}
	s.data.Constraints[tool] = c
	s.mu.Unlock()
	return s.save()
}

// UpdateAvailableTools records the current tool set, persisting it.
func (s *Store) UpdateAvailableTools(names []string) error {
	s.mu.Lock()
	s.data.UpdateAvailableTools(names)
	s.mu.Unlock()
	return s.save()
}

// ResetAllToPrompt sets every known tool's policy to Prompt.
func (s *Store) ResetAllToPrompt() error { return s.bulkSet(Prompt) }

// AllowAll sets every known tool's policy to Allow.
func (s *Store) AllowAll() error { return s.bulkSet(Allow) }

// DenyAll sets every known tool's policy to Deny.
func (s *Store) DenyAll() error { return s.bulkSet(Deny) }

func (s *Store) bulkSet(p Policy) error {
	s.mu.Lock()
	for name := range s.data.Policies {
		s.data.Policies[name] = p
	}
	s.mu.Unlock()
	return s.save()
}

// save writes the store atomically: write-temp-then-rename in the same
// directory, so a crash mid-write never corrupts the existing file.
func (s *Store) save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tool-policy-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
