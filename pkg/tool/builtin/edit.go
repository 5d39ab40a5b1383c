package builtin

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/vinhnx/vtcode/pkg/cache"
	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/pathguard"
)

// EditFileTool implements edit_file (§4.4): a whitespace-tolerant
// old_str/new_str replacement requiring exactly one match, written
// atomically (temp file in the same directory, then rename).
type EditFileTool struct {
	guard *pathguard.Guard
	cache *cache.Cache
}

// NewEditFileTool constructs an edit_file tool.
func NewEditFileTool(guard *pathguard.Guard, c *cache.Cache) *EditFileTool {
	return &EditFileTool{guard: guard, cache: c}
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Replace a unique block of text in a file, matched with whitespace tolerance."
}

func (t *EditFileTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path":    {Type: "string", Description: "Path to the file to edit, relative to the workspace root."},
			"old_str": {Type: "string", Description: "Exact block of text to replace; must match exactly once."},
			"new_str": {Type: "string", Description: "Replacement text."},
		},
		Required: []string{"path", "old_str", "new_str"},
	}
}

func (t *EditFileTool) Execute(params map[string]any) (*Result, error) {
	path, _ := params["path"].(string)
	oldStr, _ := params["old_str"].(string)
	newStr, _ := params["new_str"].(string)

	resolved, err := t.guard.Resolve(path)
	if err != nil {
		return nil, err
	}

	original, err := readFileString(resolved)
	if err != nil {
		return nil, err
	}

	span, matchCount, err := locateUniqueMatch(original, oldStr)
	if err != nil {
		return nil, err
	}
	if matchCount == 0 {
		return nil, vterrors.New(vterrors.KindTextNotFound, "old_str does not match any location in the file").
			WithSuggestions("re-read the file and supply an old_str that matches exactly once")
	}
	if matchCount > 1 {
		return nil, vterrors.New(vterrors.KindAmbiguous, "old_str matches more than one location in the file").
			WithSuggestions("include more surrounding context in old_str so it matches a single location")
	}

	updated := original[:span.start] + newStr + original[span.end:]

	if err := atomicWriteFile(resolved, updated); err != nil {
		return nil, err
	}
	if t.cache != nil {
		t.cache.Invalidate(resolved)
	}

	diff := unifiedDiff(resolved, original, updated)
	added, removed := countDiffLines(diff)

	return Ok(map[string]any{
		"lines_added":   added,
		"lines_removed": removed,
		"unified_diff":  diff,
	}), nil
}

type matchSpan struct{ start, end int }

// locateUniqueMatch scans content for old windows of lines that match old
// after trailing-whitespace-tolerant, line-by-line comparison (line counts,
// including blank lines, must also match). It returns the byte span of the
// single match in content's original bytes, and the total match count.
func locateUniqueMatch(content, old string) (matchSpan, int, error) {
	if old == "" {
		return matchSpan{}, 0, vterrors.New(vterrors.KindInvalidParameters, "old_str must not be empty")
	}

	contentLines := strings.Split(content, "\n")
	oldLines := strings.Split(old, "\n")

	offsets := make([]int, len(contentLines)+1)
	for i, line := range contentLines {
		offsets[i+1] = offsets[i] + len(line) + 1 // +1 for the "\n" joining this line to the next
	}

	var found matchSpan
	count := 0
	for i := 0; i+len(oldLines) <= len(contentLines); i++ {
		if !linesMatch(contentLines[i:i+len(oldLines)], oldLines) {
			continue
		}
		count++
		lastLine := i + len(oldLines) - 1
		found = matchSpan{
			start: offsets[i],
			end:   offsets[lastLine] + len(contentLines[lastLine]),
		}
	}
	return found, count, nil
}

func linesMatch(window, old []string) bool {
	for i := range old {
		if strings.TrimRight(window[i], " \t") != strings.TrimRight(old[i], " \t") {
			return false
		}
	}
	return true
}

func unifiedDiff(path, before, after string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

func countDiffLines(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
