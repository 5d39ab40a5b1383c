package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vinhnx/vtcode/pkg/cache"
	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/pathguard"
)

// ApplyPatchTool implements apply_patch (§4.4): parses a unified diff and
// applies each hunk by 3-line-context matching. All-or-nothing: a hunk
// that cannot be located unambiguously fails the whole patch before any
// file is touched. Not registered as LLM-visible by default; edit_file is
// the model-facing editing tool.
type ApplyPatchTool struct {
	guard *pathguard.Guard
	cache *cache.Cache
}

// NewApplyPatchTool constructs an apply_patch tool.
func NewApplyPatchTool(guard *pathguard.Guard, c *cache.Cache) *ApplyPatchTool {
	return &ApplyPatchTool{guard: guard, cache: c}
}

func (t *ApplyPatchTool) Name() string        { return "apply_patch" }
func (t *ApplyPatchTool) Description() string { return "Apply a unified diff to the workspace." }

func (t *ApplyPatchTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"patch": {Type: "string", Description: "Unified-diff text covering one or more files."},
		},
		Required: []string{"patch"},
	}
}

func (t *ApplyPatchTool) Execute(params map[string]any) (*Result, error) {
	patch, _ := params["patch"].(string)
	if strings.TrimSpace(patch) == "" {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "patch must not be empty")
	}

	files, err := parseUnifiedDiff(patch)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "patch contains no file hunks")
	}

	writes := make(map[string]string, len(files))
	touched := make([]string, 0, len(files))
	for _, fd := range files {
		targetRel := fd.targetPath()
		if targetRel == "" {
			return nil, vterrors.New(vterrors.KindInvalidParameters, "patch hunk has no resolvable target path")
		}

		var resolved string
		var original string
		if fd.isNewFile() {
			resolved, err = t.guard.ForCreate(targetRel)
			if err != nil {
				return nil, err
			}
		} else {
			resolved, err = t.guard.Resolve(targetRel)
			if err != nil {
				return nil, err
			}
			original, err = readFileString(resolved)
			if err != nil {
				return nil, err
			}
		}

		updated, err := applyHunks(original, fd.hunks)
		if err != nil {
			return nil, vterrors.Wrap(vterrors.KindInvalidParameters, fmt.Sprintf("hunk for %s could not be applied", targetRel), err)
		}

		writes[resolved] = updated
		touched = append(touched, targetRel)
	}

	// All hunks for all files located successfully: commit every write.
	for path, content := range writes {
		if err := atomicWriteFile(path, content); err != nil {
			return nil, err
		}
		if t.cache != nil {
			t.cache.Invalidate(path)
		}
	}

	return Ok(map[string]any{"files_changed": touched}), nil
}

type diffLine struct {
	kind byte // ' ', '-', '+'
	text string
}

type hunk struct {
	oldStart int
	lines    []diffLine
}

type fileDiff struct {
	oldPath string
	newPath string
	hunks   []hunk
}

func (fd fileDiff) isNewFile() bool { return fd.oldPath == "/dev/null" }

func (fd fileDiff) targetPath() string {
	if fd.newPath != "" && fd.newPath != "/dev/null" {
		return stripDiffPrefix(fd.newPath)
	}
	return stripDiffPrefix(fd.oldPath)
}

func stripDiffPrefix(path string) string {
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(path, prefix) {
			return path[len(prefix):]
		}
	}
	return path
}

func parseUnifiedDiff(patch string) ([]fileDiff, error) {
	lines := strings.Split(patch, "\n")
	var files []fileDiff
	var current *fileDiff
	var currentHunk *hunk

	flushHunk := func() {
		if current != nil && currentHunk != nil {
			current.hunks = append(current.hunks, *currentHunk)
			currentHunk = nil
		}
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			files = append(files, *current)
			current = nil
		}
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "--- "):
			flushFile()
			current = &fileDiff{oldPath: strings.TrimSpace(strings.TrimPrefix(line, "--- "))}
		case strings.HasPrefix(line, "+++ "):
			if current == nil {
				return nil, vterrors.New(vterrors.KindInvalidParameters, "patch +++ line with no preceding --- line")
			}
			current.newPath = strings.TrimSpace(strings.TrimPrefix(line, "+++ "))
		case strings.HasPrefix(line, "@@ "):
			if current == nil {
				return nil, vterrors.New(vterrors.KindInvalidParameters, "hunk header outside of a file section")
			}
			flushHunk()
			oldStart, err := parseHunkOldStart(line)
			if err != nil {
				return nil, err
			}
			h := hunk{oldStart: oldStart}
			currentHunk = &h
		case strings.HasPrefix(line, "diff --git"):
			flushFile()
		case currentHunk != nil && len(line) > 0:
			currentHunk.lines = append(currentHunk.lines, diffLine{kind: line[0], text: line[1:]})
		case currentHunk != nil && len(line) == 0:
			currentHunk.lines = append(currentHunk.lines, diffLine{kind: ' ', text: ""})
		}
	}
	flushFile()
	return files, nil
}

// parseHunkOldStart extracts the old-file starting line from a
// "@@ -l,s +l,s @@" header, used only as a search hint.
func parseHunkOldStart(header string) (int, error) {
	fields := strings.Fields(header)
	for _, f := range fields {
		if strings.HasPrefix(f, "-") {
			spec := strings.TrimPrefix(f, "-")
			numPart := strings.SplitN(spec, ",", 2)[0]
			n, err := strconv.Atoi(numPart)
			if err != nil {
				return 0, vterrors.Wrap(vterrors.KindInvalidParameters, "invalid hunk header", err)
			}
			return n, nil
		}
	}
	return 0, vterrors.New(vterrors.KindInvalidParameters, "hunk header missing old-file range")
}

// applyHunks applies each hunk to original in order, tracking line drift
// from prior hunks. Each hunk's old block (context + removed lines) is
// taken at the header's hinted line when it matches there; otherwise it
// must match a unique contiguous window of the current content, and
// ambiguous or missing matches fail the whole patch.
func applyHunks(original string, hunks []hunk) (string, error) {
	lines := strings.Split(original, "\n")
	drift := 0

	for _, h := range hunks {
		var oldBlock, newBlock []string
		for _, dl := range h.lines {
			switch dl.kind {
			case ' ':
				oldBlock = append(oldBlock, dl.text)
				newBlock = append(newBlock, dl.text)
			case '-':
				oldBlock = append(oldBlock, dl.text)
			case '+':
				newBlock = append(newBlock, dl.text)
			}
		}
		if len(oldBlock) == 0 {
			// Pure insertion hunk: insert newBlock at the hinted position.
			pos := h.oldStart - 1 + drift
			if pos < 0 || pos > len(lines) {
				return "", fmt.Errorf("insertion point out of range")
			}
			lines = spliceLines(lines, pos, 0, newBlock)
			drift += len(newBlock)
			continue
		}

		hint := h.oldStart - 1 + drift
		start, err := locateBlock(lines, oldBlock, hint)
		if err != nil {
			return "", err
		}
		lines = spliceLines(lines, start, len(oldBlock), newBlock)
		drift += len(newBlock) - len(oldBlock)
	}

	return strings.Join(lines, "\n"), nil
}

// locateBlock finds block as a contiguous run within lines, preferring a
// match at hint, falling back to a full scan. Multiple full-file matches
// are rejected as ambiguous.
func locateBlock(lines, block []string, hint int) (int, error) {
	if hint >= 0 && hint+len(block) <= len(lines) && blockEquals(lines, block, hint) {
		return hint, nil
	}

	var found []int
	for i := 0; i+len(block) <= len(lines); i++ {
		if blockEquals(lines, block, i) {
			found = append(found, i)
		}
	}
	switch len(found) {
	case 0:
		return 0, fmt.Errorf("hunk context not found")
	case 1:
		return found[0], nil
	default:
		return 0, fmt.Errorf("hunk context matches more than one location")
	}
}

func blockEquals(lines, block []string, at int) bool {
	for i, b := range block {
		if strings.TrimRight(lines[at+i], " \t") != strings.TrimRight(b, " \t") {
			return false
		}
	}
	return true
}

func spliceLines(lines []string, at, removeCount int, insert []string) []string {
	out := make([]string, 0, len(lines)-removeCount+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at+removeCount:]...)
	return out
}
