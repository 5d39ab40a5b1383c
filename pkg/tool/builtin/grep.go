package builtin

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/pathguard"
)

const defaultMaxSearchResults = 200

var searchTimeout = 15 * time.Second

// GrepSearchTool implements grep_search (§4.4): delegates to an external
// regex engine (ripgrep when on PATH, falling back to the builtin line
// scan shared with simple_search) constrained to
// the workspace root, ground true on the teacher's rg/grep shelling.
type GrepSearchTool struct {
	guard *pathguard.Guard
}

// NewGrepSearchTool constructs a grep_search tool.
func NewGrepSearchTool(guard *pathguard.Guard) *GrepSearchTool {
	return &GrepSearchTool{guard: guard}
}

func (t *GrepSearchTool) Name() string { return "grep_search" }
func (t *GrepSearchTool) Description() string {
	return "Search file contents for a regular expression across the workspace."
}

func (t *GrepSearchTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"pattern":        {Type: "string", Description: "Regular expression to search for."},
			"path":           {Type: "string", Description: "Directory or file to search.", Default: "."},
			"case_sensitive": {Type: "boolean", Description: "Case-sensitive match.", Default: true},
			"literal":        {Type: "boolean", Description: "Treat pattern as a literal string.", Default: false},
			"glob_pattern":   {Type: "string", Description: "Glob filter for files to search."},
			"context_lines":  {Type: "integer", Description: "Lines of context around each match.", Default: 0},
			"include_hidden": {Type: "boolean", Description: "Include dotfiles.", Default: false},
			"max_results":    {Type: "integer", Description: "Maximum matches to return.", Default: defaultMaxSearchResults},
		},
		Required: []string{"pattern"},
	}
}

func (t *GrepSearchTool) Execute(params map[string]any) (*Result, error) {
	pattern, _ := params["pattern"].(string)
	if strings.TrimSpace(pattern) == "" {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "pattern must not be empty")
	}
	searchPath, _ := params["path"].(string)
	if searchPath == "" {
		searchPath = "."
	}
	resolved, err := t.guard.Resolve(searchPath)
	if err != nil {
		return nil, err
	}

	caseSensitive := true
	if v, ok := params["case_sensitive"].(bool); ok {
		caseSensitive = v
	}
	literal, _ := params["literal"].(bool)
	glob, _ := params["glob_pattern"].(string)
	contextLines := intParam(params["context_lines"], 0)
	includeHidden, _ := params["include_hidden"].(bool)
	maxResults := intParam(params["max_results"], defaultMaxSearchResults)
	if maxResults <= 0 {
		maxResults = defaultMaxSearchResults
	}

	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	matches, usedRipgrep, err := runRipgrep(ctx, resolved, pattern, caseSensitive, literal, glob, contextLines, includeHidden, maxResults)
	if err != nil {
		matches, err = simpleGrep(resolved, pattern, caseSensitive, literal, includeHidden, contextLines, maxResults, t.guard.IsExcluded)
		if err != nil {
			return nil, err
		}
		usedRipgrep = false
	}

	return Ok(map[string]any{
		"matches": matches,
		"engine":  engineName(usedRipgrep),
	}), nil
}

func engineName(usedRipgrep bool) string {
	if usedRipgrep {
		return "rg"
	}
	return "builtin"
}

func runRipgrep(ctx context.Context, path, pattern string, caseSensitive, literal bool, glob string, contextLines int, includeHidden bool, maxResults int) ([]map[string]any, bool, error) {
	if _, err := exec.LookPath("rg"); err != nil {
		return nil, false, err
	}

	args := []string{"--line-number", "--no-heading", "--color", "never"}
	if !caseSensitive {
		args = append(args, "-i")
	}
	if literal {
		args = append(args, "-F")
	}
	if contextLines > 0 {
		args = append(args, fmt.Sprintf("-C%d", contextLines))
	}
	if includeHidden {
		args = append(args, "--hidden")
	}
	if glob != "" {
		args = append(args, "--glob", glob)
	}
	args = append(args, "-m", strconv.Itoa(maxResults), pattern, path)

	cmd := exec.CommandContext(ctx, "rg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, true, vterrors.New(vterrors.KindTimeout, "search timed out")
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return []map[string]any{}, true, nil // no matches
		}
		return nil, false, fmt.Errorf("rg: %v: %s", err, stderr.String())
	}

	return parseRipgrepOutput(stdout.String(), maxResults), true, nil
}

func parseRipgrepOutput(output string, maxResults int) []map[string]any {
	matches := make([]map[string]any, 0)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if len(matches) >= maxResults {
			break
		}
		line := scanner.Text()
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		lineNum, _ := strconv.Atoi(parts[1])
		matches = append(matches, map[string]any{
			"path":        parts[0],
			"line_number": lineNum,
			"text":        parts[2],
		})
	}
	return matches
}

// simpleGrep implements simple_search's line-by-line scan, also used as
// grep_search's fallback when no external regex engine is on PATH.
func simpleGrep(rootPath, pattern string, caseSensitive, literal, includeHidden bool, contextLines, maxResults int, excluded func(string) bool) ([]map[string]any, error) {
	var re *regexp.Regexp
	if literal {
		quoted := regexp.QuoteMeta(pattern)
		if !caseSensitive {
			quoted = "(?i)" + quoted
		}
		re = regexp.MustCompile(quoted)
	} else {
		expr := pattern
		if !caseSensitive {
			expr = "(?i)" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, vterrors.Wrap(vterrors.KindInvalidParameters, "invalid pattern", err)
		}
		re = compiled
	}

	matches := make([]map[string]any, 0)
	err := walkSearchable(rootPath, includeHidden, excluded, func(filePath string, lines []string) bool {
		for i, line := range lines {
			if len(matches) >= maxResults {
				return false
			}
			if !re.MatchString(line) {
				continue
			}
			entry := map[string]any{
				"path":        filePath,
				"line_number": i + 1,
				"text":        line,
			}
			if contextLines > 0 {
				entry["before_context"] = contextSlice(lines, i-contextLines, i)
				entry["after_context"] = contextSlice(lines, i+1, i+1+contextLines)
			}
			matches = append(matches, entry)
		}
		return len(matches) < maxResults
	})
	return matches, err
}

func contextSlice(lines []string, start, end int) []string {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return nil
	}
	return append([]string{}, lines[start:end]...)
}

// SimpleSearchTool implements simple_search (§4.4): a literal substring
// scan with the same output shape as grep_search, used when no external
// regex engine is available or a literal-only search is wanted.
type SimpleSearchTool struct {
	guard *pathguard.Guard
}

// NewSimpleSearchTool constructs a simple_search tool.
func NewSimpleSearchTool(guard *pathguard.Guard) *SimpleSearchTool {
	return &SimpleSearchTool{guard: guard}
}

func (t *SimpleSearchTool) Name() string { return "simple_search" }
func (t *SimpleSearchTool) Description() string {
	return "Scan the workspace for a literal substring, line by line."
}

func (t *SimpleSearchTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"pattern":        {Type: "string", Description: "Literal substring to search for."},
			"path":           {Type: "string", Description: "Directory or file to search.", Default: "."},
			"case_sensitive": {Type: "boolean", Description: "Case-sensitive match.", Default: true},
			"include_hidden": {Type: "boolean", Description: "Include dotfiles.", Default: false},
			"max_results":    {Type: "integer", Description: "Maximum matches to return.", Default: defaultMaxSearchResults},
		},
		Required: []string{"pattern"},
	}
}

func (t *SimpleSearchTool) Execute(params map[string]any) (*Result, error) {
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "pattern must not be empty")
	}
	searchPath, _ := params["path"].(string)
	if searchPath == "" {
		searchPath = "."
	}
	resolved, err := t.guard.Resolve(searchPath)
	if err != nil {
		return nil, err
	}

	caseSensitive := true
	if v, ok := params["case_sensitive"].(bool); ok {
		caseSensitive = v
	}
	includeHidden, _ := params["include_hidden"].(bool)
	maxResults := intParam(params["max_results"], defaultMaxSearchResults)
	if maxResults <= 0 {
		maxResults = defaultMaxSearchResults
	}

	matches, err := simpleGrep(resolved, pattern, caseSensitive, true, includeHidden, 0, maxResults, t.guard.IsExcluded)
	if err != nil {
		return nil, err
	}
	return Ok(map[string]any{
		"matches": matches,
		"engine":  "builtin",
	}), nil
}

func intParam(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
