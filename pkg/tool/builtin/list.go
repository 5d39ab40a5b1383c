package builtin

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/pathguard"
)

const defaultPerPage = 50

// ListFilesTool implements list_files (§4.4): four modes over the
// workspace tree, all excluding gitignored paths via the path guard, all
// paginated with {page, per_page}.
type ListFilesTool struct {
	guard *pathguard.Guard
}

// NewListFilesTool constructs a list_files tool.
func NewListFilesTool(guard *pathguard.Guard) *ListFilesTool {
	return &ListFilesTool{guard: guard}
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Description() string {
	return "List, recursively list, or search for files and content under a workspace path."
}

func (t *ListFilesTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path":            {Type: "string", Description: "Directory to list.", Default: "."},
			"mode":            {Type: "string", Description: "list | recursive | find_name | find_content", Default: "list", Enum: []string{"list", "recursive", "find_name", "find_content"}},
			"max_items":       {Type: "integer", Description: "Maximum entries to return."},
			"include_hidden":  {Type: "boolean", Description: "Include dotfiles.", Default: false},
			"name_pattern":    {Type: "string", Description: "Glob for find_name mode."},
			"content_pattern": {Type: "string", Description: "Regex for find_content mode."},
			"file_extensions": {Type: "array", Description: "Restrict results to these extensions.", Items: &PropertySchema{Type: "string"}},
			"case_sensitive":  {Type: "boolean", Description: "Case-sensitive name/content matching.", Default: true},
			"page":            {Type: "integer", Description: "1-indexed page number.", Default: 1},
			"per_page":        {Type: "integer", Description: "Entries per page.", Default: defaultPerPage},
		},
		Required: []string{},
	}
}

func (t *ListFilesTool) Execute(params map[string]any) (*Result, error) {
	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}
	resolved, err := t.guard.Resolve(path)
	if err != nil {
		return nil, err
	}

	mode, _ := params["mode"].(string)
	if mode == "" {
		mode = "list"
	}
	includeHidden, _ := params["include_hidden"].(bool)
	caseSensitive := true
	if v, ok := params["case_sensitive"].(bool); ok {
		caseSensitive = v
	}
	exts := stringSlice(params["file_extensions"])

	var entries []string
	switch mode {
	case "list":
		entries, err = listDir(resolved, includeHidden, t.guard.IsExcluded)
	case "recursive":
		entries, err = findByPattern(resolved, includeHidden, t.guard.IsExcluded, "*", caseSensitive, exts)
	case "find_name":
		namePattern, _ := params["name_pattern"].(string)
		if namePattern == "" {
			namePattern = "*"
		}
		entries, err = findByPattern(resolved, includeHidden, t.guard.IsExcluded, namePattern, caseSensitive, exts)
	case "find_content":
		contentPattern, _ := params["content_pattern"].(string)
		if contentPattern == "" {
			return nil, vterrors.New(vterrors.KindInvalidParameters, "content_pattern is required for find_content mode")
		}
		entries, err = findByContent(resolved, includeHidden, t.guard.IsExcluded, contentPattern, caseSensitive, exts)
	default:
		return nil, vterrors.New(vterrors.KindInvalidParameters, "unknown mode: "+mode)
	}
	if err != nil {
		return nil, err
	}

	if maxItems, ok := toInt64Param(params["max_items"]); ok && maxItems > 0 && int64(len(entries)) > maxItems {
		entries = entries[:maxItems]
	}

	page := intParam(params["page"], 1)
	if page < 1 {
		page = 1
	}
	perPage := intParam(params["per_page"], defaultPerPage)
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	total := len(entries)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return Ok(map[string]any{
		"files":         entries[start:end],
		"page":          page,
		"per_page":      perPage,
		"has_more":      end < total,
		"total_if_known": total,
	}), nil
}

func listDir(dir string, includeHidden bool, excluded func(string) bool) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vterrors.Wrap(vterrors.KindResourceNotFound, "directory does not exist", err)
		}
		return nil, vterrors.Wrap(vterrors.KindInternal, "list directory", err)
	}
	out := make([]string, 0, len(des))
	for _, d := range des {
		if !includeHidden && strings.HasPrefix(d.Name(), ".") {
			continue
		}
		full := filepath.Join(dir, d.Name())
		if excluded != nil && excluded(full) {
			continue
		}
		name := d.Name()
		if d.IsDir() {
			name += "/"
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func findByPattern(root string, includeHidden bool, excluded func(string) bool, namePattern string, caseSensitive bool, exts []string) ([]string, error) {
	var out []string
	matchName := namePattern
	if !caseSensitive {
		matchName = strings.ToLower(matchName)
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != root && !includeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded != nil && excluded(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !hasAllowedExtension(path, exts) {
			return nil
		}
		name := d.Name()
		if !caseSensitive {
			name = strings.ToLower(name)
		}
		if ok, _ := filepath.Match(matchName, name); ok {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func findByContent(root string, includeHidden bool, excluded func(string) bool, pattern string, caseSensitive bool, exts []string) ([]string, error) {
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInvalidParameters, "invalid content_pattern", err)
	}

	seen := map[string]bool{}
	var out []string
	walkErr := walkSearchable(root, includeHidden, excluded, func(path string, lines []string) bool {
		if !hasAllowedExtension(path, exts) {
			return true
		}
		for _, line := range lines {
			if re.MatchString(line) {
				if !seen[path] {
					seen[path] = true
					out = append(out, path)
				}
				break
			}
		}
		return true
	})
	sort.Strings(out)
	return out, walkErr
}

func hasAllowedExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, e := range exts {
		if strings.EqualFold(ext, strings.TrimPrefix(e, ".")) {
			return true
		}
	}
	return false
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
