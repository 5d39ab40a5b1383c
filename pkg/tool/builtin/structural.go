package builtin

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/pathguard"
)

// SymbolMatch is one structural match returned by ast_grep_search or
// find_symbol.
type SymbolMatch struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Kind    string `json:"kind,omitempty"`
	Text    string `json:"matched_text,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// StructuralSearcher is the capability ast_grep_search, find_symbol, and
// explain_context delegate to. Tree-sitter-backed and ast-grep-backed
// implementations are consumed as opaque providers of this interface; the
// in-repo default is a regex-based approximation.
type StructuralSearcher interface {
	// Search finds occurrences of pattern within path for language,
	// returning proposed rewrites when replacement is non-empty.
	Search(path, language, pattern, replacement string) ([]SymbolMatch, error)
	// FindSymbol locates declarations of symbol within path.
	FindSymbol(path, language, symbol string) ([]SymbolMatch, error)
	// EnclosingBlock returns the text of the function/block enclosing line.
	EnclosingBlock(path string, line int) (string, error)
}

// DefaultStructuralSearcher is a dependency-free regex approximation of
// structural search: it recognizes common declaration keywords per
// language family rather than parsing a real syntax tree.
type DefaultStructuralSearcher struct{}

func NewDefaultStructuralSearcher() *DefaultStructuralSearcher { return &DefaultStructuralSearcher{} }

var declKeywordsByLanguage = map[string][]string{
	"go":         {"func", "type", "var", "const"},
	"python":     {"def", "class"},
	"javascript": {"function", "class", "const", "let"},
	"typescript": {"function", "class", "interface", "const", "let"},
	"rust":       {"fn", "struct", "enum", "impl", "trait"},
	"java":       {"class", "interface", "void", "public"},
}

func (s *DefaultStructuralSearcher) Search(path, language, pattern, replacement string) ([]SymbolMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInvalidParameters, "invalid structural pattern", err)
	}

	var matches []SymbolMatch
	err = walkSearchable(path, false, nil, func(filePath string, lines []string) bool {
		for i, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			m := SymbolMatch{Path: filePath, Line: i + 1, Text: line}
			if replacement != "" {
				m.Snippet = re.ReplaceAllString(line, replacement)
			}
			matches = append(matches, m)
		}
		return true
	})
	return matches, err
}

func (s *DefaultStructuralSearcher) FindSymbol(path, language, symbol string) ([]SymbolMatch, error) {
	keywords := declKeywordsByLanguage[strings.ToLower(language)]
	if len(keywords) == 0 {
		for _, kws := range declKeywordsByLanguage {
			keywords = append(keywords, kws...)
		}
	}
	escaped := regexp.QuoteMeta(symbol)
	pattern := fmt.Sprintf(`\b(%s)\b.{0,40}\b%s\b`, strings.Join(keywords, "|"), escaped)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "compile symbol pattern", err)
	}

	var matches []SymbolMatch
	err = walkSearchable(path, false, nil, func(filePath string, lines []string) bool {
		for i, line := range lines {
			loc := re.FindStringSubmatchIndex(line)
			if loc == nil {
				continue
			}
			kind := line[loc[2]:loc[3]]
			matches = append(matches, SymbolMatch{Path: filePath, Line: i + 1, Kind: kind, Text: strings.TrimSpace(line)})
		}
		return true
	})
	return matches, err
}

func (s *DefaultStructuralSearcher) EnclosingBlock(path string, line int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", vterrors.Wrap(vterrors.KindResourceNotFound, "open file", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if line < 1 || line > len(lines) {
		return "", vterrors.New(vterrors.KindInvalidParameters, "line is out of range")
	}

	start := line - 1
	for start > 0 && !isBlockStart(lines[start-1]) {
		start--
	}
	if start > 0 {
		start--
	}

	depth := 0
	end := line - 1
	opened := false
	for i := start; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if strings.Contains(lines[i], "{") {
			opened = true
		}
		if opened && depth <= 0 {
			end = i
			break
		}
		end = i
	}

	return strings.Join(lines[start:end+1], "\n"), nil
}

func isBlockStart(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, kws := range declKeywordsByLanguage {
		for _, kw := range kws {
			if strings.HasPrefix(trimmed, kw+" ") {
				return true
			}
		}
	}
	return false
}

// AstGrepSearchTool implements ast_grep_search (§4.4): structural pattern
// search with optional proposed rewrites, delegated to a StructuralSearcher.
type AstGrepSearchTool struct {
	guard    *pathguard.Guard
	searcher StructuralSearcher
}

func NewAstGrepSearchTool(guard *pathguard.Guard, searcher StructuralSearcher) *AstGrepSearchTool {
	return &AstGrepSearchTool{guard: guard, searcher: searcher}
}

func (t *AstGrepSearchTool) Name() string { return "ast_grep_search" }
func (t *AstGrepSearchTool) Description() string {
	return "Search for a structural code pattern, optionally proposing a rewrite."
}

func (t *AstGrepSearchTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"pattern":     {Type: "string", Description: "Structural pattern to search for."},
			"path":        {Type: "string", Description: "Directory or file to search."},
			"language":    {Type: "string", Description: "Source language."},
			"replacement": {Type: "string", Description: "Proposed replacement, not applied automatically."},
		},
		Required: []string{"pattern", "path", "language"},
	}
}

func (t *AstGrepSearchTool) Execute(params map[string]any) (*Result, error) {
	pattern, _ := params["pattern"].(string)
	path, _ := params["path"].(string)
	language, _ := params["language"].(string)
	replacement, _ := params["replacement"].(string)
	if pattern == "" || path == "" {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "pattern and path are required")
	}

	resolved, err := t.guard.Resolve(path)
	if err != nil {
		return nil, err
	}
	matches, err := t.searcher.Search(resolved, language, pattern, replacement)
	if err != nil {
		return nil, err
	}
	return Ok(map[string]any{"matches": matches}), nil
}

// FindSymbolTool implements find_symbol (§4.4 [EXPANSION]).
type FindSymbolTool struct {
	guard    *pathguard.Guard
	searcher StructuralSearcher
}

func NewFindSymbolTool(guard *pathguard.Guard, searcher StructuralSearcher) *FindSymbolTool {
	return &FindSymbolTool{guard: guard, searcher: searcher}
}

func (t *FindSymbolTool) Name() string { return "find_symbol" }
func (t *FindSymbolTool) Description() string {
	return "Find declarations of a symbol across the workspace."
}

func (t *FindSymbolTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"symbol":   {Type: "string", Description: "Symbol name to locate."},
			"path":     {Type: "string", Description: "Directory or file to search."},
			"language": {Type: "string", Description: "Source language, used to pick declaration keywords."},
		},
		Required: []string{"symbol", "path"},
	}
}

func (t *FindSymbolTool) Execute(params map[string]any) (*Result, error) {
	symbol, _ := params["symbol"].(string)
	path, _ := params["path"].(string)
	language, _ := params["language"].(string)
	if symbol == "" || path == "" {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "symbol and path are required")
	}

	resolved, err := t.guard.Resolve(path)
	if err != nil {
		return nil, err
	}
	matches, err := t.searcher.FindSymbol(resolved, language, symbol)
	if err != nil {
		return nil, err
	}
	return Ok(map[string]any{"matches": matches}), nil
}

// ExplainContextTool implements explain_context (§4.4 [EXPANSION]): returns
// the enclosing function/block around a line, so the model can reason
// about it without requesting a full file read.
type ExplainContextTool struct {
	guard    *pathguard.Guard
	searcher StructuralSearcher
}

func NewExplainContextTool(guard *pathguard.Guard, searcher StructuralSearcher) *ExplainContextTool {
	return &ExplainContextTool{guard: guard, searcher: searcher}
}

func (t *ExplainContextTool) Name() string { return "explain_context" }
func (t *ExplainContextTool) Description() string {
	return "Return the function or block enclosing a given line, for targeted reasoning."
}

func (t *ExplainContextTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path": {Type: "string", Description: "File to inspect."},
			"line": {Type: "integer", Description: "1-indexed line within the enclosing block."},
		},
		Required: []string{"path", "line"},
	}
}

func (t *ExplainContextTool) Execute(params map[string]any) (*Result, error) {
	path, _ := params["path"].(string)
	line := intParam(params["line"], 0)
	if path == "" || line < 1 {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "path and a positive line are required")
	}

	resolved, err := t.guard.Resolve(path)
	if err != nil {
		return nil, err
	}
	block, err := t.searcher.EnclosingBlock(resolved, line)
	if err != nil {
		return nil, err
	}
	return Ok(map[string]any{"block": block}), nil
}
