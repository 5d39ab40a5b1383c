// Package toolcall extracts tool invocations from a model response: the
// structured llm.ToolCall list is authoritative, and this package's
// ExtractTextual is the fallback used only when a response carries no
// structured calls but still asked for a tool in prose, in the shape
// some models emit: default_api.<name>(<args>).
package toolcall

import (
	"encoding/json"
	"strconv"
	"strings"
)

const textualToolPrefix = "default_api."

// Call is one extracted textual tool invocation.
type Call struct {
	Name string
	Args map[string]any
}

// ExtractTextual scans text for every occurrence of the default_api.
// prefix and returns each one that parses, in occurrence order. An
// occurrence with no identifier, no '(' or an argument body that doesn't
// parse is skipped and scanning resumes after it, so one malformed call
// doesn't hide a later well-formed one. An occurrence whose '(' is never
// balanced ends the scan; calls after it are not returned.
func ExtractTextual(text string) []Call {
	var calls []Call
	searchStart := 0

	for {
		offset := strings.Index(text[searchStart:], textualToolPrefix)
		if offset == -1 {
			break
		}
		prefixIndex := searchStart + offset
		nameStart := prefixIndex + len(textualToolPrefix)

		name, nameLen := scanIdentifier(text[nameStart:])
		if nameLen == 0 {
			searchStart = nameStart
			continue
		}

		afterName := text[nameStart+nameLen:]
		parenOffset := strings.Index(afterName, "(")
		if parenOffset == -1 {
			searchStart = nameStart + nameLen
			continue
		}

		argsStart := nameStart + nameLen + parenOffset + 1
		argsEnd, ok := matchParen(text, argsStart)
		if !ok {
			// Unbalanced parens: nothing further in the string can close
			// this call either, so stop scanning entirely.
			break
		}

		rawArgs := text[argsStart:argsEnd]
		if args, ok := parseArguments(rawArgs); ok {
			calls = append(calls, Call{Name: name, Args: args})
		}

		searchStart = argsEnd + 1
	}

	return calls
}

func scanIdentifier(s string) (string, int) {
	n := 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			n += len(string(r))
			continue
		}
		break
	}
	return s[:n], n
}

// matchParen finds the index of the ')' that balances the '(' whose
// contents start at argsStart (depth counting, nested parens inside
// string literals are not tracked separately).
func matchParen(text string, argsStart int) (int, bool) {
	depth := 1
	for i := argsStart; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func parseArguments(raw string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, true
	}

	if val, ok := tryParseJSONObject(trimmed); ok {
		return val, true
	}

	return parseKeyValueArguments(trimmed)
}

func tryParseJSONObject(input string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(input), &obj); err == nil {
		return obj, true
	}
	if strings.Contains(input, "'") {
		normalized := strings.ReplaceAll(input, "'", "\"")
		if err := json.Unmarshal([]byte(normalized), &obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}

func parseKeyValueArguments(input string) (map[string]any, bool) {
	result := map[string]any{}
	for _, segment := range strings.Split(input, ",") {
		pair := strings.TrimSpace(segment)
		if pair == "" {
			continue
		}

		key, valueRaw, ok := splitKeyValue(pair)
		if !ok {
			return nil, false
		}

		key = strings.Trim(strings.TrimSpace(key), `"'`)
		result[key] = parseScalar(strings.TrimSpace(valueRaw))
	}

	if len(result) == 0 {
		return nil, false
	}
	return result, true
}

func splitKeyValue(pair string) (key, value string, ok bool) {
	if idx := strings.Index(pair, "="); idx != -1 {
		return pair[:idx], pair[idx+1:], true
	}
	if idx := strings.Index(pair, ":"); idx != -1 {
		return pair[:idx], pair[idx+1:], true
	}
	return "", "", false
}

// parseScalar follows the §4.10 rule ladder directly (true/false/null,
// then integer, then float, else string) rather than delegating to
// encoding/json, which would collapse every number to float64 and lose
// the int/float distinction the ladder preserves.
func parseScalar(input string) any {
	trimmed := strings.Trim(input, `"'`)
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if trimmed == "" {
		return trimmed
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}
