package toolcall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextual_PythonStyleArguments(t *testing.T) {
	calls := ExtractTextual("call\nprint(default_api.read_file(path='CLAUDE.md'))")

	require.Len(t, calls, 1)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.Equal(t, map[string]any{"path": "CLAUDE.md"}, calls[0].Args)
}

func TestExtractTextual_JSONPayload(t *testing.T) {
	calls := ExtractTextual(`print(default_api.write_file({"path": "notes.md", "content": "hi"}))`)

	require.Len(t, calls, 1)
	assert.Equal(t, "write_file", calls[0].Name)
	assert.Equal(t, map[string]any{"path": "notes.md", "content": "hi"}, calls[0].Args)
}

func TestExtractTextual_BooleansAndNumbers(t *testing.T) {
	calls := ExtractTextual(`default_api.search_workspace(query='todo', max_results=5, include_archived=false)`)

	require.Len(t, calls, 1)
	assert.Equal(t, "search_workspace", calls[0].Name)
	assert.Equal(t, map[string]any{
		"query":            "todo",
		"max_results":      int64(5),
		"include_archived": false,
	}, calls[0].Args)
}

func TestExtractTextual_MultipleCallsInOccurrenceOrder(t *testing.T) {
	text := `first default_api.read_file(path='a.go') then default_api.list_files(path='.')`

	calls := ExtractTextual(text)

	require.Len(t, calls, 2)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.Equal(t, "list_files", calls[1].Name)
}

func TestExtractTextual_NoMatchReturnsNil(t *testing.T) {
	assert.Empty(t, ExtractTextual("just some plain text"))
}

func TestExtractTextual_NestedParensInArgs(t *testing.T) {
	calls := ExtractTextual(`default_api.run_terminal_cmd(command="echo (hi)")`)

	require.Len(t, calls, 1)
	assert.Equal(t, "echo (hi)", calls[0].Args["command"])
}
