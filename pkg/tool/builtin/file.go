package builtin

import (
	"os"
	"path/filepath"
	"time"

	"github.com/vinhnx/vtcode/pkg/cache"
	vterrors "github.com/vinhnx/vtcode/pkg/errors"
	"github.com/vinhnx/vtcode/pkg/pathguard"
)

const defaultMaxReadBytes = 1 << 20 // 1MiB

// cachedRead is what ReadFileTool stores per path: the content plus the
// stat fields it was read under, so a stale hit (size or mtime changed
// since) is detected and treated as a miss rather than served wrong.
type cachedRead struct {
	content  string
	size     int64
	modTime  time.Time
	encoding string
}

// ReadFileTool implements read_file (§4.4): resolves via the path guard,
// reads up to max_bytes, and caches by path, keyed additionally on
// (size, mtime) to detect staleness.
type ReadFileTool struct {
	guard *pathguard.Guard
	cache *cache.Cache
}

// NewReadFileTool constructs a read_file tool backed by guard and a
// content cache (may be nil to disable caching).
func NewReadFileTool(guard *pathguard.Guard, c *cache.Cache) *ReadFileTool {
	return &ReadFileTool{guard: guard, cache: c}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read a file's contents from the workspace." }

func (t *ReadFileTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path":      {Type: "string", Description: "Path to the file to read, relative to the workspace root."},
			"max_bytes": {Type: "integer", Description: "Maximum bytes to read.", Default: defaultMaxReadBytes},
			"encoding":  {Type: "string", Description: "Text encoding of the file.", Default: "utf-8"},
		},
		Required: []string{"path"},
	}
}

func (t *ReadFileTool) Execute(params map[string]any) (*Result, error) {
	path, _ := params["path"].(string)
	resolved, err := t.guard.Resolve(path)
	if err != nil {
		return nil, err
	}

	maxBytes := int64(defaultMaxReadBytes)
	if v, ok := toInt64Param(params["max_bytes"]); ok && v > 0 {
		maxBytes = v
	}
	encoding, _ := params["encoding"].(string)
	if encoding == "" {
		encoding = "utf-8"
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vterrors.Wrap(vterrors.KindResourceNotFound, "file does not exist", err)
		}
		return nil, vterrors.Wrap(vterrors.KindInternal, "stat file", err)
	}

	if t.cache != nil {
		if cached, ok := t.cache.Get(resolved); ok {
			if cr, ok := cached.(cachedRead); ok && cr.size == info.Size() && cr.modTime.Equal(info.ModTime()) {
				return Ok(map[string]any{
					"content":   cr.content,
					"size":      cr.size,
					"truncated": false,
					"encoding":  cr.encoding,
				}), nil
			}
			t.cache.Invalidate(resolved)
		}
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "open file", err)
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 && info.Size() > 0 {
		return nil, vterrors.Wrap(vterrors.KindInternal, "read file", err)
	}
	content := string(buf[:n])
	truncated := info.Size() > int64(n)

	if t.cache != nil && !truncated {
		t.cache.Put(resolved, cachedRead{
			content:  content,
			size:     info.Size(),
			modTime:  info.ModTime(),
			encoding: encoding,
		}, int64(n))
	}

	return Ok(map[string]any{
		"content":   content,
		"size":      info.Size(),
		"truncated": truncated,
		"encoding":  encoding,
	}), nil
}

// WriteFileTool implements write_file (§4.4).
type WriteFileTool struct {
	guard *pathguard.Guard
	cache *cache.Cache
}

// NewWriteFileTool constructs a write_file tool.
func NewWriteFileTool(guard *pathguard.Guard, c *cache.Cache) *WriteFileTool {
	return &WriteFileTool{guard: guard, cache: c}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file in the workspace, creating or overwriting it."
}

func (t *WriteFileTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path":        {Type: "string", Description: "Path to write, relative to the workspace root."},
			"content":     {Type: "string", Description: "Content to write."},
			"mode":        {Type: "string", Description: "overwrite | append | skip_if_exists", Default: "overwrite", Enum: []string{"overwrite", "append", "skip_if_exists"}},
			"encoding":    {Type: "string", Description: "Text encoding.", Default: "utf-8"},
			"create_dirs": {Type: "boolean", Description: "Create missing parent directories.", Default: false},
		},
		Required: []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(params map[string]any) (*Result, error) {
	path, _ := params["path"].(string)
	content, _ := params["content"].(string)
	mode, _ := params["mode"].(string)
	if mode == "" {
		mode = "overwrite"
	}
	createDirs, _ := params["create_dirs"].(bool)

	resolved, err := t.guard.ForCreate(path)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(resolved); statErr == nil && mode == "skip_if_exists" {
		return Ok(map[string]any{"skipped": true}), nil
	}

	parent := filepath.Dir(resolved)
	if _, statErr := os.Stat(parent); statErr != nil {
		if !createDirs {
			return nil, vterrors.New(vterrors.KindInvalidParameters, "parent directory does not exist; set create_dirs to create it")
		}
		if mkErr := os.MkdirAll(parent, 0o755); mkErr != nil {
			return nil, vterrors.Wrap(vterrors.KindInternal, "create parent directories", mkErr)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if mode == "append" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "open file for write", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return nil, vterrors.Wrap(vterrors.KindInternal, "write file", err)
	}
	if err := f.Close(); err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "close file", err)
	}

	if t.cache != nil {
		t.cache.Invalidate(resolved)
	}
	return Ok(map[string]any{"bytes_written": len(content), "mode": mode}), nil
}

func toInt64Param(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
