package tool

import (
	"encoding/json"

	"github.com/vinhnx/vtcode/pkg/tool/builtin"
)

// ResultSizeLimit truncates oversized tool results to maxBytes of
// marshaled JSON, by truncating string fields first and falling back to
// a bare truncated marker if that alone isn't enough.
func ResultSizeLimit(maxBytes int, suffix string) Middleware {
	return func(next Executor) Executor {
		return func(ctx *ExecutionContext) (*builtin.Result, error) {
			res, err := next(ctx)
			if res == nil || maxBytes <= 0 || sizeFits(res, maxBytes) {
				return res, err
			}

			setTruncationMetadata(ctx)
			target := maxBytes / 2
			if target <= 0 {
				target = maxBytes
			}
			res.Fields = truncateMapStrings(res.Fields, target, suffix)
			if len(res.Error) > target {
				res.Error = truncateString(res.Error, target, suffix)
			}
			if sizeFits(res, maxBytes) {
				return res, err
			}

			res.Fields = map[string]any{"truncated": true}
			return res, err
		}
	}
}

func sizeFits(res *builtin.Result, maxBytes int) bool {
	if res == nil {
		return true
	}
	data, err := json.Marshal(res)
	if err != nil {
		return false
	}
	return len(data) <= maxBytes
}

func truncateMapStrings(data map[string]any, max int, suffix string) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, val := range data {
		if s, ok := val.(string); ok {
			out[key] = truncateString(s, max, suffix)
		} else {
			out[key] = val
		}
	}
	return out
}

func truncateString(value string, max int, suffix string) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	if max <= len(suffix) {
		return value[:max]
	}
	return value[:max-len(suffix)] + suffix
}

func setTruncationMetadata(ctx *ExecutionContext) {
	if ctx == nil {
		return
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	ctx.Metadata["result_truncated"] = true
}
