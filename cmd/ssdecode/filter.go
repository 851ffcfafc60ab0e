package main

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/scrogson/sea-streamer/format"
)

// frameFilter wraps a compiled CEL program evaluated against every decoded
// frame. When disabled, eval always returns true.
type frameFilter struct {
	prog    cel.Program
	enabled bool
}

func newFilter(expr string) (frameFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return frameFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("stream_key", cel.StringType),
		cel.Variable("shard", cel.IntType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// parsed JSON payload (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
	)
	if err != nil {
		return frameFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return frameFilter{}, iss.Err()
	}
	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return frameFilter{}, iss.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return frameFilter{}, err
	}
	return frameFilter{prog: prog, enabled: true}, nil
}

// eval evaluates the compiled expression against a frame. a frame that
// fails evaluation is filtered out, not an error.
func (f frameFilter) eval(frame format.Frame) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(frame.Payload, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"stream_key": frame.StreamKey,
		"shard":      int64(frame.ShardID),
		"sequence":   int64(frame.Sequence),
		"ts_ms":      frame.Timestamp.UnixMilli(),
		"size":       int64(len(frame.Payload)),
		"text":       string(frame.Payload),
		"json":       jsonObj,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
