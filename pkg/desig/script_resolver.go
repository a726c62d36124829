package desig

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"

	"github.com/openrove/openrove/pkg/world"
)

// defaultScriptTimeout bounds a candidate script evaluation.
const defaultScriptTimeout = 5 * time.Second

// ScriptResolver evaluates a Starlark script to generate location
// candidates. The script must define a function
//
//	def candidates(props):
//	    return [{"x": ..., "y": ..., "z": ..., "yaw": ...}, ...]
//
// which receives the designator properties and returns candidate poses,
// best first. Scripts are pure: no I/O, no print, bounded run time.
type ScriptResolver struct {
	name    string
	script  string
	timeout time.Duration
}

// NewScriptResolver creates a resolver from Starlark source. A
// non-positive timeout selects the default.
func NewScriptResolver(name, script string, timeout time.Duration) *ScriptResolver {
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	return &ScriptResolver{
		name:    name,
		script:  script,
		timeout: timeout,
	}
}

// Candidates implements Resolver by running the script.
func (r *ScriptResolver) Candidates(ctx context.Context, props map[string]interface{}) ([]world.Pose, error) {
	evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: r.name,
		Print: func(_ *starlark.Thread, _ string) {
			// Scripts are pure; print output is dropped.
		},
	}

	type result struct {
		poses []world.Pose
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		poses, err := r.evaluate(thread, props)
		resultCh <- result{poses, err}
	}()

	select {
	case <-evalCtx.Done():
		// Stop the interpreter so the evaluation goroutine exits promptly.
		thread.Cancel("evaluation timeout")
		<-resultCh
		return nil, fmt.Errorf("candidate script %s: evaluation timeout after %v", r.name, r.timeout)
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("candidate script %s: %w", r.name, res.err)
		}
		return res.poses, nil
	}
}

func (r *ScriptResolver) evaluate(thread *starlark.Thread, props map[string]interface{}) ([]world.Pose, error) {
	propsValue, err := toStarlarkValue(props)
	if err != nil {
		return nil, fmt.Errorf("failed to convert properties: %w", err)
	}

	globals, err := starlark.ExecFile(thread, r.name+".star", r.script, nil)
	if err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}

	fn, ok := globals["candidates"]
	if !ok {
		return nil, fmt.Errorf("script does not define candidates(props)")
	}

	value, err := starlark.Call(thread, fn, starlark.Tuple{propsValue}, nil)
	if err != nil {
		return nil, fmt.Errorf("candidates() failed: %w", err)
	}

	list, ok := value.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("candidates() must return a list, got %s", value.Type())
	}

	poses := make([]world.Pose, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		item, err := fromStarlarkValue(list.Index(i))
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		dict, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("candidate %d: expected a dict, got %T", i, item)
		}
		pose, err := poseFromDict(dict)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		poses = append(poses, pose)
	}
	return poses, nil
}

func poseFromDict(dict map[string]interface{}) (world.Pose, error) {
	var pose world.Pose
	for key, value := range dict {
		f, err := toFloat(value)
		if err != nil {
			return world.Pose{}, fmt.Errorf("field %s: %w", key, err)
		}
		switch key {
		case "x":
			pose.X = f
		case "y":
			pose.Y = f
		case "z":
			pose.Z = f
		case "yaw":
			pose.Yaw = f
		default:
			return world.Pose{}, fmt.Errorf("unknown pose field %q", key)
		}
	}
	return pose, nil
}

func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkItem); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
