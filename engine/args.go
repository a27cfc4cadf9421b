package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/petal-labs/toolrun/core"
)

// parseArgs turns the raw argument string into the coerced mapping handed to
// guards and the callable. Defaults fill in omitted schema keys, declared
// keys are coerced to their schema type, and undeclared keys pass through
// unchanged. The raw string itself is never modified; it stays the cache key.
func parseArgs(spec core.Spec, raw string) (map[string]any, *core.InvokeError) {
	parsed := make(map[string]any)
	if strings.TrimSpace(raw) != "" {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, core.NewInvokeError(core.KindBadArgs, err.Error(), false, err)
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			return nil, core.NewInvokeError(core.KindBadArgs, "args_not_object", false, nil)
		}
		parsed = obj
	}

	for k, v := range spec.Defaults {
		if _, present := parsed[k]; !present {
			parsed[k] = v
		}
	}

	for k, typeName := range spec.Schema {
		v, present := parsed[k]
		if !present {
			continue
		}
		coerced, err := coerce(k, typeName, v)
		if err != nil {
			return nil, core.NewInvokeError(core.KindBadArgs, err.Error(), false, err)
		}
		parsed[k] = coerced
	}

	return parsed, nil
}

// coerce converts a decoded JSON value to the declared schema type.
// JSON numbers arrive as float64; integral floats are accepted as integers.
func coerce(field, typeName string, v any) (any, error) {
	switch typeName {
	case core.TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected string, got %T", field, v)
		}
		return s, nil

	case core.TypeInteger:
		switch val := v.(type) {
		case int:
			return val, nil
		case int64:
			return int(val), nil
		case float64:
			if val == math.Trunc(val) {
				return int(val), nil
			}
			return nil, fmt.Errorf("field %q: %v is not an integer", field, val)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return nil, fmt.Errorf("field %q: cannot coerce %q to integer", field, val)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("field %q: expected integer, got %T", field, v)
		}

	case core.TypeFloat:
		switch val := v.(type) {
		case float64:
			return val, nil
		case int:
			return float64(val), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				return nil, fmt.Errorf("field %q: cannot coerce %q to float", field, val)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("field %q: expected float, got %T", field, v)
		}

	case core.TypeBoolean:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
			return nil, fmt.Errorf("field %q: cannot coerce %q to boolean", field, val)
		default:
			return nil, fmt.Errorf("field %q: expected boolean, got %T", field, v)
		}

	default:
		return nil, fmt.Errorf("field %q: unsupported schema type %q", field, typeName)
	}
}
