package engine

// Flag keys a tool output map can set to opt into a normalization shape.
const (
	// normEchoRawKey asks normalization to attach the verbatim raw argument
	// string under "raw".
	normEchoRawKey = "_echo_raw"

	// normWrapKey asks normalization to wrap the map as
	// {"tool": <name>, "data": <map without the flag>}.
	normWrapKey = "_wrap"
)

// normalize converts a successful raw tool output into the stable shape
// reported in ToolResult.Output and handed to output guards. The transform
// is identity except for the documented cases; the input map is never
// mutated.
func normalize(toolName string, out any, raw string) any {
	if out == nil {
		return "null"
	}

	if b, ok := out.([]byte); ok {
		return map[string]any{"type": "bytes", "len": len(b)}
	}

	if m, ok := out.(map[string]any); ok {
		if flag, _ := m[normEchoRawKey].(bool); flag {
			echoed := copyMap(m)
			echoed["raw"] = raw
			return echoed
		}
		if flag, _ := m[normWrapKey].(bool); flag {
			data := copyMap(m)
			delete(data, normWrapKey)
			return map[string]any{"tool": toolName, "data": data}
		}
	}

	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
