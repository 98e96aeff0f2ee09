package toolsurface

import "github.com/mark3labs/mcp-go/mcp"

// arguments extracts the raw argument map from an MCP call request. mcp-go
// decodes tool arguments into a bare map[string]interface{} before the
// handler runs; a missing or malformed Arguments field degrades to an empty
// map rather than a panic.
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func argString(args map[string]interface{}, key string) string {
	v, ok := args[key].(string)
	if !ok {
		return ""
	}
	return v
}

// argInt reads a numeric argument. JSON numbers arrive as float64 once
// decoded into interface{}; a missing or non-numeric value yields 0, which
// callers treat as "unset" and fall back to a default.
func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func argStringMap(args map[string]interface{}, key string) map[string]string {
	raw, ok := args[key].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = ""
	}
	return out
}
