// Package builtin provides the built-in tools shipped with the toolrun CLI
// and daemon. They double as realistic fixtures for exercising the engine:
// echo and sum are synchronous, sleep is asynchronous and timeout-sensitive,
// and template_render carries non-trivial input validation.
package builtin

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/petal-labs/toolrun/core"
)

var builtinTools = map[string]core.Tool{
	"echo":            echoTool(),
	"sum":             sumTool(),
	"sleep":           sleepTool(),
	"template_render": templateRenderTool(),
}

// Tools returns all built-in tools in deterministic order.
func Tools() []core.Tool {
	names := make([]string, 0, len(builtinTools))
	for name := range builtinTools {
		names = append(names, name)
	}
	slices.Sort(names)

	tools := make([]core.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, builtinTools[name])
	}
	return tools
}

// Lookup returns a built-in tool by name.
func Lookup(name string) (core.Tool, bool) {
	t, ok := builtinTools[name]
	return t, ok
}

// NewRegistry returns a registry pre-populated with every built-in tool.
func NewRegistry() *core.Registry {
	return core.NewRegistry(Tools()...)
}

func echoTool() core.Tool {
	return core.Tool{
		Name: "echo",
		Spec: core.Spec{
			Schema:   map[string]string{"message": core.TypeString, "upper": core.TypeBoolean},
			Defaults: map[string]any{"upper": false},
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			msg, _ := args["message"].(string)
			if upper, _ := args["upper"].(bool); upper {
				msg = strings.ToUpper(msg)
			}
			return map[string]any{"message": msg}, nil
		},
	}
}

func sumTool() core.Tool {
	return core.Tool{
		Name: "sum",
		Spec: core.Spec{
			Schema:   map[string]string{"a": core.TypeInteger, "b": core.TypeInteger},
			Defaults: map[string]any{"b": 0},
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			a, ok := args["a"].(int)
			if !ok {
				return nil, core.NewUserError("sum requires argument %q", "a")
			}
			b, _ := args["b"].(int)
			return map[string]any{"total": a + b}, nil
		},
	}
}

func sleepTool() core.Tool {
	return core.Tool{
		Name: "sleep",
		Spec: core.Spec{
			Schema:   map[string]string{"duration_ms": core.TypeInteger},
			Defaults: map[string]any{"duration_ms": 10},
		},
		AsyncFn: func(ctx context.Context, args map[string]any) (any, error) {
			ms, _ := args["duration_ms"].(int)
			timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
				return map[string]any{"slept_ms": ms}, nil
			}
		},
	}
}

func templateRenderTool() core.Tool {
	return core.Tool{
		Name: "template_render",
		Spec: core.Spec{
			Schema: map[string]string{"template": core.TypeString},
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			text, ok := args["template"].(string)
			if !ok || text == "" {
				return nil, core.NewUserError("template_render requires argument %q", "template")
			}
			tmpl, err := template.New("render").Option("missingkey=error").Parse(text)
			if err != nil {
				return nil, core.NewUserError("invalid template: %v", err)
			}

			// Undeclared keys pass through parsing, so the whole argument
			// mapping is available as template data.
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, args); err != nil {
				return nil, core.NewUserError("template execution: %v", err)
			}
			return map[string]any{"rendered": buf.String()}, nil
		},
	}
}
