// Package tools defines the fixed set of data-query operations exposed to
// the language model.
//
// Every tool is total from the model's perspective: whatever goes wrong,
// the handler returns a well-formed JSON string carrying an "error" key
// instead of an error value, because the model can only reason over
// textual tool output.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Param types understood by the registry and the provider adapters.
const (
	TypeString  = "string"
	TypeInteger = "integer"
)

// Param declares one tool argument.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Args holds decoded tool-call arguments.
type Args map[string]any

// String returns the named string argument, or fallback when absent.
func (a Args) String(name, fallback string) string {
	v, ok := a[name]
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// Int returns the named integer argument, or fallback when absent.
// JSON numbers decode as float64, so both forms are accepted.
func (a Args) Int(name string, fallback int) int {
	v, ok := a[name]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}

// Tool is one named operation the model may invoke.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     func(ctx context.Context, args Args) string
}

// Registry is the closed, enumerable set of tools.
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
}

func newRegistry(tools ...*Tool) *Registry {
	r := &Registry{byName: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		r.tools = append(r.tools, t)
		r.byName[t.Name] = t
	}
	return r
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []*Tool {
	return r.tools
}

// Dispatch looks up a tool by name, validates the raw JSON arguments
// against its declared parameters and runs it. The returned string is
// always JSON; dispatch-level problems come back as {"error": ...} exactly
// like handler-level ones.
func (r *Registry) Dispatch(ctx context.Context, name string, rawArgs string) string {
	tool, ok := r.byName[name]
	if !ok {
		return errorJSON(fmt.Sprintf("unknown tool %q", name))
	}

	args := Args{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return errorJSON(fmt.Sprintf("malformed arguments for %s: %v", name, err))
		}
	}

	if msg := validateArgs(tool, args); msg != "" {
		return errorJSON(msg)
	}

	return tool.Handler(ctx, args)
}

// validateArgs checks required parameters and value types. Extra keys the
// model invents are ignored rather than rejected.
func validateArgs(tool *Tool, args Args) string {
	for _, p := range tool.Params {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return fmt.Sprintf("missing required argument %q for %s", p.Name, tool.Name)
			}
			continue
		}
		switch p.Type {
		case TypeString:
			if _, ok := v.(string); !ok {
				return fmt.Sprintf("argument %q of %s must be a string", p.Name, tool.Name)
			}
		case TypeInteger:
			f, ok := v.(float64)
			if !ok || f != float64(int(f)) {
				return fmt.Sprintf("argument %q of %s must be an integer", p.Name, tool.Name)
			}
		}
	}
	return ""
}

// errorJSON builds the {"error": ...} payload tools return on failure.
func errorJSON(message string) string {
	return marshalJSON(map[string]any{"error": message})
}

// errorJSONWithHint adds a recovery hint for the model.
func errorJSONWithHint(message, hint string) string {
	return marshalJSON(map[string]any{"error": message, "hint": hint})
}

// marshalJSON encodes v, falling back to a static error payload so tool
// output is JSON no matter what.
func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"error": "failed to encode tool result"}`
	}
	return string(data)
}
