// Package tools holds the callable tools the researcher exposes to the model
// and the registry that dispatches tool calls. Handlers are total: any
// failure is folded into a {"status":"error"} envelope so the model always
// receives well-formed JSON and the loop never aborts on a bad tool run.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// Handler executes a tool with raw JSON arguments. The returned value is
// marshalled as the tool result; it should carry a "status" field.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string
	// Schema is the JSON Schema for the arguments object.
	Schema  json.RawMessage
	Handler Handler
}

// Registry holds the available tools keyed by name.
type Registry struct {
	defs map[string]Definition
	// Timeout bounds each invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 90 * time.Second

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds or replaces a tool after validating its definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || !nameRe.MatchString(def.Name) {
		return fmt.Errorf("invalid tool name %q: must be lowercase snake_case", def.Name)
	}
	if len(def.Schema) == 0 || !json.Valid(def.Schema) {
		return fmt.Errorf("tool %s: schema must be valid JSON", def.Name)
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s: handler must not be nil", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns OpenAI-compatible tool specs in deterministic order.
func (r *Registry) Specs() []openai.Tool {
	names := r.Names()
	out := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		def := r.defs[name]
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Schema,
			},
		})
	}
	return out
}

// Invoke runs the named tool and always returns a JSON document. Unknown
// tools, handler errors, panics in marshalling and timeouts all surface as
// {"status":"error"} envelopes rather than Go errors.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) json.RawMessage {
	def, ok := r.defs[name]
	if !ok {
		return errorEnvelope(name, fmt.Sprintf("unknown tool %q", name))
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	result, err := r.call(ctx, def, args)
	elapsed := time.Since(started)
	if err != nil {
		log.Warn().Str("tool", name).Dur("elapsed", elapsed).Err(err).Msg("tool failed")
		return errorEnvelope(name, err.Error())
	}
	raw, err := json.Marshal(result)
	if err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("tool result not marshallable")
		return errorEnvelope(name, "tool result not marshallable: "+err.Error())
	}
	log.Debug().Str("tool", name).Dur("elapsed", elapsed).Int("bytes", len(raw)).Msg("tool completed")
	return raw
}

// call runs the handler, converting a panic into an ordinary error.
func (r *Registry) call(ctx context.Context, def Definition, args json.RawMessage) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return def.Handler(ctx, args)
}

func errorEnvelope(tool, msg string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"status": "error",
		"tool":   tool,
		"error":  msg,
	})
	return raw
}

// ResultsList flattens a tool result document into a list of result objects.
// Error envelopes yield nil. A document with a "results" array yields its
// elements; any other object is wrapped as a single-element list.
func ResultsList(raw json.RawMessage) []map[string]any {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	if status, _ := doc["status"].(string); status == "error" {
		return nil
	}
	if items, ok := doc["results"].([]any); ok {
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return []map[string]any{doc}
}
