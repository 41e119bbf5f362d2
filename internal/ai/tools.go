package ai

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
)

// ToolHandler executes one tool call. It receives the raw JSON arguments the
// model produced and returns the JSON-encoded result fed back to the model.
type ToolHandler func(ctx context.Context, arguments json.RawMessage) (string, error)

// ToolDefinition describes a single tool in the registry.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any // JSON Schema for the tool's input parameters
	Handler     ToolHandler
}

// ToolRegistry holds the tools available to one model invocation, in
// registration order. Handlers are usually closures bound to the calling store.
type ToolRegistry struct {
	tools []ToolDefinition
	index map[string]int
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{index: make(map[string]int)}
}

// Register adds t. Registering a name twice replaces the earlier definition
// and keeps its position.
func (r *ToolRegistry) Register(t ToolDefinition) {
	if i, ok := r.index[t.Name]; ok {
		r.tools[i] = t
		return
	}
	r.index[t.Name] = len(r.tools)
	r.tools = append(r.tools, t)
}

func (r *ToolRegistry) Get(name string) (ToolDefinition, bool) {
	if r == nil {
		return ToolDefinition{}, false
	}
	i, ok := r.index[name]
	if !ok {
		return ToolDefinition{}, false
	}
	return r.tools[i], true
}

func (r *ToolRegistry) All() []ToolDefinition {
	if r == nil {
		return nil
	}
	return r.tools
}

func (r *ToolRegistry) Len() int { return len(r.All()) }

// Names lists registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	out := make([]string, 0, r.Len())
	for _, t := range r.All() {
		out = append(out, t.Name)
	}
	return out
}

// ToOpenAITools converts the registry to the Responses API tool format.
// Schemas are not strict: optional parameters stay optional.
func (r *ToolRegistry) ToOpenAITools() []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, 0, r.Len())
	for _, t := range r.All() {
		out = append(out, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.InputSchema,
				Strict:      openai.Bool(false),
			},
		})
	}
	return out
}
