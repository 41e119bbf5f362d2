package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

var ErrStepBudgetExhausted = errors.New("model step budget exhausted")

// OutputFormat asks the model for a final answer matching Schema.
type OutputFormat struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Invocation is one bounded conversation with the model.
type Invocation struct {
	SystemPrompt string
	UserPrompt   string
	Tools        *ToolRegistry
	// MaxSteps caps model calls. The last step may not call tools.
	MaxSteps int
	Output   *OutputFormat
}

// ToolInvocation records one tool call made during an invocation.
type ToolInvocation struct {
	CallID    string          `json:"callId"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Output    string          `json:"output"`
	Error     string          `json:"error,omitempty"`
}

type InvocationResult struct {
	FinalText       string
	ToolInvocations []ToolInvocation
	// Structured holds FinalText when it parses as a JSON object.
	Structured json.RawMessage
	Steps      int
}

// Model is the language-model capability the voice orchestrator consumes.
type Model interface {
	Invoke(ctx context.Context, inv Invocation) (*InvocationResult, error)
}

// Agent implements Model on the OpenAI Responses API.
type Agent struct {
	client *openai.Client
	model  string
}

func NewAgent(apiKey, model string, opts ...option.RequestOption) *Agent {
	if model == "" {
		model = string(shared.ChatModelGPT4o)
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Agent{client: &client, model: model}
}

func (a *Agent) Invoke(ctx context.Context, inv Invocation) (*InvocationResult, error) {
	maxSteps := inv.MaxSteps
	if maxSteps < 1 {
		maxSteps = 1
	}

	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(a.model),
		Instructions: openai.String(inv.SystemPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(inv.UserPrompt),
		},
		Tools: inv.Tools.ToOpenAITools(),
	}
	if inv.Output != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        inv.Output.Name,
					Strict:      param.NewOpt(false),
					Schema:      inv.Output.Schema,
					Description: param.NewOpt(inv.Output.Description),
				},
			},
		}
	}

	result := &InvocationResult{}
	for step := 1; step <= maxSteps; step++ {
		if step == maxSteps && len(params.Tools) > 0 {
			params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptionsNone),
			}
		}

		resp, err := a.client.Responses.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("openai responses error: %w", err)
		}
		result.Steps = step

		calls := functionCalls(resp)
		if len(calls) == 0 {
			result.FinalText = strings.TrimSpace(resp.OutputText())
			result.Structured = asJSONObject(result.FinalText)
			return result, nil
		}

		outputs := make(responses.ResponseInputParam, 0, len(calls))
		for _, call := range calls {
			ti := runTool(ctx, inv.Tools, call)
			result.ToolInvocations = append(result.ToolInvocations, ti)
			outputs = append(outputs, responses.ResponseInputItemParamOfFunctionCallOutput(call.CallID, ti.Output))
		}

		params.PreviousResponseID = openai.String(resp.ID)
		params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: outputs}
	}
	return result, ErrStepBudgetExhausted
}

func functionCalls(resp *responses.Response) []responses.ResponseFunctionToolCall {
	var calls []responses.ResponseFunctionToolCall
	for _, item := range resp.Output {
		if item.Type == "function_call" {
			calls = append(calls, item.AsFunctionCall())
		}
	}
	return calls
}

// runTool executes a call and always produces an output for the model, even
// when the tool is unknown or fails.
func runTool(ctx context.Context, tools *ToolRegistry, call responses.ResponseFunctionToolCall) ToolInvocation {
	ti := ToolInvocation{CallID: call.CallID, Name: call.Name, Arguments: json.RawMessage(call.Arguments)}
	if !json.Valid(ti.Arguments) {
		ti.Arguments = json.RawMessage("{}")
	}

	def, ok := tools.Get(call.Name)
	if !ok || def.Handler == nil {
		ti.Error = "unknown tool"
		ti.Output = errorOutput("unknown tool " + call.Name)
		return ti
	}
	out, err := def.Handler(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		ti.Error = err.Error()
		ti.Output = errorOutput(err.Error())
		return ti
	}
	ti.Output = out
	return ti
}

func errorOutput(msg string) string {
	b, _ := json.Marshal(map[string]any{"ok": false, "message": msg})
	return string(b)
}

func asJSONObject(text string) json.RawMessage {
	t := strings.TrimSpace(text)
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	t = strings.TrimSpace(t)
	if !strings.HasPrefix(t, "{") || !json.Valid([]byte(t)) {
		return nil
	}
	return json.RawMessage(t)
}

// ReflectSchema renders v's JSON Schema as a plain map for request payloads.
func ReflectSchema(v any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")
	return schemaMap, nil
}
