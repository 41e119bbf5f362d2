package voice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"minimarket-copilot/internal/actions"
	"minimarket-copilot/internal/ai"
)

type DecisionType string

const (
	DecisionAnswer        DecisionType = "answer"
	DecisionClarification DecisionType = "clarification"
	DecisionAction        DecisionType = "action"
)

var ErrEmptyDecision = errors.New("model returned no usable decision")

// Decision is the model's final output for a turn.
type Decision struct {
	Type       DecisionType    `json:"type"`
	Message    string          `json:"message,omitempty"`
	Question   string          `json:"question,omitempty"`
	Action     actions.Name    `json:"action,omitempty"`
	Steps      []string        `json:"steps,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// decisionSchema mirrors Decision for schema reflection.
type decisionSchema struct {
	Type       string         `json:"type" jsonschema:"enum=answer,enum=clarification,enum=action"`
	Message    string         `json:"message,omitempty" jsonschema:"description=Reply to the user when type is answer"`
	Question   string         `json:"question,omitempty" jsonschema:"description=Question to ask when type is clarification"`
	Action     string         `json:"action,omitempty" jsonschema:"description=Catalog action to run when type is action"`
	Steps      []string       `json:"steps,omitempty" jsonschema:"description=Short plan of what the action does"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"description=Parameters for the action"`
}

// DecisionOutput is the structured output format requested from the model.
func DecisionOutput() (*ai.OutputFormat, error) {
	schema, err := ai.ReflectSchema(&decisionSchema{})
	if err != nil {
		return nil, err
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		if action, ok := props["action"].(map[string]any); ok {
			names := actions.AllNames()
			enum := make([]any, 0, len(names))
			for _, n := range names {
				enum = append(enum, string(n))
			}
			action["enum"] = enum
		}
	}
	return &ai.OutputFormat{
		Name:        "voice_decision",
		Description: "Final decision for the user's request: an answer, a clarifying question or one catalog action.",
		Schema:      schema,
	}, nil
}

// ParseDecision reads the model's final output. Structured output wins; plain
// non-empty text is taken as an answer. Action names outside the catalog become
// actions.Other.
func ParseDecision(structured json.RawMessage, finalText string) (Decision, error) {
	if len(structured) == 0 {
		text := strings.TrimSpace(finalText)
		if text == "" {
			return Decision{}, ErrEmptyDecision
		}
		return Decision{Type: DecisionAnswer, Message: text}, nil
	}

	var raw struct {
		Type       string          `json:"type"`
		Message    string          `json:"message"`
		Question   string          `json:"question"`
		Action     string          `json:"action"`
		Steps      []string        `json:"steps"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal(structured, &raw); err != nil {
		return Decision{}, fmt.Errorf("failed to parse decision: %w", err)
	}

	d := Decision{
		Type:     DecisionType(strings.ToLower(strings.TrimSpace(raw.Type))),
		Message:  strings.TrimSpace(raw.Message),
		Question: strings.TrimSpace(raw.Question),
		Steps:    raw.Steps,
	}
	switch d.Type {
	case DecisionAnswer:
		if d.Message == "" {
			return Decision{}, ErrEmptyDecision
		}
	case DecisionClarification:
		if d.Question == "" {
			d.Question = d.Message
		}
		if d.Question == "" {
			return Decision{}, ErrEmptyDecision
		}
		d.Message = ""
	case DecisionAction:
		d.Action, _ = actions.ParseName(strings.TrimSpace(raw.Action))
		d.Parameters = normalizeParameters(raw.Parameters)
	default:
		return Decision{}, fmt.Errorf("unknown decision type %q", raw.Type)
	}
	return d, nil
}

// normalizeParameters turns absent or null parameters into an empty object.
func normalizeParameters(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	// Some models send the object as an encoded string.
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil && json.Valid([]byte(inner)) {
			return normalizeParameters(json.RawMessage(inner))
		}
	}
	return json.RawMessage(trimmed)
}
