package voice

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"minimarket-copilot/internal/actions"
	"minimarket-copilot/internal/ai"
	"minimarket-copilot/internal/apperr"
	"minimarket-copilot/internal/core"
	"minimarket-copilot/internal/logger"
	"minimarket-copilot/internal/metrics"

	"github.com/google/uuid"
)

// FallbackMessage is returned when the model fails or produces nothing usable.
const FallbackMessage = "No pude generar una respuesta. Intenta nuevamente."

// ActionExecutor is the catalog surface a turn drives.
type ActionExecutor interface {
	Definitions() []actions.Definition
	Validate(name actions.Name, raw json.RawMessage) (any, error)
	Execute(ctx context.Context, storeID uuid.UUID, name actions.Name, raw json.RawMessage) actions.Result
}

type StoreReader interface {
	GetStore(ctx context.Context, storeID uuid.UUID) (*core.Store, error)
}

type Options struct {
	HistoryTurns int
	MaxSteps     int
	Locale       string
}

type TurnRequest struct {
	StoreID    uuid.UUID
	UserID     uuid.UUID
	SessionID  *uuid.UUID
	Locale     string
	Device     string
	Transcript string
	ProviderID string
}

// Response is one of the three decision shapes; action responses also carry
// the execution outcome.
type Response struct {
	Type       DecisionType    `json:"type"`
	Message    string          `json:"message,omitempty"`
	Question   string          `json:"question,omitempty"`
	Action     actions.Name    `json:"action,omitempty"`
	Steps      []string        `json:"steps,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	OK         *bool           `json:"ok,omitempty"`
	Data       any             `json:"data,omitempty"`
}

type TurnResult struct {
	SessionID  uuid.UUID `json:"sessionId"`
	Transcript string    `json:"transcript"`
	Response   Response  `json:"response"`
}

// ToolStep is one intermediate catalog call made by the model.
type ToolStep struct {
	Action    actions.Name    `json:"action"`
	Arguments json.RawMessage `json:"arguments"`
	OK        bool            `json:"ok"`
	Message   string          `json:"message"`
}

// Orchestrator runs one voice turn: context, model, decision, execution, audit.
type Orchestrator struct {
	model    ai.Model
	catalog  ActionExecutor
	repo     AuditRepository
	stores   StoreReader
	sessions *SessionResolver
	log      *logger.Logger
	metrics  *metrics.VoiceMetrics
	opts     Options
	output   *ai.OutputFormat
}

func NewOrchestrator(
	model ai.Model,
	catalog ActionExecutor,
	repo AuditRepository,
	stores StoreReader,
	sessions *SessionResolver,
	log *logger.Logger,
	m *metrics.VoiceMetrics,
	opts Options,
) (*Orchestrator, error) {
	output, err := DecisionOutput()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultStepBudget
	}
	return &Orchestrator{
		model:    model,
		catalog:  catalog,
		repo:     repo,
		stores:   stores,
		sessions: sessions,
		log:      log,
		metrics:  m,
		opts:     opts,
		output:   output,
	}, nil
}

// HandleTurn never returns model or business failures as errors; those become
// a Response. Errors are precondition failures (membership, unknown store) and
// audit persistence failures.
//
// An empty transcript only checks membership: no session is created or
// touched and the requested session id, if any, is echoed back.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	text := strings.TrimSpace(req.Transcript)
	if text == "" {
		if err := o.sessions.Authorize(ctx, req.StoreID, req.UserID); err != nil {
			return nil, err
		}
		o.metrics.IncTurn("empty")
		result := &TurnResult{Response: Response{Type: DecisionAnswer}}
		if req.SessionID != nil {
			result.SessionID = *req.SessionID
		}
		return result, nil
	}

	session, err := o.sessions.Resolve(ctx, SessionRequest{
		StoreID:   req.StoreID,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Locale:    req.Locale,
		Device:    req.Device,
	})
	if err != nil {
		return nil, err
	}
	ctx = o.log.WithSessionID(ctx, session.ID.String())

	result := &TurnResult{SessionID: session.ID, Transcript: text}

	store, err := o.stores.GetStore(ctx, req.StoreID)
	if err != nil {
		if errors.Is(err, core.ErrStoreNotFound) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "store not found")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to load store")
	}
	history, err := o.repo.RecentTurns(ctx, session.ID, o.opts.HistoryTurns)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to load conversation history")
	}
	transcript, err := o.repo.CreateTranscript(ctx, session.ID, req.StoreID, text, req.ProviderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to record transcript")
	}

	locale := req.Locale
	if locale == "" {
		locale = o.opts.Locale
	}
	var steps []ToolStep
	inv := ai.Invocation{
		SystemPrompt: buildSystemPrompt(NewStoreProfile(store, o.capabilities()), locale),
		UserPrompt:   buildUserPrompt(RenderHistory(history), text),
		Tools:        o.tools(req.StoreID, &steps),
		MaxSteps:     o.stepBudget(text),
		Output:       o.output,
	}

	started := time.Now()
	out, err := o.model.Invoke(ctx, inv)
	o.metrics.ObserveModel(time.Since(started))

	var decision Decision
	if err == nil {
		decision, err = ParseDecision(out.Structured, out.FinalText)
	}
	if err != nil {
		o.log.Error(o.log.WithField(ctx, "max_steps", inv.MaxSteps), "model invocation failed", err)
		return o.finishFailure(ctx, result, transcript, steps, err)
	}

	if decision.Type == DecisionAction {
		return o.finishAction(ctx, result, transcript, decision, steps)
	}
	return o.finishReply(ctx, result, transcript, decision, steps)
}

func (o *Orchestrator) stepBudget(text string) int {
	return min(StepBudget(text), o.opts.MaxSteps)
}

func (o *Orchestrator) capabilities() []actions.Name {
	defs := o.catalog.Definitions()
	out := make([]actions.Name, 0, len(defs))
	for _, d := range defs {
		if d.Name != actions.Other {
			out = append(out, d.Name)
		}
	}
	return out
}

// tools exposes every catalog action except Other. Calls run for real and are
// appended to steps.
func (o *Orchestrator) tools(storeID uuid.UUID, steps *[]ToolStep) *ai.ToolRegistry {
	registry := ai.NewToolRegistry()
	for _, d := range o.catalog.Definitions() {
		if d.Name == actions.Other {
			continue
		}
		name := d.Name
		registry.Register(ai.ToolDefinition{
			Name:        string(name),
			Description: d.Description,
			InputSchema: d.Schema,
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				o.metrics.IncToolCall(string(name))
				res := o.catalog.Execute(ctx, storeID, name, args)
				*steps = append(*steps, ToolStep{Action: name, Arguments: args, OK: res.OK, Message: res.Message})
				b, err := json.Marshal(res)
				if err != nil {
					return "", err
				}
				return string(b), nil
			},
		})
	}
	return registry
}

// ── Terminal outcomes ───────────────────────────────────────────────────────

type replyResult struct {
	Message   string     `json:"message"`
	ToolSteps []ToolStep `json:"toolSteps,omitempty"`
}

type actionResult struct {
	OK        bool       `json:"ok"`
	Message   string     `json:"message"`
	Data      any        `json:"data,omitempty"`
	ToolSteps []ToolStep `json:"toolSteps,omitempty"`
}

func (o *Orchestrator) finishFailure(ctx context.Context, result *TurnResult, t *Transcript, steps []ToolStep, cause error) (*TurnResult, error) {
	errMsg := cause.Error()
	_, err := o.repo.CreateAction(ctx, ActionRecord{
		TranscriptID: t.ID,
		StoreID:      t.StoreID,
		DecisionType: DecisionAnswer,
		ActionType:   string(DecisionAnswer),
		Status:       StatusFailed,
		Result:       mustJSON(replyResult{Message: FallbackMessage, ToolSteps: steps}),
		Error:        &errMsg,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to record voice action")
	}
	o.metrics.IncTurn("model_error")
	result.Response = Response{Type: DecisionAnswer, Message: FallbackMessage}
	return result, nil
}

func (o *Orchestrator) finishReply(ctx context.Context, result *TurnResult, t *Transcript, d Decision, steps []ToolStep) (*TurnResult, error) {
	text := d.Message
	if d.Type == DecisionClarification {
		text = d.Question
	}
	_, err := o.repo.CreateAction(ctx, ActionRecord{
		TranscriptID: t.ID,
		StoreID:      t.StoreID,
		DecisionType: d.Type,
		ActionType:   string(d.Type),
		Status:       StatusExecuted,
		Result:       mustJSON(replyResult{Message: text, ToolSteps: steps}),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to record voice action")
	}
	o.metrics.IncTurn(string(d.Type))
	result.Response = Response{Type: d.Type, Message: d.Message, Question: d.Question}
	return result, nil
}

func (o *Orchestrator) finishAction(ctx context.Context, result *TurnResult, t *Transcript, d Decision, steps []ToolStep) (*TurnResult, error) {
	rec, err := o.repo.CreateAction(ctx, ActionRecord{
		TranscriptID: t.ID,
		StoreID:      t.StoreID,
		DecisionType: DecisionAction,
		ActionType:   string(d.Action),
		Status:       StatusPending,
		Parameters:   d.Parameters,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to record voice action")
	}
	ctx = o.log.WithFields(ctx, map[string]any{"action": string(d.Action), "action_id": rec.ID.String()})

	res := o.execute(ctx, t.StoreID, d)

	status := StatusExecuted
	var errMsg *string
	if !res.OK {
		status = StatusFailed
		errMsg = &res.Message
	}
	payload := mustJSON(actionResult{OK: res.OK, Message: res.Message, Data: res.Data, ToolSteps: steps})
	if err := o.repo.CompleteAction(ctx, rec.ID, status, payload, errMsg); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to record voice action")
	}

	o.metrics.IncAction(string(d.Action), string(status))
	o.metrics.IncTurn(strings.ToLower(string(status)))
	o.log.Info(o.log.WithField(ctx, "status", string(status)), "voice action finished")

	ok := res.OK
	result.Response = Response{
		Type:       DecisionAction,
		Action:     d.Action,
		Steps:      d.Steps,
		Parameters: d.Parameters,
		OK:         &ok,
		Message:    res.Message,
		Data:       res.Data,
	}
	return result, nil
}

// execute validates before running so invalid parameters never reach an executor.
func (o *Orchestrator) execute(ctx context.Context, storeID uuid.UUID, d Decision) actions.Result {
	if d.Action == actions.Other {
		return o.catalog.Execute(ctx, storeID, actions.Other, json.RawMessage("{}"))
	}
	if _, err := o.catalog.Validate(d.Action, d.Parameters); err != nil {
		o.log.Warn(o.log.WithField(ctx, "error", err.Error()), "model emitted invalid action parameters")
		return actions.Result{OK: false, Message: actions.InvalidParamsMessage(d.Action)}
	}
	return o.catalog.Execute(ctx, storeID, d.Action, d.Parameters)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
