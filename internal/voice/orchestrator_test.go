package voice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"minimarket-copilot/internal/actions"
	"minimarket-copilot/internal/ai"
	"minimarket-copilot/internal/apperr"
	"minimarket-copilot/internal/core"
	"minimarket-copilot/internal/logger"
	"minimarket-copilot/internal/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	orch    *Orchestrator
	repo    *memRepo
	exec    *fakeExecutor
	model   *scriptedModel
	reg     *prometheus.Registry
	storeID uuid.UUID
	userID  uuid.UUID
}

func newHarness(t *testing.T, model *scriptedModel) *harness {
	t.Helper()
	storeID, userID := uuid.New(), uuid.New()
	taxID := "76.123.456-7"
	store := &core.Store{ID: storeID, Name: "Minimarket Don Pepe", TaxID: &taxID, Timezone: "America/Santiago", Currency: "CLP"}

	repo := newMemRepo()
	exec := &fakeExecutor{results: map[actions.Name]actions.Result{}}
	reg := prometheus.NewRegistry()
	sessions := NewSessionResolver(repo, fakeMembers{members: map[uuid.UUID]bool{userID: true}})

	orch, err := NewOrchestrator(model, exec, repo, fakeStores{store: store}, sessions, logger.Nop(),
		metrics.NewVoiceMetrics(reg), Options{HistoryTurns: 5, MaxSteps: 3, Locale: "es-CL"})
	require.NoError(t, err)
	return &harness{orch: orch, repo: repo, exec: exec, model: model, reg: reg, storeID: storeID, userID: userID}
}

func (h *harness) turn(t *testing.T, text string) *TurnResult {
	t.Helper()
	res, err := h.orch.HandleTurn(context.Background(), TurnRequest{StoreID: h.storeID, UserID: h.userID, Transcript: text})
	require.NoError(t, err)
	return res
}

func TestHandleTurn_EmptyTranscriptSkipsModel(t *testing.T) {
	h := newHarness(t, &scriptedModel{})
	res := h.turn(t, "   ")

	assert.Equal(t, DecisionAnswer, res.Response.Type)
	assert.Empty(t, res.Response.Message)
	assert.Empty(t, h.model.calls)
	assert.Empty(t, h.repo.transcripts)
	assert.Empty(t, h.repo.sessions)
	assert.Equal(t, uuid.Nil, res.SessionID)
}

func TestHandleTurn_EmptyTranscriptKeepsExistingSessionUntouched(t *testing.T) {
	h := newHarness(t, &scriptedModel{})
	existing := uuid.New()
	res, err := h.orch.HandleTurn(context.Background(), TurnRequest{
		StoreID: h.storeID, UserID: h.userID, SessionID: &existing, Transcript: "",
	})
	require.NoError(t, err)
	assert.Equal(t, existing, res.SessionID)
	assert.Empty(t, h.repo.sessions)
	assert.Empty(t, h.repo.touched)
}

func TestHandleTurn_EmptyTranscriptStillChecksMembership(t *testing.T) {
	h := newHarness(t, &scriptedModel{})
	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{StoreID: h.storeID, UserID: uuid.New(), Transcript: " "})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.As(err).Code())
	assert.Empty(t, h.repo.sessions)
}

func TestHandleTurn_Answer(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{"type": "answer", "message": "Hola, ¿en qué te ayudo?"})})
	res := h.turn(t, "hola")

	assert.Equal(t, Response{Type: DecisionAnswer, Message: "Hola, ¿en qué te ayudo?"}, res.Response)
	rec := h.repo.lastAction()
	require.NotNil(t, rec)
	assert.Equal(t, StatusExecuted, rec.Status)
	assert.Equal(t, "answer", rec.ActionType)
	assert.Empty(t, h.exec.executed)

	inv := h.model.calls[0]
	assert.Contains(t, inv.SystemPrompt, "Minimarket Don Pepe")
	assert.Contains(t, inv.SystemPrompt, "76.123.456-7")
	assert.Contains(t, inv.UserPrompt, "Current request: hola")
	assert.NotNil(t, inv.Output)
	assert.NotContains(t, inv.Tools.Names(), "other")
	assert.Contains(t, inv.Tools.Names(), "add_stock")
}

func TestHandleTurn_Clarification(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{"type": "clarification", "question": "¿Cuántas unidades?"})})
	res := h.turn(t, "agrega cocas")

	assert.Equal(t, DecisionClarification, res.Response.Type)
	assert.Equal(t, "¿Cuántas unidades?", res.Response.Question)
	assert.Equal(t, StatusExecuted, h.repo.lastAction().Status)
}

func TestHandleTurn_ActionExecuted(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{
		"type": "action", "action": "add_stock", "steps": []string{"agregar stock"},
		"parameters": map[string]any{"product": "coca", "quantity": 5},
	})})
	h.exec.results[actions.AddStock] = actions.Result{OK: true, Message: "Agregué 5 unidades de Coca. Stock actual: 5."}

	res := h.turn(t, "agrega 5 cocas")

	require.NotNil(t, res.Response.OK)
	assert.True(t, *res.Response.OK)
	assert.Equal(t, actions.AddStock, res.Response.Action)
	assert.Equal(t, "Agregué 5 unidades de Coca. Stock actual: 5.", res.Response.Message)
	require.Len(t, h.exec.executed, 1)
	assert.JSONEq(t, `{"product":"coca","quantity":5}`, h.exec.executed[0].raw)

	rec := h.repo.lastAction()
	assert.Equal(t, StatusExecuted, rec.Status)
	assert.Equal(t, "add_stock", rec.ActionType)
	assert.NotNil(t, rec.CompletedAt)
	assert.JSONEq(t, `{"product":"coca","quantity":5}`, string(rec.Parameters))

	// Short single-intent request gets the reduced budget.
	assert.Equal(t, ReducedStepBudget, h.model.calls[0].MaxSteps)
	assert.Equal(t, 1.0, counterTotal(t, h.reg, "voice_actions_total"))
}

func TestHandleTurn_ActionFailureIsBusinessOutcome(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{
		"type": "action", "action": "add_stock", "parameters": map[string]any{"product": "xyz", "quantity": 1},
	})})
	h.exec.results[actions.AddStock] = actions.Result{OK: false, Message: `No encontré el producto "xyz".`}

	res := h.turn(t, "agrega 1 xyz")

	assert.False(t, *res.Response.OK)
	assert.Contains(t, res.Response.Message, "xyz")
	rec := h.repo.lastAction()
	assert.Equal(t, StatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "xyz")
}

func TestHandleTurn_InvalidParametersNotExecuted(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{
		"type": "action", "action": "add_stock", "parameters": map[string]any{"product": "coca", "quantity": -3},
	})})
	res := h.turn(t, "agrega menos 3 cocas")

	assert.Empty(t, h.exec.executed)
	assert.False(t, *res.Response.OK)
	assert.Equal(t, actions.InvalidParamsMessage(actions.AddStock), res.Response.Message)
	assert.Equal(t, StatusFailed, h.repo.lastAction().Status)
}

func TestHandleTurn_UnknownActionBecomesOther(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{
		"type": "action", "action": "launch_rocket", "parameters": map[string]any{"to": "moon"},
	})})
	res := h.turn(t, "lanza un cohete")

	assert.Equal(t, actions.Other, res.Response.Action)
	assert.False(t, *res.Response.OK)
	require.Len(t, h.exec.executed, 1)
	assert.Equal(t, actions.Other, h.exec.executed[0].name)
	assert.JSONEq(t, `{}`, h.exec.executed[0].raw)
	assert.Equal(t, "other", h.repo.lastAction().ActionType)
}

func TestHandleTurn_ModelErrorIsGracefulAnswer(t *testing.T) {
	h := newHarness(t, &scriptedModel{err: errors.New("openai responses error: 503")})
	res := h.turn(t, "cuánto vendí hoy")

	assert.Equal(t, Response{Type: DecisionAnswer, Message: FallbackMessage}, res.Response)
	rec := h.repo.lastAction()
	require.NotNil(t, rec)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, *rec.Error, "503")
	assert.Equal(t, 1.0, counterTotal(t, h.reg, "voice_turns_total"))
}

func TestHandleTurn_StepBudgetExhaustedRecordsToolSteps(t *testing.T) {
	h := newHarness(t, &scriptedModel{
		toolCalls: []scriptedCall{{name: "get_product", args: `{"product":"pan"}`}},
		out:       &ai.InvocationResult{Steps: 3},
		err:       ai.ErrStepBudgetExhausted,
	})
	res := h.turn(t, "registra una venta de 3 cocas y agrega 5 más")

	assert.Equal(t, FallbackMessage, res.Response.Message)
	assert.Equal(t, DefaultStepBudget, h.model.calls[0].MaxSteps)

	var stored replyResult
	require.NoError(t, json.Unmarshal(h.repo.lastAction().Result, &stored))
	require.Len(t, stored.ToolSteps, 1)
	assert.Equal(t, actions.GetProduct, stored.ToolSteps[0].Action)
}

func TestHandleTurn_IntermediateToolCallsRunThroughCatalog(t *testing.T) {
	h := newHarness(t, &scriptedModel{
		toolCalls: []scriptedCall{{name: "create_product", args: `{"name":"Pan amasado","salePriceGross":1990}`}},
		out: decisionOut(map[string]any{
			"type": "action", "action": "add_stock", "parameters": map[string]any{"product": "Pan amasado", "quantity": 10},
		}),
	})
	res := h.turn(t, "crea pan amasado a 1990 y agrega 10")

	require.Len(t, h.exec.executed, 2)
	assert.Equal(t, actions.CreateProduct, h.exec.executed[0].name)
	assert.Equal(t, actions.AddStock, h.exec.executed[1].name)
	assert.True(t, *res.Response.OK)

	var stored actionResult
	require.NoError(t, json.Unmarshal(h.repo.lastAction().Result, &stored))
	require.Len(t, stored.ToolSteps, 1)
	assert.True(t, stored.ToolSteps[0].OK)
}

func TestHandleTurn_AuditFailureIsInternalError(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{"type": "answer", "message": "ok"})})
	h.repo.failCreateAction = true

	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{StoreID: h.storeID, UserID: h.userID, Transcript: "hola"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.As(err).Code())
}

func TestHandleTurn_AuditFailureBeforeExecutionSkipsAction(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{
		"type": "action", "action": "add_stock", "parameters": map[string]any{"product": "coca", "quantity": 1},
	})})
	h.repo.failCreateAction = true

	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{StoreID: h.storeID, UserID: h.userID, Transcript: "agrega 1 coca"})
	require.Error(t, err)
	assert.Empty(t, h.exec.executed)
}

func TestHandleTurn_CompletionFailureIsInternalError(t *testing.T) {
	h := newHarness(t, &scriptedModel{out: decisionOut(map[string]any{
		"type": "action", "action": "add_stock", "parameters": map[string]any{"product": "coca", "quantity": 1},
	})})
	h.repo.failCompleteAction = true

	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{StoreID: h.storeID, UserID: h.userID, Transcript: "agrega 1 coca"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.As(err).Code())
}

func TestHandleTurn_HistoryFeedsNextPrompt(t *testing.T) {
	model := &scriptedModel{out: decisionOut(map[string]any{
		"type": "action", "action": "add_stock", "parameters": map[string]any{"product": "coca", "quantity": 5},
	})}
	h := newHarness(t, model)
	h.exec.results[actions.AddStock] = actions.Result{OK: true, Message: "Agregué 5 unidades de Coca."}

	first := h.turn(t, "agrega 5 cocas")
	model.out = decisionOut(map[string]any{"type": "answer", "message": "Quedan 5."})
	second := h.turn(t, "cuántas quedan")

	assert.Equal(t, first.SessionID, second.SessionID)
	prompt := model.calls[1].UserPrompt
	assert.Contains(t, prompt, "User: agrega 5 cocas\nAssistant: Agregué 5 unidades de Coca.")
	assert.Contains(t, prompt, "Current request: cuántas quedan")
}

func TestHandleTurn_NonMemberForbidden(t *testing.T) {
	h := newHarness(t, &scriptedModel{})
	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{StoreID: h.storeID, UserID: uuid.New(), Transcript: "hola"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.As(err).Code())
	assert.Empty(t, h.model.calls)
}

func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
