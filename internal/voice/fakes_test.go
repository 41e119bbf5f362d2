package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"minimarket-copilot/internal/actions"
	"minimarket-copilot/internal/ai"
	"minimarket-copilot/internal/core"

	"github.com/google/uuid"
)

// memRepo is an in-memory AuditRepository.
type memRepo struct {
	mu          sync.Mutex
	sessions    []*Session
	transcripts []*Transcript
	actions     []*ActionRecord
	touched     []uuid.UUID

	failCreateAction   bool
	failCompleteAction bool
	clock              time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepo) GetSession(_ context.Context, storeID, sessionID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == sessionID && s.StoreID == storeID {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (r *memRepo) LatestSession(_ context.Context, storeID, userID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *Session
	for _, s := range r.sessions {
		if s.StoreID == storeID && s.UserID == userID && (latest == nil || s.UpdatedAt.After(latest.UpdatedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrSessionNotFound
	}
	return latest, nil
}

func (r *memRepo) CreateSession(_ context.Context, storeID, userID uuid.UUID, locale, device string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.tick()
	s := &Session{ID: uuid.New(), StoreID: storeID, UserID: userID, Locale: &locale, Device: &device, CreatedAt: now, UpdatedAt: now}
	r.sessions = append(r.sessions, s)
	return s, nil
}

func (r *memRepo) TouchSession(_ context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, sessionID)
	for _, s := range r.sessions {
		if s.ID == sessionID {
			s.UpdatedAt = r.tick()
		}
	}
	return nil
}

func (r *memRepo) CreateTranscript(_ context.Context, sessionID, storeID uuid.UUID, text, providerID string) (*Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &Transcript{ID: uuid.New(), SessionID: sessionID, StoreID: storeID, Text: text, CreatedAt: r.tick()}
	if providerID != "" {
		t.ProviderID = &providerID
	}
	r.transcripts = append(r.transcripts, t)
	return t, nil
}

func (r *memRepo) RecentTurns(_ context.Context, sessionID uuid.UUID, limit int) ([]Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var turns []Turn
	for _, t := range r.transcripts {
		if t.SessionID != sessionID {
			continue
		}
		turn := Turn{Transcript: *t}
		for _, a := range r.actions {
			if a.TranscriptID == t.ID {
				turn.Action = a
			}
		}
		turns = append(turns, turn)
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (r *memRepo) CreateAction(_ context.Context, rec ActionRecord) (*ActionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateAction {
		return nil, errors.New("insert voice action: connection reset")
	}
	rec.ID = uuid.New()
	rec.CreatedAt = r.tick()
	r.actions = append(r.actions, &rec)
	return &rec, nil
}

func (r *memRepo) CompleteAction(_ context.Context, actionID uuid.UUID, status ActionStatus, result json.RawMessage, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCompleteAction {
		return errors.New("update voice action: connection reset")
	}
	for _, a := range r.actions {
		if a.ID == actionID {
			if a.Status != StatusPending {
				return fmt.Errorf("voice action %s is not pending", actionID)
			}
			now := r.tick()
			a.Status, a.Result, a.Error, a.CompletedAt = status, result, errMsg, &now
			return nil
		}
	}
	return fmt.Errorf("voice action %s not found", actionID)
}

func (r *memRepo) lastAction() *ActionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.actions) == 0 {
		return nil
	}
	return r.actions[len(r.actions)-1]
}

type fakeMembers struct {
	members map[uuid.UUID]bool
	err     error
}

func (f fakeMembers) IsMember(_ context.Context, _ uuid.UUID, userID uuid.UUID) (bool, error) {
	return f.members[userID], f.err
}

type fakeStores struct {
	store *core.Store
}

func (f fakeStores) GetStore(_ context.Context, storeID uuid.UUID) (*core.Store, error) {
	if f.store == nil || f.store.ID != storeID {
		return nil, core.ErrStoreNotFound
	}
	return f.store, nil
}

// scriptedModel optionally calls tools, then returns its canned output.
type scriptedModel struct {
	toolCalls []scriptedCall
	out       *ai.InvocationResult
	err       error

	calls []ai.Invocation
}

type scriptedCall struct {
	name string
	args string
}

func (m *scriptedModel) Invoke(ctx context.Context, inv ai.Invocation) (*ai.InvocationResult, error) {
	m.calls = append(m.calls, inv)
	for _, c := range m.toolCalls {
		def, ok := inv.Tools.Get(c.name)
		if !ok {
			return nil, fmt.Errorf("tool %s not registered", c.name)
		}
		if _, err := def.Handler(ctx, json.RawMessage(c.args)); err != nil {
			return nil, err
		}
	}
	return m.out, m.err
}

func decisionOut(v any) *ai.InvocationResult {
	b, _ := json.Marshal(v)
	return &ai.InvocationResult{FinalText: string(b), Structured: b, Steps: 1}
}

// fakeExecutor records executions and validates a small set of actions.
type fakeExecutor struct {
	executed []executedCall
	results  map[actions.Name]actions.Result
}

type executedCall struct {
	name actions.Name
	raw  string
}

func (f *fakeExecutor) Definitions() []actions.Definition {
	return []actions.Definition{
		{Name: actions.AddStock, Description: "Add stock", Schema: map[string]any{"type": "object"}},
		{Name: actions.GetProduct, Description: "Get product", Schema: map[string]any{"type": "object"}},
		{Name: actions.CreateProduct, Description: "Create product", Schema: map[string]any{"type": "object"}},
		{Name: actions.Other, Description: "Other", Schema: map[string]any{"type": "object"}},
	}
}

func (f *fakeExecutor) Validate(name actions.Name, raw json.RawMessage) (any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if name == actions.AddStock {
		q, _ := m["quantity"].(float64)
		if q <= 0 {
			return nil, errors.New("quantity must be positive")
		}
	}
	return m, nil
}

func (f *fakeExecutor) Execute(_ context.Context, _ uuid.UUID, name actions.Name, raw json.RawMessage) actions.Result {
	f.executed = append(f.executed, executedCall{name: name, raw: string(raw)})
	if name == actions.Other {
		return actions.Result{OK: false, Message: "No entendí qué acción quieres realizar."}
	}
	if res, ok := f.results[name]; ok {
		return res
	}
	return actions.Result{OK: true, Message: "Listo: " + string(name)}
}
