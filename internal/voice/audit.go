package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSessionNotFound = errors.New("voice session not found")

type ActionStatus string

const (
	StatusPending  ActionStatus = "PENDING"
	StatusExecuted ActionStatus = "EXECUTED"
	StatusFailed   ActionStatus = "FAILED"
)

type Session struct {
	ID        uuid.UUID
	StoreID   uuid.UUID
	UserID    uuid.UUID
	Locale    *string
	Device    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Transcript struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	StoreID    uuid.UUID
	Text       string
	ProviderID *string
	CreatedAt  time.Time
}

// ActionRecord is the audit row of one turn's outcome.
type ActionRecord struct {
	ID           uuid.UUID
	TranscriptID uuid.UUID
	StoreID      uuid.UUID
	DecisionType DecisionType
	ActionType   string
	Status       ActionStatus
	Parameters   json.RawMessage
	Result       json.RawMessage
	Error        *string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Turn pairs a transcript with the latest action recorded for it.
type Turn struct {
	Transcript Transcript
	Action     *ActionRecord
}

// AuditRepository persists sessions, transcripts and action outcomes.
type AuditRepository interface {
	GetSession(ctx context.Context, storeID, sessionID uuid.UUID) (*Session, error)
	LatestSession(ctx context.Context, storeID, userID uuid.UUID) (*Session, error)
	CreateSession(ctx context.Context, storeID, userID uuid.UUID, locale, device string) (*Session, error)
	TouchSession(ctx context.Context, sessionID uuid.UUID) error

	CreateTranscript(ctx context.Context, sessionID, storeID uuid.UUID, text, providerID string) (*Transcript, error)
	// RecentTurns returns the last limit turns of the session, oldest first.
	RecentTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]Turn, error)

	CreateAction(ctx context.Context, rec ActionRecord) (*ActionRecord, error)
	CompleteAction(ctx context.Context, actionID uuid.UUID, status ActionStatus, result json.RawMessage, errMsg *string) error
}

type auditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

// ── Sessions ────────────────────────────────────────────────────────────────

const sessionColumns = `id, store_id, user_id, locale, device, created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.StoreID, &s.UserID, &s.Locale, &s.Device, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *auditRepository) GetSession(ctx context.Context, storeID, sessionID uuid.UUID) (*Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM voice_sessions WHERE id = $1 AND store_id = $2`, sessionID, storeID))
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to fetch voice session: %w", err)
	}
	return s, err
}

func (r *auditRepository) LatestSession(ctx context.Context, storeID, userID uuid.UUID) (*Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM voice_sessions
		WHERE store_id = $1 AND user_id = $2
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
	`, storeID, userID))
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to fetch latest voice session: %w", err)
	}
	return s, err
}

func (r *auditRepository) CreateSession(ctx context.Context, storeID, userID uuid.UUID, locale, device string) (*Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `
		INSERT INTO voice_sessions (store_id, user_id, locale, device)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING `+sessionColumns,
		storeID, userID, locale, device))
	if err != nil {
		return nil, fmt.Errorf("failed to create voice session: %w", err)
	}
	return s, nil
}

func (r *auditRepository) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `UPDATE voice_sessions SET updated_at = NOW() WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to touch voice session: %w", err)
	}
	return nil
}

// ── Transcripts ─────────────────────────────────────────────────────────────

func (r *auditRepository) CreateTranscript(ctx context.Context, sessionID, storeID uuid.UUID, text, providerID string) (*Transcript, error) {
	var t Transcript
	err := r.pool.QueryRow(ctx, `
		INSERT INTO voice_transcripts (session_id, store_id, text, provider_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, session_id, store_id, text, provider_id, created_at
	`, sessionID, storeID, text, providerID).Scan(
		&t.ID, &t.SessionID, &t.StoreID, &t.Text, &t.ProviderID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert voice transcript: %w", err)
	}
	return &t, nil
}

func (r *auditRepository) RecentTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.session_id, t.store_id, t.text, t.provider_id, t.created_at,
		       a.id, a.decision_type, a.action_type, a.status, a.parameters, a.result, a.error, a.created_at, a.completed_at
		FROM (
			SELECT * FROM voice_transcripts
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) t
		LEFT JOIN LATERAL (
			SELECT * FROM voice_actions va
			WHERE va.transcript_id = t.id
			ORDER BY va.created_at DESC
			LIMIT 1
		) a ON TRUE
		ORDER BY t.created_at ASC, t.id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query voice history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			turn                    Turn
			actionID                *uuid.UUID
			decisionType, actionTyp *string
			status                  *string
			params, result          []byte
			errMsg                  *string
			createdAt               *time.Time
			completedAt             *time.Time
		)
		tr := &turn.Transcript
		if err := rows.Scan(&tr.ID, &tr.SessionID, &tr.StoreID, &tr.Text, &tr.ProviderID, &tr.CreatedAt,
			&actionID, &decisionType, &actionTyp, &status, &params, &result, &errMsg, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan voice history: %w", err)
		}
		if actionID != nil {
			turn.Action = &ActionRecord{
				ID:           *actionID,
				TranscriptID: tr.ID,
				StoreID:      tr.StoreID,
				DecisionType: DecisionType(deref(decisionType)),
				ActionType:   deref(actionTyp),
				Status:       ActionStatus(deref(status)),
				Parameters:   params,
				Result:       result,
				Error:        errMsg,
				CompletedAt:  completedAt,
			}
			if createdAt != nil {
				turn.Action.CreatedAt = *createdAt
			}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read voice history: %w", err)
	}
	return turns, nil
}

// ── Actions ─────────────────────────────────────────────────────────────────

func (r *auditRepository) CreateAction(ctx context.Context, rec ActionRecord) (*ActionRecord, error) {
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	out := rec
	err := r.pool.QueryRow(ctx, `
		INSERT INTO voice_actions (transcript_id, store_id, decision_type, action_type, status, parameters, result, error, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $5 = 'PENDING' THEN NULL ELSE NOW() END)
		RETURNING id, created_at, completed_at
	`, rec.TranscriptID, rec.StoreID, rec.DecisionType, rec.ActionType, rec.Status,
		jsonArg(rec.Parameters), jsonArg(rec.Result), rec.Error).Scan(&out.ID, &out.CreatedAt, &out.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert voice action: %w", err)
	}
	return &out, nil
}

func (r *auditRepository) CompleteAction(ctx context.Context, actionID uuid.UUID, status ActionStatus, result json.RawMessage, errMsg *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE voice_actions
		SET status = $2, result = $3, error = $4, completed_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`, actionID, status, jsonArg(result), errMsg)
	if err != nil {
		return fmt.Errorf("failed to complete voice action: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("voice action %s is not pending", actionID)
	}
	return nil
}

// jsonArg passes raw JSON to a JSONB column, mapping empty input to NULL.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
