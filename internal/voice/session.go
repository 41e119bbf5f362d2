package voice

import (
	"context"
	"errors"
	"fmt"

	"minimarket-copilot/internal/apperr"

	"github.com/google/uuid"
)

// MembershipChecker reports whether a user still belongs to a store.
type MembershipChecker interface {
	IsMember(ctx context.Context, storeID, userID uuid.UUID) (bool, error)
}

type SessionRequest struct {
	StoreID   uuid.UUID
	UserID    uuid.UUID
	SessionID *uuid.UUID
	Locale    string
	Device    string
}

// SessionResolver finds or lazily creates the voice session for a turn.
type SessionResolver struct {
	repo    AuditRepository
	members MembershipChecker
}

func NewSessionResolver(repo AuditRepository, members MembershipChecker) *SessionResolver {
	return &SessionResolver{repo: repo, members: members}
}

// Resolve reuses the requested session when it belongs to the same store and
// user, then falls back to the user's latest session, then creates one. The
// user must still be a member of the store.
func (r *SessionResolver) Resolve(ctx context.Context, req SessionRequest) (*Session, error) {
	if err := r.Authorize(ctx, req.StoreID, req.UserID); err != nil {
		return nil, err
	}

	if req.SessionID != nil {
		s, err := r.repo.GetSession(ctx, req.StoreID, *req.SessionID)
		switch {
		case err == nil && s.UserID == req.UserID:
			return r.touch(ctx, s)
		case err != nil && !errors.Is(err, ErrSessionNotFound):
			return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to load voice session")
		}
	}

	s, err := r.repo.LatestSession(ctx, req.StoreID, req.UserID)
	if err == nil {
		return r.touch(ctx, s)
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to load voice session")
	}

	s, err = r.repo.CreateSession(ctx, req.StoreID, req.UserID, req.Locale, req.Device)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to create voice session")
	}
	return s, nil
}

// Authorize checks store membership without reading or writing sessions.
func (r *SessionResolver) Authorize(ctx context.Context, storeID, userID uuid.UUID) error {
	ok, err := r.members.IsMember(ctx, storeID, userID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "failed to check store membership")
	}
	if !ok {
		return apperr.New(apperr.CodeForbidden, "user is not a member of this store")
	}
	return nil
}

func (r *SessionResolver) touch(ctx context.Context, s *Session) (*Session, error) {
	if err := r.repo.TouchSession(ctx, s.ID); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, fmt.Errorf("session %s: %w", s.ID, err), "failed to update voice session")
	}
	return s, nil
}
