package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/utils"
)

// SessionStore is the persistence contract the session lifecycle rules
// run against. Implemented by repository.SessionRepo.
type SessionStore interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*model.Session, error)
	TouchSession(ctx context.Context, sessionID string) error
	DeactivateSession(ctx context.Context, sessionID string) error
	DeactivateAllUserSessions(ctx context.Context, userID string) (int64, error)
	FindActiveSessions(ctx context.Context, userID string) ([]*model.Session, error)
	CountActiveSessions(ctx context.Context, userID string) (int, error)
	DeactivateLeastActiveSession(ctx context.Context, userID string) error
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// TokenSource mints a fresh access/refresh pair for a user. Used to
// regenerate on the (unlikely) event of a token collision.
type TokenSource func(userID string) (model.TokenPair, error)

// maxCreateAttempts bounds regenerate-and-retry on duplicate tokens.
const maxCreateAttempts = 3

// SessionService enforces session-family semantics: one create per
// authentication, activity touches, idempotent deactivation, and the
// active cleanup sweep.
type SessionService struct {
	Store    SessionStore
	Tokens   TokenSource
	Duration time.Duration
}

// CreateSession inserts a new active session for the supplied token pair.
// A collision on either token surfaces as model.ErrDuplicateToken with
// the store unchanged; this variant does not retry.
func (s *SessionService) CreateSession(ctx context.Context, userID string, pair model.TokenPair, expiresAt time.Time, meta model.ClientMeta) (*model.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, fmt.Errorf("token pair cannot be empty")
	}

	now := time.Now()
	session := &model.Session{
		SessionID:    utils.GenerateSessionID(),
		UserID:       userID,
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UserAgent:    utils.Truncate(meta.UserAgent, model.MaxUserAgentLength),
		IPAddress:    utils.Truncate(meta.IPAddress, model.MaxIPAddressLength),
		DisplayName:  utils.GenerateSessionName(meta.UserAgent),
		IsActive:     true,
		ExpiresAt:    expiresAt,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// IssueSession mints a token pair and creates a session for it, retrying
// with a fresh pair a bounded number of times if a token collides.
func (s *SessionService) IssueSession(ctx context.Context, userID string, meta model.ClientMeta) (*model.Session, error) {
	if s.Tokens == nil {
		return nil, fmt.Errorf("no token source configured")
	}

	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		pair, err := s.Tokens(userID)
		if err != nil {
			return nil, fmt.Errorf("failed to mint token pair: %w", err)
		}

		session, err := s.CreateSession(ctx, userID, pair, time.Now().Add(s.Duration), meta)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, model.ErrDuplicateToken) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("token collision persisted after %d attempts: %w", maxCreateAttempts, lastErr)
}

// FindActiveSessions returns sessions with is_active=true and an expiry
// in the future. Order carries no contract.
func (s *SessionService) FindActiveSessions(ctx context.Context, userID string) ([]*model.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	return s.Store.FindActiveSessions(ctx, userID)
}

// GetSession fetches one session by id.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.Store.GetSession(ctx, sessionID)
}

// GetSessionByRefreshToken fetches the session holding a refresh token.
func (s *SessionService) GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*model.Session, error) {
	return s.Store.GetSessionByRefreshToken(ctx, refreshToken)
}

// TouchSession refreshes last_activity on an existing record; returns
// model.ErrSessionNotFound when the id matches nothing.
func (s *SessionService) TouchSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	return s.Store.TouchSession(ctx, sessionID)
}

// DeactivateSession flips is_active off. Idempotent: a second call on the
// same id succeeds with no further effect. There is no way back to
// active; re-authentication creates a new session instead.
func (s *SessionService) DeactivateSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	return s.Store.DeactivateSession(ctx, sessionID)
}

// DeactivateAllUserSessions force-ends every active session of a user
// (password change, logout-everywhere) and returns how many were flipped.
func (s *SessionService) DeactivateAllUserSessions(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("userID cannot be empty")
	}
	return s.Store.DeactivateAllUserSessions(ctx, userID)
}

// EnforceSessionLimit deactivates the least recently used session when
// the user is at or over the cap.
func (s *SessionService) EnforceSessionLimit(ctx context.Context, userID string, maxActive int) (bool, error) {
	count, err := s.Store.CountActiveSessions(ctx, userID)
	if err != nil {
		return false, err
	}
	if count < maxActive {
		return false, nil
	}
	if err := s.Store.DeactivateLeastActiveSession(ctx, userID); err != nil {
		return false, err
	}
	return true, nil
}

// IsExpired reports whether the session is past its expiry, independent
// of the IsActive flag.
func (s *SessionService) IsExpired(session *model.Session) bool {
	if session == nil {
		return true
	}
	return time.Now().After(session.ExpiresAt)
}

// CleanupExpiredSessions runs the active sweep: expired sessions and
// deactivated-but-undeleted ones are removed in one pass. Invoked
// periodically; complements the store's passive TTL reaper.
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.Store.CleanupExpiredSessions(ctx)
}
