package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type memSessionStore struct {
	sessions map[string]*model.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*model.Session)}
}

func (m *memSessionStore) CreateSession(_ context.Context, session *model.Session) error {
	for _, existing := range m.sessions {
		if existing.Token == session.Token || existing.RefreshToken == session.RefreshToken {
			return model.ErrDuplicateToken
		}
	}
	copied := *session
	m.sessions[session.SessionID] = &copied
	return nil
}

func (m *memSessionStore) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *memSessionStore) GetSessionByRefreshToken(_ context.Context, refreshToken string) (*model.Session, error) {
	for _, session := range m.sessions {
		if session.RefreshToken == refreshToken {
			copied := *session
			return &copied, nil
		}
	}
	return nil, model.ErrSessionNotFound
}

func (m *memSessionStore) TouchSession(_ context.Context, sessionID string) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ErrSessionNotFound
	}
	session.LastActivity = time.Now()
	return nil
}

func (m *memSessionStore) DeactivateSession(_ context.Context, sessionID string) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ErrSessionNotFound
	}
	session.IsActive = false
	return nil
}

func (m *memSessionStore) DeactivateAllUserSessions(_ context.Context, userID string) (int64, error) {
	var count int64
	for _, session := range m.sessions {
		if session.UserID == userID && session.IsActive {
			session.IsActive = false
			count++
		}
	}
	return count, nil
}

func (m *memSessionStore) FindActiveSessions(_ context.Context, userID string) ([]*model.Session, error) {
	now := time.Now()
	var active []*model.Session
	for _, session := range m.sessions {
		if session.UserID == userID && session.IsActive && session.ExpiresAt.After(now) {
			copied := *session
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (m *memSessionStore) CountActiveSessions(ctx context.Context, userID string) (int, error) {
	active, err := m.FindActiveSessions(ctx, userID)
	return len(active), err
}

func (m *memSessionStore) DeactivateLeastActiveSession(ctx context.Context, userID string) error {
	active, err := m.FindActiveSessions(ctx, userID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return model.ErrSessionNotFound
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastActivity.Before(active[j].LastActivity)
	})
	return m.DeactivateSession(ctx, active[0].SessionID)
}

func (m *memSessionStore) CleanupExpiredSessions(_ context.Context) (int64, error) {
	now := time.Now()
	var removed int64
	for id, session := range m.sessions {
		if session.ExpiresAt.Before(now) || !session.IsActive {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func newSessionService(store *memSessionStore) *usecase.SessionService {
	return &usecase.SessionService{
		Store: store,
		Tokens: func(userID string) (model.TokenPair, error) {
			return model.TokenPair{
				AccessToken:  uuid.New().String(),
				RefreshToken: uuid.New().String(),
			}, nil
		},
		Duration: 24 * time.Hour,
	}
}

func TestGetActiveSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemSessionStore()
	sessions := newSessionService(store)
	ctx := context.Background()

	first, err := sessions.IssueSession(ctx, "user-1", model.ClientMeta{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0"})
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	if _, err := sessions.IssueSession(ctx, "user-1", model.ClientMeta{}); err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Set("session_id", first.SessionID)
		c.Next()
	})
	router.GET("/api/sessions/active", func(c *gin.Context) {
		GetActiveSessions(c, sessions)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/active", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Sessions []struct {
				SessionID string `json:"session_id"`
				Current   bool   `json:"current,omitempty"`
			} `json:"sessions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Data.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(resp.Data.Sessions))
	}

	currents := 0
	for _, s := range resp.Data.Sessions {
		if s.Current {
			currents++
			if s.SessionID != first.SessionID {
				t.Errorf("wrong session flagged current: %s", s.SessionID)
			}
		}
	}
	if currents != 1 {
		t.Errorf("expected exactly one current session, got %d", currents)
	}
}

func TestLogoutAllSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemSessionStore()
	sessions := newSessionService(store)
	activities := &usecase.ActivityService{Store: &memActivityStore{}}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := sessions.IssueSession(ctx, "user-1", model.ClientMeta{}); err != nil {
			t.Fatalf("IssueSession failed: %v", err)
		}
	}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Next()
	})
	router.POST("/api/sessions/logout-all", func(c *gin.Context) {
		LogoutAllSessions(c, sessions, activities)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/logout-all", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			SessionsEnded int64 `json:"sessions_ended"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Data.SessionsEnded != 3 {
		t.Errorf("sessions_ended = %d, want 3", resp.Data.SessionsEnded)
	}

	active, err := sessions.FindActiveSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("FindActiveSessions failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active sessions after logout-all, got %d", len(active))
	}

	// The audit trail records the bulk logout.
	recent, err := activities.GetUserActivities(ctx, "user-1", 1, 0)
	if err != nil {
		t.Fatalf("GetUserActivities failed: %v", err)
	}
	if len(recent) != 1 || recent[0].ActivityType != model.ActivityLogout {
		t.Errorf("expected a logout audit record, got %+v", recent)
	}
}
