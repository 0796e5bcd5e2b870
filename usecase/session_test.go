package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/google/uuid"
)

// fakeSessionStore is an in-memory SessionStore with the same contract as
// the Mongo repository: unique tokens, matched-count semantics, and the
// broadened cleanup sweep.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionStore) CreateSession(_ context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.Token == session.Token || existing.RefreshToken == session.RefreshToken {
			return model.ErrDuplicateToken
		}
	}
	copied := *session
	f.sessions[session.SessionID] = &copied
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionStore) GetSessionByRefreshToken(_ context.Context, refreshToken string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if session.RefreshToken == refreshToken {
			copied := *session
			return &copied, nil
		}
	}
	return nil, model.ErrSessionNotFound
}

func (f *fakeSessionStore) TouchSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return model.ErrSessionNotFound
	}
	session.LastActivity = time.Now()
	session.UpdatedAt = session.LastActivity
	return nil
}

func (f *fakeSessionStore) DeactivateSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return model.ErrSessionNotFound
	}
	session.IsActive = false
	session.LastActivity = time.Now()
	return nil
}

func (f *fakeSessionStore) DeactivateAllUserSessions(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, session := range f.sessions {
		if session.UserID == userID && session.IsActive {
			session.IsActive = false
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionStore) FindActiveSessions(_ context.Context, userID string) ([]*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var active []*model.Session
	for _, session := range f.sessions {
		if session.UserID == userID && session.IsActive && session.ExpiresAt.After(now) {
			copied := *session
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (f *fakeSessionStore) CountActiveSessions(ctx context.Context, userID string) (int, error) {
	active, err := f.FindActiveSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

func (f *fakeSessionStore) DeactivateLeastActiveSession(ctx context.Context, userID string) error {
	active, err := f.FindActiveSessions(ctx, userID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return model.ErrSessionNotFound
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastActivity.Before(active[j].LastActivity)
	})
	return f.DeactivateSession(ctx, active[0].SessionID)
}

func (f *fakeSessionStore) CleanupExpiredSessions(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var removed int64
	for id, session := range f.sessions {
		if session.ExpiresAt.Before(now) || !session.IsActive {
			delete(f.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeSessionStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func newTokenSource() usecase.TokenSource {
	return func(userID string) (model.TokenPair, error) {
		return model.TokenPair{
			AccessToken:  uuid.New().String(),
			RefreshToken: uuid.New().String(),
		}, nil
	}
}

func newSessionService(store *fakeSessionStore) *usecase.SessionService {
	return &usecase.SessionService{
		Store:    store,
		Tokens:   newTokenSource(),
		Duration: 24 * time.Hour,
	}
}

func TestCreateSessionDuplicateToken(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	pair := model.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"}
	expiry := time.Now().Add(time.Hour)

	if _, err := svc.CreateSession(ctx, "user-1", pair, expiry, model.ClientMeta{}); err != nil {
		t.Fatalf("first CreateSession failed: %v", err)
	}

	tests := []struct {
		name string
		pair model.TokenPair
	}{
		{"duplicate access token", model.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-other"}},
		{"duplicate refresh token", model.TokenPair{AccessToken: "access-other", RefreshToken: "refresh-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSession(ctx, "user-2", tt.pair, expiry, model.ClientMeta{})
			if !errors.Is(err, model.ErrDuplicateToken) {
				t.Errorf("expected ErrDuplicateToken, got %v", err)
			}
			if store.len() != 1 {
				t.Errorf("store changed on failed insert: %d sessions", store.len())
			}
		})
	}
}

func TestIssueSessionRetriesOnCollision(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	// Seed a session holding the pair the first mint will collide with.
	seeded := model.TokenPair{AccessToken: "colliding-access", RefreshToken: "colliding-refresh"}
	if _, err := svc.CreateSession(ctx, "user-1", seeded, time.Now().Add(time.Hour), model.ClientMeta{}); err != nil {
		t.Fatalf("seed CreateSession failed: %v", err)
	}

	mints := 0
	svc.Tokens = func(userID string) (model.TokenPair, error) {
		mints++
		if mints == 1 {
			return seeded, nil
		}
		return model.TokenPair{
			AccessToken:  uuid.New().String(),
			RefreshToken: uuid.New().String(),
		}, nil
	}

	session, err := svc.IssueSession(ctx, "user-2", model.ClientMeta{})
	if err != nil {
		t.Fatalf("IssueSession did not recover from the collision: %v", err)
	}
	if mints != 2 {
		t.Errorf("expected 2 mint attempts, got %d", mints)
	}
	if session.Token == seeded.AccessToken {
		t.Error("session kept the colliding token")
	}
}

func TestIsExpired(t *testing.T) {
	svc := newSessionService(newFakeSessionStore())

	tests := []struct {
		name    string
		session *model.Session
		want    bool
	}{
		{
			name:    "active but past expiry",
			session: &model.Session{IsActive: true, ExpiresAt: time.Now().Add(-time.Minute)},
			want:    true,
		},
		{
			name:    "inactive and past expiry",
			session: &model.Session{IsActive: false, ExpiresAt: time.Now().Add(-time.Minute)},
			want:    true,
		},
		{
			name:    "active with future expiry",
			session: &model.Session{IsActive: true, ExpiresAt: time.Now().Add(time.Hour)},
			want:    false,
		},
		{
			name:    "inactive with future expiry",
			session: &model.Session{IsActive: false, ExpiresAt: time.Now().Add(time.Hour)},
			want:    false,
		},
		{
			name:    "nil session",
			session: nil,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.IsExpired(tt.session); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeactivateSessionIdempotent(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	session, err := svc.IssueSession(ctx, "user-1", model.ClientMeta{})
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	if err := svc.DeactivateSession(ctx, session.SessionID); err != nil {
		t.Fatalf("first DeactivateSession failed: %v", err)
	}
	if err := svc.DeactivateSession(ctx, session.SessionID); err != nil {
		t.Fatalf("second DeactivateSession errored: %v", err)
	}

	stored, err := svc.GetSession(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.IsActive {
		t.Error("session still active after deactivation")
	}
}

func TestDeactivateAllUserSessions(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.IssueSession(ctx, "user-1", model.ClientMeta{}); err != nil {
			t.Fatalf("IssueSession failed: %v", err)
		}
	}
	// Another user's session must not be touched.
	if _, err := svc.IssueSession(ctx, "user-2", model.ClientMeta{}); err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	count, err := svc.DeactivateAllUserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("DeactivateAllUserSessions failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count=3, got %d", count)
	}

	active, err := svc.FindActiveSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("FindActiveSessions failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active sessions, got %d", len(active))
	}

	otherActive, err := svc.FindActiveSessions(ctx, "user-2")
	if err != nil {
		t.Fatalf("FindActiveSessions failed: %v", err)
	}
	if len(otherActive) != 1 {
		t.Errorf("expected user-2 to keep 1 active session, got %d", len(otherActive))
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	// A: active, expires +1h — must survive.
	a, err := svc.CreateSession(ctx, "user-1",
		model.TokenPair{AccessToken: "a-access", RefreshToken: "a-refresh"},
		time.Now().Add(time.Hour), model.ClientMeta{})
	if err != nil {
		t.Fatalf("create A failed: %v", err)
	}

	// B: active, expired 1h ago — swept as expired.
	b, err := svc.CreateSession(ctx, "user-1",
		model.TokenPair{AccessToken: "b-access", RefreshToken: "b-refresh"},
		time.Now().Add(-time.Hour), model.ClientMeta{})
	if err != nil {
		t.Fatalf("create B failed: %v", err)
	}

	// C: inactive but not expired — swept anyway, this is the deliberate
	// broadening beyond pure time-based expiry.
	c, err := svc.CreateSession(ctx, "user-1",
		model.TokenPair{AccessToken: "c-access", RefreshToken: "c-refresh"},
		time.Now().Add(time.Hour), model.ClientMeta{})
	if err != nil {
		t.Fatalf("create C failed: %v", err)
	}
	if err := svc.DeactivateSession(ctx, c.SessionID); err != nil {
		t.Fatalf("deactivate C failed: %v", err)
	}

	removed, err := svc.CleanupExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("CleanupExpiredSessions failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 sessions removed, got %d", removed)
	}

	if _, err := svc.GetSession(ctx, a.SessionID); err != nil {
		t.Errorf("session A should survive the sweep: %v", err)
	}
	if _, err := svc.GetSession(ctx, b.SessionID); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("session B should be swept, got %v", err)
	}
	if _, err := svc.GetSession(ctx, c.SessionID); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("session C should be swept, got %v", err)
	}
}

func TestTouchSession(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	session, err := svc.IssueSession(ctx, "user-1", model.ClientMeta{})
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := svc.TouchSession(ctx, session.SessionID); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}

	stored, err := svc.GetSession(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !stored.LastActivity.After(stored.CreatedAt) {
		t.Errorf("last activity %v not after creation %v", stored.LastActivity, stored.CreatedAt)
	}

	if err := svc.TouchSession(ctx, "no-such-session"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for unknown id, got %v", err)
	}
}

func TestEnforceSessionLimit(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	var oldest *model.Session
	for i := 0; i < 3; i++ {
		session, err := svc.IssueSession(ctx, "user-1", model.ClientMeta{})
		if err != nil {
			t.Fatalf("IssueSession failed: %v", err)
		}
		if oldest == nil {
			oldest = session
		}
		time.Sleep(2 * time.Millisecond)
	}

	evicted, err := svc.EnforceSessionLimit(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("EnforceSessionLimit failed: %v", err)
	}
	if !evicted {
		t.Fatal("expected a session to be evicted at the cap")
	}

	stored, err := svc.GetSession(ctx, oldest.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.IsActive {
		t.Error("least recently active session was not deactivated")
	}

	evicted, err = svc.EnforceSessionLimit(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("EnforceSessionLimit failed: %v", err)
	}
	if evicted {
		t.Error("eviction should not trigger below the cap")
	}
}
