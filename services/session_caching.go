package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/redis/go-redis/v9"
)

// SessionCache is a Redis read-through cache in front of the sessions
// collection. Individual sessions are cached until their expiry; per-user
// session lists are cached briefly and considered stale after 30s.
type SessionCache struct {
	client *redis.Client
}

type sessionListEntry struct {
	Sessions  []*model.Session `json:"sessions"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// GlobalSessionCache is nil when Redis is disabled; callers must check.
var GlobalSessionCache *SessionCache

const (
	sessionKeyPrefix  = "session:"
	userListKeyPrefix = "user_sessions:"
	userListTTL       = 5 * time.Minute
	userListStaleAge  = 30 * time.Second
)

// NewSessionCache connects to Redis and verifies the connection.
func NewSessionCache(redisURL string) (*SessionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &SessionCache{client: client}, nil
}

// SetSession caches a single session with a TTL matching its expiry.
func (sc *SessionCache) SetSession(ctx context.Context, session *model.Session) error {
	if session == nil {
		return fmt.Errorf("cannot cache nil session")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session has already expired")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return sc.client.Set(ctx, sessionKeyPrefix+session.SessionID, data, ttl).Err()
}

// GetSession returns the cached session or (nil, nil) on a miss. Expired
// entries are dropped on read.
func (sc *SessionCache) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	data, err := sc.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from cache: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		sc.DeleteSession(ctx, sessionID)
		return nil, nil
	}

	return &session, nil
}

// DeleteSession drops a session from the cache.
func (sc *SessionCache) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	return sc.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// CacheUserSessions stores the active-session list for a user.
func (sc *SessionCache) CacheUserSessions(ctx context.Context, userID string, sessions []*model.Session) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}

	entry := sessionListEntry{
		Sessions:  sessions,
		UpdatedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	return sc.client.Set(ctx, userListKeyPrefix+userID, data, userListTTL).Err()
}

// GetUserSessions returns the cached list for a user plus a staleness flag.
// A miss returns (nil, false, nil).
func (sc *SessionCache) GetUserSessions(ctx context.Context, userID string) ([]*model.Session, bool, error) {
	if userID == "" {
		return nil, false, fmt.Errorf("userID cannot be empty")
	}

	data, err := sc.client.Get(ctx, userListKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user sessions from cache: %w", err)
	}

	var entry sessionListEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	isStale := time.Since(entry.UpdatedAt) > userListStaleAge

	return entry.Sessions, isStale, nil
}

// InvalidateUserSessions drops the cached list for a user. Called after any
// write that changes the user's session set.
func (sc *SessionCache) InvalidateUserSessions(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	return sc.client.Del(ctx, userListKeyPrefix+userID).Err()
}

// IsConnected reports whether the Redis connection is alive.
func (sc *SessionCache) IsConnected() bool {
	if sc == nil || sc.client == nil {
		return false
	}
	return sc.client.Ping(context.Background()).Err() == nil
}

// Close closes the Redis connection.
func (sc *SessionCache) Close() error {
	return sc.client.Close()
}
