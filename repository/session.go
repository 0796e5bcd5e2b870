package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/services"
	"github.com/devboard/devboard/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const opTimeout = 10 * time.Second

const SessionsCollection = "sessions"

// SessionRepo mediates all reads and writes against the sessions
// collection. Token uniqueness is enforced by unique indexes, see
// SetupIndexes.
type SessionRepo struct {
	MongoCollection *mongo.Collection
}

func GetSessionRepo(client *mongo.Client, dbName string) *SessionRepo {
	return &SessionRepo{
		MongoCollection: client.Database(dbName).Collection(SessionsCollection),
	}
}

// CreateSession inserts a new active session. A collision on either token
// surfaces as model.ErrDuplicateToken with the store unchanged.
func (r *SessionRepo) CreateSession(ctx context.Context, session *model.Session) error {
	timer := utils.TrackDBOperation("insert", SessionsCollection)
	defer timer.ObserveDuration()

	if session == nil {
		utils.TrackError("database", "nil_session")
		return fmt.Errorf("session cannot be nil")
	}
	if session.SessionID == "" || session.UserID == "" || session.Token == "" || session.RefreshToken == "" {
		utils.TrackError("database", "invalid_session_data")
		return fmt.Errorf("invalid session data: missing required fields")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.MongoCollection.InsertOne(ctx, session); err != nil {
		utils.TrackError("database", "session_creation_failed")
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create session: %w", model.ErrDuplicateToken)
		}
		return wrapStoreErr("create session", err)
	}
	utils.SessionsCreated.Inc()

	if services.GlobalSessionCache != nil {
		if err := services.GlobalSessionCache.SetSession(ctx, session); err != nil {
			utils.TrackError("cache", "session_cache_set_failed")
			log.Printf("Warning: Failed to cache session: %v", err)
		}
		if err := services.GlobalSessionCache.InvalidateUserSessions(ctx, session.UserID); err != nil {
			log.Printf("Warning: Failed to invalidate user session cache: %v", err)
		}
	}

	return nil
}

// GetSession fetches a session by id, consulting the cache first.
// Returns model.ErrSessionNotFound when no record exists.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	timer := utils.TrackDBOperation("find", SessionsCollection)
	defer timer.ObserveDuration()

	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	if services.GlobalSessionCache != nil {
		if session, err := services.GlobalSessionCache.GetSession(ctx, sessionID); err == nil && session != nil {
			utils.TrackCacheOperation("session", true)
			return session, nil
		}
		utils.TrackCacheOperation("session", false)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var session model.Session
	err := r.MongoCollection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, model.ErrSessionNotFound
		}
		utils.TrackError("database", "session_fetch_failed")
		return nil, wrapStoreErr("get session", err)
	}

	if services.GlobalSessionCache != nil {
		if err := services.GlobalSessionCache.SetSession(ctx, &session); err != nil {
			log.Printf("Warning: Failed to cache session: %v", err)
		}
	}

	return &session, nil
}

// GetSessionByRefreshToken fetches a session by its refresh token.
func (r *SessionRepo) GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*model.Session, error) {
	timer := utils.TrackDBOperation("find", SessionsCollection)
	defer timer.ObserveDuration()

	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var session model.Session
	err := r.MongoCollection.FindOne(ctx, bson.M{"refresh_token": refreshToken}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, model.ErrSessionNotFound
		}
		return nil, wrapStoreErr("get session by refresh token", err)
	}

	return &session, nil
}

// TouchSession refreshes last_activity on an existing record. Returns
// model.ErrSessionNotFound when the id matches nothing.
func (r *SessionRepo) TouchSession(ctx context.Context, sessionID string) error {
	timer := utils.TrackDBOperation("update", SessionsCollection)
	defer timer.ObserveDuration()

	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now()
	result, err := r.MongoCollection.UpdateOne(
		ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"last_activity": now, "updated_at": now}},
	)
	if err != nil {
		utils.TrackError("database", "session_touch_failed")
		return wrapStoreErr("touch session", err)
	}
	if result.MatchedCount == 0 {
		return model.ErrSessionNotFound
	}

	if services.GlobalSessionCache != nil {
		// Drop instead of rewrite; we don't have the full record here.
		if err := services.GlobalSessionCache.DeleteSession(ctx, sessionID); err != nil {
			log.Printf("Warning: Failed to evict touched session from cache: %v", err)
		}
	}

	return nil
}

// DeactivateSession flips is_active off. Idempotent: deactivating an
// already-inactive session succeeds.
func (r *SessionRepo) DeactivateSession(ctx context.Context, sessionID string) error {
	timer := utils.TrackDBOperation("update", SessionsCollection)
	defer timer.ObserveDuration()

	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now()
	result, err := r.MongoCollection.UpdateOne(
		ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"is_active": false, "last_activity": now, "updated_at": now}},
	)
	if err != nil {
		utils.TrackError("database", "session_deactivation_failed")
		return wrapStoreErr("deactivate session", err)
	}
	if result.MatchedCount == 0 {
		return model.ErrSessionNotFound
	}

	if services.GlobalSessionCache != nil {
		if err := services.GlobalSessionCache.DeleteSession(ctx, sessionID); err != nil {
			log.Printf("Warning: Failed to delete session from cache: %v", err)
		}
	}

	return nil
}

// sessionIDsMatching lists the session_id of every document the filter
// matches. Bulk writes use it to evict the per-session cache entries,
// which would otherwise keep serving the pre-write state until expiry.
func (r *SessionRepo) sessionIDsMatching(ctx context.Context, filter bson.M) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"session_id": 1, "_id": 0})
	cursor, err := r.MongoCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		SessionID string `bson:"session_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.SessionID)
	}
	return ids, nil
}

func evictCachedSessions(ctx context.Context, sessionIDs []string) {
	if services.GlobalSessionCache == nil {
		return
	}
	for _, id := range sessionIDs {
		if err := services.GlobalSessionCache.DeleteSession(ctx, id); err != nil {
			utils.TrackError("cache", "session_cache_delete_failed")
			log.Printf("Warning: Failed to evict session %s from cache: %v", id, err)
		}
	}
}

// DeactivateAllUserSessions bulk-deactivates every active session of a
// user and returns the number of records flipped.
func (r *SessionRepo) DeactivateAllUserSessions(ctx context.Context, userID string) (int64, error) {
	timer := utils.TrackDBOperation("update", SessionsCollection)
	defer timer.ObserveDuration()

	if userID == "" {
		return 0, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var evict []string
	if services.GlobalSessionCache != nil {
		ids, err := r.sessionIDsMatching(ctx, bson.M{"user_id": userID, "is_active": true})
		if err != nil {
			log.Printf("Warning: Failed to list sessions for cache eviction: %v", err)
		} else {
			evict = ids
		}
	}

	now := time.Now()
	result, err := r.MongoCollection.UpdateMany(
		ctx,
		bson.M{"user_id": userID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "last_activity": now, "updated_at": now}},
	)
	if err != nil {
		utils.TrackError("database", "session_bulk_deactivation_failed")
		return 0, wrapStoreErr("deactivate user sessions", err)
	}

	evictCachedSessions(ctx, evict)
	if services.GlobalSessionCache != nil {
		if err := services.GlobalSessionCache.InvalidateUserSessions(ctx, userID); err != nil {
			log.Printf("Warning: Failed to invalidate user session cache: %v", err)
		}
	}

	return result.ModifiedCount, nil
}

// FindActiveSessions returns sessions with is_active=true and an expiry in
// the future, most recently active first.
func (r *SessionRepo) FindActiveSessions(ctx context.Context, userID string) ([]*model.Session, error) {
	timer := utils.TrackDBOperation("find", SessionsCollection)
	defer timer.ObserveDuration()

	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	if services.GlobalSessionCache != nil {
		sessions, isStale, err := services.GlobalSessionCache.GetUserSessions(ctx, userID)
		if err == nil && sessions != nil && !isStale {
			utils.TrackCacheOperation("user_sessions", true)
			return sessions, nil
		}
		utils.TrackCacheOperation("user_sessions", false)
	}

	return r.fetchAndCacheActiveSessions(ctx, userID)
}

func (r *SessionRepo) fetchAndCacheActiveSessions(ctx context.Context, userID string) ([]*model.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"last_activity": -1})
	cursor, err := r.MongoCollection.Find(ctx,
		bson.M{
			"user_id":    userID,
			"is_active":  true,
			"expires_at": bson.M{"$gt": time.Now()},
		}, opts)
	if err != nil {
		return nil, wrapStoreErr("find active sessions", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, wrapStoreErr("decode active sessions", err)
	}

	if services.GlobalSessionCache != nil {
		if err := services.GlobalSessionCache.CacheUserSessions(ctx, userID, sessions); err != nil {
			log.Printf("Warning: Failed to cache user sessions: %v", err)
		}
	}

	return sessions, nil
}

// CountActiveSessions counts is_active, non-expired sessions for a user.
func (r *SessionRepo) CountActiveSessions(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	count, err := r.MongoCollection.CountDocuments(
		ctx,
		bson.M{
			"user_id":    userID,
			"is_active":  true,
			"expires_at": bson.M{"$gt": time.Now()},
		},
	)
	if err != nil {
		return 0, wrapStoreErr("count active sessions", err)
	}

	return int(count), nil
}

// DeactivateLeastActiveSession ends the session with the oldest
// last_activity, used to enforce the per-user session cap on login.
func (r *SessionRepo) DeactivateLeastActiveSession(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}

	findCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"last_activity": 1})
	var leastActive model.Session
	err := r.MongoCollection.FindOne(findCtx,
		bson.M{
			"user_id":    userID,
			"is_active":  true,
			"expires_at": bson.M{"$gt": time.Now()},
		}, opts).Decode(&leastActive)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.ErrSessionNotFound
		}
		return wrapStoreErr("find least active session", err)
	}

	return r.DeactivateSession(ctx, leastActive.SessionID)
}

// CleanupExpiredSessions is the active sweep: it deletes sessions that are
// past their expiry OR merely deactivated, and returns the count removed.
// This is deliberately broader than the store's passive TTL reaper, which
// only removes documents once expires_at passes.
func (r *SessionRepo) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	timer := utils.TrackDBOperation("delete", SessionsCollection)
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": time.Now()}},
			{"is_active": false},
		},
	}

	var evict []string
	if services.GlobalSessionCache != nil {
		ids, err := r.sessionIDsMatching(ctx, filter)
		if err != nil {
			log.Printf("Warning: Failed to list sessions for cache eviction: %v", err)
		} else {
			evict = ids
		}
	}

	result, err := r.MongoCollection.DeleteMany(ctx, filter)
	if err != nil {
		utils.TrackError("database", "session_cleanup_failed")
		return 0, wrapStoreErr("cleanup expired sessions", err)
	}

	evictCachedSessions(ctx, evict)

	utils.SessionsCleaned.Add(float64(result.DeletedCount))
	return result.DeletedCount, nil
}
