package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ActivitiesCollection = "user_activities"

// ActivityRepo appends and reads back audit records. The collection is
// write-once: there is no update path, and retention is handled by the
// TTL index on timestamp.
type ActivityRepo struct {
	MongoCollection *mongo.Collection
}

func GetActivityRepo(client *mongo.Client, dbName string) *ActivityRepo {
	return &ActivityRepo{
		MongoCollection: client.Database(dbName).Collection(ActivitiesCollection),
	}
}

// InsertActivity appends one audit record.
func (r *ActivityRepo) InsertActivity(ctx context.Context, activity *model.UserActivity) error {
	timer := utils.TrackDBOperation("insert", ActivitiesCollection)
	defer timer.ObserveDuration()

	if activity == nil {
		return fmt.Errorf("activity cannot be nil")
	}
	if activity.UserID == "" || activity.ActivityType == "" {
		utils.TrackError("database", "invalid_activity_data")
		return fmt.Errorf("invalid activity data: missing required fields")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.MongoCollection.InsertOne(ctx, activity); err != nil {
		utils.TrackError("database", "activity_insert_failed")
		return wrapStoreErr("insert activity", err)
	}

	utils.TrackActivity(string(activity.ActivityType))
	return nil
}

// GetUserActivities returns records for the user, newest first, windowed
// by limit and skip.
func (r *ActivityRepo) GetUserActivities(ctx context.Context, userID string, limit, skip int64) ([]*model.UserActivity, error) {
	timer := utils.TrackDBOperation("find", ActivitiesCollection)
	defer timer.ObserveDuration()

	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)

	cursor, err := r.MongoCollection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		utils.TrackError("database", "activity_fetch_failed")
		return nil, wrapStoreErr("find user activities", err)
	}
	defer cursor.Close(ctx)

	var activities []*model.UserActivity
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, wrapStoreErr("decode user activities", err)
	}

	return activities, nil
}

// GetActivityStats aggregates records newer than since, grouped by type,
// yielding per-type counts and the most recent timestamp observed.
func (r *ActivityRepo) GetActivityStats(ctx context.Context, userID string, since time.Time) ([]*model.ActivityStats, error) {
	timer := utils.TrackDBOperation("aggregate", ActivitiesCollection)
	defer timer.ObserveDuration()

	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":   userID,
			"timestamp": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$activity_type",
			"count":         bson.M{"$sum": 1},
			"last_activity": bson.M{"$max": "$timestamp"},
		}}},
	}

	cursor, err := r.MongoCollection.Aggregate(ctx, pipeline)
	if err != nil {
		utils.TrackError("database", "activity_stats_failed")
		return nil, wrapStoreErr("aggregate activity stats", err)
	}
	defer cursor.Close(ctx)

	var stats []*model.ActivityStats
	if err = cursor.All(ctx, &stats); err != nil {
		return nil, wrapStoreErr("decode activity stats", err)
	}

	return stats, nil
}
