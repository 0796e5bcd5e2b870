package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/utils"
)

// ActivityStore is the persistence contract for audit records.
// Implemented by repository.ActivityRepo.
type ActivityStore interface {
	InsertActivity(ctx context.Context, activity *model.UserActivity) error
	GetUserActivities(ctx context.Context, userID string, limit, skip int64) ([]*model.UserActivity, error)
	GetActivityStats(ctx context.Context, userID string, since time.Time) ([]*model.ActivityStats, error)
}

const (
	DefaultActivityLimit = 50
	DefaultStatsDays     = 30
)

// ActivityService appends immutable audit records and reads them back.
// Writes are validated before touching the store; once written a record
// is never mutated.
type ActivityService struct {
	Store ActivityStore
}

// ActivityEntry is the caller-supplied portion of an audit record.
type ActivityEntry struct {
	Type        model.ActivityType
	Description string
	Metadata    map[string]interface{}
	IPAddress   string
	UserAgent   string
	Location    *model.ActivityLocation
}

// LogActivity validates and appends one audit record. An unknown type is
// rejected with model.ErrInvalidActivityType before any write; so is an
// over-length description. Optional client metadata is bounded by
// truncation rather than rejection.
func (s *ActivityService) LogActivity(ctx context.Context, userID string, entry ActivityEntry) (*model.UserActivity, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if !entry.Type.IsValid() {
		utils.TrackError("validation", "invalid_activity_type")
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidActivityType, entry.Type)
	}
	if len(entry.Description) > model.MaxDescriptionLength {
		utils.TrackError("validation", "description_too_long")
		return nil, fmt.Errorf("description exceeds %d characters", model.MaxDescriptionLength)
	}

	if entry.Location != nil {
		entry.Location = &model.ActivityLocation{
			Country: utils.Truncate(entry.Location.Country, model.MaxLocationLength),
			City:    utils.Truncate(entry.Location.City, model.MaxLocationLength),
			Region:  utils.Truncate(entry.Location.Region, model.MaxLocationLength),
		}
	}

	now := time.Now()
	activity := &model.UserActivity{
		ActivityID:   utils.GenerateActivityID(),
		UserID:       userID,
		ActivityType: entry.Type,
		Description:  entry.Description,
		Metadata:     entry.Metadata,
		IPAddress:    utils.Truncate(entry.IPAddress, model.MaxIPAddressLength),
		UserAgent:    utils.Truncate(entry.UserAgent, model.MaxUserAgentLength),
		Location:     entry.Location,
		Timestamp:    now,
		CreatedAt:    now,
	}

	if err := s.Store.InsertActivity(ctx, activity); err != nil {
		return nil, err
	}

	return activity, nil
}

// RecordActivity is the best-effort form used alongside a primary action:
// an audit failure is reported to the log and never propagated, so it
// cannot block the action it describes.
func (s *ActivityService) RecordActivity(ctx context.Context, userID string, entry ActivityEntry) {
	if _, err := s.LogActivity(ctx, userID, entry); err != nil {
		utils.TrackError("audit", "activity_write_failed")
		log.Printf("Warning: Failed to record %s activity for user %s: %v", entry.Type, userID, err)
	}
}

// GetUserActivities returns records for the user, newest first. A
// non-positive limit falls back to the default page size.
func (s *ActivityService) GetUserActivities(ctx context.Context, userID string, limit, skip int64) ([]*model.UserActivity, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if skip < 0 {
		skip = 0
	}
	return s.Store.GetUserActivities(ctx, userID, limit, skip)
}

// GetActivityStats aggregates per-type counts and most recent timestamps
// over the past days (default 30).
func (s *ActivityService) GetActivityStats(ctx context.Context, userID string, days int) ([]*model.ActivityStats, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if days <= 0 {
		days = DefaultStatsDays
	}
	since := time.Now().AddDate(0, 0, -days)
	return s.Store.GetActivityStats(ctx, userID, since)
}
