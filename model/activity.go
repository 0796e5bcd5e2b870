package model

import "time"

// ActivityType is the closed set of auditable user actions.
type ActivityType string

const (
	ActivityLogin          ActivityType = "login"
	ActivityLogout         ActivityType = "logout"
	ActivityProfileUpdate  ActivityType = "profile_update"
	ActivityPasswordChange ActivityType = "password_change"
	ActivityAPIAccess      ActivityType = "api_access"
	ActivityFileUpload     ActivityType = "file_upload"
	ActivitySettingsChange ActivityType = "settings_change"
	ActivityDataExport     ActivityType = "data_export"
)

var validActivityTypes = map[ActivityType]struct{}{
	ActivityLogin:          {},
	ActivityLogout:         {},
	ActivityProfileUpdate:  {},
	ActivityPasswordChange: {},
	ActivityAPIAccess:      {},
	ActivityFileUpload:     {},
	ActivitySettingsChange: {},
	ActivityDataExport:     {},
}

// IsValid reports whether t is one of the enumerated activity kinds.
func (t ActivityType) IsValid() bool {
	_, ok := validActivityTypes[t]
	return ok
}

// ActivityLocation is a coarse geo hint attached to an activity record.
type ActivityLocation struct {
	Country string `bson:"country,omitempty" json:"country,omitempty"`
	City    string `bson:"city,omitempty" json:"city,omitempty"`
	Region  string `bson:"region,omitempty" json:"region,omitempty"`
}

// UserActivity is an append-only audit record. Records are never updated
// after insertion and are reaped by the store once older than the
// retention window.
type UserActivity struct {
	ActivityID   string                 `bson:"activity_id" json:"activity_id"`
	UserID       string                 `bson:"user_id" json:"user_id"`
	ActivityType ActivityType           `bson:"activity_type" json:"activity_type"`
	Description  string                 `bson:"description" json:"description"`
	Metadata     map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IPAddress    string                 `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent    string                 `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	Location     *ActivityLocation      `bson:"location,omitempty" json:"location,omitempty"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
	CreatedAt    time.Time              `bson:"created_at" json:"created_at"`
}

// ActivityStats is one row of the per-type aggregation over a time window.
type ActivityStats struct {
	ActivityType ActivityType `bson:"_id" json:"activity_type"`
	Count        int64        `bson:"count" json:"count"`
	LastActivity time.Time    `bson:"last_activity" json:"last_activity"`
}

const (
	MaxDescriptionLength = 500
	MaxLocationLength    = 100

	// ActivityRetention is how long audit records are kept before the
	// store's TTL reaper removes them.
	ActivityRetention = 90 * 24 * time.Hour
)
