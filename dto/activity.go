package dto

import (
	"time"

	"github.com/devboard/devboard/model"
)

type LogActivityRequest struct {
	ActivityType string                 `json:"activity_type" binding:"required"`
	Description  string                 `json:"description" binding:"required,max=500"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

type ActivityResponse struct {
	ActivityID   string                 `json:"activity_id"`
	ActivityType string                 `json:"activity_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

func ToActivityResponse(a *model.UserActivity) ActivityResponse {
	return ActivityResponse{
		ActivityID:   a.ActivityID,
		ActivityType: string(a.ActivityType),
		Description:  a.Description,
		Metadata:     a.Metadata,
		Timestamp:    a.Timestamp,
	}
}

type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	DisplayName  string    `json:"display_name,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	IsActive     bool      `json:"is_active"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	Current      bool      `json:"current,omitempty"`
}

func ToSessionResponse(s *model.Session, currentID string) SessionResponse {
	return SessionResponse{
		SessionID:    s.SessionID,
		DisplayName:  s.DisplayName,
		IPAddress:    s.IPAddress,
		IsActive:     s.IsActive,
		ExpiresAt:    s.ExpiresAt,
		LastActivity: s.LastActivity,
		CreatedAt:    s.CreatedAt,
		Current:      currentID != "" && s.SessionID == currentID,
	}
}
