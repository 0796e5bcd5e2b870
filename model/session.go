package model

import "time"

// Session binds a user to an access/refresh token pair with an explicit
// expiry. Expiry is independent of IsActive: a deactivated session can still
// be unexpired, and an active one can already be past its ExpiresAt.
type Session struct {
	SessionID    string    `bson:"session_id" json:"session_id"`
	UserID       string    `bson:"user_id" json:"user_id"`
	Token        string    `bson:"token" json:"token"`
	RefreshToken string    `bson:"refresh_token" json:"refresh_token"`
	UserAgent    string    `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	IPAddress    string    `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	DisplayName  string    `bson:"display_name,omitempty" json:"display_name,omitempty"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	ExpiresAt    time.Time `bson:"expires_at" json:"expires_at"`
	LastActivity time.Time `bson:"last_activity" json:"last_activity"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// TokenPair is an access/refresh token pair issued on login or token refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ClientMeta carries optional request metadata recorded on a session.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

const (
	MaxUserAgentLength = 500
	MaxIPAddressLength = 45 // fits IPv6
)
