package utils

import "github.com/google/uuid"

// GenerateUserID returns a new random id for a user record.
func GenerateUserID() string {
	return uuid.New().String()
}

// GenerateSessionID returns a new random id for a session record.
func GenerateSessionID() string {
	return uuid.New().String()
}

// GenerateActivityID returns a new random id for an activity record.
func GenerateActivityID() string {
	return uuid.New().String()
}
