package handler

import (
	"errors"
	"log"
	"strings"

	"github.com/devboard/devboard/middleware"
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/services"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
)

// RefreshTokenHandler exchanges a valid refresh token for a brand-new
// session with a fresh pair. The old session is deactivated, never
// reused: re-authentication always creates, it does not reactivate.
func RefreshTokenHandler(c *gin.Context, sessions *usecase.SessionService, activities *usecase.ActivityService) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		utils.Unauthorized(c, "Missing or invalid refresh token")
		return
	}
	refreshToken := strings.TrimPrefix(authHeader, "Bearer ")

	if services.IsTokenBlacklisted(refreshToken) {
		utils.Unauthorized(c, "Token has been invalidated")
		return
	}

	userID, err := services.ValidateToken(refreshToken, "refresh")
	if err != nil {
		utils.TrackAuthAttempt("failure", "refresh")
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	oldSession, err := sessions.GetSessionByRefreshToken(c.Request.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			utils.TrackAuthAttempt("failure", "refresh")
			utils.Unauthorized(c, "Session not found")
			return
		}
		utils.TrackError("session", "refresh_lookup")
		utils.InternalError(c, "Failed to look up session")
		return
	}

	if !oldSession.IsActive || sessions.IsExpired(oldSession) {
		utils.TrackAuthAttempt("failure", "refresh")
		utils.Unauthorized(c, "Session expired")
		return
	}

	if err := sessions.DeactivateSession(c.Request.Context(), oldSession.SessionID); err != nil {
		utils.TrackError("session", "refresh_deactivation")
		utils.InternalError(c, "Failed to rotate session")
		return
	}

	meta := model.ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}

	newSession, err := sessions.IssueSession(c.Request.Context(), userID, meta)
	if err != nil {
		utils.TrackError("session", "refresh_creation")
		utils.InternalError(c, "Failed to create session")
		return
	}

	if err := services.BlacklistTokens(oldSession.Token, oldSession.RefreshToken); err != nil {
		log.Printf("Warning: Failed to blacklist rotated tokens: %v", err)
	}

	middleware.SetSessionCookie(c, newSession)

	activities.RecordActivity(c.Request.Context(), userID, usecase.ActivityEntry{
		Type:        model.ActivityLogin,
		Description: "Session refreshed",
		Metadata:    map[string]interface{}{"method": "token_refresh"},
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})

	utils.TrackAuthAttempt("success", "refresh")

	utils.Success(c, gin.H{
		"token":      newSession.Token,
		"refresh":    newSession.RefreshToken,
		"session_id": newSession.SessionID,
	})
}
