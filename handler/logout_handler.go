package handler

import (
	"errors"
	"log"

	"github.com/devboard/devboard/middleware"
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/services"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
)

// LogoutHandler revokes the caller's tokens, deactivates the session, and
// records a logout audit entry. The deactivated record is later removed by
// the cleanup sweep.
func LogoutHandler(c *gin.Context, sessions *usecase.SessionService, activities *usecase.ActivityService) {
	userID := c.GetString("user_id")
	accessToken := c.GetString("access_token")

	refreshToken := c.GetHeader("Refresh-Token")
	if refreshToken == "" {
		utils.BadRequest(c, "Missing refresh token")
		return
	}

	if err := services.BlacklistTokens(accessToken, refreshToken); err != nil {
		log.Printf("Warning: Failed to blacklist tokens: %v", err)
	}

	if sessionID := c.GetString("session_id"); sessionID != "" {
		if err := sessions.DeactivateSession(c.Request.Context(), sessionID); err != nil &&
			!errors.Is(err, model.ErrSessionNotFound) {
			utils.TrackError("session", "deactivation")
			utils.InternalError(c, "Failed to end session")
			return
		}
	} else if session, err := sessions.GetSessionByRefreshToken(c.Request.Context(), refreshToken); err == nil {
		if err := sessions.DeactivateSession(c.Request.Context(), session.SessionID); err != nil {
			log.Printf("Warning: Failed to deactivate session on logout: %v", err)
		}
	}

	middleware.ClearSessionCookie(c)

	activities.RecordActivity(c.Request.Context(), userID, usecase.ActivityEntry{
		Type:        model.ActivityLogout,
		Description: "User logged out",
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})

	utils.Success(c, gin.H{"message": "Successfully logged out"})
}
