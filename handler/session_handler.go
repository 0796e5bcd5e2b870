package handler

import (
	"github.com/devboard/devboard/dto"
	"github.com/devboard/devboard/middleware"
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
)

func GetActiveSessions(c *gin.Context, sessions *usecase.SessionService) {
	userID := c.GetString("user_id")

	active, err := sessions.FindActiveSessions(c.Request.Context(), userID)
	if err != nil {
		utils.TrackError("session", "list_failed")
		utils.InternalError(c, "Failed to fetch sessions")
		return
	}

	currentID := c.GetString("session_id")
	out := make([]dto.SessionResponse, 0, len(active))
	for _, s := range active {
		out = append(out, dto.ToSessionResponse(s, currentID))
	}

	utils.Success(c, gin.H{"sessions": out})
}

func LogoutAllSessions(c *gin.Context, sessions *usecase.SessionService, activities *usecase.ActivityService) {
	userID := c.GetString("user_id")

	ended, err := sessions.DeactivateAllUserSessions(c.Request.Context(), userID)
	if err != nil {
		utils.TrackError("session", "bulk_deactivation")
		utils.InternalError(c, "Failed to end all sessions")
		return
	}

	middleware.ClearSessionCookie(c)

	activities.RecordActivity(c.Request.Context(), userID, usecase.ActivityEntry{
		Type:        model.ActivityLogout,
		Description: "Logged out of all sessions",
		Metadata:    map[string]interface{}{"sessions_ended": ended},
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})

	utils.Success(c, gin.H{
		"message":        "Successfully logged out of all sessions",
		"sessions_ended": ended,
	})
}
