package handler

import (
	"fmt"

	"github.com/devboard/devboard/dto"
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
)

// ChangePasswordHandler updates the password and force-logs-out every
// session the user holds. The audit entry records how many were ended.
func ChangePasswordHandler(c *gin.Context, userService *usecase.UserService, sessions *usecase.SessionService, activities *usecase.ActivityService) {
	userID := c.GetString("user_id")

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request")
		return
	}

	if err := userService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		utils.TrackError("auth", "password_change_failed")
		utils.Unauthorized(c, "Failed to change password")
		return
	}

	ended, err := sessions.DeactivateAllUserSessions(c.Request.Context(), userID)
	if err != nil {
		utils.TrackError("session", "bulk_deactivation")
		utils.InternalError(c, "Password changed but failed to end sessions")
		return
	}

	activities.RecordActivity(c.Request.Context(), userID, usecase.ActivityEntry{
		Type:        model.ActivityPasswordChange,
		Description: "Password changed, all sessions ended",
		Metadata:    map[string]interface{}{"sessions_ended": ended},
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})

	utils.Success(c, gin.H{
		"message":        "Password changed successfully",
		"sessions_ended": fmt.Sprintf("%d", ended),
	})
}
