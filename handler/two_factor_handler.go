package handler

import (
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
)

// Setup2FAHandler mints a TOTP secret the client provisions into an
// authenticator app. Nothing is stored until the code is confirmed.
func Setup2FAHandler(c *gin.Context, userService *usecase.UserService) {
	userID := c.GetString("user_id")

	user, err := userService.UsersRepo.FindUser(c.Request.Context(), userID)
	if err != nil {
		utils.InternalError(c, "Failed to fetch user")
		return
	}
	if user.TwoFactorEnabled {
		utils.BadRequest(c, "2FA is already enabled")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "DevBoard",
		AccountName: user.Username,
	})
	if err != nil {
		utils.InternalError(c, "Failed to generate 2FA secret")
		return
	}

	utils.Success(c, gin.H{
		"secret": key.Secret(),
		"url":    key.URL(),
	})
}

// Enable2FAHandler verifies the first code against the pending secret and
// turns 2FA on, recording a settings_change audit entry.
func Enable2FAHandler(c *gin.Context, userService *usecase.UserService, activities *usecase.ActivityService) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
		Code   string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request")
		return
	}

	userID := c.GetString("user_id")

	user, err := userService.UsersRepo.FindUser(c.Request.Context(), userID)
	if err != nil {
		utils.InternalError(c, "Failed to fetch user")
		return
	}
	if user.TwoFactorEnabled {
		utils.BadRequest(c, "2FA is already enabled")
		return
	}

	if !totp.Validate(req.Code, req.Secret) {
		utils.BadRequest(c, "Invalid 2FA code")
		return
	}

	if err := userService.UsersRepo.UpdateTwoFactor(c.Request.Context(), userID, req.Secret, true); err != nil {
		utils.InternalError(c, "Failed to enable 2FA")
		return
	}

	activities.RecordActivity(c.Request.Context(), userID, usecase.ActivityEntry{
		Type:        model.ActivitySettingsChange,
		Description: "Two-factor authentication enabled",
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})

	utils.Success(c, gin.H{"message": "2FA enabled successfully"})
}
