package handler

import (
	"errors"

	"github.com/devboard/devboard/dto"
	"github.com/devboard/devboard/middleware"
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
)

// LoginHandler authenticates a user, issues a token pair bound to a new
// session, and records a login audit entry. Session creation failures are
// fatal to the login; the audit write is best-effort.
func LoginHandler(c *gin.Context, userService *usecase.UserService, sessions *usecase.SessionService, activities *usecase.ActivityService, maxActiveSessions int) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.TrackAuthAttempt("failure", "validation")
		utils.BadRequest(c, "Invalid request")
		return
	}

	user, ok, err := userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			utils.TrackAuthAttempt("failure", "user_not_found")
			utils.Unauthorized(c, "Invalid credentials")
			return
		}
		utils.TrackError("auth", "user_lookup")
		utils.InternalError(c, "Failed to look up user")
		return
	}
	if !ok {
		utils.TrackAuthAttempt("failure", "invalid_password")
		utils.Unauthorized(c, "Invalid credentials")
		return
	}

	if user.TwoFactorEnabled {
		if req.TwoFactorCode == "" {
			utils.TrackAuthAttempt("pending", "2fa_required")
			utils.Success(c, gin.H{
				"requires_2fa": true,
				"message":      "2FA code required",
			})
			return
		}
		if !totp.Validate(req.TwoFactorCode, user.TwoFactorSecret) {
			utils.TrackAuthAttempt("failure", "invalid_2fa")
			utils.Unauthorized(c, "Invalid 2FA code")
			return
		}
		utils.TrackAuthAttempt("success", "2fa")
	}

	var notice string
	evicted, err := sessions.EnforceSessionLimit(c.Request.Context(), user.UserID, maxActiveSessions)
	if err != nil {
		utils.TrackError("session", "limit_check")
		utils.InternalError(c, "Failed to manage sessions")
		return
	}
	if evicted {
		notice = "Logged out of least active session due to session limit"
	}

	meta := model.ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}

	session, err := sessions.IssueSession(c.Request.Context(), user.UserID, meta)
	if err != nil {
		utils.TrackError("session", "creation")
		utils.TrackAuthAttempt("failure", "session_creation")
		utils.InternalError(c, "Failed to create session")
		return
	}

	middleware.SetSessionCookie(c, session)

	activities.RecordActivity(c.Request.Context(), user.UserID, usecase.ActivityEntry{
		Type:        model.ActivityLogin,
		Description: "User logged in",
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Location:    utils.LookupLocation(meta.IPAddress),
	})

	utils.TrackAuthAttempt("success", "login")

	utils.Success(c, dto.LoginResponse{
		Token:        session.Token,
		RefreshToken: session.RefreshToken,
		SessionID:    session.SessionID,
		User: dto.UserResponse{
			UserID:   user.UserID,
			Username: user.Username,
			Email:    user.Email,
		},
		Notice: notice,
	})
}
