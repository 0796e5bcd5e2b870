package handler

import (
	"errors"

	"github.com/devboard/devboard/dto"
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
)

func RegistrationHandler(c *gin.Context, userService *usecase.UserService) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.TrackError("validation", "invalid_registration_request")
		utils.BadRequest(c, "Invalid request")
		return
	}

	user, err := userService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateUsername) {
			utils.Conflict(c, "Username already taken")
			return
		}
		utils.TrackError("auth", "registration_failed")
		utils.InternalError(c, "Failed to register user")
		return
	}

	utils.Created(c, dto.UserResponse{
		UserID:   user.UserID,
		Username: user.Username,
		Email:    user.Email,
	})
}
