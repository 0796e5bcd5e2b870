package handler

import (
	"errors"
	"strconv"

	"github.com/devboard/devboard/dto"
	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
)

// LogActivityHandler appends an audit record on behalf of feature code
// (profile updates, file uploads, exports). Unlike the implicit audit
// writes on login/logout, this one is the caller's primary action, so
// validation failures are surfaced.
func LogActivityHandler(c *gin.Context, activities *usecase.ActivityService) {
	userID := c.GetString("user_id")

	var req dto.LogActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request")
		return
	}

	activity, err := activities.LogActivity(c.Request.Context(), userID, usecase.ActivityEntry{
		Type:        model.ActivityType(req.ActivityType),
		Description: req.Description,
		Metadata:    req.Metadata,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidActivityType) {
			utils.BadRequest(c, "Unsupported activity type")
			return
		}
		utils.TrackError("audit", "activity_log_failed")
		utils.InternalError(c, "Failed to log activity")
		return
	}

	utils.Created(c, dto.ToActivityResponse(activity))
}

func GetUserActivitiesHandler(c *gin.Context, activities *usecase.ActivityService) {
	userID := c.GetString("user_id")

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	skip, _ := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)

	records, err := activities.GetUserActivities(c.Request.Context(), userID, limit, skip)
	if err != nil {
		utils.TrackError("audit", "activity_fetch_failed")
		utils.InternalError(c, "Failed to fetch activities")
		return
	}

	out := make([]dto.ActivityResponse, 0, len(records))
	for _, a := range records {
		out = append(out, dto.ToActivityResponse(a))
	}

	utils.Success(c, gin.H{
		"activities": out,
		"limit":      limit,
		"skip":       skip,
	})
}

func GetActivityStatsHandler(c *gin.Context, activities *usecase.ActivityService) {
	userID := c.GetString("user_id")

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	stats, err := activities.GetActivityStats(c.Request.Context(), userID, days)
	if err != nil {
		utils.TrackError("audit", "activity_stats_failed")
		utils.InternalError(c, "Failed to fetch activity stats")
		return
	}

	utils.Success(c, gin.H{
		"stats": stats,
		"days":  days,
	})
}
