package handler

import (
	"context"
	"time"

	"github.com/devboard/devboard/services"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// HealthHandler reports dependency reachability and coarse host load.
func HealthHandler(c *gin.Context) {
	status := "ok"

	mongoUp := false
	if utils.MongoClient != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		mongoUp = utils.MongoClient.Ping(ctx, nil) == nil
	}
	if !mongoUp {
		status = "degraded"
	}

	redisUp := services.GlobalSessionCache.IsConnected()

	var cpuPercent float64
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		cpuPercent = percentages[0]
	}

	var memUsed float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsed = vm.UsedPercent
	}

	utils.Success(c, gin.H{
		"status": status,
		"mongo":  mongoUp,
		"redis":  redisUp,
		"system": gin.H{
			"cpu_percent":    cpuPercent,
			"memory_percent": memUsed,
		},
	})
}
