package controllers

import (
	"net/http"
	"time"

	"membership-portal/web/db"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health reports host load and database reachability for the admin dashboard.
func Health(c *gin.Context) {
	cpuUsage, err := cpu.Percent(time.Second, false)
	if err != nil || len(cpuUsage) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read CPU usage"})
		return
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read memory usage"})
		return
	}

	dbOK := true
	if sqlDB, err := db.DB.DB(); err != nil || sqlDB.Ping() != nil {
		dbOK = false
	}

	c.JSON(http.StatusOK, gin.H{
		"cpu_percent": cpuUsage[0],
		"mem_percent": memInfo.UsedPercent,
		"db_ok":       dbOK,
	})
}
