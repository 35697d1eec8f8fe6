package handler

import (
	"context"
	"net/http"
	"time"

	"settlepos/internal/infra"
	"settlepos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity; never exposes credentials or internals.
// DLQ depths and the drawer breaker are informational and never fail the check.
func Health(db *gorm.DB, rdb *redis.Client, drawer *infra.DrawerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
		}
		if redisStatus == "connected" {
			if depths, err := worker.DLQDepths(ctx, rdb); err == nil {
				body["dlq"] = depths
			}
		}
		if drawer.Enabled() {
			body["drawer"] = drawer.BreakerState().String()
		}
		c.JSON(status, body)
	}
}
