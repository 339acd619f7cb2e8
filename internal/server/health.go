package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/ready", s.Ready)
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the process can serve traffic: database and Redis
// must both answer.
func (s *Server) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{"database": "ok", "redis": "ok"}
	healthy := true

	sqlDB, err := s.db.DB()
	if err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
