package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
)

// CreateJob reserves an entitlement and enqueues one generation job.
func (s *Server) CreateJob(c *gin.Context) {
	var req jobdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.jobs.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (s *Server) GetJob(c *gin.Context) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, jobdomain.ErrInvalidJobID)
		return
	}

	view, err := s.jobs.Get(c.Request.Context(), currentUserID(c), jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) ListJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid value"))
			return
		}
		limit = parsed
	}

	result, err := s.jobs.List(c.Request.Context(), currentUserID(c), limit, c.Query("cursor"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
