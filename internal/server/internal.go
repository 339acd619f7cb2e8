package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
)

// workerCallbackRequest is the tagged outcome the compute worker posts
// back. On success result_key is required; on failure error carries the
// reason.
type workerCallbackRequest struct {
	JobID     string `json:"job_id" binding:"required"`
	Success   bool   `json:"success"`
	ResultKey string `json:"result_key"`
	Error     string `json:"error"`
}

// WorkerCallback applies the compute worker's terminal result. Duplicate
// deliveries for an already-settled job return 200 with no effect.
func (s *Server) WorkerCallback(c *gin.Context) {
	var req workerCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	jobID, err := snowflake.ParseString(req.JobID)
	if err != nil {
		AbortWithError(c, jobdomain.ErrInvalidJobID)
		return
	}
	if req.Success && req.ResultKey == "" {
		AbortWithError(c, newValidationError("result_key", "missing_result_key", "invalid value"))
		return
	}
	if !req.Success && req.Error == "" {
		req.Error = "generation failed"
	}

	result := jobdomain.WorkerResult{
		JobID:     jobID,
		Success:   req.Success,
		ResultKey: req.ResultKey,
		Error:     req.Error,
	}
	if err := s.jobs.CompleteFromWorker(c.Request.Context(), result); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunCleanup triggers one retention sweep on demand.
func (s *Server) RunCleanup(c *gin.Context) {
	if err := s.retentionSvc.RunOnce(c.Request.Context()); err != nil {
		s.log.Error("manual retention sweep failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
