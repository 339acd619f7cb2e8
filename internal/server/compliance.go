package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestDeletion records and runs an account erasure request.
func (s *Server) RequestDeletion(c *gin.Context) {
	req, err := s.compliance.RequestDeletion(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, req)
}

// ExportData returns everything stored about the caller.
func (s *Server) ExportData(c *gin.Context) {
	export, err := s.compliance.ExportData(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}
