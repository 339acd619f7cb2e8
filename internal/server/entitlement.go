package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetEntitlement returns the caller's credit and subscription state,
// creating the default ledger row on first access.
func (s *Server) GetEntitlement(c *gin.Context) {
	entitlement, err := s.entitlements.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entitlement)
}
