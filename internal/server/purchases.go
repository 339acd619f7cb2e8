package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	purchasedomain "github.com/kittypup/kittypup/internal/purchase/domain"
)

// VerifyPurchase verifies a store receipt and applies its grant. Replays
// of an already-applied transaction return the recorded result.
func (s *Server) VerifyPurchase(c *gin.Context) {
	var req purchasedomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.purchases.VerifyAndGrant(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
