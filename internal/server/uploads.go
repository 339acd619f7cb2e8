package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type createUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType"`
}

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// CreateUpload issues a presigned upload slot for one input image.
func (s *Server) CreateUpload(c *gin.Context) {
	var req createUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if !allowedUploadTypes[contentType] {
		AbortWithError(c, newValidationError("contentType", "unsupported_content_type", "unsupported content type"))
		return
	}

	target, err := s.storage.IssueUploadTarget(c.Request.Context(), req.FileName, contentType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, target)
}
