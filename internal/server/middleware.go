package server

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDKey = "auth.user_id"

// AuthRequired validates the Authorization bearer token and stores the
// subject claim as the request's user id.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := s.parseUserToken(token)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Server) parseUserToken(raw string) (string, error) {
	if s.cfg.AuthJWTSecret == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.AuthJWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return sub, nil
}

func currentUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// InternalAuthRequired gates the maintenance endpoints. Outside production
// the check is skipped so local workers need no shared secret.
func (s *Server) InternalAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.IsProduction() {
			c.Next()
			return
		}
		token := bearerToken(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APISecret)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RateLimit enforces the named bucket per authenticated user, falling back
// to client IP for unauthenticated routes. Limiter failures allow the
// request; rate limiting is protection, not a gate.
func (s *Server) RateLimit(bucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := currentUserID(c)
		if key == "" {
			key = c.ClientIP()
		}
		allowed, err := s.limiter.Allow(c.Request.Context(), bucket, key)
		if err != nil {
			s.log.Warn("rate limiter unavailable",
				zap.String("bucket", bucket), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
