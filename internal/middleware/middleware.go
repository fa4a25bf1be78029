package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/franzego/eventmailer/internal/models"
	"github.com/franzego/eventmailer/internal/processor"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CorrelationIDKey = "X-Correlation-ID"
	maxCorrelationID = 128
)

// CorrelationID accepts the caller's X-Correlation-ID or mints one, echoes it
// back and attaches it to the request context so processor logs and published
// messages carry it.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CorrelationIDKey))
		if id == "" || len(id) > maxCorrelationID {
			id = uuid.NewString()
		}
		c.Set(CorrelationIDKey, id)
		c.Header(CorrelationIDKey, id)
		c.Request = c.Request.WithContext(processor.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("correlation_id", c.GetString(CorrelationIDKey)),
		)
	}
}

// WebhookAuth requires an HS256 bearer token signed with secret. An empty
// secret disables the check.
func WebhookAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		authKey := c.GetHeader("Authorization")
		if authKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
				Success: false,
				Error:   "Authorization header required",
				Message: "Unauthorized",
			})
			return
		}
		parts := strings.SplitN(authKey, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
				Success: false,
				Error:   "Invalid authorization scheme",
				Message: "Unauthorized",
			})
			return
		}
		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
				Success: false,
				Error:   "Invalid Token",
				Message: "Unauthorized",
			})
			return
		}
		c.Next()
	}
}
