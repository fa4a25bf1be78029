package handlers

import (
	"github.com/franzego/eventmailer/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the HTTP surface: health, manual trigger, webhook and status.
func NewRouter(notifications *NotificationHandler, health *HealthHandler, webhookSecret string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.CorrelationID(), middleware.RequestLogger(logger))

	r.GET("/health", health.HealthCheck)

	r.GET("/", notifications.Process)
	r.POST("/", notifications.Process)
	r.GET("/process", notifications.Process)
	r.POST("/process", notifications.Process)

	r.POST("/webhook", middleware.WebhookAuth(webhookSecret), notifications.Webhook)

	r.GET("/status/:id", notifications.GetStatus)

	return r
}
