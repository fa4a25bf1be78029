package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/franzego/eventmailer/internal/invocation"
	"github.com/franzego/eventmailer/internal/models"
	"github.com/franzego/eventmailer/internal/processor"
	"github.com/franzego/eventmailer/internal/status"
	"github.com/franzego/eventmailer/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	webhookTable = "events"
	webhookType  = "INSERT"
)

// Invoker runs fn inside a fresh set of clients that is released afterwards.
type Invoker interface {
	Run(ctx context.Context, fn func(ctx context.Context, p processor.Runner) error) error
	DeliveryStatus(ctx context.Context, eventID string) (*models.DeliveryStatus, error)
}

type NotificationHandler struct {
	invoker   Invoker
	batchSize int
	logger    *zap.Logger
}

func NewNotificationHandler(invoker Invoker, batchSize int, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		invoker:   invoker,
		batchSize: batchSize,
		logger:    logger,
	}
}

// requestContext keeps request values, the correlation id included, but drops
// cancellation: once started, a run is not aborted by the caller going away.
func requestContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// Process runs one batch of unsent events.
func (n *NotificationHandler) Process(c *gin.Context) {
	var result *models.BatchResult
	err := n.invoker.Run(requestContext(c), func(ctx context.Context, p processor.Runner) error {
		var err error
		result, err = p.ProcessBatch(ctx, n.batchSize)
		return err
	})
	if err != nil {
		n.logger.Error("batch processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Failed to process events",
		})
		return
	}

	c.JSON(http.StatusOK, models.ProcessResponse{
		Success:    true,
		Processed:  result.Processed,
		Successful: result.Successful,
		Failed:     result.Failed,
		Message:    summary(result),
		Results:    result.Results,
	})
}

// Webhook handles a database INSERT notification for the events table by
// processing the referenced event only.
func (n *NotificationHandler) Webhook(c *gin.Context) {
	var req models.WebhookPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}
	if req.Table != webhookTable || req.Type != webhookType {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported webhook %s on %s", req.Type, req.Table),
			Message: "Only INSERT on events is accepted",
		})
		return
	}
	if req.Record.EventID == "" {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "record.event_id is required",
			Message: "Invalid Request Body",
		})
		return
	}

	var result *models.EventResult
	err := n.invoker.Run(requestContext(c), func(ctx context.Context, p processor.Runner) error {
		var err error
		result, err = p.ProcessEvent(ctx, req.Record.EventID)
		return err
	})
	switch {
	case errors.Is(err, store.ErrEventNotFound):
		c.JSON(http.StatusNotFound, models.WebhookResponse{Success: false, Error: err.Error()})
		return
	case err != nil:
		n.logger.Error("webhook processing failed", zap.String("event_id", req.Record.EventID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.WebhookResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.WebhookResponse{Success: result.Success, Result: result})
}

// GetStatus returns the last recorded delivery outcome for an event.
func (n *NotificationHandler) GetStatus(c *gin.Context) {
	eventID := c.Param("id")
	s, err := n.invoker.DeliveryStatus(requestContext(c), eventID)
	switch {
	case errors.Is(err, status.ErrStatusNotFound):
		c.JSON(http.StatusNotFound, models.APIResponse{
			Success: false,
			Error:   "Notification not found",
			Message: "No delivery status recorded for event",
		})
		return
	case errors.Is(err, invocation.ErrStatusDisabled):
		c.JSON(http.StatusServiceUnavailable, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Status tracking disabled",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Delivery status retrieved",
		Data:    s,
	})
}

func summary(r *models.BatchResult) string {
	if r.Processed == 0 {
		return "No unsent events"
	}
	return fmt.Sprintf("Processed %d events: %d successful, %d failed", r.Processed, r.Successful, r.Failed)
}
