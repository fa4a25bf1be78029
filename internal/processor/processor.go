package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/franzego/eventmailer/internal/models"
	"github.com/franzego/eventmailer/internal/render"
	"go.uber.org/zap"
)

type Store interface {
	FetchUnsent(ctx context.Context, limit int) ([]models.Event, error)
	GetUnsentEvent(ctx context.Context, id string) (*models.Event, error)
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	NotificationsEnabled(ctx context.Context, ownerID string) (bool, error)
	MarkSent(ctx context.Context, id string) error
}

type OwnerLookup interface {
	LookupOwner(ctx context.Context, ownerID string) (models.Owner, error)
}

type EmailSender interface {
	Send(ctx context.Context, email models.Email) error
}

type StatusRecorder interface {
	Record(ctx context.Context, status models.DeliveryStatus) error
}

type SentPublisher interface {
	PublishSent(ctx context.Context, message models.SentMessage) error
}

// Runner is what the entry points need from a processor.
type Runner interface {
	ProcessBatch(ctx context.Context, maxItems int) (*models.BatchResult, error)
	ProcessEvent(ctx context.Context, eventID string) (*models.EventResult, error)
}

// Processor sends one email per unsent event and flags the event as sent.
// Events are handled one at a time, in order. Delivery is at-least-once:
// two runs that fetch the same row before either marks it will both send.
type Processor struct {
	store     Store
	owners    OwnerLookup
	sender    EmailSender
	recorder  StatusRecorder
	publisher SentPublisher
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Processor)

// WithStatusRecorder stores the outcome of every attempt.
func WithStatusRecorder(r StatusRecorder) Option {
	return func(p *Processor) { p.recorder = r }
}

// WithSentPublisher announces every event that was marked sent.
func WithSentPublisher(pub SentPublisher) Option {
	return func(p *Processor) { p.publisher = pub }
}

func NewProcessor(store Store, owners OwnerLookup, sender EmailSender, logger *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:  store,
		owners: owners,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessBatch handles up to maxItems unsent events, oldest first. Only a
// failure to fetch the batch is returned as an error; per-event failures are
// counted and the batch carries on.
func (p *Processor) ProcessBatch(ctx context.Context, maxItems int) (*models.BatchResult, error) {
	events, err := p.store.FetchUnsent(ctx, maxItems)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent events: %w", err)
	}

	result := &models.BatchResult{}
	if len(events) == 0 {
		return result, nil
	}
	p.logger.Info("processing unsent events", zap.Int("count", len(events)), zap.Int("max_items", maxItems))

	result.Results = make([]models.EventResult, 0, len(events))
	for _, event := range events {
		r := p.process(ctx, event, false)
		result.Processed++
		if r.Success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, r)
	}

	p.logger.Info("batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// ProcessEvent handles exactly one event by id. It returns the store's
// not-found error when the event is missing or already notified.
func (p *Processor) ProcessEvent(ctx context.Context, eventID string) (*models.EventResult, error) {
	event, err := p.store.GetUnsentEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	r := p.process(ctx, *event, true)
	return &r, nil
}

func (p *Processor) process(ctx context.Context, event models.Event, checkPreferences bool) models.EventResult {
	log := p.logger.With(zap.String("event_id", event.ID), zap.String("device_id", event.DeviceID))

	device, err := p.store.GetDevice(ctx, event.DeviceID)
	if err != nil {
		return p.fail(ctx, log, event, models.StageDevice, err)
	}

	if checkPreferences {
		enabled, err := p.store.NotificationsEnabled(ctx, device.OwnerID)
		if err != nil {
			return p.fail(ctx, log, event, models.StageOwner, err)
		}
		if !enabled {
			log.Info("owner disabled email notifications, skipping", zap.String("owner_id", device.OwnerID))
			return models.EventResult{EventID: event.ID, Status: models.StatusSkipped, Success: true}
		}
	}

	owner, err := p.owners.LookupOwner(ctx, device.OwnerID)
	if err != nil {
		return p.fail(ctx, log, event, models.StageOwner, err)
	}
	if owner.Email == "" {
		return p.fail(ctx, log, event, models.StageEmail,
			fmt.Errorf("no email address for owner %q of device %s", device.OwnerID, device.ID))
	}

	subject, html, err := render.Render(event, *device, owner)
	if err != nil {
		return p.fail(ctx, log, event, models.StageRender, err)
	}

	if err := p.sender.Send(ctx, models.Email{To: owner.Email, Subject: subject, HTML: html}); err != nil {
		return p.fail(ctx, log, event, models.StageSend, err)
	}

	// The email is out; a failure here leaves the row unsent and it will be mailed again.
	if err := p.store.MarkSent(ctx, event.ID); err != nil {
		return p.fail(ctx, log, event, models.StageMarkSent, err)
	}

	log.Info("notification sent", zap.String("event_type", event.EventType), zap.String("to", owner.Email))
	p.record(ctx, log, models.DeliveryStatus{EventID: event.ID, Status: models.StatusSent})
	p.publish(ctx, log, models.SentMessage{
		EventID:       event.ID,
		DeviceID:      event.DeviceID,
		EventType:     event.EventType,
		Recipient:     owner.Email,
		SentAt:        p.now().UTC(),
		CorrelationID: CorrelationID(ctx),
	})

	return models.EventResult{EventID: event.ID, Status: models.StatusSent, Success: true, To: owner.Email}
}

func (p *Processor) fail(ctx context.Context, log *zap.Logger, event models.Event, stage string, err error) models.EventResult {
	log.Error("event notification failed", zap.String("stage", stage), zap.Error(err))
	p.record(ctx, log, models.DeliveryStatus{
		EventID: event.ID,
		Status:  models.StatusFailed,
		Stage:   stage,
		Error:   err.Error(),
	})
	return models.EventResult{
		EventID: event.ID,
		Status:  models.StatusFailed,
		Stage:   stage,
		Error:   err.Error(),
	}
}

func (p *Processor) record(ctx context.Context, log *zap.Logger, s models.DeliveryStatus) {
	if p.recorder == nil {
		return
	}
	s.UpdatedAt = p.now().UTC()
	if err := p.recorder.Record(ctx, s); err != nil {
		log.Warn("failed to record delivery status", zap.Error(err))
	}
}

func (p *Processor) publish(ctx context.Context, log *zap.Logger, msg models.SentMessage) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishSent(ctx, msg); err != nil {
		log.Warn("failed to publish sent event", zap.Error(err))
	}
}

type correlationKey struct{}

// WithCorrelationID attaches the request correlation id to ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

