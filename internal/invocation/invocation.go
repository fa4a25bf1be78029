// Package invocation builds the clients one trigger needs and releases them
// when the trigger is done. Nothing is shared between invocations.
package invocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/franzego/eventmailer/internal/config"
	"github.com/franzego/eventmailer/internal/models"
	"github.com/franzego/eventmailer/internal/processor"
	"github.com/franzego/eventmailer/internal/queue"
	"github.com/franzego/eventmailer/internal/services"
	"github.com/franzego/eventmailer/internal/status"
	"github.com/franzego/eventmailer/internal/store"
	redisclient "github.com/franzego/eventmailer/pkg/redis"
	"go.uber.org/zap"
)

var ErrStatusDisabled = errors.New("delivery status tracking is not configured")

type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// Run opens a database connection, the directory and email clients and the
// optional redis and rabbitmq clients, passes a processor to fn and closes
// everything before returning. Failing optional clients are logged and skipped.
func (f *Factory) Run(ctx context.Context, fn func(ctx context.Context, p processor.Runner) error) error {
	db, err := store.Open(ctx, f.cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []processor.Option

	if f.cfg.Redis.URL != "" {
		rdb, err := redisclient.InitRedis(ctx, f.cfg.Redis.URL)
		if err != nil {
			f.logger.Warn("redis unavailable, delivery status will not be recorded", zap.Error(err))
		} else {
			defer rdb.Close()
			opts = append(opts, processor.WithStatusRecorder(status.NewRedisRecorder(rdb, f.cfg.Redis.TTL)))
		}
	}

	if f.cfg.RabbitMQ.URL != "" {
		rabbit, err := queue.NewRabbitMqService(f.cfg.RabbitMQ)
		if err != nil {
			f.logger.Warn("rabbitmq unavailable, sent events will not be published", zap.Error(err))
		} else {
			defer rabbit.CloseConnection()
			opts = append(opts, processor.WithSentPublisher(rabbit))
		}
	}

	p := processor.NewProcessor(
		store.NewPostgresStore(db, f.cfg.Processor.RespectPreferences),
		services.NewUserServiceClient(f.cfg.Directory.BaseURL, f.cfg.Directory.SecretKey, f.logger),
		services.NewEmailClient(f.cfg.Email.BaseURL, f.cfg.Email.APIKey, f.cfg.Email.FromName, f.cfg.Email.FromAddress),
		f.logger,
		opts...,
	)
	return fn(ctx, p)
}

// DeliveryStatus reads the last recorded outcome for eventID.
func (f *Factory) DeliveryStatus(ctx context.Context, eventID string) (*models.DeliveryStatus, error) {
	if f.cfg.Redis.URL == "" {
		return nil, ErrStatusDisabled
	}
	rdb, err := redisclient.InitRedis(ctx, f.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	defer rdb.Close()

	return status.NewRedisRecorder(rdb, f.cfg.Redis.TTL).Get(ctx, eventID)
}
