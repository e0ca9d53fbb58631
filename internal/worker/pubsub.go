package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// ErrSubscriptionNotConfigured is returned when the project or subscription
// is missing.
var ErrSubscriptionNotConfigured = errors.New("pubsub project and subscription are required")

// PubSubHandler feeds Pub/Sub messages to a Processor.
type PubSubHandler struct {
	client       *pubsub.Client
	subscriber   *pubsub.Subscriber
	subscription string
	processor    *Processor
	logger       zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	Config    Config
	Processor *Processor
	Logger    zerolog.Logger
}

// NewPubSubHandler connects to Pub/Sub and prepares the subscriber.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	conf := cfg.Config.withDefaults()
	if conf.ProjectID == "" || conf.Subscription == "" {
		return nil, ErrSubscriptionNotConfigured
	}

	client, err := pubsub.NewClient(ctx, conf.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(conf.Subscription)
	subscriber.ReceiveSettings.MaxOutstandingMessages = conf.MaxOutstandingMessages
	subscriber.ReceiveSettings.MaxExtension = conf.JobTimeout + time.Minute

	return &PubSubHandler{
		client:       client,
		subscriber:   subscriber,
		subscription: conf.Subscription,
		processor:    cfg.Processor,
		logger:       cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscription).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	h.logger.Debug().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Msg("received pubsub message")

	switch h.processor.HandleMessage(ctx, msg.Data) {
	case Nack:
		msg.Nack()
	default:
		msg.Ack()
	}
}
