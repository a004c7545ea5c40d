package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// SubscriberConfig configures a Pub/Sub job subscriber.
type SubscriberConfig struct {
	ProjectID    string
	Subscription string
	Dispatcher   *Dispatcher
	Logger       zerolog.Logger
}

// Subscriber feeds job messages from a Pub/Sub subscription to a
// Dispatcher.
type Subscriber struct {
	client *pubsub.Client
	sub    *pubsub.Subscriber
	name   string
	d      *Dispatcher
	log    zerolog.Logger
}

// NewSubscriber connects to Pub/Sub.
func NewSubscriber(ctx context.Context, cfg SubscriberConfig) (*Subscriber, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	sub := client.Subscriber(cfg.Subscription)
	// One refresh at a time; a slow feed may hold a message for minutes.
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	sub.ReceiveSettings.MaxExtension = 5 * time.Minute

	return &Subscriber{
		client: client,
		sub:    sub,
		name:   cfg.Subscription,
		d:      cfg.Dispatcher,
		log:    cfg.Logger.With().Str("subscription", cfg.Subscription).Logger(),
	}, nil
}

// Run receives messages until ctx is done or receiving fails.
func (s *Subscriber) Run(ctx context.Context) error {
	s.log.Info().Msg("receiving job messages")
	return s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		log := s.log.With().
			Str("message_id", m.ID).
			Time("published", m.PublishTime).
			Logger()
		if s.d.Handle(ctx, log, m.Data) {
			m.Ack()
			return
		}
		m.Nack()
	})
}

// Close releases the Pub/Sub client.
func (s *Subscriber) Close() error {
	return s.client.Close()
}
