package feed

import (
	"context"
	"fmt"
	"time"

	"triage-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// PubSubRelay shares change events between instances through a Google Cloud
// Pub/Sub topic. Each instance listens on its own subscription so every
// instance sees every event.
type PubSubRelay struct {
	client    *pubsub.Client
	topic     *pubsub.Topic
	topicName string
	subName   string
	log       zerolog.Logger
}

func NewPubSubRelay(ctx context.Context, projectID, topicName, origin, credentialsFile string) (*PubSubRelay, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &PubSubRelay{
		client:    client,
		topic:     client.Topic(topicName),
		topicName: topicName,
		subName:   topicName + "-" + origin,
		log:       logger.Component("feed-pubsub"),
	}, nil
}

func (r *PubSubRelay) Forward(ctx context.Context, e Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	res := r.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"origin": e.Origin, "kind": string(e.Kind)},
	})
	_, err = res.Get(ctx)
	return err
}

// Run ensures this instance's subscription exists and delivers received
// events until ctx is cancelled.
func (r *PubSubRelay) Run(ctx context.Context, deliver func(Event)) error {
	sub := r.client.Subscription(r.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}

	if !exists {
		topicExists, err := r.topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic: %w", err)
		}
		if !topicExists {
			return fmt.Errorf("topic %s does not exist", r.topicName)
		}

		sub, err = r.client.CreateSubscription(ctx, r.subName, pubsub.SubscriptionConfig{
			Topic:            r.topic,
			AckDeadline:      10 * time.Second,
			ExpirationPolicy: 24 * time.Hour,
		})
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		r.log.Info().Str("subscription", r.subName).Msg("created subscription")
	}

	// ordered delivery within this instance
	sub.ReceiveSettings.NumGoroutines = 1
	sub.ReceiveSettings.MaxOutstandingMessages = 1

	r.log.Info().Str("subscription", r.subName).Msg("listening for change events")
	return sub.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
		e, err := decode(msg.Data)
		if err != nil {
			r.log.Warn().Err(err).Msg("dropping undecodable message")
			msg.Ack()
			return
		}
		deliver(e)
		msg.Ack()
	})
}

func (r *PubSubRelay) Close() error {
	r.topic.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Subscription(r.subName).Delete(ctx); err != nil {
		r.log.Warn().Err(err).Str("subscription", r.subName).Msg("failed to delete subscription")
	}
	return r.client.Close()
}
