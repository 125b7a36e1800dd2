package fcm

import (
	"context"
	"fmt"

	"triage-backend/pkg/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Client wraps Firebase Cloud Messaging
type Client struct {
	messagingClient *messaging.Client
	log             zerolog.Logger
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log := logger.Component("fcm")
	log.Info().Msg("client initialized")
	return &Client{messagingClient: messagingClient, log: log}, nil
}

// Notification is the content of one push
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
	// opened when the notification is clicked
	Link string
}

// SendToDevices pushes to every token and returns the tokens that failed
func (c *Client) SendToDevices(ctx context.Context, tokens []string, n Notification) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Icon:  "/icon-192.svg",
			},
		},
	}
	if n.Link != "" {
		message.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: n.Link}
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	c.log.Info().Int("success", response.SuccessCount).Int("failure", response.FailureCount).Msg("multicast sent")

	var failed []string
	for i, resp := range response.Responses {
		if !resp.Success {
			failed = append(failed, tokens[i])
			c.log.Warn().Err(resp.Error).Str("token", redact(tokens[i])).Msg("send failed")
		}
	}
	return failed, nil
}

func redact(token string) string {
	if len(token) <= 12 {
		return "..."
	}
	return token[:12] + "..."
}
