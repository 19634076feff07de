package services

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// fcmSender is satisfied by *messaging.Client.
type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier pushes confirmations to the user's own device.
type FCMNotifier struct {
	client fcmSender
}

func NewFCMNotifier(client *messaging.Client) *FCMNotifier {
	if client == nil {
		return nil
	}
	return &FCMNotifier{client: client}
}

// Notify sends a high priority notification via FCM
func (n *FCMNotifier) Notify(ctx context.Context, token, title, body string) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("FCM client not initialized")
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Priority: messaging.PriorityHigh,
				Sound:    "default",
			},
		},
	}

	_, err := n.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("FCM error: %w", err)
	}

	return nil
}
