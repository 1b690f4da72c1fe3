package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/wealthwizard/finance-api/internal/model"
)

var (
	ErrPushNotConfigured = errors.New("push service not configured (missing VAPID keys)")
	// ErrSubscriptionGone means the push service no longer accepts the
	// subscription and it should be forgotten.
	ErrSubscriptionGone = errors.New("push subscription expired")
)

const pushIcon = "/placeholder-logo.png"

// PushMessage is the JSON payload delivered to the service worker.
type PushMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon"`
	Data  map[string]any `json:"data"`
}

// PushSender delivers one web push message.
type PushSender interface {
	Send(ctx context.Context, sub *model.PushSubscription, msg PushMessage) error
}

type PushService struct {
	publicKey  string
	privateKey string
	subscriber string
	client     *http.Client
	isDev      bool
}

func NewPushService(publicKey, privateKey, subscriber string, isDev bool) *PushService {
	return &PushService{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		client:     &http.Client{},
		isDev:      isDev,
	}
}

func (s *PushService) Send(ctx context.Context, sub *model.PushSubscription, msg PushMessage) error {
	if s.publicKey == "" || s.privateKey == "" {
		if s.isDev {
			slog.Info("push sent (dev mode)", "endpoint", sub.Endpoint, "title", msg.Title)
			return nil
		}
		return ErrPushNotConfigured
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             86400,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, body)
	}

	slog.Debug("push sent", "endpoint", sub.Endpoint, "title", msg.Title)
	return nil
}
