package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
)

var (
	ErrChannelDisabled    = errors.New("notification channel is disabled")
	ErrNoPushSubscription = errors.New("no push subscription registered")
	ErrUnknownChannel     = errors.New("unknown notification channel")
	ErrDeliveryFailed     = errors.New("notification delivery failed")
)

const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Notifier delivers a single event to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, ev model.Event)
}

// NotificationService turns domain events into emails and push messages
// according to the recipient's preferences. Delivery failures never reach
// the caller of Notify.
type NotificationService struct {
	users     repository.UserRepository
	templates *Templates
	email     EmailSender
	push      PushSender
	retry     func() backoff.BackOff
}

func NewNotificationService(
	users repository.UserRepository,
	templates *Templates,
	email EmailSender,
	push PushSender,
) *NotificationService {
	return &NotificationService{
		users:     users,
		templates: templates,
		email:     email,
		push:      push,
		retry:     defaultDeliveryBackOff,
	}
}

// SetRetryPolicy replaces the per-channel retry policy.
func (s *NotificationService) SetRetryPolicy(policy func() backoff.BackOff) {
	s.retry = policy
}

// deliveryAttempts bounds tries per channel, the first one included.
const deliveryAttempts = 3

func defaultDeliveryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, deliveryAttempts-1)
}

func (s *NotificationService) Notify(ctx context.Context, userID string, ev model.Event) {
	log := slog.With("user_id", userID, "event", ev.Kind())

	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		log.Warn("notification skipped, user not loaded", "error", err)
		return
	}

	if !user.NotificationPreferences.Allows(ev) {
		log.Debug("notification suppressed by preferences")
		return
	}

	name, data, err := describe(ev)
	if err != nil {
		log.Error("notification skipped", "error", err)
		return
	}

	msg, err := s.templates.Render(name, user, ev)
	if err != nil {
		log.Error("failed to render notification", "error", err)
		return
	}

	if user.NotificationPreferences.Email {
		err = s.sendEmail(ctx, user, msg)
		if err != nil {
			log.Warn("email notification failed", "error", err)
		}
	}

	sub := user.PushSubscription()
	if user.NotificationPreferences.Push && sub != nil {
		err = s.sendPush(ctx, user, sub, msg, data)
		if err != nil {
			log.Warn("push notification failed", "error", err)
		}
	}
}

// SendTest delivers a test message on one channel and reports the outcome.
func (s *NotificationService) SendTest(ctx context.Context, userID, channel string) error {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return err
	}

	msg, err := s.templates.Render("test", user, nil)
	if err != nil {
		return err
	}

	switch channel {
	case ChannelEmail:
		if !user.NotificationPreferences.Email {
			return ErrChannelDisabled
		}
		err = s.email.SendHTML(ctx, user.Email, msg.Subject, msg.HTML)
	case ChannelPush:
		if !user.NotificationPreferences.Push {
			return ErrChannelDisabled
		}
		sub := user.PushSubscription()
		if sub == nil {
			return ErrNoPushSubscription
		}
		err = s.push.Send(ctx, sub, PushMessage{
			Title: msg.Subject,
			Body:  msg.Body,
			Icon:  pushIcon,
			Data:  map[string]any{"type": "test"},
		})
	default:
		return ErrUnknownChannel
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	return nil
}

// SendWelcome emails a greeting to a newly registered user.
func (s *NotificationService) SendWelcome(ctx context.Context, user *model.User) error {
	msg, err := s.templates.Render("welcome", user, nil)
	if err != nil {
		return err
	}
	return s.email.SendHTML(ctx, user.Email, msg.Subject, msg.HTML)
}

func (s *NotificationService) sendEmail(ctx context.Context, user *model.User, msg *Message) error {
	return backoff.Retry(func() error {
		err := s.email.SendHTML(ctx, user.Email, msg.Subject, msg.HTML)
		if errors.Is(err, ErrEmailNotConfigured) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(s.retry(), ctx))
}

func (s *NotificationService) sendPush(ctx context.Context, user *model.User, sub *model.PushSubscription, msg *Message, data map[string]any) error {
	push := PushMessage{
		Title: msg.Subject,
		Body:  msg.Body,
		Icon:  pushIcon,
		Data:  data,
	}

	err := backoff.Retry(func() error {
		err := s.push.Send(ctx, sub, push)
		if errors.Is(err, ErrSubscriptionGone) || errors.Is(err, ErrPushNotConfigured) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(s.retry(), ctx))

	if errors.Is(err, ErrSubscriptionGone) {
		clearErr := s.users.SetPushSubscription(ctx, user.ID, nil)
		if clearErr != nil {
			slog.Warn("failed to clear expired push subscription", "user_id", user.ID, "error", clearErr)
		} else {
			slog.Info("cleared expired push subscription", "user_id", user.ID)
		}
	}

	return err
}

// describe maps an event to its template and push data.
func describe(ev model.Event) (string, map[string]any, error) {
	switch e := ev.(type) {
	case model.GoalProgressEvent:
		return "goal_progress", map[string]any{
			"type":   string(e.Kind()),
			"goalId": e.GoalID,
		}, nil
	case model.MilestoneEvent:
		return "milestone", map[string]any{
			"type":      string(e.Kind()),
			"goalId":    e.GoalID,
			"milestone": e.Threshold,
		}, nil
	case model.SpendingAlertEvent:
		return "spending_alert", map[string]any{
			"type":               string(e.Kind()),
			"category":           e.Category,
			"amount":             e.Increase,
			"currentAmount":      e.CurrentAmount,
			"previousAmount":     e.PreviousAmount,
			"percentageIncrease": e.PercentageIncrease,
		}, nil
	case model.BudgetExceededEvent:
		return "budget_exceeded", map[string]any{
			"type":            string(e.Kind()),
			"budgetLimit":     e.BudgetLimit,
			"currentSpending": e.CurrentSpending,
			"exceededAmount":  e.ExceededAmount,
		}, nil
	case model.SavingsOpportunityEvent:
		return "savings_opportunity", map[string]any{
			"type":             string(e.Kind()),
			"category":         e.Category,
			"potentialSavings": e.PotentialSavings,
			"optimizationRate": e.OptimizationRate,
		}, nil
	case model.PeriodicReportEvent:
		period := "month"
		if e.Period == model.ReportWeekly {
			period = "week"
		}
		return "periodic_report", map[string]any{
			"type":       string(e.Kind()),
			"reportType": string(e.Period),
			"period":     period,
		}, nil
	}
	return "", nil, fmt.Errorf("unhandled event kind %q", ev.Kind())
}
