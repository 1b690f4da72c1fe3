package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wealthwizard/finance-api/internal/model"
)

type notifyFixture struct {
	env   *testEnv
	svc   *NotificationService
	email *fakeEmail
	push  *fakePush
	user  *model.User
}

func newNotifyFixture(t *testing.T, prefs model.NotificationPreferences, withSubscription bool) *notifyFixture {
	t.Helper()

	env := newTestEnv(t)
	email, push := &fakeEmail{}, &fakePush{}
	svc := NewNotificationService(env.users, newTestTemplates(t), email, push)
	svc.SetRetryPolicy(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	})

	ctx := context.Background()
	user := env.createUser(t, "notify@example.com")
	require.NoError(t, env.users.UpdatePreferences(ctx, user.ID, prefs))
	if withSubscription {
		sub := &model.PushSubscription{Endpoint: "https://push.example.com/sub"}
		sub.Keys.P256dh, sub.Keys.Auth = "key", "auth"
		require.NoError(t, env.users.SetPushSubscription(ctx, user.ID, sub))
	}

	return &notifyFixture{env: env, svc: svc, email: email, push: push, user: user}
}

func milestoneEvent(threshold int) model.MilestoneEvent {
	return model.MilestoneEvent{
		GoalID:        "goal-1",
		GoalTitle:     "Vacation",
		Threshold:     threshold,
		Progress:      float64(threshold),
		CurrentAmount: amount(int64(threshold) * 10),
		TargetAmount:  amount(1000),
	}
}

func TestNotifyPushOnly(t *testing.T) {
	prefs := model.DefaultNotificationPreferences()
	prefs.Email = false
	f := newNotifyFixture(t, prefs, true)

	f.svc.Notify(context.Background(), f.user.ID, milestoneEvent(50))

	assert.Zero(t, f.email.calls)
	require.Len(t, f.push.sent, 1)
	msg := f.push.sent[0]
	assert.Equal(t, "Milestone Achieved: 50%", msg.Title)
	assert.Contains(t, msg.Body, "Vacation")
	assert.Equal(t, "milestone", msg.Data["type"])
	assert.Equal(t, 50, msg.Data["milestone"])
}

func TestNotifyEmailAndPush(t *testing.T) {
	f := newNotifyFixture(t, model.DefaultNotificationPreferences(), true)

	f.svc.Notify(context.Background(), f.user.ID, milestoneEvent(100))

	require.Len(t, f.email.sent, 1)
	sent := f.email.sent[0]
	assert.Equal(t, "notify@example.com", sent.to)
	assert.Equal(t, "Goal Completed! 🎉", sent.subject)
	assert.Contains(t, sent.html, "<h2>Goal Completed! 🎉</h2>")
	assert.Contains(t, sent.html, "<table>")
	assert.Len(t, f.push.sent, 1)
}

func TestNotifyWithoutSubscriptionSkipsPush(t *testing.T) {
	f := newNotifyFixture(t, model.DefaultNotificationPreferences(), false)

	f.svc.Notify(context.Background(), f.user.ID, milestoneEvent(25))

	assert.Len(t, f.email.sent, 1)
	assert.Zero(t, f.push.calls)
}

func TestNotifySuppressedByPreferences(t *testing.T) {
	prefs := model.DefaultNotificationPreferences()
	prefs.GoalReminders = false
	prefs.WeeklyReports = false
	f := newNotifyFixture(t, prefs, true)
	ctx := context.Background()

	f.svc.Notify(ctx, f.user.ID, milestoneEvent(25))
	f.svc.Notify(ctx, f.user.ID, model.GoalProgressEvent{GoalTitle: "Vacation"})
	f.svc.Notify(ctx, f.user.ID, model.PeriodicReportEvent{Period: model.ReportWeekly})

	assert.Zero(t, f.email.calls)
	assert.Zero(t, f.push.calls)
}

func TestNotifyTransportFailureIsSwallowed(t *testing.T) {
	f := newNotifyFixture(t, model.DefaultNotificationPreferences(), true)
	f.email.err = errors.New("smtp down")
	f.push.err = errors.New("push down")

	assert.NotPanics(t, func() {
		f.svc.Notify(context.Background(), f.user.ID, model.BudgetExceededEvent{
			BudgetLimit:     amount(5000),
			CurrentSpending: amount(6500),
			ExceededAmount:  amount(1500),
		})
	})

	assert.Equal(t, 3, f.email.calls, "one attempt plus two retries")
	assert.Equal(t, 3, f.push.calls)

	stored, err := f.env.users.ByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.PushSubscription(), "transient failures keep the subscription")
}

func TestDefaultDeliveryBackOffIsBounded(t *testing.T) {
	b := defaultDeliveryBackOff()

	retries := 0
	for b.NextBackOff() != backoff.Stop {
		retries++
	}
	assert.Equal(t, deliveryAttempts-1, retries)
}

func TestNotifyExpiredSubscriptionIsCleared(t *testing.T) {
	f := newNotifyFixture(t, model.DefaultNotificationPreferences(), true)
	f.push.err = ErrSubscriptionGone

	f.svc.Notify(context.Background(), f.user.ID, milestoneEvent(75))

	assert.Equal(t, 1, f.push.calls, "a gone subscription is not retried")
	assert.Len(t, f.email.sent, 1)

	stored, err := f.env.users.ByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PushSubscription())
}

func TestNotifyUnknownUser(t *testing.T) {
	f := newNotifyFixture(t, model.DefaultNotificationPreferences(), true)

	f.svc.Notify(context.Background(), "missing", milestoneEvent(25))

	assert.Zero(t, f.email.calls)
	assert.Zero(t, f.push.calls)
}

func TestNotifyRendersEveryEvent(t *testing.T) {
	prefs := model.DefaultNotificationPreferences()
	prefs.WeeklyReports = true
	f := newNotifyFixture(t, prefs, false)
	ctx := context.Background()

	events := []model.Event{
		model.GoalProgressEvent{
			GoalTitle: "Car", Contribution: amount(100), CurrentAmount: amount(400),
			TargetAmount: amount(1000), Progress: 40, TargetDate: time.Now().AddDate(0, 6, 0),
		},
		milestoneEvent(90),
		model.SpendingAlertEvent{
			Category: "Food", Increase: amount(500), CurrentAmount: amount(1500),
			PreviousAmount: amount(1000), PercentageIncrease: 50, Suggestion: "Set a budget.",
		},
		model.BudgetExceededEvent{BudgetLimit: amount(100), CurrentSpending: amount(150), ExceededAmount: amount(50)},
		model.SavingsOpportunityEvent{
			Category: "Shopping", CurrentSpending: amount(8000), PotentialSavings: amount(1200), OptimizationRate: 15,
		},
		model.PeriodicReportEvent{
			Period: model.ReportWeekly, Start: time.Now().AddDate(0, 0, -7), End: time.Now(),
			Income: amount(5000), Expenses: amount(5500), Net: amount(-500),
			TopCategories: []model.CategoryTotal{{Category: "Rent", TotalAmount: amount(3000), Count: 1}},
		},
	}
	for _, ev := range events {
		f.svc.Notify(ctx, f.user.ID, ev)
	}

	require.Len(t, f.email.sent, len(events))
	for i, sent := range f.email.sent {
		assert.NotEmpty(t, sent.subject, "event %s", events[i].Kind())
		assert.NotContains(t, sent.html, "<no value>", "event %s", events[i].Kind())
	}
}

func TestSendTest(t *testing.T) {
	prefs := model.DefaultNotificationPreferences()
	prefs.Push = false
	f := newNotifyFixture(t, prefs, false)
	ctx := context.Background()

	require.NoError(t, f.svc.SendTest(ctx, f.user.ID, ChannelEmail))
	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "Test notification from WealthWizard", f.email.sent[0].subject)

	assert.ErrorIs(t, f.svc.SendTest(ctx, f.user.ID, ChannelPush), ErrChannelDisabled)
	assert.ErrorIs(t, f.svc.SendTest(ctx, f.user.ID, "sms"), ErrUnknownChannel)

	prefs.Push = true
	require.NoError(t, f.env.users.UpdatePreferences(ctx, f.user.ID, prefs))
	assert.ErrorIs(t, f.svc.SendTest(ctx, f.user.ID, ChannelPush), ErrNoPushSubscription)

	f.email.err = errors.New("boom")
	err := f.svc.SendTest(ctx, f.user.ID, ChannelEmail)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestDescribe(t *testing.T) {
	name, data, err := describe(model.PeriodicReportEvent{Period: model.ReportMonthly})
	require.NoError(t, err)
	assert.Equal(t, "periodic_report", name)
	assert.Equal(t, "month", data["period"])
	assert.Equal(t, "monthly", data["reportType"])

	name, data, err = describe(model.SavingsOpportunityEvent{Category: "Dining", OptimizationRate: 15})
	require.NoError(t, err)
	assert.Equal(t, "savings_opportunity", name)
	assert.Equal(t, "Dining", data["category"])
}
