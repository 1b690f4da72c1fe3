package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
)

type fakeArchive struct {
	keys   []string
	bodies []string
	err    error
}

func (a *fakeArchive) Put(_ context.Context, key, _ string, body []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.keys = append(a.keys, key)
	a.bodies = append(a.bodies, string(body))
	return "https://files.example.com/" + key, nil
}

func TestReportRange(t *testing.T) {
	now := time.Date(2026, 6, 10, 15, 30, 0, 0, time.UTC) // Wednesday

	start, end := ReportRange(model.ReportWeekly, now)
	assert.Equal(t, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), end)

	start, end = ReportRange(model.ReportMonthly, now)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), end)

	start, _ = ReportRange(model.ReportMonthly, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestPeriodicReport(t *testing.T) {
	env := newTestEnv(t)
	archive := &fakeArchive{}
	svc := NewReportService(env.users, env.txs, env.queue, newTestTemplates(t), archive)
	svc.now = func() time.Time { return time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	user := env.createUser(t, "report@example.com")
	env.addTransaction(t, user.ID, 5000, "Salary", model.TransactionTypeIncome, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	env.addTransaction(t, user.ID, 1200, "Rent", model.TransactionTypeExpense, time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC))
	env.addTransaction(t, user.ID, 300, "Food", model.TransactionTypeExpense, time.Date(2026, 5, 31, 20, 0, 0, 0, time.UTC))
	env.addTransaction(t, user.ID, 999, "Food", model.TransactionTypeExpense, time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC))

	result, err := svc.PeriodicReport(ctx, user.ID, model.ReportMonthly)
	require.NoError(t, err)

	ev := result.Event
	assert.True(t, ev.Income.Equal(amount(5000)))
	assert.True(t, ev.Expenses.Equal(amount(1500)))
	assert.True(t, ev.Net.Equal(amount(3500)))
	require.Len(t, ev.TopCategories, 2)
	assert.Equal(t, "Rent", ev.TopCategories[0].Category)

	require.Len(t, env.queue.events, 1)
	assert.Equal(t, model.EventPeriodicReport, env.queue.events[0].event.Kind())

	require.Len(t, archive.keys, 1)
	assert.Equal(t, "reports/"+user.ID+"/monthly-2026-05-01.html", archive.keys[0])
	assert.Equal(t, "https://files.example.com/"+archive.keys[0], result.ArchiveURL)
	assert.True(t, strings.Contains(archive.bodies[0], "Rent"))
}

func TestPeriodicReportArchiveFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	svc := NewReportService(env.users, env.txs, env.queue, newTestTemplates(t), &fakeArchive{err: errors.New("bucket gone")})
	user := env.createUser(t, "archive@example.com")

	result, err := svc.PeriodicReport(context.Background(), user.ID, model.ReportWeekly)
	require.NoError(t, err)
	assert.Empty(t, result.ArchiveURL)
	assert.Len(t, env.queue.events, 1)
}

func TestSendPeriodicReports(t *testing.T) {
	env := newTestEnv(t)
	svc := NewReportService(env.users, env.txs, env.queue, newTestTemplates(t), nil)
	ctx := context.Background()

	subscribed := env.createUser(t, "weekly@example.com")
	prefs := subscribed.NotificationPreferences
	prefs.WeeklyReports = true
	require.NoError(t, env.users.UpdatePreferences(ctx, subscribed.ID, prefs))
	env.createUser(t, "monthly-only@example.com")

	result, err := svc.SendPeriodicReports(ctx, model.ReportWeekly)
	require.NoError(t, err)
	assert.Equal(t, &BatchResult{SuccessCount: 1, TotalUsers: 1}, result)
	require.Len(t, env.queue.events, 1)
	assert.Equal(t, subscribed.ID, env.queue.events[0].userID)

	result, err = svc.SendPeriodicReports(ctx, model.ReportMonthly)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalUsers)
}

func TestInsights(t *testing.T) {
	may := func(day int) time.Time { return time.Date(2026, 5, day, 12, 0, 0, 0, time.UTC) }
	june := func(day int) time.Time { return time.Date(2026, 6, day, 12, 0, 0, 0, time.UTC) }
	expense := func(amt int64, category string, date time.Time) *model.Transaction {
		return &model.Transaction{Amount: amount(amt), Category: category, Date: date, Type: model.TransactionTypeExpense}
	}

	txs := []*model.Transaction{
		expense(1000, "Food", may(15)),
		expense(1500, "Food", june(5)),
		expense(400, "Fuel", may(20)),
		expense(500, "Fuel", june(2)),
		expense(6000, "Rent", may(20)),
		expense(200, "Gifts", june(3)),
	}

	events := insights(txs)
	require.Len(t, events, 2)

	alert, ok := events[0].(model.SpendingAlertEvent)
	require.True(t, ok)
	assert.Equal(t, "Food", alert.Category)
	assert.True(t, alert.Increase.Equal(amount(500)))
	assert.InDelta(t, 50.0, alert.PercentageIncrease, 0.01)

	opportunity, ok := events[1].(model.SavingsOpportunityEvent)
	require.True(t, ok)
	assert.Equal(t, "Rent", opportunity.Category)
	assert.True(t, opportunity.PotentialSavings.Equal(amount(900)))
	assert.Equal(t, 15, opportunity.OptimizationRate)

	assert.Empty(t, insights(nil))
	assert.Empty(t, insights([]*model.Transaction{expense(100, "Food", june(1))}))
}

func TestAnalyzeInsightsQueuesEvents(t *testing.T) {
	env := newTestEnv(t)
	svc := NewReportService(env.users, env.txs, env.queue, newTestTemplates(t), nil)
	svc.now = func() time.Time { return time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	user := env.createUser(t, "insights@example.com")
	env.addTransaction(t, user.ID, 1000, "Food", model.TransactionTypeExpense, time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC))
	env.addTransaction(t, user.ID, 2000, "Food", model.TransactionTypeExpense, time.Date(2026, 6, 5, 12, 0, 0, 0, time.UTC))
	env.addTransaction(t, user.ID, 9000, "Salary", model.TransactionTypeIncome, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	// Outside the 30-day window.
	env.addTransaction(t, user.ID, 100, "Food", model.TransactionTypeExpense, time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))

	events, err := svc.AnalyzeInsights(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventSpendingAlert, events[0].Kind())
	assert.Len(t, env.queue.events, 1)

	result, err := svc.AnalyzeAllInsights(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
}

func TestSendInsightUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	svc := NewReportService(env.users, env.txs, env.queue, newTestTemplates(t), nil)

	err := svc.SendInsight(context.Background(), "missing", model.BudgetExceededEvent{})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.Empty(t, env.queue.events)
}
