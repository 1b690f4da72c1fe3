package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wealthwizard/finance-api/internal/model"
)

func (e *testEnv) insightsService(now time.Time) *InsightsService {
	s := NewInsightsService(e.users, e.goals, e.txs, "en-IN")
	if !now.IsZero() {
		s.now = func() time.Time { return now }
	}
	return s
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

func TestInsightsSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "summary@example.com")
	other := env.createUser(t, "other@example.com")

	env.addTransaction(t, user.ID, 300, "Food", model.TransactionTypeExpense, day(2026, time.March, 10))
	env.addTransaction(t, user.ID, 100, "Transport", model.TransactionTypeExpense, day(2026, time.March, 1))
	env.addTransaction(t, user.ID, 1000, "Salary", model.TransactionTypeIncome, day(2026, time.March, 5))
	env.addTransaction(t, user.ID, 200, "Food", model.TransactionTypeExpense, day(2026, time.January, 25))
	env.addTransaction(t, other.ID, 900, "Food", model.TransactionTypeExpense, day(2026, time.March, 10))

	s := env.insightsService(day(2026, time.March, 15))
	summary, err := s.Summary(ctx, user.ID, model.ReportMonthly)
	require.NoError(t, err)

	assert.True(t, summary.TotalExpenses.Equal(amount(400)))
	assert.True(t, summary.TotalIncome.Equal(amount(1000)))
	assert.True(t, summary.NetIncome.Equal(amount(600)))
	assert.Equal(t, 100.0, summary.SpendingChange)
	assert.Equal(t, 3, summary.TransactionCount)
	assert.True(t, summary.AverageTransactionAmount.Equal(amount(200)))
	require.Len(t, summary.TopCategories, 2)
	assert.Equal(t, "Food", summary.TopCategories[0].Category)
	assert.True(t, summary.TopCategories[0].Amount.Equal(amount(300)))

	weekly, err := s.Summary(ctx, user.ID, model.ReportWeekly)
	require.NoError(t, err)
	assert.True(t, weekly.TotalExpenses.Equal(amount(300)))
	// The week before (Mar 1-8) holds the 100 transport expense.
	assert.Equal(t, 200.0, weekly.SpendingChange)
}

func TestSummaryWithoutExpenses(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "quiet@example.com")
	env.addTransaction(t, user.ID, 500, "Salary", model.TransactionTypeIncome, day(2026, time.March, 5))

	summary, err := env.insightsService(day(2026, time.March, 15)).Summary(context.Background(), user.ID, model.ReportMonthly)
	require.NoError(t, err)
	assert.True(t, summary.AverageTransactionAmount.IsZero())
	assert.Zero(t, summary.SpendingChange)
	assert.Empty(t, summary.TopCategories)
}

func monthlyExpenses(perMonth ...int64) []*model.Transaction {
	var txs []*model.Transaction
	for i, total := range perMonth {
		date := day(2026, time.Month(i+1), 10)
		for range 2 {
			txs = append(txs, &model.Transaction{
				Amount:   amount(total / 2),
				Date:     date,
				Category: "Food",
				Type:     model.TransactionTypeExpense,
			})
		}
	}
	return txs
}

func TestPredictSpending(t *testing.T) {
	t.Run("too few transactions", func(t *testing.T) {
		p := predictSpending(monthlyExpenses(100, 100))
		assert.True(t, p.NextMonthPrediction.IsZero())
		assert.Zero(t, p.Confidence)
		assert.Equal(t, "stable", p.Trend)
		assert.Empty(t, p.CategoryPredictions)
	})

	t.Run("short history uses the last month", func(t *testing.T) {
		txs := monthlyExpenses(100, 250)
		for range 3 {
			txs = append(txs, monthlyExpenses(100, 250)...)
		}
		p := predictSpending(txs)
		assert.True(t, p.NextMonthPrediction.Equal(amount(1000)), p.NextMonthPrediction.String())
		assert.Equal(t, 0.5, p.Confidence)
	})

	t.Run("trend scales the recent average", func(t *testing.T) {
		p := predictSpending(monthlyExpenses(100, 100, 100, 200, 200, 200))
		assert.True(t, p.NextMonthPrediction.Equal(amount(400)), p.NextMonthPrediction.String())
		assert.Equal(t, "increasing", p.Trend)
		assert.Equal(t, 0.9, p.Confidence)
		assert.True(t, p.CategoryPredictions["Food"].Equal(amount(150)))
	})

	t.Run("flat history", func(t *testing.T) {
		p := predictSpending(monthlyExpenses(300, 300, 300, 300, 300))
		assert.True(t, p.NextMonthPrediction.Equal(amount(300)))
		assert.Equal(t, "stable", p.Trend)
		assert.InDelta(t, 0.9, p.Confidence, 1e-9)
	})
}

func TestTrends(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "trends@example.com")

	// 2026-03-18 is a Wednesday; its week starts on Sunday the 15th.
	now := day(2026, time.March, 18)
	env.addTransaction(t, user.ID, 50, "Food", model.TransactionTypeExpense, day(2026, time.March, 16))
	env.addTransaction(t, user.ID, 70, "Transport", model.TransactionTypeExpense, day(2026, time.March, 14))
	env.addTransaction(t, user.ID, 999, "Salary", model.TransactionTypeIncome, day(2026, time.March, 16))
	env.addTransaction(t, user.ID, 40, "Food", model.TransactionTypeExpense, day(2025, time.November, 3))
	env.addTransaction(t, user.ID, 40, "Food", model.TransactionTypeExpense, day(2025, time.June, 3))

	s := env.insightsService(now)

	weeks, err := s.Trends(ctx, user.ID, model.ReportWeekly, "")
	require.NoError(t, err)
	require.Len(t, weeks, trendWeeks)
	assert.Equal(t, "Mar 15", weeks[11].Period)
	assert.True(t, weeks[11].Amount.Equal(amount(50)))
	assert.Equal(t, 1, weeks[11].TransactionCount)
	assert.Equal(t, "Mar 08", weeks[10].Period)
	assert.True(t, weeks[10].Amount.Equal(amount(70)))
	assert.Equal(t, time.Sunday, weeks[0].Start.Weekday())

	months, err := s.Trends(ctx, user.ID, model.ReportMonthly, "Food")
	require.NoError(t, err)
	require.Len(t, months, trendMonths)
	assert.Equal(t, "Oct 2025", months[0].Period)
	assert.Equal(t, "Mar 2026", months[5].Period)
	assert.True(t, months[5].Amount.Equal(amount(50)))
	assert.True(t, months[1].Amount.Equal(amount(40)))
	assert.True(t, months[0].Amount.IsZero())
}

func TestTips(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "tips@example.com")
	goals := env.goalService()

	now := time.Now().UTC()
	for i := range eatingOutTipCount + 1 {
		env.addTransaction(t, user.ID, 10, "Food and Drink", model.TransactionTypeExpense, now.Add(-time.Duration(i+1)*time.Hour))
	}

	in := goalInput(1000)
	in.TargetDate = now.AddDate(0, 0, 30)
	goal, err := goals.Create(ctx, user.ID, in)
	require.NoError(t, err)
	_, err = goals.Contribute(ctx, user.ID, goal.ID, amount(100), "")
	require.NoError(t, err)

	on := goalInput(1000)
	on.Title = "Far away"
	_, err = goals.Create(ctx, user.ID, on)
	require.NoError(t, err)

	tips, err := env.insightsService(time.Time{}).Tips(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tips, 3)

	assert.Equal(t, "spending", tips[0].Type)
	assert.Equal(t, "Food and Drink", tips[0].Category)
	assert.Equal(t, "medium", tips[0].Priority)

	assert.Equal(t, "habit", tips[1].Type)
	assert.Contains(t, tips[1].Message, "16 times")

	assert.Equal(t, "goal", tips[2].Type)
	assert.Contains(t, tips[2].Message, "10%")
	assert.Contains(t, tips[2].Message, goal.Title)
}

func TestTipsEmpty(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "notips@example.com")

	tips, err := env.insightsService(time.Time{}).Tips(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, tips)
	assert.Empty(t, tips)
}

func TestSpendingPatterns(t *testing.T) {
	txs := []*model.Transaction{
		{Amount: amount(100), Date: day(2026, time.January, 5)},
		{Amount: amount(300), Date: day(2026, time.January, 12)},
		{Amount: amount(50), Date: day(2026, time.July, 4)},
	}

	weekdays := weekdaySpending(txs)
	require.Len(t, weekdays, 7)
	assert.Equal(t, "Monday", weekdays[time.Monday].Name)
	assert.True(t, weekdays[time.Monday].TotalSpending.Equal(amount(400)))
	assert.True(t, weekdays[time.Monday].AverageSpending.Equal(amount(200)))
	assert.Equal(t, 1, weekdays[time.Saturday].TransactionCount)
	assert.True(t, weekdays[time.Sunday].AverageSpending.IsZero())

	seasons := seasonalSpending(txs)
	require.Len(t, seasons, 4)
	assert.Equal(t, "winter", seasons[0].Name)
	assert.Equal(t, 2, seasons[0].TransactionCount)
	assert.Equal(t, "summer", seasons[2].Name)
	assert.True(t, seasons[2].TotalSpending.Equal(amount(50)))
	assert.Zero(t, seasons[1].TransactionCount)

	months := monthlySpending(txs)
	require.Len(t, months, 2)
	assert.Equal(t, "2026-01", months[0].Month)
	assert.True(t, months[0].Spending.Equal(amount(400)))
}

func TestSpendingInsights(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "spending@example.com")

	env.addTransaction(t, user.ID, 100, "Food", model.TransactionTypeExpense, day(2026, time.January, 5))
	env.addTransaction(t, user.ID, 5000, "Salary", model.TransactionTypeIncome, day(2026, time.January, 1))

	insights, err := env.insightsService(time.Time{}).Spending(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, insights.Anomalies)
	assert.Zero(t, insights.SpendingPrediction.Confidence)
	require.Len(t, insights.Patterns.MonthlyTrends, 1)
	assert.True(t, insights.Patterns.MonthlyTrends[0].Spending.Equal(amount(100)))
}

func TestCategoryInsights(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "categories@example.com")

	env.addTransaction(t, user.ID, 100, "Food", model.TransactionTypeExpense, day(2026, time.January, 5))
	env.addTransaction(t, user.ID, 300, "Food", model.TransactionTypeExpense, day(2026, time.February, 5))
	env.addTransaction(t, user.ID, 50, "Transport", model.TransactionTypeExpense, day(2026, time.February, 6))

	s := env.insightsService(time.Time{})
	categories, err := s.Categories(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Food", categories[0].Category)
	assert.Equal(t, 2, categories[0].Count)
	assert.True(t, categories[0].AvgAmount.Equal(amount(200)))

	start := day(2026, time.February, 1)
	categories, err = s.Categories(ctx, user.ID, &start, nil)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.True(t, categories[0].TotalAmount.Equal(amount(300)))
	assert.True(t, categories[0].AvgAmount.Equal(amount(300)))
}
