package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/money"
	"github.com/wealthwizard/finance-api/internal/repository"
)

const (
	predictionWindow    = 100
	predictionMinSample = 10
	trendWeeks          = 12
	trendMonths         = 6
	eatingOutTipCount   = 15
	goalTipProgress     = 50
	goalTipDays         = 60
)

var eatingOutCategories = []string{"Food and Drink", "Restaurants", "Dining"}

type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// InsightSummary compares the last week or month with the one before.
type InsightSummary struct {
	Period                   model.ReportPeriod `json:"period"`
	TotalExpenses            decimal.Decimal    `json:"totalExpenses"`
	TotalIncome              decimal.Decimal    `json:"totalIncome"`
	NetIncome                decimal.Decimal    `json:"netIncome"`
	SpendingChange           float64            `json:"spendingChange"`
	TopCategories            []CategoryAmount   `json:"topCategories"`
	TransactionCount         int                `json:"transactionCount"`
	AverageTransactionAmount decimal.Decimal    `json:"averageTransactionAmount"`
}

type SpendingPrediction struct {
	NextMonthPrediction decimal.Decimal            `json:"nextMonthPrediction"`
	Trend               string                     `json:"trend"`
	Confidence          float64                    `json:"confidence"`
	CategoryPredictions map[string]decimal.Decimal `json:"categoryPredictions"`
}

type Tip struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

type TrendPoint struct {
	Period           string          `json:"period"`
	Start            time.Time       `json:"start"`
	Amount           decimal.Decimal `json:"amount"`
	TransactionCount int             `json:"transactionCount"`
}

type CategoryInsight struct {
	model.CategoryTotal
	AvgAmount decimal.Decimal `json:"avgAmount"`
}

type BucketSpending struct {
	Name             string          `json:"name"`
	TotalSpending    decimal.Decimal `json:"totalSpending"`
	AverageSpending  decimal.Decimal `json:"averageSpending"`
	TransactionCount int             `json:"transactionCount"`
}

type MonthlySpending struct {
	Month    string          `json:"month"`
	Spending decimal.Decimal `json:"spending"`
}

type SpendingPatterns struct {
	WeekdaySpending  []BucketSpending  `json:"weekdaySpending"`
	MonthlyTrends    []MonthlySpending `json:"monthlyTrends"`
	SeasonalPatterns []BucketSpending  `json:"seasonalPatterns"`
}

type SpendingInsights struct {
	SpendingPrediction SpendingPrediction `json:"spendingPrediction"`
	Anomalies          []Anomaly          `json:"anomalies"`
	Patterns           SpendingPatterns   `json:"patterns"`
}

// InsightsService answers read-only questions about a user's spending.
// Nothing here is persisted or queued.
type InsightsService struct {
	users  repository.UserRepository
	goals  repository.GoalRepository
	txRepo repository.TransactionRepository
	locale string
	now    func() time.Time
}

func NewInsightsService(
	users repository.UserRepository,
	goals repository.GoalRepository,
	txRepo repository.TransactionRepository,
	locale string,
) *InsightsService {
	return &InsightsService{
		users:  users,
		goals:  goals,
		txRepo: txRepo,
		locale: locale,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Summary covers the window from the start of the day one week (or month)
// ago through the end of today. SpendingChange is the percentage change in
// expenses against the same-length window before it.
func (s *InsightsService) Summary(ctx context.Context, userID string, period model.ReportPeriod) (*InsightSummary, error) {
	now := s.now()
	end := endOfDay(now)
	start := startOfDay(shiftPeriod(now, period, -1))

	txs, _, err := s.txRepo.List(ctx, userID, repository.TransactionFilter{Start: &start, End: &end})
	if err != nil {
		return nil, err
	}

	prevStart, prevEnd := shiftPeriod(start, period, -1), shiftPeriod(end, period, -1)
	prev, _, err := s.txRepo.List(ctx, userID, repository.TransactionFilter{
		Type:  model.TransactionTypeExpense,
		Start: &prevStart,
		End:   &prevEnd,
	})
	if err != nil {
		return nil, err
	}

	expenses := lo.Filter(txs, func(t *model.Transaction, _ int) bool { return t.Type == model.TransactionTypeExpense })
	totalExpenses := sumByType(expenses, model.TransactionTypeExpense)
	totalIncome := sumByType(txs, model.TransactionTypeIncome)
	prevExpenses := sumByType(prev, model.TransactionTypeExpense)

	base := lo.Ternary(prevExpenses.IsPositive(), prevExpenses, decimal.NewFromInt(1))
	change := totalExpenses.Sub(prevExpenses).Div(base).Mul(decimal.NewFromInt(100)).Round(2)

	average := decimal.Zero
	if len(expenses) > 0 {
		average = totalExpenses.Div(decimal.NewFromInt(int64(len(expenses)))).Round(2)
	}

	top := lo.Slice(sortEntriesDesc(lo.Entries(categoryTotals(expenses))), 0, topCategoryCount)

	return &InsightSummary{
		Period:         period,
		TotalExpenses:  totalExpenses,
		TotalIncome:    totalIncome,
		NetIncome:      totalIncome.Sub(totalExpenses),
		SpendingChange: change.InexactFloat64(),
		TopCategories: lo.Map(top, func(e lo.Entry[string, decimal.Decimal], _ int) CategoryAmount {
			return CategoryAmount{Category: e.Key, Amount: e.Value}
		}),
		TransactionCount:         len(txs),
		AverageTransactionAmount: average,
	}, nil
}

// Predictions projects next month's expenses from the last 100 expenses.
func (s *InsightsService) Predictions(ctx context.Context, userID string) (*SpendingPrediction, error) {
	txs, _, err := s.txRepo.List(ctx, userID, repository.TransactionFilter{
		Type:  model.TransactionTypeExpense,
		Limit: predictionWindow,
	})
	if err != nil {
		return nil, err
	}

	p := predictSpending(txs)
	return &p, nil
}

// Spending bundles the prediction, anomalies and spending patterns over the
// last 100 transactions. Anomalies consider every transaction; prediction
// and patterns only expenses.
func (s *InsightsService) Spending(ctx context.Context, userID string) (*SpendingInsights, error) {
	txs, _, err := s.txRepo.List(ctx, userID, repository.TransactionFilter{Limit: predictionWindow})
	if err != nil {
		return nil, err
	}

	expenses := lo.Filter(txs, func(t *model.Transaction, _ int) bool { return t.Type == model.TransactionTypeExpense })

	return &SpendingInsights{
		SpendingPrediction: predictSpending(expenses),
		Anomalies:          lo.CoalesceSliceOrEmpty(findAnomalies(txs)),
		Patterns: SpendingPatterns{
			WeekdaySpending:  weekdaySpending(expenses),
			MonthlyTrends:    monthlySpending(expenses),
			SeasonalPatterns: seasonalSpending(expenses),
		},
	}, nil
}

// Tips suggests actions from the last month of expenses and the user's
// active goals.
func (s *InsightsService) Tips(ctx context.Context, userID string) ([]Tip, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	since := now.AddDate(0, -1, 0)
	txs, _, err := s.txRepo.List(ctx, userID, repository.TransactionFilter{
		Type:  model.TransactionTypeExpense,
		Start: &since,
		End:   &now,
	})
	if err != nil {
		return nil, err
	}

	goals, err := s.goals.Goals(ctx, userID, repository.GoalFilter{
		Status: model.GoalStatusActive,
		SortBy: repository.GoalSortRecent,
	})
	if err != nil {
		return nil, err
	}

	return tips(txs, goals, money.NewFormatter(s.locale, user.Currency), now), nil
}

// Trends totals expenses per calendar week (12, Sunday start) or month (6),
// oldest first, ending with the current one. category narrows the totals
// when set.
func (s *InsightsService) Trends(ctx context.Context, userID string, period model.ReportPeriod, category string) ([]TrendPoint, error) {
	starts := trendStarts(period, s.now())
	first := starts[0]
	last := endOfDay(s.now())

	txs, _, err := s.txRepo.List(ctx, userID, repository.TransactionFilter{
		Type:     model.TransactionTypeExpense,
		Category: category,
		Start:    &first,
		End:      &last,
	})
	if err != nil {
		return nil, err
	}

	layout := lo.Ternary(period == model.ReportWeekly, "Jan 02", "Jan 2006")
	points := lo.Map(starts, func(start time.Time, _ int) TrendPoint {
		return TrendPoint{Period: start.Format(layout), Start: start, Amount: decimal.Zero}
	})

	for _, t := range txs {
		i := sort.Search(len(starts), func(i int) bool { return starts[i].After(t.Date) }) - 1
		if i < 0 {
			continue
		}
		points[i].Amount = points[i].Amount.Add(t.Amount)
		points[i].TransactionCount++
	}

	return points, nil
}

// Categories totals expenses per category in the optional range, largest
// first, with the average transaction size.
func (s *InsightsService) Categories(ctx context.Context, userID string, start, end *time.Time) ([]CategoryInsight, error) {
	totals, err := s.txRepo.SpendingByCategory(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	return lo.Map(totals, func(c model.CategoryTotal, _ int) CategoryInsight {
		avg := decimal.Zero
		if c.Count > 0 {
			avg = c.TotalAmount.Div(decimal.NewFromInt(int64(c.Count))).Round(2)
		}
		return CategoryInsight{CategoryTotal: c, AvgAmount: avg}
	}), nil
}

// predictSpending averages the last three months of expenses and adjusts
// the result by the trend against the three months before them.
func predictSpending(txs []*model.Transaction) SpendingPrediction {
	p := SpendingPrediction{
		NextMonthPrediction: decimal.Zero,
		Trend:               "stable",
		CategoryPredictions: map[string]decimal.Decimal{},
	}
	if len(txs) < predictionMinSample {
		return p
	}

	p.CategoryPredictions = predictCategories(txs)

	values := lo.Map(monthlySpending(txs), func(m MonthlySpending, _ int) decimal.Decimal { return m.Spending })
	if len(values) < 3 {
		p.NextMonthPrediction = values[len(values)-1]
		p.Confidence = 0.5
		return p
	}

	recent := values[len(values)-3:]
	trend := spendingTrend(values)
	p.NextMonthPrediction = decimal.Avg(recent[0], recent[1:]...).
		Mul(decimal.NewFromFloat(1 + trend)).
		Round(0)
	p.Confidence = math.Min(0.9, 0.5+float64(len(values))*0.1)
	switch {
	case trend > 0:
		p.Trend = "increasing"
	case trend < 0:
		p.Trend = "decreasing"
	}
	return p
}

// spendingTrend is the relative change between the average of the last
// three monthly values and the three before them.
func spendingTrend(values []decimal.Decimal) float64 {
	if len(values) < 4 {
		return 0
	}
	recent := values[len(values)-3:]
	older := values[max(0, len(values)-6) : len(values)-3]

	recentAvg := decimal.Avg(recent[0], recent[1:]...)
	olderAvg := decimal.Avg(older[0], older[1:]...)
	if !olderAvg.IsPositive() {
		return 0
	}
	return recentAvg.Sub(olderAvg).Div(olderAvg).InexactFloat64()
}

// predictCategories averages each category's monthly totals.
func predictCategories(txs []*model.Transaction) map[string]decimal.Decimal {
	predictions := map[string]decimal.Decimal{}
	for category, group := range lo.GroupBy(txs, func(t *model.Transaction) string { return t.Category }) {
		months := lo.Map(monthlySpending(group), func(m MonthlySpending, _ int) decimal.Decimal { return m.Spending })
		months = lo.Filter(months, func(v decimal.Decimal, _ int) bool { return v.IsPositive() })
		if len(months) == 0 {
			continue
		}
		predictions[category] = decimal.Avg(months[0], months[1:]...).Round(0)
	}
	return predictions
}

func monthlySpending(txs []*model.Transaction) []MonthlySpending {
	totals := map[string]decimal.Decimal{}
	for _, t := range txs {
		key := t.Date.UTC().Format("2006-01")
		totals[key] = totals[key].Add(t.Amount)
	}

	months := lo.Keys(totals)
	sort.Strings(months)
	return lo.Map(months, func(m string, _ int) MonthlySpending {
		return MonthlySpending{Month: m, Spending: totals[m]}
	})
}

func weekdaySpending(txs []*model.Transaction) []BucketSpending {
	buckets := make([]BucketSpending, 7)
	for day := range buckets {
		buckets[day] = BucketSpending{Name: time.Weekday(day).String(), TotalSpending: decimal.Zero}
	}
	for _, t := range txs {
		addToBucket(&buckets[t.Date.UTC().Weekday()], t.Amount)
	}
	return finishBuckets(buckets)
}

// seasonalSpending uses meteorological seasons of the northern hemisphere.
func seasonalSpending(txs []*model.Transaction) []BucketSpending {
	buckets := []BucketSpending{
		{Name: "winter", TotalSpending: decimal.Zero},
		{Name: "spring", TotalSpending: decimal.Zero},
		{Name: "summer", TotalSpending: decimal.Zero},
		{Name: "fall", TotalSpending: decimal.Zero},
	}
	for _, t := range txs {
		// Dec, Jan, Feb → 0; Mar-May → 1; Jun-Aug → 2; Sep-Nov → 3
		season := (int(t.Date.UTC().Month()) % 12) / 3
		addToBucket(&buckets[season], t.Amount)
	}
	return finishBuckets(buckets)
}

func addToBucket(b *BucketSpending, amount decimal.Decimal) {
	b.TotalSpending = b.TotalSpending.Add(amount)
	b.TransactionCount++
}

func finishBuckets(buckets []BucketSpending) []BucketSpending {
	for i := range buckets {
		buckets[i].AverageSpending = decimal.Zero
		if buckets[i].TransactionCount > 0 {
			buckets[i].AverageSpending = buckets[i].TotalSpending.
				Div(decimal.NewFromInt(int64(buckets[i].TransactionCount))).
				Round(2)
		}
	}
	return buckets
}

func tips(txs []*model.Transaction, goals []*model.Goal, fmtMoney *money.Formatter, now time.Time) []Tip {
	result := []Tip{}

	ranked := sortEntriesDesc(lo.Entries(categoryTotals(txs)))
	if len(ranked) > 0 {
		top := ranked[0]
		result = append(result, Tip{
			Type:     "spending",
			Category: top.Key,
			Message: fmt.Sprintf("You spent %s on %s this month. Consider setting a budget limit for this category.",
				fmtMoney.Format(top.Value), top.Key),
			Priority: "medium",
		})
	}

	eatingOut := lo.CountBy(txs, func(t *model.Transaction) bool {
		return lo.Contains(eatingOutCategories, t.Category) ||
			strings.Contains(strings.ToLower(t.Description), "restaurant")
	})
	if eatingOut > eatingOutTipCount {
		result = append(result, Tip{
			Type:     "habit",
			Category: "Food and Drink",
			Message:  fmt.Sprintf("You ate out %d times this month. Cooking at home more often could save you money.", eatingOut),
			Priority: "high",
		})
	}

	for _, g := range goals {
		progress := g.Progress()
		daysLeft := int(math.Floor(g.TargetDate.Sub(now).Hours() / 24))
		if progress >= goalTipProgress || daysLeft >= goalTipDays {
			continue
		}

		msg := fmt.Sprintf("You're %.0f%% towards your %s goal with %d days left. Consider increasing your monthly contribution.",
			progress, g.Title, daysLeft)
		if daysLeft < 0 {
			msg = fmt.Sprintf("Your %s goal is past its target date at %.0f%%. Consider moving the date or increasing your contribution.",
				g.Title, progress)
		}
		result = append(result, Tip{Type: "goal", Category: "Savings", Message: msg, Priority: "high"})
	}

	return result
}

// trendStarts returns the start of each bucket, oldest first, the last one
// being the current week (Sunday) or month.
func trendStarts(period model.ReportPeriod, now time.Time) []time.Time {
	today := startOfDay(now)
	if period == model.ReportWeekly {
		current := today.AddDate(0, 0, -int(today.Weekday()))
		starts := make([]time.Time, trendWeeks)
		for i := range starts {
			starts[i] = current.AddDate(0, 0, -7*(trendWeeks-1-i))
		}
		return starts
	}

	current := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	starts := make([]time.Time, trendMonths)
	for i := range starts {
		starts[i] = current.AddDate(0, -(trendMonths - 1 - i), 0)
	}
	return starts
}

func shiftPeriod(t time.Time, period model.ReportPeriod, n int) time.Time {
	if period == model.ReportWeekly {
		return t.AddDate(0, 0, 7*n)
	}
	return t.AddDate(0, n, 0)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
