package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
	"github.com/wealthwizard/finance-api/internal/storage"
)

const (
	topCategoryCount        = 5
	insightWindowDays       = 30
	spendingAlertPercent    = 30
	savingsOpportunityFloor = 5000
	savingsOptimizationRate = 15
)

type ReportResult struct {
	Event      model.PeriodicReportEvent `json:"report"`
	ArchiveURL string                    `json:"archiveUrl,omitempty"`
}

type ReportService struct {
	users     repository.UserRepository
	txRepo    repository.TransactionRepository
	queue     NotificationQueue
	templates *Templates
	archive   storage.Archive
	now       func() time.Time
}

// NewReportService builds the service; archive may be nil to skip archiving.
func NewReportService(
	users repository.UserRepository,
	txRepo repository.TransactionRepository,
	queue NotificationQueue,
	templates *Templates,
	archive storage.Archive,
) *ReportService {
	return &ReportService{
		users:     users,
		txRepo:    txRepo,
		queue:     queue,
		templates: templates,
		archive:   archive,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReportRange returns the previous calendar week (Sunday start) or month
// relative to now, as an inclusive range.
func ReportRange(period model.ReportPeriod, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var start, next time.Time
	switch period {
	case model.ReportWeekly:
		next = today.AddDate(0, 0, -int(today.Weekday()))
		start = next.AddDate(0, 0, -7)
	default:
		next = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start = next.AddDate(0, -1, 0)
	}
	return start, next.Add(-time.Nanosecond)
}

// PeriodicReport summarises the user's last week or month and queues it
// for delivery. When an archive is configured the rendered report is also
// stored there.
func (s *ReportService) PeriodicReport(ctx context.Context, userID string, period model.ReportPeriod) (*ReportResult, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	start, end := ReportRange(period, s.now())

	stats, err := s.txRepo.Stats(ctx, userID, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	categories, err := s.txRepo.SpendingByCategory(ctx, userID, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	ev := model.PeriodicReportEvent{
		Period:        period,
		Start:         start,
		End:           end,
		Income:        stats.TotalIncome,
		Expenses:      stats.TotalExpenses,
		Net:           stats.NetIncome,
		TopCategories: lo.Slice(categories, 0, topCategoryCount),
	}
	s.queue.Enqueue(userID, ev)

	result := &ReportResult{Event: ev}
	if s.archive != nil {
		url, err := s.archiveReport(ctx, user, ev)
		if err != nil {
			slog.Warn("failed to archive report", "user_id", userID, "period", period, "error", err)
		} else {
			result.ArchiveURL = url
		}
	}

	return result, nil
}

func (s *ReportService) archiveReport(ctx context.Context, user *model.User, ev model.PeriodicReportEvent) (string, error) {
	msg, err := s.templates.Render("periodic_report", user, ev)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("reports/%s/%s-%s.html", user.ID, ev.Period, ev.Start.Format("2006-01-02"))
	return s.archive.Put(ctx, key, "text/html; charset=utf-8", []byte(msg.HTML))
}

// SendPeriodicReports runs PeriodicReport for every user subscribed to the
// period's report.
func (s *ReportService) SendPeriodicReports(ctx context.Context, period model.ReportPeriod) (*BatchResult, error) {
	column := repository.PreferenceMonthlyReports
	if period == model.ReportWeekly {
		column = repository.PreferenceWeeklyReports
	}

	userIDs, err := s.users.IDsWithPreference(ctx, column)
	if err != nil {
		return nil, err
	}

	return s.forEachUser(ctx, userIDs, func(userID string) error {
		_, err := s.PeriodicReport(ctx, userID, period)
		return err
	})
}

// AnalyzeInsights looks at the last 30 days of expenses and queues a
// spending alert for every category that grew more than 30% over the
// previous month, plus a savings opportunity when the top category is
// above 5000.
func (s *ReportService) AnalyzeInsights(ctx context.Context, userID string) ([]model.Event, error) {
	since := s.now().AddDate(0, 0, -insightWindowDays)
	txs, _, err := s.txRepo.List(ctx, userID, repository.TransactionFilter{
		Type:  model.TransactionTypeExpense,
		Start: &since,
	})
	if err != nil {
		return nil, err
	}

	events := insights(txs)
	for _, ev := range events {
		s.queue.Enqueue(userID, ev)
	}

	slog.Info("insights analyzed", "user_id", userID, "insights", len(events))
	return events, nil
}

// AnalyzeAllInsights runs AnalyzeInsights for every user with budget
// alerts enabled.
func (s *ReportService) AnalyzeAllInsights(ctx context.Context) (*BatchResult, error) {
	userIDs, err := s.users.IDsWithPreference(ctx, repository.PreferenceBudgetAlerts)
	if err != nil {
		return nil, err
	}

	return s.forEachUser(ctx, userIDs, func(userID string) error {
		_, err := s.AnalyzeInsights(ctx, userID)
		return err
	})
}

// SendInsight queues a caller-supplied insight for the user.
func (s *ReportService) SendInsight(ctx context.Context, userID string, ev model.Event) error {
	_, err := s.users.ByID(ctx, userID)
	if err != nil {
		return err
	}

	s.queue.Enqueue(userID, ev)
	return nil
}

func (s *ReportService) forEachUser(ctx context.Context, userIDs []string, fn func(userID string) error) (*BatchResult, error) {
	result := &BatchResult{TotalUsers: len(userIDs)}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		err := fn(userID)
		if err != nil {
			slog.Error("batch job failed for user", "user_id", userID, "error", err)
			result.ErrorCount++
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

func insights(txs []*model.Transaction) []model.Event {
	var events []model.Event

	byMonth := lo.GroupBy(txs, func(t *model.Transaction) string { return t.Date.Format("2006-01") })
	months := lo.Keys(byMonth)
	sort.Strings(months)

	if len(months) >= 2 {
		current := categoryTotals(byMonth[months[len(months)-1]])
		previous := categoryTotals(byMonth[months[len(months)-2]])

		categories := lo.Keys(current)
		sort.Strings(categories)
		for _, category := range categories {
			prev, ok := previous[category]
			if !ok || !prev.IsPositive() {
				continue
			}
			cur := current[category]
			increase := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
			if increase.GreaterThan(decimal.NewFromInt(spendingAlertPercent)) {
				events = append(events, model.SpendingAlertEvent{
					Category:           category,
					Increase:           cur.Sub(prev),
					CurrentAmount:      cur,
					PreviousAmount:     prev,
					PercentageIncrease: increase.Round(1).InexactFloat64(),
					Suggestion:         fmt.Sprintf("Consider reviewing your %s expenses and setting a budget limit.", category),
				})
			}
		}
	}

	totals := categoryTotals(txs)
	if len(totals) > 0 {
		top := lo.MaxBy(lo.Entries(totals), func(a, b lo.Entry[string, decimal.Decimal]) bool {
			return a.Value.GreaterThan(b.Value)
		})
		if top.Value.GreaterThan(decimal.NewFromInt(savingsOpportunityFloor)) {
			events = append(events, model.SavingsOpportunityEvent{
				Category:         top.Key,
				CurrentSpending:  top.Value,
				PotentialSavings: top.Value.Mul(decimal.NewFromInt(savingsOptimizationRate)).Div(decimal.NewFromInt(100)).Round(0),
				OptimizationRate: savingsOptimizationRate,
				Suggestion:       fmt.Sprintf("Review your %s expenses and look for subscription cancellations or alternative options.", top.Key),
			})
		}
	}

	return events
}

func categoryTotals(txs []*model.Transaction) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, t := range txs {
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}
	return totals
}
