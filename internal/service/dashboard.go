package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
)

const recentContributionCount = 5

type Dashboard struct {
	ActiveGoals          int                `json:"activeGoals"`
	CompletedGoals       int                `json:"completedGoals"`
	TotalSaved           decimal.Decimal    `json:"totalSaved"`
	TotalTarget          decimal.Decimal    `json:"totalTarget"`
	MonthIncome          decimal.Decimal    `json:"monthIncome"`
	MonthExpenses        decimal.Decimal    `json:"monthExpenses"`
	ContributedThisMonth decimal.Decimal    `json:"contributedThisMonth"`
	RecentContributions  []*model.GoalEntry `json:"recentContributions"`
}

type DashboardService struct {
	goals   repository.GoalRepository
	entries repository.GoalEntryRepository
	txRepo  repository.TransactionRepository
	now     func() time.Time
}

func NewDashboardService(
	goals repository.GoalRepository,
	entries repository.GoalEntryRepository,
	txRepo repository.TransactionRepository,
) *DashboardService {
	return &DashboardService{
		goals:   goals,
		entries: entries,
		txRepo:  txRepo,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Summary aggregates goal totals, this month's cash flow and the latest
// goal contributions. Cancelled goals are left out of the totals.
func (s *DashboardService) Summary(ctx context.Context, userID string) (*Dashboard, error) {
	goals, err := s.goals.Goals(ctx, userID, repository.GoalFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load goals: %w", err)
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats, err := s.txRepo.Stats(ctx, userID, &monthStart, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	contributions, err := s.entries.ContributionsSince(ctx, userID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load contributions: %w", err)
	}

	counted := lo.Filter(goals, func(g *model.Goal, _ int) bool { return g.Status != model.GoalStatusCancelled })
	thisMonth := lo.Filter(contributions, func(e *model.GoalEntry, _ int) bool { return !e.Date.Before(monthStart) })

	return &Dashboard{
		ActiveGoals:    lo.CountBy(goals, func(g *model.Goal) bool { return g.Status == model.GoalStatusActive }),
		CompletedGoals: lo.CountBy(goals, func(g *model.Goal) bool { return g.Status == model.GoalStatusCompleted }),
		TotalSaved: lo.Reduce(counted, func(sum decimal.Decimal, g *model.Goal, _ int) decimal.Decimal {
			return sum.Add(g.CurrentAmount)
		}, decimal.Zero),
		TotalTarget: lo.Reduce(counted, func(sum decimal.Decimal, g *model.Goal, _ int) decimal.Decimal {
			return sum.Add(g.TargetAmount)
		}, decimal.Zero),
		MonthIncome:          stats.TotalIncome,
		MonthExpenses:        stats.TotalExpenses,
		ContributedThisMonth: model.LedgerTotal(thisMonth),
		RecentContributions:  lo.Slice(contributions, 0, recentContributionCount),
	}, nil
}
