package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
)

var errNotDue = errors.New("auto-contribution not due")

type AutoContributionResult struct {
	GoalID   string          `json:"goalId"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	NewTotal decimal.Decimal `json:"newTotal"`
}

type AutoContributionSummary struct {
	ProcessedCount int                      `json:"processedCount"`
	Results        []AutoContributionResult `json:"results"`
}

// BatchResult summarises a run over many users.
type BatchResult struct {
	SuccessCount int `json:"successCount"`
	ErrorCount   int `json:"errorCount"`
	TotalUsers   int `json:"totalUsers"`
}

// ProcessAutoContributions applies every due auto-contribution for one
// user. Whether a goal is due is decided from its ledger alone, so running
// the pass again before the next interval changes nothing. A failing goal
// is logged and skipped.
func (s *GoalService) ProcessAutoContributions(ctx context.Context, userID string) (*AutoContributionSummary, error) {
	goals, err := s.repo.AutoContributeGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auto-contribution goals: %w", err)
	}

	summary := &AutoContributionSummary{Results: []AutoContributionResult{}}
	for _, g := range goals {
		if g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
			continue
		}

		log := slog.With("user_id", userID, "goal_id", g.ID)
		policy := g.AutoContribute
		if !policy.Amount.IsPositive() || !policy.Frequency.Valid() {
			log.Warn("auto-contribution skipped, invalid policy",
				"amount", policy.Amount.String(), "frequency", policy.Frequency)
			continue
		}

		goal, change, err := s.applyEntry(ctx, userID, g.ID, model.EntryTypeContribution, policy.Amount,
			fmt.Sprintf("Auto-contribution (%s)", policy.Frequency),
			func(goal *model.Goal, entries []*model.GoalEntry) error {
				if goal.Status != model.GoalStatusActive || !goal.AutoContribute.Enabled {
					return errNotDue
				}
				if goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount) {
					return errNotDue
				}
				if !contributionDue(entries, goal.AutoContribute.Frequency, s.now()) {
					return errNotDue
				}
				return nil
			})
		if errors.Is(err, errNotDue) {
			continue
		}
		if err != nil {
			log.Error("auto-contribution failed", "error", err)
			continue
		}

		summary.ProcessedCount++
		summary.Results = append(summary.Results, AutoContributionResult{
			GoalID:   goal.ID,
			Title:    goal.Title,
			Amount:   policy.Amount,
			NewTotal: goal.CurrentAmount,
		})
		s.enqueueMilestones(userID, goal, change.CrossedThresholds)
	}

	slog.Info("auto-contribution pass finished", "user_id", userID, "processed", summary.ProcessedCount)
	return summary, nil
}

// ProcessAllAutoContributions runs the pass for every user with at least one
// enabled policy.
func (s *GoalService) ProcessAllAutoContributions(ctx context.Context) (*BatchResult, error) {
	userIDs, err := s.repo.AutoContributeUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{TotalUsers: len(userIDs)}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		_, err := s.ProcessAutoContributions(ctx, userID)
		if err != nil {
			slog.Error("auto-contribution pass failed", "user_id", userID, "error", err)
			result.ErrorCount++
			continue
		}
		result.SuccessCount++
	}

	return result, nil
}

// RunAutoContributions triggers ProcessAllAutoContributions every interval
// until ctx is cancelled. It only decides when to run; whether a goal is due
// is still decided from its ledger.
func (s *GoalService) RunAutoContributions(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("auto-contribution ticker started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("auto-contribution ticker stopped")
			return nil
		case <-ticker.C:
			result, err := s.ProcessAllAutoContributions(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("scheduled auto-contribution run failed", "error", err)
				continue
			}
			if result != nil {
				slog.Info("scheduled auto-contribution run finished",
					"users", result.TotalUsers,
					"succeeded", result.SuccessCount,
					"failed", result.ErrorCount,
				)
			}
		}
	}
}

// contributionDue reports whether a goal with this ledger owes an automatic
// contribution: it never had a contribution, or at least the frequency's
// interval in whole days has passed since the latest one.
func contributionDue(entries []*model.GoalEntry, freq model.Frequency, now time.Time) bool {
	last := model.LastContribution(entries)
	if last == nil {
		return true
	}

	days := int(now.Sub(last.Date).Hours() / 24)
	return days >= freq.IntervalDays()
}
