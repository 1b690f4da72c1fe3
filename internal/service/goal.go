package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
	"github.com/wealthwizard/finance-api/internal/validation"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrGoalCancelled     = errors.New("goal is cancelled")
	ErrInsufficientFunds = errors.New("withdrawal exceeds the saved amount")
	ErrInvalidTransition = errors.New("status change not allowed")
	// ErrGoalBusy is returned when concurrent writers kept winning the race
	// for a goal until the retry budget ran out.
	ErrGoalBusy = errors.New("goal is busy, please retry")
)

const monthDays = 30

// GoalInput carries the user-editable fields of a goal.
type GoalInput struct {
	Title          string
	Description    string
	TargetAmount   decimal.Decimal
	TargetDate     time.Time
	Category       model.GoalCategory
	Priority       model.GoalPriority
	Milestones     []decimal.Decimal
	AutoContribute model.AutoContribute
}

type GoalAnalytics struct {
	Progress                       float64         `json:"progress"`
	AmountRemaining                decimal.Decimal `json:"amountRemaining"`
	MonthsRemaining                int             `json:"monthsRemaining"`
	RecommendedMonthlyContribution decimal.Decimal `json:"recommendedMonthlyContribution"`
	OnTrack                        bool            `json:"onTrack"`
}

type GoalService struct {
	repo          repository.GoalRepository
	entryRepo     repository.GoalEntryRepository
	queue         NotificationQueue
	now           func() time.Time
	conflictRetry func() backoff.BackOff
}

func NewGoalService(
	repo repository.GoalRepository,
	entryRepo repository.GoalEntryRepository,
	queue NotificationQueue,
) *GoalService {
	return &GoalService{
		repo:          repo,
		entryRepo:     entryRepo,
		queue:         queue,
		now:           func() time.Time { return time.Now().UTC() },
		conflictRetry: defaultConflictBackOff,
	}
}

func defaultConflictBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.WithMaxRetries(b, 10)
}

func (s *GoalService) Create(ctx context.Context, userID string, in GoalInput) (*model.Goal, error) {
	in.Priority = lo.CoalesceOrEmpty(in.Priority, model.GoalPriorityMedium)
	err := validateGoalInput(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	goal := &model.Goal{
		ID:             uuid.New().String(),
		UserID:         userID,
		Title:          in.Title,
		Description:    in.Description,
		TargetAmount:   in.TargetAmount,
		CurrentAmount:  decimal.Zero,
		TargetDate:     in.TargetDate.UTC(),
		Category:       in.Category,
		Priority:       in.Priority,
		Status:         model.GoalStatusActive,
		AutoContribute: in.AutoContribute,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	goal.Milestones = mergeMilestones(goal.ID, nil, in.Milestones)

	err = s.repo.Create(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	slog.Info("goal created", "user_id", userID, "goal_id", goal.ID)
	return goal, nil
}

func (s *GoalService) ByID(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	return s.repo.ByID(ctx, userID, goalID)
}

func (s *GoalService) Goals(ctx context.Context, userID string, filter repository.GoalFilter) ([]*model.Goal, error) {
	return s.repo.Goals(ctx, userID, filter)
}

// Entries returns the goal's ledger, newest first.
func (s *GoalService) Entries(ctx context.Context, userID, goalID string) ([]*model.GoalEntry, error) {
	// Verify ownership
	_, err := s.repo.ByID(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}

	return s.entryRepo.Entries(ctx, goalID)
}

// Update replaces the editable fields. The saved amount is always rederived
// from the ledger against the new target; a completed goal whose target is
// raised above the ledger total is reopened.
func (s *GoalService) Update(ctx context.Context, userID, goalID string, in GoalInput) (*model.Goal, error) {
	in.Priority = lo.CoalesceOrEmpty(in.Priority, model.GoalPriorityMedium)
	err := validateGoalInput(in)
	if err != nil {
		return nil, err
	}

	return s.edit(ctx, userID, goalID, func(goal *model.Goal, total decimal.Decimal) error {
		if goal.Status == model.GoalStatusCancelled {
			return ErrGoalCancelled
		}

		goal.Title = in.Title
		goal.Description = in.Description
		goal.TargetAmount = in.TargetAmount
		goal.TargetDate = in.TargetDate.UTC()
		goal.Category = in.Category
		goal.Priority = in.Priority
		goal.AutoContribute = in.AutoContribute
		goal.Milestones = mergeMilestones(goal.ID, goal.Milestones, in.Milestones)

		if goal.Status == model.GoalStatusCompleted && total.LessThan(in.TargetAmount) {
			goal.Status = model.GoalStatusActive
		}
		return nil
	})
}

// UpdateAutoContribute replaces only the auto-contribution policy.
func (s *GoalService) UpdateAutoContribute(ctx context.Context, userID, goalID string, policy model.AutoContribute) (*model.Goal, error) {
	err := validation.ValidateAutoContribute(policy)
	if err != nil {
		return nil, err
	}

	return s.edit(ctx, userID, goalID, func(goal *model.Goal, _ decimal.Decimal) error {
		goal.AutoContribute = policy
		return nil
	})
}

// SetStatus applies an explicit status change. Completion is never set
// explicitly; it follows from the ledger.
func (s *GoalService) SetStatus(ctx context.Context, userID, goalID string, status model.GoalStatus) (*model.Goal, error) {
	return s.edit(ctx, userID, goalID, func(goal *model.Goal, total decimal.Decimal) error {
		if !goal.CanTransition(status) {
			return ErrInvalidTransition
		}
		if status == model.GoalStatusActive && total.GreaterThanOrEqual(goal.TargetAmount) {
			return ErrInvalidTransition
		}
		goal.Status = status
		return nil
	})
}

func (s *GoalService) Delete(ctx context.Context, userID, goalID string) error {
	err := s.repo.Delete(ctx, userID, goalID)
	if err != nil {
		return err
	}

	slog.Info("goal deleted", "user_id", userID, "goal_id", goalID)
	return nil
}

// Contribute is the contribution processor: it appends a contribution to
// the ledger and updates the goal's derived state in one write, then queues
// notifications. Notification problems never fail the contribution.
func (s *GoalService) Contribute(ctx context.Context, userID, goalID string, amount decimal.Decimal, description string) (*model.Goal, error) {
	err := validation.ValidateAmount("amount", amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	goal, change, err := s.applyEntry(ctx, userID, goalID, model.EntryTypeContribution, amount,
		lo.CoalesceOrEmpty(description, "Contribution"),
		func(goal *model.Goal, _ []*model.GoalEntry) error {
			if goal.Status == model.GoalStatusCancelled {
				return ErrGoalCancelled
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.queue.Enqueue(userID, model.GoalProgressEvent{
		GoalID:        goal.ID,
		GoalTitle:     goal.Title,
		Contribution:  amount,
		CurrentAmount: goal.CurrentAmount,
		TargetAmount:  goal.TargetAmount,
		Progress:      goal.Progress(),
		TargetDate:    goal.TargetDate,
	})
	s.enqueueMilestones(userID, goal, change.CrossedThresholds)

	return goal, nil
}

// Withdraw appends a withdrawal. The goal status is left unchanged.
func (s *GoalService) Withdraw(ctx context.Context, userID, goalID string, amount decimal.Decimal, description string) (*model.Goal, error) {
	err := validation.ValidateAmount("amount", amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	goal, _, err := s.applyEntry(ctx, userID, goalID, model.EntryTypeWithdrawal, amount,
		lo.CoalesceOrEmpty(description, "Withdrawal"),
		func(goal *model.Goal, _ []*model.GoalEntry) error {
			if amount.GreaterThan(goal.CurrentAmount) {
				return ErrInsufficientFunds
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return goal, nil
}

func (s *GoalService) Analytics(ctx context.Context, userID, goalID string) (*GoalAnalytics, error) {
	goal, err := s.repo.ByID(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	months := math.Max(0, goal.TargetDate.Sub(now).Hours()/24/monthDays)
	remaining := goal.Remaining()

	recommended := decimal.Zero
	if months > 0 {
		recommended = remaining.Div(decimal.NewFromFloat(months)).Ceil()
	}

	onTrack := goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount)
	planned := goal.TargetDate.Sub(goal.CreatedAt)
	if planned > 0 {
		elapsed := decimal.NewFromFloat(now.Sub(goal.CreatedAt).Seconds() / planned.Seconds())
		onTrack = goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount.Mul(elapsed))
	}

	return &GoalAnalytics{
		Progress:                       goal.Progress(),
		AmountRemaining:                remaining,
		MonthsRemaining:                int(math.Ceil(months)),
		RecommendedMonthlyContribution: recommended,
		OnTrack:                        onTrack,
	}, nil
}

// entryCheck vets a pending ledger write against the freshly loaded goal
// and its ledger. A non-nil error aborts the write without retrying.
type entryCheck func(goal *model.Goal, entries []*model.GoalEntry) error

// applyEntry loads the goal, appends one ledger entry and reconciles the
// goal against the new ledger total. The write is conditional on the goal
// version read; on a lost race the whole read-check-write cycle is retried.
func (s *GoalService) applyEntry(
	ctx context.Context,
	userID, goalID string,
	entryType model.EntryType,
	amount decimal.Decimal,
	description string,
	check entryCheck,
) (*model.Goal, model.LedgerChange, error) {
	var (
		goal   *model.Goal
		change model.LedgerChange
	)

	op := func() error {
		g, err := s.repo.ByID(ctx, userID, goalID)
		if err != nil {
			return backoff.Permanent(err)
		}

		entries, err := s.entryRepo.Entries(ctx, goalID)
		if err != nil {
			return backoff.Permanent(err)
		}

		err = check(g, entries)
		if err != nil {
			return backoff.Permanent(err)
		}

		now := s.now()
		entry := &model.GoalEntry{
			ID:          uuid.New().String(),
			GoalID:      g.ID,
			Amount:      amount,
			Type:        entryType,
			Description: description,
			Date:        now,
		}

		total := model.LedgerTotal(append(entries, entry))
		c := g.Reconcile(total, now)

		err = s.repo.AppendEntry(ctx, g, entry, c)
		if errors.Is(err, repository.ErrGoalConflict) {
			slog.Debug("goal version conflict, retrying", "goal_id", goalID)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		goal, change = g, c
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(s.conflictRetry(), ctx))
	if errors.Is(err, repository.ErrGoalConflict) {
		return nil, change, ErrGoalBusy
	}
	if err != nil {
		return nil, change, err
	}

	slog.Info("goal ledger updated",
		"user_id", userID,
		"goal_id", goalID,
		"type", entryType,
		"amount", amount.String(),
		"current_amount", goal.CurrentAmount.String(),
		"status", goal.Status,
	)
	if change.Completed {
		slog.Info("goal completed", "user_id", userID, "goal_id", goalID)
	}

	return goal, change, nil
}

// edit applies mutate to a freshly loaded goal, reconciles it against its
// ledger and saves it with the same version retry as ledger writes.
func (s *GoalService) edit(
	ctx context.Context,
	userID, goalID string,
	mutate func(goal *model.Goal, ledgerTotal decimal.Decimal) error,
) (*model.Goal, error) {
	var (
		goal    *model.Goal
		crossed []int
	)

	op := func() error {
		g, err := s.repo.ByID(ctx, userID, goalID)
		if err != nil {
			return backoff.Permanent(err)
		}

		entries, err := s.entryRepo.Entries(ctx, goalID)
		if err != nil {
			return backoff.Permanent(err)
		}
		total := model.LedgerTotal(entries)

		err = mutate(g, total)
		if err != nil {
			return backoff.Permanent(err)
		}

		change := g.Reconcile(total, s.now())
		err = s.repo.Update(ctx, g, change.CrossedThresholds)
		if errors.Is(err, repository.ErrGoalConflict) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		goal, crossed = g, change.CrossedThresholds
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(s.conflictRetry(), ctx))
	if errors.Is(err, repository.ErrGoalConflict) {
		return nil, ErrGoalBusy
	}
	if err != nil {
		return nil, err
	}

	s.enqueueMilestones(userID, goal, crossed)
	return goal, nil
}

func (s *GoalService) enqueueMilestones(userID string, goal *model.Goal, thresholds []int) {
	for _, t := range thresholds {
		s.queue.Enqueue(userID, model.MilestoneEvent{
			GoalID:        goal.ID,
			GoalTitle:     goal.Title,
			Threshold:     t,
			Progress:      goal.Progress(),
			CurrentAmount: goal.CurrentAmount,
			TargetAmount:  goal.TargetAmount,
		})
	}
}

// mergeMilestones builds the milestone set for amounts, keeping the
// identity and achievement of milestones whose amount is unchanged.
func mergeMilestones(goalID string, existing []*model.Milestone, amounts []decimal.Decimal) []*model.Milestone {
	amounts = lo.UniqBy(amounts, func(a decimal.Decimal) string { return a.StringFixed(2) })

	milestones := make([]*model.Milestone, 0, len(amounts))
	for _, a := range amounts {
		m, ok := lo.Find(existing, func(m *model.Milestone) bool { return m.Amount.Equal(a) })
		if !ok {
			m = &model.Milestone{ID: uuid.New().String(), GoalID: goalID, Amount: a}
		}
		milestones = append(milestones, m)
	}
	return milestones
}

func validateGoalInput(in GoalInput) error {
	validators := []func() error{
		func() error { return validation.ValidateGoalTitle(in.Title) },
		func() error { return validation.ValidateGoalDescription(in.Description) },
		func() error { return validation.ValidateAmount("targetAmount", in.TargetAmount) },
		func() error { return validation.ValidateTargetDate(in.TargetDate) },
		func() error { return validation.ValidateGoalCategory(in.Category) },
		func() error { return validation.ValidateGoalPriority(in.Priority) },
		func() error { return validation.ValidateMilestones(in.Milestones, in.TargetAmount) },
		func() error { return validation.ValidateAutoContribute(in.AutoContribute) },
	}
	for _, v := range validators {
		err := v()
		if err != nil {
			return err
		}
	}
	return nil
}
