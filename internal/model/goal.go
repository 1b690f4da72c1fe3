package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusPaused    GoalStatus = "paused"
	GoalStatusCancelled GoalStatus = "cancelled"
)

type GoalCategory string

const (
	GoalCategoryEmergency      GoalCategory = "Emergency"
	GoalCategoryTravel         GoalCategory = "Travel"
	GoalCategoryTransportation GoalCategory = "Transportation"
	GoalCategoryHousing        GoalCategory = "Housing"
	GoalCategoryEducation      GoalCategory = "Education"
	GoalCategoryInvestment     GoalCategory = "Investment"
	GoalCategoryOther          GoalCategory = "Other"
)

var GoalCategories = []GoalCategory{
	GoalCategoryEmergency,
	GoalCategoryTravel,
	GoalCategoryTransportation,
	GoalCategoryHousing,
	GoalCategoryEducation,
	GoalCategoryInvestment,
	GoalCategoryOther,
}

type GoalPriority string

const (
	GoalPriorityLow    GoalPriority = "low"
	GoalPriorityMedium GoalPriority = "medium"
	GoalPriorityHigh   GoalPriority = "high"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// IntervalDays is the number of whole days that must elapse between two
// automatic contributions. Monthly is a fixed 30 days, not a calendar month.
func (f Frequency) IntervalDays() int {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 30
	}
	return 0
}

func (f Frequency) Valid() bool {
	return f.IntervalDays() > 0
}

type AutoContribute struct {
	Enabled   bool            `db:"auto_enabled" json:"enabled"`
	Amount    decimal.Decimal `db:"auto_amount" json:"amount"`
	Frequency Frequency       `db:"auto_frequency" json:"frequency"`
}

type Goal struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"userId"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	TargetAmount   decimal.Decimal `db:"target_amount" json:"targetAmount"`
	CurrentAmount  decimal.Decimal `db:"current_amount" json:"currentAmount"`
	TargetDate     time.Time       `db:"target_date" json:"targetDate"`
	Category       GoalCategory    `db:"category" json:"category"`
	Priority       GoalPriority    `db:"priority" json:"priority"`
	Status         GoalStatus      `db:"status" json:"status"`
	AutoContribute `json:"autoContribute"`
	Version        int       `db:"version" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`

	Milestones []*Milestone `db:"-" json:"milestones"`
	// Progress thresholds (see ProgressThresholds) already notified for this goal.
	ReachedThresholds []int `db:"-" json:"-"`
}

// Progress returns the completion percentage, capped at 100.
func (g *Goal) Progress() float64 {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	pct := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	return pct.InexactFloat64()
}

// goalFields drops Goal's methods so MarshalJSON can encode the stored
// fields without recursing.
type goalFields Goal

// MarshalJSON adds the computed progress percentage to the stored fields.
func (g Goal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		goalFields
		Progress float64 `json:"progress"`
	}{goalFields(g), g.Progress()})
}

func (g *Goal) Remaining() decimal.Decimal {
	return decimal.Max(decimal.Zero, g.TargetAmount.Sub(g.CurrentAmount))
}

// LedgerChange describes what a ledger write did to a goal.
type LedgerChange struct {
	Completed          bool
	AchievedMilestones []*Milestone
	CrossedThresholds  []int
}

// Reconcile recomputes the cached current amount from the ledger total and
// applies the derived state: clamping to the target, completion, amount
// milestones and progress thresholds. Achievements are never reverted.
func (g *Goal) Reconcile(ledgerTotal decimal.Decimal, now time.Time) LedgerChange {
	var change LedgerChange

	current := decimal.Max(decimal.Zero, ledgerTotal)
	if current.GreaterThanOrEqual(g.TargetAmount) {
		current = g.TargetAmount
		if g.Status != GoalStatusCompleted {
			g.Status = GoalStatusCompleted
			change.Completed = true
		}
	}
	g.CurrentAmount = current

	for _, m := range g.Milestones {
		if !m.Achieved && m.Amount.LessThanOrEqual(current) {
			at := now
			m.Achieved = true
			m.AchievedAt = &at
			change.AchievedMilestones = append(change.AchievedMilestones, m)
		}
	}

	change.CrossedThresholds = NewThresholds(g.Progress(), g.ReachedThresholds)
	g.ReachedThresholds = append(g.ReachedThresholds, change.CrossedThresholds...)

	return change
}

// CanTransition reports whether an explicit status change is allowed.
func (g *Goal) CanTransition(to GoalStatus) bool {
	switch to {
	case GoalStatusPaused:
		return g.Status == GoalStatusActive
	case GoalStatusActive:
		return g.Status == GoalStatusPaused || g.Status == GoalStatusCompleted
	case GoalStatusCancelled:
		return g.Status == GoalStatusActive || g.Status == GoalStatusPaused
	}
	return false
}
