package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProgressThresholds is the fixed ladder of completion percentages that
// trigger a one-time milestone notification.
var ProgressThresholds = []int{25, 50, 75, 90, 100}

type Milestone struct {
	ID         string          `db:"id" json:"id"`
	GoalID     string          `db:"goal_id" json:"-"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Achieved   bool            `db:"achieved" json:"achieved"`
	AchievedAt *time.Time      `db:"achieved_at" json:"achievedAt,omitempty"`
}

// NewThresholds returns the thresholds at or below progress that are not in
// reached, in ascending order.
func NewThresholds(progress float64, reached []int) []int {
	seen := make(map[int]bool, len(reached))
	for _, t := range reached {
		seen[t] = true
	}

	var crossed []int
	for _, t := range ProgressThresholds {
		if float64(t) <= progress && !seen[t] {
			crossed = append(crossed, t)
		}
	}
	return crossed
}
