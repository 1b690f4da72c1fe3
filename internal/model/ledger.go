package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryTypeContribution EntryType = "contribution"
	EntryTypeWithdrawal   EntryType = "withdrawal"
)

// GoalEntry is one immutable ledger line against a goal.
type GoalEntry struct {
	ID          string          `db:"id" json:"id"`
	GoalID      string          `db:"goal_id" json:"goalId"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Type        EntryType       `db:"type" json:"type"`
	Description string          `db:"description" json:"description"`
	Date        time.Time       `db:"date" json:"date"`
}

// LedgerTotal is the sum of contributions minus the sum of withdrawals.
func LedgerTotal(entries []*GoalEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		switch e.Type {
		case EntryTypeContribution:
			total = total.Add(e.Amount)
		case EntryTypeWithdrawal:
			total = total.Sub(e.Amount)
		}
	}
	return total
}

// LastContribution returns the most recent contribution entry, or nil.
func LastContribution(entries []*GoalEntry) *GoalEntry {
	var last *GoalEntry
	for _, e := range entries {
		if e.Type != EntryTypeContribution {
			continue
		}
		if last == nil || e.Date.After(last.Date) {
			last = e
		}
	}
	return last
}
