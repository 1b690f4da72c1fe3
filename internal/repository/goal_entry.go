package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wealthwizard/finance-api/internal/model"
)

type GoalEntryRepository interface {
	// Entries returns the goal's ledger, newest first.
	Entries(ctx context.Context, goalID string) ([]*model.GoalEntry, error)
	// ContributionsSince lists contributions across all of the user's goals made on or after since.
	ContributionsSince(ctx context.Context, userID string, since time.Time) ([]*model.GoalEntry, error)
}

type goalEntryRepository struct {
	db *sqlx.DB
}

func NewGoalEntryRepository(db *sqlx.DB) GoalEntryRepository {
	return &goalEntryRepository{db: db}
}

func (r *goalEntryRepository) Entries(ctx context.Context, goalID string) ([]*model.GoalEntry, error) {
	entries := []*model.GoalEntry{}
	query := `SELECT * FROM goal_entries WHERE goal_id = $1 ORDER BY date DESC, id DESC`

	err := r.db.SelectContext(ctx, &entries, query, goalID)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *goalEntryRepository) ContributionsSince(ctx context.Context, userID string, since time.Time) ([]*model.GoalEntry, error) {
	entries := []*model.GoalEntry{}
	query := `SELECT e.* FROM goal_entries e
	          JOIN goals g ON g.id = e.goal_id
	          WHERE g.user_id = $1 AND e.type = $2 AND e.date >= $3
	          ORDER BY e.date DESC`

	err := r.db.SelectContext(ctx, &entries, query, userID, model.EntryTypeContribution, since)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
