package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wealthwizard/finance-api/internal/model"
)

const (
	GoalSortRecent   = "recent"
	GoalSortProgress = "progress"
	GoalSortTitle    = "title"
)

var (
	ErrGoalNotFound = errors.New("goal not found")
	// ErrGoalConflict means the goal changed since it was read.
	ErrGoalConflict = errors.New("goal was modified concurrently")
)

type GoalFilter struct {
	Status model.GoalStatus
	SortBy string
}

type GoalRepository interface {
	Create(ctx context.Context, goal *model.Goal) error
	ByID(ctx context.Context, userID, goalID string) (*model.Goal, error)
	Goals(ctx context.Context, userID string, filter GoalFilter) ([]*model.Goal, error)
	// AutoContributeGoals lists active goals with auto-contribution enabled.
	AutoContributeGoals(ctx context.Context, userID string) ([]*model.Goal, error)
	AutoContributeUserIDs(ctx context.Context) ([]string, error)
	// Update saves edited fields, replaces the milestone set and records
	// newly crossed progress thresholds. It fails with ErrGoalConflict when
	// goal.Version is stale.
	Update(ctx context.Context, goal *model.Goal, crossed []int) error
	// AppendEntry writes a ledger entry together with the goal state derived
	// from it. It fails with ErrGoalConflict when goal.Version is stale.
	AppendEntry(ctx context.Context, goal *model.Goal, entry *model.GoalEntry, change model.LedgerChange) error
	Delete(ctx context.Context, userID, goalID string) error
}

type goalRepository struct {
	db *sqlx.DB
}

func NewGoalRepository(db *sqlx.DB) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO goals (id, user_id, title, description, target_amount, current_amount, target_date,
	              category, priority, status, auto_enabled, auto_amount, auto_frequency, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.ExecContext(ctx, query,
		goal.ID,
		goal.UserID,
		goal.Title,
		goal.Description,
		goal.TargetAmount,
		goal.CurrentAmount,
		goal.TargetDate,
		goal.Category,
		goal.Priority,
		goal.Status,
		goal.AutoContribute.Enabled,
		goal.AutoContribute.Amount,
		goal.AutoContribute.Frequency,
		goal.Version,
		goal.CreatedAt,
		goal.UpdatedAt,
	)
	if err != nil {
		return err
	}

	err = insertMilestones(ctx, tx, goal.Milestones)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *goalRepository) ByID(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	goal := &model.Goal{}
	query := `SELECT * FROM goals WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, goal, query, goalID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}

	err = r.loadMilestones(ctx, []*model.Goal{goal})
	if err != nil {
		return nil, err
	}

	query = `SELECT threshold FROM goal_thresholds WHERE goal_id = $1 ORDER BY threshold ASC`
	err = r.db.SelectContext(ctx, &goal.ReachedThresholds, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds: %w", err)
	}

	return goal, nil
}

func (r *goalRepository) Goals(ctx context.Context, userID string, filter GoalFilter) ([]*model.Goal, error) {
	var goals []*model.Goal

	// Validate and build ORDER BY clause
	var orderBy string
	switch filter.SortBy {
	case GoalSortProgress:
		orderBy = "ORDER BY current_amount / target_amount DESC, updated_at DESC"
	case GoalSortTitle:
		orderBy = "ORDER BY LOWER(title) ASC"
	default: // GoalSortRecent or empty
		orderBy = "ORDER BY created_at DESC"
	}

	query := `SELECT * FROM goals WHERE user_id = $1 `
	args := []any{userID}
	if filter.Status != "" {
		query += `AND status = $2 `
		args = append(args, filter.Status)
	}

	err := r.db.SelectContext(ctx, &goals, query+orderBy, args...)
	if err != nil {
		return nil, err
	}

	err = r.loadMilestones(ctx, goals)
	if err != nil {
		return nil, err
	}

	return goals, nil
}

func (r *goalRepository) AutoContributeGoals(ctx context.Context, userID string) ([]*model.Goal, error) {
	var goals []*model.Goal
	query := `SELECT * FROM goals WHERE user_id = $1 AND status = $2 AND auto_enabled = $3 ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &goals, query, userID, model.GoalStatusActive, true)
	if err != nil {
		return nil, err
	}

	return goals, nil
}

func (r *goalRepository) AutoContributeUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := `SELECT DISTINCT user_id FROM goals WHERE status = $1 AND auto_enabled = $2`

	err := r.db.SelectContext(ctx, &ids, query, model.GoalStatusActive, true)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *goalRepository) Update(ctx context.Context, goal *model.Goal, crossed []int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `UPDATE goals
	          SET title = $1, description = $2, target_amount = $3, current_amount = $4, target_date = $5,
	              category = $6, priority = $7, status = $8, auto_enabled = $9, auto_amount = $10,
	              auto_frequency = $11, version = version + 1, updated_at = $12
	          WHERE id = $13 AND user_id = $14 AND version = $15`

	result, err := tx.ExecContext(ctx, query,
		goal.Title,
		goal.Description,
		goal.TargetAmount,
		goal.CurrentAmount,
		goal.TargetDate,
		goal.Category,
		goal.Priority,
		goal.Status,
		goal.AutoContribute.Enabled,
		goal.AutoContribute.Amount,
		goal.AutoContribute.Frequency,
		now,
		goal.ID,
		goal.UserID,
		goal.Version,
	)
	if err != nil {
		return err
	}

	err = r.checkVersion(ctx, tx, result, goal)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM goal_milestones WHERE goal_id = $1`, goal.ID)
	if err != nil {
		return err
	}

	err = insertMilestones(ctx, tx, goal.Milestones)
	if err != nil {
		return err
	}

	err = insertThresholds(ctx, tx, goal.ID, crossed, now)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	goal.Version++
	goal.UpdatedAt = now
	return nil
}

func (r *goalRepository) AppendEntry(ctx context.Context, goal *model.Goal, entry *model.GoalEntry, change model.LedgerChange) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `UPDATE goals
	          SET current_amount = $1, status = $2, version = version + 1, updated_at = $3
	          WHERE id = $4 AND user_id = $5 AND version = $6`

	result, err := tx.ExecContext(ctx, query,
		goal.CurrentAmount,
		goal.Status,
		entry.Date,
		goal.ID,
		goal.UserID,
		goal.Version,
	)
	if err != nil {
		return err
	}

	err = r.checkVersion(ctx, tx, result, goal)
	if err != nil {
		return err
	}

	query = `INSERT INTO goal_entries (id, goal_id, amount, type, description, date)
	         VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, query, entry.ID, entry.GoalID, entry.Amount, entry.Type, entry.Description, entry.Date)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	for _, m := range change.AchievedMilestones {
		query = `UPDATE goal_milestones SET achieved = $1, achieved_at = $2 WHERE id = $3 AND goal_id = $4`
		_, err = tx.ExecContext(ctx, query, true, m.AchievedAt, m.ID, goal.ID)
		if err != nil {
			return fmt.Errorf("failed to mark milestone %s: %w", m.ID, err)
		}
	}

	err = insertThresholds(ctx, tx, goal.ID, change.CrossedThresholds, entry.Date)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	goal.Version++
	goal.UpdatedAt = entry.Date
	return nil
}

func (r *goalRepository) Delete(ctx context.Context, userID, goalID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrGoalNotFound
	}

	for _, table := range []string{"goal_thresholds", "goal_milestones", "goal_entries"} {
		_, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE goal_id = $1`, goalID)
		if err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// checkVersion turns a zero-row versioned update into ErrGoalNotFound or
// ErrGoalConflict.
func (r *goalRepository) checkVersion(ctx context.Context, tx *sqlx.Tx, result sql.Result, goal *model.Goal) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM goals WHERE id = $1 AND user_id = $2`, goal.ID, goal.UserID)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrGoalNotFound
	}
	return ErrGoalConflict
}

func (r *goalRepository) loadMilestones(ctx context.Context, goals []*model.Goal) error {
	if len(goals) == 0 {
		return nil
	}

	byID := make(map[string]*model.Goal, len(goals))
	ids := make([]string, 0, len(goals))
	for _, g := range goals {
		g.Milestones = []*model.Milestone{}
		byID[g.ID] = g
		ids = append(ids, g.ID)
	}

	query, args, err := sqlx.In(`SELECT * FROM goal_milestones WHERE goal_id IN (?) ORDER BY amount ASC`, ids)
	if err != nil {
		return err
	}

	var milestones []*model.Milestone
	err = r.db.SelectContext(ctx, &milestones, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to load milestones: %w", err)
	}

	for _, m := range milestones {
		g := byID[m.GoalID]
		g.Milestones = append(g.Milestones, m)
	}

	return nil
}

func insertMilestones(ctx context.Context, tx *sqlx.Tx, milestones []*model.Milestone) error {
	query := `INSERT INTO goal_milestones (id, goal_id, amount, achieved, achieved_at) VALUES ($1, $2, $3, $4, $5)`
	for _, m := range milestones {
		_, err := tx.ExecContext(ctx, query, m.ID, m.GoalID, m.Amount, m.Achieved, m.AchievedAt)
		if err != nil {
			return fmt.Errorf("failed to insert milestone: %w", err)
		}
	}
	return nil
}

func insertThresholds(ctx context.Context, tx *sqlx.Tx, goalID string, thresholds []int, at time.Time) error {
	query := `INSERT INTO goal_thresholds (goal_id, threshold, reached_at) VALUES ($1, $2, $3)`
	for _, threshold := range thresholds {
		_, err := tx.ExecContext(ctx, query, goalID, threshold, at)
		if err != nil {
			return fmt.Errorf("failed to record threshold %d: %w", threshold, err)
		}
	}
	return nil
}
