package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/testutil"
)

func createUser(t *testing.T, db *sqlx.DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		ID:                      uuid.NewString(),
		Email:                   email,
		FirstName:               "Asha",
		Currency:                "INR",
		NotificationPreferences: model.DefaultNotificationPreferences(),
		PrivacySettings:         model.DefaultPrivacySettings(),
		CreatedAt:               time.Now().UTC(),
	}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

func createGoal(t *testing.T, repo GoalRepository, userID, title string, target int64, milestones ...int64) *model.Goal {
	t.Helper()

	now := time.Now().UTC()
	goal := &model.Goal{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         title,
		TargetAmount:  decimal.NewFromInt(target),
		CurrentAmount: decimal.Zero,
		TargetDate:    now.AddDate(1, 0, 0),
		Category:      model.GoalCategoryTravel,
		Priority:      model.GoalPriorityMedium,
		Status:        model.GoalStatusActive,
		AutoContribute: model.AutoContribute{
			Amount:    decimal.Zero,
			Frequency: model.FrequencyMonthly,
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range milestones {
		goal.Milestones = append(goal.Milestones, &model.Milestone{
			ID:     uuid.NewString(),
			GoalID: goal.ID,
			Amount: decimal.NewFromInt(m),
		})
	}
	require.NoError(t, repo.Create(context.Background(), goal))
	return goal
}

func TestUserRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "asha@example.com")

	err := repo.Create(ctx, &model.User{ID: uuid.NewString(), Email: "asha@example.com", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := repo.ByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.MonthlyReports)
	assert.False(t, got.WeeklyReports)

	_, err = repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	prefs := got.NotificationPreferences
	prefs.WeeklyReports = true
	prefs.Email = false
	require.NoError(t, repo.UpdatePreferences(ctx, user.ID, prefs))

	ids, err := repo.IDsWithPreference(ctx, PreferenceWeeklyReports)
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID}, ids)

	_, err = repo.IDsWithPreference(ctx, "password_hash")
	assert.Error(t, err)

	sub := &model.PushSubscription{Endpoint: "https://push.example.com/1"}
	sub.Keys.P256dh, sub.Keys.Auth = "key", "auth"
	require.NoError(t, repo.SetPushSubscription(ctx, user.ID, sub))

	got, err = repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, sub, got.PushSubscription())
	assert.False(t, got.Email)

	require.NoError(t, repo.SetPushSubscription(ctx, user.ID, nil))
	got, err = repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PushSubscription())

	assert.ErrorIs(t, repo.SetPushSubscription(ctx, "missing", nil), ErrUserNotFound)
}

func TestUserPrivacy(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "private@example.com")

	got, err := repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPrivacySettings(), got.PrivacySettings)

	privacy := model.PrivacySettings{DataSharing: true, MarketingEmails: true}
	require.NoError(t, repo.UpdatePrivacy(ctx, user.ID, privacy))

	got, err = repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, privacy, got.PrivacySettings)
	assert.True(t, got.MonthlyReports)

	assert.ErrorIs(t, repo.UpdatePrivacy(ctx, "missing", privacy), ErrUserNotFound)
}

func TestGoalCreateAndByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGoalRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "goals@example.com")
	other := createUser(t, db, "other@example.com")
	goal := createGoal(t, repo, user.ID, "Trip", 1000, 500, 250)

	got, err := repo.ByID(ctx, user.ID, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", got.Title)
	assert.True(t, got.TargetAmount.Equal(decimal.NewFromInt(1000)))
	require.Len(t, got.Milestones, 2)
	assert.True(t, got.Milestones[0].Amount.Equal(decimal.NewFromInt(250)))
	assert.Empty(t, got.ReachedThresholds)

	_, err = repo.ByID(ctx, other.ID, goal.ID)
	assert.ErrorIs(t, err, ErrGoalNotFound)
}

func TestGoalAppendEntry(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGoalRepository(db)
	entries := NewGoalEntryRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "ledger@example.com")
	goal := createGoal(t, repo, user.ID, "Laptop", 1000, 250, 750)

	stale := *goal
	now := time.Now().UTC()
	entry := &model.GoalEntry{
		ID:     uuid.NewString(),
		GoalID: goal.ID,
		Amount: decimal.NewFromInt(300),
		Type:   model.EntryTypeContribution,
		Date:   now,
	}
	change := goal.Reconcile(decimal.NewFromInt(300), now)
	require.NoError(t, repo.AppendEntry(ctx, goal, entry, change))
	assert.Equal(t, 2, goal.Version)

	got, err := repo.ByID(ctx, user.ID, goal.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, 2, got.Version)
	assert.True(t, got.Milestones[0].Achieved)
	assert.NotNil(t, got.Milestones[0].AchievedAt)
	assert.False(t, got.Milestones[1].Achieved)
	assert.Equal(t, []int{25}, got.ReachedThresholds)

	ledger, err := entries.Entries(ctx, goal.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.True(t, model.LedgerTotal(ledger).Equal(decimal.NewFromInt(300)))

	// Writing with the version read before the first entry must conflict and
	// leave the ledger untouched.
	staleEntry := &model.GoalEntry{
		ID:     uuid.NewString(),
		GoalID: goal.ID,
		Amount: decimal.NewFromInt(50),
		Type:   model.EntryTypeContribution,
		Date:   now,
	}
	err = repo.AppendEntry(ctx, &stale, staleEntry, model.LedgerChange{})
	assert.ErrorIs(t, err, ErrGoalConflict)

	ledger, err = entries.Entries(ctx, goal.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	missing := *goal
	missing.ID = "missing"
	err = repo.AppendEntry(ctx, &missing, staleEntry, model.LedgerChange{})
	assert.ErrorIs(t, err, ErrGoalNotFound)

	since, err := entries.ContributionsSince(ctx, user.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, since, 1)
}

func TestGoalUpdateReplacesMilestones(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGoalRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "update@example.com")
	goal := createGoal(t, repo, user.ID, "Car", 5000, 1000)

	goal.Title = "New car"
	goal.Milestones = []*model.Milestone{{ID: uuid.NewString(), GoalID: goal.ID, Amount: decimal.NewFromInt(2500)}}
	require.NoError(t, repo.Update(ctx, goal, nil))

	got, err := repo.ByID(ctx, user.ID, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "New car", got.Title)
	require.Len(t, got.Milestones, 1)
	assert.True(t, got.Milestones[0].Amount.Equal(decimal.NewFromInt(2500)))

	got.Version = 1
	assert.ErrorIs(t, repo.Update(ctx, got, nil), ErrGoalConflict)
}

func TestGoalsFilterAndSort(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGoalRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "sort@example.com")
	b := createGoal(t, repo, user.ID, "bike", 1000)
	a := createGoal(t, repo, user.ID, "Apartment", 1000)

	b.Status = model.GoalStatusPaused
	require.NoError(t, repo.Update(ctx, b, nil))

	goals, err := repo.Goals(ctx, user.ID, GoalFilter{SortBy: GoalSortTitle})
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, a.ID, goals[0].ID)
	assert.Equal(t, b.ID, goals[1].ID)

	goals, err = repo.Goals(ctx, user.ID, GoalFilter{Status: model.GoalStatusPaused})
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, b.ID, goals[0].ID)
	assert.NotNil(t, goals[0].Milestones)
}

func TestAutoContributeQueries(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGoalRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "auto@example.com")
	createUser(t, db, "manual@example.com")

	enabled := createGoal(t, repo, user.ID, "Auto", 1000)
	enabled.AutoContribute = model.AutoContribute{
		Enabled:   true,
		Amount:    decimal.NewFromInt(100),
		Frequency: model.FrequencyWeekly,
	}
	require.NoError(t, repo.Update(ctx, enabled, nil))
	createGoal(t, repo, user.ID, "Manual", 1000)

	ids, err := repo.AutoContributeUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID}, ids)

	goals, err := repo.AutoContributeGoals(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, enabled.ID, goals[0].ID)
	assert.Equal(t, model.FrequencyWeekly, goals[0].AutoContribute.Frequency)
}

func TestGoalDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGoalRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "delete@example.com")
	goal := createGoal(t, repo, user.ID, "Gone", 100, 50)

	require.NoError(t, repo.Delete(ctx, user.ID, goal.ID))
	_, err := repo.ByID(ctx, user.ID, goal.ID)
	assert.ErrorIs(t, err, ErrGoalNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, user.ID, goal.ID), ErrGoalNotFound)
}

func TestTransactionRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "tx@example.com")
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	add := func(amount int64, category string, typ model.TransactionType, day int) *model.Transaction {
		tx := &model.Transaction{
			ID:          uuid.NewString(),
			UserID:      user.ID,
			AccountID:   model.ManualAccountID,
			Amount:      decimal.NewFromInt(amount),
			Date:        base.AddDate(0, 0, day),
			Description: category,
			Category:    category,
			Type:        typ,
			CreatedAt:   time.Now().UTC(),
		}
		require.NoError(t, repo.Create(ctx, tx))
		return tx
	}

	add(5000, "Salary", model.TransactionTypeIncome, 0)
	food := add(300, "Food", model.TransactionTypeExpense, 1)
	add(200, "Food", model.TransactionTypeExpense, 2)
	add(900, "Rent", model.TransactionTypeExpense, 3)

	txs, total, err := repo.List(ctx, user.ID, TransactionFilter{Type: model.TransactionTypeExpense, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, txs, 2)
	assert.Equal(t, "Rent", txs[0].Category)

	start, end := base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)
	txs, total, err = repo.List(ctx, user.ID, TransactionFilter{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, txs, 2)

	stats, err := repo.Stats(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	assert.True(t, stats.TotalIncome.Equal(decimal.NewFromInt(5000)))
	assert.True(t, stats.TotalExpenses.Equal(decimal.NewFromInt(1400)))
	assert.True(t, stats.NetIncome.Equal(decimal.NewFromInt(3600)))
	assert.Equal(t, 4, stats.TransactionCount)

	totals, err := repo.SpendingByCategory(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "Rent", totals[0].Category)
	assert.Equal(t, "Food", totals[1].Category)
	assert.Equal(t, 2, totals[1].Count)
	assert.True(t, totals[1].TotalAmount.Equal(decimal.NewFromInt(500)))

	require.NoError(t, repo.UpdateCategory(ctx, user.ID, food.ID, "Dining", "Restaurants"))
	got, err := repo.ByID(ctx, user.ID, food.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dining", got.Category)
	assert.Equal(t, "Restaurants", got.CategoryDetail)

	require.NoError(t, repo.MarkAnomalous(ctx, user.ID, []string{food.ID}))
	got, err = repo.ByID(ctx, user.ID, food.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAnomalous)

	assert.ErrorIs(t, repo.UpdateCategory(ctx, "someone-else", food.ID, "X", ""), ErrTransactionNotFound)
	_, err = repo.ByID(ctx, user.ID, "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
