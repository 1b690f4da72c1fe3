package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wealthwizard/finance-api/internal/markdown"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
	"github.com/wealthwizard/finance-api/internal/testutil"
)

type queuedEvent struct {
	userID string
	event  model.Event
}

type fakeQueue struct {
	mu     sync.Mutex
	events []queuedEvent
}

func (q *fakeQueue) Enqueue(userID string, ev model.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, queuedEvent{userID: userID, event: ev})
}

func (q *fakeQueue) kinds() []model.EventKind {
	q.mu.Lock()
	defer q.mu.Unlock()
	kinds := make([]model.EventKind, 0, len(q.events))
	for _, e := range q.events {
		kinds = append(kinds, e.event.Kind())
	}
	return kinds
}

func (q *fakeQueue) milestones() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var thresholds []int
	for _, e := range q.events {
		if m, ok := e.event.(model.MilestoneEvent); ok {
			thresholds = append(thresholds, m.Threshold)
		}
	}
	return thresholds
}

type sentEmail struct {
	to, subject, html string
}

type fakeEmail struct {
	mu    sync.Mutex
	sent  []sentEmail
	err   error
	calls int
}

func (f *fakeEmail) SendHTML(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, html: html})
	return nil
}

type fakePush struct {
	mu    sync.Mutex
	sent  []PushMessage
	err   error
	calls int
}

func (f *fakePush) Send(_ context.Context, _ *model.PushSubscription, msg PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type testEnv struct {
	db      *sqlx.DB
	users   repository.UserRepository
	goals   repository.GoalRepository
	entries repository.GoalEntryRepository
	txs     repository.TransactionRepository
	queue   *fakeQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	return &testEnv{
		db:      db,
		users:   repository.NewUserRepository(db),
		goals:   repository.NewGoalRepository(db),
		entries: repository.NewGoalEntryRepository(db),
		txs:     repository.NewTransactionRepository(db),
		queue:   &fakeQueue{},
	}
}

func (e *testEnv) goalService() *GoalService {
	s := NewGoalService(e.goals, e.entries, e.queue)
	s.conflictRetry = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 50)
	}
	return s
}

func (e *testEnv) createUser(t *testing.T, email string) *model.User {
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
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) addTransaction(t *testing.T, userID string, amount int64, category string, typ model.TransactionType, date time.Time) *model.Transaction {
	t.Helper()

	tx := &model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		AccountID:   model.ManualAccountID,
		Amount:      decimal.NewFromInt(amount),
		Date:        date,
		Description: category,
		Category:    category,
		Type:        typ,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, e.txs.Create(context.Background(), tx))
	return tx
}

func newTestTemplates(t *testing.T) *Templates {
	t.Helper()

	templates, err := NewTemplates(markdown.NewParser(), "en", "WealthWizard", "https://app.example.com")
	require.NoError(t, err)
	return templates
}

func goalInput(target int64, milestones ...int64) GoalInput {
	in := GoalInput{
		Title:        "Emergency fund",
		TargetAmount: decimal.NewFromInt(target),
		TargetDate:   time.Now().AddDate(1, 0, 0),
		Category:     model.GoalCategoryEmergency,
		AutoContribute: model.AutoContribute{
			Frequency: model.FrequencyMonthly,
		},
	}
	for _, m := range milestones {
		in.Milestones = append(in.Milestones, decimal.NewFromInt(m))
	}
	return in
}

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
