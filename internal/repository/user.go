package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/wealthwizard/finance-api/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) error
	UpdatePrivacy(ctx context.Context, userID string, privacy model.PrivacySettings) error
	SetPushSubscription(ctx context.Context, userID string, sub *model.PushSubscription) error
	// IDsWithPreference lists users whose given notification column is on.
	IDsWithPreference(ctx context.Context, column string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

const (
	PreferenceWeeklyReports  = "notify_weekly_reports"
	PreferenceMonthlyReports = "notify_monthly_reports"
	PreferenceBudgetAlerts   = "notify_budget_alerts"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, password_hash, first_name, last_name, currency,
	              notify_email, notify_push, notify_budget_alerts, notify_goal_reminders,
	              notify_weekly_reports, notify_monthly_reports,
	              privacy_data_sharing, privacy_analytics_tracking, privacy_marketing_emails, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	prefs := user.NotificationPreferences
	privacy := user.PrivacySettings
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Currency,
		prefs.Email,
		prefs.Push,
		prefs.BudgetAlerts,
		prefs.GoalReminders,
		prefs.WeeklyReports,
		prefs.MonthlyReports,
		privacy.DataSharing,
		privacy.AnalyticsTracking,
		privacy.MarketingEmails,
		user.CreatedAt,
	)
	if err != nil {
		// Check for unique constraint violation (works for both SQLite and PostgreSQL)
		errStr := err.Error()
		if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) error {
	query := `UPDATE users
	          SET notify_email = $1, notify_push = $2, notify_budget_alerts = $3,
	              notify_goal_reminders = $4, notify_weekly_reports = $5, notify_monthly_reports = $6
	          WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		prefs.Email,
		prefs.Push,
		prefs.BudgetAlerts,
		prefs.GoalReminders,
		prefs.WeeklyReports,
		prefs.MonthlyReports,
		userID,
	)
	if err != nil {
		return err
	}

	return requireRow(result, ErrUserNotFound)
}

func (r *userRepository) UpdatePrivacy(ctx context.Context, userID string, privacy model.PrivacySettings) error {
	query := `UPDATE users
	          SET privacy_data_sharing = $1, privacy_analytics_tracking = $2, privacy_marketing_emails = $3
	          WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query,
		privacy.DataSharing,
		privacy.AnalyticsTracking,
		privacy.MarketingEmails,
		userID,
	)
	if err != nil {
		return err
	}

	return requireRow(result, ErrUserNotFound)
}

// SetPushSubscription stores sub for the user; a nil sub removes it.
func (r *userRepository) SetPushSubscription(ctx context.Context, userID string, sub *model.PushSubscription) error {
	var endpoint, p256dh, auth *string
	if sub != nil {
		endpoint, p256dh, auth = &sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth
	}

	query := `UPDATE users SET push_endpoint = $1, push_p256dh = $2, push_auth = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, endpoint, p256dh, auth, userID)
	if err != nil {
		return err
	}

	return requireRow(result, ErrUserNotFound)
}

func (r *userRepository) IDsWithPreference(ctx context.Context, column string) ([]string, error) {
	switch column {
	case PreferenceWeeklyReports, PreferenceMonthlyReports, PreferenceBudgetAlerts:
	default:
		return nil, errors.New("unknown preference column: " + column)
	}

	var ids []string
	query := `SELECT id FROM users WHERE ` + column + ` = $1 ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &ids, query, true)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return requireRow(result, ErrUserNotFound)
}

// requireRow maps a zero-row result to notFound.
func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return notFound
	}

	return nil
}
