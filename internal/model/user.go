package model

import (
	"time"
)

type NotificationPreferences struct {
	Email          bool `db:"notify_email" json:"email"`
	Push           bool `db:"notify_push" json:"push"`
	BudgetAlerts   bool `db:"notify_budget_alerts" json:"budgetAlerts"`
	GoalReminders  bool `db:"notify_goal_reminders" json:"goalReminders"`
	WeeklyReports  bool `db:"notify_weekly_reports" json:"weeklyReports"`
	MonthlyReports bool `db:"notify_monthly_reports" json:"monthlyReports"`
}

func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Email:          true,
		Push:           true,
		BudgetAlerts:   true,
		GoalReminders:  true,
		WeeklyReports:  false,
		MonthlyReports: true,
	}
}

type PrivacySettings struct {
	DataSharing       bool `db:"privacy_data_sharing" json:"dataSharing"`
	AnalyticsTracking bool `db:"privacy_analytics_tracking" json:"analyticsTracking"`
	MarketingEmails   bool `db:"privacy_marketing_emails" json:"marketingEmails"`
}

func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{AnalyticsTracking: true}
}

type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type User struct {
	ID                      string  `db:"id" json:"id"`
	Email                   string  `db:"email" json:"email"`
	PasswordHash            *string `db:"password_hash" json:"-"`
	FirstName               string  `db:"first_name" json:"firstName"`
	LastName                string  `db:"last_name" json:"lastName"`
	Currency                string  `db:"currency" json:"currency"`
	NotificationPreferences `json:"notifications"`
	PrivacySettings         `json:"privacy"`
	PushEndpoint            *string   `db:"push_endpoint" json:"-"`
	PushP256dh              *string   `db:"push_p256dh" json:"-"`
	PushAuth                *string   `db:"push_auth" json:"-"`
	CreatedAt               time.Time `db:"created_at" json:"createdAt"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// PushSubscription returns the stored subscription, or nil when the user
// never registered one.
func (u *User) PushSubscription() *PushSubscription {
	if u.PushEndpoint == nil || *u.PushEndpoint == "" {
		return nil
	}
	sub := &PushSubscription{Endpoint: *u.PushEndpoint}
	if u.PushP256dh != nil {
		sub.Keys.P256dh = *u.PushP256dh
	}
	if u.PushAuth != nil {
		sub.Keys.Auth = *u.PushAuth
	}
	return sub
}

func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "there"
}
