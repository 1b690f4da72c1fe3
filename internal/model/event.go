package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventGoalProgress       EventKind = "goal_progress"
	EventMilestone          EventKind = "milestone"
	EventSpendingAlert      EventKind = "spending_alert"
	EventBudgetExceeded     EventKind = "budget_exceeded"
	EventSavingsOpportunity EventKind = "savings_opportunity"
	EventPeriodicReport     EventKind = "periodic_report"
)

// Event is a notification-worthy domain event. The set of implementations
// is closed to this package.
type Event interface {
	Kind() EventKind
	event()
}

type GoalProgressEvent struct {
	GoalID        string
	GoalTitle     string
	Contribution  decimal.Decimal
	CurrentAmount decimal.Decimal
	TargetAmount  decimal.Decimal
	Progress      float64
	TargetDate    time.Time
}

type MilestoneEvent struct {
	GoalID        string
	GoalTitle     string
	Threshold     int
	Progress      float64
	CurrentAmount decimal.Decimal
	TargetAmount  decimal.Decimal
}

// Completed reports whether this milestone is the goal completion.
func (e MilestoneEvent) Completed() bool { return e.Threshold >= 100 }

type SpendingAlertEvent struct {
	Category           string
	Increase           decimal.Decimal
	CurrentAmount      decimal.Decimal
	PreviousAmount     decimal.Decimal
	PercentageIncrease float64
	Suggestion         string
}

type BudgetExceededEvent struct {
	BudgetLimit     decimal.Decimal
	CurrentSpending decimal.Decimal
	ExceededAmount  decimal.Decimal
}

type SavingsOpportunityEvent struct {
	Category         string
	CurrentSpending  decimal.Decimal
	PotentialSavings decimal.Decimal
	OptimizationRate int
	Suggestion       string
}

type ReportPeriod string

const (
	ReportWeekly  ReportPeriod = "weekly"
	ReportMonthly ReportPeriod = "monthly"
)

func (p ReportPeriod) Valid() bool {
	return p == ReportWeekly || p == ReportMonthly
}

type PeriodicReportEvent struct {
	Period        ReportPeriod    `json:"period"`
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	Income        decimal.Decimal `json:"income"`
	Expenses      decimal.Decimal `json:"expenses"`
	Net           decimal.Decimal `json:"net"`
	TopCategories []CategoryTotal `json:"topCategories"`
}

func (GoalProgressEvent) Kind() EventKind       { return EventGoalProgress }
func (MilestoneEvent) Kind() EventKind          { return EventMilestone }
func (SpendingAlertEvent) Kind() EventKind      { return EventSpendingAlert }
func (BudgetExceededEvent) Kind() EventKind     { return EventBudgetExceeded }
func (SavingsOpportunityEvent) Kind() EventKind { return EventSavingsOpportunity }
func (PeriodicReportEvent) Kind() EventKind     { return EventPeriodicReport }

func (GoalProgressEvent) event()       {}
func (MilestoneEvent) event()          {}
func (SpendingAlertEvent) event()      {}
func (BudgetExceededEvent) event()     {}
func (SavingsOpportunityEvent) event() {}
func (PeriodicReportEvent) event()     {}

// Allows reports whether the preferences permit delivery of ev at all,
// before any channel toggle is considered.
func (p NotificationPreferences) Allows(ev Event) bool {
	switch e := ev.(type) {
	case GoalProgressEvent, MilestoneEvent:
		return p.GoalReminders
	case SpendingAlertEvent, BudgetExceededEvent, SavingsOpportunityEvent:
		return p.BudgetAlerts
	case PeriodicReportEvent:
		if e.Period == ReportWeekly {
			return p.WeeklyReports
		}
		return p.MonthlyReports
	}
	return false
}
