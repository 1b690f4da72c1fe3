package validation

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
)

func ValidateGoalTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return invalid("title", "title is required")
	}
	if len([]rune(trimmed)) > 100 {
		return invalid("title", "title is too long (max 100 characters)")
	}
	return nil
}

func ValidateGoalDescription(description string) error {
	if len([]rune(description)) > 500 {
		return invalid("description", "description is too long (max 500 characters)")
	}
	return nil
}

// ValidateAmount requires a strictly positive amount.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid(field, field+" must be a positive number")
	}
	return nil
}

func ValidateTargetDate(date time.Time) error {
	if date.IsZero() {
		return invalid("targetDate", "targetDate is required")
	}
	return nil
}

func ValidateGoalCategory(category model.GoalCategory) error {
	if !slices.Contains(model.GoalCategories, category) {
		return invalid("category", "invalid category")
	}
	return nil
}

func ValidateGoalPriority(priority model.GoalPriority) error {
	switch priority {
	case model.GoalPriorityLow, model.GoalPriorityMedium, model.GoalPriorityHigh:
		return nil
	}
	return invalid("priority", "priority must be low, medium or high")
}

// ValidateMilestones requires every milestone to lie in (0, target].
func ValidateMilestones(amounts []decimal.Decimal, target decimal.Decimal) error {
	for _, a := range amounts {
		if !a.IsPositive() || a.GreaterThan(target) {
			return invalid("milestones", "milestones must be positive and not exceed the target amount")
		}
	}
	return nil
}

// ValidateAutoContribute checks a policy; amount and frequency only matter
// when the policy is enabled.
func ValidateAutoContribute(policy model.AutoContribute) error {
	if !policy.Enabled {
		return nil
	}
	if !policy.Amount.IsPositive() {
		return invalid("autoContribute.amount", "auto-contribution amount must be a positive number")
	}
	if !policy.Frequency.Valid() {
		return invalid("autoContribute.frequency", "frequency must be daily, weekly or monthly")
	}
	return nil
}
