package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/wealthwizard/finance-api/internal/model"
)

func TestValidateGoalTitle(t *testing.T) {
	assert.NoError(t, ValidateGoalTitle("Emergency fund"))
	assert.Error(t, ValidateGoalTitle("   "))
	assert.Error(t, ValidateGoalTitle(strings.Repeat("a", 101)))
	assert.True(t, IsValidationError(ValidateGoalTitle("")))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount("amount", decimal.NewFromInt(1)))
	assert.Error(t, ValidateAmount("amount", decimal.Zero))
	assert.Error(t, ValidateAmount("amount", decimal.NewFromInt(-50)))
}

func TestValidateMilestones(t *testing.T) {
	target := decimal.NewFromInt(1000)

	assert.NoError(t, ValidateMilestones([]decimal.Decimal{decimal.NewFromInt(250), target}, target))
	assert.Error(t, ValidateMilestones([]decimal.Decimal{decimal.NewFromInt(1001)}, target))
	assert.Error(t, ValidateMilestones([]decimal.Decimal{decimal.Zero}, target))
}

func TestValidateAutoContribute(t *testing.T) {
	assert.NoError(t, ValidateAutoContribute(model.AutoContribute{Enabled: false}))
	assert.NoError(t, ValidateAutoContribute(model.AutoContribute{
		Enabled: true, Amount: decimal.NewFromInt(100), Frequency: model.FrequencyWeekly,
	}))
	assert.Error(t, ValidateAutoContribute(model.AutoContribute{
		Enabled: true, Amount: decimal.Zero, Frequency: model.FrequencyWeekly,
	}))
	assert.Error(t, ValidateAutoContribute(model.AutoContribute{
		Enabled: true, Amount: decimal.NewFromInt(100), Frequency: "yearly",
	}))
}

func TestValidateCategoryAndPriority(t *testing.T) {
	assert.NoError(t, ValidateGoalCategory(model.GoalCategoryTravel))
	assert.Error(t, ValidateGoalCategory("Vacation"))
	assert.NoError(t, ValidateGoalPriority(model.GoalPriorityHigh))
	assert.Error(t, ValidateGoalPriority("urgent"))
}
