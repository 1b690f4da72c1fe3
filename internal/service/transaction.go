package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
	"github.com/wealthwizard/finance-api/internal/validation"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	anomalyWindow            = 100
	anomalyMinSample         = 10
	anomalyZScore            = 2.5
	categoryAnomalyMinSample = 5
	categoryAnomalyZScore    = 2
)

type TransactionInput struct {
	Amount      decimal.Decimal
	Description string
	Category    string
	Type        model.TransactionType
	Date        time.Time
	Merchant    string
}

type TransactionPage struct {
	Transactions []*model.Transaction `json:"transactions"`
	TotalPages   int                  `json:"totalPages"`
	CurrentPage  int                  `json:"currentPage"`
	Total        int                  `json:"total"`
}

type TransactionService struct {
	repo repository.TransactionRepository
	now  func() time.Time
}

func NewTransactionService(repo repository.TransactionRepository) *TransactionService {
	return &TransactionService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// List returns one page of the user's transactions. page starts at 1.
func (s *TransactionService) List(ctx context.Context, userID string, filter repository.TransactionFilter, page int) (*TransactionPage, error) {
	page = max(page, 1)
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	filter.Limit = min(filter.Limit, maxPageSize)
	filter.Offset = (page - 1) * filter.Limit

	txs, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	return &TransactionPage{
		Transactions: txs,
		TotalPages:   int(math.Ceil(float64(total) / float64(filter.Limit))),
		CurrentPage:  page,
		Total:        total,
	}, nil
}

func (s *TransactionService) ByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	return s.repo.ByID(ctx, userID, id)
}

// Create records a manual transaction. The amount is stored as an absolute
// value; the type carries the direction.
func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (*model.Transaction, error) {
	if in.Type != model.TransactionTypeIncome && in.Type != model.TransactionTypeExpense {
		return nil, &validation.Error{Field: "type", Message: "type must be income or expense"}
	}
	amount := in.Amount.Abs()
	err := validation.ValidateAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, &validation.Error{Field: "description", Message: "description is required"}
	}

	now := s.now()
	t := &model.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		AccountID:   model.ManualAccountID,
		Amount:      amount,
		Date:        lo.Ternary(in.Date.IsZero(), now, in.Date.UTC()),
		Description: strings.TrimSpace(in.Description),
		Category:    lo.CoalesceOrEmpty(strings.TrimSpace(in.Category), "Other"),
		Type:        in.Type,
		CreatedAt:   now,
	}
	if in.Merchant != "" {
		t.Merchant = &in.Merchant
	}

	err = s.repo.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return t, nil
}

func (s *TransactionService) UpdateCategory(ctx context.Context, userID, id, category, detail string) (*model.Transaction, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, &validation.Error{Field: "category", Message: "category is required"}
	}

	err := s.repo.UpdateCategory(ctx, userID, id, category, detail)
	if err != nil {
		return nil, err
	}

	return s.repo.ByID(ctx, userID, id)
}

func (s *TransactionService) Stats(ctx context.Context, userID string, start, end *time.Time) (*model.TransactionStats, error) {
	return s.repo.Stats(ctx, userID, start, end)
}

func (s *TransactionService) SpendingByCategory(ctx context.Context, userID string, start, end *time.Time) ([]model.CategoryTotal, error) {
	return s.repo.SpendingByCategory(ctx, userID, start, end)
}

// Anomaly is a transaction whose amount stands out, either against all
// recent transactions or against its own category.
type Anomaly struct {
	TransactionID string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Date          time.Time       `json:"date"`
	Category      string          `json:"category,omitempty"`
	ZScore        float64         `json:"zScore"`
	Confidence    float64         `json:"confidence"`
	Reason        string          `json:"reason"`
}

// DetectAnomalies flags the user's last 100 transactions that stand out
// and returns how many transactions were flagged.
func (s *TransactionService) DetectAnomalies(ctx context.Context, userID string) (int, error) {
	txs, _, err := s.repo.List(ctx, userID, repository.TransactionFilter{Limit: anomalyWindow})
	if err != nil {
		return 0, err
	}

	ids := lo.Uniq(lo.Map(findAnomalies(txs), func(a Anomaly, _ int) string { return a.TransactionID }))
	err = s.repo.MarkAnomalous(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to flag anomalies: %w", err)
	}

	slog.Info("anomaly detection completed", "user_id", userID, "anomalies", len(ids))
	return len(ids), nil
}

// findAnomalies scores amounts against the whole sample (more than 2.5
// standard deviations) and against each category with at least 5 entries
// (more than 2). Results are ordered by confidence, highest first.
func findAnomalies(txs []*model.Transaction) []Anomaly {
	if len(txs) < anomalyMinSample {
		return nil
	}

	found := outliers(txs, anomalyZScore, func(t *model.Transaction, mean float64) (string, string) {
		if t.Amount.InexactFloat64() > mean {
			return "", "Unusually high spending"
		}
		return "", "Unusually low spending"
	})

	byCategory := lo.GroupBy(txs, func(t *model.Transaction) string { return t.Category })
	categories := lo.Keys(byCategory)
	sort.Strings(categories)
	for _, category := range categories {
		group := byCategory[category]
		if len(group) < categoryAnomalyMinSample {
			continue
		}
		found = append(found, outliers(group, categoryAnomalyZScore, func(*model.Transaction, float64) (string, string) {
			return category, "Unusual " + category + " spending"
		})...)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Confidence > found[j].Confidence })
	return found
}

func outliers(txs []*model.Transaction, threshold float64, describe func(t *model.Transaction, mean float64) (string, string)) []Anomaly {
	amounts := lo.Map(txs, func(t *model.Transaction, _ int) float64 { return t.Amount.InexactFloat64() })
	mean := lo.Mean(amounts)
	variance := lo.Mean(lo.Map(amounts, func(a float64, _ int) float64 { return (a - mean) * (a - mean) }))
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return nil
	}

	var found []Anomaly
	for i, t := range txs {
		z := math.Abs(amounts[i]-mean) / stdDev
		if z <= threshold {
			continue
		}
		category, reason := describe(t, mean)
		found = append(found, Anomaly{
			TransactionID: t.ID,
			Amount:        t.Amount,
			Description:   t.Description,
			Date:          t.Date,
			Category:      category,
			ZScore:        math.Round(z*100) / 100,
			Confidence:    math.Min(z/threshold, 1),
			Reason:        reason,
		})
	}
	return found
}
