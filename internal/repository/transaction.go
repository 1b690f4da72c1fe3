package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type TransactionFilter struct {
	Category string
	Type     model.TransactionType
	Start    *time.Time
	End      *time.Time
	Limit    int
	Offset   int
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error
	ByID(ctx context.Context, userID, id string) (*model.Transaction, error)
	// List returns one page of matching transactions, newest first, and the
	// total number of matches.
	List(ctx context.Context, userID string, filter TransactionFilter) ([]*model.Transaction, int, error)
	UpdateCategory(ctx context.Context, userID, id, category, detail string) error
	// MarkAnomalous flags the given transactions; ids of other users are ignored.
	MarkAnomalous(ctx context.Context, userID string, ids []string) error
	Stats(ctx context.Context, userID string, start, end *time.Time) (*model.TransactionStats, error)
	// SpendingByCategory totals expenses per category, largest first.
	SpendingByCategory(ctx context.Context, userID string, start, end *time.Time) ([]model.CategoryTotal, error)
}

type transactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	query := `INSERT INTO transactions (id, user_id, account_id, amount, date, description, category,
	              category_detail, merchant, type, is_anomalous, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.UserID,
		t.AccountID,
		t.Amount,
		t.Date,
		t.Description,
		t.Category,
		t.CategoryDetail,
		t.Merchant,
		t.Type,
		t.IsAnomalous,
		t.CreatedAt,
	)
	return err
}

func (r *transactionRepository) ByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	t := &model.Transaction{}
	query := `SELECT * FROM transactions WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, t, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (r *transactionRepository) List(ctx context.Context, userID string, filter TransactionFilter) ([]*model.Transaction, int, error) {
	w := newWhere(userID)
	if filter.Category != "" {
		w.add("category = ", filter.Category)
	}
	if filter.Type != "" {
		w.add("type = ", filter.Type)
	}
	w.dateRange(filter.Start, filter.End)

	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions `+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `SELECT * FROM transactions ` + w.String() + ` ORDER BY date DESC, created_at DESC`
	args := w.args
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	txs := []*model.Transaction{}
	err = r.db.SelectContext(ctx, &txs, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

func (r *transactionRepository) UpdateCategory(ctx context.Context, userID, id, category, detail string) error {
	query := `UPDATE transactions SET category = $1, category_detail = $2 WHERE id = $3 AND user_id = $4`

	result, err := r.db.ExecContext(ctx, query, category, detail, id, userID)
	if err != nil {
		return err
	}

	return requireRow(result, ErrTransactionNotFound)
}

func (r *transactionRepository) MarkAnomalous(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE transactions SET is_anomalous = ? WHERE user_id = ? AND id IN (?)`, true, userID, ids)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}

func (r *transactionRepository) Stats(ctx context.Context, userID string, start, end *time.Time) (*model.TransactionStats, error) {
	w := newWhere(userID)
	w.dateRange(start, end)

	var rows []struct {
		Type  model.TransactionType `db:"type"`
		Total decimal.Decimal       `db:"total"`
		Count int                   `db:"count"`
	}
	query := `SELECT type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count FROM transactions ` +
		w.String() + ` GROUP BY type`

	err := r.db.SelectContext(ctx, &rows, query, w.args...)
	if err != nil {
		return nil, err
	}

	stats := &model.TransactionStats{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, row := range rows {
		switch row.Type {
		case model.TransactionTypeIncome:
			stats.TotalIncome = row.Total
		case model.TransactionTypeExpense:
			stats.TotalExpenses = row.Total
		}
		stats.TransactionCount += row.Count
	}
	stats.NetIncome = stats.TotalIncome.Sub(stats.TotalExpenses)

	return stats, nil
}

func (r *transactionRepository) SpendingByCategory(ctx context.Context, userID string, start, end *time.Time) ([]model.CategoryTotal, error) {
	w := newWhere(userID)
	w.add("type = ", model.TransactionTypeExpense)
	w.dateRange(start, end)

	totals := []model.CategoryTotal{}
	query := `SELECT category, SUM(amount) AS total_amount, COUNT(*) AS count FROM transactions ` +
		w.String() + ` GROUP BY category ORDER BY total_amount DESC`

	err := r.db.SelectContext(ctx, &totals, query, w.args...)
	if err != nil {
		return nil, err
	}

	return totals, nil
}

// where accumulates AND-ed conditions with positional placeholders.
type where struct {
	conds []string
	args  []any
}

func newWhere(userID string) *where {
	w := &where{}
	w.add("user_id = ", userID)
	return w
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf("%s$%d", cond, len(w.args)))
}

func (w *where) dateRange(start, end *time.Time) {
	if start != nil {
		w.add("date >= ", *start)
	}
	if end != nil {
		w.add("date <= ", *end)
	}
}

func (w *where) String() string {
	return "WHERE " + strings.Join(w.conds, " AND ")
}
