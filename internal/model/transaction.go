package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

const ManualAccountID = "manual"

type Transaction struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"userId"`
	AccountID      string          `db:"account_id" json:"accountId"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Date           time.Time       `db:"date" json:"date"`
	Description    string          `db:"description" json:"description"`
	Category       string          `db:"category" json:"category"`
	CategoryDetail string          `db:"category_detail" json:"categoryDetail"`
	Merchant       *string         `db:"merchant" json:"merchant"`
	Type           TransactionType `db:"type" json:"type"`
	IsAnomalous    bool            `db:"is_anomalous" json:"isAnomalous"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

type CategoryTotal struct {
	Category    string          `db:"category" json:"category"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Count       int             `db:"count" json:"count"`
}

type TransactionStats struct {
	TotalIncome      decimal.Decimal `json:"totalIncome"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	NetIncome        decimal.Decimal `json:"netIncome"`
	TransactionCount int             `json:"transactionCount"`
}
