package models

import "time"

type TransactionCategory string

const (
	CategoryPurchase TransactionCategory = "purchase"
	CategorySpend    TransactionCategory = "spend"
	CategoryRefund   TransactionCategory = "refund"
)

func (c TransactionCategory) Valid() bool {
	switch c {
	case CategoryPurchase, CategorySpend, CategoryRefund:
		return true
	}
	return false
}

// CoinTransaction is an immutable ledger row. Positive amounts are credits,
// negative amounts are debits.
type CoinTransaction struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Amount      int64               `json:"amount"`
	Category    TransactionCategory `json:"category"`
	Description string              `json:"description"`
	Reference   *string             `json:"reference,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

type TransactionPage struct {
	Items    []CoinTransaction `json:"items"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	HasMore  bool              `json:"has_more"`
}
