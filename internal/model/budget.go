package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetBucket is a per-user spending envelope for one top-level category group.
type BudgetBucket struct {
	UpdatedAt        time.Time
	CategoryName     string
	Month            string
	LastNotifiedBand Band
	CategoryIDs      []int64
	Limitation       decimal.Decimal
	MaxLimit         decimal.Decimal
	Spending         decimal.Decimal
	ManualSpending   decimal.Decimal
	ID               int64
	UserID           int64
	Fixed            bool
}

// ProjectedCategoryBudget is the forecast limit of a category group for a future month.
type ProjectedCategoryBudget struct {
	CategoryName string
	Month        string
	Limitation   decimal.Decimal
	MaxLimit     decimal.Decimal
	ID           int64
	UserID       int64
	CategoryID   int64
}
