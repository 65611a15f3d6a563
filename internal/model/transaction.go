package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction by the sign of its amount.
type TransactionType string

const (
	// TransactionTypeExpense is an outflow (negative amount).
	TransactionTypeExpense TransactionType = "expense"
	// TransactionTypeIncome is an inflow (zero or positive amount).
	TransactionTypeIncome TransactionType = "income"
)

// EntryType records how a transaction entered the system.
type EntryType string

const (
	// EntryTypeAutomatic marks transactions ingested from the provider.
	EntryTypeAutomatic EntryType = "automatic"
	// EntryTypeManual marks transactions entered by the user.
	EntryTypeManual EntryType = "manual"
)

// TransactionTypeFor derives the transaction type from a signed amount.
// Amounts follow the provider convention used throughout this module:
// negative values are outflows (expenses), zero and positive values are inflows (income).
func TransactionTypeFor(amount decimal.Decimal) TransactionType {
	if amount.IsNegative() {
		return TransactionTypeExpense
	}
	return TransactionTypeIncome
}

// TransactionKey is the natural key of a stored transaction.
type TransactionKey struct {
	ProviderTransactionID string
	UserID                int64
	AccountID             int64
}

// Transaction is a persisted financial transaction owned by a user.
type Transaction struct {
	Date                  time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	DeletedAt             *time.Time
	CategoryID            *int64
	ProviderTransactionID string
	Name                  string
	MerchantName          string
	CurrencyCode          string
	TransactionType       TransactionType
	EntryType             EntryType
	RawPayload            json.RawMessage
	CategoryPath          []string
	Amount                decimal.Decimal
	ID                    int64
	UserID                int64
	AccountID             int64
	Pending               bool
}

// Key returns the natural key of the transaction.
func (t *Transaction) Key() TransactionKey {
	return TransactionKey{
		UserID:                t.UserID,
		AccountID:             t.AccountID,
		ProviderTransactionID: t.ProviderTransactionID,
	}
}

// ProviderTransaction is a transaction as reported by the account-aggregation provider,
// reduced to the fields this module consumes.
type ProviderTransaction struct {
	Date          time.Time
	TransactionID string
	AccountID     string
	Name          string
	MerchantName  string
	CurrencyCode  string
	RawPayload    json.RawMessage
	Category      []string
	Amount        decimal.Decimal
	Pending       bool
}
