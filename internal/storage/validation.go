// Package storage provides the data persistence layer for finwiz.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidID          = errors.New("id must be positive")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidBucket      = errors.New("invalid budget bucket")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrEmptyString, paramName)
	}
	return nil
}

func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrInvalidID, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction before it is upserted.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: %w: transaction", common.ErrValidation, ErrNilParameter)
	}
	if txn.UserID <= 0 {
		return fmt.Errorf("%w: %w: missing user ID", common.ErrValidation, ErrInvalidTransaction)
	}
	if txn.AccountID <= 0 {
		return fmt.Errorf("%w: %w: missing account ID", common.ErrValidation, ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.ProviderTransactionID) == "" {
		return fmt.Errorf("%w: %w: missing provider transaction ID", common.ErrValidation, ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: %w: missing date", common.ErrValidation, ErrInvalidTransaction)
	}
	return nil
}

// validateBucket validates a budget bucket before it is created.
func validateBucket(bucket *model.BudgetBucket) error {
	if bucket == nil {
		return fmt.Errorf("%w: %w: bucket", common.ErrValidation, ErrNilParameter)
	}
	if bucket.UserID <= 0 {
		return fmt.Errorf("%w: %w: missing user ID", common.ErrValidation, ErrInvalidBucket)
	}
	if strings.TrimSpace(bucket.CategoryName) == "" {
		return fmt.Errorf("%w: %w: missing category name", common.ErrValidation, ErrInvalidBucket)
	}
	if len(bucket.CategoryIDs) == 0 {
		return fmt.Errorf("%w: %w: bucket must map to at least one category", common.ErrValidation, ErrInvalidBucket)
	}
	return nil
}
