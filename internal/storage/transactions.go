package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/shopspring/decimal"
)

// dateLayout is how transaction dates are stored so that range filters compare lexically.
const dateLayout = "2006-01-02"

const transactionColumns = `id, user_id, account_id, provider_transaction_id, amount, date, pending,
	category_id, category_path, name, merchant_name, currency_code, transaction_type, entry_type,
	raw_payload, created_at, updated_at, deleted_at`

// UpsertTransaction inserts the transaction or fully replaces the provider fields of the
// existing record with the same natural key. Soft-deleted records are updated but stay deleted.
func (r *queries) UpsertTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, decimal.NullDecimal, bool, error) {
	var previous decimal.NullDecimal

	if err := validateContext(ctx); err != nil {
		return nil, previous, false, err
	}
	if err := validateTransaction(txn); err != nil {
		return nil, previous, false, err
	}

	existing, err := r.GetTransaction(ctx, txn.Key())
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, previous, false, err
	}

	now := time.Now().UTC()
	stored := *txn
	stored.TransactionType = model.TransactionTypeFor(txn.Amount)
	stored.EntryType = model.EntryTypeAutomatic
	stored.UpdatedAt = now

	pathJSON, err := marshalCategoryPath(txn.CategoryPath)
	if err != nil {
		return nil, previous, false, err
	}

	if existing == nil {
		stored.CreatedAt = now
		stored.DeletedAt = nil

		result, execErr := r.q.ExecContext(ctx, `
			INSERT INTO transactions (user_id, account_id, provider_transaction_id, amount, date, pending,
				category_id, category_path, name, merchant_name, currency_code, transaction_type, entry_type,
				raw_payload, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.UserID, stored.AccountID, stored.ProviderTransactionID, stored.Amount.String(),
			stored.Date.Format(dateLayout), stored.Pending, nullableID(stored.CategoryID), pathJSON,
			stored.Name, stored.MerchantName, stored.CurrencyCode, string(stored.TransactionType),
			string(stored.EntryType), nullableJSON(stored.RawPayload), stored.CreatedAt, stored.UpdatedAt)
		if execErr != nil {
			return nil, previous, false, fmt.Errorf("%w: failed to insert transaction %s: %w",
				common.ErrPersistence, stored.ProviderTransactionID, execErr)
		}

		id, idErr := result.LastInsertId()
		if idErr != nil {
			return nil, previous, false, fmt.Errorf("failed to get transaction ID: %w", idErr)
		}
		stored.ID = id

		slog.Debug("created transaction",
			"provider_id", stored.ProviderTransactionID,
			"user_id", stored.UserID,
			"amount", stored.Amount.String())
		return &stored, previous, true, nil
	}

	previous = decimal.NullDecimal{Decimal: existing.Amount, Valid: true}
	stored.ID = existing.ID
	stored.CreatedAt = existing.CreatedAt
	stored.DeletedAt = existing.DeletedAt

	_, err = r.q.ExecContext(ctx, `
		UPDATE transactions SET
			amount = ?, date = ?, pending = ?, category_id = ?, category_path = ?, name = ?,
			merchant_name = ?, currency_code = ?, transaction_type = ?, entry_type = ?,
			raw_payload = ?, updated_at = ?
		WHERE id = ?`,
		stored.Amount.String(), stored.Date.Format(dateLayout), stored.Pending,
		nullableID(stored.CategoryID), pathJSON, stored.Name, stored.MerchantName, stored.CurrencyCode,
		string(stored.TransactionType), string(stored.EntryType), nullableJSON(stored.RawPayload),
		stored.UpdatedAt, stored.ID)
	if err != nil {
		return nil, previous, false, fmt.Errorf("%w: failed to update transaction %s: %w",
			common.ErrPersistence, stored.ProviderTransactionID, err)
	}

	slog.Debug("updated transaction",
		"provider_id", stored.ProviderTransactionID,
		"user_id", stored.UserID,
		"previous", existing.Amount.String(),
		"amount", stored.Amount.String())
	return &stored, previous, false, nil
}

// GetTransaction returns the transaction with the natural key, including soft-deleted ones.
func (r *queries) GetTransaction(ctx context.Context, key model.TransactionKey) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := r.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND account_id = ? AND provider_transaction_id = ?`,
		key.UserID, key.AccountID, key.ProviderTransactionID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, key.ProviderTransactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query transaction: %w", common.ErrPersistence, err)
	}
	return txn, nil
}

// SoftDeleteByProviderID marks the user's live transactions with the provider id as
// deleted and returns them as they were before the delete. The provider reports removals
// by transaction id alone, so the account is not part of the lookup.
func (r *queries) SoftDeleteByProviderID(ctx context.Context, userID int64, providerID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(providerID, "providerTransactionID"); err != nil {
		return nil, err
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND provider_transaction_id = ? AND deleted_at IS NULL
		ORDER BY id`,
		userID, providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query transaction: %w", common.ErrPersistence, err)
	}

	var removed []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: failed to scan transaction: %w", common.ErrPersistence, scanErr)
		}
		removed = append(removed, *txn)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	_ = rows.Close()

	if len(removed) == 0 {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, providerID)
	}

	_, err = r.q.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?
		WHERE user_id = ? AND provider_transaction_id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), userID, providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to delete transaction: %w", common.ErrPersistence, err)
	}
	return removed, nil
}

// SumTransactions adds up the amounts of the live transactions matching the filter.
// Amounts are stored as text, so the sum is computed with exact decimal arithmetic here
// instead of in SQL.
func (r *queries) SumTransactions(ctx context.Context, filter service.TransactionSumFilter) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}
	if err := validateID(filter.UserID, "userID"); err != nil {
		return decimal.Zero, err
	}

	query := `SELECT amount FROM transactions WHERE user_id = ? AND deleted_at IS NULL`
	args := []any{filter.UserID}

	if !filter.Start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, filter.Start.Format(dateLayout))
	}
	if !filter.End.IsZero() {
		query += ` AND date <= ?`
		args = append(args, filter.End.Format(dateLayout))
	}
	if filter.Type != "" {
		query += ` AND transaction_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.CategoryIDs != nil {
		if len(filter.CategoryIDs) == 0 {
			return decimal.Zero, nil
		}
		placeholders := make([]string, len(filter.CategoryIDs))
		for i, id := range filter.CategoryIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` AND category_id IN (` + strings.Join(placeholders, ", ") + `)`
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to sum transactions: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating transactions: %w", err)
	}

	return total, nil
}

func scanTransaction(s scanner) (*model.Transaction, error) {
	var (
		txn        model.Transaction
		date       string
		categoryID sql.NullInt64
		pathJSON   sql.NullString
		txType     string
		entryType  string
		payload    sql.NullString
		deletedAt  sql.NullTime
	)

	err := s.Scan(
		&txn.ID, &txn.UserID, &txn.AccountID, &txn.ProviderTransactionID, &txn.Amount, &date,
		&txn.Pending, &categoryID, &pathJSON, &txn.Name, &txn.MerchantName, &txn.CurrencyCode,
		&txType, &entryType, &payload, &txn.CreatedAt, &txn.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	if categoryID.Valid {
		id := categoryID.Int64
		txn.CategoryID = &id
	}
	if pathJSON.Valid && pathJSON.String != "" {
		if err := json.Unmarshal([]byte(pathJSON.String), &txn.CategoryPath); err != nil {
			slog.Warn("Failed to parse category path JSON", "error", err, "json", pathJSON.String)
		}
	}
	if payload.Valid && payload.String != "" {
		txn.RawPayload = json.RawMessage(payload.String)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		txn.DeletedAt = &t
	}
	txn.TransactionType = model.TransactionType(txType)
	txn.EntryType = model.EntryType(entryType)

	return &txn, nil
}

func marshalCategoryPath(path []string) (sql.NullString, error) {
	if len(path) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(path)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal category path: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
