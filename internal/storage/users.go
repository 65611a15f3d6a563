package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/shopspring/decimal"
)

// CreateUser inserts a user with zeroed aggregates and sets user.ID.
func (r *queries) CreateUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: %w: user", common.ErrValidation, ErrNilParameter)
	}
	if err := validateString(user.Email, "email"); err != nil {
		return err
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := r.q.ExecContext(ctx, `
		INSERT INTO users (email, name, phone_number, address, employment_status, access_token,
			sync_cursor, balance, manual_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email, user.Name, user.PhoneNumber, user.Address, user.EmploymentStatus,
		user.AccessToken, user.SyncCursor, user.Balance.String(), user.ManualBalance.String(), user.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to create user: %w", common.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user ID: %w", err)
	}
	user.ID = id
	return nil
}

// GetUser returns the user or an ErrNotFound error.
func (r *queries) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var u model.User
	err := r.q.QueryRowContext(ctx, `
		SELECT id, email, name, phone_number, address, employment_status, access_token,
			sync_cursor, balance, manual_balance, created_at
		FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.PhoneNumber, &u.Address, &u.EmploymentStatus, &u.AccessToken,
		&u.SyncCursor, &u.Balance, &u.ManualBalance, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query user: %w", common.ErrPersistence, err)
	}
	return &u, nil
}

// ListUserIDs returns every user id in ascending order.
func (r *queries) ListUserIDs(ctx context.Context) ([]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := r.q.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list users: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateUserBalances overwrites the user's running aggregates.
// Callers compute the new values inside the same transaction they read them in.
func (r *queries) UpdateUserBalances(ctx context.Context, userID int64, balance, manualBalance decimal.Decimal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx,
		`UPDATE users SET balance = ?, manual_balance = ? WHERE id = ?`,
		balance.String(), manualBalance.String(), userID)
	if err != nil {
		return fmt.Errorf("%w: failed to update user balances: %w", common.ErrPersistence, err)
	}
	return expectOneRow(result, "user", userID)
}

// UpdateUserProfile applies the allow-listed profile fields that are set.
func (r *queries) UpdateUserProfile(ctx context.Context, userID int64, update model.ProfileUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if update.IsEmpty() {
		return common.Validationf("profile update for user %d changes nothing", userID)
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value *string) {
		if value != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *value)
		}
	}
	add("name", update.Name)
	add("phone_number", update.PhoneNumber)
	add("address", update.Address)
	add("employment_status", update.EmploymentStatus)
	add("access_token", update.AccessToken)
	args = append(args, userID)

	result, err := r.q.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to update user profile: %w", common.ErrPersistence, err)
	}
	return expectOneRow(result, "user", userID)
}

// SetSyncCursor stores the provider cursor reached by the last completed sync.
func (r *queries) SetSyncCursor(ctx context.Context, userID int64, cursor string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, `UPDATE users SET sync_cursor = ? WHERE id = ?`, cursor, userID)
	if err != nil {
		return fmt.Errorf("%w: failed to store sync cursor: %w", common.ErrPersistence, err)
	}
	return expectOneRow(result, "user", userID)
}

func expectOneRow(result sql.Result, entity string, id any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %v", common.ErrNotFound, entity, id)
	}
	return nil
}
