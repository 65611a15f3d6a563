package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
)

// UpsertAccount inserts or refreshes an account keyed by (user, external id) and sets account.ID.
func (r *queries) UpsertAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: %w: account", common.ErrValidation, ErrNilParameter)
	}
	if err := validateID(account.UserID, "userID"); err != nil {
		return err
	}
	if err := validateString(account.ExternalID, "externalID"); err != nil {
		return err
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (user_id, external_id, name, type, subtype)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, external_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			subtype = excluded.subtype`,
		account.UserID, account.ExternalID, account.Name, account.Type, account.Subtype)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert account %s: %w", common.ErrPersistence, account.ExternalID, err)
	}

	err = r.q.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE user_id = ? AND external_id = ?`,
		account.UserID, account.ExternalID).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to read account id: %w", common.ErrPersistence, err)
	}
	return nil
}

// GetAccountByExternalID returns the user's account with the provider id, or nil.
func (r *queries) GetAccountByExternalID(ctx context.Context, userID int64, externalID string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var acc model.Account
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, external_id, name, type, subtype
		FROM accounts
		WHERE user_id = ? AND external_id = ?`,
		userID, externalID).Scan(&acc.ID, &acc.UserID, &acc.ExternalID, &acc.Name, &acc.Type, &acc.Subtype)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query account: %w", common.ErrPersistence, err)
	}
	return &acc, nil
}
