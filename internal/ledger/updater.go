// Package ledger keeps bucket spending and user balances in step with stored transactions.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/notify"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/shopspring/decimal"
)

// Updater applies one stored transaction to the running aggregates.
type Updater struct {
	emitter *notify.Emitter
	logger  *slog.Logger
}

// NewUpdater creates an updater that evaluates notifications with emitter.
func NewUpdater(emitter *notify.Emitter) *Updater {
	return &Updater{
		emitter: emitter,
		logger:  slog.Default().With("component", "ledger"),
	}
}

// Apply folds txn into its bucket and into the owner's balances and returns the
// notification the update produced, if any. The notification is already stored in repo.
//
// previous is the amount the record held before this write. When it is set and
// non-zero the old contribution is added back before the new amount is subtracted,
// so replaying the same transaction leaves every aggregate unchanged.
//
// Apply performs several read-modify-write steps; run it inside a database
// transaction while holding the user's lock.
func (u *Updater) Apply(ctx context.Context, repo service.Repository, txn *model.Transaction, previous decimal.NullDecimal) (*model.Notification, error) {
	if txn == nil || txn.CategoryID == nil {
		return nil, common.Validationf("ledger update needs a categorized transaction")
	}

	undo := decimal.Zero
	correction := previous.Valid && !previous.Decimal.IsZero()
	if correction {
		undo = previous.Decimal
	}

	notification, err := u.fold(ctx, repo, txn, undo, txn.Amount)
	if err != nil {
		return nil, err
	}

	u.logger.Debug("applied transaction",
		"user_id", txn.UserID,
		"provider_id", txn.ProviderTransactionID,
		"amount", txn.Amount.String(),
		"correction", correction,
		"notified", notification != nil)
	return notification, nil
}

// Reverse takes a removed transaction's contribution back out of its bucket and the
// owner's balances. The same locking rules as Apply hold.
func (u *Updater) Reverse(ctx context.Context, repo service.Repository, txn *model.Transaction) (*model.Notification, error) {
	if txn == nil {
		return nil, common.Validationf("ledger reversal needs a transaction")
	}

	notification, err := u.fold(ctx, repo, txn, txn.Amount, decimal.Zero)
	if err != nil {
		return nil, err
	}

	u.logger.Debug("reversed transaction",
		"user_id", txn.UserID,
		"provider_id", txn.ProviderTransactionID,
		"amount", txn.Amount.String(),
		"notified", notification != nil)
	return notification, nil
}

// fold adds undo back into the bucket spend and subtracts redo, then moves the
// balances the opposite way. The two steps stay separate so a correction is
// recorded as a reversal followed by a fresh charge.
func (u *Updater) fold(ctx context.Context, repo service.Repository, txn *model.Transaction, undo, redo decimal.Decimal) (*model.Notification, error) {
	var notification *model.Notification
	if txn.CategoryID != nil {
		bucket, err := u.bucketFor(ctx, repo, txn.UserID, *txn.CategoryID)
		if err != nil {
			return nil, err
		}

		if bucket != nil {
			bucket.ManualSpending = bucket.ManualSpending.Add(undo)
			bucket.Spending = bucket.Spending.Add(undo)
			bucket.ManualSpending = bucket.ManualSpending.Sub(redo)
			bucket.Spending = bucket.Spending.Sub(redo)

			if u.emitter != nil {
				notification = u.emitter.Evaluate(bucket)
			}

			if err := repo.UpdateBucket(ctx, bucket); err != nil {
				return nil, err
			}
		}
	}

	user, err := repo.GetUser(ctx, txn.UserID)
	if err != nil {
		return nil, err
	}
	balance := user.Balance.Sub(undo).Add(redo)
	manualBalance := user.ManualBalance.Sub(undo).Add(redo)

	if err := repo.UpdateUserBalances(ctx, txn.UserID, balance, manualBalance); err != nil {
		return nil, err
	}

	if notification != nil {
		if err := repo.CreateNotification(ctx, notification); err != nil {
			return nil, err
		}
	}
	return notification, nil
}

// bucketFor finds the bucket linked to the leaf's top-level group, or nil.
func (u *Updater) bucketFor(ctx context.Context, repo service.Repository, userID, categoryID int64) (*model.BudgetBucket, error) {
	leaf, err := repo.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, fmt.Errorf("%w: category %d", common.ErrNotFound, categoryID)
	}

	groupID := leaf.ID
	if leaf.ParentID != nil {
		groupID = *leaf.ParentID
	}

	bucket, err := repo.GetBucketForCategory(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		u.logger.Debug("no bucket for category group",
			"user_id", userID,
			"category_id", groupID)
	}
	return bucket, nil
}
