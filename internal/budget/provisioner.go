package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/shopspring/decimal"
)

// Provisioner onboards users and maintains their profile.
type Provisioner struct {
	store  service.Storage
	locks  *common.UserLocks
	now    func() time.Time
	logger *slog.Logger
}

// NewProvisioner creates a provisioner.
func NewProvisioner(store service.Storage, locks *common.UserLocks) *Provisioner {
	if locks == nil {
		locks = common.NewUserLocks()
	}
	return &Provisioner{
		store:  store,
		locks:  locks,
		now:    time.Now,
		logger: slog.Default().With("component", "provisioner"),
	}
}

// RegisterUser creates the user with one empty bucket per top-level category and
// zeroed projections for the next two months. Nothing is stored if any step fails.
func (p *Provisioner) RegisterUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return common.Validationf("user is required")
	}

	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	groups, err := tx.GetTopLevelCategories(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return common.Validationf("no categories found - run seed first")
	}

	if err := tx.CreateUser(ctx, user); err != nil {
		return err
	}

	now := p.now().UTC()
	for _, group := range groups {
		bucket := &model.BudgetBucket{
			UserID:       user.ID,
			CategoryName: group.Name,
			CategoryIDs:  []int64{group.ID},
			Month:        now.Month().String(),
		}
		if err := tx.CreateBucket(ctx, bucket); err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", group.Name, err)
		}

		for i := 1; i <= projectedMonths; i++ {
			err := tx.UpsertProjection(ctx, &model.ProjectedCategoryBudget{
				UserID:       user.ID,
				CategoryID:   group.ID,
				CategoryName: group.Name,
				Month:        MonthName(now, i),
				Limitation:   decimal.Zero,
				MaxLimit:     decimal.Zero,
			})
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit registration: %w", common.ErrPersistence, err)
	}

	p.logger.Info("Registered user", "user_id", user.ID, "buckets", len(groups))
	return nil
}

// UpdateProfile applies the allow-listed profile fields under the user's lock.
func (p *Provisioner) UpdateProfile(ctx context.Context, userID int64, update model.ProfileUpdate) error {
	unlock := p.locks.Lock(userID)
	defer unlock()

	if err := p.store.UpdateUserProfile(ctx, userID, update); err != nil {
		return err
	}
	p.logger.Debug("Updated profile", "user_id", userID)
	return nil
}
