// Package service defines the interfaces shared by the application's components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/finwiz/internal/model"
	"github.com/shopspring/decimal"
)

// TransactionSumFilter selects the transactions aggregated by SumTransactions.
// Zero-valued fields do not filter; soft-deleted rows are always excluded.
type TransactionSumFilter struct {
	Start       time.Time
	End         time.Time
	Type        model.TransactionType
	CategoryIDs []int64
	UserID      int64
}

// TaxonomyRepository reads and maintains the category tree.
type TaxonomyRepository interface {
	CreateCategory(ctx context.Context, name string, parentID *int64, groupType model.CategoryGroupType) (*model.CategoryNode, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.CategoryNode, error)
	GetCategoryByName(ctx context.Context, name string) (*model.CategoryNode, error)
	GetChildCategories(ctx context.Context, parentID int64) ([]model.CategoryNode, error)
	GetTopLevelCategories(ctx context.Context) ([]model.CategoryNode, error)
}

// AccountRepository mirrors the provider accounts a user has linked.
type AccountRepository interface {
	UpsertAccount(ctx context.Context, account *model.Account) error
	GetAccountByExternalID(ctx context.Context, userID int64, externalID string) (*model.Account, error)
}

// TransactionRepository is the durable, idempotent transaction store.
type TransactionRepository interface {
	// UpsertTransaction inserts or fully replaces the transaction identified by its natural key.
	// It returns the stored record, the amount held before an update (invalid on insert)
	// and whether the record was newly created.
	UpsertTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, decimal.NullDecimal, bool, error)
	GetTransaction(ctx context.Context, key model.TransactionKey) (*model.Transaction, error)
	// SoftDeleteByProviderID marks every live record with the provider id deleted and
	// returns those records as they were before the delete.
	SoftDeleteByProviderID(ctx context.Context, userID int64, providerID string) ([]model.Transaction, error)
	SumTransactions(ctx context.Context, filter TransactionSumFilter) (decimal.Decimal, error)
}

// BudgetRepository stores budget buckets and their forward projections.
type BudgetRepository interface {
	CreateBucket(ctx context.Context, bucket *model.BudgetBucket) error
	GetBucket(ctx context.Context, id int64) (*model.BudgetBucket, error)
	GetBucketForCategory(ctx context.Context, userID, categoryID int64) (*model.BudgetBucket, error)
	ListBuckets(ctx context.Context, userID int64) ([]model.BudgetBucket, error)
	UpdateBucket(ctx context.Context, bucket *model.BudgetBucket) error
	UpsertProjection(ctx context.Context, projection *model.ProjectedCategoryBudget) error
	ListProjections(ctx context.Context, userID int64) ([]model.ProjectedCategoryBudget, error)
}

// NotificationRepository appends and reads user notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *model.Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID int64, id string) error
}

// UserRepository reads users and writes their aggregate fields.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	UpdateUserBalances(ctx context.Context, userID int64, balance, manualBalance decimal.Decimal) error
	UpdateUserProfile(ctx context.Context, userID int64, update model.ProfileUpdate) error
	SetSyncCursor(ctx context.Context, userID int64, cursor string) error
}

// Repository groups every data operation. It is satisfied both by the storage
// itself and by an open database transaction.
type Repository interface {
	TaxonomyRepository
	AccountRepository
	TransactionRepository
	BudgetRepository
	NotificationRepository
	UserRepository
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Repository

	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Repository

	Commit() error
	Rollback() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
