// Package testutil provides test helpers shared by finwiz packages: an isolated
// in-memory database with a seeded taxonomy and small fixture builders on top of it.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/finwiz/internal/category"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/Veraticus/finwiz/internal/storage"
	"github.com/shopspring/decimal"
)

// Groups used by tests that do not need the full default taxonomy.
var (
	GroupFood = category.Group{
		Name:   "Food and Drink",
		Type:   model.CategoryTypeWant,
		Leaves: []string{"Restaurants", "Coffee Shop"},
	}
	GroupTravel = category.Group{
		Name:   "Travel",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Airlines and Aviation Services", "Taxi"},
	}
	GroupShops = category.Group{
		Name:   "Shops",
		Type:   model.CategoryTypeWant,
		Leaves: []string{"Clothing and Accessories"},
	}
	GroupIncome = category.Group{
		Name:   "Transfer",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Payroll", "Deposit"},
	}
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database seeded with the given groups.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.GroupFood, testutil.GroupTravel)
func SetupTestDB(t *testing.T, groups ...category.Group) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Groups: groups})
}

// SetupTestDBWithDefaults creates a test database seeded with category.DefaultTaxonomy.
func SetupTestDBWithDefaults(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Groups: category.DefaultTaxonomy})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Groups         []category.Group
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	// Run migrations unless skipped
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	if len(opts.Groups) > 0 {
		if _, err := category.Seed(ctx, store, opts.Groups); err != nil {
			t.Fatalf("failed to seed categories: %v", err)
		}
	}

	// Run custom setup
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustGetCategory returns the category with the given name or fails the test.
func (db *TestDB) MustGetCategory(name string) *model.CategoryNode {
	db.t.Helper()
	node, err := db.Storage.GetCategoryByName(context.Background(), name)
	if err != nil {
		db.t.Fatalf("failed to look up category %q: %v", name, err)
	}
	if node == nil {
		db.t.Fatalf("category %q not found in test data", name)
	}
	return node
}

// CreateUser inserts a user with zero balances.
func (db *TestDB) CreateUser(email string) *model.User {
	db.t.Helper()
	user := &model.User{Email: email, Name: email}
	if err := db.Storage.CreateUser(context.Background(), user); err != nil {
		db.t.Fatalf("failed to create user %q: %v", email, err)
	}
	return user
}

// CreateAccount links a provider account to the user.
func (db *TestDB) CreateAccount(userID int64, externalID, accountType, subtype string) *model.Account {
	db.t.Helper()
	account := &model.Account{
		UserID:     userID,
		ExternalID: externalID,
		Name:       externalID,
		Type:       accountType,
		Subtype:    subtype,
	}
	if err := db.Storage.UpsertAccount(context.Background(), account); err != nil {
		db.t.Fatalf("failed to create account %q: %v", externalID, err)
	}
	return account
}

// CreateBucket creates a bucket for the named top-level group with the given limitation.
func (db *TestDB) CreateBucket(userID int64, groupName string, limitation decimal.Decimal) *model.BudgetBucket {
	db.t.Helper()
	group := db.MustGetCategory(groupName)
	bucket := &model.BudgetBucket{
		UserID:       userID,
		CategoryName: group.Name,
		CategoryIDs:  []int64{group.ID},
		Limitation:   limitation,
	}
	if err := db.Storage.CreateBucket(context.Background(), bucket); err != nil {
		db.t.Fatalf("failed to create bucket %q: %v", groupName, err)
	}
	return bucket
}

// MustGetBucket reloads a bucket or fails the test.
func (db *TestDB) MustGetBucket(id int64) *model.BudgetBucket {
	db.t.Helper()
	bucket, err := db.Storage.GetBucket(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load bucket %d: %v", id, err)
	}
	return bucket
}

// MustGetUser reloads a user or fails the test.
func (db *TestDB) MustGetUser(id int64) *model.User {
	db.t.Helper()
	user, err := db.Storage.GetUser(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load user %d: %v", id, err)
	}
	return user
}

// WithTransaction executes the given function within a database transaction.
// The transaction is automatically rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
