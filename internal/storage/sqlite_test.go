package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err, "failed to create storage")

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// createTestUser inserts a user and returns it.
func createTestUser(t *testing.T, store *SQLiteStorage, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, Name: "Test User"}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

// createTestAccount links an account for the user.
func createTestAccount(t *testing.T, store *SQLiteStorage, userID int64, externalID, accountType, subtype string) *model.Account {
	t.Helper()
	account := &model.Account{
		UserID:     userID,
		ExternalID: externalID,
		Name:       externalID,
		Type:       accountType,
		Subtype:    subtype,
	}
	require.NoError(t, store.UpsertAccount(context.Background(), account))
	return account
}

// createTestGroup creates a top-level group with the given leaves and returns the leaf ids in order.
func createTestGroup(t *testing.T, store *SQLiteStorage, name string, groupType model.CategoryGroupType, leaves ...string) (*model.CategoryNode, []int64) {
	t.Helper()
	ctx := context.Background()

	group, err := store.CreateCategory(ctx, name, nil, groupType)
	require.NoError(t, err)

	ids := make([]int64, 0, len(leaves))
	for _, leaf := range leaves {
		node, err := store.CreateCategory(ctx, leaf, &group.ID, "")
		require.NoError(t, err)
		ids = append(ids, node.ID)
	}
	return group, ids
}

func TestNewSQLiteStorage(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "file in new directory",
			path: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "nested", "dir", "finwiz.db")
			},
		},
		{
			name: "empty path",
			path: func(_ *testing.T) string {
				return "  "
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewSQLiteStorage(tt.path(t))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}

func TestSQLiteStorage_Transactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "tx@example.com")

	t.Run("rollback discards writes", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.UpdateUserBalances(ctx, user.ID, decimal.NewFromInt(-10), decimal.NewFromInt(10)))
		require.NoError(t, tx.Rollback())

		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.IsZero(), "balance = %s", got.Balance)
	})

	t.Run("commit keeps writes", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.UpdateUserBalances(ctx, user.ID, decimal.NewFromInt(-10), decimal.NewFromInt(10)))
		require.NoError(t, tx.Commit())

		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(-10)), "balance = %s", got.Balance)
		assert.True(t, got.ManualBalance.Equal(decimal.NewFromInt(10)), "manual balance = %s", got.ManualBalance)
	})
}

func TestSQLiteStorage_Categories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	group, leafIDs := createTestGroup(t, store, "Loans", model.CategoryTypeNeed, "Auto Loan", "Student Loan", "Mortgage")

	t.Run("create is idempotent by name", func(t *testing.T) {
		again, err := store.CreateCategory(ctx, "Loans", nil, model.CategoryTypeNeed)
		require.NoError(t, err)
		assert.Equal(t, group.ID, again.ID)
	})

	t.Run("children keep insertion order", func(t *testing.T) {
		children, err := store.GetChildCategories(ctx, group.ID)
		require.NoError(t, err)
		require.Len(t, children, 3)
		assert.Equal(t, "Auto Loan", children[0].Name)
		assert.Equal(t, leafIDs[0], children[0].ID)
		for _, child := range children {
			assert.True(t, child.IsLeaf())
			assert.Empty(t, child.Type, "leaves carry no group type")
		}
	})

	t.Run("leaves cannot have children", func(t *testing.T) {
		leafID := leafIDs[0]
		_, err := store.CreateCategory(ctx, "Too Deep", &leafID, "")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("unknown parent", func(t *testing.T) {
		missing := int64(9999)
		_, err := store.CreateCategory(ctx, "Orphan", &missing, "")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("lookups", func(t *testing.T) {
		byName, err := store.GetCategoryByName(ctx, "Mortgage")
		require.NoError(t, err)
		require.NotNil(t, byName)
		require.NotNil(t, byName.ParentID)
		assert.Equal(t, group.ID, *byName.ParentID)

		missing, err := store.GetCategoryByName(ctx, "Nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		byID, err := store.GetCategoryByID(ctx, group.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, model.CategoryTypeNeed, byID.Type)
		assert.True(t, byID.IsTopLevel())

		top, err := store.GetTopLevelCategories(ctx)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, "Loans", top[0].Name)
	})
}

func TestSQLiteStorage_Accounts(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "acct@example.com")
	first := createTestAccount(t, store, user.ID, "acc-1", "depository", "checking")

	refreshed := &model.Account{UserID: user.ID, ExternalID: "acc-1", Name: "Renamed", Type: "loan", Subtype: "student"}
	require.NoError(t, store.UpsertAccount(ctx, refreshed))
	assert.Equal(t, first.ID, refreshed.ID, "upsert keeps the same row")

	got, err := store.GetAccountByExternalID(ctx, user.ID, "acc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "loan", got.Type)
	assert.Equal(t, "student", got.Subtype)

	other, err := store.GetAccountByExternalID(ctx, user.ID+1, "acc-1")
	require.NoError(t, err)
	assert.Nil(t, other, "accounts are scoped to their user")

	err = store.UpsertAccount(ctx, &model.Account{UserID: user.ID})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSQLiteStorage_Users(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	alice := createTestUser(t, store, "alice@example.com")
	bob := createTestUser(t, store, "bob@example.com")

	t.Run("list ids", func(t *testing.T) {
		ids, err := store.ListUserIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{alice.ID, bob.ID}, ids)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := store.CreateUser(ctx, &model.User{Email: "alice@example.com"})
		assert.ErrorIs(t, err, common.ErrPersistence)
	})

	t.Run("profile update only touches set fields", func(t *testing.T) {
		phone := "555-0100"
		token := "access-sandbox-123"
		require.NoError(t, store.UpdateUserProfile(ctx, alice.ID, model.ProfileUpdate{
			PhoneNumber: &phone,
			AccessToken: &token,
		}))

		got, err := store.GetUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Test User", got.Name)
		assert.Equal(t, phone, got.PhoneNumber)
		assert.Equal(t, token, got.AccessToken)
		assert.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("empty profile update", func(t *testing.T) {
		err := store.UpdateUserProfile(ctx, alice.ID, model.ProfileUpdate{})
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("cursor", func(t *testing.T) {
		require.NoError(t, store.SetSyncCursor(ctx, bob.ID, "cursor-42"))
		got, err := store.GetUser(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "cursor-42", got.SyncCursor)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := store.GetUser(ctx, 9999)
		assert.ErrorIs(t, err, common.ErrNotFound)

		err = store.SetSyncCursor(ctx, 9999, "x")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}
