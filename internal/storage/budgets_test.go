package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_Buckets(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "bucket@example.com")
	_, food := createTestGroup(t, store, "Food and Drink", model.CategoryTypeWant, "Restaurants", "Coffee Shop")
	_, travel := createTestGroup(t, store, "Travel", model.CategoryTypeNeed, "Airlines")

	foodBucket := &model.BudgetBucket{
		UserID:       user.ID,
		CategoryName: "Food and Drink",
		CategoryIDs:  food,
		Limitation:   decimal.NewFromInt(100),
		MaxLimit:     decimal.NewFromInt(145),
	}
	require.NoError(t, store.CreateBucket(ctx, foodBucket))
	travelBucket := &model.BudgetBucket{UserID: user.ID, CategoryName: "Travel", CategoryIDs: travel, Fixed: true}
	require.NoError(t, store.CreateBucket(ctx, travelBucket))

	t.Run("lookup by leaf", func(t *testing.T) {
		got, err := store.GetBucketForCategory(ctx, user.ID, food[1])
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, foodBucket.ID, got.ID)
		assert.ElementsMatch(t, food, got.CategoryIDs)
		assert.True(t, got.Limitation.Equal(decimal.NewFromInt(100)))

		none, err := store.GetBucketForCategory(ctx, user.ID+1, food[1])
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("update", func(t *testing.T) {
		foodBucket.Spending = decimal.NewFromInt(-60)
		foodBucket.ManualSpending = decimal.NewFromInt(60)
		foodBucket.LastNotifiedBand = model.BandFifty
		foodBucket.Month = "March"
		require.NoError(t, store.UpdateBucket(ctx, foodBucket))

		got, err := store.GetBucket(ctx, foodBucket.ID)
		require.NoError(t, err)
		assert.True(t, got.Spending.Equal(decimal.NewFromInt(-60)))
		assert.True(t, got.ManualSpending.Equal(decimal.NewFromInt(60)))
		assert.Equal(t, model.BandFifty, got.LastNotifiedBand)
		assert.Equal(t, "March", got.Month)
	})

	t.Run("list in creation order", func(t *testing.T) {
		buckets, err := store.ListBuckets(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, "Food and Drink", buckets[0].CategoryName)
		assert.Equal(t, "Travel", buckets[1].CategoryName)
		assert.True(t, buckets[1].Fixed)
		assert.Equal(t, travel, buckets[1].CategoryIDs)
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := store.GetBucket(ctx, 9999)
		assert.ErrorIs(t, err, common.ErrNotFound)

		err = store.UpdateBucket(ctx, &model.BudgetBucket{ID: 9999})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("invalid bucket", func(t *testing.T) {
		err := store.CreateBucket(ctx, &model.BudgetBucket{UserID: user.ID, CategoryName: "Empty"})
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.ErrorIs(t, err, ErrInvalidBucket)
	})
}

func TestSQLiteStorage_Projections(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "projection@example.com")
	group, _ := createTestGroup(t, store, "Shops", model.CategoryTypeWant, "Clothing")

	first := &model.ProjectedCategoryBudget{
		UserID:       user.ID,
		CategoryID:   group.ID,
		CategoryName: group.Name,
		Month:        "April",
		Limitation:   decimal.NewFromInt(10),
		MaxLimit:     decimal.NewFromFloat(14.5),
	}
	require.NoError(t, store.UpsertProjection(ctx, first))

	replacement := &model.ProjectedCategoryBudget{
		UserID:       user.ID,
		CategoryID:   group.ID,
		CategoryName: group.Name,
		Month:        "April",
		Limitation:   decimal.NewFromInt(20),
		MaxLimit:     decimal.NewFromInt(29),
	}
	require.NoError(t, store.UpsertProjection(ctx, replacement))
	assert.Equal(t, first.ID, replacement.ID, "same (category, month) is replaced in place")

	may := &model.ProjectedCategoryBudget{UserID: user.ID, CategoryID: group.ID, CategoryName: group.Name, Month: "May"}
	require.NoError(t, store.UpsertProjection(ctx, may))

	projections, err := store.ListProjections(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, projections, 2)
	assert.Equal(t, "April", projections[0].Month)
	assert.True(t, projections[0].Limitation.Equal(decimal.NewFromInt(20)))
	assert.True(t, projections[0].MaxLimit.Equal(decimal.NewFromInt(29)))
	assert.Equal(t, "May", projections[1].Month)
	assert.True(t, projections[1].Limitation.IsZero())

	err = store.UpsertProjection(ctx, &model.ProjectedCategoryBudget{UserID: user.ID, CategoryID: group.ID})
	assert.ErrorIs(t, err, common.ErrValidation)
}
