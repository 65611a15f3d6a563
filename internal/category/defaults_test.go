package category

import (
	"context"
	"testing"

	"github.com/Veraticus/finwiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	repo := newFakeTaxonomy()
	ctx := context.Background()

	count, err := Seed(ctx, repo, DefaultTaxonomy)
	require.NoError(t, err)

	want := 0
	for _, g := range DefaultTaxonomy {
		want += 1 + len(g.Leaves)
	}
	assert.Equal(t, want, count)
	assert.Len(t, repo.byName, want, "every name in the default tree is unique")

	again, err := Seed(ctx, repo, DefaultTaxonomy)
	require.NoError(t, err)
	assert.Equal(t, count, again)
	assert.Len(t, repo.byName, want, "reseeding creates nothing new")

	loans := repo.byName["Loans"]
	require.NotNil(t, loans)
	assert.Equal(t, model.CategoryTypeNeed, loans.Type)
	assert.Equal(t, "Auto Loan", repo.children[loans.ID][0].Name)
}

func TestSeed_InvalidGroupType(t *testing.T) {
	_, err := Seed(context.Background(), newFakeTaxonomy(), []Group{{Name: "Odd", Type: "maybe"}})
	assert.Error(t, err)
}

func TestDefaultTaxonomy_CoversOverrideSubtypes(t *testing.T) {
	leaves := make(map[string]bool)
	for _, g := range DefaultTaxonomy {
		for _, leaf := range g.Leaves {
			leaves[leaf] = true
		}
	}
	for subtype := range overrideSubtypes {
		assert.True(t, leaves[subtype], "override subtype %q has no leaf", subtype)
	}
}
