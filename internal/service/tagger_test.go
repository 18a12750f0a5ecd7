package service

import (
	"context"
	"testing"

	"order-ledger/internal/models"
	"order-ledger/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTagger(t *testing.T) (*Tagger, int64, int64) {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()

	p := &models.Product{Name: "keyboard", Price: decimal.RequireFromString("19.99"), StockQuantity: 1}
	require.NoError(t, st.CreateProduct(ctx, p))

	tagger := NewTagger(st)
	category, err := tagger.CreateCategory(ctx, "peripherals")
	require.NoError(t, err)

	return tagger, p.ID, category.ID
}

func TestCreateCategoryRejectsDuplicateName(t *testing.T) {
	tagger, _, _ := newTestTagger(t)

	_, err := tagger.CreateCategory(context.Background(), "peripherals")
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestTagCompositeUniqueness(t *testing.T) {
	tagger, productID, categoryID := newTestTagger(t)
	ctx := context.Background()

	require.NoError(t, tagger.Tag(ctx, productID, categoryID))

	err := tagger.Tag(ctx, productID, categoryID)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	categories, err := tagger.Categories(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, []int64{categoryID}, categories)
}

func TestTagUnknownReferences(t *testing.T) {
	tagger, productID, categoryID := newTestTagger(t)
	ctx := context.Background()

	assert.ErrorIs(t, tagger.Tag(ctx, 999, categoryID), ErrNotFound)
	assert.ErrorIs(t, tagger.Tag(ctx, productID, 999), ErrNotFound)
}

func TestUntag(t *testing.T) {
	tagger, productID, categoryID := newTestTagger(t)
	ctx := context.Background()

	require.NoError(t, tagger.Tag(ctx, productID, categoryID))
	require.NoError(t, tagger.Untag(ctx, productID, categoryID))

	categories, err := tagger.Categories(ctx, productID)
	require.NoError(t, err)
	assert.Empty(t, categories)

	// A product may re-enter a category after removal.
	assert.NoError(t, tagger.Tag(ctx, productID, categoryID))

	assert.ErrorIs(t, tagger.Untag(ctx, 999, categoryID), ErrNotFound)
}
