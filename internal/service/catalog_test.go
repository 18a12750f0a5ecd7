package service

import (
	"context"
	"sync"
	"testing"

	"order-ledger/internal/models"
	"order-ledger/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) (*Catalog, *store.Memory, int64) {
	t.Helper()
	st := store.NewMemory()
	p := &models.Product{Name: "keyboard", Price: decimal.RequireFromString("19.99"), StockQuantity: 5}
	require.NoError(t, st.CreateProduct(context.Background(), p))
	return NewCatalog(st, nil), st, p.ID
}

func TestReserveDecrementsAndCapturesPrice(t *testing.T) {
	catalog, st, productID := newTestCatalog(t)
	ctx := context.Background()

	res, err := catalog.Reserve(ctx, productID, 3)
	require.NoError(t, err)
	assert.Equal(t, productID, res.ProductID)
	assert.Equal(t, 3, res.Quantity)
	assert.True(t, res.UnitPrice.Equal(decimal.RequireFromString("19.99")))

	p, err := st.GetProductByID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.StockQuantity)
}

func TestReserveFailuresAreSideEffectFree(t *testing.T) {
	catalog, st, productID := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.Reserve(ctx, productID, 6)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = catalog.Reserve(ctx, 999, 1)
	assert.ErrorIs(t, err, ErrUnknownProduct)

	p, err := st.GetProductByID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestReleaseIsIdempotent(t *testing.T) {
	catalog, st, productID := newTestCatalog(t)
	ctx := context.Background()

	res, err := catalog.Reserve(ctx, productID, 4)
	require.NoError(t, err)

	require.NoError(t, catalog.Release(ctx, res))
	require.NoError(t, catalog.Release(ctx, res))
	require.NoError(t, catalog.Release(ctx, res))

	p, err := st.GetProductByID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity, "release must restore the quantity exactly once")
}

func TestConcurrentReleaseRestoresOnce(t *testing.T) {
	catalog, st, productID := newTestCatalog(t)
	ctx := context.Background()

	res, err := catalog.Reserve(ctx, productID, 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, catalog.Release(ctx, res))
		}()
	}
	wg.Wait()

	p, err := st.GetProductByID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestConcurrentReservesSerializePerProduct(t *testing.T) {
	catalog, st, productID := newTestCatalog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := catalog.Reserve(ctx, productID, 1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted)

	p, err := st.GetProductByID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockQuantity)
}
