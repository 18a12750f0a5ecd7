package store

import (
	"context"
	"testing"

	"order-ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAssignsMonotonicIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var last int64
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		c := &models.Customer{FirstName: "C", LastName: "U", Email: email, PasswordHash: "x"}
		require.NoError(t, m.CreateCustomer(ctx, c))
		assert.Greater(t, c.ID, last, "id %d must exceed the previous one", i)
		last = c.ID
	}

	// Deleting the latest customer must not cause id reuse.
	require.NoError(t, m.DeleteCustomer(ctx, last))
	c := &models.Customer{FirstName: "C", LastName: "U", Email: "d@example.com", PasswordHash: "x"}
	require.NoError(t, m.CreateCustomer(ctx, c))
	assert.Greater(t, c.ID, last)
}

func TestMemoryDecrementStock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p := &models.Product{Name: "keyboard", Price: decimal.RequireFromString("19.99"), StockQuantity: 5}
	require.NoError(t, m.CreateProduct(ctx, p))

	require.NoError(t, m.DecrementStock(ctx, p.ID, 3))

	err := m.DecrementStock(ctx, p.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got, err := m.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.StockQuantity, "failed decrement must not mutate stock")

	require.NoError(t, m.IncrementStock(ctx, p.ID, 3))
	got, err = m.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)

	assert.ErrorIs(t, m.DecrementStock(ctx, 999, 1), ErrNotFound)
	assert.ErrorIs(t, m.IncrementStock(ctx, 999, 1), ErrNotFound)
}

func TestMemoryCreateOrderWithItemsIsAtomicallyVisible(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	o := &models.Order{CustomerID: 1, TotalAmount: decimal.RequireFromString("10.00"), Status: models.OrderStatusPending}
	items := []models.OrderItem{
		{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("4.00")},
		{ProductID: 2, Quantity: 2, UnitPrice: decimal.RequireFromString("3.00")},
	}
	require.NoError(t, m.CreateOrderWithItems(ctx, o, items))
	require.NotZero(t, o.ID)
	assert.False(t, o.CreatedAt.IsZero())

	got, err := m.GetOrderItemsByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, it := range got {
		assert.Equal(t, o.ID, it.OrderID)
		assert.NotZero(t, it.ID)
	}
}

func TestMemoryTransitionOrderStatusCAS(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	o := &models.Order{CustomerID: 1, TotalAmount: decimal.Zero, Status: models.OrderStatusPending}
	require.NoError(t, m.CreateOrderWithItems(ctx, o, nil))

	require.NoError(t, m.TransitionOrderStatus(ctx, o.ID, models.OrderStatusPending, models.OrderStatusShipped))

	// The expected status no longer matches.
	err := m.TransitionOrderStatus(ctx, o.ID, models.OrderStatusPending, models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrConflict)

	err = m.TransitionOrderStatus(ctx, 999, models.OrderStatusPending, models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := m.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, got.Status)
}

func TestMemoryUniqueIndexes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	c := &models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, m.CreateCustomer(ctx, c))
	dup := &models.Customer{FirstName: "Grace", LastName: "Hopper", Email: "ada@example.com", PasswordHash: "y"}
	assert.ErrorIs(t, m.CreateCustomer(ctx, dup), ErrDuplicate)

	cat := &models.Category{Name: "peripherals"}
	require.NoError(t, m.CreateCategory(ctx, cat))
	dupCat := &models.Category{Name: "peripherals"}
	assert.ErrorIs(t, m.CreateCategory(ctx, dupCat), ErrDuplicate)
}
