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

func TestAuditCleanStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	customerID := f.seedCustomer(t, "ada@example.com")
	productID := f.seedProduct(t, "keyboard", "19.99", 10)

	_, err := f.ledger.PlaceOrder(ctx, customerID, []LineItem{{ProductID: productID, Quantity: 2}})
	require.NoError(t, err)

	violations, err := f.checker.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestReferentialAuditFindsDanglingReferences(t *testing.T) {
	st := store.NewMemory()
	checker := NewChecker(st)
	ctx := context.Background()

	// The atomic write path does not validate references; that is the
	// ledger's job. Bypassing the ledger plants dangling rows.
	order := &models.Order{
		CustomerID:  999,
		TotalAmount: decimal.RequireFromString("5.00"),
		Status:      models.OrderStatusPending,
	}
	items := []models.OrderItem{
		{ProductID: 888, Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
	}
	require.NoError(t, st.CreateOrderWithItems(ctx, order, items))

	violations, err := checker.ReferentialAudit(ctx)
	require.NoError(t, err)

	invariants := make([]string, 0, len(violations))
	for _, v := range violations {
		invariants = append(invariants, v.Invariant)
	}
	assert.Contains(t, invariants, InvariantOrderCustomerRef)
	assert.Contains(t, invariants, InvariantOrderItemProductRef)
}

func TestTotalAuditFindsMismatchedTotal(t *testing.T) {
	st := store.NewMemory()
	checker := NewChecker(st)
	ctx := context.Background()

	customer := &models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, st.CreateCustomer(ctx, customer))
	product := &models.Product{Name: "keyboard", Price: decimal.RequireFromString("19.99"), StockQuantity: 10}
	require.NoError(t, st.CreateProduct(ctx, product))

	// Stored total deliberately disagrees with the item sum.
	order := &models.Order{
		CustomerID:  customer.ID,
		TotalAmount: decimal.RequireFromString("1.00"),
		Status:      models.OrderStatusPending,
	}
	items := []models.OrderItem{
		{ProductID: product.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
	}
	require.NoError(t, st.CreateOrderWithItems(ctx, order, items))

	violations, err := checker.TotalAudit(ctx)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, InvariantOrderTotal, violations[0].Invariant)
	assert.Equal(t, order.ID, violations[0].EntityID)
}

func TestStockAuditCleanAfterContention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	customerID := f.seedCustomer(t, "ada@example.com")
	productID := f.seedProduct(t, "keyboard", "19.99", 3)

	for i := 0; i < 5; i++ {
		_, _ = f.ledger.PlaceOrder(ctx, customerID, []LineItem{{ProductID: productID, Quantity: 2}})
	}

	violations, err := f.checker.StockAudit(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckOrderGuard(t *testing.T) {
	checker := NewChecker(store.NewMemory())

	order := &models.Order{TotalAmount: decimal.RequireFromString("39.98")}
	items := []models.OrderItem{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
	}
	assert.NoError(t, checker.CheckOrder(order, items))

	bad := &models.Order{TotalAmount: decimal.RequireFromString("39.99")}
	assert.Error(t, checker.CheckOrder(bad, items))

	zeroQty := []models.OrderItem{
		{ProductID: 1, Quantity: 0, UnitPrice: decimal.RequireFromString("19.99")},
	}
	badQty := &models.Order{TotalAmount: decimal.Zero}
	assert.ErrorIs(t, checker.CheckOrder(badQty, zeroQty), ErrInvalidQuantity)
}
