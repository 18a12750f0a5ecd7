package service

import (
	"context"
	"testing"

	"order-ledger/internal/models"
	"order-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	directory := NewDirectory(store.NewMemory())
	ctx := context.Background()

	first := &models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, directory.Register(ctx, first))
	assert.NotZero(t, first.ID)

	second := &models.Customer{FirstName: "Grace", LastName: "Hopper", Email: "ada@example.com", PasswordHash: "y"}
	err := directory.Register(ctx, second)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestDirectoryLookup(t *testing.T) {
	directory := NewDirectory(store.NewMemory())
	ctx := context.Background()

	c := &models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, directory.Register(ctx, c))

	got, err := directory.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	exists, err := directory.Exists(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = directory.Exists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = directory.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectoryUpdateContact(t *testing.T) {
	directory := NewDirectory(store.NewMemory())
	ctx := context.Background()

	c := &models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, directory.Register(ctx, c))

	address := "12 Crescent Rd"
	phone := "555-0100"
	require.NoError(t, directory.UpdateContact(ctx, c.ID, &address, &phone))

	got, err := directory.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Address)
	assert.Equal(t, address, *got.Address)
	require.NotNil(t, got.Phone)
	assert.Equal(t, phone, *got.Phone)
}

func TestDeleteCustomerBlockedWhileReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	customerID := f.seedCustomer(t, "ada@example.com")
	productID := f.seedProduct(t, "keyboard", "19.99", 10)

	_, err := f.ledger.PlaceOrder(ctx, customerID, []LineItem{{ProductID: productID, Quantity: 1}})
	require.NoError(t, err)

	err = f.directory.Delete(ctx, customerID)
	assert.ErrorIs(t, err, store.ErrReferenced)

	// Still present.
	exists, err := f.directory.Exists(ctx, customerID)
	require.NoError(t, err)
	assert.True(t, exists)

	// A customer with no orders can be deleted, freeing the email.
	other := f.seedCustomer(t, "grace@example.com")
	require.NoError(t, f.directory.Delete(ctx, other))
	again := &models.Customer{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", PasswordHash: "y"}
	assert.NoError(t, f.directory.Register(ctx, again))
}
