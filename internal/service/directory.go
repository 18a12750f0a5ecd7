package service

import (
	"context"
	"errors"
	"fmt"

	"order-ledger/internal/models"
	"order-ledger/internal/store"
	"order-ledger/internal/util"

	"go.uber.org/zap"
)

// Directory manages customer records. Email uniqueness is enforced by the
// store's index; deletion is blocked while orders reference the customer.
type Directory struct {
	store  store.Store
	logger *zap.Logger
}

// NewDirectory creates a customer directory over the given store.
func NewDirectory(st store.Store) *Directory {
	return &Directory{store: st, logger: util.GetLogger()}
}

// Register creates a new customer. The email must be globally unique.
func (d *Directory) Register(ctx context.Context, c *models.Customer) error {
	if err := d.store.CreateCustomer(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("email %q already registered: %w", c.Email, err)
		}
		return err
	}

	d.logger.Info("Customer registered",
		zap.Int64("customer_id", c.ID),
		zap.String("email", c.Email))
	return nil
}

// Get retrieves a customer by id.
func (d *Directory) Get(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := d.store.GetCustomerByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return c, err
}

// Exists reports whether a customer with the given id is registered.
func (d *Directory) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := d.store.GetCustomerByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateContact changes the mutable contact fields; identity fields stay
// fixed.
func (d *Directory) UpdateContact(ctx context.Context, id int64, address, phone *string) error {
	err := d.store.UpdateCustomerContact(ctx, id, address, phone)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return err
}

// Delete removes a customer. It fails while any order references the
// customer.
func (d *Directory) Delete(ctx context.Context, id int64) error {
	err := d.store.DeleteCustomer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return err
}
