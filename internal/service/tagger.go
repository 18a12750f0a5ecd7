package service

import (
	"context"
	"errors"
	"fmt"

	"order-ledger/internal/models"
	"order-ledger/internal/store"
)

// Tagger manages the product-category association. Category names are
// globally unique and a product carries each category at most once.
type Tagger struct {
	store store.Store
}

// NewTagger creates a tagger over the given store.
func NewTagger(st store.Store) *Tagger {
	return &Tagger{store: st}
}

// CreateCategory creates a category with a globally unique name.
func (t *Tagger) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	c := &models.Category{Name: name}
	if err := t.store.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("category %q already exists: %w", name, err)
		}
		return nil, err
	}
	return c, nil
}

// Tag adds a product to a category. Tagging the same pair twice fails
// with the store's duplicate error.
func (t *Tagger) Tag(ctx context.Context, productID, categoryID int64) error {
	err := t.store.TagProduct(ctx, productID, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("tag (%d, %d): %w", productID, categoryID, ErrNotFound)
	}
	return err
}

// Untag removes a product from a category.
func (t *Tagger) Untag(ctx context.Context, productID, categoryID int64) error {
	err := t.store.UntagProduct(ctx, productID, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("tag (%d, %d): %w", productID, categoryID, ErrNotFound)
	}
	return err
}

// Categories lists the ids of the categories a product belongs to.
func (t *Tagger) Categories(ctx context.Context, productID int64) ([]int64, error) {
	tags, err := t.store.ListProductCategories(ctx)
	if err != nil {
		return nil, err
	}

	var out []int64
	for _, tag := range tags {
		if tag.ProductID == productID {
			out = append(out, tag.CategoryID)
		}
	}
	return out, nil
}
