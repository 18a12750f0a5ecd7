package service

import (
	"context"
	"fmt"

	"order-ledger/internal/models"
	"order-ledger/internal/store"
	"order-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// Invariant identifiers reported by the checker.
const (
	InvariantOrderItemOrderRef   = "order_item.order_ref"
	InvariantOrderItemProductRef = "order_item.product_ref"
	InvariantOrderCustomerRef    = "order.customer_ref"
	InvariantTagProductRef       = "product_category.product_ref"
	InvariantTagCategoryRef      = "product_category.category_ref"
	InvariantOrderTotal          = "order.total_amount"
	InvariantStockNonNegative    = "product.stock_non_negative"
	InvariantUniqueEmail         = "customer.email_unique"
	InvariantUniqueCategoryName  = "category.name_unique"
	InvariantUniqueTagPair       = "product_category.pair_unique"
)

// Violation describes one broken invariant.
type Violation struct {
	Invariant string `json:"invariant"`
	Entity    string `json:"entity"`
	EntityID  int64  `json:"entity_id"`
	Detail    string `json:"detail"`
}

// Checker runs read-only invariant audits over the store. The ledger uses
// it as a pre-commit guard; tests and the audit worker use it for
// post-hoc verification.
type Checker struct {
	store store.Store
}

// NewChecker creates a checker over the given store.
func NewChecker(st store.Store) *Checker {
	return &Checker{store: st}
}

// ReferentialAudit verifies that every association row points at existing
// rows: order items at orders and products, orders at customers, tags at
// products and categories.
func (ch *Checker) ReferentialAudit(ctx context.Context) ([]Violation, error) {
	customers, err := ch.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	products, err := ch.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := ch.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := ch.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	items, err := ch.store.ListOrderItems(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := ch.store.ListProductCategories(ctx)
	if err != nil {
		return nil, err
	}

	customerIDs := make(map[int64]struct{}, len(customers))
	for _, c := range customers {
		customerIDs[c.ID] = struct{}{}
	}
	productIDs := make(map[int64]struct{}, len(products))
	for _, p := range products {
		productIDs[p.ID] = struct{}{}
	}
	categoryIDs := make(map[int64]struct{}, len(categories))
	for _, c := range categories {
		categoryIDs[c.ID] = struct{}{}
	}
	orderIDs := make(map[int64]struct{}, len(orders))
	for _, o := range orders {
		orderIDs[o.ID] = struct{}{}
	}

	var violations []Violation

	for _, o := range orders {
		if _, ok := customerIDs[o.CustomerID]; !ok {
			violations = append(violations, Violation{
				Invariant: InvariantOrderCustomerRef,
				Entity:    "order",
				EntityID:  o.ID,
				Detail:    fmt.Sprintf("customer %d does not exist", o.CustomerID),
			})
		}
	}

	for _, it := range items {
		if _, ok := orderIDs[it.OrderID]; !ok {
			violations = append(violations, Violation{
				Invariant: InvariantOrderItemOrderRef,
				Entity:    "order_item",
				EntityID:  it.ID,
				Detail:    fmt.Sprintf("order %d does not exist", it.OrderID),
			})
		}
		if _, ok := productIDs[it.ProductID]; !ok {
			violations = append(violations, Violation{
				Invariant: InvariantOrderItemProductRef,
				Entity:    "order_item",
				EntityID:  it.ID,
				Detail:    fmt.Sprintf("product %d does not exist", it.ProductID),
			})
		}
	}

	for _, tag := range tags {
		if _, ok := productIDs[tag.ProductID]; !ok {
			violations = append(violations, Violation{
				Invariant: InvariantTagProductRef,
				Entity:    "product_category",
				EntityID:  tag.ProductID,
				Detail:    fmt.Sprintf("product %d does not exist", tag.ProductID),
			})
		}
		if _, ok := categoryIDs[tag.CategoryID]; !ok {
			violations = append(violations, Violation{
				Invariant: InvariantTagCategoryRef,
				Entity:    "product_category",
				EntityID:  tag.CategoryID,
				Detail:    fmt.Sprintf("category %d does not exist", tag.CategoryID),
			})
		}
	}

	return violations, nil
}

// TotalAudit recomputes each order's total from its items and compares it
// to the stored amount, exactly.
func (ch *Checker) TotalAudit(ctx context.Context) ([]Violation, error) {
	orders, err := ch.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	items, err := ch.store.ListOrderItems(ctx)
	if err != nil {
		return nil, err
	}

	sums := make(map[int64]decimal.Decimal, len(orders))
	for _, it := range items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		sums[it.OrderID] = sums[it.OrderID].Add(line)
	}

	var violations []Violation
	for _, o := range orders {
		if !sums[o.ID].Equal(o.TotalAmount) {
			violations = append(violations, Violation{
				Invariant: InvariantOrderTotal,
				Entity:    "order",
				EntityID:  o.ID,
				Detail:    fmt.Sprintf("stored %s, computed %s", o.TotalAmount, sums[o.ID]),
			})
		}
	}
	return violations, nil
}

// StockAudit verifies that no product holds negative stock.
func (ch *Checker) StockAudit(ctx context.Context) ([]Violation, error) {
	products, err := ch.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, p := range products {
		if p.StockQuantity < 0 {
			violations = append(violations, Violation{
				Invariant: InvariantStockNonNegative,
				Entity:    "product",
				EntityID:  p.ID,
				Detail:    fmt.Sprintf("stock_quantity is %d", p.StockQuantity),
			})
		}
	}
	return violations, nil
}

// UniquenessAudit verifies the global uniqueness constraints: customer
// emails, category names and tag pairs.
func (ch *Checker) UniquenessAudit(ctx context.Context) ([]Violation, error) {
	customers, err := ch.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := ch.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := ch.store.ListProductCategories(ctx)
	if err != nil {
		return nil, err
	}

	var violations []Violation

	emails := make(map[string]int64, len(customers))
	for _, c := range customers {
		if firstID, seen := emails[c.Email]; seen {
			violations = append(violations, Violation{
				Invariant: InvariantUniqueEmail,
				Entity:    "customer",
				EntityID:  c.ID,
				Detail:    fmt.Sprintf("email %q also held by customer %d", c.Email, firstID),
			})
			continue
		}
		emails[c.Email] = c.ID
	}

	names := make(map[string]int64, len(categories))
	for _, c := range categories {
		if firstID, seen := names[c.Name]; seen {
			violations = append(violations, Violation{
				Invariant: InvariantUniqueCategoryName,
				Entity:    "category",
				EntityID:  c.ID,
				Detail:    fmt.Sprintf("name %q also held by category %d", c.Name, firstID),
			})
			continue
		}
		names[c.Name] = c.ID
	}

	type pair struct{ p, c int64 }
	seen := make(map[pair]struct{}, len(tags))
	for _, tag := range tags {
		key := pair{tag.ProductID, tag.CategoryID}
		if _, dup := seen[key]; dup {
			violations = append(violations, Violation{
				Invariant: InvariantUniqueTagPair,
				Entity:    "product_category",
				EntityID:  tag.ProductID,
				Detail:    fmt.Sprintf("pair (%d, %d) appears more than once", tag.ProductID, tag.CategoryID),
			})
			continue
		}
		seen[key] = struct{}{}
	}

	return violations, nil
}

// Run executes every audit and returns the combined violation list. An
// empty result means the store is consistent.
func (ch *Checker) Run(ctx context.Context) ([]Violation, error) {
	ctx, span := util.StartSpan(ctx, "Checker.Run")
	defer span.End()

	util.AuditRunsTotal.Inc()

	var all []Violation
	audits := []func(context.Context) ([]Violation, error){
		ch.ReferentialAudit,
		ch.TotalAudit,
		ch.StockAudit,
		ch.UniquenessAudit,
	}
	for _, audit := range audits {
		violations, err := audit(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, violations...)
	}

	for _, v := range all {
		util.AuditViolationsTotal.WithLabelValues(v.Invariant).Inc()
	}
	return all, nil
}

// CheckOrder is the ledger's pre-commit guard: it validates a candidate
// order against its items before the atomic write.
func (ch *Checker) CheckOrder(order *models.Order, items []models.OrderItem) error {
	sum := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("item for product %d has quantity %d: %w",
				it.ProductID, it.Quantity, ErrInvalidQuantity)
		}
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if !sum.Equal(order.TotalAmount) {
		return fmt.Errorf("total %s does not match item sum %s: %w",
			order.TotalAmount, sum, ErrPersistenceFailure)
	}
	return nil
}
