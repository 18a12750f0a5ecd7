package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"order-ledger/internal/models"
)

type tagKey struct {
	productID  int64
	categoryID int64
}

// Memory is an in-memory Store. A single mutex guards all tables; the
// secondary indexes (email, category name, tag pair) are maintained under
// the same lock as the rows they index.
type Memory struct {
	mu sync.RWMutex

	customers  map[int64]models.Customer
	products   map[int64]models.Product
	categories map[int64]models.Category
	orders     map[int64]models.Order
	orderItems map[int64]models.OrderItem
	tags       map[tagKey]struct{}

	emailIndex    map[string]int64
	categoryIndex map[string]int64

	nextCustomerID  int64
	nextProductID   int64
	nextCategoryID  int64
	nextOrderID     int64
	nextOrderItemID int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		customers:     make(map[int64]models.Customer),
		products:      make(map[int64]models.Product),
		categories:    make(map[int64]models.Category),
		orders:        make(map[int64]models.Order),
		orderItems:    make(map[int64]models.OrderItem),
		tags:          make(map[tagKey]struct{}),
		emailIndex:    make(map[string]int64),
		categoryIndex: make(map[string]int64),
	}
}

func (m *Memory) CreateCustomer(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.emailIndex[c.Email]; taken {
		return fmt.Errorf("email %q: %w", c.Email, ErrDuplicate)
	}

	m.nextCustomerID++
	c.ID = m.nextCustomerID
	c.CreatedAt = time.Now().UTC()
	m.customers[c.ID] = *c
	m.emailIndex[c.Email] = c.ID
	return nil
}

func (m *Memory) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) UpdateCustomerContact(ctx context.Context, id int64, address, phone *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[id]
	if !ok {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	c.Address = address
	c.Phone = phone
	m.customers[id] = c
	return nil
}

func (m *Memory) DeleteCustomer(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[id]
	if !ok {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	for _, o := range m.orders {
		if o.CustomerID == id {
			return fmt.Errorf("customer %d has orders: %w", id, ErrReferenced)
		}
	}
	delete(m.customers, id)
	delete(m.emailIndex, c.Email)
	return nil
}

func (m *Memory) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextProductID++
	p.ID = m.nextProductID
	p.CreatedAt = time.Now().UTC()
	m.products[p.ID] = *p
	return nil
}

func (m *Memory) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) ListProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DecrementStock checks and decrements in one step under the store lock.
// On failure the stock is untouched.
func (m *Memory) DecrementStock(ctx context.Context, productID int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if p.StockQuantity < qty {
		return fmt.Errorf("product %d: have %d, want %d: %w",
			productID, p.StockQuantity, qty, ErrInsufficientStock)
	}
	p.StockQuantity -= qty
	m.products[productID] = p
	return nil
}

func (m *Memory) IncrementStock(ctx context.Context, productID int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	p.StockQuantity += qty
	m.products[productID] = p
	return nil
}

func (m *Memory) CreateCategory(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.categoryIndex[c.Name]; taken {
		return fmt.Errorf("category %q: %w", c.Name, ErrDuplicate)
	}

	m.nextCategoryID++
	c.ID = m.nextCategoryID
	c.CreatedAt = time.Now().UTC()
	m.categories[c.ID] = *c
	m.categoryIndex[c.Name] = c.ID
	return nil
}

func (m *Memory) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TagProduct(ctx context.Context, productID, categoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[productID]; !ok {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if _, ok := m.categories[categoryID]; !ok {
		return fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
	}
	key := tagKey{productID, categoryID}
	if _, taken := m.tags[key]; taken {
		return fmt.Errorf("tag (%d, %d): %w", productID, categoryID, ErrDuplicate)
	}
	m.tags[key] = struct{}{}
	return nil
}

func (m *Memory) UntagProduct(ctx context.Context, productID, categoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tagKey{productID, categoryID}
	if _, ok := m.tags[key]; !ok {
		return fmt.Errorf("tag (%d, %d): %w", productID, categoryID, ErrNotFound)
	}
	delete(m.tags, key)
	return nil
}

func (m *Memory) ListProductCategories(ctx context.Context) ([]models.ProductCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ProductCategory, 0, len(m.tags))
	for key := range m.tags {
		out = append(out, models.ProductCategory{ProductID: key.productID, CategoryID: key.categoryID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

// CreateOrderWithItems assigns IDs and the creation timestamp and makes
// the order and all of its items visible in one step.
func (m *Memory) CreateOrderWithItems(ctx context.Context, o *models.Order, items []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextOrderID++
	o.ID = m.nextOrderID
	o.CreatedAt = time.Now().UTC()
	m.orders[o.ID] = *o

	for i := range items {
		m.nextOrderItemID++
		items[i].ID = m.nextOrderItemID
		items[i].OrderID = o.ID
		m.orderItems[items[i].ID] = items[i]
	}
	return nil
}

func (m *Memory) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return &o, nil
}

func (m *Memory) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.OrderItem
	for _, it := range m.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListOrders(ctx context.Context) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListOrderItems(ctx context.Context) ([]models.OrderItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.OrderItem, 0, len(m.orderItems))
	for _, it := range m.orderItems {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TransitionOrderStatus(ctx context.Context, orderID int64, expected, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if o.Status != expected {
		return fmt.Errorf("order %d is %s, expected %s: %w", orderID, o.Status, expected, ErrConflict)
	}
	o.Status = next
	m.orders[orderID] = o
	return nil
}

func (m *Memory) Close() error { return nil }
