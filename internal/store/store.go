package store

import (
	"context"
	"errors"

	"order-ledger/internal/models"
)

// Storage sentinels. Callers match them with errors.Is; the service layer
// maps them onto its own taxonomy.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate key")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("status conflict")
	ErrReferenced        = errors.New("row is referenced")
)

// Store is the persistence contract for the ledger and its collaborators.
// Identity assignment is the store's exclusive responsibility on insert:
// IDs are monotonically increasing and never reused. Two implementations
// exist, an in-memory store used in tests and a PostgreSQL store.
type Store interface {
	// Customers. CreateCustomer rejects a duplicate email with
	// ErrDuplicate. DeleteCustomer fails with ErrReferenced while any
	// order references the customer.
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	UpdateCustomerContact(ctx context.Context, id int64, address, phone *string) error
	DeleteCustomer(ctx context.Context, id int64) error
	ListCustomers(ctx context.Context) ([]models.Customer, error)

	// Products. DecrementStock performs the atomic check-and-decrement:
	// it fails with ErrInsufficientStock, mutating nothing, when the
	// product holds less than qty.
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	DecrementStock(ctx context.Context, productID int64, qty int) error
	IncrementStock(ctx context.Context, productID int64, qty int) error

	// Categories and product tags. CreateCategory enforces the unique
	// category name; TagProduct enforces the unique (product, category)
	// pair.
	CreateCategory(ctx context.Context, c *models.Category) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	TagProduct(ctx context.Context, productID, categoryID int64) error
	UntagProduct(ctx context.Context, productID, categoryID int64) error
	ListProductCategories(ctx context.Context) ([]models.ProductCategory, error)

	// Orders. CreateOrderWithItems persists the order row and all of its
	// item rows as one atomic unit: either every row becomes visible or
	// none does. TransitionOrderStatus compares-and-sets the status,
	// failing with ErrConflict when the stored status differs from
	// expected.
	CreateOrderWithItems(ctx context.Context, o *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrderItems(ctx context.Context) ([]models.OrderItem, error)
	TransitionOrderStatus(ctx context.Context, orderID int64, expected, next string) error

	Close() error
}
