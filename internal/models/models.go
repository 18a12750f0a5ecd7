package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents a registered customer. PasswordHash is an opaque
// credential; plaintext passwords never reach this type.
type Customer struct {
	ID           int64     `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Address      *string   `db:"address" json:"address,omitempty"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog product. StockQuantity is only ever
// written through the catalog reserve/release path.
type Product struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   *string         `db:"description" json:"description,omitempty"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Category represents a product category with a globally unique name.
type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"category_name" json:"category_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProductCategory associates a product with a category. The
// (ProductID, CategoryID) pair is unique.
type ProductCategory struct {
	ProductID  int64 `db:"product_id" json:"product_id"`
	CategoryID int64 `db:"category_id" json:"category_id"`
}

// Order represents a placed order. The item set and captured prices are
// fixed at creation time; only Status changes afterwards.
type Order struct {
	ID          int64           `db:"id" json:"id"`
	CustomerID  int64           `db:"customer_id" json:"customer_id"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status      string          `db:"order_status" json:"order_status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// OrderItem represents one line of an order. UnitPrice is the price
// captured at order time, decoupled from later catalog price changes.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Forward-only lifecycle; CANCELLED is reachable only from PENDING.
var statusTransitions = map[string]string{
	OrderStatusPending: OrderStatusShipped,
	OrderStatusShipped: OrderStatusDelivered,
}

// CanTransition reports whether an order may move from one status to
// another. Backward moves and state skips are rejected.
func CanTransition(from, to string) bool {
	if to == OrderStatusCancelled {
		return from == OrderStatusPending
	}
	return statusTransitions[from] == to
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}
