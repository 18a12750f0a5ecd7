package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-ledger/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// Postgres is the sqlx-backed Store.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres connects to the database and verifies the connection.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close closes the database connection.
func (s *Postgres) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}

func (s *Postgres) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (first_name, last_name, email, password_hash, address, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, c, query,
		c.FirstName, c.LastName, c.Email, c.PasswordHash, c.Address, c.Phone)
	if isUniqueViolation(err) {
		return fmt.Errorf("email %q: %w", c.Email, ErrDuplicate)
	}
	return err
}

func (s *Postgres) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	err := s.db.GetContext(ctx, &c, "SELECT * FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Postgres) UpdateCustomerContact(ctx context.Context, id int64, address, phone *string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE customers SET address = $1, phone = $2 WHERE id = $3", address, phone, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteCustomer refuses to remove a customer that any order still
// references.
func (s *Postgres) DeleteCustomer(ctx context.Context, id int64) error {
	var referenced bool
	err := s.db.GetContext(ctx, &referenced,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE customer_id = $1)", id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("customer %d has orders: %w", id, ErrReferenced)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Postgres) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.SelectContext(ctx, &customers, "SELECT * FROM customers ORDER BY id")
	return customers, err
}

func (s *Postgres) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, p, query, p.Name, p.Description, p.Price, p.StockQuantity)
}

func (s *Postgres) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

func (s *Postgres) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// DecrementStock relies on a guarded UPDATE so the check and the
// decrement are one statement; concurrent callers serialize on the row.
func (s *Postgres) DecrementStock(ctx context.Context, productID int64, qty int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock_quantity = stock_quantity - $1 WHERE id = $2 AND stock_quantity >= $1",
		qty, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return fmt.Errorf("product %d: %w", productID, ErrInsufficientStock)
}

func (s *Postgres) IncrementStock(ctx context.Context, productID int64, qty int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock_quantity = stock_quantity + $1 WHERE id = $2", qty, productID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}

func (s *Postgres) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (category_name)
		VALUES ($1)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, c, query, c.Name)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", c.Name, ErrDuplicate)
	}
	return err
}

func (s *Postgres) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY id")
	return categories, err
}

func (s *Postgres) TagProduct(ctx context.Context, productID, categoryID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)",
		productID, categoryID)
	if isUniqueViolation(err) {
		return fmt.Errorf("tag (%d, %d): %w", productID, categoryID, ErrDuplicate)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == "23503" { // foreign key violation
		return fmt.Errorf("tag (%d, %d): %w", productID, categoryID, ErrNotFound)
	}
	return err
}

func (s *Postgres) UntagProduct(ctx context.Context, productID, categoryID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM product_categories WHERE product_id = $1 AND category_id = $2",
		productID, categoryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tag (%d, %d): %w", productID, categoryID, ErrNotFound)
	}
	return nil
}

func (s *Postgres) ListProductCategories(ctx context.Context) ([]models.ProductCategory, error) {
	var tags []models.ProductCategory
	err := s.db.SelectContext(ctx, &tags,
		"SELECT product_id, category_id FROM product_categories ORDER BY product_id, category_id")
	return tags, err
}
