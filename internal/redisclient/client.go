package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

// Client caches product stock counts in Redis as plain integers under
// stock:<product_id>. The cache only pre-filters reservations; the store
// remains the source of truth.
type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a Redis client with the stock scripts loaded.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
	}, nil
}

// GetClient returns the underlying Redis client.
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// ReserveStock atomically checks and decrements the cached count.
// Returns false on insufficient stock.
func (c *Client) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{stockKey(productID)}, quantity).Result()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	admitted, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type %T", result)
	}
	return admitted == 1, nil
}

// ReleaseStock atomically returns a reserved count to the cache.
func (c *Client) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(productID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// InitStock overwrites the cached count with the authoritative value.
func (c *Client) InitStock(ctx context.Context, productID int64, quantity int) error {
	return c.rdb.Set(ctx, stockKey(productID), quantity, 0).Err()
}

// GetStock retrieves the cached count for a product.
func (c *Client) GetStock(ctx context.Context, productID int64) (int, error) {
	val, err := c.rdb.Get(ctx, stockKey(productID)).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("stock not cached for product %d", productID)
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}
