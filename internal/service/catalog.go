package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"order-ledger/internal/models"
	"order-ledger/internal/redisclient"
	"order-ledger/internal/store"
	"order-ledger/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reservation is a provisional, releasable hold against a product's
// stock. UnitPrice is the catalog price captured at reservation time and
// becomes the order item's snapshot price.
type Reservation struct {
	ID        uuid.UUID
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal

	released atomic.Bool
}

// Catalog owns product stock. All stock writes go through Reserve and
// Release; no other component touches stock_quantity. An optional Redis
// cache provides a fast rejection path in front of the store.
type Catalog struct {
	store  store.Store
	redis  *redisclient.Client
	logger *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewCatalog creates a catalog over the given store. redis may be nil.
func NewCatalog(st store.Store, redis *redisclient.Client) *Catalog {
	return &Catalog{
		store:  st,
		redis:  redis,
		logger: util.GetLogger(),
		locks:  make(map[int64]*sync.Mutex),
	}
}

// lockFor returns the mutex that serializes stock operations on one
// product. Locks for different products are independent.
func (c *Catalog) lockFor(productID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[productID] = l
	}
	return l
}

// GetProduct retrieves a product by id.
func (c *Catalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := c.store.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, ErrUnknownProduct)
	}
	return p, err
}

// Reserve checks stock and decrements it in one indivisible step relative
// to concurrent reservations on the same product, capturing the current
// unit price into the returned reservation. On failure nothing is
// mutated.
func (c *Catalog) Reserve(ctx context.Context, productID int64, quantity int) (*Reservation, error) {
	ctx, span := util.StartSpan(ctx, "Catalog.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReservationLatency.Observe(time.Since(start).Seconds())
	}()

	lock := c.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	product, err := c.store.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.ReservationsFailedTotal.WithLabelValues("unknown_product").Inc()
			return nil, fmt.Errorf("product %d: %w", productID, ErrUnknownProduct)
		}
		return nil, err
	}

	// Fast rejection through the Redis cache when configured; the store
	// decrement below stays authoritative.
	if c.redis != nil {
		ok, err := c.redis.ReserveStock(ctx, productID, quantity)
		if err != nil {
			c.logger.Warn("Redis reservation check failed, using store only",
				zap.Int64("product_id", productID),
				zap.Error(err))
		} else if !ok {
			util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("product %d: %w", productID, ErrInsufficientStock)
		}
	}

	if err := c.store.DecrementStock(ctx, productID, quantity); err != nil {
		if c.redis != nil {
			if rerr := c.redis.ReleaseStock(ctx, productID, quantity); rerr != nil {
				c.logger.Error("Failed to roll back Redis reservation",
					zap.Int64("product_id", productID),
					zap.Error(rerr))
			}
		}
		if errors.Is(err, store.ErrInsufficientStock) {
			util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("product %d: have %d, want %d: %w",
				productID, product.StockQuantity, quantity, ErrInsufficientStock)
		}
		if errors.Is(err, store.ErrNotFound) {
			util.ReservationsFailedTotal.WithLabelValues("unknown_product").Inc()
			return nil, fmt.Errorf("product %d: %w", productID, ErrUnknownProduct)
		}
		return nil, err
	}

	return &Reservation{
		ID:        uuid.New(),
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	}, nil
}

// Release restores the reserved quantity. It is idempotent: the second
// and later calls on the same reservation are no-ops.
func (c *Catalog) Release(ctx context.Context, res *Reservation) error {
	ctx, span := util.StartSpan(ctx, "Catalog.Release")
	defer span.End()

	if !res.released.CompareAndSwap(false, true) {
		return nil
	}

	lock := c.lockFor(res.ProductID)
	lock.Lock()
	defer lock.Unlock()

	if err := c.store.IncrementStock(ctx, res.ProductID, res.Quantity); err != nil {
		// Leave the reservation releasable so the caller can retry.
		res.released.Store(false)
		return fmt.Errorf("failed to release reservation %s: %w", res.ID, err)
	}

	if c.redis != nil {
		if err := c.redis.ReleaseStock(ctx, res.ProductID, res.Quantity); err != nil {
			c.logger.Error("Failed to release stock in Redis",
				zap.Int64("product_id", res.ProductID),
				zap.Error(err))
		}
	}

	util.StockReleasedTotal.Inc()
	return nil
}

// SyncToRedis republishes authoritative stock counts into the cache.
func (c *Catalog) SyncToRedis(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}

	c.logger.Info("Starting stock sync to Redis")

	products, err := c.store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	for _, p := range products {
		lock := c.lockFor(p.ID)
		lock.Lock()
		current, err := c.store.GetProductByID(ctx, p.ID)
		if err == nil {
			err = c.redis.InitStock(ctx, p.ID, current.StockQuantity)
		}
		lock.Unlock()
		if err != nil {
			c.logger.Error("Failed to sync product stock",
				zap.Int64("product_id", p.ID),
				zap.Error(err))
		}
	}

	c.logger.Info("Stock sync completed", zap.Int("count", len(products)))
	return nil
}
