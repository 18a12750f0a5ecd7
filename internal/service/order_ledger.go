package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"order-ledger/internal/models"
	"order-ledger/internal/store"
	"order-ledger/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LineItem is one (product, quantity) pair of an order request.
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// PlacedOrder is a committed order together with its persisted items.
type PlacedOrder struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// EventPublisher publishes domain events. Publishing is best-effort; a
// failed publish never fails the operation that triggered it.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishStockReleased(ctx context.Context, event *models.StockReleasedEvent) error
}

// Placement attempt states, used in logs.
const (
	stateValidating = "validating"
	stateReserving  = "reserving"
	statePersisting = "persisting"
	stateCommitted  = "committed"
	stateAborted    = "aborted"
)

// Ledger is the order placement core. It validates a request, reserves
// stock through the catalog, persists the order and its items as one
// atomic unit and rolls every reservation back on failure.
type Ledger struct {
	store     store.Store
	catalog   *Catalog
	directory *Directory
	checker   *Checker
	publisher EventPublisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewLedger creates a ledger. publisher may be nil; timeout bounds one
// placement attempt end to end (zero disables the bound).
func NewLedger(
	st store.Store,
	catalog *Catalog,
	directory *Directory,
	checker *Checker,
	publisher EventPublisher,
	timeout time.Duration,
) *Ledger {
	return &Ledger{
		store:     st,
		catalog:   catalog,
		directory: directory,
		checker:   checker,
		publisher: publisher,
		timeout:   timeout,
		logger:    util.GetLogger(),
	}
}

// PlaceOrder creates an order with its line items, atomically reserving
// stock for each of them. Either the whole order commits with status
// PENDING or nothing is persisted and all reserved stock is returned.
//
// Caller cancellation is honored up to the point persistence begins; the
// atomic write then runs to completion so stock is never left reserved
// without a matching order.
func (l *Ledger) PlaceOrder(ctx context.Context, customerID int64, items []LineItem) (*PlacedOrder, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.PlaceOrder")
	defer span.End()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	// Validating: no side effects before any of these checks pass.
	l.logger.Debug("Placement attempt", zap.String("state", stateValidating),
		zap.Int64("customer_id", customerID))

	if err := l.validate(ctx, customerID, items); err != nil {
		util.OrdersAbortedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	// Reserving: ascending product id establishes a total lock order
	// across concurrent placements that share products.
	l.logger.Debug("Placement attempt", zap.String("state", stateReserving),
		zap.Int64("customer_id", customerID))

	sorted := make([]LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	reservations := make([]*Reservation, 0, len(sorted))
	for _, item := range sorted {
		if err := ctx.Err(); err != nil {
			// Rollback must not run on the context that just died.
			l.releaseAll(context.WithoutCancel(ctx), reservations, "placement cancelled")
			util.OrdersAbortedTotal.WithLabelValues("cancelled").Inc()
			return nil, err
		}

		res, err := l.catalog.Reserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			l.releaseAll(context.WithoutCancel(ctx), reservations, "reservation failed")
			reason := "unknown_product"
			if errors.Is(err, ErrInsufficientStock) {
				reason = "insufficient_stock"
			}
			util.OrdersAbortedTotal.WithLabelValues(reason).Inc()
			l.logger.Info("Placement aborted", zap.String("state", stateAborted),
				zap.Int64("customer_id", customerID),
				zap.Error(err))
			return nil, err
		}
		reservations = append(reservations, res)
	}

	// Persisting: from here the attempt runs to completion on a context
	// detached from caller cancellation.
	l.logger.Debug("Placement attempt", zap.String("state", statePersisting),
		zap.Int64("customer_id", customerID))
	persistCtx := context.WithoutCancel(ctx)

	order := models.Order{
		CustomerID:  customerID,
		TotalAmount: decimal.Zero,
		Status:      models.OrderStatusPending,
	}
	orderItems := make([]models.OrderItem, 0, len(reservations))
	for _, res := range reservations {
		order.TotalAmount = order.TotalAmount.Add(
			res.UnitPrice.Mul(decimal.NewFromInt(int64(res.Quantity))))
		orderItems = append(orderItems, models.OrderItem{
			ProductID: res.ProductID,
			Quantity:  res.Quantity,
			UnitPrice: res.UnitPrice,
		})
	}

	if err := l.checker.CheckOrder(&order, orderItems); err != nil {
		l.releaseAll(persistCtx, reservations, "pre-commit check failed")
		util.OrdersAbortedTotal.WithLabelValues("persistence").Inc()
		return nil, err
	}

	if err := l.store.CreateOrderWithItems(persistCtx, &order, orderItems); err != nil {
		l.releaseAll(persistCtx, reservations, "persistence failed")
		util.OrdersAbortedTotal.WithLabelValues("persistence").Inc()
		l.logger.Error("Placement aborted", zap.String("state", stateAborted),
			zap.Int64("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	// Committed.
	util.OrdersPlacedTotal.Inc()
	l.logger.Info("Order committed", zap.String("state", stateCommitted),
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customerID),
		zap.String("total_amount", order.TotalAmount.String()))

	l.publishOrderPlaced(persistCtx, &order, orderItems)

	return &PlacedOrder{Order: order, Items: orderItems}, nil
}

// validate runs the side-effect-free checks of the Validating state.
func (l *Ledger) validate(ctx context.Context, customerID int64, items []LineItem) error {
	exists, err := l.directory.Exists(ctx, customerID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("customer %d: %w", customerID, ErrUnknownCustomer)
	}

	if len(items) == 0 {
		return ErrEmptyOrder
	}

	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return fmt.Errorf("product %d has quantity %d: %w",
				item.ProductID, item.Quantity, ErrInvalidQuantity)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("product %d appears more than once: %w",
				item.ProductID, ErrDuplicateLineItem)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// releaseAll returns every acquired reservation, newest first.
func (l *Ledger) releaseAll(ctx context.Context, reservations []*Reservation, reason string) {
	for i := len(reservations) - 1; i >= 0; i-- {
		res := reservations[i]
		if err := l.catalog.Release(ctx, res); err != nil {
			l.logger.Error("Failed to release reservation",
				zap.Int64("product_id", res.ProductID),
				zap.Int("quantity", res.Quantity),
				zap.Error(err))
			continue
		}
		l.publishStockReleased(ctx, res, reason)
	}
}

// AdvanceStatus moves an order one step forward: PENDING to SHIPPED or
// SHIPPED to DELIVERED. Every other move is rejected.
func (l *Ledger) AdvanceStatus(ctx context.Context, orderID int64, next string) (*models.Order, error) {
	if next != models.OrderStatusShipped && next != models.OrderStatusDelivered {
		return nil, fmt.Errorf("cannot advance to %q: %w", next, ErrInvalidStatusTransition)
	}

	order, err := l.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Order.Status, next) {
		return nil, fmt.Errorf("order %d: %s to %s: %w",
			orderID, order.Order.Status, next, ErrInvalidStatusTransition)
	}

	return l.transition(ctx, orderID, order.Order.Status, next)
}

// Cancel marks a PENDING order as CANCELLED. The cancellation is
// status-only: stock decremented by the successful placement stays
// decremented, because the schema defines no restock on cancel.
func (l *Ledger) Cancel(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := l.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %d: %s to %s: %w",
			orderID, order.Order.Status, models.OrderStatusCancelled, ErrInvalidStatusTransition)
	}

	return l.transition(ctx, orderID, models.OrderStatusPending, models.OrderStatusCancelled)
}

func (l *Ledger) transition(ctx context.Context, orderID int64, from, to string) (*models.Order, error) {
	err := l.store.TransitionOrderStatus(ctx, orderID, from, to)
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with a concurrent transition.
		return nil, fmt.Errorf("order %d: %w", orderID, ErrInvalidStatusTransition)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	util.StatusTransitionsTotal.WithLabelValues(to).Inc()
	l.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", from),
		zap.String("to", to))

	if l.publisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			From:    from,
			To:      to,
		}
		if err := l.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
			l.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	updated, err := l.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetOrder retrieves an order with its items.
func (l *Ledger) GetOrder(ctx context.Context, orderID int64) (*PlacedOrder, error) {
	order, err := l.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, err
	}

	items, err := l.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &PlacedOrder{Order: *order, Items: items}, nil
}

func (l *Ledger) publishOrderPlaced(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if l.publisher == nil {
		return
	}

	lines := make([]models.OrderLineData, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.OrderLineData{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		Items:       lines,
	}
	if err := l.publisher.PublishOrderPlaced(ctx, event); err != nil {
		l.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

func (l *Ledger) publishStockReleased(ctx context.Context, res *Reservation, reason string) {
	if l.publisher == nil {
		return
	}

	event := &models.StockReleasedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockReleased,
			Timestamp: time.Now(),
		},
		ProductID: res.ProductID,
		Quantity:  res.Quantity,
		Reason:    reason,
	}
	if err := l.publisher.PublishStockReleased(ctx, event); err != nil {
		l.logger.Error("Failed to publish StockReleased event", zap.Error(err))
	}
}
