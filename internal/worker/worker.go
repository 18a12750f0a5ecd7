package worker

import (
	"context"
	"time"

	"order-ledger/internal/broker"
	"order-ledger/internal/models"
	"order-ledger/internal/service"
	"order-ledger/internal/util"

	"go.uber.org/zap"
)

// AuditWorker periodically runs the consistency audits and reports any
// violations through logs and metrics.
type AuditWorker struct {
	checker  *service.Checker
	interval time.Duration
	logger   *zap.Logger
}

// NewAuditWorker creates an audit worker with the given run interval.
func NewAuditWorker(checker *service.Checker, interval time.Duration) *AuditWorker {
	return &AuditWorker{
		checker:  checker,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs audits on a ticker until ctx is cancelled.
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Audit worker stopping")
			return ctx.Err()
		case <-ticker.C:
			violations, err := w.checker.Run(ctx)
			if err != nil {
				w.logger.Error("Consistency audit failed", zap.Error(err))
				continue
			}
			if len(violations) == 0 {
				w.logger.Debug("Consistency audit clean")
				continue
			}
			for _, v := range violations {
				w.logger.Warn("Invariant violation",
					zap.String("invariant", v.Invariant),
					zap.String("entity", v.Entity),
					zap.Int64("entity_id", v.EntityID),
					zap.String("detail", v.Detail))
			}
		}
	}
}

// CacheSyncWorker consumes order events and refreshes the Redis stock
// cache after placements and rollbacks.
type CacheSyncWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewCacheSyncWorker creates a cache sync worker bound to the catalog.
func NewCacheSyncWorker(consumer *broker.Consumer, catalog *service.Catalog) *CacheSyncWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPlaced(func(ctx context.Context, event *models.OrderPlacedEvent) error {
		return catalog.SyncToRedis(ctx)
	})
	eventHandler.OnStockReleased(func(ctx context.Context, event *models.StockReleasedEvent) error {
		return catalog.SyncToRedis(ctx)
	})

	return &CacheSyncWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts consuming until ctx is cancelled.
func (w *CacheSyncWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache sync worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the underlying consumer.
func (w *CacheSyncWorker) Stop() error {
	w.logger.Info("Stopping cache sync worker")
	return w.consumer.Close()
}
