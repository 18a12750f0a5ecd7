package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"order-ledger/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes the ledger's domain events to Kafka.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes an OrderPlaced event.
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderStatusChanged publishes an OrderStatusChanged event.
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockReleased publishes a StockReleased event.
func (ep *EventPublisher) PublishStockReleased(ctx context.Context, event *models.StockReleasedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks.
type EventHandler struct {
	onOrderPlaced   func(context.Context, *models.OrderPlacedEvent) error
	onStockReleased func(context.Context, *models.StockReleasedEvent) error
}

// NewEventHandler creates a new event handler.
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderPlaced registers a handler for OrderPlaced events.
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// OnStockReleased registers a handler for StockReleased events.
func (eh *EventHandler) OnStockReleased(handler func(context.Context, *models.StockReleasedEvent) error) {
	eh.onStockReleased = handler
}

// HandleMessage routes a raw Kafka message to the matching handler.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	case models.EventTypeStockReleased:
		if eh.onStockReleased != nil {
			var event models.StockReleasedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockReleased event: %w", err)
			}
			return eh.onStockReleased(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
