package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"workshop-service/internal/models"
	"workshop-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes one keyed event.
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events. Events of one quotation
// or item share a key and therefore a partition.
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (ep *EventPublisher) PublishQuotationStatusChanged(ctx context.Context, event *models.QuotationStatusChangedEvent) error {
	key := fmt.Sprintf("quotation-%d", event.QuotationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

func (ep *EventPublisher) PublishBillGenerated(ctx context.Context, event *models.BillGeneratedEvent) error {
	key := fmt.Sprintf("quotation-%d", event.QuotationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	key := fmt.Sprintf("bill-%d", event.BillID)
	return ep.producer.PublishEvent(ctx, key, event)
}

func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	key := fmt.Sprintf("item-%d", event.ItemID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onQuotationStatusChanged func(context.Context, *models.QuotationStatusChangedEvent) error
	onStockLow               func(context.Context, *models.StockLowEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

func (eh *EventHandler) OnQuotationStatusChanged(handler func(context.Context, *models.QuotationStatusChangedEvent) error) {
	eh.onQuotationStatusChanged = handler
}

func (eh *EventHandler) OnStockLow(handler func(context.Context, *models.StockLowEvent) error) {
	eh.onStockLow = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event", zap.String("type", baseEvent.EventType), zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeQuotationStatusChanged:
		if eh.onQuotationStatusChanged != nil {
			var event models.QuotationStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal QuotationStatusChanged event: %w", err)
			}
			return eh.onQuotationStatusChanged(ctx, &event)
		}

	case models.EventTypeStockLow:
		if eh.onStockLow != nil {
			var event models.StockLowEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockLow event: %w", err)
			}
			return eh.onStockLow(ctx, &event)
		}

	case models.EventTypeBillGenerated, models.EventTypePaymentRecorded:
		// consumed by reporting, nothing to do here

	default:
		logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
