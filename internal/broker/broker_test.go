package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"workshop-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestPublishKeysByAggregate(t *testing.T) {
	w := &captureWriter{}
	ep := NewEventPublisher(NewProducerWithWriter(w))
	ctx := context.Background()

	require.NoError(t, ep.PublishQuotationStatusChanged(ctx, &models.QuotationStatusChangedEvent{
		BaseEvent:   models.BaseEvent{EventID: "e1", EventType: models.EventTypeQuotationStatusChanged},
		QuotationID: 7,
		ToStatus:    models.StatusRepairComplete,
	}))
	require.NoError(t, ep.PublishPaymentRecorded(ctx, &models.PaymentRecordedEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypePaymentRecorded},
		BillID:    3,
		Amount:    decimal.RequireFromString("5000.00"),
	}))
	require.NoError(t, ep.PublishStockLow(ctx, &models.StockLowEvent{
		BaseEvent: models.BaseEvent{EventID: "e3", EventType: models.EventTypeStockLow},
		ItemID:    11,
	}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "quotation-7", string(w.msgs[0].Key))
	assert.Equal(t, "bill-3", string(w.msgs[1].Key))
	assert.Equal(t, "item-11", string(w.msgs[2].Key))

	var payment models.PaymentRecordedEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &payment))
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(5000)))
}

func TestPublishWrapsWriterError(t *testing.T) {
	p := NewProducerWithWriter(&captureWriter{err: errors.New("broker down")})
	err := p.PublishEvent(context.Background(), "k", map[string]string{"a": "b"})
	assert.ErrorContains(t, err, "broker down")
}

func TestHandleMessageRoutesByType(t *testing.T) {
	eh := NewEventHandler()
	var gotStatus *models.QuotationStatusChangedEvent
	var gotStock *models.StockLowEvent
	eh.OnQuotationStatusChanged(func(ctx context.Context, e *models.QuotationStatusChangedEvent) error {
		gotStatus = e
		return nil
	})
	eh.OnStockLow(func(ctx context.Context, e *models.StockLowEvent) error {
		gotStock = e
		return nil
	})

	status, _ := json.Marshal(models.QuotationStatusChangedEvent{
		BaseEvent:   models.BaseEvent{EventID: "s1", EventType: models.EventTypeQuotationStatusChanged, Timestamp: time.Now()},
		QuotationID: 5,
		ToStatus:    models.StatusRepairComplete,
	})
	stock, _ := json.Marshal(models.StockLowEvent{
		BaseEvent:      models.BaseEvent{EventID: "l1", EventType: models.EventTypeStockLow},
		ItemID:         2,
		AvailableStock: 1,
	})

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: status}))
	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: stock}))

	require.NotNil(t, gotStatus)
	assert.Equal(t, int64(5), gotStatus.QuotationID)
	require.NotNil(t, gotStock)
	assert.Equal(t, 1, gotStock.AvailableStock)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	err := NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	body, _ := json.Marshal(models.BaseEvent{EventID: "x", EventType: "SOMETHING_ELSE"})
	assert.NoError(t, NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: body}))
}
