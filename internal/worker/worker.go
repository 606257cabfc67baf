package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/broker"
	"workshop-service/internal/models"
	"workshop-service/internal/service"
	"workshop-service/internal/store"
	"workshop-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Biller issues the bill of a repaired quotation. *service.BillingService
// implements it.
type Biller interface {
	GenerateBill(ctx context.Context, actor models.Actor, quotationID int64, in service.BillInput) (*models.Bill, error)
}

// Locker serializes work across worker replicas. *redisclient.Client
// implements it.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// errLockHeld means another replica is handling the same event. The event is
// acknowledged without being marked processed so the holder records it.
var errLockHeld = errors.New("auto-bill lock held by another worker")

// Options tune the event worker.
type Options struct {
	AutoBill bool
	LockTTL  time.Duration
}

// EventWorker consumes workshop events. Each event is handled at most once;
// its id is recorded in processed_events after the handler succeeds.
type EventWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	repo     store.Repository
	biller   Biller
	locker   Locker
	opts     Options
	logger   *zap.Logger
}

// NewEventWorker creates a new event worker. consumer and locker may be nil.
func NewEventWorker(consumer *broker.Consumer, repo store.Repository, biller Biller, locker Locker, opts Options) *EventWorker {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	w := &EventWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		repo:     repo,
		biller:   biller,
		locker:   locker,
		opts:     opts,
		logger:   util.GetLogger(),
	}
	w.handler.OnQuotationStatusChanged(w.onStatusChanged)
	w.handler.OnStockLow(w.onStockLow)
	return w
}

// Start consumes until ctx is cancelled.
func (w *EventWorker) Start(ctx context.Context) error {
	if w.consumer == nil {
		return errors.New("event worker has no consumer")
	}
	w.logger.Info("Starting event worker", zap.Bool("auto_bill", w.opts.AutoBill))
	return w.consumer.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *EventWorker) Stop() error {
	w.logger.Info("Stopping event worker")
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}

// Handle routes one message.
func (w *EventWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.handler.HandleMessage(ctx, msg)
}

// once runs fn unless eventID was already handled.
func (w *EventWorker) once(ctx context.Context, base models.BaseEvent, fn func() error) error {
	if base.EventID == "" {
		return fn()
	}
	done, err := w.repo.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("check processed event: %w", err)
	}
	if done {
		w.logger.Debug("Skipping processed event", zap.String("event_id", base.EventID))
		return nil
	}
	if err := fn(); err != nil {
		if errors.Is(err, errLockHeld) {
			return nil
		}
		return err
	}
	return w.repo.MarkEventProcessed(ctx, base.EventID, base.EventType)
}

func (w *EventWorker) onStatusChanged(ctx context.Context, e *models.QuotationStatusChangedEvent) error {
	if e.ToStatus != models.StatusRepairComplete || !w.opts.AutoBill || w.biller == nil {
		return nil
	}
	return w.once(ctx, e.BaseEvent, func() error { return w.autoBill(ctx, e) })
}

func (w *EventWorker) autoBill(ctx context.Context, e *models.QuotationStatusChangedEvent) error {
	lockKey := fmt.Sprintf("autobill:%d:%d", e.OrganizationID, e.QuotationID)
	if w.locker != nil {
		ok, err := w.locker.AcquireLock(ctx, lockKey, w.opts.LockTTL)
		if err != nil {
			return fmt.Errorf("acquire auto-bill lock: %w", err)
		}
		if !ok {
			w.logger.Info("Auto-bill already running elsewhere",
				zap.Int64("quotation_id", e.QuotationID),
				zap.String("key", lockKey))
			return errLockHeld
		}
		defer func() {
			if err := w.locker.ReleaseLock(ctx, lockKey); err != nil {
				w.logger.Warn("Failed to release auto-bill lock", zap.String("key", lockKey), zap.Error(err))
			}
		}()
	}

	actor := models.SystemActor(e.OrganizationID, e.ActorID)
	bill, err := w.biller.GenerateBill(ctx, actor, e.QuotationID, service.BillInput{Notes: "generated on repair completion"})
	switch {
	case err == nil:
		w.logger.Info("Bill generated automatically",
			zap.Int64("quotation_id", e.QuotationID),
			zap.String("bill_number", bill.BillNumber))
		return nil
	case errors.Is(err, apperr.ErrAlreadyBilled), errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrAlreadyProcessed):
		w.logger.Info("Skipping auto-bill",
			zap.Int64("quotation_id", e.QuotationID),
			zap.String("reason", apperr.PublicMessage(err)))
		return nil
	default:
		return err
	}
}

func (w *EventWorker) onStockLow(ctx context.Context, e *models.StockLowEvent) error {
	return w.once(ctx, e.BaseEvent, func() error {
		util.StockLowAlertsTotal.Inc()
		w.logger.Warn("Stock at or below reorder level",
			zap.Int64("org_id", e.OrganizationID),
			zap.Int64("item_id", e.ItemID),
			zap.String("item_code", e.ItemCode),
			zap.Int("available", e.AvailableStock),
			zap.Int("reorder_level", e.ReorderLevel))
		return nil
	})
}
