package service

import (
	"context"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"
	"workshop-service/internal/store"
	"workshop-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventSink receives domain events after their transaction commits.
// *broker.EventPublisher implements it.
type EventSink interface {
	PublishQuotationStatusChanged(ctx context.Context, event *models.QuotationStatusChangedEvent) error
	PublishBillGenerated(ctx context.Context, event *models.BillGeneratedEvent) error
	PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}

// StockCache mirrors committed stock counters for fast reads.
type StockCache interface {
	SetStockLevel(ctx context.Context, item models.InventoryItem) error
}

// IdempotencyGuard deduplicates client retries. *redisclient.Client
// implements it.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (prev string, claimed bool, err error)
	Complete(ctx context.Context, key, value string, ttl time.Duration) error
	Abandon(ctx context.Context, key string) error
}

// Deps are the collaborators shared by every service. Events, StockCache
// and Idempotency are optional.
type Deps struct {
	Repo        store.Repository
	Sequences   *SequenceGenerator
	Events      EventSink
	StockCache  StockCache
	Idempotency IdempotencyGuard
	Now         func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func newBaseEvent(eventType string, orgID int64, at time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:        uuid.New().String(),
		EventType:      eventType,
		OrganizationID: orgID,
		Timestamp:      at,
	}
}

// publishStatusChanges sends committed transitions. Publishing is best
// effort; the database is the source of truth.
func (d Deps) publishStatusChanges(ctx context.Context, events []*models.QuotationStatusChangedEvent) {
	if d.Events == nil {
		return
	}
	for _, e := range events {
		if err := d.Events.PublishQuotationStatusChanged(ctx, e); err != nil {
			util.GetLogger().Warn("Failed to publish status change",
				zap.Int64("quotation_id", e.QuotationID), zap.Error(err))
		}
	}
}

// authorize checks the caller's role before any work is done.
func authorize(actor models.Actor, min models.Role) error {
	if actor.OrganizationID == 0 || actor.UserID == 0 {
		return apperr.Validation("actor organization and user are required")
	}
	if !actor.Role.AtLeast(min) {
		return apperr.Validation("role %s may not perform this action", actor.Role)
	}
	return nil
}

// history builds one audit row for the actor.
func history(actor models.Actor, entityType string, entityID int64, action, notes string) *models.HistoryEntry {
	return &models.HistoryEntry{
		OrganizationID: actor.OrganizationID,
		EntityType:     entityType,
		EntityID:       entityID,
		Action:         action,
		Notes:          notes,
		ActorID:        actor.UserID,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
	}
}

// fieldChange is history with before and after values.
func fieldChange(actor models.Actor, entityType string, entityID int64, field, oldValue, newValue string) *models.HistoryEntry {
	e := history(actor, entityType, entityID, "update", "")
	e.FieldName = &field
	e.OldValue = &oldValue
	e.NewValue = &newValue
	return e
}

func activity(actor models.Actor, action, description string) *models.ActivityEntry {
	return &models.ActivityEntry{
		OrganizationID: actor.OrganizationID,
		UserID:         actor.UserID,
		Action:         action,
		Description:    description,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
	}
}

func ptr[T any](v T) *T { return &v }
