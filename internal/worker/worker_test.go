package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"workshop-service/internal/models"
	"workshop-service/internal/service"
	"workshop-service/internal/store/memstore"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tech  = models.Actor{UserID: 5, OrganizationID: 3, Role: models.RoleTechnician}
	admin = models.Actor{UserID: 6, OrganizationID: 3, Role: models.RoleAdmin}
)

type statusSink struct {
	mu     sync.Mutex
	events []*models.QuotationStatusChangedEvent
}

func (s *statusSink) PublishQuotationStatusChanged(ctx context.Context, e *models.QuotationStatusChangedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *statusSink) PublishBillGenerated(ctx context.Context, e *models.BillGeneratedEvent) error {
	return nil
}

func (s *statusSink) PublishPaymentRecorded(ctx context.Context, e *models.PaymentRecordedEvent) error {
	return nil
}

func (s *statusSink) PublishStockLow(ctx context.Context, e *models.StockLowEvent) error {
	return nil
}

type countingBiller struct {
	Biller
	calls int
}

func (c *countingBiller) GenerateBill(ctx context.Context, actor models.Actor, quotationID int64, in service.BillInput) (*models.Bill, error) {
	c.calls++
	return c.Biller.GenerateBill(ctx, actor, quotationID, in)
}

type fakeLocker struct {
	held map[string]bool
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	delete(l.held, key)
	return nil
}

type env struct {
	repo    *memstore.Store
	sink    *statusSink
	quotes  *service.QuotationService
	billing *service.BillingService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := memstore.New()
	sink := &statusSink{}
	deps := service.Deps{
		Repo:      repo,
		Sequences: service.NewSequenceGenerator(repo, 1, 0),
		Events:    sink,
	}
	inventory := service.NewInventoryService(deps)
	return &env{
		repo:    repo,
		sink:    sink,
		quotes:  service.NewQuotationService(deps, inventory, decimal.NewFromInt(18)),
		billing: service.NewBillingService(deps, time.Hour),
	}
}

// completeRepair drives a fresh quotation to repair_complete and returns
// the event announcing it.
func (e *env) completeRepair(t *testing.T) *models.QuotationStatusChangedEvent {
	t.Helper()
	ctx := context.Background()
	q, err := e.quotes.Create(ctx, tech, service.QuotationInput{
		Customer:          models.Customer{Name: "Kiran"},
		BaseServiceCharge: decimal.NewFromInt(2000),
	})
	require.NoError(t, err)
	steps := []models.QuotationStatus{
		models.StatusPending, models.StatusSent, models.StatusApproved,
		models.StatusRepairInProgress, models.StatusRepairComplete,
	}
	for i := 1; i < len(steps); i++ {
		_, err := e.quotes.Transition(ctx, admin, q.ID, steps[i-1], steps[i], "")
		require.NoError(t, err)
	}
	last := e.sink.events[len(e.sink.events)-1]
	require.Equal(t, models.StatusRepairComplete, last.ToStatus)
	return last
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestAutoBillOnRepairComplete(t *testing.T) {
	e := newEnv(t)
	biller := &countingBiller{Biller: e.billing}
	w := NewEventWorker(nil, e.repo, biller, &fakeLocker{held: map[string]bool{}}, Options{AutoBill: true})
	event := e.completeRepair(t)
	msg := message(t, event)

	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 1, biller.calls)

	q, err := e.quotes.Get(context.Background(), admin, event.QuotationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBillGenerated, q.Status)

	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 1, biller.calls)

	done, err := e.repo.IsEventProcessed(context.Background(), event.EventID)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestAutoBillTreatsExistingBillAsDone(t *testing.T) {
	e := newEnv(t)
	w := NewEventWorker(nil, e.repo, e.billing, nil, Options{AutoBill: true})
	event := e.completeRepair(t)

	_, err := e.billing.GenerateBill(context.Background(), admin, event.QuotationID, service.BillInput{})
	require.NoError(t, err)

	assert.NoError(t, w.Handle(context.Background(), message(t, event)))
}

func TestAutoBillSkipsWhileLockHeld(t *testing.T) {
	e := newEnv(t)
	event := e.completeRepair(t)
	locker := &fakeLocker{held: map[string]bool{fmt.Sprintf("autobill:3:%d", event.QuotationID): true}}
	biller := &countingBiller{Biller: e.billing}
	w := NewEventWorker(nil, e.repo, biller, locker, Options{AutoBill: true})

	require.NoError(t, w.Handle(context.Background(), message(t, event)))
	assert.Zero(t, biller.calls)

	done, err := e.repo.IsEventProcessed(context.Background(), event.EventID)
	require.NoError(t, err)
	assert.False(t, done)

	delete(locker.held, fmt.Sprintf("autobill:3:%d", event.QuotationID))
	require.NoError(t, w.Handle(context.Background(), message(t, event)))
	assert.Equal(t, 1, biller.calls)
}

func TestAutoBillDisabled(t *testing.T) {
	e := newEnv(t)
	biller := &countingBiller{Biller: e.billing}
	w := NewEventWorker(nil, e.repo, biller, nil, Options{})
	event := e.completeRepair(t)

	require.NoError(t, w.Handle(context.Background(), message(t, event)))
	assert.Zero(t, biller.calls)
}

func TestStockLowAlertHandledOnce(t *testing.T) {
	e := newEnv(t)
	w := NewEventWorker(nil, e.repo, nil, nil, Options{})

	msg := message(t, &models.StockLowEvent{
		BaseEvent:      models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeStockLow, OrganizationID: 3},
		ItemID:         8,
		ItemCode:       "OIL-5W30",
		AvailableStock: 2,
		ReorderLevel:   5,
	})
	require.NoError(t, w.Handle(context.Background(), msg))

	done, err := e.repo.IsEventProcessed(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, w.Handle(context.Background(), msg))
}

func TestStartWithoutConsumer(t *testing.T) {
	w := NewEventWorker(nil, memstore.New(), nil, nil, Options{})
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}
