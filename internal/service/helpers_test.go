package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"workshop-service/internal/models"
	"workshop-service/internal/redisclient"
	"workshop-service/internal/store/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	requestor  = models.Actor{UserID: 9, OrganizationID: 1, Role: models.RoleRequestor}
	technician = models.Actor{UserID: 10, OrganizationID: 1, Role: models.RoleTechnician}
	approver   = models.Actor{UserID: 11, OrganizationID: 1, Role: models.RoleApprover}
	admin      = models.Actor{UserID: 12, OrganizationID: 1, Role: models.RoleAdmin}

	fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
)

type recordedEvents struct {
	mu       sync.Mutex
	statuses []*models.QuotationStatusChangedEvent
	bills    []*models.BillGeneratedEvent
	payments []*models.PaymentRecordedEvent
	stockLow []*models.StockLowEvent
}

func (r *recordedEvents) PublishQuotationStatusChanged(ctx context.Context, e *models.QuotationStatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, e)
	return nil
}

func (r *recordedEvents) PublishBillGenerated(ctx context.Context, e *models.BillGeneratedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bills = append(r.bills, e)
	return nil
}

func (r *recordedEvents) PublishPaymentRecorded(ctx context.Context, e *models.PaymentRecordedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, e)
	return nil
}

func (r *recordedEvents) PublishStockLow(ctx context.Context, e *models.StockLowEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stockLow = append(r.stockLow, e)
	return nil
}

type stockCache struct {
	mu     sync.Mutex
	levels map[int64]int
}

func (c *stockCache) SetStockLevel(ctx context.Context, item models.InventoryItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.levels == nil {
		c.levels = map[int64]int{}
	}
	c.levels[item.ID] = item.AvailableStock()
	return nil
}

// memoryGuard behaves like the Redis idempotency scripts.
type memoryGuard struct {
	mu     sync.Mutex
	values map[string]string
}

func (g *memoryGuard) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.values == nil {
		g.values = map[string]string{}
	}
	if prev, ok := g.values[key]; ok {
		return prev, false, nil
	}
	g.values[key] = redisclient.Pending
	return "", true, nil
}

func (g *memoryGuard) Complete(ctx context.Context, key, value string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[key] = value
	return nil
}

func (g *memoryGuard) Abandon(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.values[key] == redisclient.Pending {
		delete(g.values, key)
	}
	return nil
}

type fixture struct {
	repo      *memstore.Store
	events    *recordedEvents
	cache     *stockCache
	guard     *memoryGuard
	inventory *InventoryService
	quotes    *QuotationService
	billing   *BillingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memstore.New()
	f := &fixture{
		repo:   repo,
		events: &recordedEvents{},
		cache:  &stockCache{},
		guard:  &memoryGuard{},
	}
	deps := Deps{
		Repo:        repo,
		Sequences:   NewSequenceGenerator(repo, 3, time.Millisecond),
		Events:      f.events,
		StockCache:  f.cache,
		Idempotency: f.guard,
		Now:         func() time.Time { return fixedNow },
	}
	f.inventory = NewInventoryService(deps)
	f.quotes = NewQuotationService(deps, f.inventory, decimal.NewFromInt(18))
	f.billing = NewBillingService(deps, time.Hour)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) createQuotation(t *testing.T, base string, items ...ItemInput) *models.Quotation {
	t.Helper()
	q, err := f.quotes.Create(context.Background(), technician, QuotationInput{
		Customer:          models.Customer{Name: "Asha Rao", Phone: "9800000000"},
		Vehicle:           models.Vehicle{Make: "Maruti", Model: "Swift", Registration: "KA01AB1234"},
		BaseServiceCharge: dec(base),
		Items:             items,
	})
	require.NoError(t, err)
	return q
}

// approve sends q and approves its pending approval.
func (f *fixture) approve(t *testing.T, q *models.Quotation, lines ...AllocationLine) *models.Quotation {
	t.Helper()
	ctx := context.Background()
	_, err := f.quotes.Send(ctx, technician, q.ID, "")
	require.NoError(t, err)
	approval := f.pendingApproval(t, q.ID)
	q, err = f.quotes.ProcessApproval(ctx, approver, approval.ID, DecisionApprove, "ok", lines)
	require.NoError(t, err)
	return q
}

// repaired drives q from pending to repair_complete.
func (f *fixture) repaired(t *testing.T, q *models.Quotation) *models.Quotation {
	t.Helper()
	ctx := context.Background()
	f.approve(t, q)
	_, err := f.quotes.StartRepair(ctx, technician, q.ID, "")
	require.NoError(t, err)
	q, err = f.quotes.CompleteRepair(ctx, technician, q.ID, "")
	require.NoError(t, err)
	return q
}

func (f *fixture) pendingApproval(t *testing.T, quotationID int64) *models.Approval {
	t.Helper()
	approvals, err := f.quotes.Approvals(context.Background(), technician, quotationID)
	require.NoError(t, err)
	for i := range approvals {
		if approvals[i].Status == models.ApprovalPending {
			return &approvals[i]
		}
	}
	t.Fatalf("no pending approval for quotation %d", quotationID)
	return nil
}

func (f *fixture) createItem(t *testing.T, code string, stock, reorder int) *models.InventoryItem {
	t.Helper()
	item, err := f.inventory.CreateItem(context.Background(), admin, CreateItemInput{
		ItemCode:     code,
		Name:         "Brake pad " + code,
		OpeningStock: stock,
		ReorderLevel: reorder,
		UnitCost:     dec("150.00"),
		SellingPrice: dec("250.00"),
	})
	require.NoError(t, err)
	return item
}
