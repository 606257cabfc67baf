// Package memstore is an in-process implementation of store.Repository.
// It backs DATABASE_DRIVER=memory and the service and handler tests.
//
// Transactions are serialized on one mutex and roll back by restoring a
// snapshot taken when the transaction began.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/lifecycle"
	"workshop-service/internal/models"
	"workshop-service/internal/store"

	"github.com/shopspring/decimal"
)

// errCheckViolation stands in for the table CHECK constraints.
var errCheckViolation = errors.New("check constraint violated")

type seqKey struct {
	org  int64
	kind models.SequenceKind
	year int
}

type prefixKey struct {
	org  int64
	kind models.SequenceKind
}

type state struct {
	lastID int64

	quotations  map[int64]models.Quotation
	items       map[int64][]models.QuotationItem
	approvals   map[int64]models.Approval
	workOrders  map[int64]models.WorkOrder
	requests    map[int64]models.ServiceRequest
	inventory   map[int64]models.InventoryItem
	allocations map[int64]models.InventoryAllocation
	invTxs      []models.InventoryTransaction
	bills       map[int64]models.Bill
	payments    []models.PaymentTransaction
	statusLog   []models.StatusLogEntry
	history     []models.HistoryEntry
	activity    []models.ActivityEntry
	sequences   map[seqKey]int
	prefixes    map[prefixKey]string
	processed   map[string]string
}

func newState() *state {
	return &state{
		quotations:  map[int64]models.Quotation{},
		items:       map[int64][]models.QuotationItem{},
		approvals:   map[int64]models.Approval{},
		workOrders:  map[int64]models.WorkOrder{},
		requests:    map[int64]models.ServiceRequest{},
		inventory:   map[int64]models.InventoryItem{},
		allocations: map[int64]models.InventoryAllocation{},
		bills:       map[int64]models.Bill{},
		sequences:   map[seqKey]int{},
		prefixes:    map[prefixKey]string{},
		processed:   map[string]string{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.lastID = s.lastID
	for k, v := range s.quotations {
		c.quotations[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]models.QuotationItem(nil), v...)
	}
	for k, v := range s.approvals {
		c.approvals[k] = v
	}
	for k, v := range s.workOrders {
		c.workOrders[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	for k, v := range s.bills {
		c.bills[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.prefixes {
		c.prefixes[k] = v
	}
	for k, v := range s.processed {
		c.processed[k] = v
	}
	c.invTxs = append([]models.InventoryTransaction(nil), s.invTxs...)
	c.payments = append([]models.PaymentTransaction(nil), s.payments...)
	c.statusLog = append([]models.StatusLogEntry(nil), s.statusLog...)
	c.history = append([]models.HistoryEntry(nil), s.history...)
	c.activity = append([]models.ActivityEntry(nil), s.activity...)
	return c
}

func (s *state) nextID() int64 {
	s.lastID++
	return s.lastID
}

// Store keeps every table in memory.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// SetPrefix configures the document prefix of an organization.
func (s *Store) SetPrefix(orgID int64, kind models.SequenceKind, prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.prefixes[prefixKey{orgID, kind}] = prefix
}

// WithTx runs fn with exclusive access. fn must only use the Tx it is
// given; calling back into the Store deadlocks.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, &tx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) NextSequence(ctx context.Context, orgID int64, kind models.SequenceKind, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.nextSequence(orgID, kind, year), nil
}

func (s *Store) DocumentPrefix(ctx context.Context, orgID int64, kind models.SequenceKind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.documentPrefix(orgID, kind), nil
}

func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.st.processed[eventID]
	return ok, nil
}

func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.processed[eventID]; !ok {
		s.st.processed[eventID] = eventType
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (st *state) nextSequence(orgID int64, kind models.SequenceKind, year int) int {
	k := seqKey{orgID, kind, year}
	st.sequences[k]++
	return st.sequences[k]
}

func (st *state) documentPrefix(orgID int64, kind models.SequenceKind) string {
	if p := st.prefixes[prefixKey{orgID, kind}]; p != "" {
		return p
	}
	return kind.DefaultPrefix()
}

// Reader

func (s *Store) GetQuotation(ctx context.Context, orgID, id int64) (*models.Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.quotation(orgID, id)
}

func (st *state) quotation(orgID, id int64) (*models.Quotation, error) {
	q, ok := st.quotations[id]
	if !ok || q.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityQuotation, id)
	}
	q.Items = append([]models.QuotationItem(nil), st.items[id]...)
	return &q, nil
}

func (s *Store) ListQuotations(ctx context.Context, filter models.QuotationFilter) ([]models.Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Quotation
	for _, q := range s.st.quotations {
		if q.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if filter.AssignedTo != 0 && (q.AssignedTo == nil || *q.AssignedTo != filter.AssignedTo) {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	page := filter.Page.Normalize()
	if page.Offset >= len(out) {
		return nil, nil
	}
	out = out[page.Offset:]
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (s *Store) GetApproval(ctx context.Context, orgID, id int64) (*models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.st.approvals[id]
	if !ok || a.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityApproval, id)
	}
	return &a, nil
}

func (s *Store) ListApprovals(ctx context.Context, orgID, quotationID int64) ([]models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Approval
	for _, a := range s.st.approvals {
		if a.QuotationID == quotationID && a.OrganizationID == orgID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetWorkOrderByQuotation(ctx context.Context, orgID, quotationID int64) (*models.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w := s.st.workOrderByQuotation(orgID, quotationID); w != nil {
		return w, nil
	}
	return nil, apperr.NotFound(models.EntityWorkOrder, quotationID)
}

func (st *state) workOrderByQuotation(orgID, quotationID int64) *models.WorkOrder {
	for _, w := range st.workOrders {
		if w.QuotationID == quotationID && w.OrganizationID == orgID {
			w := w
			return &w
		}
	}
	return nil
}

func (s *Store) GetServiceRequest(ctx context.Context, orgID, id int64) (*models.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.st.requests[id]
	if !ok || r.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityServiceRequest, id)
	}
	return &r, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, orgID, id int64) (*models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.inventoryItem(orgID, id)
}

func (st *state) inventoryItem(orgID, id int64) (*models.InventoryItem, error) {
	item, ok := st.inventory[id]
	if !ok || item.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityInventoryItem, id)
	}
	return &item, nil
}

func (s *Store) ListAllocations(ctx context.Context, orgID, quotationID int64) ([]models.InventoryAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.allocationsOf(orgID, quotationID, ""), nil
}

func (st *state) allocationsOf(orgID, quotationID int64, status models.AllocationStatus) []models.InventoryAllocation {
	var out []models.InventoryAllocation
	for _, a := range st.allocations {
		if a.QuotationID != quotationID || a.OrganizationID != orgID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListInventoryTransactions(ctx context.Context, orgID, itemID int64) ([]models.InventoryTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.InventoryTransaction
	for _, t := range s.st.invTxs {
		if t.ItemID == itemID && t.OrganizationID == orgID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) GetBill(ctx context.Context, orgID, id int64) (*models.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.st.bills[id]
	if !ok || b.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityBill, id)
	}
	return &b, nil
}

func (s *Store) ListPayments(ctx context.Context, orgID, billID int64) ([]models.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PaymentTransaction
	for _, p := range s.st.payments {
		if p.BillID == billID && p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) GetPayment(ctx context.Context, orgID, id int64) (*models.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.st.payments {
		if p.ID == id && p.OrganizationID == orgID {
			p := p
			return &p, nil
		}
	}
	return nil, apperr.NotFound("payment", id)
}

func (s *Store) ListStatusLog(ctx context.Context, orgID, quotationID int64) ([]models.StatusLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StatusLogEntry
	for _, e := range s.st.statusLog {
		if e.QuotationID == quotationID && e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListHistory(ctx context.Context, orgID int64, entityType string, entityID int64) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.HistoryEntry
	for _, e := range s.st.history {
		if e.OrganizationID == orgID && e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Activity returns every activity row. Tests use it; there is no HTTP
// surface for it.
func (s *Store) Activity() []models.ActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ActivityEntry(nil), s.st.activity...)
}

// tx is the write side. The owning Store's mutex is held for its lifetime.
type tx struct {
	st *state
}

var _ store.Tx = (*tx)(nil)

func (t *tx) LockQuotation(ctx context.Context, orgID, id int64) (*models.Quotation, error) {
	return t.st.quotation(orgID, id)
}

func (t *tx) InsertQuotation(ctx context.Context, q *models.Quotation) error {
	for _, other := range t.st.quotations {
		if other.OrganizationID == q.OrganizationID && other.QuotationNumber == q.QuotationNumber {
			return apperr.Precondition(apperr.ErrDuplicate, "quotation number %s already exists", q.QuotationNumber)
		}
	}
	now := time.Now().UTC()
	q.ID = t.st.nextID()
	q.CreatedAt, q.UpdatedAt = now, now
	row := *q
	row.Items = nil
	t.st.quotations[q.ID] = row
	return nil
}

func (t *tx) UpdateQuotationDetails(ctx context.Context, q *models.Quotation) error {
	cur, ok := t.st.quotations[q.ID]
	if !ok || cur.OrganizationID != q.OrganizationID {
		return apperr.NotFound(models.EntityQuotation, q.ID)
	}
	cur.Customer = q.Customer
	cur.Vehicle = q.Vehicle
	cur.ProblemDescription = q.ProblemDescription
	cur.WorkDescription = q.WorkDescription
	cur.Priority = q.Priority
	cur.BaseServiceCharge = q.BaseServiceCharge
	cur.PartsTotal = q.PartsTotal
	cur.Subtotal = q.Subtotal
	cur.TaxRate = q.TaxRate
	cur.TaxAmount = q.TaxAmount
	cur.TotalAmount = q.TotalAmount
	cur.UpdatedAt = time.Now().UTC()
	t.st.quotations[q.ID] = cur
	return nil
}

func (t *tx) ReplaceQuotationItems(ctx context.Context, quotationID int64, items []models.QuotationItem) error {
	rows := make([]models.QuotationItem, len(items))
	for i := range items {
		items[i].ID = t.st.nextID()
		items[i].QuotationID = quotationID
		rows[i] = items[i]
	}
	t.st.items[quotationID] = rows
	return nil
}

func (t *tx) UpdateQuotationStatus(ctx context.Context, orgID, id int64, stamp models.StatusStamp) (bool, error) {
	q, ok := t.st.quotations[id]
	if !ok || q.OrganizationID != orgID || q.Status != stamp.From {
		return false, nil
	}
	q.Status = stamp.To
	q.UpdatedAt = stamp.At
	lifecycle.Stamp(&q, stamp.To, stamp.At)
	if stamp.ApprovedBy != nil {
		by := *stamp.ApprovedBy
		q.ApprovedBy = &by
	}
	t.st.quotations[id] = q
	return true, nil
}

func (t *tx) SetQuotationAssignee(ctx context.Context, orgID, id, userID int64) error {
	q, ok := t.st.quotations[id]
	if !ok || q.OrganizationID != orgID {
		return apperr.NotFound(models.EntityQuotation, id)
	}
	q.AssignedTo = &userID
	q.UpdatedAt = time.Now().UTC()
	t.st.quotations[id] = q
	return nil
}

func (t *tx) InsertApproval(ctx context.Context, a *models.Approval) error {
	a.ID = t.st.nextID()
	a.CreatedAt = time.Now().UTC()
	t.st.approvals[a.ID] = *a
	return nil
}

func (t *tx) LockApproval(ctx context.Context, orgID, id int64) (*models.Approval, error) {
	a, ok := t.st.approvals[id]
	if !ok || a.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityApproval, id)
	}
	return &a, nil
}

func (t *tx) LockPendingApproval(ctx context.Context, orgID, quotationID int64) (*models.Approval, error) {
	var found *models.Approval
	for _, a := range t.st.approvals {
		if a.QuotationID != quotationID || a.OrganizationID != orgID || a.Status != models.ApprovalPending {
			continue
		}
		if found == nil || a.ID > found.ID {
			a := a
			found = &a
		}
	}
	return found, nil
}

func (t *tx) UpdateApproval(ctx context.Context, a *models.Approval) error {
	if _, ok := t.st.approvals[a.ID]; !ok {
		return apperr.NotFound(models.EntityApproval, a.ID)
	}
	t.st.approvals[a.ID] = *a
	return nil
}

func (t *tx) InsertWorkOrder(ctx context.Context, w *models.WorkOrder) error {
	if t.st.workOrderByQuotation(w.OrganizationID, w.QuotationID) != nil {
		return apperr.Precondition(apperr.ErrDuplicate, "work order already exists")
	}
	w.ID = t.st.nextID()
	w.CreatedAt = time.Now().UTC()
	t.st.workOrders[w.ID] = *w
	return nil
}

func (t *tx) LockWorkOrderByQuotation(ctx context.Context, orgID, quotationID int64) (*models.WorkOrder, error) {
	return t.st.workOrderByQuotation(orgID, quotationID), nil
}

func (t *tx) UpdateWorkOrder(ctx context.Context, w *models.WorkOrder) error {
	if _, ok := t.st.workOrders[w.ID]; !ok {
		return apperr.NotFound(models.EntityWorkOrder, w.ID)
	}
	t.st.workOrders[w.ID] = *w
	return nil
}

func (t *tx) InsertServiceRequest(ctx context.Context, r *models.ServiceRequest) error {
	r.ID = t.st.nextID()
	r.CreatedAt = time.Now().UTC()
	t.st.requests[r.ID] = *r
	return nil
}

func (t *tx) LockServiceRequest(ctx context.Context, orgID, id int64) (*models.ServiceRequest, error) {
	r, ok := t.st.requests[id]
	if !ok || r.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityServiceRequest, id)
	}
	return &r, nil
}

func (t *tx) UpdateServiceRequest(ctx context.Context, r *models.ServiceRequest) error {
	cur, ok := t.st.requests[r.ID]
	if !ok || cur.OrganizationID != r.OrganizationID {
		return apperr.NotFound(models.EntityServiceRequest, r.ID)
	}
	cur.Status = r.Status
	cur.QuotationID = r.QuotationID
	t.st.requests[r.ID] = cur
	return nil
}

func (t *tx) InsertInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	for _, other := range t.st.inventory {
		if other.OrganizationID == item.OrganizationID && other.ItemCode == item.ItemCode {
			return apperr.Precondition(apperr.ErrDuplicate, "item code %s already exists", item.ItemCode)
		}
	}
	now := time.Now().UTC()
	item.ID = t.st.nextID()
	item.CreatedAt, item.UpdatedAt = now, now
	t.st.inventory[item.ID] = *item
	return nil
}

func (t *tx) LockInventoryItem(ctx context.Context, orgID, id int64) (*models.InventoryItem, error) {
	return t.st.inventoryItem(orgID, id)
}

func (t *tx) UpdateInventoryStock(ctx context.Context, item *models.InventoryItem) error {
	cur, ok := t.st.inventory[item.ID]
	if !ok || cur.OrganizationID != item.OrganizationID {
		return apperr.NotFound(models.EntityInventoryItem, item.ID)
	}
	if item.AllocatedStock < 0 || item.CurrentStock-item.AllocatedStock < 0 {
		return apperr.Persistence("update inventory stock", errCheckViolation)
	}
	cur.CurrentStock = item.CurrentStock
	cur.AllocatedStock = item.AllocatedStock
	cur.UpdatedAt = time.Now().UTC()
	item.UpdatedAt = cur.UpdatedAt
	t.st.inventory[item.ID] = cur
	return nil
}

func (t *tx) LockActiveAllocation(ctx context.Context, orgID, quotationID, itemID int64) (*models.InventoryAllocation, error) {
	for _, a := range t.st.allocationsOf(orgID, quotationID, models.AllocationActive) {
		if a.ItemID == itemID {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (t *tx) LockAllocation(ctx context.Context, orgID, id int64) (*models.InventoryAllocation, error) {
	a, ok := t.st.allocations[id]
	if !ok || a.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityAllocation, id)
	}
	return &a, nil
}

func (t *tx) LockActiveAllocations(ctx context.Context, orgID, quotationID int64) ([]models.InventoryAllocation, error) {
	allocs := t.st.allocationsOf(orgID, quotationID, models.AllocationActive)
	sort.Slice(allocs, func(i, j int) bool { return allocs[i].ItemID < allocs[j].ItemID })
	return allocs, nil
}

func (t *tx) InsertAllocation(ctx context.Context, a *models.InventoryAllocation) error {
	now := time.Now().UTC()
	a.ID = t.st.nextID()
	a.CreatedAt, a.UpdatedAt = now, now
	t.st.allocations[a.ID] = *a
	return nil
}

func (t *tx) UpdateAllocation(ctx context.Context, a *models.InventoryAllocation) error {
	if _, ok := t.st.allocations[a.ID]; !ok {
		return apperr.NotFound(models.EntityAllocation, a.ID)
	}
	a.UpdatedAt = time.Now().UTC()
	t.st.allocations[a.ID] = *a
	return nil
}

func (t *tx) InsertInventoryTransaction(ctx context.Context, tr *models.InventoryTransaction) error {
	tr.ID = t.st.nextID()
	tr.CreatedAt = time.Now().UTC()
	t.st.invTxs = append(t.st.invTxs, *tr)
	return nil
}

func (t *tx) FindBillByQuotation(ctx context.Context, orgID, quotationID int64) (*models.Bill, error) {
	for _, b := range t.st.bills {
		if b.QuotationID == quotationID && b.OrganizationID == orgID {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

func (t *tx) InsertBill(ctx context.Context, b *models.Bill) error {
	for _, other := range t.st.bills {
		if other.QuotationID == b.QuotationID {
			return apperr.Precondition(apperr.ErrDuplicate, "bill already exists")
		}
	}
	now := time.Now().UTC()
	b.ID = t.st.nextID()
	b.CreatedAt, b.UpdatedAt = now, now
	t.st.bills[b.ID] = *b
	return nil
}

func (t *tx) LockBill(ctx context.Context, orgID, id int64) (*models.Bill, error) {
	b, ok := t.st.bills[id]
	if !ok || b.OrganizationID != orgID {
		return nil, apperr.NotFound(models.EntityBill, id)
	}
	return &b, nil
}

func (t *tx) UpdateBillPayment(ctx context.Context, b *models.Bill) error {
	cur, ok := t.st.bills[b.ID]
	if !ok || cur.OrganizationID != b.OrganizationID {
		return apperr.NotFound(models.EntityBill, b.ID)
	}
	if b.PaidAmount.GreaterThan(cur.TotalAmount) {
		return apperr.Persistence("update bill payment", errCheckViolation)
	}
	cur.PaidAmount = b.PaidAmount
	cur.BalanceAmount = b.BalanceAmount
	cur.PaymentStatus = b.PaymentStatus
	cur.PaidAt = b.PaidAt
	cur.UpdatedAt = time.Now().UTC()
	b.UpdatedAt = cur.UpdatedAt
	t.st.bills[b.ID] = cur
	return nil
}

func (t *tx) InsertPayment(ctx context.Context, p *models.PaymentTransaction) error {
	p.ID = t.st.nextID()
	p.CreatedAt = time.Now().UTC()
	t.st.payments = append(t.st.payments, *p)
	return nil
}

func (t *tx) SumPayments(ctx context.Context, billID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range t.st.payments {
		if p.BillID == billID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (t *tx) NextSequence(ctx context.Context, orgID int64, kind models.SequenceKind, year int) (int, error) {
	return t.st.nextSequence(orgID, kind, year), nil
}

func (t *tx) DocumentPrefix(ctx context.Context, orgID int64, kind models.SequenceKind) (string, error) {
	return t.st.documentPrefix(orgID, kind), nil
}

func (t *tx) InsertStatusLog(ctx context.Context, e *models.StatusLogEntry) error {
	e.ID = t.st.nextID()
	e.CreatedAt = time.Now().UTC()
	t.st.statusLog = append(t.st.statusLog, *e)
	return nil
}

func (t *tx) InsertHistory(ctx context.Context, e *models.HistoryEntry) error {
	e.ID = t.st.nextID()
	e.CreatedAt = time.Now().UTC()
	t.st.history = append(t.st.history, *e)
	return nil
}

func (t *tx) InsertActivity(ctx context.Context, e *models.ActivityEntry) error {
	e.ID = t.st.nextID()
	e.CreatedAt = time.Now().UTC()
	t.st.activity = append(t.st.activity, *e)
	return nil
}
