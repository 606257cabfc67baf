package store

import (
	"context"

	"workshop-service/internal/models"

	"github.com/shopspring/decimal"
)

// Repository is what the services need from persistence. *Store (Postgres)
// and memstore.Store both implement it.
//
// Lookups are scoped by organization: an entity of another tenant is
// reported as not found.
type Repository interface {
	Reader

	// WithTx runs fn in one transaction. Any error returned by fn rolls
	// everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// NextSequence increments and returns the counter in its own statement.
	NextSequence(ctx context.Context, orgID int64, kind models.SequenceKind, year int) (int, error)
	DocumentPrefix(ctx context.Context, orgID int64, kind models.SequenceKind) (string, error)

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error

	Ping(ctx context.Context) error
	Close() error
}

// Reader holds the non-locking queries.
type Reader interface {
	GetQuotation(ctx context.Context, orgID, id int64) (*models.Quotation, error)
	ListQuotations(ctx context.Context, filter models.QuotationFilter) ([]models.Quotation, error)
	GetApproval(ctx context.Context, orgID, id int64) (*models.Approval, error)
	ListApprovals(ctx context.Context, orgID, quotationID int64) ([]models.Approval, error)
	GetWorkOrderByQuotation(ctx context.Context, orgID, quotationID int64) (*models.WorkOrder, error)
	GetServiceRequest(ctx context.Context, orgID, id int64) (*models.ServiceRequest, error)

	GetInventoryItem(ctx context.Context, orgID, id int64) (*models.InventoryItem, error)
	ListAllocations(ctx context.Context, orgID, quotationID int64) ([]models.InventoryAllocation, error)
	ListInventoryTransactions(ctx context.Context, orgID, itemID int64) ([]models.InventoryTransaction, error)

	GetBill(ctx context.Context, orgID, id int64) (*models.Bill, error)
	ListPayments(ctx context.Context, orgID, billID int64) ([]models.PaymentTransaction, error)
	GetPayment(ctx context.Context, orgID, id int64) (*models.PaymentTransaction, error)

	ListStatusLog(ctx context.Context, orgID, quotationID int64) ([]models.StatusLogEntry, error)
	ListHistory(ctx context.Context, orgID int64, entityType string, entityID int64) ([]models.HistoryEntry, error)
}

// Tx is the transactional write side. Lock* methods hold the row until the
// transaction ends.
type Tx interface {
	LockQuotation(ctx context.Context, orgID, id int64) (*models.Quotation, error)
	InsertQuotation(ctx context.Context, q *models.Quotation) error
	UpdateQuotationDetails(ctx context.Context, q *models.Quotation) error
	ReplaceQuotationItems(ctx context.Context, quotationID int64, items []models.QuotationItem) error
	// UpdateQuotationStatus writes stamp.To only while the row still holds
	// stamp.From. It reports false when no row matched.
	UpdateQuotationStatus(ctx context.Context, orgID, id int64, stamp models.StatusStamp) (bool, error)
	SetQuotationAssignee(ctx context.Context, orgID, id, userID int64) error

	InsertApproval(ctx context.Context, a *models.Approval) error
	LockApproval(ctx context.Context, orgID, id int64) (*models.Approval, error)
	// LockPendingApproval returns nil, nil when the quotation has no pending
	// approval.
	LockPendingApproval(ctx context.Context, orgID, quotationID int64) (*models.Approval, error)
	UpdateApproval(ctx context.Context, a *models.Approval) error

	InsertWorkOrder(ctx context.Context, w *models.WorkOrder) error
	// LockWorkOrderByQuotation returns nil, nil when the quotation has none.
	LockWorkOrderByQuotation(ctx context.Context, orgID, quotationID int64) (*models.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, w *models.WorkOrder) error

	InsertServiceRequest(ctx context.Context, r *models.ServiceRequest) error
	LockServiceRequest(ctx context.Context, orgID, id int64) (*models.ServiceRequest, error)
	UpdateServiceRequest(ctx context.Context, r *models.ServiceRequest) error

	InsertInventoryItem(ctx context.Context, item *models.InventoryItem) error
	LockInventoryItem(ctx context.Context, orgID, id int64) (*models.InventoryItem, error)
	UpdateInventoryStock(ctx context.Context, item *models.InventoryItem) error
	// LockActiveAllocation returns nil, nil when no active allocation exists.
	LockActiveAllocation(ctx context.Context, orgID, quotationID, itemID int64) (*models.InventoryAllocation, error)
	LockAllocation(ctx context.Context, orgID, id int64) (*models.InventoryAllocation, error)
	LockActiveAllocations(ctx context.Context, orgID, quotationID int64) ([]models.InventoryAllocation, error)
	InsertAllocation(ctx context.Context, a *models.InventoryAllocation) error
	UpdateAllocation(ctx context.Context, a *models.InventoryAllocation) error
	InsertInventoryTransaction(ctx context.Context, t *models.InventoryTransaction) error

	// FindBillByQuotation returns nil, nil when the quotation has no bill.
	FindBillByQuotation(ctx context.Context, orgID, quotationID int64) (*models.Bill, error)
	InsertBill(ctx context.Context, b *models.Bill) error
	LockBill(ctx context.Context, orgID, id int64) (*models.Bill, error)
	UpdateBillPayment(ctx context.Context, b *models.Bill) error
	InsertPayment(ctx context.Context, p *models.PaymentTransaction) error
	SumPayments(ctx context.Context, billID int64) (decimal.Decimal, error)

	NextSequence(ctx context.Context, orgID int64, kind models.SequenceKind, year int) (int, error)
	DocumentPrefix(ctx context.Context, orgID int64, kind models.SequenceKind) (string, error)

	InsertStatusLog(ctx context.Context, e *models.StatusLogEntry) error
	InsertHistory(ctx context.Context, e *models.HistoryEntry) error
	InsertActivity(ctx context.Context, e *models.ActivityEntry) error
}
