package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotationStatus is the lifecycle state of a quotation. Legal moves between
// states live in the lifecycle package.
type QuotationStatus string

const (
	StatusPending          QuotationStatus = "pending"
	StatusSent             QuotationStatus = "sent"
	StatusApproved         QuotationStatus = "approved"
	StatusRejected         QuotationStatus = "rejected"
	StatusRepairInProgress QuotationStatus = "repair_in_progress"
	StatusRepairComplete   QuotationStatus = "repair_complete"
	StatusBillGenerated    QuotationStatus = "bill_generated"
	StatusPaid             QuotationStatus = "paid"
	StatusCancelled        QuotationStatus = "cancelled"
)

// Priority of the requested work.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ItemType of a quotation line.
type ItemType string

const (
	ItemTypeParts ItemType = "parts"
	ItemTypeMisc  ItemType = "misc"
)

// Customer identity captured on requests and quotations.
type Customer struct {
	Name    string `db:"customer_name" json:"customer_name"`
	Phone   string `db:"customer_phone" json:"customer_phone"`
	Email   string `db:"customer_email" json:"customer_email,omitempty"`
	Address string `db:"customer_address" json:"customer_address,omitempty"`
}

// Vehicle identity captured on requests and quotations.
type Vehicle struct {
	Make         string `db:"vehicle_make" json:"vehicle_make"`
	Model        string `db:"vehicle_model" json:"vehicle_model"`
	Year         int    `db:"vehicle_year" json:"vehicle_year,omitempty"`
	Registration string `db:"vehicle_registration" json:"vehicle_registration"`
	VIN          string `db:"vehicle_vin" json:"vehicle_vin,omitempty"`
}

// Quotation is a priced estimate of repair work.
type Quotation struct {
	ID               int64  `db:"id" json:"id"`
	OrganizationID   int64  `db:"organization_id" json:"organization_id"`
	QuotationNumber  string `db:"quotation_number" json:"quotation_number"`
	ServiceRequestID *int64 `db:"service_request_id" json:"service_request_id,omitempty"`
	Customer
	Vehicle
	ProblemDescription string          `db:"problem_description" json:"problem_description"`
	WorkDescription    string          `db:"work_description" json:"work_description"`
	Priority           Priority        `db:"priority" json:"priority"`
	BaseServiceCharge  decimal.Decimal `db:"base_service_charge" json:"base_service_charge"`
	PartsTotal         decimal.Decimal `db:"parts_total" json:"parts_total"`
	Subtotal           decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxRate            decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	TaxAmount          decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status             QuotationStatus `db:"status" json:"status"`
	CreatedBy          int64           `db:"created_by" json:"created_by"`
	ApprovedBy         *int64          `db:"approved_by" json:"approved_by,omitempty"`
	AssignedTo         *int64          `db:"assigned_to" json:"assigned_to,omitempty"`
	SentAt             *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	ApprovedAt         *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt         *time.Time      `db:"rejected_at" json:"rejected_at,omitempty"`
	RepairStartedAt    *time.Time      `db:"repair_started_at" json:"repair_started_at,omitempty"`
	RepairCompletedAt  *time.Time      `db:"repair_completed_at" json:"repair_completed_at,omitempty"`
	BillGeneratedAt    *time.Time      `db:"bill_generated_at" json:"bill_generated_at,omitempty"`
	PaidAt             *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CancelledAt        *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`

	Items []QuotationItem `db:"-" json:"items,omitempty"`
}

// QuotationItem is a line entry owned by exactly one quotation.
type QuotationItem struct {
	ID          int64           `db:"id" json:"id"`
	QuotationID int64           `db:"quotation_id" json:"quotation_id"`
	ItemType    ItemType        `db:"item_type" json:"item_type"`
	Description string          `db:"description" json:"description"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	Rate        decimal.Decimal `db:"rate" json:"rate"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
}

// QuotationFilter narrows List queries.
type QuotationFilter struct {
	OrganizationID int64
	Status         QuotationStatus
	AssignedTo     int64
	Page           Page
}

// StatusStamp describes one guarded status write.
type StatusStamp struct {
	From       QuotationStatus
	To         QuotationStatus
	At         time.Time
	ApprovedBy *int64
}

// ApprovalStatus of an approval gate.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// Approval links a sent quotation to its approver.
type Approval struct {
	ID             int64          `db:"id" json:"id"`
	OrganizationID int64          `db:"organization_id" json:"organization_id"`
	QuotationID    int64          `db:"quotation_id" json:"quotation_id"`
	ApproverID     *int64         `db:"approver_id" json:"approver_id,omitempty"`
	Status         ApprovalStatus `db:"status" json:"status"`
	Notes          string         `db:"notes" json:"notes"`
	ApprovedAt     *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// WorkOrderStatus tracks repair progress.
type WorkOrderStatus string

const (
	WorkOrderOpen       WorkOrderStatus = "open"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderCancelled  WorkOrderStatus = "cancelled"
)

// WorkOrder is created when a quotation is approved.
type WorkOrder struct {
	ID             int64           `db:"id" json:"id"`
	OrganizationID int64           `db:"organization_id" json:"organization_id"`
	QuotationID    int64           `db:"quotation_id" json:"quotation_id"`
	AssignedTo     *int64          `db:"assigned_to" json:"assigned_to,omitempty"`
	Status         WorkOrderStatus `db:"status" json:"status"`
	CreatedBy      int64           `db:"created_by" json:"created_by"`
	StartedAt      *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ServiceRequestStatus of a customer request.
type ServiceRequestStatus string

const (
	RequestOpen      ServiceRequestStatus = "open"
	RequestConverted ServiceRequestStatus = "converted"
	RequestClosed    ServiceRequestStatus = "closed"
)

// ServiceRequest is filed by a customer or walk-in before pricing.
type ServiceRequest struct {
	ID             int64  `db:"id" json:"id"`
	OrganizationID int64  `db:"organization_id" json:"organization_id"`
	RequestNumber  string `db:"request_number" json:"request_number"`
	Customer
	Vehicle
	ProblemDescription string               `db:"problem_description" json:"problem_description"`
	Priority           Priority             `db:"priority" json:"priority"`
	Status             ServiceRequestStatus `db:"status" json:"status"`
	QuotationID        *int64               `db:"quotation_id" json:"quotation_id,omitempty"`
	CreatedBy          int64                `db:"created_by" json:"created_by"`
	CreatedAt          time.Time            `db:"created_at" json:"created_at"`
}
