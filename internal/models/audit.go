package models

import "time"

// Entity types recorded in the history log.
const (
	EntityQuotation      = "quotation"
	EntityApproval       = "approval"
	EntityWorkOrder      = "work_order"
	EntityInventoryItem  = "inventory_item"
	EntityAllocation     = "inventory_allocation"
	EntityBill           = "bill"
	EntityServiceRequest = "service_request"
)

// HistoryEntry is one append-only audit row. OldValue and NewValue are nil
// when the action has no field-level change.
type HistoryEntry struct {
	ID             int64     `db:"id" json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organization_id"`
	EntityType     string    `db:"entity_type" json:"entity_type"`
	EntityID       int64     `db:"entity_id" json:"entity_id"`
	Action         string    `db:"action" json:"action"`
	FieldName      *string   `db:"field_name" json:"field_name,omitempty"`
	OldValue       *string   `db:"old_value" json:"old_value,omitempty"`
	NewValue       *string   `db:"new_value" json:"new_value,omitempty"`
	Notes          string    `db:"notes" json:"notes"`
	ActorID        int64     `db:"actor_id" json:"actor_id"`
	IPAddress      string    `db:"ip_address" json:"ip_address"`
	UserAgent      string    `db:"user_agent" json:"user_agent"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// StatusLogEntry records one quotation status transition.
type StatusLogEntry struct {
	ID             int64           `db:"id" json:"id"`
	OrganizationID int64           `db:"organization_id" json:"organization_id"`
	QuotationID    int64           `db:"quotation_id" json:"quotation_id"`
	FromStatus     QuotationStatus `db:"from_status" json:"from_status"`
	ToStatus       QuotationStatus `db:"to_status" json:"to_status"`
	ChangedBy      int64           `db:"changed_by" json:"changed_by"`
	Notes          string          `db:"notes" json:"notes"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ActivityEntry is a user-level activity record used by reporting.
type ActivityEntry struct {
	ID             int64     `db:"id" json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organization_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Action         string    `db:"action" json:"action"`
	Description    string    `db:"description" json:"description"`
	IPAddress      string    `db:"ip_address" json:"ip_address"`
	UserAgent      string    `db:"user_agent" json:"user_agent"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// QuotationHistory bundles the audit trail of one quotation.
type QuotationHistory struct {
	StatusLog []StatusLogEntry `json:"status_log"`
	Entries   []HistoryEntry   `json:"entries"`
}
