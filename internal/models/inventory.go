package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is an organization-scoped stock-keeping unit.
// AvailableStock is always CurrentStock - AllocatedStock.
type InventoryItem struct {
	ID             int64           `db:"id" json:"id"`
	OrganizationID int64           `db:"organization_id" json:"organization_id"`
	ItemCode       string          `db:"item_code" json:"item_code"`
	Name           string          `db:"name" json:"name"`
	Unit           string          `db:"unit" json:"unit"`
	CurrentStock   int             `db:"current_stock" json:"current_stock"`
	AllocatedStock int             `db:"allocated_stock" json:"allocated_stock"`
	ReorderLevel   int             `db:"reorder_level" json:"reorder_level"`
	UnitCost       decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	SellingPrice   decimal.Decimal `db:"selling_price" json:"selling_price"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// AvailableStock is the stock that can still be allocated.
func (i InventoryItem) AvailableStock() int {
	return i.CurrentStock - i.AllocatedStock
}

// BelowReorder reports whether the available level has reached the reorder
// threshold.
func (i InventoryItem) BelowReorder() bool {
	return i.ReorderLevel > 0 && i.AvailableStock() <= i.ReorderLevel
}

// AllocationStatus of a stock reservation.
type AllocationStatus string

const (
	AllocationActive   AllocationStatus = "allocated"
	AllocationConsumed AllocationStatus = "consumed"
	AllocationReleased AllocationStatus = "released"
)

// InventoryAllocation reserves stock of one item against one quotation.
type InventoryAllocation struct {
	ID                int64            `db:"id" json:"id"`
	OrganizationID    int64            `db:"organization_id" json:"organization_id"`
	ItemID            int64            `db:"item_id" json:"item_id"`
	QuotationID       int64            `db:"quotation_id" json:"quotation_id"`
	AllocatedQuantity int              `db:"allocated_quantity" json:"allocated_quantity"`
	ConsumedQuantity  int              `db:"consumed_quantity" json:"consumed_quantity"`
	Status            AllocationStatus `db:"status" json:"status"`
	Notes             string           `db:"notes" json:"notes"`
	CreatedBy         int64            `db:"created_by" json:"created_by"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// InventoryTxType is the kind of ledger row.
type InventoryTxType string

const (
	InventoryTxPurchase    InventoryTxType = "purchase"
	InventoryTxAdjustment  InventoryTxType = "adjustment"
	InventoryTxAllocation  InventoryTxType = "allocation"
	InventoryTxConsumption InventoryTxType = "consumption"
	InventoryTxRelease     InventoryTxType = "release"
)

// InventoryTransaction is an append-only ledger row. RunningBalance is the
// available stock right after the mutation.
type InventoryTransaction struct {
	ID              int64           `db:"id" json:"id"`
	OrganizationID  int64           `db:"organization_id" json:"organization_id"`
	ItemID          int64           `db:"item_id" json:"item_id"`
	TransactionType InventoryTxType `db:"transaction_type" json:"transaction_type"`
	Quantity        int             `db:"quantity" json:"quantity"`
	CurrentStock    int             `db:"current_stock" json:"current_stock"`
	AllocatedStock  int             `db:"allocated_stock" json:"allocated_stock"`
	RunningBalance  int             `db:"running_balance" json:"running_balance"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	QuotationID     *int64          `db:"quotation_id" json:"quotation_id,omitempty"`
	AllocationID    *int64          `db:"allocation_id" json:"allocation_id,omitempty"`
	Reference       string          `db:"reference" json:"reference"`
	Notes           string          `db:"notes" json:"notes"`
	CreatedBy       int64           `db:"created_by" json:"created_by"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
