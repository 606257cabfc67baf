package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeQuotationStatusChanged = "QUOTATION_STATUS_CHANGED"
	EventTypeBillGenerated          = "BILL_GENERATED"
	EventTypePaymentRecorded        = "PAYMENT_RECORDED"
	EventTypeStockLow               = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	OrganizationID int64     `json:"organization_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// QuotationStatusChangedEvent published after a transition commits
type QuotationStatusChangedEvent struct {
	BaseEvent
	QuotationID     int64           `json:"quotation_id"`
	QuotationNumber string          `json:"quotation_number"`
	FromStatus      QuotationStatus `json:"from_status"`
	ToStatus        QuotationStatus `json:"to_status"`
	ActorID         int64           `json:"actor_id"`
}

// BillGeneratedEvent published when a bill is issued
type BillGeneratedEvent struct {
	BaseEvent
	BillID      int64           `json:"bill_id"`
	BillNumber  string          `json:"bill_number"`
	QuotationID int64           `json:"quotation_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// PaymentRecordedEvent published for every payment transaction
type PaymentRecordedEvent struct {
	BaseEvent
	BillID            int64           `json:"bill_id"`
	TransactionID     int64           `json:"transaction_id"`
	TransactionNumber string          `json:"transaction_number"`
	Amount            decimal.Decimal `json:"amount"`
	BalanceAmount     decimal.Decimal `json:"balance_amount"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
}

// StockLowEvent published when available stock reaches the reorder level
type StockLowEvent struct {
	BaseEvent
	ItemID         int64  `json:"item_id"`
	ItemCode       string `json:"item_code"`
	AvailableStock int    `json:"available_stock"`
	ReorderLevel   int    `json:"reorder_level"`
}
