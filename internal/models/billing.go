package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is derived from paid_amount against total_amount.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// PaymentMethod accepted at the counter.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodUPI          PaymentMethod = "upi"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
	MethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI, MethodBankTransfer, MethodCheque, MethodOther:
		return true
	}
	return false
}

// Bill is the payable document of one quotation.
type Bill struct {
	ID             int64           `db:"id" json:"id"`
	OrganizationID int64           `db:"organization_id" json:"organization_id"`
	QuotationID    int64           `db:"quotation_id" json:"quotation_id"`
	BillNumber     string          `db:"bill_number" json:"bill_number"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount     decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	BalanceAmount  decimal.Decimal `db:"balance_amount" json:"balance_amount"`
	PaymentStatus  PaymentStatus   `db:"payment_status" json:"payment_status"`
	DueDate        *time.Time      `db:"due_date" json:"due_date,omitempty"`
	Terms          string          `db:"terms" json:"terms"`
	Notes          string          `db:"notes" json:"notes"`
	CreatedBy      int64           `db:"created_by" json:"created_by"`
	PaidAt         *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentTransaction is an append-only payment against a bill.
type PaymentTransaction struct {
	ID                int64           `db:"id" json:"id"`
	OrganizationID    int64           `db:"organization_id" json:"organization_id"`
	BillID            int64           `db:"bill_id" json:"bill_id"`
	TransactionNumber string          `db:"transaction_number" json:"transaction_number"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Method            PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentDate       time.Time       `db:"payment_date" json:"payment_date"`
	Reference         string          `db:"reference" json:"reference"`
	Notes             string          `db:"notes" json:"notes"`
	RecordedBy        int64           `db:"recorded_by" json:"recorded_by"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// DerivePaymentStatus maps paid against total onto a payment status.
func DerivePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return PaymentUnpaid
	case paid.LessThan(total):
		return PaymentPartial
	default:
		return PaymentPaid
	}
}
