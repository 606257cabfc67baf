package store

import (
	"context"

	"workshop-service/internal/models"

	"github.com/shopspring/decimal"
)

// GetBill retrieves a bill by ID
func (s *Store) GetBill(ctx context.Context, orgID, id int64) (*models.Bill, error) {
	var b models.Bill
	err := getOne(ctx, s.db, &b, models.EntityBill, id,
		"SELECT * FROM billing WHERE id = $1 AND organization_id = $2", id, orgID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListPayments returns the payments of a bill oldest first.
func (s *Store) ListPayments(ctx context.Context, orgID, billID int64) ([]models.PaymentTransaction, error) {
	var payments []models.PaymentTransaction
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payment_transactions WHERE bill_id = $1 AND organization_id = $2 ORDER BY id",
		billID, orgID)
	return payments, err
}

func (s *Store) GetPayment(ctx context.Context, orgID, id int64) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	err := getOne(ctx, s.db, &p, "payment", id,
		"SELECT * FROM payment_transactions WHERE id = $1 AND organization_id = $2", id, orgID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txStore) FindBillByQuotation(ctx context.Context, orgID, quotationID int64) (*models.Bill, error) {
	var b models.Bill
	found, err := findOne(ctx, t.tx, &b,
		"SELECT * FROM billing WHERE quotation_id = $1 AND organization_id = $2 FOR UPDATE", quotationID, orgID)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// InsertBill creates the bill. The unique quotation_id constraint is the
// last line against a second bill for the same quotation.
func (t *txStore) InsertBill(ctx context.Context, b *models.Bill) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO billing (organization_id, quotation_id, bill_number, subtotal, tax_amount,
			total_amount, paid_amount, balance_amount, payment_status, due_date, terms, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		b.OrganizationID, b.QuotationID, b.BillNumber, b.Subtotal, b.TaxAmount,
		b.TotalAmount, b.PaidAmount, b.BalanceAmount, b.PaymentStatus, b.DueDate, b.Terms, b.Notes, b.CreatedBy).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return uniqueViolation(err, "bill")
}

func (t *txStore) LockBill(ctx context.Context, orgID, id int64) (*models.Bill, error) {
	var b models.Bill
	err := getOne(ctx, t.tx, &b, models.EntityBill, id,
		"SELECT * FROM billing WHERE id = $1 AND organization_id = $2 FOR UPDATE", id, orgID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *txStore) UpdateBillPayment(ctx context.Context, b *models.Bill) error {
	return t.tx.GetContext(ctx, &b.UpdatedAt, `
		UPDATE billing SET paid_amount = $1, balance_amount = $2, payment_status = $3, paid_at = $4, updated_at = NOW()
		WHERE id = $5 AND organization_id = $6
		RETURNING updated_at`,
		b.PaidAmount, b.BalanceAmount, b.PaymentStatus, b.PaidAt, b.ID, b.OrganizationID)
}

func (t *txStore) InsertPayment(ctx context.Context, p *models.PaymentTransaction) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO payment_transactions (organization_id, bill_id, transaction_number, amount,
			payment_method, payment_date, reference, notes, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		p.OrganizationID, p.BillID, p.TransactionNumber, p.Amount,
		p.Method, p.PaymentDate, p.Reference, p.Notes, p.RecordedBy).
		Scan(&p.ID, &p.CreatedAt)
	return uniqueViolation(err, "transaction "+p.TransactionNumber)
}

// SumPayments adds every payment of the bill, including rows written earlier
// in the same transaction.
func (t *txStore) SumPayments(ctx context.Context, billID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.GetContext(ctx, &sum,
		"SELECT COALESCE(SUM(amount), 0) FROM payment_transactions WHERE bill_id = $1", billID)
	return sum, err
}
