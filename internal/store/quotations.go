package store

import (
	"context"
	"fmt"
	"strings"

	"workshop-service/internal/apperr"
	"workshop-service/internal/lifecycle"
	"workshop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const quotationColumns = `id, organization_id, quotation_number, service_request_id,
	customer_name, customer_phone, customer_email, customer_address,
	vehicle_make, vehicle_model, vehicle_year, vehicle_registration, vehicle_vin,
	problem_description, work_description, priority,
	base_service_charge, parts_total, subtotal, tax_rate, tax_amount, total_amount,
	status, created_by, approved_by, assigned_to,
	sent_at, approved_at, rejected_at, repair_started_at, repair_completed_at,
	bill_generated_at, paid_at, cancelled_at, created_at, updated_at`

// GetQuotation loads a quotation with its line items.
func (s *Store) GetQuotation(ctx context.Context, orgID, id int64) (*models.Quotation, error) {
	return getQuotation(ctx, s.db, orgID, id, "")
}

// LockQuotation loads a quotation with its items and holds the row lock.
func (t *txStore) LockQuotation(ctx context.Context, orgID, id int64) (*models.Quotation, error) {
	return getQuotation(ctx, t.tx, orgID, id, " FOR UPDATE")
}

func getQuotation(ctx context.Context, q sqlx.QueryerContext, orgID, id int64, lock string) (*models.Quotation, error) {
	var quote models.Quotation
	query := "SELECT " + quotationColumns + " FROM quotations WHERE id = $1 AND organization_id = $2" + lock
	if err := getOne(ctx, q, &quote, models.EntityQuotation, id, query, id, orgID); err != nil {
		return nil, err
	}
	if err := sqlx.SelectContext(ctx, q, &quote.Items,
		"SELECT * FROM quotation_items WHERE quotation_id = $1 ORDER BY id", id); err != nil {
		return nil, err
	}
	return &quote, nil
}

// ListQuotations returns quotations newest first.
func (s *Store) ListQuotations(ctx context.Context, filter models.QuotationFilter) ([]models.Quotation, error) {
	where := []string{"organization_id = $1"}
	args := []interface{}{filter.OrganizationID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AssignedTo != 0 {
		args = append(args, filter.AssignedTo)
		where = append(where, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	page := filter.Page.Normalize()
	args = append(args, page.Limit, page.Offset)

	query := fmt.Sprintf("SELECT %s FROM quotations WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		quotationColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	var quotes []models.Quotation
	err := s.db.SelectContext(ctx, &quotes, query, args...)
	return quotes, err
}

// InsertQuotation creates the header row. Items are written separately.
func (t *txStore) InsertQuotation(ctx context.Context, q *models.Quotation) error {
	query := `
		INSERT INTO quotations (organization_id, quotation_number, service_request_id,
			customer_name, customer_phone, customer_email, customer_address,
			vehicle_make, vehicle_model, vehicle_year, vehicle_registration, vehicle_vin,
			problem_description, work_description, priority,
			base_service_charge, parts_total, subtotal, tax_rate, tax_amount, total_amount,
			status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING id, created_at, updated_at`

	row := t.tx.QueryRowxContext(ctx, query,
		q.OrganizationID, q.QuotationNumber, q.ServiceRequestID,
		q.Customer.Name, q.Customer.Phone, q.Customer.Email, q.Customer.Address,
		q.Vehicle.Make, q.Vehicle.Model, q.Vehicle.Year, q.Vehicle.Registration, q.Vehicle.VIN,
		q.ProblemDescription, q.WorkDescription, q.Priority,
		q.BaseServiceCharge, q.PartsTotal, q.Subtotal, q.TaxRate, q.TaxAmount, q.TotalAmount,
		q.Status, q.CreatedBy)
	if err := row.Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return uniqueViolation(err, "quotation number "+q.QuotationNumber)
	}
	return nil
}

// UpdateQuotationDetails rewrites the editable header fields and totals.
func (t *txStore) UpdateQuotationDetails(ctx context.Context, q *models.Quotation) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE quotations SET
			customer_name = $1, customer_phone = $2, customer_email = $3, customer_address = $4,
			vehicle_make = $5, vehicle_model = $6, vehicle_year = $7, vehicle_registration = $8, vehicle_vin = $9,
			problem_description = $10, work_description = $11, priority = $12,
			base_service_charge = $13, parts_total = $14, subtotal = $15, tax_rate = $16,
			tax_amount = $17, total_amount = $18, updated_at = NOW()
		WHERE id = $19 AND organization_id = $20`,
		q.Customer.Name, q.Customer.Phone, q.Customer.Email, q.Customer.Address,
		q.Vehicle.Make, q.Vehicle.Model, q.Vehicle.Year, q.Vehicle.Registration, q.Vehicle.VIN,
		q.ProblemDescription, q.WorkDescription, q.Priority,
		q.BaseServiceCharge, q.PartsTotal, q.Subtotal, q.TaxRate,
		q.TaxAmount, q.TotalAmount, q.ID, q.OrganizationID)
	return err
}

// ReplaceQuotationItems deletes the existing lines and inserts items in
// order, filling their IDs.
func (t *txStore) ReplaceQuotationItems(ctx context.Context, quotationID int64, items []models.QuotationItem) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM quotation_items WHERE quotation_id = $1", quotationID); err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		item.QuotationID = quotationID
		err := t.tx.GetContext(ctx, &item.ID, `
			INSERT INTO quotation_items (quotation_id, item_type, description, quantity, rate, amount)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			quotationID, item.ItemType, item.Description, item.Quantity, item.Rate, item.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateQuotationStatus is a compare-and-set on status. The timestamp column
// of the target status is stamped in the same statement.
func (t *txStore) UpdateQuotationStatus(ctx context.Context, orgID, id int64, stamp models.StatusStamp) (bool, error) {
	set := "status = $1, updated_at = $2"
	if col := lifecycle.TimestampColumn(stamp.To); col != "" {
		set += ", " + col + " = $2"
	}
	args := []interface{}{stamp.To, stamp.At, id, orgID, stamp.From}
	if stamp.ApprovedBy != nil {
		args = append(args, *stamp.ApprovedBy)
		set += fmt.Sprintf(", approved_by = $%d", len(args))
	}

	res, err := t.tx.ExecContext(ctx,
		"UPDATE quotations SET "+set+" WHERE id = $3 AND organization_id = $4 AND status = $5", args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *txStore) SetQuotationAssignee(ctx context.Context, orgID, id, userID int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE quotations SET assigned_to = $1, updated_at = NOW() WHERE id = $2 AND organization_id = $3",
		userID, id, orgID)
	return err
}

// GetApproval retrieves an approval by ID
func (s *Store) GetApproval(ctx context.Context, orgID, id int64) (*models.Approval, error) {
	var a models.Approval
	err := getOne(ctx, s.db, &a, models.EntityApproval, id,
		"SELECT * FROM approvals WHERE id = $1 AND organization_id = $2", id, orgID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListApprovals returns every approval round of a quotation, oldest first.
func (s *Store) ListApprovals(ctx context.Context, orgID, quotationID int64) ([]models.Approval, error) {
	var approvals []models.Approval
	err := s.db.SelectContext(ctx, &approvals,
		"SELECT * FROM approvals WHERE quotation_id = $1 AND organization_id = $2 ORDER BY id",
		quotationID, orgID)
	if err != nil {
		return nil, err
	}
	return approvals, nil
}

func (t *txStore) InsertApproval(ctx context.Context, a *models.Approval) error {
	return t.tx.QueryRowxContext(ctx, `
		INSERT INTO approvals (organization_id, quotation_id, approver_id, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.OrganizationID, a.QuotationID, a.ApproverID, a.Status, a.Notes).Scan(&a.ID, &a.CreatedAt)
}

func (t *txStore) LockApproval(ctx context.Context, orgID, id int64) (*models.Approval, error) {
	var a models.Approval
	err := getOne(ctx, t.tx, &a, models.EntityApproval, id,
		"SELECT * FROM approvals WHERE id = $1 AND organization_id = $2 FOR UPDATE", id, orgID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *txStore) LockPendingApproval(ctx context.Context, orgID, quotationID int64) (*models.Approval, error) {
	var a models.Approval
	found, err := findOne(ctx, t.tx, &a, `
		SELECT * FROM approvals
		WHERE quotation_id = $1 AND organization_id = $2 AND status = $3
		ORDER BY id DESC LIMIT 1
		FOR UPDATE`,
		quotationID, orgID, models.ApprovalPending)
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

func (t *txStore) UpdateApproval(ctx context.Context, a *models.Approval) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE approvals SET approver_id = $1, status = $2, notes = $3, approved_at = $4 WHERE id = $5 AND organization_id = $6",
		a.ApproverID, a.Status, a.Notes, a.ApprovedAt, a.ID, a.OrganizationID)
	return err
}

// GetWorkOrderByQuotation returns the work order created at approval.
func (s *Store) GetWorkOrderByQuotation(ctx context.Context, orgID, quotationID int64) (*models.WorkOrder, error) {
	var w models.WorkOrder
	err := getOne(ctx, s.db, &w, models.EntityWorkOrder, quotationID,
		"SELECT * FROM work_orders WHERE quotation_id = $1 AND organization_id = $2", quotationID, orgID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (t *txStore) InsertWorkOrder(ctx context.Context, w *models.WorkOrder) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO work_orders (organization_id, quotation_id, assigned_to, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		w.OrganizationID, w.QuotationID, w.AssignedTo, w.Status, w.CreatedBy).Scan(&w.ID, &w.CreatedAt)
	return uniqueViolation(err, "work order")
}

func (t *txStore) LockWorkOrderByQuotation(ctx context.Context, orgID, quotationID int64) (*models.WorkOrder, error) {
	var w models.WorkOrder
	found, err := findOne(ctx, t.tx, &w,
		"SELECT * FROM work_orders WHERE quotation_id = $1 AND organization_id = $2 FOR UPDATE", quotationID, orgID)
	if err != nil || !found {
		return nil, err
	}
	return &w, nil
}

func (t *txStore) UpdateWorkOrder(ctx context.Context, w *models.WorkOrder) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE work_orders SET assigned_to = $1, status = $2, started_at = $3, completed_at = $4 WHERE id = $5",
		w.AssignedTo, w.Status, w.StartedAt, w.CompletedAt, w.ID)
	return err
}

// GetServiceRequest retrieves a service request by ID
func (s *Store) GetServiceRequest(ctx context.Context, orgID, id int64) (*models.ServiceRequest, error) {
	var r models.ServiceRequest
	err := getOne(ctx, s.db, &r, models.EntityServiceRequest, id,
		"SELECT * FROM service_requests WHERE id = $1 AND organization_id = $2", id, orgID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *txStore) InsertServiceRequest(ctx context.Context, r *models.ServiceRequest) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO service_requests (organization_id, request_number,
			customer_name, customer_phone, customer_email, customer_address,
			vehicle_make, vehicle_model, vehicle_year, vehicle_registration, vehicle_vin,
			problem_description, priority, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at`,
		r.OrganizationID, r.RequestNumber,
		r.Customer.Name, r.Customer.Phone, r.Customer.Email, r.Customer.Address,
		r.Vehicle.Make, r.Vehicle.Model, r.Vehicle.Year, r.Vehicle.Registration, r.Vehicle.VIN,
		r.ProblemDescription, r.Priority, r.Status, r.CreatedBy).Scan(&r.ID, &r.CreatedAt)
	return uniqueViolation(err, "service request "+r.RequestNumber)
}

func (t *txStore) LockServiceRequest(ctx context.Context, orgID, id int64) (*models.ServiceRequest, error) {
	var r models.ServiceRequest
	err := getOne(ctx, t.tx, &r, models.EntityServiceRequest, id,
		"SELECT * FROM service_requests WHERE id = $1 AND organization_id = $2 FOR UPDATE", id, orgID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *txStore) UpdateServiceRequest(ctx context.Context, r *models.ServiceRequest) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE service_requests SET status = $1, quotation_id = $2 WHERE id = $3 AND organization_id = $4",
		r.Status, r.QuotationID, r.ID, r.OrganizationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(models.EntityServiceRequest, r.ID)
	}
	return nil
}
