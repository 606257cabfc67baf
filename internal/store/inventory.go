package store

import (
	"context"

	"workshop-service/internal/models"
)

// GetInventoryItem retrieves an item by ID
func (s *Store) GetInventoryItem(ctx context.Context, orgID, id int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := getOne(ctx, s.db, &item, models.EntityInventoryItem, id,
		"SELECT * FROM inventory_items WHERE id = $1 AND organization_id = $2", id, orgID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListAllocations returns every allocation of a quotation, any status.
func (s *Store) ListAllocations(ctx context.Context, orgID, quotationID int64) ([]models.InventoryAllocation, error) {
	var allocs []models.InventoryAllocation
	err := s.db.SelectContext(ctx, &allocs,
		"SELECT * FROM inventory_allocations WHERE quotation_id = $1 AND organization_id = $2 ORDER BY id",
		quotationID, orgID)
	return allocs, err
}

// ListInventoryTransactions returns the ledger of one item in write order.
func (s *Store) ListInventoryTransactions(ctx context.Context, orgID, itemID int64) ([]models.InventoryTransaction, error) {
	var txs []models.InventoryTransaction
	err := s.db.SelectContext(ctx, &txs,
		"SELECT * FROM inventory_transactions WHERE item_id = $1 AND organization_id = $2 ORDER BY id",
		itemID, orgID)
	return txs, err
}

func (t *txStore) InsertInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO inventory_items (organization_id, item_code, name, unit, current_stock,
			allocated_stock, reorder_level, unit_cost, selling_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		item.OrganizationID, item.ItemCode, item.Name, item.Unit, item.CurrentStock,
		item.AllocatedStock, item.ReorderLevel, item.UnitCost, item.SellingPrice).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	return uniqueViolation(err, "item code "+item.ItemCode)
}

func (t *txStore) LockInventoryItem(ctx context.Context, orgID, id int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := getOne(ctx, t.tx, &item, models.EntityInventoryItem, id,
		"SELECT * FROM inventory_items WHERE id = $1 AND organization_id = $2 FOR UPDATE", id, orgID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateInventoryStock writes both counters. The table CHECKs reject a
// negative available level even if a caller gets the arithmetic wrong.
func (t *txStore) UpdateInventoryStock(ctx context.Context, item *models.InventoryItem) error {
	return t.tx.GetContext(ctx, &item.UpdatedAt, `
		UPDATE inventory_items SET current_stock = $1, allocated_stock = $2, updated_at = NOW()
		WHERE id = $3 AND organization_id = $4
		RETURNING updated_at`,
		item.CurrentStock, item.AllocatedStock, item.ID, item.OrganizationID)
}

func (t *txStore) LockActiveAllocation(ctx context.Context, orgID, quotationID, itemID int64) (*models.InventoryAllocation, error) {
	var a models.InventoryAllocation
	found, err := findOne(ctx, t.tx, &a, `
		SELECT * FROM inventory_allocations
		WHERE quotation_id = $1 AND item_id = $2 AND organization_id = $3 AND status = $4
		FOR UPDATE`,
		quotationID, itemID, orgID, models.AllocationActive)
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

func (t *txStore) LockAllocation(ctx context.Context, orgID, id int64) (*models.InventoryAllocation, error) {
	var a models.InventoryAllocation
	err := getOne(ctx, t.tx, &a, models.EntityAllocation, id,
		"SELECT * FROM inventory_allocations WHERE id = $1 AND organization_id = $2 FOR UPDATE", id, orgID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *txStore) LockActiveAllocations(ctx context.Context, orgID, quotationID int64) ([]models.InventoryAllocation, error) {
	var allocs []models.InventoryAllocation
	err := t.tx.SelectContext(ctx, &allocs, `
		SELECT * FROM inventory_allocations
		WHERE quotation_id = $1 AND organization_id = $2 AND status = $3
		ORDER BY item_id
		FOR UPDATE`,
		quotationID, orgID, models.AllocationActive)
	return allocs, err
}

func (t *txStore) InsertAllocation(ctx context.Context, a *models.InventoryAllocation) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO inventory_allocations (organization_id, item_id, quotation_id, allocated_quantity,
			consumed_quantity, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		a.OrganizationID, a.ItemID, a.QuotationID, a.AllocatedQuantity,
		a.ConsumedQuantity, a.Status, a.Notes, a.CreatedBy).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return uniqueViolation(err, "active allocation")
}

func (t *txStore) UpdateAllocation(ctx context.Context, a *models.InventoryAllocation) error {
	return t.tx.GetContext(ctx, &a.UpdatedAt, `
		UPDATE inventory_allocations
		SET allocated_quantity = $1, consumed_quantity = $2, status = $3, notes = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`,
		a.AllocatedQuantity, a.ConsumedQuantity, a.Status, a.Notes, a.ID)
}

func (t *txStore) InsertInventoryTransaction(ctx context.Context, tr *models.InventoryTransaction) error {
	return t.tx.QueryRowxContext(ctx, `
		INSERT INTO inventory_transactions (organization_id, item_id, transaction_type, quantity,
			current_stock, allocated_stock, running_balance, unit_cost, quotation_id, allocation_id,
			reference, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		tr.OrganizationID, tr.ItemID, tr.TransactionType, tr.Quantity,
		tr.CurrentStock, tr.AllocatedStock, tr.RunningBalance, tr.UnitCost, tr.QuotationID, tr.AllocationID,
		tr.Reference, tr.Notes, tr.CreatedBy).
		Scan(&tr.ID, &tr.CreatedAt)
}
