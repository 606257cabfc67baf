package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"
	"workshop-service/internal/money"
	"workshop-service/internal/store"
	"workshop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService owns the stock ledger. Every mutation keeps
// current_stock - allocated_stock >= 0 and appends one ledger row per item
// touched.
type InventoryService struct {
	deps   Deps
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(deps Deps) *InventoryService {
	return &InventoryService{deps: deps, logger: util.GetLogger()}
}

// CreateItemInput describes a new stock-keeping unit.
type CreateItemInput struct {
	ItemCode     string          `json:"item_code" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Unit         string          `json:"unit"`
	OpeningStock int             `json:"opening_stock"`
	ReorderLevel int             `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// AllocationLine requests qty units of one item.
type AllocationLine struct {
	ItemID   int64  `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Notes    string `json:"notes"`
}

func (in CreateItemInput) validate() error {
	if strings.TrimSpace(in.ItemCode) == "" || strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("item code and name are required")
	}
	if in.OpeningStock < 0 || in.ReorderLevel < 0 {
		return apperr.Validation("stock levels must not be negative")
	}
	for _, d := range []decimal.Decimal{in.UnitCost, in.SellingPrice} {
		if d.IsNegative() || !money.HasValidScale(d) {
			return apperr.Validation("prices must be non-negative with at most two decimals")
		}
	}
	return nil
}

// CreateItem registers an item. Opening stock is booked as a purchase row.
func (s *InventoryService) CreateItem(ctx context.Context, actor models.Actor, in CreateItemInput) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.CreateItem", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err = in.validate(); err != nil {
		return nil, err
	}

	unit := in.Unit
	if unit == "" {
		unit = "pcs"
	}
	item := &models.InventoryItem{
		OrganizationID: actor.OrganizationID,
		ItemCode:       strings.TrimSpace(in.ItemCode),
		Name:           strings.TrimSpace(in.Name),
		Unit:           unit,
		CurrentStock:   in.OpeningStock,
		ReorderLevel:   in.ReorderLevel,
		UnitCost:       in.UnitCost,
		SellingPrice:   in.SellingPrice,
	}

	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertInventoryItem(ctx, item); err != nil {
			return err
		}
		if item.CurrentStock > 0 {
			if err := s.ledger(ctx, tx, actor, item, models.InventoryTxPurchase, item.CurrentStock, nil, nil, "opening stock", ""); err != nil {
				return err
			}
		}
		return tx.InsertHistory(ctx, history(actor, models.EntityInventoryItem, item.ID, "create", item.ItemCode))
	})
	if err != nil {
		err = apperr.Wrap("create inventory item", err)
		return nil, err
	}

	s.logger.Info("Inventory item created", append(util.ActorFields(actor),
		zap.Int64("item_id", item.ID), zap.String("item_code", item.ItemCode))...)
	s.afterCommit(ctx, []models.InventoryItem{*item})
	return item, nil
}

// GetItem returns an item of the actor's organization.
func (s *InventoryService) GetItem(ctx context.Context, actor models.Actor, itemID int64) (*models.InventoryItem, error) {
	item, err := s.deps.Repo.GetInventoryItem(ctx, actor.OrganizationID, itemID)
	if err != nil {
		return nil, apperr.Wrap("get inventory item", err)
	}
	return item, nil
}

// ListTransactions returns the ledger of an item in write order.
func (s *InventoryService) ListTransactions(ctx context.Context, actor models.Actor, itemID int64) ([]models.InventoryTransaction, error) {
	if _, err := s.GetItem(ctx, actor, itemID); err != nil {
		return nil, err
	}
	txs, err := s.deps.Repo.ListInventoryTransactions(ctx, actor.OrganizationID, itemID)
	if err != nil {
		return nil, apperr.Wrap("list inventory transactions", err)
	}
	return txs, nil
}

// ListAllocations returns every allocation made for a quotation.
func (s *InventoryService) ListAllocations(ctx context.Context, actor models.Actor, quotationID int64) ([]models.InventoryAllocation, error) {
	allocs, err := s.deps.Repo.ListAllocations(ctx, actor.OrganizationID, quotationID)
	if err != nil {
		return nil, apperr.Wrap("list allocations", err)
	}
	return allocs, nil
}

// ReceiveStock books a purchase.
func (s *InventoryService) ReceiveStock(ctx context.Context, actor models.Actor, itemID int64, qty int, unitCost decimal.Decimal, reference string) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ReceiveStock", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()
	defer observe("receive")()

	if err = authorize(actor, models.RoleTechnician); err != nil {
		return nil, err
	}
	if qty <= 0 {
		err = apperr.Validation("quantity must be positive")
		return nil, err
	}
	if unitCost.IsNegative() || !money.HasValidScale(unitCost) {
		err = apperr.Validation("unit cost must be non-negative with at most two decimals")
		return nil, err
	}

	var item *models.InventoryItem
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if item, err = tx.LockInventoryItem(ctx, actor.OrganizationID, itemID); err != nil {
			return err
		}
		item.CurrentStock += qty
		if err := tx.UpdateInventoryStock(ctx, item); err != nil {
			return err
		}
		row := s.ledgerRow(actor, item, models.InventoryTxPurchase, qty, nil, nil, reference, "")
		row.UnitCost = unitCost
		if err := tx.InsertInventoryTransaction(ctx, row); err != nil {
			return err
		}
		h := history(actor, models.EntityInventoryItem, itemID, "receive", reference)
		return tx.InsertHistory(ctx, h)
	})
	if err != nil {
		err = apperr.Wrap("receive stock", err)
		return nil, err
	}

	s.afterCommit(ctx, []models.InventoryItem{*item})
	return item, nil
}

// Allocate reserves qty units of an item for a quotation.
func (s *InventoryService) Allocate(ctx context.Context, actor models.Actor, quotationID, itemID int64, qty int, notes string) (*models.InventoryAllocation, error) {
	allocs, err := s.AllocateBatch(ctx, actor, quotationID, []AllocationLine{{ItemID: itemID, Quantity: qty, Notes: notes}})
	if err != nil {
		return nil, err
	}
	return &allocs[0], nil
}

// AllocateBatch reserves every line in one transaction. Either all lines
// are allocated or none is.
func (s *InventoryService) AllocateBatch(ctx context.Context, actor models.Actor, quotationID int64, lines []AllocationLine) ([]models.InventoryAllocation, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.AllocateBatch", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()
	defer observe("allocate")()

	if err = authorize(actor, models.RoleTechnician); err != nil {
		return nil, err
	}
	if err = validateLines(lines); err != nil {
		return nil, err
	}

	var (
		allocs  []models.InventoryAllocation
		touched []models.InventoryItem
	)
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		q, err := tx.LockQuotation(ctx, actor.OrganizationID, quotationID)
		if err != nil {
			return err
		}
		if !allocatable(q.Status) {
			return apperr.Precondition(apperr.ErrNotEditable,
				"cannot allocate stock to a %s quotation", q.Status)
		}
		allocs, touched, err = s.allocateLines(ctx, tx, actor, quotationID, lines)
		return err
	})
	if err != nil {
		util.InventoryAllocationsFailed.WithLabelValues(failureReason(err)).Inc()
		err = apperr.Wrap("allocate stock", err)
		return nil, err
	}

	util.InventoryAllocationsTotal.Add(float64(len(allocs)))
	s.logger.Info("Stock allocated", append(util.ActorFields(actor),
		zap.Int64("quotation_id", quotationID), zap.Int("lines", len(allocs)))...)
	s.afterCommit(ctx, touched)
	return allocs, nil
}

// validateLines checks allocation input before any row is locked.
func validateLines(lines []AllocationLine) error {
	if len(lines) == 0 {
		return apperr.Validation("at least one allocation line is required")
	}
	for _, line := range lines {
		if line.ItemID <= 0 {
			return apperr.Validation("allocation item is required")
		}
		if line.Quantity <= 0 {
			return apperr.Validation("allocation quantity must be positive")
		}
	}
	return nil
}

func allocatable(st models.QuotationStatus) bool {
	switch st {
	case models.StatusPending, models.StatusSent, models.StatusApproved, models.StatusRepairInProgress:
		return true
	}
	return false
}

// allocateLines runs inside the caller's transaction. Items are locked in
// ascending ID order so two batches never wait on each other in a cycle.
func (s *InventoryService) allocateLines(ctx context.Context, tx store.Tx, actor models.Actor, quotationID int64, lines []AllocationLine) ([]models.InventoryAllocation, []models.InventoryItem, error) {
	ordered := append([]AllocationLine(nil), lines...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ItemID < ordered[j].ItemID })

	allocs := make([]models.InventoryAllocation, 0, len(ordered))
	touched := make([]models.InventoryItem, 0, len(ordered))
	for _, line := range ordered {
		a, item, err := s.allocateInTx(ctx, tx, actor, quotationID, line.ItemID, line.Quantity, line.Notes)
		if err != nil {
			return nil, nil, err
		}
		allocs = append(allocs, *a)
		touched = append(touched, *item)
	}
	return allocs, touched, nil
}

func (s *InventoryService) allocateInTx(ctx context.Context, tx store.Tx, actor models.Actor, quotationID, itemID int64, qty int, notes string) (*models.InventoryAllocation, *models.InventoryItem, error) {
	item, err := tx.LockInventoryItem(ctx, actor.OrganizationID, itemID)
	if err != nil {
		return nil, nil, err
	}
	if available := item.AvailableStock(); available < qty {
		return nil, nil, apperr.Precondition(apperr.ErrInsufficientStock,
			"insufficient stock: available %d", available)
	}

	item.AllocatedStock += qty
	if err := tx.UpdateInventoryStock(ctx, item); err != nil {
		return nil, nil, err
	}

	a, err := tx.LockActiveAllocation(ctx, actor.OrganizationID, quotationID, itemID)
	if err != nil {
		return nil, nil, err
	}
	if a != nil {
		a.AllocatedQuantity += qty
		if notes != "" {
			a.Notes = notes
		}
		err = tx.UpdateAllocation(ctx, a)
	} else {
		a = &models.InventoryAllocation{
			OrganizationID:    actor.OrganizationID,
			ItemID:            itemID,
			QuotationID:       quotationID,
			AllocatedQuantity: qty,
			Status:            models.AllocationActive,
			Notes:             notes,
			CreatedBy:         actor.UserID,
		}
		err = tx.InsertAllocation(ctx, a)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := s.ledger(ctx, tx, actor, item, models.InventoryTxAllocation, -qty, &quotationID, &a.ID, "", notes); err != nil {
		return nil, nil, err
	}
	h := history(actor, models.EntityAllocation, a.ID, "allocate", notes)
	h.FieldName = ptr("allocated_quantity")
	h.OldValue = ptr(strconv.Itoa(a.AllocatedQuantity - qty))
	h.NewValue = ptr(strconv.Itoa(a.AllocatedQuantity))
	if err := tx.InsertHistory(ctx, h); err != nil {
		return nil, nil, err
	}
	return a, item, nil
}

// Consume turns an allocation into a permanent stock decrement. Available
// stock is unchanged because the units were already reserved.
func (s *InventoryService) Consume(ctx context.Context, actor models.Actor, allocationID int64) (*models.InventoryAllocation, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Consume", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()
	defer observe("consume")()

	if err = authorize(actor, models.RoleTechnician); err != nil {
		return nil, err
	}

	var (
		alloc *models.InventoryAllocation
		item  *models.InventoryItem
	)
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if alloc, err = tx.LockAllocation(ctx, actor.OrganizationID, allocationID); err != nil {
			return err
		}
		if alloc.Status != models.AllocationActive {
			return apperr.Precondition(apperr.ErrAlreadyProcessed, "allocation already %s", alloc.Status)
		}
		if item, err = tx.LockInventoryItem(ctx, actor.OrganizationID, alloc.ItemID); err != nil {
			return err
		}

		qty := alloc.AllocatedQuantity
		item.CurrentStock -= qty
		item.AllocatedStock -= qty
		if err := tx.UpdateInventoryStock(ctx, item); err != nil {
			return err
		}
		alloc.ConsumedQuantity = qty
		alloc.Status = models.AllocationConsumed
		if err := tx.UpdateAllocation(ctx, alloc); err != nil {
			return err
		}
		if err := s.ledger(ctx, tx, actor, item, models.InventoryTxConsumption, -qty, &alloc.QuotationID, &alloc.ID, "", ""); err != nil {
			return err
		}
		return tx.InsertHistory(ctx, history(actor, models.EntityAllocation, alloc.ID, "consume", ""))
	})
	if err != nil {
		err = apperr.Wrap("consume allocation", err)
		return nil, err
	}

	s.afterCommit(ctx, []models.InventoryItem{*item})
	return alloc, nil
}

// Release returns reserved units to available stock.
func (s *InventoryService) Release(ctx context.Context, actor models.Actor, allocationID int64, notes string) (*models.InventoryAllocation, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Release", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()
	defer observe("release")()

	if err = authorize(actor, models.RoleTechnician); err != nil {
		return nil, err
	}

	var (
		alloc *models.InventoryAllocation
		item  *models.InventoryItem
	)
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if alloc, err = tx.LockAllocation(ctx, actor.OrganizationID, allocationID); err != nil {
			return err
		}
		if alloc.Status != models.AllocationActive {
			return apperr.Precondition(apperr.ErrAlreadyProcessed, "allocation already %s", alloc.Status)
		}
		item, err = s.releaseInTx(ctx, tx, actor, alloc, notes)
		return err
	})
	if err != nil {
		err = apperr.Wrap("release allocation", err)
		return nil, err
	}

	s.afterCommit(ctx, []models.InventoryItem{*item})
	return alloc, nil
}

// releaseAllInTx releases every active allocation of a quotation.
func (s *InventoryService) releaseAllInTx(ctx context.Context, tx store.Tx, actor models.Actor, quotationID int64, notes string) ([]models.InventoryItem, error) {
	allocs, err := tx.LockActiveAllocations(ctx, actor.OrganizationID, quotationID)
	if err != nil {
		return nil, err
	}
	touched := make([]models.InventoryItem, 0, len(allocs))
	for i := range allocs {
		item, err := s.releaseInTx(ctx, tx, actor, &allocs[i], notes)
		if err != nil {
			return nil, err
		}
		touched = append(touched, *item)
	}
	return touched, nil
}

func (s *InventoryService) releaseInTx(ctx context.Context, tx store.Tx, actor models.Actor, alloc *models.InventoryAllocation, notes string) (*models.InventoryItem, error) {
	item, err := tx.LockInventoryItem(ctx, actor.OrganizationID, alloc.ItemID)
	if err != nil {
		return nil, err
	}
	qty := alloc.AllocatedQuantity
	item.AllocatedStock -= qty
	if err := tx.UpdateInventoryStock(ctx, item); err != nil {
		return nil, err
	}
	alloc.Status = models.AllocationReleased
	if err := tx.UpdateAllocation(ctx, alloc); err != nil {
		return nil, err
	}
	if err := s.ledger(ctx, tx, actor, item, models.InventoryTxRelease, qty, &alloc.QuotationID, &alloc.ID, "", notes); err != nil {
		return nil, err
	}
	if err := tx.InsertHistory(ctx, history(actor, models.EntityAllocation, alloc.ID, "release", notes)); err != nil {
		return nil, err
	}
	return item, nil
}

// AdjustStock sets current stock to newQty after a physical count. The
// reason is mandatory because adjustments bypass the purchase and
// consumption trail.
func (s *InventoryService) AdjustStock(ctx context.Context, actor models.Actor, itemID int64, newQty int, reason string) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.AdjustStock", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()
	defer observe("adjust")()

	if err = authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		err = apperr.Validation("a reason is required for stock adjustments")
		return nil, err
	}
	if newQty < 0 {
		err = apperr.Validation("stock cannot be negative")
		return nil, err
	}

	var item *models.InventoryItem
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if item, err = tx.LockInventoryItem(ctx, actor.OrganizationID, itemID); err != nil {
			return err
		}
		old := item.CurrentStock
		delta := newQty - old
		if delta == 0 {
			return apperr.Validation("stock is already %d", old)
		}
		if newQty < item.AllocatedStock {
			return apperr.Precondition(apperr.ErrInsufficientStock,
				"insufficient stock: %d units are allocated", item.AllocatedStock)
		}

		item.CurrentStock = newQty
		if err := tx.UpdateInventoryStock(ctx, item); err != nil {
			return err
		}
		if err := s.ledger(ctx, tx, actor, item, models.InventoryTxAdjustment, delta, nil, nil, "", reason); err != nil {
			return err
		}
		h := fieldChange(actor, models.EntityInventoryItem, itemID, "current_stock", strconv.Itoa(old), strconv.Itoa(newQty))
		h.Action = "adjust"
		h.Notes = reason
		return tx.InsertHistory(ctx, h)
	})
	if err != nil {
		err = apperr.Wrap("adjust stock", err)
		return nil, err
	}

	s.logger.Info("Stock adjusted", append(util.ActorFields(actor),
		zap.Int64("item_id", itemID), zap.Int("new_qty", newQty), zap.String("reason", reason))...)
	s.afterCommit(ctx, []models.InventoryItem{*item})
	return item, nil
}

func (s *InventoryService) ledgerRow(actor models.Actor, item *models.InventoryItem, kind models.InventoryTxType, qty int, quotationID, allocationID *int64, reference, notes string) *models.InventoryTransaction {
	return &models.InventoryTransaction{
		OrganizationID:  actor.OrganizationID,
		ItemID:          item.ID,
		TransactionType: kind,
		Quantity:        qty,
		CurrentStock:    item.CurrentStock,
		AllocatedStock:  item.AllocatedStock,
		RunningBalance:  item.AvailableStock(),
		UnitCost:        item.UnitCost,
		QuotationID:     quotationID,
		AllocationID:    allocationID,
		Reference:       reference,
		Notes:           notes,
		CreatedBy:       actor.UserID,
	}
}

// ledger appends a row snapshotting item after the mutation.
func (s *InventoryService) ledger(ctx context.Context, tx store.Tx, actor models.Actor, item *models.InventoryItem, kind models.InventoryTxType, qty int, quotationID, allocationID *int64, reference, notes string) error {
	if item.AvailableStock() < 0 || item.AllocatedStock < 0 {
		return apperr.Precondition(apperr.ErrInsufficientStock,
			"insufficient stock: available %d", item.AvailableStock())
	}
	return tx.InsertInventoryTransaction(ctx, s.ledgerRow(actor, item, kind, qty, quotationID, allocationID, reference, notes))
}

// afterCommit refreshes the stock cache and raises low-stock events for the
// final state of each touched item.
func (s *InventoryService) afterCommit(ctx context.Context, items []models.InventoryItem) {
	latest := make(map[int64]models.InventoryItem, len(items))
	order := make([]int64, 0, len(items))
	for _, it := range items {
		if _, seen := latest[it.ID]; !seen {
			order = append(order, it.ID)
		}
		latest[it.ID] = it
	}

	for _, id := range order {
		item := latest[id]
		if s.deps.StockCache != nil {
			if err := s.deps.StockCache.SetStockLevel(ctx, item); err != nil {
				s.logger.Warn("Failed to cache stock level", zap.Int64("item_id", id), zap.Error(err))
			}
		}
		if item.BelowReorder() && s.deps.Events != nil {
			event := &models.StockLowEvent{
				BaseEvent:      newBaseEvent(models.EventTypeStockLow, item.OrganizationID, s.deps.now()),
				ItemID:         item.ID,
				ItemCode:       item.ItemCode,
				AvailableStock: item.AvailableStock(),
				ReorderLevel:   item.ReorderLevel,
			}
			if err := s.deps.Events.PublishStockLow(ctx, event); err != nil {
				s.logger.Warn("Failed to publish stock low", zap.Int64("item_id", id), zap.Error(err))
			}
		}
	}
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		util.InventoryMutationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// failureReason labels a failed operation for metrics.
func failureReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "validation"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindPrecondition:
		return "precondition"
	default:
		return "store"
	}
}
