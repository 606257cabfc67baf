package service

import (
	"context"
	"strconv"
	"strings"

	"workshop-service/internal/apperr"
	"workshop-service/internal/lifecycle"
	"workshop-service/internal/models"
	"workshop-service/internal/money"
	"workshop-service/internal/store"
	"workshop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuotationService drives quotations through their lifecycle.
type QuotationService struct {
	deps           Deps
	inventory      *InventoryService
	defaultTaxRate decimal.Decimal
	logger         *zap.Logger
}

// NewQuotationService creates a new quotation service. defaultTaxRate is a
// percentage applied when a quotation does not carry its own.
func NewQuotationService(deps Deps, inventory *InventoryService, defaultTaxRate decimal.Decimal) *QuotationService {
	return &QuotationService{
		deps:           deps,
		inventory:      inventory,
		defaultTaxRate: defaultTaxRate,
		logger:         util.GetLogger(),
	}
}

// ItemInput is one requested quotation line.
type ItemInput struct {
	ItemType    models.ItemType `json:"item_type" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// QuotationInput creates a quotation.
type QuotationInput struct {
	Customer           models.Customer  `json:"customer"`
	Vehicle            models.Vehicle   `json:"vehicle"`
	ProblemDescription string           `json:"problem_description"`
	WorkDescription    string           `json:"work_description"`
	Priority           models.Priority  `json:"priority"`
	BaseServiceCharge  decimal.Decimal  `json:"base_service_charge"`
	TaxRate            *decimal.Decimal `json:"tax_rate"`
	Items              []ItemInput      `json:"items"`
}

// QuotationPatch lists every field Update may change. Nil leaves a field as
// it is; a non-nil Items replaces all lines.
type QuotationPatch struct {
	Customer           *models.Customer `json:"customer"`
	Vehicle            *models.Vehicle  `json:"vehicle"`
	ProblemDescription *string          `json:"problem_description"`
	WorkDescription    *string          `json:"work_description"`
	Priority           *models.Priority `json:"priority"`
	BaseServiceCharge  *decimal.Decimal `json:"base_service_charge"`
	TaxRate            *decimal.Decimal `json:"tax_rate"`
	Items              *[]ItemInput     `json:"items"`
}

// ApprovalDecision is the outcome of an approval gate.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
)

func validateCharge(name string, d decimal.Decimal) error {
	if d.IsNegative() || !money.HasValidScale(d) {
		return apperr.Validation("%s must be non-negative with at most two decimals", name)
	}
	return nil
}

func validateTaxRate(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) || !money.HasValidScale(d) {
		return apperr.Validation("tax rate must be between 0 and 100")
	}
	return nil
}

func buildItems(in []ItemInput) ([]models.QuotationItem, error) {
	items := make([]models.QuotationItem, 0, len(in))
	for i, it := range in {
		if it.ItemType != models.ItemTypeParts && it.ItemType != models.ItemTypeMisc {
			return nil, apperr.Validation("item %d: type must be parts or misc", i+1)
		}
		if strings.TrimSpace(it.Description) == "" {
			return nil, apperr.Validation("item %d: description is required", i+1)
		}
		if !it.Quantity.IsPositive() || !money.HasValidScale(it.Quantity) {
			return nil, apperr.Validation("item %d: quantity must be positive", i+1)
		}
		if err := validateCharge("item rate", it.Rate); err != nil {
			return nil, err
		}
		items = append(items, models.QuotationItem{
			ItemType:    it.ItemType,
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			Rate:        it.Rate,
			Amount:      money.Round(it.Quantity.Mul(it.Rate)),
		})
	}
	return items, nil
}

// computeTotals derives every amount column from the base charge, the
// lines and the tax rate.
func computeTotals(q *models.Quotation) {
	amounts := make([]decimal.Decimal, 0, len(q.Items))
	for _, it := range q.Items {
		amounts = append(amounts, it.Amount)
	}
	q.PartsTotal = money.Sum(amounts...)
	q.Subtotal = q.BaseServiceCharge.Add(q.PartsTotal)
	q.TaxAmount = money.Percent(q.Subtotal, q.TaxRate)
	q.TotalAmount = q.Subtotal.Add(q.TaxAmount)
}

func (s *QuotationService) build(actor models.Actor, in QuotationInput) (*models.Quotation, error) {
	if strings.TrimSpace(in.Customer.Name) == "" {
		return nil, apperr.Validation("customer name is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("unknown priority %q", in.Priority)
	}
	if err := validateCharge("base service charge", in.BaseServiceCharge); err != nil {
		return nil, err
	}
	rate := s.defaultTaxRate
	if in.TaxRate != nil {
		rate = *in.TaxRate
	}
	if err := validateTaxRate(rate); err != nil {
		return nil, err
	}
	items, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}

	q := &models.Quotation{
		OrganizationID:     actor.OrganizationID,
		Customer:           in.Customer,
		Vehicle:            in.Vehicle,
		ProblemDescription: in.ProblemDescription,
		WorkDescription:    in.WorkDescription,
		Priority:           in.Priority,
		BaseServiceCharge:  in.BaseServiceCharge,
		TaxRate:            rate,
		Status:             models.StatusPending,
		CreatedBy:          actor.UserID,
		Items:              items,
	}
	computeTotals(q)
	return q, nil
}

// Create prices and stores a new pending quotation.
func (s *QuotationService) Create(ctx context.Context, actor models.Actor, in QuotationInput) (*models.Quotation, error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.Create", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleTechnician); err != nil {
		return nil, err
	}
	var q *models.Quotation
	if q, err = s.build(actor, in); err != nil {
		return nil, err
	}

	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.insert(ctx, tx, actor, q)
	})
	if err != nil {
		err = apperr.Wrap("create quotation", err)
		return nil, err
	}

	util.QuotationsCreatedTotal.Inc()
	s.logger.Info("Quotation created", append(util.ActorFields(actor),
		zap.Int64("quotation_id", q.ID),
		zap.String("number", q.QuotationNumber),
		zap.String("total", q.TotalAmount.StringFixed(2)))...)
	return q, nil
}

func (s *QuotationService) insert(ctx context.Context, tx store.Tx, actor models.Actor, q *models.Quotation) error {
	number, err := s.deps.Sequences.issue(ctx, tx, actor.OrganizationID, s.deps.now().Year(), models.SequenceQuotation)
	if err != nil {
		return err
	}
	q.QuotationNumber = number
	if err := tx.InsertQuotation(ctx, q); err != nil {
		return err
	}
	if err := tx.ReplaceQuotationItems(ctx, q.ID, q.Items); err != nil {
		return err
	}
	if err := tx.InsertHistory(ctx, history(actor, models.EntityQuotation, q.ID, "create", number)); err != nil {
		return err
	}
	return tx.InsertActivity(ctx, activity(actor, "quotation_created", "created quotation "+number))
}

// Get returns a quotation with its lines.
func (s *QuotationService) Get(ctx context.Context, actor models.Actor, id int64) (*models.Quotation, error) {
	q, err := s.deps.Repo.GetQuotation(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, apperr.Wrap("get quotation", err)
	}
	return q, nil
}

// List returns the actor's organization's quotations, newest first.
func (s *QuotationService) List(ctx context.Context, actor models.Actor, filter models.QuotationFilter) ([]models.Quotation, error) {
	if filter.Status != "" && !lifecycle.Valid(filter.Status) {
		return nil, apperr.Validation("unknown status %q", filter.Status)
	}
	filter.OrganizationID = actor.OrganizationID
	filter.Page = filter.Page.Normalize()
	quotes, err := s.deps.Repo.ListQuotations(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap("list quotations", err)
	}
	return quotes, nil
}

// Approvals lists the approval rounds of a quotation.
func (s *QuotationService) Approvals(ctx context.Context, actor models.Actor, id int64) ([]models.Approval, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	approvals, err := s.deps.Repo.ListApprovals(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, apperr.Wrap("list approvals", err)
	}
	return approvals, nil
}

// GetApproval loads one approval gate.
func (s *QuotationService) GetApproval(ctx context.Context, actor models.Actor, id int64) (*models.Approval, error) {
	approval, err := s.deps.Repo.GetApproval(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, apperr.Wrap("get approval", err)
	}
	return approval, nil
}

// History returns the status log and audit rows of a quotation.
func (s *QuotationService) History(ctx context.Context, actor models.Actor, id int64) (*models.QuotationHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	statusLog, err := s.deps.Repo.ListStatusLog(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, apperr.Wrap("list status log", err)
	}
	entries, err := s.deps.Repo.ListHistory(ctx, actor.OrganizationID, models.EntityQuotation, id)
	if err != nil {
		return nil, apperr.Wrap("list history", err)
	}
	return &models.QuotationHistory{StatusLog: statusLog, Entries: entries}, nil
}

// Update applies patch while the quotation is still pending or sent. Each
// changed field gets its own history row.
func (s *QuotationService) Update(ctx context.Context, actor models.Actor, id int64, patch QuotationPatch) (*models.Quotation, error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.Update", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleTechnician); err != nil {
		return nil, err
	}

	var q *models.Quotation
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if q, err = tx.LockQuotation(ctx, actor.OrganizationID, id); err != nil {
			return err
		}
		if !lifecycle.Editable(q.Status) {
			return apperr.Precondition(apperr.ErrNotEditable, "quotation is not editable in status %s", q.Status)
		}

		changes, itemsChanged, err := applyPatch(q, patch)
		if err != nil {
			return err
		}
		oldTotal := q.TotalAmount
		computeTotals(q)
		if !q.TotalAmount.Equal(oldTotal) {
			changes = append(changes, change{"total_amount", oldTotal.StringFixed(2), q.TotalAmount.StringFixed(2)})
		}
		if len(changes) == 0 && !itemsChanged {
			return nil
		}

		if err := tx.UpdateQuotationDetails(ctx, q); err != nil {
			return err
		}
		if itemsChanged {
			if err := tx.ReplaceQuotationItems(ctx, q.ID, q.Items); err != nil {
				return err
			}
			if err := tx.InsertHistory(ctx, history(actor, models.EntityQuotation, q.ID, "items_replaced",
				strconv.Itoa(len(q.Items))+" lines")); err != nil {
				return err
			}
		}
		for _, c := range changes {
			if err := tx.InsertHistory(ctx, fieldChange(actor, models.EntityQuotation, q.ID, c.field, c.old, c.new)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = apperr.Wrap("update quotation", err)
		return nil, err
	}
	return q, nil
}

type change struct {
	field, old, new string
}

func applyPatch(q *models.Quotation, p QuotationPatch) ([]change, bool, error) {
	var changes []change
	set := func(field string, dst *string, v *string) {
		if v != nil && *v != *dst {
			changes = append(changes, change{field, *dst, *v})
			*dst = *v
		}
	}

	if p.Customer != nil {
		if strings.TrimSpace(p.Customer.Name) == "" {
			return nil, false, apperr.Validation("customer name is required")
		}
		set("customer_name", &q.Customer.Name, &p.Customer.Name)
		set("customer_phone", &q.Customer.Phone, &p.Customer.Phone)
		set("customer_email", &q.Customer.Email, &p.Customer.Email)
		set("customer_address", &q.Customer.Address, &p.Customer.Address)
	}
	if p.Vehicle != nil {
		set("vehicle_make", &q.Vehicle.Make, &p.Vehicle.Make)
		set("vehicle_model", &q.Vehicle.Model, &p.Vehicle.Model)
		set("vehicle_registration", &q.Vehicle.Registration, &p.Vehicle.Registration)
		set("vehicle_vin", &q.Vehicle.VIN, &p.Vehicle.VIN)
		if p.Vehicle.Year != q.Vehicle.Year {
			changes = append(changes, change{"vehicle_year", strconv.Itoa(q.Vehicle.Year), strconv.Itoa(p.Vehicle.Year)})
			q.Vehicle.Year = p.Vehicle.Year
		}
	}
	set("problem_description", &q.ProblemDescription, p.ProblemDescription)
	set("work_description", &q.WorkDescription, p.WorkDescription)

	if p.Priority != nil && *p.Priority != q.Priority {
		if !p.Priority.Valid() {
			return nil, false, apperr.Validation("unknown priority %q", *p.Priority)
		}
		changes = append(changes, change{"priority", string(q.Priority), string(*p.Priority)})
		q.Priority = *p.Priority
	}
	if p.BaseServiceCharge != nil && !p.BaseServiceCharge.Equal(q.BaseServiceCharge) {
		if err := validateCharge("base service charge", *p.BaseServiceCharge); err != nil {
			return nil, false, err
		}
		changes = append(changes, change{"base_service_charge", q.BaseServiceCharge.StringFixed(2), p.BaseServiceCharge.StringFixed(2)})
		q.BaseServiceCharge = *p.BaseServiceCharge
	}
	if p.TaxRate != nil && !p.TaxRate.Equal(q.TaxRate) {
		if err := validateTaxRate(*p.TaxRate); err != nil {
			return nil, false, err
		}
		changes = append(changes, change{"tax_rate", q.TaxRate.StringFixed(2), p.TaxRate.StringFixed(2)})
		q.TaxRate = *p.TaxRate
	}

	itemsChanged := false
	if p.Items != nil {
		items, err := buildItems(*p.Items)
		if err != nil {
			return nil, false, err
		}
		q.Items = items
		itemsChanged = true
	}
	return changes, itemsChanged, nil
}

// Send moves a pending quotation to sent and opens its approval gate.
func (s *QuotationService) Send(ctx context.Context, actor models.Actor, id int64, notes string) (*models.Quotation, error) {
	return s.Transition(ctx, actor, id, models.StatusPending, models.StatusSent, notes)
}

// Transition moves a quotation from expected to to. It fails with
// ErrAlreadyProcessed when the quotation has already moved past expected,
// which is how the loser of two concurrent callers learns it lost, and with
// ErrInvalidTransition when it has not reached expected yet.
func (s *QuotationService) Transition(ctx context.Context, actor models.Actor, id int64, expected, to models.QuotationStatus, notes string) (*models.Quotation, error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.Transition", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, minRoleFor(to)); err != nil {
		return nil, err
	}
	if !lifecycle.Valid(expected) || !lifecycle.Valid(to) {
		err = apperr.Validation("unknown status")
		return nil, err
	}

	var (
		q       *models.Quotation
		events  []*models.QuotationStatusChangedEvent
		touched []models.InventoryItem
	)
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if q, err = tx.LockQuotation(ctx, actor.OrganizationID, id); err != nil {
			return err
		}
		if err := checkTransition(q.Status, expected, to, false); err != nil {
			return err
		}
		events, touched, err = s.move(ctx, tx, actor, q, to, notes, nil)
		return err
	})
	if err != nil {
		err = apperr.Wrap("transition quotation", err)
		return nil, err
	}

	s.committed(ctx, actor, q, events, touched)
	return q, nil
}

// minRoleFor is the least role that may drive a move to status to.
func minRoleFor(to models.QuotationStatus) models.Role {
	switch to {
	case models.StatusApproved, models.StatusRejected, models.StatusCancelled:
		return models.RoleApprover
	default:
		return models.RoleTechnician
	}
}

// move applies a checked transition and its side effects on tx. approval
// is the gate being decided, if the caller already holds it.
func (s *QuotationService) move(ctx context.Context, tx store.Tx, actor models.Actor, q *models.Quotation,
	to models.QuotationStatus, notes string, approval *models.Approval) ([]*models.QuotationStatusChangedEvent, []models.InventoryItem, error) {

	now := s.deps.now()
	event, err := applyTransition(ctx, tx, actor, q, to, notes, now)
	if err != nil {
		return nil, nil, err
	}
	events := []*models.QuotationStatusChangedEvent{event}

	var touched []models.InventoryItem
	switch to {
	case models.StatusSent:
		err = tx.InsertApproval(ctx, &models.Approval{
			OrganizationID: actor.OrganizationID,
			QuotationID:    q.ID,
			Status:         models.ApprovalPending,
		})

	case models.StatusApproved, models.StatusRejected:
		err = s.decide(ctx, tx, actor, q, to, notes, approval)

	case models.StatusRepairInProgress, models.StatusRepairComplete:
		err = s.progressWorkOrder(ctx, tx, actor, q, to)

	case models.StatusCancelled:
		if touched, err = s.inventory.releaseAllInTx(ctx, tx, actor, q.ID, "quotation cancelled"); err != nil {
			break
		}
		if err = s.cancelWorkOrder(ctx, tx, actor, q); err != nil {
			break
		}
		err = s.cancelApproval(ctx, tx, actor, q, notes)
	}
	if err != nil {
		return nil, nil, err
	}
	return events, touched, nil
}

// decide closes the approval gate and, on approval, opens the work order.
func (s *QuotationService) decide(ctx context.Context, tx store.Tx, actor models.Actor, q *models.Quotation,
	to models.QuotationStatus, notes string, approval *models.Approval) error {

	if approval == nil {
		var err error
		if approval, err = tx.LockPendingApproval(ctx, actor.OrganizationID, q.ID); err != nil {
			return err
		}
	}
	if approval != nil {
		status := models.ApprovalRejected
		if to == models.StatusApproved {
			status = models.ApprovalApproved
		}
		if err := s.closeApproval(ctx, tx, actor, approval, status, notes); err != nil {
			return err
		}
	}

	if to != models.StatusApproved {
		return nil
	}
	wo := &models.WorkOrder{
		OrganizationID: actor.OrganizationID,
		QuotationID:    q.ID,
		AssignedTo:     q.AssignedTo,
		Status:         models.WorkOrderOpen,
		CreatedBy:      actor.UserID,
	}
	if err := tx.InsertWorkOrder(ctx, wo); err != nil {
		return err
	}
	return tx.InsertHistory(ctx, history(actor, models.EntityWorkOrder, wo.ID, "create", q.QuotationNumber))
}

// cancelApproval closes the gate of a quotation cancelled while sent.
func (s *QuotationService) cancelApproval(ctx context.Context, tx store.Tx, actor models.Actor, q *models.Quotation, notes string) error {
	approval, err := tx.LockPendingApproval(ctx, actor.OrganizationID, q.ID)
	if err != nil || approval == nil {
		return err
	}
	return s.closeApproval(ctx, tx, actor, approval, models.ApprovalCancelled, notes)
}

func (s *QuotationService) closeApproval(ctx context.Context, tx store.Tx, actor models.Actor,
	approval *models.Approval, status models.ApprovalStatus, notes string) error {

	now := s.deps.now()
	approval.ApproverID = ptr(actor.UserID)
	approval.Notes = notes
	approval.ApprovedAt = &now
	approval.Status = status
	if err := tx.UpdateApproval(ctx, approval); err != nil {
		return err
	}
	return tx.InsertHistory(ctx, history(actor, models.EntityApproval, approval.ID, string(status), notes))
}

func (s *QuotationService) progressWorkOrder(ctx context.Context, tx store.Tx, actor models.Actor, q *models.Quotation, to models.QuotationStatus) error {
	wo, err := tx.LockWorkOrderByQuotation(ctx, actor.OrganizationID, q.ID)
	if err != nil || wo == nil {
		return err
	}
	now := s.deps.now()
	old := wo.Status
	if to == models.StatusRepairInProgress {
		wo.Status = models.WorkOrderInProgress
		wo.StartedAt = &now
	} else {
		wo.Status = models.WorkOrderCompleted
		wo.CompletedAt = &now
	}
	if err := tx.UpdateWorkOrder(ctx, wo); err != nil {
		return err
	}
	return tx.InsertHistory(ctx, fieldChange(actor, models.EntityWorkOrder, wo.ID, "status", string(old), string(wo.Status)))
}

func (s *QuotationService) cancelWorkOrder(ctx context.Context, tx store.Tx, actor models.Actor, q *models.Quotation) error {
	wo, err := tx.LockWorkOrderByQuotation(ctx, actor.OrganizationID, q.ID)
	if err != nil || wo == nil {
		return err
	}
	old := wo.Status
	wo.Status = models.WorkOrderCancelled
	if err := tx.UpdateWorkOrder(ctx, wo); err != nil {
		return err
	}
	return tx.InsertHistory(ctx, fieldChange(actor, models.EntityWorkOrder, wo.ID, "status", string(old), string(wo.Status)))
}

// committed runs the post-commit side effects of quotation operations.
func (s *QuotationService) committed(ctx context.Context, actor models.Actor, q *models.Quotation,
	events []*models.QuotationStatusChangedEvent, touched []models.InventoryItem) {

	countTransitions(events)
	for _, e := range events {
		s.logger.Info("Quotation status changed", append(util.ActorFields(actor),
			zap.Int64("quotation_id", q.ID),
			zap.String("from", string(e.FromStatus)),
			zap.String("to", string(e.ToStatus)))...)
	}
	s.deps.publishStatusChanges(ctx, events)
	if len(touched) > 0 {
		s.inventory.afterCommit(ctx, touched)
	}
}

// ProcessApproval decides a pending approval. On approval the requested
// allocations are made in the same transaction; if any line is short the
// whole decision rolls back.
func (s *QuotationService) ProcessApproval(ctx context.Context, actor models.Actor, approvalID int64,
	decision ApprovalDecision, notes string, allocations []AllocationLine) (*models.Quotation, error) {

	ctx, span := util.StartSpan(ctx, "QuotationService.ProcessApproval", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleApprover); err != nil {
		return nil, err
	}
	to := models.StatusApproved
	switch decision {
	case DecisionApprove:
		if len(allocations) > 0 {
			if err = validateLines(allocations); err != nil {
				return nil, err
			}
		}
	case DecisionReject:
		to = models.StatusRejected
		if len(allocations) > 0 {
			err = apperr.Validation("allocations are only accepted with an approval")
			return nil, err
		}
	default:
		err = apperr.Validation("decision must be approve or reject")
		return nil, err
	}

	var (
		q       *models.Quotation
		events  []*models.QuotationStatusChangedEvent
		touched []models.InventoryItem
	)
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		approval, err := tx.LockApproval(ctx, actor.OrganizationID, approvalID)
		if err != nil {
			return err
		}
		if approval.Status != models.ApprovalPending {
			util.QuotationTransitionsRejected.WithLabelValues("stale").Inc()
			return apperr.Precondition(apperr.ErrAlreadyProcessed, "quotation already processed")
		}
		if q, err = tx.LockQuotation(ctx, actor.OrganizationID, approval.QuotationID); err != nil {
			return err
		}
		if err := checkTransition(q.Status, models.StatusSent, to, false); err != nil {
			return err
		}
		if events, touched, err = s.move(ctx, tx, actor, q, to, notes, approval); err != nil {
			return err
		}
		if len(allocations) > 0 {
			_, items, err := s.inventory.allocateLines(ctx, tx, actor, q.ID, allocations)
			if err != nil {
				return err
			}
			touched = append(touched, items...)
		}
		return tx.InsertActivity(ctx, activity(actor, "approval_"+string(decision), q.QuotationNumber))
	})
	if err != nil {
		err = apperr.Wrap("process approval", err)
		return nil, err
	}

	if len(allocations) > 0 {
		util.InventoryAllocationsTotal.Add(float64(len(allocations)))
	}
	s.committed(ctx, actor, q, events, touched)
	return q, nil
}

// Assign hands the repair to a technician while it is approved or in
// progress.
func (s *QuotationService) Assign(ctx context.Context, actor models.Actor, id, technicianID int64) (*models.Quotation, error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.Assign", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleApprover); err != nil {
		return nil, err
	}
	if technicianID <= 0 {
		err = apperr.Validation("technician is required")
		return nil, err
	}

	var q *models.Quotation
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if q, err = tx.LockQuotation(ctx, actor.OrganizationID, id); err != nil {
			return err
		}
		if q.Status != models.StatusApproved && q.Status != models.StatusRepairInProgress {
			return apperr.Precondition(apperr.ErrInvalidTransition,
				"cannot assign a quotation in status %s", q.Status)
		}

		old := ""
		if q.AssignedTo != nil {
			old = strconv.FormatInt(*q.AssignedTo, 10)
		}
		if err := tx.SetQuotationAssignee(ctx, actor.OrganizationID, q.ID, technicianID); err != nil {
			return err
		}
		q.AssignedTo = ptr(technicianID)

		wo, err := tx.LockWorkOrderByQuotation(ctx, actor.OrganizationID, q.ID)
		if err != nil {
			return err
		}
		if wo != nil {
			wo.AssignedTo = ptr(technicianID)
			if err := tx.UpdateWorkOrder(ctx, wo); err != nil {
				return err
			}
		}
		h := fieldChange(actor, models.EntityQuotation, q.ID, "assigned_to", old, strconv.FormatInt(technicianID, 10))
		h.Action = "assign"
		return tx.InsertHistory(ctx, h)
	})
	if err != nil {
		err = apperr.Wrap("assign quotation", err)
		return nil, err
	}
	return q, nil
}

// StartRepair moves an approved quotation into repair.
func (s *QuotationService) StartRepair(ctx context.Context, actor models.Actor, id int64, notes string) (*models.Quotation, error) {
	return s.Transition(ctx, actor, id, models.StatusApproved, models.StatusRepairInProgress, notes)
}

// CompleteRepair marks the repair finished, which makes the quotation
// billable.
func (s *QuotationService) CompleteRepair(ctx context.Context, actor models.Actor, id int64, notes string) (*models.Quotation, error) {
	return s.Transition(ctx, actor, id, models.StatusRepairInProgress, models.StatusRepairComplete, notes)
}

// Cancel cancels the quotation from whatever cancellable status it is in
// and releases its stock reservations.
func (s *QuotationService) Cancel(ctx context.Context, actor models.Actor, id int64, notes string) (*models.Quotation, error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.Cancel", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleApprover); err != nil {
		return nil, err
	}

	var (
		q       *models.Quotation
		events  []*models.QuotationStatusChangedEvent
		touched []models.InventoryItem
	)
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if q, err = tx.LockQuotation(ctx, actor.OrganizationID, id); err != nil {
			return err
		}
		if err := checkTransition(q.Status, q.Status, models.StatusCancelled, false); err != nil {
			return err
		}
		events, touched, err = s.move(ctx, tx, actor, q, models.StatusCancelled, notes, nil)
		return err
	})
	if err != nil {
		err = apperr.Wrap("cancel quotation", err)
		return nil, err
	}

	s.committed(ctx, actor, q, events, touched)
	return q, nil
}
