package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var happyPath = []models.QuotationStatus{
	models.StatusPending,
	models.StatusSent,
	models.StatusApproved,
	models.StatusRepairInProgress,
	models.StatusRepairComplete,
}

// driveTo walks q along the workflow until it reaches target.
func (f *fixture) driveTo(t *testing.T, q *models.Quotation, target models.QuotationStatus) {
	t.Helper()
	for i := 1; i < len(happyPath) && happyPath[i-1] != target; i++ {
		_, err := f.quotes.Transition(context.Background(), approver, q.ID, happyPath[i-1], happyPath[i], "")
		require.NoError(t, err)
	}
}

func TestCreateComputesTotals(t *testing.T) {
	f := newFixture(t)

	q := f.createQuotation(t, "500.00",
		ItemInput{ItemType: models.ItemTypeParts, Description: "Brake pads", Quantity: dec("2"), Rate: dec("250.50")},
		ItemInput{ItemType: models.ItemTypeMisc, Description: "Coolant top-up", Quantity: dec("1"), Rate: dec("99.99")},
	)

	assert.Equal(t, "QT-2025-0001", q.QuotationNumber)
	assert.Equal(t, models.StatusPending, q.Status)
	require.Len(t, q.Items, 2)
	assert.Equal(t, "501.00", q.Items[0].Amount.StringFixed(2))
	assert.Equal(t, "600.99", q.PartsTotal.StringFixed(2))
	assert.Equal(t, "1100.99", q.Subtotal.StringFixed(2))
	assert.Equal(t, "198.18", q.TaxAmount.StringFixed(2))
	assert.Equal(t, "1299.17", q.TotalAmount.StringFixed(2))

	stored, err := f.quotes.Get(context.Background(), technician, q.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(q.TotalAmount))
	assert.Len(t, stored.Items, 2)

	second := f.createQuotation(t, "100")
	assert.Equal(t, "QT-2025-0002", second.QuotationNumber)

	activity := f.repo.Activity()
	require.Len(t, activity, 2)
	assert.Equal(t, "quotation_created", activity[0].Action)
	assert.Equal(t, technician.UserID, activity[0].UserID)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := QuotationInput{Customer: models.Customer{Name: "Ravi"}, BaseServiceCharge: dec("10")}

	tests := []struct {
		name   string
		mutate func(in *QuotationInput)
	}{
		{"missing customer", func(in *QuotationInput) { in.Customer.Name = " " }},
		{"negative base charge", func(in *QuotationInput) { in.BaseServiceCharge = dec("-1") }},
		{"three decimals", func(in *QuotationInput) { in.BaseServiceCharge = dec("1.005") }},
		{"tax above 100", func(in *QuotationInput) { r := dec("120"); in.TaxRate = &r }},
		{"unknown priority", func(in *QuotationInput) { in.Priority = "whenever" }},
		{"unknown item type", func(in *QuotationInput) {
			in.Items = []ItemInput{{ItemType: "labour", Description: "x", Quantity: dec("1"), Rate: dec("1")}}
		}},
		{"zero quantity", func(in *QuotationInput) {
			in.Items = []ItemInput{{ItemType: models.ItemTypeParts, Description: "x", Quantity: dec("0"), Rate: dec("1")}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.quotes.Create(ctx, technician, in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	_, err := f.quotes.Create(ctx, requestor, valid)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	list, err := f.quotes.List(ctx, technician, models.QuotationFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateWritesFieldHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "1000")

	base := dec("2000")
	work := "Replace clutch plate"
	updated, err := f.quotes.Update(ctx, technician, q.ID, QuotationPatch{
		BaseServiceCharge: &base,
		WorkDescription:   &work,
		Items: &[]ItemInput{
			{ItemType: models.ItemTypeParts, Description: "Clutch plate", Quantity: dec("1"), Rate: dec("3000")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "5900.00", updated.TotalAmount.StringFixed(2))

	hist, err := f.quotes.History(ctx, technician, q.ID)
	require.NoError(t, err)
	fields := map[string]string{}
	for _, e := range hist.Entries {
		if e.FieldName != nil {
			fields[*e.FieldName] = *e.NewValue
		}
	}
	assert.Equal(t, "2000.00", fields["base_service_charge"])
	assert.Equal(t, work, fields["work_description"])
	assert.Equal(t, "5900.00", fields["total_amount"])

	stored, err := f.quotes.Get(ctx, technician, q.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Clutch plate", stored.Items[0].Description)
}

func TestUpdateRejectedOnceApproved(t *testing.T) {
	f := newFixture(t)
	q := f.createQuotation(t, "1000")
	f.approve(t, q)

	desc := "late change"
	_, err := f.quotes.Update(context.Background(), technician, q.ID, QuotationPatch{ProblemDescription: &desc})
	assert.ErrorIs(t, err, apperr.ErrNotEditable)
}

func TestConcurrentTransitionHasSingleWinner(t *testing.T) {
	type pair struct{ from, to models.QuotationStatus }
	pairs := []pair{
		{models.StatusPending, models.StatusSent},
		{models.StatusSent, models.StatusApproved},
		{models.StatusSent, models.StatusRejected},
		{models.StatusApproved, models.StatusRepairInProgress},
		{models.StatusRepairInProgress, models.StatusRepairComplete},
		{models.StatusPending, models.StatusCancelled},
		{models.StatusSent, models.StatusCancelled},
		{models.StatusApproved, models.StatusCancelled},
		{models.StatusRepairInProgress, models.StatusCancelled},
		{models.StatusRepairComplete, models.StatusCancelled},
	}

	for _, p := range pairs {
		t.Run(fmt.Sprintf("%s->%s", p.from, p.to), func(t *testing.T) {
			f := newFixture(t)
			q := f.createQuotation(t, "100")
			f.driveTo(t, q, p.from)

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = f.quotes.Transition(context.Background(), approver, q.ID, p.from, p.to, "race")
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, err := range errs {
				if err == nil {
					wins++
					continue
				}
				assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
				assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
			}
			assert.Equal(t, 1, wins)

			stored, err := f.quotes.Get(context.Background(), approver, q.ID)
			require.NoError(t, err)
			assert.Equal(t, p.to, stored.Status)
		})
	}
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")

	_, err := f.quotes.Transition(ctx, approver, q.ID, models.StatusPending, models.StatusApproved, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	f.driveTo(t, q, models.StatusRepairComplete)
	_, err = f.quotes.Transition(ctx, approver, q.ID, models.StatusRepairComplete, models.StatusBillGenerated, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	stored, err := f.quotes.Get(ctx, approver, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRepairComplete, stored.Status)
	assert.NotNil(t, stored.RepairCompletedAt)
}

func TestTransitionWithStaleStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")
	f.driveTo(t, q, models.StatusSent)

	_, err := f.quotes.Transition(ctx, approver, q.ID, models.StatusPending, models.StatusSent, "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.Equal(t, "quotation already processed: status is sent", apperr.PublicMessage(err))
}

func TestTransitionAheadOfStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")
	f.approve(t, q)

	_, err := f.quotes.Transition(ctx, technician, q.ID, models.StatusRepairInProgress, models.StatusRepairComplete, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.NotErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.Equal(t, "repair_complete requires status repair_in_progress, quotation is approved", apperr.PublicMessage(err))

	_, err = f.quotes.Transition(ctx, approver, q.ID, models.StatusSent, models.StatusApproved, "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)

	stored, err := f.quotes.Get(ctx, approver, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
}

func TestTransitionRoleChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")
	f.driveTo(t, q, models.StatusSent)

	_, err := f.quotes.Transition(ctx, technician, q.ID, models.StatusSent, models.StatusApproved, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.quotes.Cancel(ctx, technician, q.ID, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestProcessApprovalTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")
	_, err := f.quotes.Send(ctx, technician, q.ID, "")
	require.NoError(t, err)
	approval := f.pendingApproval(t, q.ID)

	q, err = f.quotes.ProcessApproval(ctx, approver, approval.ID, DecisionReject, "too costly", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, q.Status)
	assert.NotNil(t, q.RejectedAt)

	_, err = f.quotes.ProcessApproval(ctx, approver, approval.ID, DecisionApprove, "", nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)

	approvals, err := f.quotes.Approvals(ctx, approver, q.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, models.ApprovalRejected, approvals[0].Status)
	assert.Equal(t, approver.UserID, *approvals[0].ApproverID)

	_, err = f.repo.GetWorkOrderByQuotation(ctx, 1, q.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApprovalWithAllocationsIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.createItem(t, "BP-01", 10, 0)
	discs := f.createItem(t, "BD-01", 2, 0)
	q := f.createQuotation(t, "100")
	_, err := f.quotes.Send(ctx, technician, q.ID, "")
	require.NoError(t, err)
	approval := f.pendingApproval(t, q.ID)

	_, err = f.quotes.ProcessApproval(ctx, approver, approval.ID, DecisionApprove, "", []AllocationLine{
		{ItemID: pads.ID, Quantity: 3},
		{ItemID: discs.ID, Quantity: 5},
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, "insufficient stock: available 2", apperr.PublicMessage(err))

	stored, err := f.quotes.Get(ctx, approver, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, stored.Status)
	item, err := f.inventory.GetItem(ctx, approver, pads.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, item.AvailableStock())
	_, err = f.repo.GetWorkOrderByQuotation(ctx, 1, q.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	q, err = f.quotes.ProcessApproval(ctx, approver, approval.ID, DecisionApprove, "", []AllocationLine{
		{ItemID: pads.ID, Quantity: 3},
		{ItemID: discs.ID, Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, q.Status)
	assert.Equal(t, approver.UserID, *q.ApprovedBy)

	wo, err := f.repo.GetWorkOrderByQuotation(ctx, 1, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderOpen, wo.Status)

	item, err = f.inventory.GetItem(ctx, approver, pads.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, item.AvailableStock())
	assert.Equal(t, 0, f.cache.levels[discs.ID])
}

func TestApprovalRejectsBadAllocationLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.createItem(t, "BP-01", 10, 0)
	q := f.createQuotation(t, "100")
	_, err := f.quotes.Send(ctx, technician, q.ID, "")
	require.NoError(t, err)
	approval := f.pendingApproval(t, q.ID)

	_, err = f.quotes.ProcessApproval(ctx, approver, approval.ID, DecisionApprove, "", []AllocationLine{
		{ItemID: pads.ID, Quantity: -1},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "allocation quantity must be positive", apperr.PublicMessage(err))

	stored, err := f.quotes.Get(ctx, approver, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, stored.Status)
	assert.Equal(t, approval.ID, f.pendingApproval(t, q.ID).ID)
}

func TestCancelReleasesAllocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.createItem(t, "BP-01", 10, 0)
	q := f.createQuotation(t, "100")
	f.approve(t, q, AllocationLine{ItemID: pads.ID, Quantity: 4})

	q, err := f.quotes.Cancel(ctx, approver, q.ID, "customer withdrew")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, q.Status)
	assert.NotNil(t, q.CancelledAt)

	item, err := f.inventory.GetItem(ctx, approver, pads.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.AllocatedStock)
	assert.Equal(t, 10, item.AvailableStock())

	allocs, err := f.inventory.ListAllocations(ctx, approver, q.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, models.AllocationReleased, allocs[0].Status)

	wo, err := f.repo.GetWorkOrderByQuotation(ctx, 1, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderCancelled, wo.Status)

	_, err = f.quotes.Cancel(ctx, approver, q.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestCancelClosesPendingApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")
	_, err := f.quotes.Send(ctx, technician, q.ID, "")
	require.NoError(t, err)
	approval := f.pendingApproval(t, q.ID)

	q, err = f.quotes.Cancel(ctx, approver, q.ID, "customer withdrew")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, q.Status)

	approvals, err := f.quotes.Approvals(ctx, approver, q.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, models.ApprovalCancelled, approvals[0].Status)
	assert.Equal(t, "customer withdrew", approvals[0].Notes)
	require.NotNil(t, approvals[0].ApproverID)
	assert.Equal(t, approver.UserID, *approvals[0].ApproverID)

	_, err = f.quotes.ProcessApproval(ctx, approver, approval.ID, DecisionApprove, "", nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
}

func TestRepairProgressUpdatesWorkOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")

	_, err := f.quotes.Assign(ctx, approver, q.ID, 42)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	f.approve(t, q)
	q, err = f.quotes.Assign(ctx, approver, q.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), *q.AssignedTo)

	_, err = f.quotes.StartRepair(ctx, technician, q.ID, "")
	require.NoError(t, err)
	wo, err := f.repo.GetWorkOrderByQuotation(ctx, 1, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderInProgress, wo.Status)
	assert.Equal(t, int64(42), *wo.AssignedTo)
	assert.NotNil(t, wo.StartedAt)

	q, err = f.quotes.CompleteRepair(ctx, technician, q.ID, "done")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRepairComplete, q.Status)
	wo, err = f.repo.GetWorkOrderByQuotation(ctx, 1, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderCompleted, wo.Status)
}

func TestStatusLogAndEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")
	f.approve(t, q)

	_, err := f.quotes.Transition(ctx, approver, q.ID, models.StatusPending, models.StatusSent, "")
	require.Error(t, err)

	hist, err := f.quotes.History(ctx, approver, q.ID)
	require.NoError(t, err)
	require.Len(t, hist.StatusLog, 2)
	assert.Equal(t, models.StatusPending, hist.StatusLog[0].FromStatus)
	assert.Equal(t, models.StatusSent, hist.StatusLog[0].ToStatus)
	assert.Equal(t, models.StatusApproved, hist.StatusLog[1].ToStatus)
	assert.Equal(t, approver.UserID, hist.StatusLog[1].ChangedBy)

	require.Len(t, f.events.statuses, 2)
	assert.Equal(t, models.StatusApproved, f.events.statuses[1].ToStatus)
	assert.Equal(t, q.QuotationNumber, f.events.statuses[1].QuotationNumber)
	assert.NotEmpty(t, f.events.statuses[1].EventID)
}

func TestOtherOrganizationCannotSeeQuotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.createQuotation(t, "100")
	outsider := models.Actor{UserID: 99, OrganizationID: 2, Role: models.RoleAdmin}

	_, err := f.quotes.Get(ctx, outsider, q.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.quotes.Transition(ctx, outsider, q.ID, models.StatusPending, models.StatusSent, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := f.quotes.List(ctx, outsider, models.QuotationFilter{OrganizationID: 1})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceRequestConversion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.quotes.CreateServiceRequest(ctx, requestor, ServiceRequestInput{
		Customer:           models.Customer{Name: "Meera", Phone: "9811111111"},
		Vehicle:            models.Vehicle{Make: "Honda", Model: "City", Registration: "MH12XY9999"},
		ProblemDescription: "Engine knocking",
	})
	require.NoError(t, err)
	assert.Equal(t, "SR-2025-0001", req.RequestNumber)
	assert.Equal(t, models.PriorityMedium, req.Priority)

	q, err := f.quotes.ConvertToQuotation(ctx, technician, req.ID, QuotationInput{BaseServiceCharge: dec("1500")})
	require.NoError(t, err)
	assert.Equal(t, "Meera", q.Customer.Name)
	assert.Equal(t, "MH12XY9999", q.Vehicle.Registration)
	assert.Equal(t, "Engine knocking", q.ProblemDescription)
	require.NotNil(t, q.ServiceRequestID)
	assert.Equal(t, req.ID, *q.ServiceRequestID)

	stored, err := f.quotes.GetServiceRequest(ctx, technician, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestConverted, stored.Status)
	assert.Equal(t, q.ID, *stored.QuotationID)

	_, err = f.quotes.ConvertToQuotation(ctx, technician, req.ID, QuotationInput{})
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
}
