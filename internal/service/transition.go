package service

import (
	"context"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/lifecycle"
	"workshop-service/internal/models"
	"workshop-service/internal/store"
	"workshop-service/internal/util"
)

// checkTransition validates a requested move against the current status.
// Billing-only edges pass only when billing is set. A quotation that has
// already moved past expected reports ErrAlreadyProcessed; one that has not
// reached expected yet reports ErrInvalidTransition.
func checkTransition(current, expected, to models.QuotationStatus, billing bool) error {
	origin, ok := lifecycle.Allowed(expected, to)
	if !ok {
		util.QuotationTransitionsRejected.WithLabelValues("invalid").Inc()
		return apperr.Precondition(apperr.ErrInvalidTransition,
			"cannot move quotation from %s to %s", expected, to)
	}
	if origin == lifecycle.OriginBilling && !billing {
		util.QuotationTransitionsRejected.WithLabelValues("billing_only").Inc()
		return apperr.Precondition(apperr.ErrInvalidTransition,
			"%s is only reachable through billing", to)
	}
	if current == expected {
		return nil
	}
	if lifecycle.Terminal(current) || lifecycle.Reachable(expected, current) {
		util.QuotationTransitionsRejected.WithLabelValues("stale").Inc()
		return apperr.Precondition(apperr.ErrAlreadyProcessed,
			"quotation already processed: status is %s", current)
	}
	util.QuotationTransitionsRejected.WithLabelValues("premature").Inc()
	return apperr.Precondition(apperr.ErrInvalidTransition,
		"%s requires status %s, quotation is %s", to, expected, current)
}

// applyTransition writes q.Status -> to on tx with the status guard and
// appends the status-log and history rows. q is updated in place.
func applyTransition(ctx context.Context, tx store.Tx, actor models.Actor, q *models.Quotation,
	to models.QuotationStatus, notes string, at time.Time) (*models.QuotationStatusChangedEvent, error) {

	from := q.Status
	stamp := models.StatusStamp{From: from, To: to, At: at}
	if to == models.StatusApproved {
		stamp.ApprovedBy = ptr(actor.UserID)
	}

	ok, err := tx.UpdateQuotationStatus(ctx, actor.OrganizationID, q.ID, stamp)
	if err != nil {
		return nil, err
	}
	if !ok {
		util.QuotationTransitionsRejected.WithLabelValues("stale").Inc()
		return nil, apperr.Precondition(apperr.ErrAlreadyProcessed, "quotation already processed")
	}

	q.Status = to
	q.UpdatedAt = at
	lifecycle.Stamp(q, to, at)
	if stamp.ApprovedBy != nil {
		q.ApprovedBy = stamp.ApprovedBy
	}

	if err := tx.InsertStatusLog(ctx, &models.StatusLogEntry{
		OrganizationID: actor.OrganizationID,
		QuotationID:    q.ID,
		FromStatus:     from,
		ToStatus:       to,
		ChangedBy:      actor.UserID,
		Notes:          notes,
	}); err != nil {
		return nil, err
	}

	h := fieldChange(actor, models.EntityQuotation, q.ID, "status", string(from), string(to))
	h.Action = "status_change"
	h.Notes = notes
	if err := tx.InsertHistory(ctx, h); err != nil {
		return nil, err
	}

	return &models.QuotationStatusChangedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeQuotationStatusChanged, actor.OrganizationID, at),
		QuotationID:     q.ID,
		QuotationNumber: q.QuotationNumber,
		FromStatus:      from,
		ToStatus:        to,
		ActorID:         actor.UserID,
	}, nil
}

func countTransitions(events []*models.QuotationStatusChangedEvent) {
	for _, e := range events {
		util.QuotationTransitionsTotal.WithLabelValues(string(e.FromStatus), string(e.ToStatus)).Inc()
	}
}
