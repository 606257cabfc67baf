// Package lifecycle holds the quotation transition table. It is the only
// place that knows which status may follow which.
package lifecycle

import (
	"time"

	"workshop-service/internal/models"
)

type edge struct {
	from, to models.QuotationStatus
}

// Origin says who may drive an edge.
type Origin int

const (
	// OriginWorkflow edges are driven by quotation operations.
	OriginWorkflow Origin = iota
	// OriginBilling edges are only reachable through the billing ledger.
	OriginBilling
)

var transitions = map[edge]Origin{
	{models.StatusPending, models.StatusSent}:                    OriginWorkflow,
	{models.StatusSent, models.StatusApproved}:                   OriginWorkflow,
	{models.StatusSent, models.StatusRejected}:                   OriginWorkflow,
	{models.StatusApproved, models.StatusRepairInProgress}:       OriginWorkflow,
	{models.StatusRepairInProgress, models.StatusRepairComplete}: OriginWorkflow,
	{models.StatusRepairComplete, models.StatusBillGenerated}:    OriginBilling,
	{models.StatusBillGenerated, models.StatusPaid}:              OriginBilling,

	{models.StatusPending, models.StatusCancelled}:          OriginWorkflow,
	{models.StatusSent, models.StatusCancelled}:             OriginWorkflow,
	{models.StatusApproved, models.StatusCancelled}:         OriginWorkflow,
	{models.StatusRepairInProgress, models.StatusCancelled}: OriginWorkflow,
	{models.StatusRepairComplete, models.StatusCancelled}:   OriginWorkflow,
}

// Allowed reports whether to may follow from, and who may drive the move.
func Allowed(from, to models.QuotationStatus) (Origin, bool) {
	o, ok := transitions[edge{from, to}]
	return o, ok
}

// Successors lists every status reachable from s in one step.
func Successors(s models.QuotationStatus) []models.QuotationStatus {
	var out []models.QuotationStatus
	for _, st := range All() {
		if _, ok := transitions[edge{s, st}]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Reachable reports whether to can follow from through one or more edges.
func Reachable(from, to models.QuotationStatus) bool {
	seen := map[models.QuotationStatus]bool{from: true}
	queue := []models.QuotationStatus{from}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, next := range Successors(s) {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func Terminal(s models.QuotationStatus) bool {
	return len(Successors(s)) == 0
}

// Editable reports whether line items and header fields may still change.
func Editable(s models.QuotationStatus) bool {
	return s == models.StatusPending || s == models.StatusSent
}

// Valid reports whether s is a known status.
func Valid(s models.QuotationStatus) bool {
	for _, st := range All() {
		if st == s {
			return true
		}
	}
	return false
}

// All statuses in lifecycle order.
func All() []models.QuotationStatus {
	return []models.QuotationStatus{
		models.StatusPending,
		models.StatusSent,
		models.StatusApproved,
		models.StatusRejected,
		models.StatusRepairInProgress,
		models.StatusRepairComplete,
		models.StatusBillGenerated,
		models.StatusPaid,
		models.StatusCancelled,
	}
}

// Stamp sets the timestamp column that belongs to the target status.
func Stamp(q *models.Quotation, to models.QuotationStatus, at time.Time) {
	t := at
	switch to {
	case models.StatusSent:
		q.SentAt = &t
	case models.StatusApproved:
		q.ApprovedAt = &t
	case models.StatusRejected:
		q.RejectedAt = &t
	case models.StatusRepairInProgress:
		q.RepairStartedAt = &t
	case models.StatusRepairComplete:
		q.RepairCompletedAt = &t
	case models.StatusBillGenerated:
		q.BillGeneratedAt = &t
	case models.StatusPaid:
		q.PaidAt = &t
	case models.StatusCancelled:
		q.CancelledAt = &t
	}
}

// TimestampColumn names the column Stamp writes for to, or "" if none.
func TimestampColumn(to models.QuotationStatus) string {
	switch to {
	case models.StatusSent:
		return "sent_at"
	case models.StatusApproved:
		return "approved_at"
	case models.StatusRejected:
		return "rejected_at"
	case models.StatusRepairInProgress:
		return "repair_started_at"
	case models.StatusRepairComplete:
		return "repair_completed_at"
	case models.StatusBillGenerated:
		return "bill_generated_at"
	case models.StatusPaid:
		return "paid_at"
	case models.StatusCancelled:
		return "cancelled_at"
	}
	return ""
}
