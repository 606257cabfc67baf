package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"
	"workshop-service/internal/money"
	"workshop-service/internal/redisclient"
	"workshop-service/internal/store"
	"workshop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BillingService issues bills and records payments against them.
type BillingService struct {
	deps           Deps
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(deps Deps, idempotencyTTL time.Duration) *BillingService {
	return &BillingService{
		deps:           deps,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// BillInput carries the optional bill fields.
type BillInput struct {
	DueDate *time.Time `json:"due_date"`
	Terms   string     `json:"terms"`
	Notes   string     `json:"notes"`
}

// PaymentInput is one payment request. IdempotencyKey is optional; a retry
// with the same key returns the first result instead of paying twice.
type PaymentInput struct {
	Amount         decimal.Decimal      `json:"amount"`
	Method         models.PaymentMethod `json:"payment_method"`
	PaymentDate    *time.Time           `json:"payment_date"`
	Reference      string               `json:"reference"`
	Notes          string               `json:"notes"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// PaymentResult describes the committed payment.
type PaymentResult struct {
	TransactionID     int64                `json:"transaction_id"`
	TransactionNumber string               `json:"transaction_number"`
	NewBalance        decimal.Decimal      `json:"new_balance"`
	Status            models.PaymentStatus `json:"payment_status"`
	Replayed          bool                 `json:"replayed"`
}

// GenerateBill issues the bill of a repaired quotation and moves the
// quotation to bill_generated.
func (s *BillingService) GenerateBill(ctx context.Context, actor models.Actor, quotationID int64, in BillInput) (*models.Bill, error) {
	ctx, span := util.StartSpan(ctx, "BillingService.GenerateBill", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		bill  *models.Bill
		event *models.QuotationStatusChangedEvent
	)
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		q, err := tx.LockQuotation(ctx, actor.OrganizationID, quotationID)
		if err != nil {
			return err
		}
		existing, err := tx.FindBillByQuotation(ctx, actor.OrganizationID, q.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Precondition(apperr.ErrAlreadyBilled, "quotation already billed: %s", existing.BillNumber)
		}
		if err := checkTransition(q.Status, models.StatusRepairComplete, models.StatusBillGenerated, true); err != nil {
			return err
		}

		number, err := s.deps.Sequences.issue(ctx, tx, actor.OrganizationID, s.deps.now().Year(), models.SequenceBill)
		if err != nil {
			return err
		}
		bill = &models.Bill{
			OrganizationID: actor.OrganizationID,
			QuotationID:    q.ID,
			BillNumber:     number,
			Subtotal:       q.Subtotal,
			TaxAmount:      q.TaxAmount,
			TotalAmount:    q.TotalAmount,
			PaidAmount:     decimal.Zero,
			BalanceAmount:  q.TotalAmount,
			PaymentStatus:  models.PaymentUnpaid,
			DueDate:        in.DueDate,
			Terms:          in.Terms,
			Notes:          in.Notes,
			CreatedBy:      actor.UserID,
		}
		if err := tx.InsertBill(ctx, bill); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, history(actor, models.EntityBill, bill.ID, "create", number)); err != nil {
			return err
		}

		if event, err = applyTransition(ctx, tx, actor, q, models.StatusBillGenerated, "bill "+number, s.deps.now()); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, activity(actor, "bill_generated", "generated bill "+number))
	})
	if err != nil {
		err = apperr.Wrap("generate bill", err)
		return nil, err
	}

	util.BillsGeneratedTotal.Inc()
	s.logger.Info("Bill generated", append(util.ActorFields(actor),
		zap.Int64("quotation_id", quotationID),
		zap.String("bill_number", bill.BillNumber),
		zap.String("total", bill.TotalAmount.StringFixed(2)))...)

	events := []*models.QuotationStatusChangedEvent{event}
	countTransitions(events)
	if s.deps.Events != nil {
		if perr := s.deps.Events.PublishBillGenerated(ctx, &models.BillGeneratedEvent{
			BaseEvent:   newBaseEvent(models.EventTypeBillGenerated, actor.OrganizationID, s.deps.now()),
			BillID:      bill.ID,
			BillNumber:  bill.BillNumber,
			QuotationID: bill.QuotationID,
			TotalAmount: bill.TotalAmount,
		}); perr != nil {
			s.logger.Warn("Failed to publish bill generated", zap.Int64("bill_id", bill.ID), zap.Error(perr))
		}
	}
	s.deps.publishStatusChanges(ctx, events)
	return bill, nil
}

// GetBill returns one bill of the actor's organization.
func (s *BillingService) GetBill(ctx context.Context, actor models.Actor, id int64) (*models.Bill, error) {
	bill, err := s.deps.Repo.GetBill(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, apperr.Wrap("get bill", err)
	}
	return bill, nil
}

// ListPayments returns the payments of a bill in the order they were made.
func (s *BillingService) ListPayments(ctx context.Context, actor models.Actor, billID int64) ([]models.PaymentTransaction, error) {
	if _, err := s.GetBill(ctx, actor, billID); err != nil {
		return nil, err
	}
	payments, err := s.deps.Repo.ListPayments(ctx, actor.OrganizationID, billID)
	if err != nil {
		return nil, apperr.Wrap("list payments", err)
	}
	return payments, nil
}

func (s *BillingService) GetPayment(ctx context.Context, actor models.Actor, id int64) (*models.PaymentTransaction, error) {
	payment, err := s.deps.Repo.GetPayment(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, apperr.Wrap("get payment", err)
	}
	return payment, nil
}

// RecordPayment appends a payment to a bill. The bill's paid amount is
// recomputed from all of its payments, and a fully paid bill moves the
// quotation to paid in the same transaction.
func (s *BillingService) RecordPayment(ctx context.Context, actor models.Actor, billID int64, in PaymentInput) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "BillingService.RecordPayment", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			util.PaymentsRejectedTotal.WithLabelValues(failureReason(err)).Inc()
		}
	}()

	if err = authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() || !money.HasValidScale(in.Amount) {
		err = apperr.Validation("payment amount must be positive with at most two decimals")
		return nil, err
	}
	if !in.Method.Valid() {
		err = apperr.Validation("unknown payment method %q", in.Method)
		return nil, err
	}

	key := ""
	if in.IdempotencyKey != "" && s.deps.Idempotency != nil {
		key = fmt.Sprintf("payment:%d:%d:%s", actor.OrganizationID, billID, in.IdempotencyKey)
		var replay *PaymentResult
		if replay, err = s.claim(ctx, key); err != nil || replay != nil {
			return replay, err
		}
	}

	var res *PaymentResult
	res, err = s.pay(ctx, actor, billID, in, false)
	if key != "" {
		s.settle(ctx, key, res, err)
	}
	return res, err
}

// MarkPaid settles the whole remaining balance with one payment.
func (s *BillingService) MarkPaid(ctx context.Context, actor models.Actor, billID int64, method models.PaymentMethod, notes string) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "BillingService.MarkPaid", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if method == "" {
		method = models.MethodCash
	}
	if !method.Valid() {
		err = apperr.Validation("unknown payment method %q", method)
		return nil, err
	}

	var res *PaymentResult
	res, err = s.pay(ctx, actor, billID, PaymentInput{Method: method, Notes: notes}, true)
	if err != nil {
		util.PaymentsRejectedTotal.WithLabelValues(failureReason(err)).Inc()
	}
	return res, err
}

// claim reserves key for this request. It returns the stored result when an
// earlier request with the same key already completed. The idempotency
// store is advisory: when it is unreachable the payment proceeds.
func (s *BillingService) claim(ctx context.Context, key string) (*PaymentResult, error) {
	prev, claimed, err := s.deps.Idempotency.Claim(ctx, key, s.idempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if claimed {
		return nil, nil
	}
	if prev == redisclient.Pending {
		return nil, apperr.Precondition(apperr.ErrInProgress, "payment with this idempotency key is in progress")
	}

	var res PaymentResult
	if err := json.Unmarshal([]byte(prev), &res); err != nil {
		return nil, apperr.Persistence("decode idempotent result", err)
	}
	res.Replayed = true
	s.logger.Info("Duplicate payment request detected",
		zap.String("key", key),
		zap.Int64("transaction_id", res.TransactionID))
	return &res, nil
}

func (s *BillingService) settle(ctx context.Context, key string, res *PaymentResult, err error) {
	if err != nil {
		if aerr := s.deps.Idempotency.Abandon(ctx, key); aerr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(aerr))
		}
		return
	}
	raw, merr := json.Marshal(res)
	if merr == nil {
		merr = s.deps.Idempotency.Complete(ctx, key, string(raw), s.idempotencyTTL)
	}
	if merr != nil {
		s.logger.Warn("Failed to store idempotent result", zap.String("key", key), zap.Error(merr))
	}
}

// pay records one payment. With full set the amount is the bill's balance
// read under the lock.
func (s *BillingService) pay(ctx context.Context, actor models.Actor, billID int64, in PaymentInput, full bool) (*PaymentResult, error) {
	// The quotation row is locked before the bill, the same order
	// GenerateBill uses.
	current, err := s.deps.Repo.GetBill(ctx, actor.OrganizationID, billID)
	if err != nil {
		return nil, apperr.Wrap("record payment", err)
	}

	var (
		bill    *models.Bill
		payment *models.PaymentTransaction
		events  []*models.QuotationStatusChangedEvent
	)
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		q, err := tx.LockQuotation(ctx, actor.OrganizationID, current.QuotationID)
		if err != nil {
			return err
		}
		if bill, err = tx.LockBill(ctx, actor.OrganizationID, billID); err != nil {
			return err
		}

		if full {
			if !bill.BalanceAmount.IsPositive() {
				return apperr.Precondition(apperr.ErrAlreadyProcessed, "bill already paid")
			}
			in.Amount = bill.BalanceAmount
		}
		if in.Amount.GreaterThan(bill.BalanceAmount) {
			return apperr.Precondition(apperr.ErrExceedsBalance,
				"payment %s exceeds balance %s", in.Amount.StringFixed(2), bill.BalanceAmount.StringFixed(2))
		}

		now := s.deps.now()
		number, err := s.deps.Sequences.issue(ctx, tx, actor.OrganizationID, now.Year(), models.SequencePayment)
		if err != nil {
			return err
		}
		paidOn := now
		if in.PaymentDate != nil {
			paidOn = *in.PaymentDate
		}
		payment = &models.PaymentTransaction{
			OrganizationID:    actor.OrganizationID,
			BillID:            bill.ID,
			TransactionNumber: number,
			Amount:            in.Amount,
			Method:            in.Method,
			PaymentDate:       paidOn,
			Reference:         in.Reference,
			Notes:             in.Notes,
			RecordedBy:        actor.UserID,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}

		paid, err := tx.SumPayments(ctx, bill.ID)
		if err != nil {
			return err
		}
		oldPaid := bill.PaidAmount
		bill.PaidAmount = paid
		bill.BalanceAmount = bill.TotalAmount.Sub(paid)
		bill.PaymentStatus = models.DerivePaymentStatus(paid, bill.TotalAmount)
		bill.UpdatedAt = now
		if bill.PaymentStatus == models.PaymentPaid {
			bill.PaidAt = &now
		}
		if err := tx.UpdateBillPayment(ctx, bill); err != nil {
			return err
		}

		h := fieldChange(actor, models.EntityBill, bill.ID, "paid_amount", oldPaid.StringFixed(2), paid.StringFixed(2))
		h.Action = "payment"
		h.Notes = number
		if err := tx.InsertHistory(ctx, h); err != nil {
			return err
		}
		if err := tx.InsertActivity(ctx, activity(actor, "payment_recorded",
			fmt.Sprintf("recorded %s on %s", in.Amount.StringFixed(2), bill.BillNumber))); err != nil {
			return err
		}

		if bill.PaymentStatus != models.PaymentPaid {
			return nil
		}
		if err := checkTransition(q.Status, models.StatusBillGenerated, models.StatusPaid, true); err != nil {
			return err
		}
		event, err := applyTransition(ctx, tx, actor, q, models.StatusPaid, "bill "+bill.BillNumber+" settled", now)
		if err != nil {
			return err
		}
		events = append(events, event)
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap("record payment", err)
	}

	util.PaymentsRecordedTotal.WithLabelValues(string(payment.Method)).Inc()
	s.logger.Info("Payment recorded", append(util.ActorFields(actor),
		zap.Int64("bill_id", bill.ID),
		zap.String("transaction_number", payment.TransactionNumber),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("balance", bill.BalanceAmount.StringFixed(2)),
		zap.String("status", string(bill.PaymentStatus)))...)

	if s.deps.Events != nil {
		if perr := s.deps.Events.PublishPaymentRecorded(ctx, &models.PaymentRecordedEvent{
			BaseEvent:         newBaseEvent(models.EventTypePaymentRecorded, actor.OrganizationID, s.deps.now()),
			BillID:            bill.ID,
			TransactionID:     payment.ID,
			TransactionNumber: payment.TransactionNumber,
			Amount:            payment.Amount,
			BalanceAmount:     bill.BalanceAmount,
			PaymentStatus:     bill.PaymentStatus,
		}); perr != nil {
			s.logger.Warn("Failed to publish payment recorded", zap.Int64("bill_id", bill.ID), zap.Error(perr))
		}
	}
	countTransitions(events)
	s.deps.publishStatusChanges(ctx, events)

	return &PaymentResult{
		TransactionID:     payment.ID,
		TransactionNumber: payment.TransactionNumber,
		NewBalance:        bill.BalanceAmount,
		Status:            bill.PaymentStatus,
	}, nil
}
