package api

import (
	"net/http"

	"workshop-service/internal/models"
	"workshop-service/internal/money"
	"workshop-service/internal/service"

	"github.com/gin-gonic/gin"
)

type markPaidRequest struct {
	Method models.PaymentMethod `json:"payment_method"`
	Notes  string               `json:"notes"`
}

// quotationView adds display strings next to the exact amounts.
type quotationView struct {
	*models.Quotation
	Display map[string]string `json:"display"`
}

type billView struct {
	*models.Bill
	Display map[string]string `json:"display"`
}

type paymentView struct {
	*models.PaymentTransaction
	Display map[string]string `json:"display"`
}

func (h *Handler) quotationView(q *models.Quotation) quotationView {
	return quotationView{Quotation: q, Display: map[string]string{
		"subtotal":     money.Format(q.Subtotal, h.currency),
		"tax_amount":   money.Format(q.TaxAmount, h.currency),
		"total_amount": money.Format(q.TotalAmount, h.currency),
	}}
}

func (h *Handler) billView(b *models.Bill) billView {
	return billView{Bill: b, Display: map[string]string{
		"total_amount":   money.Format(b.TotalAmount, h.currency),
		"paid_amount":    money.Format(b.PaidAmount, h.currency),
		"balance_amount": money.Format(b.BalanceAmount, h.currency),
	}}
}

func (h *Handler) paymentView(p *models.PaymentTransaction) paymentView {
	return paymentView{PaymentTransaction: p, Display: map[string]string{
		"amount": money.Format(p.Amount, h.currency),
	}}
}

func (h *Handler) generateBill(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.BillInput
	if !bind(c, &req) {
		return
	}
	bill, err := h.billing.GenerateBill(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.billView(bill))
}

func (h *Handler) getBill(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	bill, err := h.billing.GetBill(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.billView(bill))
}

func (h *Handler) listPayments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.billing.ListPayments(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *Handler) getPayment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.billing.GetPayment(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.paymentView(payment))
}

func (h *Handler) recordPayment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.PaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payment: "+err.Error())
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	res, err := h.billing.RecordPayment(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"payment":     res,
		"new_balance": money.Format(res.NewBalance, h.currency),
	})
}

func (h *Handler) markPaid(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req markPaidRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.billing.MarkPaid(c.Request.Context(), actorFrom(c), id, req.Method, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": res})
}
