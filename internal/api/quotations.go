package api

import (
	"net/http"
	"strconv"

	"workshop-service/internal/models"
	"workshop-service/internal/service"

	"github.com/gin-gonic/gin"
)

type notesRequest struct {
	Notes string `json:"notes"`
}

type transitionRequest struct {
	ExpectedStatus models.QuotationStatus `json:"expected_status" binding:"required"`
	ToStatus       models.QuotationStatus `json:"to_status" binding:"required"`
	Notes          string                 `json:"notes"`
}

type approvalRequest struct {
	Decision    service.ApprovalDecision `json:"decision" binding:"required"`
	Notes       string                   `json:"notes"`
	Allocations []service.AllocationLine `json:"allocations"`
}

type assignRequest struct {
	TechnicianID int64 `json:"technician_id" binding:"required"`
}

func (h *Handler) createServiceRequest(c *gin.Context) {
	var req service.ServiceRequestInput
	if !bind(c, &req) {
		return
	}
	sr, err := h.quotes.CreateServiceRequest(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sr)
}

func (h *Handler) getServiceRequest(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sr, err := h.quotes.GetServiceRequest(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

func (h *Handler) convertServiceRequest(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.QuotationInput
	if !bind(c, &req) {
		return
	}
	q, err := h.quotes.ConvertToQuotation(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.quotationView(q))
}

func (h *Handler) createQuotation(c *gin.Context) {
	var req service.QuotationInput
	if !bind(c, &req) {
		return
	}
	q, err := h.quotes.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.quotationView(q))
}

func (h *Handler) listQuotations(c *gin.Context) {
	filter := models.QuotationFilter{Status: models.QuotationStatus(c.Query("status"))}
	filter.AssignedTo, _ = strconv.ParseInt(c.Query("assigned_to"), 10, 64)
	filter.Page.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Page.Offset, _ = strconv.Atoi(c.Query("offset"))

	list, err := h.quotes.List(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]quotationView, 0, len(list))
	for i := range list {
		views = append(views, h.quotationView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"quotations": views})
}

func (h *Handler) getQuotation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	q, err := h.quotes.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.quotationView(q))
}

func (h *Handler) updateQuotation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.QuotationPatch
	if !bind(c, &req) {
		return
	}
	q, err := h.quotes.Update(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.quotationView(q))
}

func (h *Handler) transitionQuotation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "expected_status and to_status are required")
		return
	}
	q, err := h.quotes.Transition(c.Request.Context(), actorFrom(c), id, req.ExpectedStatus, req.ToStatus, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.quotationView(q))
}

// notesAction adapts the single-step lifecycle calls that only take notes.
func (h *Handler) notesAction(fn func(*gin.Context, models.Actor, int64, string) (*models.Quotation, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req notesRequest
		if !bind(c, &req) {
			return
		}
		q, err := fn(c, actorFrom(c), id, req.Notes)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, h.quotationView(q))
	}
}

func (h *Handler) sendQuotation(c *gin.Context) {
	h.notesAction(func(c *gin.Context, a models.Actor, id int64, notes string) (*models.Quotation, error) {
		return h.quotes.Send(c.Request.Context(), a, id, notes)
	})(c)
}

func (h *Handler) startRepair(c *gin.Context) {
	h.notesAction(func(c *gin.Context, a models.Actor, id int64, notes string) (*models.Quotation, error) {
		return h.quotes.StartRepair(c.Request.Context(), a, id, notes)
	})(c)
}

func (h *Handler) completeRepair(c *gin.Context) {
	h.notesAction(func(c *gin.Context, a models.Actor, id int64, notes string) (*models.Quotation, error) {
		return h.quotes.CompleteRepair(c.Request.Context(), a, id, notes)
	})(c)
}

func (h *Handler) cancelQuotation(c *gin.Context) {
	h.notesAction(func(c *gin.Context, a models.Actor, id int64, notes string) (*models.Quotation, error) {
		return h.quotes.Cancel(c.Request.Context(), a, id, notes)
	})(c)
}

func (h *Handler) listApprovals(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	approvals, err := h.quotes.Approvals(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": approvals})
}

func (h *Handler) getApproval(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	approval, err := h.quotes.GetApproval(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}

func (h *Handler) processApproval(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "decision is required")
		return
	}
	q, err := h.quotes.ProcessApproval(c.Request.Context(), actorFrom(c), id, req.Decision, req.Notes, req.Allocations)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.quotationView(q))
}

func (h *Handler) assignQuotation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "technician_id is required")
		return
	}
	q, err := h.quotes.Assign(c.Request.Context(), actorFrom(c), id, req.TechnicianID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.quotationView(q))
}

func (h *Handler) quotationHistory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	hist, err := h.quotes.History(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}
