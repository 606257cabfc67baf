package api

import (
	"errors"
	"net/http"

	"workshop-service/internal/redisclient"
	"workshop-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type allocateRequest struct {
	Lines []service.AllocationLine `json:"lines" binding:"required"`
}

type adjustRequest struct {
	Quantity *int   `json:"quantity" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

type receiveRequest struct {
	Quantity  int             `json:"quantity" binding:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reference string          `json:"reference"`
}

func (h *Handler) createItem(c *gin.Context) {
	var req service.CreateItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "item_code and name are required")
		return
	}
	item, err := h.inventory.CreateItem(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) getItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := h.inventory.GetItem(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// stockLevel answers from the cache when it holds the item and falls back
// to the store otherwise.
func (h *Handler) stockLevel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor := actorFrom(c)
	if h.stock != nil {
		lvl, err := h.stock.GetStockLevel(c.Request.Context(), actor.OrganizationID, id)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"item_id": id, "source": "cache", "stock": lvl})
			return
		}
		if !errors.Is(err, redisclient.ErrStockNotCached) {
			h.logger.Warn("Stock cache read failed", zap.Int64("item_id", id), zap.Error(err))
		}
	}

	item, err := h.inventory.GetItem(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": id, "source": "store", "stock": redisclient.StockLevel{
		Current:      item.CurrentStock,
		Allocated:    item.AllocatedStock,
		Available:    item.AvailableStock(),
		ReorderLevel: item.ReorderLevel,
	}})
}

func (h *Handler) itemTransactions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	txs, err := h.inventory.ListTransactions(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *Handler) adjustStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity and reason are required")
		return
	}
	item, err := h.inventory.AdjustStock(c.Request.Context(), actorFrom(c), id, *req.Quantity, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) receiveStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req receiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}
	item, err := h.inventory.ReceiveStock(c.Request.Context(), actorFrom(c), id, req.Quantity, req.UnitCost, req.Reference)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) listAllocations(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	allocs, err := h.inventory.ListAllocations(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": allocs})
}

func (h *Handler) allocate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "lines are required")
		return
	}
	allocs, err := h.inventory.AllocateBatch(c.Request.Context(), actorFrom(c), id, req.Lines)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"allocations": allocs})
}

func (h *Handler) consumeAllocation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	alloc, err := h.inventory.Consume(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alloc)
}

func (h *Handler) releaseAllocation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req notesRequest
	if !bind(c, &req) {
		return
	}
	alloc, err := h.inventory.Release(c.Request.Context(), actorFrom(c), id, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alloc)
}
