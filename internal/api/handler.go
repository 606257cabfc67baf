package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"
	"workshop-service/internal/redisclient"
	"workshop-service/internal/service"
	"workshop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const actorKey = "actor"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StockReader serves cached stock counters. *redisclient.Client implements it.
type StockReader interface {
	GetStockLevel(ctx context.Context, orgID, itemID int64) (redisclient.StockLevel, error)
}

// Services groups the core services exposed over HTTP.
type Services struct {
	Quotations *service.QuotationService
	Inventory  *service.InventoryService
	Billing    *service.BillingService
}

// Handler contains HTTP handlers
type Handler struct {
	quotes    *service.QuotationService
	inventory *service.InventoryService
	billing   *service.BillingService
	store     Pinger
	stock     StockReader
	currency  string
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. stock may be nil, in which case
// stock levels are read from the store.
func NewHandler(svc Services, store Pinger, stock StockReader, currencySymbol string) *Handler {
	return &Handler{
		quotes:    svc.Quotations,
		inventory: svc.Inventory,
		billing:   svc.Billing,
		store:     store,
		stock:     stock,
		currency:  currencySymbol,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", actorMiddleware())
	{
		v1.POST("/service-requests", h.createServiceRequest)
		v1.GET("/service-requests/:id", h.getServiceRequest)
		v1.POST("/service-requests/:id/convert", h.convertServiceRequest)

		v1.POST("/quotations", h.createQuotation)
		v1.GET("/quotations", h.listQuotations)
		v1.GET("/quotations/:id", h.getQuotation)
		v1.PATCH("/quotations/:id", h.updateQuotation)
		v1.POST("/quotations/:id/send", h.sendQuotation)
		v1.POST("/quotations/:id/transitions", h.transitionQuotation)
		v1.GET("/quotations/:id/approvals", h.listApprovals)
		v1.POST("/quotations/:id/assign", h.assignQuotation)
		v1.POST("/quotations/:id/start", h.startRepair)
		v1.POST("/quotations/:id/complete", h.completeRepair)
		v1.POST("/quotations/:id/cancel", h.cancelQuotation)
		v1.GET("/quotations/:id/history", h.quotationHistory)
		v1.GET("/quotations/:id/allocations", h.listAllocations)
		v1.POST("/quotations/:id/allocations", h.allocate)
		v1.POST("/quotations/:id/bill", h.generateBill)

		v1.GET("/approvals/:id", h.getApproval)
		v1.POST("/approvals/:id", h.processApproval)

		v1.POST("/inventory/items", h.createItem)
		v1.GET("/inventory/items/:id", h.getItem)
		v1.GET("/inventory/items/:id/stock", h.stockLevel)
		v1.GET("/inventory/items/:id/transactions", h.itemTransactions)
		v1.POST("/inventory/items/:id/adjust", h.adjustStock)
		v1.POST("/inventory/items/:id/receive", h.receiveStock)
		v1.POST("/allocations/:id/consume", h.consumeAllocation)
		v1.POST("/allocations/:id/release", h.releaseAllocation)

		v1.GET("/bills/:id", h.getBill)
		v1.GET("/bills/:id/payments", h.listPayments)
		v1.POST("/bills/:id/payments", h.recordPayment)
		v1.POST("/bills/:id/mark-paid", h.markPaid)
		v1.GET("/payments/:id", h.getPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the store answers.
func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// actorMiddleware builds the caller identity from the gateway headers.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, errUser := strconv.ParseInt(c.GetHeader("X-Actor-ID"), 10, 64)
		orgID, errOrg := strconv.ParseInt(c.GetHeader("X-Organization-ID"), 10, 64)
		role := models.Role(c.GetHeader("X-Role"))
		if errUser != nil || errOrg != nil || userID <= 0 || orgID <= 0 || !role.Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "X-Actor-ID, X-Organization-ID and a valid X-Role are required",
				"kind":  apperr.KindValidation.String(),
			})
			return
		}
		c.Set(actorKey, models.Actor{
			UserID:         userID,
			OrganizationID: orgID,
			Role:           role,
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		})
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	return c.MustGet(actorKey).(models.Actor)
}

// idParam parses a positive path id, answering 400 when it is malformed.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// bind decodes an optional JSON body. An empty body leaves req untouched.
func bind(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
			"kind":    apperr.KindValidation.String(),
		})
		return false
	}
	return true
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPrecondition:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// fail writes a core error. Internal causes are logged, never returned.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusServiceUnavailable {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error": apperr.PublicMessage(err),
		"kind":  kind.String(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": msg,
		"kind":  apperr.KindValidation.String(),
	})
}
