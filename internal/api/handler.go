package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"reorder-service/internal/models"
	"reorder-service/internal/service"
	"reorder-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles the domain services exposed over HTTP
type Services struct {
	Ledger       *service.InventoryLedger
	Catalog      *service.CatalogService
	BOMs         *service.BOMService
	Reorders     *service.ReorderService
	Purchases    *service.PurchaseService
	Suppliers    *service.SupplierService
	Orchestrator *service.ProductionOrchestrator
	Notifier     *service.VendorNotifier
}

// ReadinessFunc reports whether backing services are reachable
type ReadinessFunc func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	ready  ReadinessFunc
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler; ready may be nil
func NewHandler(svc Services, ready ReadinessFunc) *Handler {
	return &Handler{
		svc:    svc,
		ready:  ready,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/inventory", h.listInventory)
		v1.POST("/inventory/movements", h.updateInventoryLevel)
		v1.PUT("/inventory/thresholds", h.setThresholds)

		v1.GET("/skus", h.listSKUs)
		v1.POST("/skus", h.createSKU)
		v1.GET("/skus/:id/available", h.availableForSKU)
		v1.GET("/vendors", h.listVendors)
		v1.POST("/vendors", h.createVendor)
		v1.POST("/sales-orders", h.createSalesOrder)

		v1.GET("/reorder-requests", h.listReorderRequests)
		v1.POST("/reorder-requests", h.createReorderRequest)
		v1.POST("/reorder-requests/scan", h.scanLowStock)
		v1.PATCH("/reorder-requests/:id/status", h.updateReorderRequestStatus)

		v1.GET("/purchase-orders", h.listPurchaseOrders)
		v1.GET("/purchase-orders/:id", h.getPurchaseOrder)
		v1.GET("/purchase-order-items/:id/warehouse-checks", h.listWarehouseChecks)
		v1.POST("/purchase-order-items/:id/warehouse-checks", h.checkItemInWarehouse)

		v1.GET("/supplier-orders", h.listSupplierOrders)
		v1.GET("/supplier-orders/:id", h.getSupplierOrder)
		v1.PATCH("/supplier-orders/:id/status", h.updateSupplierOrderStatus)
		v1.POST("/supplier-orders/:id/pause", h.pauseSupplierOrder)
		v1.POST("/supplier-orders/:id/resume", h.resumeSupplierOrder)
		v1.POST("/supplier-orders/:id/vendor", h.assignVendor)
		v1.GET("/vendor-notifications", h.vendorNotifications)

		v1.GET("/bom-templates", h.listBOMTemplates)
		v1.POST("/bom-templates", h.createBOMTemplate)
		v1.GET("/bom-templates/:id", h.getBOMTemplate)

		v1.GET("/production-plans", h.listProductionPlans)
		v1.POST("/production-plans/sync", h.syncProductionPlans)
		v1.POST("/production-plans/recheck", h.recheckProductionPlans)
		v1.GET("/production-plans/:id", h.getProductionPlan)
		v1.POST("/production-plans/:id/verify", h.verifyProductionPlan)
		v1.POST("/production-plans/:id/start", h.startProduction)

		v1.GET("/kit-production-orders", h.listKitProductionOrders)
		v1.POST("/kit-production-orders/:id/complete", h.completeKitProduction)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			h.logger.Warn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"time":   time.Now().Unix(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrVersionConflict), errors.Is(err, models.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// bind decodes the JSON body into v, answering 400 on failure
func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// pathID parses the :id parameter, answering 400 on failure
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
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
