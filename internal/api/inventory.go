package api

import (
	"net/http"

	"reorder-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listInventory(c *gin.Context) {
	records, err := h.svc.Ledger.GetInventory(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) updateInventoryLevel(c *gin.Context) {
	var req service.LevelChange
	if !bind(c, &req) {
		return
	}
	record, err := h.svc.Ledger.UpdateInventoryLevel(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) setThresholds(c *gin.Context) {
	var req service.ThresholdsInput
	if !bind(c, &req) {
		return
	}
	record, err := h.svc.Ledger.SetThresholds(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) availableForSKU(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	available, err := h.svc.Ledger.AvailableForSKU(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sku_id": id, "available": available})
}

func (h *Handler) listSKUs(c *gin.Context) {
	skus, err := h.svc.Catalog.ListSKUs(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, skus)
}

func (h *Handler) createSKU(c *gin.Context) {
	var req service.CreateSKUInput
	if !bind(c, &req) {
		return
	}
	sku, err := h.svc.Catalog.CreateSKU(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sku)
}

func (h *Handler) listVendors(c *gin.Context) {
	vendors, err := h.svc.Catalog.ListVendors(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vendors)
}

func (h *Handler) createVendor(c *gin.Context) {
	var req service.CreateVendorInput
	if !bind(c, &req) {
		return
	}
	vendor, err := h.svc.Catalog.CreateVendor(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func (h *Handler) createSalesOrder(c *gin.Context) {
	var req service.CreateSalesOrderInput
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Catalog.CreateSalesOrder(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listReorderRequests(c *gin.Context) {
	requests, err := h.svc.Reorders.ListReorderRequests(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) createReorderRequest(c *gin.Context) {
	var req service.CreateReorderInput
	if !bind(c, &req) {
		return
	}
	created, err := h.svc.Reorders.CreateReorderRequest(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) scanLowStock(c *gin.Context) {
	raised, err := h.svc.Reorders.ScanLowStock(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": raised})
}

func (h *Handler) updateReorderRequestStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.StatusUpdate
	if !bind(c, &req) {
		return
	}
	updated, err := h.svc.Reorders.UpdateReorderRequestStatus(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
