package api

import (
	"net/http"

	"reorder-service/internal/service"

	"github.com/gin-gonic/gin"
)

type supplierStatusRequest struct {
	Status string `json:"status"`
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

type resumeRequest struct {
	Note string `json:"note"`
}

type assignVendorRequest struct {
	VendorID int64 `json:"vendor_id"`
}

func (h *Handler) listPurchaseOrders(c *gin.Context) {
	orders, err := h.svc.Purchases.ListPurchaseOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getPurchaseOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.svc.Purchases.GetPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listWarehouseChecks(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	checks, err := h.svc.Purchases.ListWarehouseChecks(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checks)
}

func (h *Handler) checkItemInWarehouse(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.CheckInput
	if !bind(c, &req) {
		return
	}
	result, err := h.svc.Purchases.CheckItemInWarehouse(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) listSupplierOrders(c *gin.Context) {
	orders, err := h.svc.Suppliers.ListSupplierOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getSupplierOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.svc.Suppliers.GetSupplierOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateSupplierOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req supplierStatusRequest
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Suppliers.UpdateSupplierOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) pauseSupplierOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req pauseRequest
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Suppliers.PauseSupplierOrderWorkflow(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) resumeSupplierOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req resumeRequest
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Suppliers.ResumeSupplierOrderWorkflow(c.Request.Context(), id, req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) assignVendor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req assignVendorRequest
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Notifier.AssignVendorToOrder(c.Request.Context(), id, req.VendorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) vendorNotifications(c *gin.Context) {
	alerts, err := h.svc.Notifier.GetVendorAssignmentNotifications(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}
