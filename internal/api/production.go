package api

import (
	"net/http"
	"strconv"

	"reorder-service/internal/service"

	"github.com/gin-gonic/gin"
)

type completeRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) listBOMTemplates(c *gin.Context) {
	templates, err := h.svc.BOMs.ListBOMTemplates(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *Handler) createBOMTemplate(c *gin.Context) {
	var req service.CreateBOMInput
	if !bind(c, &req) {
		return
	}
	tmpl, err := h.svc.BOMs.CreateBOMTemplate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (h *Handler) getBOMTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	tmpl, err := h.svc.BOMs.GetBOMTemplateWithComponents(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) listProductionPlans(c *gin.Context) {
	plans, err := h.svc.Orchestrator.ListProductionPlans(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *Handler) getProductionPlan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	plan, err := h.svc.Orchestrator.GetProductionPlan(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) syncProductionPlans(c *gin.Context) {
	created, err := h.svc.Orchestrator.SyncProductionPlans(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

// verifyProductionPlan answers 200 even when some purchase orders failed; the
// result then carries a warning
func (h *Handler) verifyProductionPlan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	silent, _ := strconv.ParseBool(c.DefaultQuery("silent", "false"))

	result, err := h.svc.Orchestrator.VerifyInventoryForProduction(c.Request.Context(), id, silent)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) startProduction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.svc.Orchestrator.StartProduction(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) recheckProductionPlans(c *gin.Context) {
	summary, err := h.svc.Orchestrator.RecheckAwaitingMaterialsPlans(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) listKitProductionOrders(c *gin.Context) {
	orders, err := h.svc.Orchestrator.ListKitProductionOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) completeKitProduction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req completeRequest
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Orchestrator.CompleteKitProduction(c.Request.Context(), id, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
