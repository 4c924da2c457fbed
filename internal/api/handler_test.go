package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/service"
	"reorder-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	locker *service.MemoryLocker
}

func newTestServer(t *testing.T, ready ReadinessFunc) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.NewMemory()
	bus := broker.NewBus()
	settings := service.DefaultSettings()
	locker := service.NewMemoryLocker()

	handler := NewHandler(Services{
		Ledger:       service.NewInventoryLedger(s, bus),
		Catalog:      service.NewCatalogService(s, bus),
		BOMs:         service.NewBOMService(s),
		Reorders:     service.NewReorderService(s, bus, settings),
		Purchases:    service.NewPurchaseService(s, bus, settings),
		Suppliers:    service.NewSupplierService(s, bus, settings),
		Orchestrator: service.NewProductionOrchestrator(s, bus, locker, settings),
		Notifier:     service.NewVendorNotifier(s, bus),
	}, ready)

	router := gin.New()
	handler.SetupRoutes(router)
	return &testServer{t: t, router: router, locker: locker}
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/ready", nil).Code)

	down := newTestServer(t, func(context.Context) error { return errors.New("redis unreachable") })
	w := down.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", decode[map[string]interface{}](t, w)["status"])
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/v1/skus", map[string]interface{}{"code": "OF-100", "name": "Oil Filter", "type": "single"})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{name: "duplicate code", method: http.MethodPost, path: "/api/v1/skus",
			body: map[string]interface{}{"code": "OF-100", "name": "Oil Filter", "type": "single"}, status: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/api/v1/skus", body: "not an object", status: http.StatusBadRequest},
		{name: "bad id", method: http.MethodGet, path: "/api/v1/purchase-orders/abc", status: http.StatusBadRequest},
		{name: "unknown purchase order", method: http.MethodGet, path: "/api/v1/purchase-orders/42", status: http.StatusNotFound},
		{name: "unknown plan", method: http.MethodPost, path: "/api/v1/production-plans/7/verify", status: http.StatusNotFound},
		{name: "negative stock", method: http.MethodPost, path: "/api/v1/inventory/movements",
			body: map[string]interface{}{"sku_id": 1, "warehouse_id": 1, "delta": -3, "reason": "sale"}, status: http.StatusBadRequest},
		{name: "pause without reason", method: http.MethodPost, path: "/api/v1/supplier-orders/1/pause",
			body: map[string]interface{}{"reason": ""}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestProductionFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)

	post := func(path string, body interface{}, status int) map[string]interface{} {
		t.Helper()
		w := ts.do(http.MethodPost, path, body)
		require.Equal(t, status, w.Code, w.Body.String())
		return decode[map[string]interface{}](t, w)
	}

	post("/api/v1/skus", map[string]interface{}{"code": "KIT-1", "name": "Maintenance Kit", "type": "kit"}, http.StatusCreated)
	post("/api/v1/skus", map[string]interface{}{"code": "OF-100", "name": "Oil Filter", "type": "single", "unit_cost": "4.50"}, http.StatusCreated)
	post("/api/v1/inventory/movements", map[string]interface{}{"sku_id": 2, "warehouse_id": 1, "delta": 5, "reason": "adjustment"}, http.StatusOK)
	post("/api/v1/bom-templates", map[string]interface{}{
		"kit_sku_id": 1,
		"version":    "1",
		"components": []map[string]interface{}{{"component_sku_id": 2, "quantity_required": 12}},
	}, http.StatusCreated)
	post("/api/v1/sales-orders", map[string]interface{}{
		"order_number": "SO-1", "quantity": 1, "production_required": true, "bom_template_id": 1,
	}, http.StatusCreated)

	synced := post("/api/v1/production-plans/sync", nil, http.StatusOK)
	require.Len(t, synced["created"], 1)

	verified := post("/api/v1/production-plans/1/verify", nil, http.StatusOK)
	plan := verified["plan"].(map[string]interface{})
	assert.Equal(t, models.PlanStatusAwaitingMaterials, plan["status"])
	assert.Len(t, verified["purchase_orders"], 1)

	w := ts.do(http.MethodPost, "/api/v1/production-plans/1/start", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	checked := post("/api/v1/purchase-order-items/1/warehouse-checks", map[string]interface{}{"status": "not_available"}, http.StatusCreated)
	supplierOrder := checked["supplier_order"].(map[string]interface{})
	assert.EqualValues(t, 7, supplierOrder["quantity_ordered"])

	w = ts.do(http.MethodPatch, "/api/v1/supplier-orders/1/status", map[string]interface{}{"status": "received"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rechecked := post("/api/v1/production-plans/recheck", nil, http.StatusOK)
	assert.EqualValues(t, 1, rechecked["became_ready"])

	started := post("/api/v1/production-plans/1/start", nil, http.StatusCreated)
	assert.Equal(t, models.KitProductionPlanned, started["status"])
}

func TestVerifyWhileLockedIsConflict(t *testing.T) {
	ts := newTestServer(t, nil)
	acquired, err := ts.locker.AcquireLock(context.Background(), "production-plan:1:verify", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	w := ts.do(http.MethodPost, "/api/v1/production-plans/1/verify?silent=true", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
