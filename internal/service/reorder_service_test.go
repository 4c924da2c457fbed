package service

import (
	"testing"

	"reorder-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestCreateReorderRequestQuantity(t *testing.T) {
	tests := []struct {
		name     string
		onHand   int
		max      int
		explicit *int
		expected int
	}{
		{name: "refill to max stock", onHand: 30, max: 200, expected: 170},
		{name: "no thresholds falls back", onHand: 30, expected: 100},
		{name: "above max falls back", onHand: 250, max: 200, expected: 100},
		{name: "explicit quantity wins", onHand: 30, max: 200, explicit: intPtr(15), expected: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			sku := e.sku("WB-1", "Wiper Blade", models.SKUTypeSingle, "4")
			e.stock(sku.ID, tt.onHand)
			if tt.max > 0 {
				_, err := e.ledger.SetThresholds(e.ctx, ThresholdsInput{SKUID: sku.ID, WarehouseID: 1, MaxStockLevel: tt.max})
				require.NoError(t, err)
			}

			req, err := e.reorders.CreateReorderRequest(e.ctx, CreateReorderInput{
				SKUID:       sku.ID,
				WarehouseID: 1,
				Reason:      models.ReorderReasonLowStock,
				Quantity:    tt.explicit,
			})

			require.NoError(t, err)
			assert.Equal(t, tt.expected, req.QuantityRequested)
			assert.Equal(t, models.ReorderStatusPending, req.Status)
		})
	}
}

func TestCreateReorderRequestAlertSeverity(t *testing.T) {
	e := newTestEnv(t)
	sku := e.sku("WB-1", "Wiper Blade", models.SKUTypeSingle, "4")

	low, err := e.reorders.CreateReorderRequest(e.ctx, CreateReorderInput{SKUID: sku.ID, WarehouseID: 1, Reason: models.ReorderReasonLowStock})
	require.NoError(t, err)
	out, err := e.reorders.CreateReorderRequest(e.ctx, CreateReorderInput{SKUID: sku.ID, WarehouseID: 1, Reason: models.ReorderReasonOutOfStock})
	require.NoError(t, err)

	assert.Equal(t, models.PriorityMedium, low.Priority)
	assert.Equal(t, models.PriorityHigh, out.Priority)

	alerts := eventsOf[*models.ReorderAlertEvent](e.events)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, models.SeverityCritical, alerts[1].Severity)
}

func TestApprovingReorderRequestCreatesOnePurchaseOrder(t *testing.T) {
	e := newTestEnv(t)
	sku := e.sku("WB-1", "Wiper Blade", models.SKUTypeSingle, "4")
	req, err := e.reorders.CreateReorderRequest(e.ctx, CreateReorderInput{
		SKUID: sku.ID, WarehouseID: 1, Reason: models.ReorderReasonManual, Quantity: intPtr(40),
	})
	require.NoError(t, err)

	approved, err := e.reorders.UpdateReorderRequestStatus(e.ctx, req.ID, StatusUpdate{
		Status: models.ReorderStatusApproved, ApprovedBy: "buyer@shop",
	})
	require.NoError(t, err)

	items := e.purchaseItems()
	require.Len(t, items, 1)
	assert.Equal(t, 40, items[0].QuantityOrdered)
	assert.Equal(t, models.WarehouseStatusNotChecked, items[0].WarehouseStatus)

	po, err := e.purchases.GetPurchaseOrder(e.ctx, approved.PurchaseOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseSourceReorder, po.Source)
	assert.Equal(t, "160", po.TotalAmount.String())
	assert.Regexp(t, `^PO-\d{4}-0001$`, po.OrderNumber)
	assert.Equal(t, "buyer@shop", approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
}

func TestReorderTransitionsWithoutSideEffects(t *testing.T) {
	e := newTestEnv(t)
	sku := e.sku("WB-1", "Wiper Blade", models.SKUTypeSingle, "4")
	req, err := e.reorders.CreateReorderRequest(e.ctx, CreateReorderInput{SKUID: sku.ID, WarehouseID: 1, Reason: models.ReorderReasonManual})
	require.NoError(t, err)

	_, err = e.reorders.UpdateReorderRequestStatus(e.ctx, req.ID, StatusUpdate{Status: models.ReorderStatusOrdered})
	assert.ErrorIs(t, err, models.ErrValidation)

	cancelled, err := e.reorders.UpdateReorderRequestStatus(e.ctx, req.ID, StatusUpdate{Status: models.ReorderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, models.ReorderStatusCancelled, cancelled.Status)
	assert.Empty(t, e.purchaseItems())

	_, err = e.reorders.UpdateReorderRequestStatus(e.ctx, 404, StatusUpdate{Status: models.ReorderStatusApproved})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestScanLowStockRaisesOncePerRecord(t *testing.T) {
	e := newTestEnv(t)
	empty := e.sku("WB-1", "Wiper Blade", models.SKUTypeSingle, "4")
	low := e.sku("WB-2", "Wiper Blade Rear", models.SKUTypeSingle, "4")
	fine := e.sku("WB-3", "Wiper Fluid", models.SKUTypeSingle, "2")
	e.stock(low.ID, 3)
	e.stock(fine.ID, 80)
	for _, sku := range []*models.SKU{empty, low, fine} {
		_, err := e.ledger.SetThresholds(e.ctx, ThresholdsInput{SKUID: sku.ID, WarehouseID: 1, ReorderPoint: 10, MaxStockLevel: 60})
		require.NoError(t, err)
	}

	created, err := e.reorders.ScanLowStock(e.ctx)
	require.NoError(t, err)
	require.Len(t, created, 2)
	// records are scanned in creation order; the empty SKU got its record last
	assert.Equal(t, low.ID, created[0].SKUID)
	assert.Equal(t, models.ReorderReasonLowStock, created[0].Reason)
	assert.Equal(t, 57, created[0].QuantityRequested)
	assert.Equal(t, empty.ID, created[1].SKUID)
	assert.Equal(t, models.ReorderReasonOutOfStock, created[1].Reason)
	assert.Equal(t, 60, created[1].QuantityRequested)

	again, err := e.reorders.ScanLowStock(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestHandleInventoryChangedRaisesRequest(t *testing.T) {
	e := newTestEnv(t)
	sku := e.sku("WB-1", "Wiper Blade", models.SKUTypeSingle, "4")
	e.stock(sku.ID, 20)
	_, err := e.ledger.SetThresholds(e.ctx, ThresholdsInput{SKUID: sku.ID, WarehouseID: 1, ReorderPoint: 10, MaxStockLevel: 40})
	require.NoError(t, err)
	e.events.reset()

	_, err = e.ledger.UpdateInventoryLevel(e.ctx, LevelChange{SKUID: sku.ID, WarehouseID: 1, Delta: -12, Reason: models.MovementReasonSale})
	require.NoError(t, err)
	changed := eventsOf[*models.InventoryChangedEvent](e.events)
	require.Len(t, changed, 1)

	require.NoError(t, e.reorders.HandleInventoryChanged(e.ctx, changed[0]))
	require.NoError(t, e.reorders.HandleInventoryChanged(e.ctx, changed[0]))

	reqs, err := e.reorders.ListReorderRequests(e.ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 32, reqs[0].QuantityRequested)
}

func TestScanLowStockCatchesEmptyRecordWithoutReorderPoint(t *testing.T) {
	e := newTestEnv(t)
	sku := e.sku("WB-1", "Wiper Blade", models.SKUTypeSingle, "4")
	e.stock(sku.ID, 6)
	_, err := e.ledger.UpdateInventoryLevel(e.ctx, LevelChange{SKUID: sku.ID, WarehouseID: 1, Delta: -6, Reason: models.MovementReasonSale})
	require.NoError(t, err)

	created, err := e.reorders.ScanLowStock(e.ctx)
	require.NoError(t, err)

	require.Len(t, created, 1)
	assert.Equal(t, models.ReorderReasonOutOfStock, created[0].Reason)
	assert.Equal(t, e.settings.ReorderFallbackQuantity, created[0].QuantityRequested)
}
