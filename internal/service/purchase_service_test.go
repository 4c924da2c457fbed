package service

import (
	"testing"

	"reorder-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approvedItem returns the purchase order item created by approving a reorder request
func (e *testEnv) approvedItem(sku *models.SKU, quantity int) *models.PurchaseOrderItem {
	e.t.Helper()
	req, err := e.reorders.CreateReorderRequest(e.ctx, CreateReorderInput{
		SKUID: sku.ID, WarehouseID: 1, Reason: models.ReorderReasonLowStock, Quantity: intPtr(quantity),
	})
	require.NoError(e.t, err)
	approved, err := e.reorders.UpdateReorderRequestStatus(e.ctx, req.ID, StatusUpdate{Status: models.ReorderStatusApproved})
	require.NoError(e.t, err)

	po, err := e.purchases.GetPurchaseOrder(e.ctx, approved.PurchaseOrderID)
	require.NoError(e.t, err)
	require.Len(e.t, po.Items, 1)
	return po.Items[0]
}

func TestNotAvailableEscalatesToSupplierOrder(t *testing.T) {
	e := newTestEnv(t)
	sku := e.sku("AF-200", "Air Filter", models.SKUTypeSingle, "7.25")
	item := e.approvedItem(sku, 40)

	result, err := e.purchases.CheckItemInWarehouse(e.ctx, item.ID, CheckInput{
		Status: models.WarehouseStatusNotAvailable, CheckedBy: "picker-3",
	})
	require.NoError(t, err)

	assert.Equal(t, models.WarehouseStatusNewOrderRequired, result.Item.WarehouseStatus)
	orders := e.supplierOrders()
	require.Len(t, orders, 1)
	so := orders[0]
	assert.Equal(t, item.ID, so.PurchaseOrderItemID)
	assert.Equal(t, models.WorkflowStatusActive, so.WorkflowStatus)
	assert.Equal(t, models.SupplierStatusPending, so.Status)
	assert.Equal(t, 40, so.QuantityOrdered)
	assert.Equal(t, e.settings.DefaultSupplierID, so.SupplierID)
	assert.Regexp(t, `^SUP-\d{4}-0001$`, so.OrderNumber)
	assert.Equal(t, e.settings.SupplierLeadTime, so.ExpectedDeliveryDate.Sub(so.CreatedAt))

	checks, err := e.purchases.ListWarehouseChecks(e.ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, "picker-3", checks[0].CheckedBy)
}

func TestPartialAvailabilityOrdersRemainder(t *testing.T) {
	e := newTestEnv(t)
	vendor := e.vendor("ACME", "")
	sku, err := e.catalog.CreateSKU(e.ctx, CreateSKUInput{Code: "SP-300", Name: "Spark Plug", Type: models.SKUTypeSingle, VendorID: vendor.ID})
	require.NoError(t, err)
	item := e.approvedItem(sku, 40)

	result, err := e.purchases.CheckItemInWarehouse(e.ctx, item.ID, CheckInput{
		Status: models.WarehouseStatusPartialAvailable, QuantityFound: 15, Location: "A-12",
	})
	require.NoError(t, err)

	require.NotNil(t, result.SupplierOrder)
	assert.Equal(t, 25, result.SupplierOrder.QuantityOrdered)
	assert.Equal(t, vendor.ID, result.SupplierOrder.SupplierID)
	assert.Equal(t, models.WarehouseStatusNewOrderRequired, result.Item.WarehouseStatus)
	assert.Equal(t, 15, result.Item.QuantityReceived)
}

func TestPartialAvailabilityNeedsQuantityBelowOrdered(t *testing.T) {
	e := newTestEnv(t)
	sku := e.sku("SP-300", "Spark Plug", models.SKUTypeSingle, "3")
	item := e.approvedItem(sku, 10)

	_, err := e.purchases.CheckItemInWarehouse(e.ctx, item.ID, CheckInput{
		Status: models.WarehouseStatusPartialAvailable, QuantityFound: 10,
	})

	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, e.supplierOrders())
}

func TestInWarehouseIsTerminal(t *testing.T) {
	e := newTestEnv(t)
	sku := e.sku("SP-300", "Spark Plug", models.SKUTypeSingle, "3")
	item := e.approvedItem(sku, 10)

	result, err := e.purchases.CheckItemInWarehouse(e.ctx, item.ID, CheckInput{Status: models.WarehouseStatusInWarehouse})
	require.NoError(t, err)
	assert.Equal(t, models.WarehouseStatusInWarehouse, result.Item.WarehouseStatus)
	assert.Equal(t, 10, result.Check.QuantityFound)
	assert.Nil(t, result.SupplierOrder)

	_, err = e.purchases.CheckItemInWarehouse(e.ctx, item.ID, CheckInput{Status: models.WarehouseStatusNotAvailable})
	var terr *models.TransitionError
	assert.ErrorAs(t, err, &terr)
	assert.Empty(t, e.supplierOrders())
}

func TestCheckItemInWarehouseUnknownItem(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.purchases.CheckItemInWarehouse(e.ctx, 77, CheckInput{Status: models.WarehouseStatusNotAvailable})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = e.purchases.CheckItemInWarehouse(e.ctx, 77, CheckInput{Status: "lost"})
	assert.ErrorIs(t, err, models.ErrValidation)
}
