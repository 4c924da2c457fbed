package store

import "reorder-service/internal/models"

// Named collections of the record store
var (
	SKUs                = Collection[models.SKU, *models.SKU]{Name: "skus"}
	Vendors             = Collection[models.Vendor, *models.Vendor]{Name: "vendors"}
	Inventory           = Collection[models.InventoryRecord, *models.InventoryRecord]{Name: "inventory"}
	InventoryMovements  = Collection[models.InventoryMovement, *models.InventoryMovement]{Name: "inventory_movements"}
	SalesOrders         = Collection[models.SalesOrder, *models.SalesOrder]{Name: "sales_orders"}
	ReorderRequests     = Collection[models.ReorderRequest, *models.ReorderRequest]{Name: "reorder_requests"}
	PurchaseOrders      = Collection[models.PurchaseOrder, *models.PurchaseOrder]{Name: "purchase_orders"}
	PurchaseOrderItems  = Collection[models.PurchaseOrderItem, *models.PurchaseOrderItem]{Name: "purchase_order_items"}
	WarehouseChecks     = Collection[models.WarehouseCheck, *models.WarehouseCheck]{Name: "warehouse_checks"}
	SupplierOrders      = Collection[models.SupplierOrder, *models.SupplierOrder]{Name: "supplier_orders"}
	BOMTemplates        = Collection[models.BOMTemplate, *models.BOMTemplate]{Name: "bom_templates"}
	BOMComponents       = Collection[models.BOMComponent, *models.BOMComponent]{Name: "bom_components"}
	KitProductionOrders = Collection[models.KitProductionOrder, *models.KitProductionOrder]{Name: "kit_production_orders"}
	ProductionPlans     = Collection[models.ProductionPlan, *models.ProductionPlan]{Name: "production_plans"}
)
