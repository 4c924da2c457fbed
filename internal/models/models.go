package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record holds the fields every stored entity carries
type Record struct {
	ID        int64     `json:"id"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meta exposes the record header so the store can assign ids and versions
func (r *Record) Meta() *Record {
	return r
}

// SKU types
const (
	SKUTypeSingle = "single"
	SKUTypeKit    = "kit"
)

// SKU represents a stock-keeping unit
type SKU struct {
	Record
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	VendorID  int64           `json:"vendor_id,omitempty"`
}

// Vendor statuses
const (
	VendorStatusActive   = "active"
	VendorStatusInactive = "inactive"
)

// Vendor is an external supplier that can be bound to a SKU
type Vendor struct {
	Record
	Code   string `json:"code"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status"`
}

// InventoryRecord is the stock state of one SKU in one warehouse
type InventoryRecord struct {
	Record
	SKUID             int64 `json:"sku_id"`
	WarehouseID       int64 `json:"warehouse_id"`
	QuantityOnHand    int   `json:"quantity_on_hand"`
	QuantityReserved  int   `json:"quantity_reserved"`
	QuantityAvailable int   `json:"quantity_available"`
	SafetyStockLevel  int   `json:"safety_stock_level"`
	ReorderPoint      int   `json:"reorder_point"`
	MaxStockLevel     int   `json:"max_stock_level"`
}

// Recalculate derives QuantityAvailable from on-hand and reserved stock
func (r *InventoryRecord) Recalculate() {
	r.QuantityAvailable = r.QuantityOnHand - r.QuantityReserved
}

// BelowReorderPoint reports whether the record needs replenishment. A record with
// nothing available always does, reorder point or not.
func (r *InventoryRecord) BelowReorderPoint() bool {
	if r.QuantityAvailable <= 0 {
		return true
	}
	return r.ReorderPoint > 0 && r.QuantityAvailable <= r.ReorderPoint
}

// Inventory movement reasons
const (
	MovementReasonReceipt           = "receipt"
	MovementReasonProductionConsume = "production_consume"
	MovementReasonProductionOutput  = "production_output"
	MovementReasonAdjustment        = "adjustment"
	MovementReasonSale              = "sale"
)

// InventoryMovement is the append-only audit row of one ledger delta
type InventoryMovement struct {
	Record
	SKUID         int64  `json:"sku_id"`
	WarehouseID   int64  `json:"warehouse_id"`
	Delta         int    `json:"delta"`
	Reason        string `json:"reason"`
	RefID         string `json:"ref_id,omitempty"`
	Note          string `json:"note,omitempty"`
	QuantityAfter int    `json:"quantity_after"`
}

// SalesOrder is owned by the sales module; production planning only reads it
type SalesOrder struct {
	Record
	OrderNumber        string `json:"order_number"`
	CustomerName       string `json:"customer_name"`
	Quantity           int    `json:"quantity"`
	ProductionRequired bool   `json:"production_required"`
	BOMTemplateID      int64  `json:"bom_template_id,omitempty"`
	Status             string `json:"status"`
}

// Reorder reasons
const (
	ReorderReasonOutOfStock = "out_of_stock"
	ReorderReasonLowStock   = "low_stock"
	ReorderReasonManual     = "manual"
)

// Reorder statuses
const (
	ReorderStatusPending   = "pending"
	ReorderStatusApproved  = "approved"
	ReorderStatusOrdered   = "ordered"
	ReorderStatusCancelled = "cancelled"
)

// Priorities shared by reorder requests and vendor notifications
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ReorderRequest is an approvable request created from a detected shortage
type ReorderRequest struct {
	Record
	SKUID             int64      `json:"sku_id"`
	WarehouseID       int64      `json:"warehouse_id"`
	QuantityRequested int        `json:"quantity_requested"`
	Reason            string     `json:"reason"`
	Priority          string     `json:"priority"`
	Status            string     `json:"status"`
	Notes             string     `json:"notes,omitempty"`
	ApprovedBy        string     `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	PurchaseOrderID   int64      `json:"purchase_order_id,omitempty"`
}

// Open reports whether the request still blocks a new request for the same stock
func (r *ReorderRequest) Open() bool {
	return r.Status == ReorderStatusPending || r.Status == ReorderStatusApproved
}

// Purchase order statuses
const (
	PurchaseOrderStatusPending   = "pending"
	PurchaseOrderStatusApproved  = "approved"
	PurchaseOrderStatusReceived  = "received"
	PurchaseOrderStatusCancelled = "cancelled"
)

// Purchase order sources
const (
	PurchaseSourceReorder        = "reorder"
	PurchaseSourceProductionPlan = "production_plan"
	PurchaseSourceManual         = "manual"
)

// PurchaseOrder groups ordered line items
type PurchaseOrder struct {
	Record
	OrderNumber          string          `json:"order_number"`
	SupplierID           int64           `json:"supplier_id"`
	Status               string          `json:"status"`
	OrderDate            time.Time       `json:"order_date"`
	ExpectedDeliveryDate time.Time       `json:"expected_delivery_date"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Source               string          `json:"source"`
	SourceID             int64           `json:"source_id,omitempty"`
	Notes                string          `json:"notes,omitempty"`
}

// Warehouse statuses of a purchase order item
const (
	WarehouseStatusNotChecked       = "not_checked"
	WarehouseStatusInWarehouse      = "in_warehouse"
	WarehouseStatusNotAvailable     = "not_available"
	WarehouseStatusPartialAvailable = "partial_available"
	WarehouseStatusNewOrderRequired = "new_order_required"
)

// PurchaseOrderItem is one SKU line of a purchase order
type PurchaseOrderItem struct {
	Record
	PurchaseOrderID   int64           `json:"purchase_order_id"`
	SKUID             int64           `json:"sku_id"`
	QuantityOrdered   int             `json:"quantity_ordered"`
	QuantityReceived  int             `json:"quantity_received"`
	QuantityCancelled int             `json:"quantity_cancelled,omitempty"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	WarehouseStatus   string          `json:"warehouse_status"`
	ProductionPlanID  int64           `json:"production_plan_id,omitempty"`
}

// Outstanding reports whether the item still has quantity to be received. Quantity
// whose supplier order was cancelled no longer counts as expected.
func (i *PurchaseOrderItem) Outstanding() bool {
	return i.QuantityReceived+i.QuantityCancelled < i.QuantityOrdered
}

// WarehouseCheck is an append-only audit of a single check event
type WarehouseCheck struct {
	Record
	PurchaseOrderItemID int64  `json:"purchase_order_item_id"`
	Status              string `json:"status"`
	QuantityFound       int    `json:"quantity_found"`
	Location            string `json:"location,omitempty"`
	CheckedBy           string `json:"checked_by,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

// Supplier order fulfillment statuses
const (
	SupplierStatusPending   = "pending"
	SupplierStatusSent      = "sent"
	SupplierStatusConfirmed = "confirmed"
	SupplierStatusInTransit = "in_transit"
	SupplierStatusReceived  = "received"
	SupplierStatusCancelled = "cancelled"
)

// Supplier order workflow statuses
const (
	WorkflowStatusActive  = "active"
	WorkflowStatusPaused  = "paused"
	WorkflowStatusResumed = "resumed"
)

// PauseReasonVendorAssignment marks an order waiting for a vendor decision
const PauseReasonVendorAssignment = "vendor assignment required"

// SupplierOrder models external-supplier fulfillment of a purchase order item
type SupplierOrder struct {
	Record
	OrderNumber          string          `json:"order_number"`
	PurchaseOrderItemID  int64           `json:"purchase_order_item_id"`
	SKUID                int64           `json:"sku_id"`
	SupplierID           int64           `json:"supplier_id"`
	QuantityOrdered      int             `json:"quantity_ordered"`
	UnitCost             decimal.Decimal `json:"unit_cost"`
	Status               string          `json:"status"`
	WorkflowStatus       string          `json:"workflow_status"`
	PauseReason          string          `json:"pause_reason,omitempty"`
	PausedAt             *time.Time      `json:"paused_at,omitempty"`
	ResumeNote           string          `json:"resume_note,omitempty"`
	ExpectedDeliveryDate time.Time       `json:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time      `json:"actual_delivery_date,omitempty"`
}

// BOMTemplate is a versioned kit definition
type BOMTemplate struct {
	Record
	KitSKUID     int64           `json:"kit_sku_id"`
	Version      string          `json:"version"`
	Name         string          `json:"name"`
	LaborCost    decimal.Decimal `json:"labor_cost"`
	OverheadCost decimal.Decimal `json:"overhead_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// BOMComponent is one required component of a BOM template
type BOMComponent struct {
	Record
	BOMTemplateID    int64           `json:"bom_template_id"`
	ComponentSKUID   int64           `json:"component_sku_id"`
	QuantityRequired int             `json:"quantity_required"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	LineCost         decimal.Decimal `json:"line_cost"`
	IsCritical       bool            `json:"is_critical"`
}

// BOMTemplateWithComponents is the joined view of a template
type BOMTemplateWithComponents struct {
	BOMTemplate
	Components []BOMComponent `json:"components"`
}

// Kit production statuses
const (
	KitProductionPlanned    = "planned"
	KitProductionInProgress = "in_progress"
	KitProductionCompleted  = "completed"
	KitProductionCancelled  = "cancelled"
	KitProductionOnHold     = "on_hold"
)

// KitProductionOrder assembles kits from BOM components
type KitProductionOrder struct {
	Record
	OrderNumber           string     `json:"order_number"`
	KitSKUID              int64      `json:"kit_sku_id"`
	BOMTemplateID         int64      `json:"bom_template_id"`
	WarehouseID           int64      `json:"warehouse_id"`
	ProductionPlanID      int64      `json:"production_plan_id,omitempty"`
	QuantityPlanned       int        `json:"quantity_planned"`
	QuantityCompleted     int        `json:"quantity_completed"`
	Status                string     `json:"status"`
	PlannedStartDate      time.Time  `json:"planned_start_date"`
	PlannedCompletionDate time.Time  `json:"planned_completion_date"`
	ActualCompletionDate  *time.Time `json:"actual_completion_date,omitempty"`
}

// ComponentCheck is the verification result for one BOM component
type ComponentCheck struct {
	ComponentSKUID int64  `json:"component_sku_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Required       int    `json:"required"`
	Available      int    `json:"available"`
	Sufficient     bool   `json:"sufficient"`
	Shortage       int    `json:"shortage"`
	IsCritical     bool   `json:"is_critical"`
}

// ProductionPlan tracks inventory verification for one (sales order, BOM template) pair
type ProductionPlan struct {
	Record
	PlanNumber              string           `json:"plan_number"`
	SalesOrderID            int64            `json:"sales_order_id"`
	BOMTemplateID           int64            `json:"bom_template_id"`
	InventoryCheck          []ComponentCheck `json:"inventory_check"`
	Status                  string           `json:"status"`
	LastVerifiedAt          *time.Time       `json:"last_verified_at,omitempty"`
	PurchaseOrdersGenerated *time.Time       `json:"purchase_orders_generated,omitempty"`
	PurchaseOrdersCount     int              `json:"purchase_orders_count"`
	ProductionOrderID       int64            `json:"production_order_id,omitempty"`
}
