package models

import (
	"fmt"
	"time"
)

// PurchaseOrderNumber formats PO-<year>-<seq4>
func PurchaseOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("PO-%d-%04d", at.Year(), seq)
}

// SupplierOrderNumber formats SUP-<year>-<seq4>
func SupplierOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("SUP-%d-%04d", at.Year(), seq)
}

// KitProductionOrderNumber formats KPO-<year>-<seq4>
func KitProductionOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("KPO-%d-%04d", at.Year(), seq)
}

// ProductionPlanNumber formats PP-<unix millis>-<sales order id>
func ProductionPlanNumber(at time.Time, salesOrderID int64) string {
	return fmt.Sprintf("PP-%d-%d", at.UnixMilli(), salesOrderID)
}

// AssignNumber sets the order number from the allocated id
func (o *PurchaseOrder) AssignNumber(id int64, at time.Time) {
	if o.OrderNumber == "" {
		o.OrderNumber = PurchaseOrderNumber(at, id)
	}
}

// AssignNumber sets the order number from the allocated id
func (o *SupplierOrder) AssignNumber(id int64, at time.Time) {
	if o.OrderNumber == "" {
		o.OrderNumber = SupplierOrderNumber(at, id)
	}
}

// AssignNumber sets the order number from the allocated id
func (o *KitProductionOrder) AssignNumber(id int64, at time.Time) {
	if o.OrderNumber == "" {
		o.OrderNumber = KitProductionOrderNumber(at, id)
	}
}

// AssignNumber sets the plan number from the sales order it serves
func (p *ProductionPlan) AssignNumber(_ int64, at time.Time) {
	if p.PlanNumber == "" {
		p.PlanNumber = ProductionPlanNumber(at, p.SalesOrderID)
	}
}
