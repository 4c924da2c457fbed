package service

import (
	"context"
	"fmt"
	"strings"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/store"
	"reorder-service/internal/util"

	"go.uber.org/zap"
)

// SupplierService drives the fulfillment and workflow states of supplier orders
type SupplierService struct {
	store     *store.Store
	publisher broker.Publisher
	settings  Settings
	logger    *zap.Logger
}

// NewSupplierService creates a new supplier service
func NewSupplierService(store *store.Store, publisher broker.Publisher, settings Settings) *SupplierService {
	return &SupplierService{
		store:     store,
		publisher: publisher,
		settings:  settings,
		logger:    util.GetLogger(),
	}
}

// newSupplierOrder escalates quantity of a purchase order item to an external supplier
func newSupplierOrder(ctx context.Context, tx *store.Tx, settings Settings, item *models.PurchaseOrderItem, quantity int) (*models.SupplierOrder, error) {
	if quantity <= 0 {
		return nil, &models.ValidationError{Field: "quantity_ordered", Message: "nothing left to order from a supplier"}
	}
	sku, err := store.SKUs.Get(ctx, tx, item.SKUID)
	if err != nil {
		return nil, err
	}

	supplierID := settings.DefaultSupplierID
	if sku.VendorID != 0 {
		supplierID = sku.VendorID
	}

	order := &models.SupplierOrder{
		PurchaseOrderItemID:  item.ID,
		SKUID:                item.SKUID,
		SupplierID:           supplierID,
		QuantityOrdered:      quantity,
		UnitCost:             item.UnitCost,
		Status:               models.SupplierStatusPending,
		WorkflowStatus:       models.WorkflowStatusActive,
		ExpectedDeliveryDate: tx.Now().Add(settings.SupplierLeadTime),
	}
	if err := store.SupplierOrders.Insert(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to create supplier order: %w", err)
	}

	util.SupplierOrdersCreatedTotal.Inc()
	return order, nil
}

// ListSupplierOrders returns every supplier order
func (s *SupplierService) ListSupplierOrders(ctx context.Context) ([]*models.SupplierOrder, error) {
	var orders []*models.SupplierOrder
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		orders, err = store.SupplierOrders.List(ctx, tx)
		return err
	})
	return orders, err
}

// GetSupplierOrder returns one supplier order
func (s *SupplierService) GetSupplierOrder(ctx context.Context, id int64) (*models.SupplierOrder, error) {
	var order *models.SupplierOrder
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		order, err = store.SupplierOrders.Get(ctx, tx, id)
		return err
	})
	return order, err
}

// UpdateSupplierOrderStatus advances the fulfillment status. Receipt credits the
// ledger at the default warehouse and announces the material. Cancellation writes
// the ordered quantity off the purchase order item.
func (s *SupplierService) UpdateSupplierOrderStatus(ctx context.Context, id int64, status string) (*models.SupplierOrder, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.UpdateSupplierOrderStatus")
	defer span.End()

	var (
		order  *models.SupplierOrder
		record *models.InventoryRecord
		sku    *models.SKU
		change LevelChange
	)
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		order, err = store.SupplierOrders.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !order.CanTransitionTo(status) {
			return &models.TransitionError{Entity: "supplier_order", From: order.Status, To: status}
		}
		order.Status = status

		if status == models.SupplierStatusReceived {
			now := tx.Now()
			order.ActualDeliveryDate = &now
			order.WorkflowStatus = models.WorkflowStatusResumed

			sku, err = store.SKUs.Get(ctx, tx, order.SKUID)
			if err != nil {
				return err
			}
			change = LevelChange{
				SKUID:       order.SKUID,
				WarehouseID: s.settings.DefaultWarehouseID,
				Delta:       order.QuantityOrdered,
				Reason:      models.MovementReasonReceipt,
				RefID:       order.OrderNumber,
				Note:        "supplier order received",
			}
			record, err = applyDelta(ctx, tx, change)
			if err != nil {
				return err
			}

			item, err := store.PurchaseOrderItems.Get(ctx, tx, order.PurchaseOrderItemID)
			if err != nil {
				return err
			}
			item.QuantityReceived += order.QuantityOrdered
			if err := store.PurchaseOrderItems.Update(ctx, tx, item); err != nil {
				return err
			}
		}

		if status == models.SupplierStatusCancelled {
			// the item stops waiting on this order so its plan can order the shortage again
			item, err := store.PurchaseOrderItems.Get(ctx, tx, order.PurchaseOrderItemID)
			if err != nil {
				return err
			}
			item.QuantityCancelled += order.QuantityOrdered
			if err := store.PurchaseOrderItems.Update(ctx, tx, item); err != nil {
				return err
			}
		}
		return store.SupplierOrders.Update(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Supplier order status updated",
		zap.Int64("supplier_order_id", id),
		zap.String("status", status))

	events := []models.Event{ordersRefresh("supplier_order")}
	if status == models.SupplierStatusCancelled {
		events = append(events, notification(models.NotificationWarning, "Supplier order cancelled",
			fmt.Sprintf("%s cancelled; %d unit(s) are no longer expected", order.OrderNumber, order.QuantityOrdered)))
	}
	if status == models.SupplierStatusReceived {
		util.SupplierOrdersReceivedTotal.Inc()
		events = append(events,
			inventoryChanged(record, change),
			&models.MaterialAvailableEvent{
				BaseEvent:       models.NewBaseEvent(models.EventTypeMaterialAvailable),
				SKUID:           sku.ID,
				QuantityAdded:   order.QuantityOrdered,
				ItemCode:        sku.Code,
				ItemName:        sku.Name,
				SupplierOrderID: order.ID,
			},
			inventoryRefresh("supplier_order"),
			dashboardRefresh("supplier_order"))
	}
	publishAll(ctx, s.publisher, s.logger, events...)
	return order, nil
}

// PauseSupplierOrderWorkflow holds an order's workflow without touching its fulfillment status
func (s *SupplierService) PauseSupplierOrderWorkflow(ctx context.Context, id int64, reason string) (*models.SupplierOrder, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &models.ValidationError{Field: "reason", Message: "is required"}
	}

	var order *models.SupplierOrder
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		order, err = store.SupplierOrders.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if order.Status == models.SupplierStatusReceived || order.Status == models.SupplierStatusCancelled {
			return &models.ValidationError{Field: "status", Message: "cannot pause a " + order.Status + " supplier order"}
		}
		if order.WorkflowStatus == models.WorkflowStatusPaused {
			return &models.TransitionError{Entity: "supplier_order workflow", From: order.WorkflowStatus, To: models.WorkflowStatusPaused}
		}
		now := tx.Now()
		order.WorkflowStatus = models.WorkflowStatusPaused
		order.PauseReason = reason
		order.PausedAt = &now
		order.ResumeNote = ""
		return store.SupplierOrders.Update(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	util.SupplierWorkflowPausedTotal.Inc()
	s.logger.Info("Supplier order workflow paused",
		zap.Int64("supplier_order_id", id),
		zap.String("reason", reason))

	publishAll(ctx, s.publisher, s.logger,
		ordersRefresh("supplier_order"),
		notification(models.NotificationWarning, "Supplier order paused",
			fmt.Sprintf("%s paused: %s", order.OrderNumber, reason)))
	return order, nil
}

// ResumeSupplierOrderWorkflow reactivates a paused order
func (s *SupplierService) ResumeSupplierOrderWorkflow(ctx context.Context, id int64, note string) (*models.SupplierOrder, error) {
	var order *models.SupplierOrder
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		order, err = store.SupplierOrders.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := resumeWorkflow(order, note); err != nil {
			return err
		}
		return store.SupplierOrders.Update(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Supplier order workflow resumed",
		zap.Int64("supplier_order_id", id),
		zap.String("note", note))

	publishAll(ctx, s.publisher, s.logger, ordersRefresh("supplier_order"))
	return order, nil
}

func resumeWorkflow(order *models.SupplierOrder, note string) error {
	if order.WorkflowStatus != models.WorkflowStatusPaused {
		return &models.TransitionError{Entity: "supplier_order workflow", From: order.WorkflowStatus, To: models.WorkflowStatusActive}
	}
	order.WorkflowStatus = models.WorkflowStatusActive
	order.PauseReason = ""
	order.PausedAt = nil
	order.ResumeNote = note
	return nil
}
