package service

import (
	"context"
	"fmt"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/store"
	"reorder-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PurchaseService tracks purchase orders and their warehouse checks
type PurchaseService struct {
	store     *store.Store
	publisher broker.Publisher
	settings  Settings
	logger    *zap.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(store *store.Store, publisher broker.Publisher, settings Settings) *PurchaseService {
	return &PurchaseService{
		store:     store,
		publisher: publisher,
		settings:  settings,
		logger:    util.GetLogger(),
	}
}

type purchaseLine struct {
	SKUID            int64
	Quantity         int
	ProductionPlanID int64
}

type purchaseOrderSpec struct {
	Source   string
	SourceID int64
	Notes    string
	Lines    []purchaseLine
}

// createPurchaseOrder inserts one purchase order with its items inside tx.
// The supplier is the vendor bound to the first line's SKU, else the default supplier.
func createPurchaseOrder(ctx context.Context, tx *store.Tx, settings Settings, spec purchaseOrderSpec) (*models.PurchaseOrder, []*models.PurchaseOrderItem, error) {
	if len(spec.Lines) == 0 {
		return nil, nil, &models.ValidationError{Field: "lines", Message: "purchase order needs at least one line"}
	}

	skus := make([]*models.SKU, len(spec.Lines))
	total := decimal.Zero
	for i, line := range spec.Lines {
		if line.Quantity <= 0 {
			return nil, nil, &models.ValidationError{Field: "quantity", Message: "must be greater than 0"}
		}
		sku, err := store.SKUs.Get(ctx, tx, line.SKUID)
		if err != nil {
			return nil, nil, err
		}
		skus[i] = sku
		total = total.Add(sku.UnitCost.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	supplierID := settings.DefaultSupplierID
	if skus[0].VendorID != 0 {
		supplierID = skus[0].VendorID
	}

	now := tx.Now()
	po := &models.PurchaseOrder{
		SupplierID:           supplierID,
		Status:               models.PurchaseOrderStatusPending,
		OrderDate:            now,
		ExpectedDeliveryDate: now.Add(settings.SupplierLeadTime),
		TotalAmount:          total,
		Source:               spec.Source,
		SourceID:             spec.SourceID,
		Notes:                spec.Notes,
	}
	if err := store.PurchaseOrders.Insert(ctx, tx, po); err != nil {
		return nil, nil, fmt.Errorf("failed to create purchase order: %w", err)
	}

	items := make([]*models.PurchaseOrderItem, 0, len(spec.Lines))
	for i, line := range spec.Lines {
		item := &models.PurchaseOrderItem{
			PurchaseOrderID:  po.ID,
			SKUID:            line.SKUID,
			QuantityOrdered:  line.Quantity,
			UnitCost:         skus[i].UnitCost,
			WarehouseStatus:  models.WarehouseStatusNotChecked,
			ProductionPlanID: line.ProductionPlanID,
		}
		if err := store.PurchaseOrderItems.Insert(ctx, tx, item); err != nil {
			return nil, nil, fmt.Errorf("failed to create purchase order item: %w", err)
		}
		items = append(items, item)
	}

	util.PurchaseOrdersCreatedTotal.WithLabelValues(spec.Source).Inc()
	return po, items, nil
}

// CheckInput records the outcome of a manual warehouse check
type CheckInput struct {
	Status        string `json:"status" validate:"required,oneof=in_warehouse not_available partial_available"`
	QuantityFound int    `json:"quantity_found" validate:"gte=0"`
	Location      string `json:"location,omitempty"`
	CheckedBy     string `json:"checked_by,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// CheckResult is the outcome of CheckItemInWarehouse
type CheckResult struct {
	Item          *models.PurchaseOrderItem `json:"item"`
	Check         *models.WarehouseCheck    `json:"check"`
	SupplierOrder *models.SupplierOrder     `json:"supplier_order,omitempty"`
}

// CheckItemInWarehouse records a warehouse check for an unchecked item. Insufficient
// stock escalates to a supplier order in the same transaction.
func (s *PurchaseService) CheckItemInWarehouse(ctx context.Context, itemID int64, input CheckInput) (*CheckResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.CheckItemInWarehouse")
	defer span.End()

	if err := validateInput(input); err != nil {
		return nil, err
	}

	result := &CheckResult{}
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		item, err := store.PurchaseOrderItems.Get(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.WarehouseStatus != models.WarehouseStatusNotChecked {
			return &models.TransitionError{Entity: "purchase_order_item", From: item.WarehouseStatus, To: input.Status}
		}

		outstanding := item.QuantityOrdered - item.QuantityReceived
		found := input.QuantityFound
		switch input.Status {
		case models.WarehouseStatusInWarehouse:
			if found == 0 {
				found = outstanding
			}
		case models.WarehouseStatusNotAvailable:
			found = 0
		case models.WarehouseStatusPartialAvailable:
			if found <= 0 || found >= outstanding {
				return &models.ValidationError{
					Field:   "quantity_found",
					Message: fmt.Sprintf("partial availability needs a quantity between 1 and %d", outstanding-1),
				}
			}
		}

		check := &models.WarehouseCheck{
			PurchaseOrderItemID: item.ID,
			Status:              input.Status,
			QuantityFound:       found,
			Location:            input.Location,
			CheckedBy:           input.CheckedBy,
			Notes:               input.Notes,
		}
		if err := store.WarehouseChecks.Insert(ctx, tx, check); err != nil {
			return err
		}
		result.Check = check

		item.WarehouseStatus = input.Status
		if input.Status != models.WarehouseStatusInWarehouse {
			if input.Status == models.WarehouseStatusPartialAvailable {
				// located stock counts toward the item; the supplier covers the rest
				item.QuantityReceived += found
			}
			order, err := newSupplierOrder(ctx, tx, s.settings, item, outstanding-found)
			if err != nil {
				return err
			}
			result.SupplierOrder = order
			item.WarehouseStatus = models.WarehouseStatusNewOrderRequired
		}
		if err := store.PurchaseOrderItems.Update(ctx, tx, item); err != nil {
			return err
		}
		result.Item = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.WarehouseChecksTotal.WithLabelValues(input.Status).Inc()
	s.logger.Info("Warehouse check recorded",
		zap.Int64("item_id", itemID),
		zap.String("status", input.Status),
		zap.Int("quantity_found", result.Check.QuantityFound))

	events := []models.Event{ordersRefresh("warehouse_check")}
	if result.SupplierOrder != nil {
		events = append(events, notification(models.NotificationWarning,
			"Supplier order created",
			fmt.Sprintf("%s raised for %d unit(s) not found in the warehouse",
				result.SupplierOrder.OrderNumber, result.SupplierOrder.QuantityOrdered)))
	}
	publishAll(ctx, s.publisher, s.logger, events...)
	return result, nil
}

// ListWarehouseChecks returns the check history of an item, oldest first
func (s *PurchaseService) ListWarehouseChecks(ctx context.Context, itemID int64) ([]*models.WarehouseCheck, error) {
	var checks []*models.WarehouseCheck
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if _, err := store.PurchaseOrderItems.Get(ctx, tx, itemID); err != nil {
			return err
		}
		var err error
		checks, err = store.WarehouseChecks.Find(ctx, tx, func(c *models.WarehouseCheck) bool {
			return c.PurchaseOrderItemID == itemID
		})
		return err
	})
	return checks, err
}

// ListPurchaseOrders returns every purchase order
func (s *PurchaseService) ListPurchaseOrders(ctx context.Context) ([]*models.PurchaseOrder, error) {
	var orders []*models.PurchaseOrder
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		orders, err = store.PurchaseOrders.List(ctx, tx)
		return err
	})
	return orders, err
}

// PurchaseOrderWithItems is a purchase order joined with its lines
type PurchaseOrderWithItems struct {
	*models.PurchaseOrder
	Items []*models.PurchaseOrderItem `json:"items"`
}

// GetPurchaseOrder returns one purchase order with its items
func (s *PurchaseService) GetPurchaseOrder(ctx context.Context, id int64) (*PurchaseOrderWithItems, error) {
	var out *PurchaseOrderWithItems
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		po, err := store.PurchaseOrders.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		items, err := store.PurchaseOrderItems.Find(ctx, tx, func(i *models.PurchaseOrderItem) bool {
			return i.PurchaseOrderID == id
		})
		if err != nil {
			return err
		}
		out = &PurchaseOrderWithItems{PurchaseOrder: po, Items: items}
		return nil
	})
	return out, err
}
