package service

import (
	"context"
	"fmt"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/store"
	"reorder-service/internal/util"

	"go.uber.org/zap"
)

// InventoryLedger owns per-SKU, per-warehouse stock levels
type InventoryLedger struct {
	store     *store.Store
	publisher broker.Publisher
	logger    *zap.Logger
}

// NewInventoryLedger creates a new inventory ledger
func NewInventoryLedger(store *store.Store, publisher broker.Publisher) *InventoryLedger {
	return &InventoryLedger{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// LevelChange is a relative stock movement
type LevelChange struct {
	SKUID       int64  `json:"sku_id" validate:"required"`
	WarehouseID int64  `json:"warehouse_id" validate:"required"`
	Delta       int    `json:"delta" validate:"ne=0"`
	Reason      string `json:"reason" validate:"required,oneof=receipt production_consume production_output adjustment sale"`
	RefID       string `json:"ref_id,omitempty"`
	Note        string `json:"note,omitempty"`
}

// GetInventory returns every inventory record
func (l *InventoryLedger) GetInventory(ctx context.Context) ([]*models.InventoryRecord, error) {
	var records []*models.InventoryRecord
	err := l.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		records, err = store.Inventory.List(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return records, nil
}

// UpdateInventoryLevel applies a relative delta and records the movement
func (l *InventoryLedger) UpdateInventoryLevel(ctx context.Context, change LevelChange) (*models.InventoryRecord, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.UpdateInventoryLevel")
	defer span.End()

	var record *models.InventoryRecord
	err := l.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		record, err = applyDelta(ctx, tx, change)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Inventory level updated",
		zap.Int64("sku_id", change.SKUID),
		zap.Int64("warehouse_id", change.WarehouseID),
		zap.Int("delta", change.Delta),
		zap.String("reason", change.Reason))

	publishAll(ctx, l.publisher, l.logger,
		inventoryChanged(record, change),
		inventoryRefresh("inventory_ledger"))
	return record, nil
}

// AvailableForSKU returns the quantity available across all warehouses
func (l *InventoryLedger) AvailableForSKU(ctx context.Context, skuID int64) (int, error) {
	var available int
	err := l.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		available, err = availableForSKU(ctx, tx, skuID)
		return err
	})
	return available, err
}

// ThresholdsInput sets the replenishment thresholds of one inventory record
type ThresholdsInput struct {
	SKUID            int64 `json:"sku_id" validate:"required"`
	WarehouseID      int64 `json:"warehouse_id" validate:"required"`
	SafetyStockLevel int   `json:"safety_stock_level" validate:"gte=0"`
	ReorderPoint     int   `json:"reorder_point" validate:"gte=0"`
	MaxStockLevel    int   `json:"max_stock_level" validate:"gte=0"`
}

// SetThresholds updates safety stock, reorder point and max stock, creating the record if needed
func (l *InventoryLedger) SetThresholds(ctx context.Context, input ThresholdsInput) (*models.InventoryRecord, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.MaxStockLevel > 0 && input.ReorderPoint > input.MaxStockLevel {
		return nil, &models.ValidationError{Field: "reorder_point", Message: "must not exceed max_stock_level"}
	}

	var record *models.InventoryRecord
	err := l.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		record, err = findOrCreateRecord(ctx, tx, input.SKUID, input.WarehouseID)
		if err != nil {
			return err
		}
		record.SafetyStockLevel = input.SafetyStockLevel
		record.ReorderPoint = input.ReorderPoint
		record.MaxStockLevel = input.MaxStockLevel
		return store.Inventory.Update(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}

	publishAll(ctx, l.publisher, l.logger, inventoryRefresh("inventory_ledger"))
	return record, nil
}

// applyDelta is the only code path that changes stock. It runs inside the caller's transaction.
func applyDelta(ctx context.Context, tx *store.Tx, change LevelChange) (*models.InventoryRecord, error) {
	if err := validateInput(change); err != nil {
		return nil, err
	}

	record, err := findOrCreateRecord(ctx, tx, change.SKUID, change.WarehouseID)
	if err != nil {
		return nil, err
	}

	record.QuantityOnHand += change.Delta
	record.Recalculate()
	if record.QuantityOnHand < 0 || record.QuantityAvailable < 0 {
		return nil, &models.ValidationError{
			Field: "delta",
			Message: fmt.Sprintf("insufficient stock for sku %d in warehouse %d: available %d, delta %d",
				change.SKUID, change.WarehouseID, record.QuantityAvailable-change.Delta, change.Delta),
		}
	}
	if err := store.Inventory.Update(ctx, tx, record); err != nil {
		return nil, err
	}

	movement := &models.InventoryMovement{
		SKUID:         change.SKUID,
		WarehouseID:   change.WarehouseID,
		Delta:         change.Delta,
		Reason:        change.Reason,
		RefID:         change.RefID,
		Note:          change.Note,
		QuantityAfter: record.QuantityOnHand,
	}
	if err := store.InventoryMovements.Insert(ctx, tx, movement); err != nil {
		return nil, err
	}

	util.InventoryDeltasTotal.WithLabelValues(change.Reason).Inc()
	return record, nil
}

func findOrCreateRecord(ctx context.Context, tx *store.Tx, skuID, warehouseID int64) (*models.InventoryRecord, error) {
	if _, err := store.SKUs.Get(ctx, tx, skuID); err != nil {
		return nil, err
	}

	record, err := store.Inventory.FindOne(ctx, tx, func(r *models.InventoryRecord) bool {
		return r.SKUID == skuID && r.WarehouseID == warehouseID
	})
	if err != nil || record != nil {
		return record, err
	}

	record = &models.InventoryRecord{SKUID: skuID, WarehouseID: warehouseID}
	if err := store.Inventory.Insert(ctx, tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func availableForSKU(ctx context.Context, tx *store.Tx, skuID int64) (int, error) {
	records, err := store.Inventory.Find(ctx, tx, func(r *models.InventoryRecord) bool {
		return r.SKUID == skuID
	})
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range records {
		total += r.QuantityAvailable
	}
	return total, nil
}

func inventoryChanged(record *models.InventoryRecord, change LevelChange) *models.InventoryChangedEvent {
	return &models.InventoryChangedEvent{
		BaseEvent:         models.NewBaseEvent(models.EventTypeInventoryChanged),
		SKUID:             record.SKUID,
		WarehouseID:       record.WarehouseID,
		Delta:             change.Delta,
		Reason:            change.Reason,
		RefID:             change.RefID,
		QuantityOnHand:    record.QuantityOnHand,
		QuantityAvailable: record.QuantityAvailable,
	}
}
