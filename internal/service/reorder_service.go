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

// ReorderService manages reorder requests raised from stock shortages
type ReorderService struct {
	store     *store.Store
	publisher broker.Publisher
	settings  Settings
	logger    *zap.Logger
}

// NewReorderService creates a new reorder service
func NewReorderService(store *store.Store, publisher broker.Publisher, settings Settings) *ReorderService {
	return &ReorderService{
		store:     store,
		publisher: publisher,
		settings:  settings,
		logger:    util.GetLogger(),
	}
}

// CreateReorderInput describes a new reorder request. Quantity is derived from the
// inventory thresholds when omitted.
type CreateReorderInput struct {
	SKUID       int64  `json:"sku_id" validate:"required"`
	WarehouseID int64  `json:"warehouse_id" validate:"required"`
	Reason      string `json:"reason" validate:"required,oneof=out_of_stock low_stock manual"`
	Quantity    *int   `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Notes       string `json:"notes,omitempty"`
}

// CreateReorderRequest records a pending request and raises a reorder alert
func (s *ReorderService) CreateReorderRequest(ctx context.Context, input CreateReorderInput) (*models.ReorderRequest, error) {
	ctx, span := util.StartSpan(ctx, "ReorderService.CreateReorderRequest")
	defer span.End()

	if err := validateInput(input); err != nil {
		return nil, err
	}

	var req *models.ReorderRequest
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if _, err := store.SKUs.Get(ctx, tx, input.SKUID); err != nil {
			return err
		}
		record, err := store.Inventory.FindOne(ctx, tx, func(r *models.InventoryRecord) bool {
			return r.SKUID == input.SKUID && r.WarehouseID == input.WarehouseID
		})
		if err != nil {
			return err
		}
		req, err = s.insertRequest(ctx, tx, input, record)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.raised(ctx, req)
	return req, nil
}

func (s *ReorderService) insertRequest(ctx context.Context, tx *store.Tx, input CreateReorderInput, record *models.InventoryRecord) (*models.ReorderRequest, error) {
	quantity := s.suggestedQuantity(record)
	if input.Quantity != nil {
		quantity = *input.Quantity
	}

	priority := models.PriorityMedium
	if input.Reason == models.ReorderReasonOutOfStock {
		priority = models.PriorityHigh
	}

	req := &models.ReorderRequest{
		SKUID:             input.SKUID,
		WarehouseID:       input.WarehouseID,
		QuantityRequested: quantity,
		Reason:            input.Reason,
		Priority:          priority,
		Status:            models.ReorderStatusPending,
		Notes:             input.Notes,
	}
	if err := store.ReorderRequests.Insert(ctx, tx, req); err != nil {
		return nil, fmt.Errorf("failed to create reorder request: %w", err)
	}
	return req, nil
}

// suggestedQuantity refills to max stock, falling back to a fixed quantity
func (s *ReorderService) suggestedQuantity(record *models.InventoryRecord) int {
	if record == nil || record.MaxStockLevel <= 0 {
		return s.settings.ReorderFallbackQuantity
	}
	if q := record.MaxStockLevel - record.QuantityOnHand; q > 0 {
		return q
	}
	return s.settings.ReorderFallbackQuantity
}

func (s *ReorderService) raised(ctx context.Context, req *models.ReorderRequest) {
	util.ReorderRequestsCreatedTotal.WithLabelValues(req.Reason).Inc()
	s.logger.Info("Reorder request created",
		zap.Int64("request_id", req.ID),
		zap.Int64("sku_id", req.SKUID),
		zap.Int("quantity", req.QuantityRequested),
		zap.String("reason", req.Reason))

	severity := models.SeverityWarning
	if req.Reason == models.ReorderReasonOutOfStock {
		severity = models.SeverityCritical
	}
	publishAll(ctx, s.publisher, s.logger,
		&models.ReorderAlertEvent{
			BaseEvent:   models.NewBaseEvent(models.EventTypeReorderAlert),
			RequestID:   req.ID,
			SKUID:       req.SKUID,
			WarehouseID: req.WarehouseID,
			Reason:      req.Reason,
			Severity:    severity,
			Quantity:    req.QuantityRequested,
		},
		dashboardRefresh("reorder"))
}

// StatusUpdate changes the status of a reorder request
type StatusUpdate struct {
	Status     string `json:"status" validate:"required,oneof=approved ordered cancelled"`
	ApprovedBy string `json:"approved_by,omitempty"`
}

// UpdateReorderRequestStatus applies a status transition. Approval creates a purchase
// order for the requested quantity in the same transaction.
func (s *ReorderService) UpdateReorderRequestStatus(ctx context.Context, id int64, update StatusUpdate) (*models.ReorderRequest, error) {
	ctx, span := util.StartSpan(ctx, "ReorderService.UpdateReorderRequestStatus")
	defer span.End()

	if err := validateInput(update); err != nil {
		return nil, err
	}

	var (
		req *models.ReorderRequest
		po  *models.PurchaseOrder
	)
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		req, err = store.ReorderRequests.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !req.CanTransitionTo(update.Status) {
			return &models.TransitionError{Entity: "reorder_request", From: req.Status, To: update.Status}
		}
		req.Status = update.Status

		if update.Status == models.ReorderStatusApproved {
			now := tx.Now()
			req.ApprovedBy = update.ApprovedBy
			req.ApprovedAt = &now

			po, _, err = createPurchaseOrder(ctx, tx, s.settings, purchaseOrderSpec{
				Source:   models.PurchaseSourceReorder,
				SourceID: req.ID,
				Notes:    fmt.Sprintf("Reorder request #%d (%s)", req.ID, req.Reason),
				Lines:    []purchaseLine{{SKUID: req.SKUID, Quantity: req.QuantityRequested}},
			})
			if err != nil {
				return err
			}
			req.PurchaseOrderID = po.ID
		}
		return store.ReorderRequests.Update(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reorder request status updated",
		zap.Int64("request_id", id),
		zap.String("status", update.Status))

	if po != nil {
		publishAll(ctx, s.publisher, s.logger,
			ordersRefresh("reorder"),
			notification(models.NotificationSuccess, "Purchase order created",
				fmt.Sprintf("%s created for reorder request #%d", po.OrderNumber, req.ID)))
	}
	return req, nil
}

// ListReorderRequests returns every reorder request
func (s *ReorderService) ListReorderRequests(ctx context.Context) ([]*models.ReorderRequest, error) {
	var reqs []*models.ReorderRequest
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		reqs, err = store.ReorderRequests.List(ctx, tx)
		return err
	})
	return reqs, err
}

// ScanLowStock raises a request for every record at or below its reorder point
// that has no open request yet
func (s *ReorderService) ScanLowStock(ctx context.Context) ([]*models.ReorderRequest, error) {
	ctx, span := util.StartSpan(ctx, "ReorderService.ScanLowStock")
	defer span.End()

	var created []*models.ReorderRequest
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		records, err := store.Inventory.Find(ctx, tx, func(r *models.InventoryRecord) bool {
			return r.BelowReorderPoint()
		})
		if err != nil {
			return err
		}
		for _, record := range records {
			req, err := s.raiseIfUncovered(ctx, tx, record)
			if err != nil {
				return err
			}
			if req != nil {
				created = append(created, req)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan low stock: %w", err)
	}

	for _, req := range created {
		s.raised(ctx, req)
	}
	return created, nil
}

// HandleInventoryChanged raises a reorder request when a ledger change leaves stock low
func (s *ReorderService) HandleInventoryChanged(ctx context.Context, event *models.InventoryChangedEvent) error {
	if !s.settings.AutoReorder || event.Delta >= 0 {
		return nil
	}

	var req *models.ReorderRequest
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		record, err := store.Inventory.FindOne(ctx, tx, func(r *models.InventoryRecord) bool {
			return r.SKUID == event.SKUID && r.WarehouseID == event.WarehouseID
		})
		if err != nil || record == nil || !record.BelowReorderPoint() {
			return err
		}
		req, err = s.raiseIfUncovered(ctx, tx, record)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to check reorder point: %w", err)
	}
	if req != nil {
		s.raised(ctx, req)
	}
	return nil
}

func (s *ReorderService) raiseIfUncovered(ctx context.Context, tx *store.Tx, record *models.InventoryRecord) (*models.ReorderRequest, error) {
	open, err := store.ReorderRequests.FindOne(ctx, tx, func(r *models.ReorderRequest) bool {
		return r.SKUID == record.SKUID && r.WarehouseID == record.WarehouseID && r.Open()
	})
	if err != nil || open != nil {
		return nil, err
	}

	reason := models.ReorderReasonLowStock
	if record.QuantityAvailable <= 0 {
		reason = models.ReorderReasonOutOfStock
	}
	return s.insertRequest(ctx, tx, CreateReorderInput{
		SKUID:       record.SKUID,
		WarehouseID: record.WarehouseID,
		Reason:      reason,
		Notes:       "raised automatically at reorder point",
	}, record)
}
