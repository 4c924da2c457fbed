package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/store"
	"reorder-service/internal/util"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ProductionOrchestrator links sales orders to BOM templates, verifies component
// stock, orders shortages and gates production start
type ProductionOrchestrator struct {
	store     *store.Store
	publisher broker.Publisher
	locker    Locker
	settings  Settings
	logger    *zap.Logger
}

// NewProductionOrchestrator creates a new production orchestrator
func NewProductionOrchestrator(
	store *store.Store,
	publisher broker.Publisher,
	locker Locker,
	settings Settings,
) *ProductionOrchestrator {
	return &ProductionOrchestrator{
		store:     store,
		publisher: publisher,
		locker:    locker,
		settings:  settings,
		logger:    util.GetLogger(),
	}
}

// SyncProductionPlans creates the missing plan for every sales order that needs production
func (po *ProductionOrchestrator) SyncProductionPlans(ctx context.Context) ([]*models.ProductionPlan, error) {
	ctx, span := util.StartSpan(ctx, "ProductionOrchestrator.SyncProductionPlans")
	defer span.End()

	var created []*models.ProductionPlan
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		orders, err := store.SalesOrders.Find(ctx, tx, func(o *models.SalesOrder) bool {
			return o.ProductionRequired && o.BOMTemplateID != 0
		})
		if err != nil {
			return err
		}
		plans, err := store.ProductionPlans.List(ctx, tx)
		if err != nil {
			return err
		}

		type planKey struct{ salesOrderID, templateID int64 }
		existing := make(map[planKey]bool, len(plans))
		for _, p := range plans {
			existing[planKey{p.SalesOrderID, p.BOMTemplateID}] = true
		}

		for _, o := range orders {
			if existing[planKey{o.ID, o.BOMTemplateID}] {
				continue
			}
			plan := &models.ProductionPlan{
				SalesOrderID:   o.ID,
				BOMTemplateID:  o.BOMTemplateID,
				InventoryCheck: []models.ComponentCheck{},
				Status:         models.PlanStatusPendingVerification,
			}
			if err := store.ProductionPlans.Insert(ctx, tx, plan); err != nil {
				return fmt.Errorf("failed to create production plan: %w", err)
			}
			existing[planKey{o.ID, o.BOMTemplateID}] = true
			created = append(created, plan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		po.logger.Info("Production plans created", zap.Int("count", len(created)))
		publishAll(ctx, po.publisher, po.logger, dashboardRefresh("production_plan"))
	}
	return created, nil
}

// ListProductionPlans returns every production plan
func (po *ProductionOrchestrator) ListProductionPlans(ctx context.Context) ([]*models.ProductionPlan, error) {
	var plans []*models.ProductionPlan
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		plans, err = store.ProductionPlans.List(ctx, tx)
		return err
	})
	return plans, err
}

// GetProductionPlan returns one production plan
func (po *ProductionOrchestrator) GetProductionPlan(ctx context.Context, id int64) (*models.ProductionPlan, error) {
	var plan *models.ProductionPlan
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		plan, err = store.ProductionPlans.Get(ctx, tx, id)
		return err
	})
	return plan, err
}

// VerificationResult reports one verification pass
type VerificationResult struct {
	Plan           *models.ProductionPlan  `json:"plan"`
	Components     []models.ComponentCheck `json:"components"`
	PurchaseOrders []*models.PurchaseOrder `json:"purchase_orders"`
	// AlreadyOrdered counts shortages covered by an open purchase order of this plan
	AlreadyOrdered int                        `json:"already_ordered"`
	Warning        *models.IntegrationWarning `json:"-"`
	WarningMessage string                     `json:"warning,omitempty"`
}

func planLockKey(planID int64) string {
	return fmt.Sprintf("production-plan:%d:verify", planID)
}

// VerifyInventoryForProduction checks every BOM component against available stock,
// moves the plan to production_ready or awaiting_materials and orders each shortage.
// Failed purchase orders are reported in the result's Warning; the plan status is kept.
// silent suppresses notifications unless the plan became ready.
func (po *ProductionOrchestrator) VerifyInventoryForProduction(ctx context.Context, planID int64, silent bool) (*VerificationResult, error) {
	ctx, span := util.StartSpan(ctx, "ProductionOrchestrator.VerifyInventoryForProduction")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PlanVerificationLatency.Observe(time.Since(start).Seconds())
	}()

	key := planLockKey(planID)
	acquired, err := po.locker.AcquireLock(ctx, key, po.settings.PlanLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock production plan %d: %w", planID, err)
	}
	if !acquired {
		return nil, fmt.Errorf("production plan %d is already being verified: %w", planID, models.ErrBusy)
	}
	defer func() {
		if err := po.locker.ReleaseLock(context.Background(), key); err != nil {
			po.logger.Error("Failed to release plan lock", zap.Int64("plan_id", planID), zap.Error(err))
		}
	}()

	var (
		plan       *models.ProductionPlan
		tmpl       *models.BOMTemplateWithComponents
		prevStatus string
	)
	err = po.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		plan, err = store.ProductionPlans.Get(ctx, tx, planID)
		if err != nil {
			return err
		}
		if plan.Locked() {
			return &models.ValidationError{
				Field:   "status",
				Message: fmt.Sprintf("plan %s is %s and can no longer be verified", plan.PlanNumber, plan.Status),
			}
		}
		prevStatus = plan.Status

		tmpl, err = loadTemplate(ctx, tx, plan.BOMTemplateID)
		if err != nil {
			return err
		}
		quantity, err := po.orderQuantity(ctx, tx, plan.SalesOrderID)
		if err != nil {
			return err
		}

		checks := make([]models.ComponentCheck, 0, len(tmpl.Components))
		ready := true
		for _, c := range tmpl.Components {
			sku, err := store.SKUs.Get(ctx, tx, c.ComponentSKUID)
			if err != nil {
				return err
			}
			available, err := availableForSKU(ctx, tx, c.ComponentSKUID)
			if err != nil {
				return err
			}
			check := checkComponent(c, quantity, available)
			check.Code = sku.Code
			check.Name = sku.Name
			ready = ready && check.Sufficient
			checks = append(checks, check)
		}

		status := models.PlanStatusAwaitingMaterials
		if ready {
			status = models.PlanStatusProductionReady
		}
		if err := plan.TransitionTo(status); err != nil {
			return err
		}
		now := tx.Now()
		plan.InventoryCheck = checks
		plan.LastVerifiedAt = &now
		return store.ProductionPlans.Update(ctx, tx, plan)
	})
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		Plan:           plan,
		Components:     plan.InventoryCheck,
		PurchaseOrders: []*models.PurchaseOrder{},
	}

	var orderErrs error
	shortages := 0
	for _, check := range plan.InventoryCheck {
		if check.Sufficient {
			continue
		}
		shortages++
		order, err := po.orderShortage(ctx, plan, &tmpl.BOMTemplate, check)
		switch {
		case err != nil:
			util.PurchaseOrderGenerationFailedTotal.Inc()
			orderErrs = multierr.Append(orderErrs, fmt.Errorf("component %s: %w", check.Code, err))
		case order == nil:
			result.AlreadyOrdered++
		default:
			result.PurchaseOrders = append(result.PurchaseOrders, order)
		}
	}

	var recordErr error
	if shortages > 0 {
		updated, err := po.recordPurchaseOrders(ctx, planID, len(result.PurchaseOrders) > 0)
		if err != nil {
			recordErr = err
		} else {
			result.Plan = updated
		}
	}

	if orderErrs != nil || recordErr != nil {
		result.Warning = &models.IntegrationWarning{
			Operation:   "purchase order generation",
			Failed:      len(multierr.Errors(orderErrs)),
			Bookkeeping: recordErr,
			Err:         multierr.Append(orderErrs, recordErr),
		}
		result.WarningMessage = result.Warning.Error()
		po.logger.Warn("Production plan verified with failures",
			zap.Int64("plan_id", planID),
			zap.Error(result.Warning))
	}

	util.PlanVerificationsTotal.WithLabelValues(plan.Status).Inc()
	po.logger.Info("Production plan verified",
		zap.Int64("plan_id", planID),
		zap.String("status", plan.Status),
		zap.Int("shortages", shortages),
		zap.Int("purchase_orders", len(result.PurchaseOrders)),
		zap.Bool("silent", silent))

	po.announceVerification(ctx, result, prevStatus, shortages, silent)
	return result, nil
}

// checkComponent computes required and shortage quantities for one component
func checkComponent(c models.BOMComponent, orderQuantity, available int) models.ComponentCheck {
	required := c.QuantityRequired * orderQuantity
	shortage := required - available
	if shortage < 0 {
		shortage = 0
	}
	return models.ComponentCheck{
		ComponentSKUID: c.ComponentSKUID,
		Required:       required,
		Available:      available,
		Sufficient:     available >= required,
		Shortage:       shortage,
		IsCritical:     c.IsCritical,
	}
}

func (po *ProductionOrchestrator) orderQuantity(ctx context.Context, tx *store.Tx, salesOrderID int64) (int, error) {
	order, err := store.SalesOrders.Get(ctx, tx, salesOrderID)
	if errors.Is(err, models.ErrNotFound) {
		po.logger.Warn("Sales order missing, planning a single unit", zap.Int64("sales_order_id", salesOrderID))
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if order.Quantity <= 0 {
		return 1, nil
	}
	return order.Quantity, nil
}

// openForPlan reports whether an item still covers a plan shortage
func openForPlan(item *models.PurchaseOrderItem) bool {
	return item.Outstanding() && item.WarehouseStatus != models.WarehouseStatusInWarehouse
}

// orderShortage creates one purchase order for a component shortage unless the plan
// already has an open item for that component. It returns nil when nothing was created.
func (po *ProductionOrchestrator) orderShortage(ctx context.Context, plan *models.ProductionPlan, tmpl *models.BOMTemplate, check models.ComponentCheck) (*models.PurchaseOrder, error) {
	var order *models.PurchaseOrder
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		open, err := store.PurchaseOrderItems.FindOne(ctx, tx, func(i *models.PurchaseOrderItem) bool {
			return i.ProductionPlanID == plan.ID && i.SKUID == check.ComponentSKUID && openForPlan(i)
		})
		if err != nil || open != nil {
			return err
		}

		order, _, err = createPurchaseOrder(ctx, tx, po.settings, purchaseOrderSpec{
			Source:   models.PurchaseSourceProductionPlan,
			SourceID: plan.ID,
			Notes: fmt.Sprintf("Auto-generated for production plan %s, BOM %s (version %s): %s short by %d",
				plan.PlanNumber, tmpl.Name, tmpl.Version, check.Code, check.Shortage),
			Lines: []purchaseLine{{
				SKUID:            check.ComponentSKUID,
				Quantity:         check.Shortage,
				ProductionPlanID: plan.ID,
			}},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// recordPurchaseOrders stores the number of open purchase order items of the plan
func (po *ProductionOrchestrator) recordPurchaseOrders(ctx context.Context, planID int64, generated bool) (*models.ProductionPlan, error) {
	var plan *models.ProductionPlan
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		plan, err = store.ProductionPlans.Get(ctx, tx, planID)
		if err != nil {
			return err
		}
		open, err := store.PurchaseOrderItems.Find(ctx, tx, func(i *models.PurchaseOrderItem) bool {
			return i.ProductionPlanID == planID && openForPlan(i)
		})
		if err != nil {
			return err
		}
		if generated {
			now := tx.Now()
			plan.PurchaseOrdersGenerated = &now
		}
		plan.PurchaseOrdersCount = len(open)
		return store.ProductionPlans.Update(ctx, tx, plan)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record purchase orders on plan %d: %w", planID, err)
	}
	return plan, nil
}

func (po *ProductionOrchestrator) announceVerification(ctx context.Context, result *VerificationResult, prevStatus string, shortages int, silent bool) {
	plan := result.Plan
	var events []models.Event
	if len(result.PurchaseOrders) > 0 {
		events = append(events, ordersRefresh("production_plan"))
	}

	becameReady := plan.Status == models.PlanStatusProductionReady && prevStatus != models.PlanStatusProductionReady
	switch {
	case silent && becameReady:
		events = append(events,
			notification(models.NotificationSuccess, "Materials available",
				fmt.Sprintf("Production plan %s is ready for production", plan.PlanNumber)),
			dashboardRefresh("production_plan"))
	case silent:
	case plan.Status == models.PlanStatusProductionReady:
		events = append(events,
			notification(models.NotificationSuccess, "Inventory verified",
				fmt.Sprintf("All %d components available for plan %s", len(result.Components), plan.PlanNumber)),
			dashboardRefresh("production_plan"))
	default:
		events = append(events,
			notification(models.NotificationWarning, "Materials missing",
				fmt.Sprintf("Plan %s is short of %d component(s); %d purchase order(s) created",
					plan.PlanNumber, shortages, len(result.PurchaseOrders))),
			dashboardRefresh("production_plan"))
	}

	if result.Warning != nil && !silent {
		if result.Warning.Failed > 0 {
			events = append(events, notification(models.NotificationError, "Purchase order generation failed",
				fmt.Sprintf("%d purchase order(s) for plan %s could not be created", result.Warning.Failed, plan.PlanNumber)))
		}
		if result.Warning.Bookkeeping != nil {
			events = append(events, notification(models.NotificationError, "Production plan not updated",
				fmt.Sprintf("Purchase orders for plan %s were handled but the plan's order count could not be saved", plan.PlanNumber)))
		}
	}
	publishAll(ctx, po.publisher, po.logger, events...)
}

// StartProduction opens a kit production order for a production-ready plan
func (po *ProductionOrchestrator) StartProduction(ctx context.Context, planID int64) (*models.KitProductionOrder, error) {
	ctx, span := util.StartSpan(ctx, "ProductionOrchestrator.StartProduction")
	defer span.End()

	var (
		plan  *models.ProductionPlan
		order *models.KitProductionOrder
	)
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		plan, err = store.ProductionPlans.Get(ctx, tx, planID)
		if err != nil {
			return err
		}
		if plan.Status != models.PlanStatusProductionReady {
			return &models.TransitionError{Entity: "production_plan", From: plan.Status, To: models.PlanStatusInProduction}
		}

		tmpl, err := store.BOMTemplates.Get(ctx, tx, plan.BOMTemplateID)
		if err != nil {
			return err
		}
		quantity, err := po.orderQuantity(ctx, tx, plan.SalesOrderID)
		if err != nil {
			return err
		}

		now := tx.Now()
		order = &models.KitProductionOrder{
			KitSKUID:              tmpl.KitSKUID,
			BOMTemplateID:         tmpl.ID,
			WarehouseID:           po.settings.DefaultWarehouseID,
			ProductionPlanID:      plan.ID,
			QuantityPlanned:       quantity,
			Status:                models.KitProductionPlanned,
			PlannedStartDate:      now,
			PlannedCompletionDate: now.Add(po.settings.ProductionLeadTime),
		}
		if err := store.KitProductionOrders.Insert(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to create kit production order: %w", err)
		}

		if err := plan.TransitionTo(models.PlanStatusInProduction); err != nil {
			return err
		}
		plan.ProductionOrderID = order.ID
		return store.ProductionPlans.Update(ctx, tx, plan)
	})
	if err != nil {
		return nil, err
	}

	util.ProductionStartedTotal.Inc()
	po.logger.Info("Production started",
		zap.Int64("plan_id", planID),
		zap.Int64("production_order_id", order.ID),
		zap.Int("quantity", order.QuantityPlanned))

	publishAll(ctx, po.publisher, po.logger,
		ordersRefresh("production"),
		dashboardRefresh("production"),
		notification(models.NotificationSuccess, "Production started",
			fmt.Sprintf("%s opened for plan %s", order.OrderNumber, plan.PlanNumber)))
	return order, nil
}

// RecheckSummary reports one recheck sweep
type RecheckSummary struct {
	Checked     int `json:"checked"`
	BecameReady int `json:"became_ready"`
	Skipped     int `json:"skipped"`
}

// RecheckAwaitingMaterialsPlans silently re-verifies every plan waiting for materials.
// Plans under verification elsewhere are skipped; other failures are returned combined.
func (po *ProductionOrchestrator) RecheckAwaitingMaterialsPlans(ctx context.Context) (*RecheckSummary, error) {
	ctx, span := util.StartSpan(ctx, "ProductionOrchestrator.RecheckAwaitingMaterialsPlans")
	defer span.End()

	var waiting []*models.ProductionPlan
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		waiting, err = store.ProductionPlans.Find(ctx, tx, func(p *models.ProductionPlan) bool {
			return p.Status == models.PlanStatusAwaitingMaterials
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list awaiting plans: %w", err)
	}

	summary := &RecheckSummary{}
	var errs error
	for _, plan := range waiting {
		result, err := po.VerifyInventoryForProduction(ctx, plan.ID, true)
		if errors.Is(err, models.ErrBusy) {
			summary.Skipped++
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("plan %d: %w", plan.ID, err))
			continue
		}
		summary.Checked++
		if result.Plan.Status == models.PlanStatusProductionReady {
			summary.BecameReady++
		}
	}

	po.logger.Info("Awaiting plans rechecked",
		zap.Int("checked", summary.Checked),
		zap.Int("became_ready", summary.BecameReady),
		zap.Int("skipped", summary.Skipped))
	return summary, errs
}

// HandleMaterialAvailable rechecks waiting plans after goods were received
func (po *ProductionOrchestrator) HandleMaterialAvailable(ctx context.Context, event *models.MaterialAvailableEvent) error {
	po.logger.Info("Material available",
		zap.Int64("sku_id", event.SKUID),
		zap.Int("quantity_added", event.QuantityAdded),
		zap.String("item_code", event.ItemCode))

	_, err := po.RecheckAwaitingMaterialsPlans(ctx)
	return err
}

// ListKitProductionOrders returns every kit production order
func (po *ProductionOrchestrator) ListKitProductionOrders(ctx context.Context) ([]*models.KitProductionOrder, error) {
	var orders []*models.KitProductionOrder
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		orders, err = store.KitProductionOrders.List(ctx, tx)
		return err
	})
	return orders, err
}

// CompleteKitProduction assembles quantity kits: component stock is debited and kit
// stock credited in one transaction. Components are drawn from every warehouse, as
// verification counts them, starting with the production warehouse. The order and
// its plan complete with the last unit.
func (po *ProductionOrchestrator) CompleteKitProduction(ctx context.Context, orderID int64, quantity int) (*models.KitProductionOrder, error) {
	ctx, span := util.StartSpan(ctx, "ProductionOrchestrator.CompleteKitProduction")
	defer span.End()

	if quantity <= 0 {
		return nil, &models.ValidationError{Field: "quantity", Message: "must be greater than 0"}
	}

	var (
		order   *models.KitProductionOrder
		changed []models.Event
	)
	err := po.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		order, err = store.KitProductionOrders.Get(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.KitProductionPlanned && order.Status != models.KitProductionInProgress {
			return &models.TransitionError{Entity: "kit_production_order", From: order.Status, To: models.KitProductionCompleted}
		}
		if remaining := order.QuantityPlanned - order.QuantityCompleted; quantity > remaining {
			return &models.ValidationError{Field: "quantity", Message: fmt.Sprintf("only %d kit(s) left to produce", remaining)}
		}

		tmpl, err := loadTemplate(ctx, tx, order.BOMTemplateID)
		if err != nil {
			return err
		}

		apply := func(change LevelChange) error {
			record, err := applyDelta(ctx, tx, change)
			if err != nil {
				return err
			}
			changed = append(changed, inventoryChanged(record, change))
			return nil
		}
		for _, c := range tmpl.Components {
			err := consumeComponent(ctx, tx, c.ComponentSKUID, order.WarehouseID, c.QuantityRequired*quantity, order.OrderNumber, apply)
			if err != nil {
				return err
			}
		}
		err = apply(LevelChange{
			SKUID:       order.KitSKUID,
			WarehouseID: order.WarehouseID,
			Delta:       quantity,
			Reason:      models.MovementReasonProductionOutput,
			RefID:       order.OrderNumber,
		})
		if err != nil {
			return err
		}

		order.QuantityCompleted += quantity
		order.Status = models.KitProductionInProgress
		if order.QuantityCompleted < order.QuantityPlanned {
			return store.KitProductionOrders.Update(ctx, tx, order)
		}

		now := tx.Now()
		order.Status = models.KitProductionCompleted
		order.ActualCompletionDate = &now
		if err := store.KitProductionOrders.Update(ctx, tx, order); err != nil {
			return err
		}
		if order.ProductionPlanID == 0 {
			return nil
		}
		plan, err := store.ProductionPlans.Get(ctx, tx, order.ProductionPlanID)
		if err != nil {
			return err
		}
		if err := plan.TransitionTo(models.PlanStatusCompleted); err != nil {
			return err
		}
		return store.ProductionPlans.Update(ctx, tx, plan)
	})
	if err != nil {
		return nil, err
	}

	po.logger.Info("Kit production recorded",
		zap.Int64("production_order_id", orderID),
		zap.Int("quantity", quantity),
		zap.String("status", order.Status))

	events := append(changed,
		inventoryRefresh("production"),
		ordersRefresh("production"))
	if order.Status == models.KitProductionCompleted {
		events = append(events, notification(models.NotificationSuccess, "Production completed",
			fmt.Sprintf("%s completed %d kit(s)", order.OrderNumber, order.QuantityCompleted)))
	}
	publishAll(ctx, po.publisher, po.logger, events...)
	return order, nil
}

// consumeComponent debits quantity units of a component, draining the production
// warehouse first and then the other warehouses in record order
func consumeComponent(ctx context.Context, tx *store.Tx, skuID, warehouseID int64, quantity int, ref string, apply func(LevelChange) error) error {
	records, err := store.Inventory.Find(ctx, tx, func(r *models.InventoryRecord) bool {
		return r.SKUID == skuID
	})
	if err != nil {
		return err
	}

	ordered := make([]*models.InventoryRecord, 0, len(records))
	for _, r := range records {
		if r.WarehouseID == warehouseID {
			ordered = append(ordered, r)
		}
	}
	for _, r := range records {
		if r.WarehouseID != warehouseID {
			ordered = append(ordered, r)
		}
	}

	remaining := quantity
	for _, r := range ordered {
		if remaining == 0 {
			break
		}
		take := r.QuantityAvailable
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		err := apply(LevelChange{
			SKUID:       skuID,
			WarehouseID: r.WarehouseID,
			Delta:       -take,
			Reason:      models.MovementReasonProductionConsume,
			RefID:       ref,
		})
		if err != nil {
			return err
		}
		remaining -= take
	}

	if remaining > 0 {
		return &models.ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("insufficient stock for sku %d: %d of %d unit(s) missing across all warehouses", skuID, remaining, quantity),
		}
	}
	return nil
}
