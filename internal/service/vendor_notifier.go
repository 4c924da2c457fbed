package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/store"
	"reorder-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxAlternativeVendors = 3

var (
	highPriorityValue   = decimal.NewFromInt(1000)
	mediumPriorityValue = decimal.NewFromInt(500)
)

// VendorNotifier surfaces supplier orders paused for a vendor decision
type VendorNotifier struct {
	store     *store.Store
	publisher broker.Publisher
	logger    *zap.Logger
}

// NewVendorNotifier creates a new vendor assignment notifier
func NewVendorNotifier(store *store.Store, publisher broker.Publisher) *VendorNotifier {
	return &VendorNotifier{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// VendorAlert asks for a vendor to be assigned to a paused supplier order
type VendorAlert struct {
	SupplierOrderID    int64           `json:"supplier_order_id"`
	OrderNumber        string          `json:"order_number"`
	SKUID              int64           `json:"sku_id"`
	SKUCode            string          `json:"sku_code"`
	SKUName            string          `json:"sku_name"`
	Quantity           int             `json:"quantity"`
	EstimatedValue     decimal.Decimal `json:"estimated_value"`
	Priority           string          `json:"priority"`
	PauseReason        string          `json:"pause_reason"`
	PausedAt           *time.Time      `json:"paused_at,omitempty"`
	CurrentVendorID    int64           `json:"current_vendor_id,omitempty"`
	AlternativeVendors []models.Vendor `json:"alternative_vendors"`
}

// needsVendor reports whether a pause reason is about vendor ambiguity
func needsVendor(order *models.SupplierOrder) bool {
	return order.WorkflowStatus == models.WorkflowStatusPaused &&
		order.Status != models.SupplierStatusCancelled &&
		strings.Contains(strings.ToLower(order.PauseReason), "vendor")
}

func valuePriority(value decimal.Decimal) string {
	switch {
	case value.GreaterThan(highPriorityValue):
		return models.PriorityHigh
	case value.GreaterThan(mediumPriorityValue):
		return models.PriorityMedium
	}
	return models.PriorityLow
}

var priorityRank = map[string]int{
	models.PriorityHigh:   0,
	models.PriorityMedium: 1,
	models.PriorityLow:    2,
}

// GetVendorAssignmentNotifications lists the alerts, highest priority and value first
func (n *VendorNotifier) GetVendorAssignmentNotifications(ctx context.Context) ([]VendorAlert, error) {
	ctx, span := util.StartSpan(ctx, "VendorNotifier.GetVendorAssignmentNotifications")
	defer span.End()

	alerts := []VendorAlert{}
	err := n.store.RunInTx(ctx, func(tx *store.Tx) error {
		paused, err := store.SupplierOrders.Find(ctx, tx, needsVendor)
		if err != nil {
			return err
		}
		if len(paused) == 0 {
			return nil
		}
		vendors, err := store.Vendors.Find(ctx, tx, func(v *models.Vendor) bool {
			return v.Status == models.VendorStatusActive
		})
		if err != nil {
			return err
		}

		for _, order := range paused {
			sku, err := store.SKUs.Get(ctx, tx, order.SKUID)
			if err != nil {
				return err
			}
			value := order.UnitCost.Mul(decimal.NewFromInt(int64(order.QuantityOrdered)))

			alternatives := make([]models.Vendor, 0, maxAlternativeVendors)
			for _, v := range vendors {
				if len(alternatives) == maxAlternativeVendors {
					break
				}
				if v.ID != sku.VendorID {
					alternatives = append(alternatives, *v)
				}
			}

			alerts = append(alerts, VendorAlert{
				SupplierOrderID:    order.ID,
				OrderNumber:        order.OrderNumber,
				SKUID:              sku.ID,
				SKUCode:            sku.Code,
				SKUName:            sku.Name,
				Quantity:           order.QuantityOrdered,
				EstimatedValue:     value,
				Priority:           valuePriority(value),
				PauseReason:        order.PauseReason,
				PausedAt:           order.PausedAt,
				CurrentVendorID:    sku.VendorID,
				AlternativeVendors: alternatives,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build vendor notifications: %w", err)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := priorityRank[alerts[i].Priority], priorityRank[alerts[j].Priority]
		if ri != rj {
			return ri < rj
		}
		return alerts[i].EstimatedValue.GreaterThan(alerts[j].EstimatedValue)
	})

	util.VendorAlertsPending.Set(float64(len(alerts)))
	return alerts, nil
}

// AssignVendorToOrder binds the vendor to the order's SKU and resumes the order
func (n *VendorNotifier) AssignVendorToOrder(ctx context.Context, orderID, vendorID int64) (*models.SupplierOrder, error) {
	ctx, span := util.StartSpan(ctx, "VendorNotifier.AssignVendorToOrder")
	defer span.End()

	var (
		order  *models.SupplierOrder
		vendor *models.Vendor
	)
	err := n.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		vendor, err = store.Vendors.Get(ctx, tx, vendorID)
		if err != nil {
			return err
		}
		if vendor.Status != models.VendorStatusActive {
			return &models.ValidationError{Field: "vendor_id", Message: fmt.Sprintf("vendor %s is not active", vendor.Code)}
		}

		order, err = store.SupplierOrders.Get(ctx, tx, orderID)
		if err != nil {
			return err
		}
		sku, err := store.SKUs.Get(ctx, tx, order.SKUID)
		if err != nil {
			return err
		}
		sku.VendorID = vendor.ID
		if err := store.SKUs.Update(ctx, tx, sku); err != nil {
			return err
		}

		order.SupplierID = vendor.ID
		if err := resumeWorkflow(order, "vendor assigned"); err != nil {
			return err
		}
		return store.SupplierOrders.Update(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	n.logger.Info("Vendor assigned",
		zap.Int64("supplier_order_id", orderID),
		zap.Int64("vendor_id", vendorID))

	publishAll(ctx, n.publisher, n.logger,
		ordersRefresh("vendor_assignment"),
		notification(models.NotificationSuccess, "Vendor assigned",
			fmt.Sprintf("%s assigned to %s; workflow resumed", vendor.Name, order.OrderNumber)))
	return order, nil
}
