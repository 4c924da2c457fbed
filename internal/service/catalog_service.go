package service

import (
	"context"
	"fmt"
	"strings"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/store"
	"reorder-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService maintains SKUs, vendors and the sales orders production planning reads
type CatalogService struct {
	store     *store.Store
	publisher broker.Publisher
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, publisher broker.Publisher) *CatalogService {
	return &CatalogService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateSKUInput describes a new SKU
type CreateSKUInput struct {
	Code      string          `json:"code" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Type      string          `json:"type" validate:"required,oneof=single kit"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	VendorID  int64           `json:"vendor_id,omitempty"`
}

// CreateSKU stores a SKU with a unique code
func (s *CatalogService) CreateSKU(ctx context.Context, input CreateSKUInput) (*models.SKU, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.UnitCost.IsNegative() || input.UnitPrice.IsNegative() {
		return nil, &models.ValidationError{Field: "unit_cost", Message: "prices must not be negative"}
	}

	sku := &models.SKU{
		Code:      strings.TrimSpace(input.Code),
		Name:      input.Name,
		Type:      input.Type,
		Status:    "active",
		UnitCost:  input.UnitCost,
		UnitPrice: input.UnitPrice,
		VendorID:  input.VendorID,
	}
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		dup, err := store.SKUs.FindOne(ctx, tx, func(x *models.SKU) bool {
			return strings.EqualFold(x.Code, sku.Code)
		})
		if err != nil {
			return err
		}
		if dup != nil {
			return &models.ValidationError{Field: "code", Message: fmt.Sprintf("sku code %s already exists", sku.Code)}
		}
		if sku.VendorID != 0 {
			if _, err := store.Vendors.Get(ctx, tx, sku.VendorID); err != nil {
				return err
			}
		}
		return store.SKUs.Insert(ctx, tx, sku)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("SKU created", zap.Int64("sku_id", sku.ID), zap.String("code", sku.Code))
	publishAll(ctx, s.publisher, s.logger, inventoryRefresh("catalog"))
	return sku, nil
}

// ListSKUs returns every SKU
func (s *CatalogService) ListSKUs(ctx context.Context) ([]*models.SKU, error) {
	var skus []*models.SKU
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		skus, err = store.SKUs.List(ctx, tx)
		return err
	})
	return skus, err
}

// CreateVendorInput describes a new vendor
type CreateVendorInput struct {
	Code   string `json:"code" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// CreateVendor stores a vendor, active unless stated otherwise
func (s *CatalogService) CreateVendor(ctx context.Context, input CreateVendorInput) (*models.Vendor, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	vendor := &models.Vendor{
		Code:   input.Code,
		Name:   input.Name,
		Email:  input.Email,
		Status: input.Status,
	}
	if vendor.Status == "" {
		vendor.Status = models.VendorStatusActive
	}

	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		return store.Vendors.Insert(ctx, tx, vendor)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Vendor created", zap.Int64("vendor_id", vendor.ID), zap.String("code", vendor.Code))
	return vendor, nil
}

// ListVendors returns every vendor
func (s *CatalogService) ListVendors(ctx context.Context) ([]*models.Vendor, error) {
	var vendors []*models.Vendor
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		vendors, err = store.Vendors.List(ctx, tx)
		return err
	})
	return vendors, err
}

// CreateSalesOrderInput describes a sales order handed over by the sales module
type CreateSalesOrderInput struct {
	OrderNumber        string `json:"order_number" validate:"required"`
	CustomerName       string `json:"customer_name"`
	Quantity           int    `json:"quantity" validate:"gt=0"`
	ProductionRequired bool   `json:"production_required"`
	BOMTemplateID      int64  `json:"bom_template_id,omitempty"`
}

// CreateSalesOrder stores a sales order; production orders must name a BOM template
func (s *CatalogService) CreateSalesOrder(ctx context.Context, input CreateSalesOrderInput) (*models.SalesOrder, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.ProductionRequired && input.BOMTemplateID == 0 {
		return nil, &models.ValidationError{Field: "bom_template_id", Message: "is required when production is required"}
	}

	order := &models.SalesOrder{
		OrderNumber:        input.OrderNumber,
		CustomerName:       input.CustomerName,
		Quantity:           input.Quantity,
		ProductionRequired: input.ProductionRequired,
		BOMTemplateID:      input.BOMTemplateID,
		Status:             "confirmed",
	}
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if order.BOMTemplateID != 0 {
			if _, err := store.BOMTemplates.Get(ctx, tx, order.BOMTemplateID); err != nil {
				return err
			}
		}
		return store.SalesOrders.Insert(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Sales order created", zap.Int64("sales_order_id", order.ID), zap.String("order_number", order.OrderNumber))
	publishAll(ctx, s.publisher, s.logger, ordersRefresh("sales_order"))
	return order, nil
}
