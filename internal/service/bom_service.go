package service

import (
	"context"
	"fmt"

	"reorder-service/internal/models"
	"reorder-service/internal/store"
	"reorder-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BOMService registers kit bills of materials
type BOMService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewBOMService creates a new BOM service
func NewBOMService(store *store.Store) *BOMService {
	return &BOMService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ComponentInput is one component line of a new template
type ComponentInput struct {
	ComponentSKUID   int64 `json:"component_sku_id" validate:"required"`
	QuantityRequired int   `json:"quantity_required" validate:"gt=0"`
	// UnitCost defaults to the component SKU's unit cost
	UnitCost   *decimal.Decimal `json:"unit_cost,omitempty"`
	IsCritical bool             `json:"is_critical"`
}

// CreateBOMInput describes a new template version
type CreateBOMInput struct {
	KitSKUID     int64            `json:"kit_sku_id" validate:"required"`
	Version      string           `json:"version" validate:"required"`
	Name         string           `json:"name"`
	LaborCost    decimal.Decimal  `json:"labor_cost"`
	OverheadCost decimal.Decimal  `json:"overhead_cost"`
	Components   []ComponentInput `json:"components" validate:"dive"`
}

// CreateBOMTemplate validates and stores a template with its components.
// Templates are never updated; a change is a new version.
func (s *BOMService) CreateBOMTemplate(ctx context.Context, input CreateBOMInput) (*models.BOMTemplateWithComponents, error) {
	ctx, span := util.StartSpan(ctx, "BOMService.CreateBOMTemplate")
	defer span.End()

	if err := validateInput(input); err != nil {
		return nil, err
	}
	if len(input.Components) == 0 {
		return nil, &models.ValidationError{Field: "components", Message: "kit SKU requires at least one component"}
	}
	if input.LaborCost.IsNegative() || input.OverheadCost.IsNegative() {
		return nil, &models.ValidationError{Field: "labor_cost", Message: "costs must not be negative"}
	}

	var out *models.BOMTemplateWithComponents
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		kit, err := store.SKUs.Get(ctx, tx, input.KitSKUID)
		if err != nil {
			return err
		}
		if kit.Type != models.SKUTypeKit {
			return &models.ValidationError{Field: "kit_sku_id", Message: fmt.Sprintf("sku %s is not a kit", kit.Code)}
		}

		existing, err := store.BOMTemplates.FindOne(ctx, tx, func(t *models.BOMTemplate) bool {
			return t.KitSKUID == input.KitSKUID && t.Version == input.Version
		})
		if err != nil {
			return err
		}
		if existing != nil {
			return &models.ValidationError{
				Field:   "version",
				Message: fmt.Sprintf("version %s already exists for kit %s", input.Version, kit.Code),
			}
		}

		components := make([]models.BOMComponent, 0, len(input.Components))
		seen := make(map[int64]bool, len(input.Components))
		materials := decimal.Zero
		for _, c := range input.Components {
			if c.ComponentSKUID == kit.ID {
				return &models.ValidationError{Field: "component_sku_id", Message: "a kit cannot contain itself"}
			}
			if seen[c.ComponentSKUID] {
				return &models.ValidationError{Field: "component_sku_id", Message: fmt.Sprintf("component %d listed twice", c.ComponentSKUID)}
			}
			seen[c.ComponentSKUID] = true

			sku, err := store.SKUs.Get(ctx, tx, c.ComponentSKUID)
			if err != nil {
				return err
			}
			unitCost := sku.UnitCost
			if c.UnitCost != nil {
				if c.UnitCost.IsNegative() {
					return &models.ValidationError{Field: "unit_cost", Message: "must not be negative"}
				}
				unitCost = *c.UnitCost
			}
			line := unitCost.Mul(decimal.NewFromInt(int64(c.QuantityRequired)))
			materials = materials.Add(line)
			components = append(components, models.BOMComponent{
				ComponentSKUID:   c.ComponentSKUID,
				QuantityRequired: c.QuantityRequired,
				UnitCost:         unitCost,
				LineCost:         line,
				IsCritical:       c.IsCritical,
			})
		}

		name := input.Name
		if name == "" {
			name = fmt.Sprintf("%s v%s", kit.Name, input.Version)
		}
		tmpl := &models.BOMTemplate{
			KitSKUID:     kit.ID,
			Version:      input.Version,
			Name:         name,
			LaborCost:    input.LaborCost,
			OverheadCost: input.OverheadCost,
			TotalCost:    materials.Add(input.LaborCost).Add(input.OverheadCost),
		}
		if err := store.BOMTemplates.Insert(ctx, tx, tmpl); err != nil {
			return fmt.Errorf("failed to create bom template: %w", err)
		}
		for i := range components {
			components[i].BOMTemplateID = tmpl.ID
			if err := store.BOMComponents.Insert(ctx, tx, &components[i]); err != nil {
				return fmt.Errorf("failed to create bom component: %w", err)
			}
		}

		out = &models.BOMTemplateWithComponents{BOMTemplate: *tmpl, Components: components}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("BOM template created",
		zap.Int64("template_id", out.ID),
		zap.Int64("kit_sku_id", out.KitSKUID),
		zap.String("version", out.Version),
		zap.String("total_cost", out.TotalCost.StringFixed(2)))
	return out, nil
}

// GetBOMTemplateWithComponents joins a template with its components
func (s *BOMService) GetBOMTemplateWithComponents(ctx context.Context, id int64) (*models.BOMTemplateWithComponents, error) {
	var out *models.BOMTemplateWithComponents
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = loadTemplate(ctx, tx, id)
		return err
	})
	return out, err
}

// ListBOMTemplates returns every template without components
func (s *BOMService) ListBOMTemplates(ctx context.Context) ([]*models.BOMTemplate, error) {
	var templates []*models.BOMTemplate
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		templates, err = store.BOMTemplates.List(ctx, tx)
		return err
	})
	return templates, err
}

func loadTemplate(ctx context.Context, tx *store.Tx, id int64) (*models.BOMTemplateWithComponents, error) {
	tmpl, err := store.BOMTemplates.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	found, err := store.BOMComponents.Find(ctx, tx, func(c *models.BOMComponent) bool {
		return c.BOMTemplateID == id
	})
	if err != nil {
		return nil, err
	}
	components := make([]models.BOMComponent, len(found))
	for i, c := range found {
		components[i] = *c
	}
	return &models.BOMTemplateWithComponents{BOMTemplate: *tmpl, Components: components}, nil
}
