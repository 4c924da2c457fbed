package service

import (
	"testing"

	"reorder-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBOMTemplateComputesCosts(t *testing.T) {
	e := newTestEnv(t)
	kit := e.sku("KIT-1", "Brake Service Kit", models.SKUTypeKit, "0")
	pads := e.sku("BP-10", "Brake Pads", models.SKUTypeSingle, "12.50")
	fluid := e.sku("BF-4", "Brake Fluid", models.SKUTypeSingle, "6.20")
	override := decimal.RequireFromString("5.00")

	tmpl, err := e.boms.CreateBOMTemplate(e.ctx, CreateBOMInput{
		KitSKUID:     kit.ID,
		Version:      "2024.1",
		LaborCost:    decimal.RequireFromString("15"),
		OverheadCost: decimal.RequireFromString("2.30"),
		Components: []ComponentInput{
			{ComponentSKUID: pads.ID, QuantityRequired: 2, IsCritical: true},
			{ComponentSKUID: fluid.ID, QuantityRequired: 3, UnitCost: &override},
		},
	})
	require.NoError(t, err)

	// 2*12.50 + 3*5.00 + 15 + 2.30
	assert.Equal(t, "57.30", tmpl.TotalCost.StringFixed(2))
	require.Len(t, tmpl.Components, 2)
	assert.Equal(t, "25.00", tmpl.Components[0].LineCost.StringFixed(2))
	assert.Equal(t, "15.00", tmpl.Components[1].LineCost.StringFixed(2))
	assert.Equal(t, "Brake Service Kit v2024.1", tmpl.Name)

	loaded, err := e.boms.GetBOMTemplateWithComponents(e.ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tmpl.TotalCost.String(), loaded.TotalCost.String())
	require.Len(t, loaded.Components, 2)
	assert.True(t, loaded.Components[0].IsCritical)
	assert.Equal(t, tmpl.ID, loaded.Components[1].BOMTemplateID)
}

func TestCreateBOMTemplateValidation(t *testing.T) {
	e := newTestEnv(t)
	kit := e.sku("KIT-1", "Brake Service Kit", models.SKUTypeKit, "0")
	pads := e.sku("BP-10", "Brake Pads", models.SKUTypeSingle, "12.50")

	tests := []struct {
		name  string
		input CreateBOMInput
		err   error
	}{
		{
			name:  "kit without components",
			input: CreateBOMInput{KitSKUID: kit.ID, Version: "1"},
			err:   models.ErrValidation,
		},
		{
			name: "non-kit sku",
			input: CreateBOMInput{KitSKUID: pads.ID, Version: "1", Components: []ComponentInput{
				{ComponentSKUID: kit.ID, QuantityRequired: 1},
			}},
			err: models.ErrValidation,
		},
		{
			name: "zero quantity",
			input: CreateBOMInput{KitSKUID: kit.ID, Version: "1", Components: []ComponentInput{
				{ComponentSKUID: pads.ID, QuantityRequired: 0},
			}},
			err: models.ErrValidation,
		},
		{
			name: "missing component sku",
			input: CreateBOMInput{KitSKUID: kit.ID, Version: "1", Components: []ComponentInput{
				{ComponentSKUID: 404, QuantityRequired: 1},
			}},
			err: models.ErrNotFound,
		},
		{
			name: "duplicate component",
			input: CreateBOMInput{KitSKUID: kit.ID, Version: "1", Components: []ComponentInput{
				{ComponentSKUID: pads.ID, QuantityRequired: 1},
				{ComponentSKUID: pads.ID, QuantityRequired: 2},
			}},
			err: models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.boms.CreateBOMTemplate(e.ctx, tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	templates, err := e.boms.ListBOMTemplates(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestBOMVersionsAreImmutable(t *testing.T) {
	e := newTestEnv(t)
	kit := e.sku("KIT-1", "Brake Service Kit", models.SKUTypeKit, "0")
	pads := e.sku("BP-10", "Brake Pads", models.SKUTypeSingle, "12.50")
	input := CreateBOMInput{KitSKUID: kit.ID, Version: "1", Components: []ComponentInput{
		{ComponentSKUID: pads.ID, QuantityRequired: 2},
	}}

	_, err := e.boms.CreateBOMTemplate(e.ctx, input)
	require.NoError(t, err)

	_, err = e.boms.CreateBOMTemplate(e.ctx, input)
	assert.ErrorIs(t, err, models.ErrValidation)

	input.Version = "2"
	input.Components[0].QuantityRequired = 4
	v2, err := e.boms.CreateBOMTemplate(e.ctx, input)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.ID)

	templates, err := e.boms.ListBOMTemplates(e.ctx)
	require.NoError(t, err)
	assert.Len(t, templates, 2)
}
