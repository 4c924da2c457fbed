package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recorder is a Publisher that keeps every event
type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(_ context.Context, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func eventsOf[E models.Event](r *recorder) []E {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []E
	for _, e := range r.events {
		if typed, ok := e.(E); ok {
			out = append(out, typed)
		}
	}
	return out
}

type testEnv struct {
	t            *testing.T
	ctx          context.Context
	store        *store.Store
	events       *recorder
	settings     Settings
	ledger       *InventoryLedger
	catalog      *CatalogService
	boms         *BOMService
	reorders     *ReorderService
	purchases    *PurchaseService
	suppliers    *SupplierService
	orchestrator *ProductionOrchestrator
	notifier     *VendorNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil, nil)
}

func newTestEnvWithPublisher(t *testing.T, publisher broker.Publisher) *testEnv {
	return newTestEnvWith(t, nil, publisher)
}

// newTestEnvWith wires every service to s and publisher. A nil store is a fresh
// memory store and a nil publisher is the env's recorder.
func newTestEnvWith(t *testing.T, s *store.Store, publisher broker.Publisher) *testEnv {
	t.Helper()
	events := &recorder{}
	if publisher == nil {
		publisher = events
	}
	if s == nil {
		s = store.NewMemory()
	}
	settings := DefaultSettings()

	return &testEnv{
		t:            t,
		ctx:          context.Background(),
		store:        s,
		events:       events,
		settings:     settings,
		ledger:       NewInventoryLedger(s, publisher),
		catalog:      NewCatalogService(s, publisher),
		boms:         NewBOMService(s),
		reorders:     NewReorderService(s, publisher, settings),
		purchases:    NewPurchaseService(s, publisher, settings),
		suppliers:    NewSupplierService(s, publisher, settings),
		orchestrator: NewProductionOrchestrator(s, publisher, NewMemoryLocker(), settings),
		notifier:     NewVendorNotifier(s, publisher),
	}
}

func (e *testEnv) sku(code, name, skuType, unitCost string) *models.SKU {
	e.t.Helper()
	sku, err := e.catalog.CreateSKU(e.ctx, CreateSKUInput{
		Code:     code,
		Name:     name,
		Type:     skuType,
		UnitCost: decimal.RequireFromString(unitCost),
	})
	require.NoError(e.t, err)
	return sku
}

func (e *testEnv) vendor(code, status string) *models.Vendor {
	e.t.Helper()
	v, err := e.catalog.CreateVendor(e.ctx, CreateVendorInput{Code: code, Name: code + " Supply", Status: status})
	require.NoError(e.t, err)
	return v
}

// stock adds quantity to the default warehouse
func (e *testEnv) stock(skuID int64, quantity int) {
	e.t.Helper()
	if quantity == 0 {
		return
	}
	_, err := e.ledger.UpdateInventoryLevel(e.ctx, LevelChange{
		SKUID:       skuID,
		WarehouseID: e.settings.DefaultWarehouseID,
		Delta:       quantity,
		Reason:      models.MovementReasonAdjustment,
	})
	require.NoError(e.t, err)
}

func (e *testEnv) record(skuID, warehouseID int64) *models.InventoryRecord {
	e.t.Helper()
	var rec *models.InventoryRecord
	require.NoError(e.t, e.store.RunInTx(e.ctx, func(tx *store.Tx) error {
		var err error
		rec, err = store.Inventory.FindOne(e.ctx, tx, func(r *models.InventoryRecord) bool {
			return r.SKUID == skuID && r.WarehouseID == warehouseID
		})
		return err
	}))
	require.NotNil(e.t, rec)
	return rec
}

func (e *testEnv) purchaseItems() []*models.PurchaseOrderItem {
	e.t.Helper()
	var items []*models.PurchaseOrderItem
	require.NoError(e.t, e.store.RunInTx(e.ctx, func(tx *store.Tx) error {
		var err error
		items, err = store.PurchaseOrderItems.List(e.ctx, tx)
		return err
	}))
	return items
}

func (e *testEnv) supplierOrders() []*models.SupplierOrder {
	e.t.Helper()
	orders, err := e.suppliers.ListSupplierOrders(e.ctx)
	require.NoError(e.t, err)
	return orders
}

type componentSpec struct {
	code      string
	name      string
	required  int
	available int
}

// maintenanceKit is the oil/air/spark kit used across the production tests
type maintenanceKit struct {
	kit        *models.SKU
	components []*models.SKU
	template   *models.BOMTemplateWithComponents
	salesOrder *models.SalesOrder
	plan       *models.ProductionPlan
}

func (e *testEnv) kitWithPlan(orderQuantity int, specs ...componentSpec) *maintenanceKit {
	e.t.Helper()
	k := &maintenanceKit{kit: e.sku("KIT-MAINT", "Maintenance Kit", models.SKUTypeKit, "0")}

	inputs := make([]ComponentInput, 0, len(specs))
	for _, spec := range specs {
		sku := e.sku(spec.code, spec.name, models.SKUTypeSingle, "10")
		e.stock(sku.ID, spec.available)
		k.components = append(k.components, sku)
		inputs = append(inputs, ComponentInput{ComponentSKUID: sku.ID, QuantityRequired: spec.required})
	}

	var err error
	k.template, err = e.boms.CreateBOMTemplate(e.ctx, CreateBOMInput{
		KitSKUID:   k.kit.ID,
		Version:    "1.0",
		Components: inputs,
	})
	require.NoError(e.t, err)

	k.salesOrder, err = e.catalog.CreateSalesOrder(e.ctx, CreateSalesOrderInput{
		OrderNumber:        "SO-1001",
		CustomerName:       "Fleet Garage",
		Quantity:           orderQuantity,
		ProductionRequired: true,
		BOMTemplateID:      k.template.ID,
	})
	require.NoError(e.t, err)

	plans, err := e.orchestrator.SyncProductionPlans(e.ctx)
	require.NoError(e.t, err)
	require.Len(e.t, plans, 1)
	k.plan = plans[0]
	return k
}

var shortKitComponents = []componentSpec{
	{code: "OF-100", name: "Oil Filter", required: 12, available: 50},
	{code: "AF-200", name: "Air Filter", required: 25, available: 5},
	{code: "SP-300", name: "Spark Plugs", required: 8, available: 0},
}

var stockedKitComponents = []componentSpec{
	{code: "OF-100", name: "Oil Filter", required: 12, available: 50},
	{code: "AF-200", name: "Air Filter", required: 25, available: 30},
	{code: "SP-300", name: "Spark Plugs", required: 8, available: 8},
}

// flakyBackend fails writes to one collection once armed
type flakyBackend struct {
	*store.MemoryBackend
	mu         sync.Mutex
	op         string
	collection string
	skip       int
	failures   int
}

// failNext fails the next n inserts into collection
func (b *flakyBackend) failNext(collection string, n int) {
	b.arm("insert", collection, 0, n)
}

// failUpdatesAfter lets skip updates of collection through and fails the n after them
func (b *flakyBackend) failUpdatesAfter(collection string, skip, n int) {
	b.arm("update", collection, skip, n)
}

func (b *flakyBackend) arm(op, collection string, skip, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.op = op
	b.collection = collection
	b.skip = skip
	b.failures = n
}

func (b *flakyBackend) shouldFail(op, collection string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if op != b.op || collection != b.collection || b.failures == 0 {
		return false
	}
	if b.skip > 0 {
		b.skip--
		return false
	}
	b.failures--
	return true
}

func (b *flakyBackend) RunInTx(ctx context.Context, fn func(store.Documents) error) error {
	return b.MemoryBackend.RunInTx(ctx, func(docs store.Documents) error {
		return fn(&flakyDocuments{Documents: docs, backend: b})
	})
}

type flakyDocuments struct {
	store.Documents
	backend *flakyBackend
}

func (d *flakyDocuments) Insert(ctx context.Context, collection string, doc store.Document) error {
	if d.backend.shouldFail("insert", collection) {
		return errors.New("disk quota exceeded")
	}
	return d.Documents.Insert(ctx, collection, doc)
}

func (d *flakyDocuments) Update(ctx context.Context, collection string, expectedVersion int, doc store.Document) error {
	if d.backend.shouldFail("update", collection) {
		return errors.New("disk quota exceeded")
	}
	return d.Documents.Update(ctx, collection, expectedVersion, doc)
}

func decimalOf(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
