package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cargotrail/schemarun/internal/dialect"
	"github.com/cargotrail/schemarun/internal/engine"
	"github.com/cargotrail/schemarun/internal/history"
	"github.com/cargotrail/schemarun/internal/schema"
)

func newLedger(t *testing.T) *history.Store {
	t.Helper()
	var st history.Store
	err := st.Connect(history.Config{
		Driver:       dialect.DriverSqlite,
		DriverConfig: &dialect.SqliteConfig{Path: filepath.Join(t.TempDir(), "cargotrail.db")},
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return &st
}

func TestDefaultRegistryResolves(t *testing.T) {
	reg := Default()
	order, err := reg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(order) != reg.Len() {
		t.Fatalf("order has %d items, registry has %d", len(order), reg.Len())
	}
}

func TestDefaultRegistryAppliesCleanly(t *testing.T) {
	st := newLedger(t)
	ctx := context.Background()

	report, err := engine.New(Default(), st).RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if !report.OK() {
		for _, it := range report.Items {
			t.Logf("%s@%s %s %s %s", it.Name, it.Version, it.Status, it.Error, it.SkipReason)
		}
		t.Fatal("registry did not apply cleanly")
	}

	db := schema.New(st.DB(), st.Driver())
	probes := []struct {
		kind schema.ObjectKind
		name string
	}{
		{schema.ObjectTable, "suppliers"},
		{schema.ObjectTable, "warehouses"},
		{schema.ObjectTable, "shipments"},
		{schema.ObjectTable, "shipment_items"},
		{schema.ObjectColumn, "shipments.carrier_code"},
		{schema.ObjectColumn, "shipments.tracking_number"},
		{schema.ObjectColumn, "shipments.eta"},
		{schema.ObjectColumn, "suppliers.deleted_at"},
		{schema.ObjectColumn, "warehouses.deleted_at"},
		{schema.ObjectColumn, "shipments.deleted_at"},
		{schema.ObjectColumn, "shipment_items.deleted_at"},
		{schema.ObjectIndex, "idx_shipments_status"},
		{schema.ObjectIndex, "idx_shipments_deleted_at"},
		{schema.ObjectConstraint, "shipments.fk_shipments_supplier"},
		{schema.ObjectConstraint, "shipment_items.fk_shipment_items_shipment"},
	}
	for _, p := range probes {
		ok, err := db.Exists(ctx, p.kind, p.name)
		if err != nil {
			t.Fatalf("Exists(%s %s): %v", p.kind, p.name, err)
		}
		if !ok {
			t.Errorf("%s %s missing after migration run", p.kind, p.name)
		}
	}

	// Second run applies nothing new.
	second, err := engine.New(Default(), st).RunAll(ctx)
	if err != nil {
		t.Fatalf("second RunAll: %v", err)
	}
	if second.Applied() != 0 {
		t.Fatalf("second run applied %d migrations, want 0", second.Applied())
	}
}

func TestCarrierBackfillReadsMetaJSON(t *testing.T) {
	st := newLedger(t)
	ctx := context.Background()
	db := schema.New(st.DB(), st.Driver())

	// Apply only the structural prerequisites, then seed legacy rows.
	reg := Default()
	eng := engine.New(reg, st)
	if _, err := eng.RunAll(ctx); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	seed := func(id, meta, carrier string) {
		t.Helper()
		err := db.Exec(ctx, `INSERT INTO suppliers (id, code, name) VALUES (?, ?, ?)
			ON CONFLICT (id) DO NOTHING`, "sup1", "SUP1", "Acme Freight")
		if err != nil {
			t.Fatalf("seed supplier: %v", err)
		}
		err = db.Exec(ctx, `INSERT INTO warehouses (id, code, name) VALUES (?, ?, ?)
			ON CONFLICT (id) DO NOTHING`, "wh1", "WH1", "Rotterdam")
		if err != nil {
			t.Fatalf("seed warehouse: %v", err)
		}
		err = db.Exec(ctx, `INSERT INTO shipments (id, reference, supplier_id, warehouse_id, meta, carrier_code)
			VALUES (?, ?, ?, ?, ?, ?)`, id, "REF-"+id, "sup1", "wh1", meta, carrier)
		if err != nil {
			t.Fatalf("seed shipment %s: %v", id, err)
		}
	}

	seed("sh1", `{"carrier":{"code":"DHL","name":"DHL Express"}}`, "")
	seed("sh2", `{"carrier_code":"MSK"}`, "")
	seed("sh3", `{"carrier":{"code":"UPS"}}`, "FEDEX") // already fixed, must not be touched
	seed("sh4", `{"notes":"no carrier here"}`, "")

	if err := backfillCarrierCodes(ctx, db); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	want := map[string]string{"sh1": "DHL", "sh2": "MSK", "sh3": "FEDEX", "sh4": ""}
	for id, code := range want {
		var got string
		err := db.QueryRow(ctx, `SELECT coalesce(carrier_code, '') FROM shipments WHERE id = ?`, id).Scan(&got)
		if err != nil {
			t.Fatalf("select %s: %v", id, err)
		}
		if got != code {
			t.Errorf("shipment %s carrier_code = %q, want %q", id, got, code)
		}
	}

	// Re-invocation is a no-op on rows already fixed.
	if err := backfillCarrierCodes(ctx, db); err != nil {
		t.Fatalf("second backfill: %v", err)
	}
}

func TestStatusNormalization(t *testing.T) {
	st := newLedger(t)
	ctx := context.Background()
	db := schema.New(st.DB(), st.Driver())

	if _, err := engine.New(Default(), st).RunAll(ctx); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	mustExec := func(q string, args ...interface{}) {
		t.Helper()
		if err := db.Exec(ctx, q, args...); err != nil {
			t.Fatalf("exec: %v", err)
		}
	}
	mustExec(`INSERT INTO suppliers (id, code, name) VALUES ('s', 'S', 'x')`)
	mustExec(`INSERT INTO warehouses (id, code, name) VALUES ('w', 'W', 'x')`)
	mustExec(`INSERT INTO shipments (id, reference, supplier_id, warehouse_id, status)
		VALUES ('sh', 'R1', 's', 'w', 'IN TRANSIT')`)

	def, ok := Default().Get("normalize_shipment_status")
	if !ok {
		t.Fatal("normalize_shipment_status not registered")
	}
	if err := def.Run.Execute(ctx, db); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	var status string
	if err := db.QueryRow(ctx, `SELECT status FROM shipments WHERE id = 'sh'`).Scan(&status); err != nil {
		t.Fatalf("select: %v", err)
	}
	if status != "in_transit" {
		t.Fatalf("status = %q, want in_transit", status)
	}
}
