package migrations

import (
	"context"

	"github.com/cargotrail/schemarun/internal/registry"
	"github.com/cargotrail/schemarun/internal/schema"
)

var createSuppliers = registry.Definition{
	Name:        "create_suppliers",
	Version:     "1",
	Description: "suppliers master table",
	Run: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.CreateTable{
			Name: "suppliers",
			Columns: []schema.Column{
				{Name: "id", Type: "TEXT", Constraints: "PRIMARY KEY"},
				{Name: "code", Type: "TEXT", Constraints: "NOT NULL UNIQUE"},
				{Name: "name", Type: "TEXT", Constraints: "NOT NULL"},
				{Name: "contact_email", Type: "TEXT"},
				{Name: "created_at", Type: "TIMESTAMP", Constraints: "NOT NULL DEFAULT CURRENT_TIMESTAMP"},
			},
		})
	}),
	Rollback: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.DropTable{Name: "suppliers"})
	}),
}

var createWarehouses = registry.Definition{
	Name:        "create_warehouses",
	Version:     "1",
	Description: "warehouses master table",
	Run: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.CreateTable{
			Name: "warehouses",
			Columns: []schema.Column{
				{Name: "id", Type: "TEXT", Constraints: "PRIMARY KEY"},
				{Name: "code", Type: "TEXT", Constraints: "NOT NULL UNIQUE"},
				{Name: "name", Type: "TEXT", Constraints: "NOT NULL"},
				{Name: "region", Type: "TEXT"},
				{Name: "capacity", Type: "INTEGER", Constraints: "NOT NULL DEFAULT 0"},
				{Name: "created_at", Type: "TIMESTAMP", Constraints: "NOT NULL DEFAULT CURRENT_TIMESTAMP"},
			},
		})
	}),
	Rollback: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.DropTable{Name: "warehouses"})
	}),
}

var createShipments = registry.Definition{
	Name:        "create_shipments",
	Version:     "1",
	Description: "shipments with supplier and warehouse references",
	DependsOn:   []string{"create_suppliers", "create_warehouses"},
	Run: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.CreateTable{
			Name: "shipments",
			Columns: []schema.Column{
				{Name: "id", Type: "TEXT", Constraints: "PRIMARY KEY"},
				{Name: "reference", Type: "TEXT", Constraints: "NOT NULL UNIQUE"},
				{Name: "supplier_id", Type: "TEXT", Constraints: "NOT NULL"},
				{Name: "warehouse_id", Type: "TEXT", Constraints: "NOT NULL"},
				{Name: "status", Type: "TEXT", Constraints: "NOT NULL DEFAULT 'created'"},
				{Name: "meta", Type: "TEXT"},
				{Name: "created_at", Type: "TIMESTAMP", Constraints: "NOT NULL DEFAULT CURRENT_TIMESTAMP"},
			},
			ForeignKeys: []schema.ForeignKey{
				{Name: "fk_shipments_supplier", Column: "supplier_id", RefTable: "suppliers", RefColumn: "id"},
				{Name: "fk_shipments_warehouse", Column: "warehouse_id", RefTable: "warehouses", RefColumn: "id"},
			},
		})
	}),
	Rollback: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.DropTable{Name: "shipments"})
	}),
}

var createShipmentItems = registry.Definition{
	Name:        "create_shipment_items",
	Version:     "1",
	Description: "line items per shipment",
	DependsOn:   []string{"create_shipments"},
	Run: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.CreateTable{
			Name: "shipment_items",
			Columns: []schema.Column{
				{Name: "id", Type: "TEXT", Constraints: "PRIMARY KEY"},
				{Name: "shipment_id", Type: "TEXT", Constraints: "NOT NULL"},
				{Name: "sku", Type: "TEXT", Constraints: "NOT NULL"},
				{Name: "quantity", Type: "INTEGER", Constraints: "NOT NULL DEFAULT 1"},
				{Name: "weight_kg", Type: "REAL"},
			},
			ForeignKeys: []schema.ForeignKey{
				{Name: "fk_shipment_items_shipment", Column: "shipment_id", RefTable: "shipments", RefColumn: "id", OnDelete: "CASCADE"},
			},
		})
	}),
	Rollback: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.DropTable{Name: "shipment_items"})
	}),
}
