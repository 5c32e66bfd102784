package migrations

import (
	"context"

	"github.com/cargotrail/schemarun/internal/registry"
	"github.com/cargotrail/schemarun/internal/schema"
)

// addSoftDelete introduces soft deletion across the whole schema in one
// transaction: either every table gains deleted_at or none does.
var addSoftDelete = registry.Definition{
	Name:        "add_soft_delete",
	Version:     "1",
	Description: "deleted_at columns across all logistics tables",
	DependsOn: []string{
		"create_suppliers",
		"create_warehouses",
		"create_shipments",
		"create_shipment_items",
	},
	Run: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.ApplyInTx(ctx,
			schema.AddColumn{Table: "suppliers", Column: schema.Column{Name: "deleted_at", Type: "TIMESTAMP"}},
			schema.AddColumn{Table: "warehouses", Column: schema.Column{Name: "deleted_at", Type: "TIMESTAMP"}},
			schema.AddColumn{Table: "shipments", Column: schema.Column{Name: "deleted_at", Type: "TIMESTAMP"}},
			schema.AddColumn{Table: "shipment_items", Column: schema.Column{Name: "deleted_at", Type: "TIMESTAMP"}},
			schema.CreateIndex{Name: "idx_shipments_deleted_at", Table: "shipments", Columns: []string{"deleted_at"}},
		)
	}),
	Rollback: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.ApplyInTx(ctx,
			schema.DropIndex{Name: "idx_shipments_deleted_at"},
			schema.DropColumn{Table: "shipment_items", Column: "deleted_at"},
			schema.DropColumn{Table: "shipments", Column: "deleted_at"},
			schema.DropColumn{Table: "warehouses", Column: "deleted_at"},
			schema.DropColumn{Table: "suppliers", Column: "deleted_at"},
		)
	}),
}
