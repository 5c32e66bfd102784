package migrations

import (
	"context"

	"github.com/cargotrail/schemarun/internal/registry"
	"github.com/cargotrail/schemarun/internal/schema"
)

// normalizeShipmentStatus rewrites legacy status labels ("IN TRANSIT",
// "Delivered") into lowercase snake_case. Both updates filter to rows not
// already in the desired form, so re-invocation touches nothing.
var normalizeShipmentStatus = registry.Definition{
	Name:        "normalize_shipment_status",
	Version:     "1",
	Description: "lowercase snake_case shipment status labels",
	DependsOn:   []string{"create_shipments"},
	Run: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		err := db.Exec(ctx,
			`UPDATE shipments SET status = lower(status) WHERE status <> lower(status)`)
		if err != nil {
			return err
		}
		return db.Exec(ctx,
			`UPDATE shipments SET status = replace(status, ' ', '_') WHERE status LIKE '% %'`)
	}),
}

var indexShipmentStatus = registry.Definition{
	Name:        "index_shipment_status",
	Version:     "1",
	Description: "index shipments by normalized status",
	DependsOn:   []string{"normalize_shipment_status"},
	Run: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.CreateIndex{
			Name:    "idx_shipments_status",
			Table:   "shipments",
			Columns: []string{"status"},
		})
	}),
	Rollback: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx, schema.DropIndex{Name: "idx_shipments_status"})
	}),
}
