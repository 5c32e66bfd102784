package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/cargotrail/schemarun/internal/registry"
	"github.com/cargotrail/schemarun/internal/schema"
)

var addShipmentTracking = registry.Definition{
	Name:        "add_shipment_tracking",
	Version:     "1",
	Description: "carrier and tracking columns on shipments",
	DependsOn:   []string{"create_shipments"},
	Run: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx,
			schema.AddColumn{Table: "shipments", Column: schema.Column{Name: "carrier_code", Type: "TEXT"}},
			schema.AddColumn{Table: "shipments", Column: schema.Column{Name: "tracking_number", Type: "TEXT"}},
			schema.AddColumn{Table: "shipments", Column: schema.Column{Name: "eta", Type: "TIMESTAMP"}},
		)
	}),
	Rollback: registry.OperationFunc(func(ctx context.Context, db *schema.DB) error {
		return db.Apply(ctx,
			schema.DropColumn{Table: "shipments", Column: "eta"},
			schema.DropColumn{Table: "shipments", Column: "tracking_number"},
			schema.DropColumn{Table: "shipments", Column: "carrier_code"},
		)
	}),
}

// backfillShipmentCarrier copies the carrier code out of the legacy JSON meta
// payload into the dedicated column. Rows already carrying a carrier_code are
// filtered out, so re-invocation is a no-op on rows already fixed.
var backfillShipmentCarrier = registry.Definition{
	Name:        "backfill_shipment_carrier",
	Version:     "1",
	Description: "populate shipments.carrier_code from the JSON meta payload",
	DependsOn:   []string{"add_shipment_tracking"},
	Run:         registry.OperationFunc(backfillCarrierCodes),
}

func backfillCarrierCodes(ctx context.Context, db *schema.DB) error {
	rows, err := db.Query(ctx, `SELECT id, meta FROM shipments
		WHERE meta IS NOT NULL AND meta <> ''
		AND (carrier_code IS NULL OR carrier_code = '')`)
	if err != nil {
		return fmt.Errorf("failed to list shipments pending carrier backfill: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type fix struct {
		id   string
		code string
	}
	var fixes []fix
	for rows.Next() {
		var id string
		var meta sql.NullString
		if err := rows.Scan(&id, &meta); err != nil {
			return fmt.Errorf("failed to scan shipment row: %w", err)
		}
		if !meta.Valid {
			continue
		}
		code := gjson.Get(meta.String, "carrier.code").String()
		if code == "" {
			// Older payloads stored the code at the top level.
			code = gjson.Get(meta.String, "carrier_code").String()
		}
		if code != "" {
			fixes = append(fixes, fix{id: id, code: code})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read shipment rows: %w", err)
	}

	for _, f := range fixes {
		err := db.Exec(ctx, `UPDATE shipments SET carrier_code = ?
			WHERE id = ? AND (carrier_code IS NULL OR carrier_code = '')`, f.code, f.id)
		if err != nil {
			return fmt.Errorf("failed to backfill carrier for shipment %s: %w", f.id, err)
		}
	}
	return nil
}
