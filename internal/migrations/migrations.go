// Package migrations is the compiled-in schema registry for the cargotrail
// logistics database: suppliers, warehouses, shipments, and shipment items,
// plus the data backfills that evolved them.
package migrations

import (
	"github.com/cargotrail/schemarun/internal/registry"
)

// Default returns the full registry in declaration order. Definitions are
// static; the engine decides what is pending against the history ledger.
func Default() *registry.Registry {
	r := registry.New()
	r.MustAdd(
		createSuppliers,
		createWarehouses,
		createShipments,
		createShipmentItems,
		addShipmentTracking,
		backfillShipmentCarrier,
		normalizeShipmentStatus,
		indexShipmentStatus,
		addSoftDelete,
	)
	return r
}
