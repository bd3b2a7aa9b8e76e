package billing

import (
	"context"

	"hims-billing-backend/internal/model"
	"hims-billing-backend/internal/store"
)

// Kind tells whether a bill view is backed by a stored record.
type Kind string

const (
	// KindPersisted views carry the identity of a stored bill.
	KindPersisted Kind = "persisted"
	// KindVirtual views are computed on read and have no identity.
	KindVirtual Kind = "virtual"
)

// View is the bill a patient currently sees: either a stored bill (possibly
// refreshed with the latest charges) or a virtual running bill.
type View struct {
	Kind Kind `json:"kind"`
	model.Bill
}

// IsVirtual reports whether the view has never been stored.
func (v View) IsVirtual() bool {
	return v.Kind == KindVirtual
}

// ChargeLedger is the read side of the per-patient charge records.
type ChargeLedger interface {
	ListCharges(ctx context.Context, patientID int64) ([]model.Charge, error)
}

// OccupancyTracker is the read side of the bed board.
type OccupancyTracker interface {
	ListOccupancies(ctx context.Context) ([]model.Occupancy, error)
}

// BillStore is the bill collaborator used by the aggregator and reconciler.
type BillStore interface {
	ListBills(ctx context.Context, filter store.BillFilter) ([]model.Bill, error)
	GetBill(ctx context.Context, id string) (model.Bill, error)
	CreateBill(ctx context.Context, b *model.Bill) error
	UpdateBill(ctx context.Context, b *model.Bill) error
}
