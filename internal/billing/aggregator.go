package billing

import (
	"context"
	"fmt"
	"time"

	"hims-billing-backend/internal/model"
	"hims-billing-backend/internal/store"
)

// Aggregator builds the current bill of every admitted patient from the
// charge ledger, the bed board and any stored IPD bill.
type Aggregator struct {
	ledger ChargeLedger
	beds   OccupancyTracker
	bills  BillStore
	loc    *time.Location
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the as-of instant used for room charges.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLocation sets the timezone used to read zone-less admission dates.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// NewAggregator creates a new Aggregator.
func NewAggregator(ledger ChargeLedger, beds OccupancyTracker, bills BillStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		ledger: ledger,
		beds:   beds,
		bills:  bills,
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CurrentBillForPatient returns the bill the patient should see now, or nil
// when there is none. Admitted patients get their IPD bill refreshed with the
// latest charges; everyone else gets their latest stored bill unchanged.
func (a *Aggregator) CurrentBillForPatient(ctx context.Context, patientID int64) (*View, error) {
	occs, err := a.beds.ListOccupancies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read bed board: %w", err)
	}

	for _, occ := range occs {
		if occ.IsOccupied() && *occ.PatientID == patientID {
			existing, err := a.latestIPDBill(ctx, patientID)
			if err != nil {
				return nil, err
			}
			return a.viewForOccupancy(ctx, occ, existing)
		}
	}

	bills, err := a.bills.ListBills(ctx, store.BillFilter{PatientID: patientID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bills for patient %d: %w", patientID, err)
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return &View{Kind: KindPersisted, Bill: bills[0]}, nil
}

// CurrentBills returns the bills of every patient: one view per occupied bed
// that has something to bill, followed by all other stored bills unchanged.
// On any read failure it returns an empty list together with the error.
func (a *Aggregator) CurrentBills(ctx context.Context) ([]View, error) {
	occs, err := a.beds.ListOccupancies(ctx)
	if err != nil {
		return []View{}, fmt.Errorf("failed to read bed board: %w", err)
	}
	stored, err := a.bills.ListBills(ctx, store.BillFilter{})
	if err != nil {
		return []View{}, fmt.Errorf("failed to list bills: %w", err)
	}

	// bills are newest first, so the first IPD bill seen is the latest
	latestIPD := make(map[int64]*model.Bill)
	for i := range stored {
		b := &stored[i]
		if b.Type != model.BillIPD {
			continue
		}
		if _, seen := latestIPD[b.PatientID]; !seen {
			latestIPD[b.PatientID] = b
		}
	}

	views := make([]View, 0, len(stored))
	refreshed := make(map[string]bool)
	billed := make(map[int64]bool)
	for _, occ := range occs {
		// one bill per patient; the first bed wins, as in CurrentBillForPatient
		if !occ.IsOccupied() || billed[*occ.PatientID] {
			continue
		}
		billed[*occ.PatientID] = true
		existing := latestIPD[*occ.PatientID]
		v, err := a.viewForOccupancy(ctx, occ, existing)
		if err != nil {
			return []View{}, err
		}
		if v == nil {
			continue
		}
		if existing != nil {
			refreshed[existing.ID] = true
		}
		views = append(views, *v)
	}

	for _, b := range stored {
		if refreshed[b.ID] {
			continue
		}
		views = append(views, View{Kind: KindPersisted, Bill: b})
	}
	return views, nil
}

func (a *Aggregator) latestIPDBill(ctx context.Context, patientID int64) (*model.Bill, error) {
	bills, err := a.bills.ListBills(ctx, store.BillFilter{PatientID: patientID, Type: model.BillIPD})
	if err != nil {
		return nil, fmt.Errorf("failed to list IPD bills for patient %d: %w", patientID, err)
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return &bills[0], nil
}

// viewForOccupancy computes the IPD bill of an occupied bed. existing is the
// patient's stored IPD bill, if any; it is refreshed in memory only.
func (a *Aggregator) viewForOccupancy(ctx context.Context, occ model.Occupancy, existing *model.Bill) (*View, error) {
	patientID := *occ.PatientID
	charges, err := a.ledger.ListCharges(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to read charges for patient %d: %w", patientID, err)
	}

	lines := make([]model.BillLine, 0, len(charges)+1)
	if room, ok := RoomChargeLine(occ, a.now(), a.loc); ok {
		lines = append(lines, room)
	}
	billable := 0
	for _, c := range charges {
		if c.Category != model.CategoryRoom {
			billable++
		}
		lines = append(lines, lineFromCharge(c))
	}
	total := (&model.Bill{Lines: lines}).LinesTotal()

	if existing != nil {
		b := *existing
		b.Lines = lines
		b.TotalAmount = total
		b.Recompute()
		return &View{Kind: KindPersisted, Bill: b}, nil
	}

	if billable == 0 {
		return nil, nil
	}
	return &View{
		Kind: KindVirtual,
		Bill: model.Bill{
			PatientID:     patientID,
			PatientName:   occ.PatientName,
			BedID:         occ.BedID,
			Type:          model.BillIPD,
			Lines:         lines,
			TotalAmount:   total,
			AmountDue:     total,
			PaymentStatus: model.PaymentPending,
			Payments:      []model.Payment{},
		},
	}, nil
}

func lineFromCharge(c model.Charge) model.BillLine {
	return model.BillLine{
		Name:       c.ItemName,
		Category:   c.Category,
		Quantity:   c.Quantity,
		UnitPrice:  c.UnitPrice,
		TotalPrice: c.TotalPrice,
	}
}
