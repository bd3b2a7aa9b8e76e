package billing

import (
	"context"
	"fmt"

	"hims-billing-backend/internal/model"
	"hims-billing-backend/internal/store"
)

// fakeStore is an in-memory stand-in for the charge, bed and bill stores.
type fakeStore struct {
	occs    []model.Occupancy
	charges map[int64][]model.Charge
	bills   []model.Bill // insertion order

	chargesErr error
	bedsErr    error
	billsErr   error
	writeErr   error

	creates int
	updates int
	nextPay int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{charges: make(map[int64][]model.Charge)}
}

func (f *fakeStore) ListCharges(ctx context.Context, patientID int64) ([]model.Charge, error) {
	if f.chargesErr != nil {
		return nil, f.chargesErr
	}
	return append([]model.Charge(nil), f.charges[patientID]...), nil
}

func (f *fakeStore) ListOccupancies(ctx context.Context) ([]model.Occupancy, error) {
	if f.bedsErr != nil {
		return nil, f.bedsErr
	}
	return append([]model.Occupancy(nil), f.occs...), nil
}

func (f *fakeStore) ListBills(ctx context.Context, filter store.BillFilter) ([]model.Bill, error) {
	if f.billsErr != nil {
		return nil, f.billsErr
	}
	var out []model.Bill
	for i := len(f.bills) - 1; i >= 0; i-- {
		b := f.bills[i]
		if filter.PatientID != 0 && b.PatientID != filter.PatientID {
			continue
		}
		if filter.Type != "" && b.Type != filter.Type {
			continue
		}
		out = append(out, cloneBill(b))
	}
	return out, nil
}

func (f *fakeStore) GetBill(ctx context.Context, id string) (model.Bill, error) {
	if f.billsErr != nil {
		return model.Bill{}, f.billsErr
	}
	for _, b := range f.bills {
		if b.ID == id {
			return cloneBill(b), nil
		}
	}
	return model.Bill{}, fmt.Errorf("bill %s: %w", id, store.ErrNotFound)
}

func (f *fakeStore) CreateBill(ctx context.Context, b *model.Bill) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.creates++
	b.ID = fmt.Sprintf("bill-%d", len(f.bills)+1)
	f.stampPayments(b)
	f.bills = append(f.bills, cloneBill(*b))
	return nil
}

func (f *fakeStore) UpdateBill(ctx context.Context, b *model.Bill) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.bills {
		if f.bills[i].ID == b.ID {
			f.updates++
			f.stampPayments(b)
			f.bills[i] = cloneBill(*b)
			return nil
		}
	}
	return fmt.Errorf("bill %s: %w", b.ID, store.ErrNotFound)
}

func (f *fakeStore) stampPayments(b *model.Bill) {
	for i := range b.Payments {
		if b.Payments[i].ID == 0 {
			f.nextPay++
			b.Payments[i].ID = f.nextPay
			b.Payments[i].BillID = b.ID
		}
	}
}

func (f *fakeStore) addCharge(c model.Charge) {
	c.ID = int64(len(f.charges[c.PatientID]) + 1)
	f.charges[c.PatientID] = append(f.charges[c.PatientID], c)
}

func cloneBill(b model.Bill) model.Bill {
	b.Lines = append([]model.BillLine(nil), b.Lines...)
	b.Payments = append([]model.Payment(nil), b.Payments...)
	return b
}

// recordingNotifier keeps every event it receives.
type recordingNotifier struct {
	events []Event
}

func (r *recordingNotifier) Notify(ev Event) {
	r.events = append(r.events, ev)
}
