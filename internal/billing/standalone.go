package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"hims-billing-backend/internal/model"
)

// ErrInvalidBill is returned for standalone bills that cannot be created.
var ErrInvalidBill = errors.New("invalid bill")

// OpenBill stores an OPD or Pharmacy bill in one step, optionally with a
// first payment. IPD bills only come from materializing a running bill.
// Line totals are derived from quantity and unit price.
func (r *Reconciler) OpenBill(ctx context.Context, draft model.Bill, initial decimal.Decimal, method string) (*model.Bill, error) {
	switch {
	case draft.Type == model.BillIPD:
		return nil, fmt.Errorf("%w: IPD bills are built from admissions", ErrInvalidBill)
	case !draft.Type.Valid():
		return nil, fmt.Errorf("%w: unknown bill type %q", ErrInvalidBill, draft.Type)
	case draft.PatientID <= 0:
		return nil, fmt.Errorf("%w: patient id is required", ErrInvalidBill)
	case len(draft.Lines) == 0:
		return nil, fmt.Errorf("%w: at least one line is required", ErrInvalidBill)
	case initial.IsNegative():
		return nil, ErrInvalidAmount
	}

	bill := model.Bill{
		PatientID:   draft.PatientID,
		PatientName: draft.PatientName,
		Type:        draft.Type,
		Lines:       make([]model.BillLine, 0, len(draft.Lines)),
	}
	for i, l := range draft.Lines {
		if strings.TrimSpace(l.Name) == "" || !l.Category.Valid() || l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %d is incomplete", ErrInvalidBill, i+1)
		}
		l.TotalPrice = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		bill.Lines = append(bill.Lines, l)
	}
	bill.TotalAmount = bill.LinesTotal()

	if initial.IsPositive() {
		method = strings.TrimSpace(method)
		if method == "" {
			method = DefaultPaymentMethod
		}
		bill.Payments = []model.Payment{{AmountPaid: initial, Method: method, PaidAt: r.now().UTC()}}
	}
	bill.Recompute()

	if err := r.bills.CreateBill(ctx, &bill); err != nil {
		return nil, fmt.Errorf("failed to store %s bill for patient %d: %w", bill.Type, bill.PatientID, err)
	}
	log.Printf("Opened %s bill %s for patient %d (total %s, due %s)", bill.Type, bill.ID, bill.PatientID, bill.TotalAmount, bill.AmountDue)
	if initial.IsPositive() {
		r.notify(EventPaymentRecorded, bill, initial)
	}
	return &bill, nil
}
