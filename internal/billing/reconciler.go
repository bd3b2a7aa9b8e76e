package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hims-billing-backend/internal/model"
	"hims-billing-backend/internal/store"
)

var (
	// ErrInvalidAmount is returned for payments that are zero or negative.
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrMissingBillRef is returned when neither a bill nor a patient is given.
	ErrMissingBillRef = errors.New("missing bill reference")
	// ErrBillNotFound is returned when the referenced bill does not exist.
	ErrBillNotFound = errors.New("bill not found")
	// ErrNoOutstandingBill is returned when a patient has nothing to pay for.
	ErrNoOutstandingBill = errors.New("patient has no current bill")
	// ErrVirtualBill is returned when a virtual view is applied as if stored.
	ErrVirtualBill = errors.New("bill has not been stored")
)

// DefaultPaymentMethod is used when a payment carries no method.
const DefaultPaymentMethod = "Cash"

// Ref points at the bill a payment is for: a stored bill by id, or the
// current bill of a patient, which may still be virtual.
type Ref struct {
	BillID    string
	PatientID int64
}

func (r Ref) empty() bool {
	return strings.TrimSpace(r.BillID) == "" && r.PatientID <= 0
}

// Reconciler applies payments to bills and keeps stored bills in step with
// the aggregated view.
type Reconciler struct {
	agg      *Aggregator
	bills    BillStore
	notifier Notifier
	now      func() time.Time
}

// NewReconciler creates a new Reconciler. A nil notifier drops events.
func NewReconciler(agg *Aggregator, bills BillStore, notifier Notifier) *Reconciler {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Reconciler{
		agg:      agg,
		bills:    bills,
		notifier: notifier,
		now:      agg.now,
	}
}

// RecordPayment applies a payment to the referenced bill and returns the
// stored result. A virtual bill is materialized into a new stored bill.
// Nothing is written when validation or any read fails.
func (r *Reconciler) RecordPayment(ctx context.Context, ref Ref, amount decimal.Decimal, method string) (*model.Bill, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if ref.empty() {
		return nil, ErrMissingBillRef
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = DefaultPaymentMethod
	}
	payment := model.Payment{AmountPaid: amount, Method: method, PaidAt: r.now().UTC()}

	var target View
	if ref.BillID != "" {
		v, err := r.storedView(ctx, ref.BillID)
		if err != nil {
			return nil, err
		}
		target = *v
	} else {
		// re-read right before writing so a bill stored by an earlier payment
		// is used instead of materializing a second one
		v, err := r.agg.CurrentBillForPatient(ctx, ref.PatientID)
		if err != nil {
			return nil, err
		}
		if v == nil || (!v.IsVirtual() && !v.AmountDue.IsPositive()) {
			return nil, fmt.Errorf("patient %d: %w", ref.PatientID, ErrNoOutstandingBill)
		}
		target = *v
	}

	if target.IsVirtual() {
		bill, err := Materialize(target, payment)
		if err != nil {
			return nil, err
		}
		if err := r.bills.CreateBill(ctx, &bill); err != nil {
			return nil, fmt.Errorf("failed to store bill for patient %d: %w", bill.PatientID, err)
		}
		log.Printf("Materialized IPD bill %s for patient %d (total %s, due %s)", bill.ID, bill.PatientID, bill.TotalAmount, bill.AmountDue)
		r.notify(EventBillMaterialized, bill, amount)
		return &bill, nil
	}

	bill, err := ApplyPayment(target, payment)
	if err != nil {
		return nil, err
	}
	if err := r.bills.UpdateBill(ctx, &bill); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", bill.ID, ErrBillNotFound)
		}
		return nil, fmt.Errorf("failed to update bill %s: %w", bill.ID, err)
	}
	log.Printf("Recorded payment of %s on bill %s (due %s, %s)", amount, bill.ID, bill.AmountDue, bill.PaymentStatus)
	r.notify(EventPaymentRecorded, bill, amount)
	return &bill, nil
}

// storedView loads a stored bill. An IPD bill whose patient still holds a
// bed is refreshed with the current charges, so the payment is applied to the
// same figures staff are looking at.
func (r *Reconciler) storedView(ctx context.Context, billID string) (*View, error) {
	bill, err := r.bills.GetBill(ctx, billID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", billID, ErrBillNotFound)
		}
		return nil, err
	}
	if bill.Type != model.BillIPD {
		return &View{Kind: KindPersisted, Bill: bill}, nil
	}

	occs, err := r.agg.beds.ListOccupancies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read bed board: %w", err)
	}
	for _, occ := range occs {
		if !occ.IsOccupied() || *occ.PatientID != bill.PatientID {
			continue
		}
		// only the admission's current bill follows the ledger; bills of
		// earlier stays keep their own lines
		latest, err := r.agg.latestIPDBill(ctx, bill.PatientID)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.ID == bill.ID {
			return r.agg.viewForOccupancy(ctx, occ, &bill)
		}
		break
	}
	return &View{Kind: KindPersisted, Bill: bill}, nil
}

func (r *Reconciler) notify(t EventType, bill model.Bill, amount decimal.Decimal) {
	r.notifier.Notify(Event{
		Type:      t,
		BillID:    bill.ID,
		PatientID: bill.PatientID,
		BedID:     bill.BedID,
		Amount:    amount,
		AmountDue: bill.AmountDue,
		At:        r.now().UTC(),
	})
}

// Materialize builds a new, not yet stored bill from a snapshot of a virtual
// view with p as its only payment. The view's lines are copied so later
// charges never reach the new bill.
func Materialize(v View, p model.Payment) (model.Bill, error) {
	if !v.IsVirtual() {
		return model.Bill{}, fmt.Errorf("materialize %s bill %s: already stored", v.Type, v.ID)
	}
	if !p.AmountPaid.IsPositive() {
		return model.Bill{}, ErrInvalidAmount
	}

	lines := make([]model.BillLine, len(v.Lines))
	copy(lines, v.Lines)
	bill := model.Bill{
		PatientID:   v.PatientID,
		PatientName: v.PatientName,
		BedID:       v.BedID,
		Type:        v.Type,
		Lines:       lines,
		TotalAmount: v.TotalAmount,
		Payments:    []model.Payment{p},
	}
	bill.Recompute()
	return bill, nil
}

// ApplyPayment appends p to a stored bill and recomputes what is due. Existing
// payments are kept as they are.
func ApplyPayment(v View, p model.Payment) (model.Bill, error) {
	if v.IsVirtual() || v.ID == "" {
		return model.Bill{}, ErrVirtualBill
	}
	if !p.AmountPaid.IsPositive() {
		return model.Bill{}, ErrInvalidAmount
	}

	bill := v.Bill
	payments := make([]model.Payment, len(v.Payments), len(v.Payments)+1)
	copy(payments, v.Payments)
	bill.Payments = append(payments, p)
	bill.Recompute()
	return bill, nil
}
