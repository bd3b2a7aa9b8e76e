package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hims-billing-backend/internal/model"
)

func newTestReconciler(f *fakeStore) (*Reconciler, *Aggregator, *recordingNotifier) {
	agg := newTestAggregator(f)
	n := &recordingNotifier{}
	return NewReconciler(agg, f, n), agg, n
}

// admittedWithMedication sets up a patient whose virtual bill is
// [Room: 500, Medication: 200].
func admittedWithMedication() *fakeStore {
	f := newFakeStore()
	f.occs = []model.Occupancy{occupied("ICU-1-01", 7, "2026-10-16 08:00", 500)}
	f.addCharge(charge(7, "Ceftriaxone 1g", model.CategoryMedication, 2, 100))
	return f
}

func TestRecordPayment_MaterializesVirtualBill(t *testing.T) {
	f := admittedWithMedication()
	rec, agg, n := newTestReconciler(f)

	bill, err := rec.RecordPayment(context.Background(), Ref{PatientID: 7}, dec(300), "Cash")
	require.NoError(t, err)

	assert.NotEmpty(t, bill.ID)
	assert.Equal(t, model.BillIPD, bill.Type)
	assert.True(t, dec(700).Equal(bill.TotalAmount))
	assert.True(t, dec(400).Equal(bill.AmountDue))
	assert.Equal(t, model.PaymentPartiallyPaid, bill.PaymentStatus)
	require.Len(t, bill.Payments, 1)
	assert.True(t, dec(300).Equal(bill.Payments[0].AmountPaid))
	assert.Equal(t, "Cash", bill.Payments[0].Method)
	require.Len(t, bill.Lines, 2)
	assert.Equal(t, 1, f.creates)

	require.Len(t, n.events, 1)
	assert.Equal(t, EventBillMaterialized, n.events[0].Type)
	assert.Equal(t, bill.ID, n.events[0].BillID)
	assert.Equal(t, "ICU-1-01", n.events[0].BedID)

	// from now on only the stored bill is served, even as charges accrue
	f.addCharge(charge(7, "Blood test", model.CategoryService, 1, 250))
	v, err := agg.CurrentBillForPatient(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, v.IsVirtual())
	assert.Equal(t, bill.ID, v.ID)
	assert.True(t, dec(950).Equal(v.TotalAmount))
	assert.True(t, dec(650).Equal(v.AmountDue))

	views, err := agg.CurrentBills(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, bill.ID, views[0].ID)

	// the stored snapshot did not move
	stored, err := f.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	assert.True(t, dec(700).Equal(stored.TotalAmount))
}

func TestRecordPayment_SecondPaymentByPatientUsesStoredBill(t *testing.T) {
	f := admittedWithMedication()
	rec, _, _ := newTestReconciler(f)

	first, err := rec.RecordPayment(context.Background(), Ref{PatientID: 7}, dec(300), "Cash")
	require.NoError(t, err)
	second, err := rec.RecordPayment(context.Background(), Ref{PatientID: 7}, dec(400), "Card")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.creates)
	assert.Equal(t, 1, f.updates)
	assert.Len(t, second.Payments, 2)
	assert.True(t, second.AmountDue.IsZero())
	assert.Equal(t, model.PaymentPaid, second.PaymentStatus)
}

func TestRecordPayment_SettlesStoredBill(t *testing.T) {
	f := newFakeStore()
	f.bills = []model.Bill{{
		ID:          "opd-1",
		PatientID:   5,
		Type:        model.BillOPD,
		Lines:       []model.BillLine{{Name: "Consultation", Category: model.CategoryService, Quantity: 1, UnitPrice: dec(1000), TotalPrice: dec(1000)}},
		TotalAmount: dec(1000),
		Payments: []model.Payment{
			{ID: 1, BillID: "opd-1", AmountPaid: dec(250), Method: "Cash"},
			{ID: 2, BillID: "opd-1", AmountPaid: dec(350), Method: "Card"},
		},
	}}
	f.nextPay = 2
	rec, _, n := newTestReconciler(f)

	bill, err := rec.RecordPayment(context.Background(), Ref{BillID: "opd-1"}, dec(400), "UPI")
	require.NoError(t, err)

	assert.Equal(t, "opd-1", bill.ID)
	assert.True(t, bill.AmountDue.IsZero())
	assert.Equal(t, model.PaymentPaid, bill.PaymentStatus)
	require.Len(t, bill.Payments, 3)
	assert.True(t, dec(250).Equal(bill.Payments[0].AmountPaid))
	assert.True(t, dec(350).Equal(bill.Payments[1].AmountPaid))
	assert.True(t, dec(400).Equal(bill.Payments[2].AmountPaid))
	assert.Equal(t, 0, f.creates)
	assert.Equal(t, 1, f.updates)

	require.Len(t, n.events, 1)
	assert.Equal(t, EventPaymentRecorded, n.events[0].Type)
	assert.True(t, n.events[0].AmountDue.IsZero())
}

func TestRecordPayment_StoredIPDBillPicksUpNewCharges(t *testing.T) {
	f := admittedWithMedication()
	rec, _, _ := newTestReconciler(f)

	first, err := rec.RecordPayment(context.Background(), Ref{PatientID: 7}, dec(300), "Cash")
	require.NoError(t, err)
	f.addCharge(charge(7, "Blood test", model.CategoryService, 1, 250))

	bill, err := rec.RecordPayment(context.Background(), Ref{BillID: first.ID}, dec(100), "Cash")
	require.NoError(t, err)

	assert.Len(t, bill.Lines, 3)
	assert.True(t, dec(950).Equal(bill.TotalAmount))
	assert.True(t, dec(550).Equal(bill.AmountDue))
	assert.Equal(t, model.PaymentPartiallyPaid, bill.PaymentStatus)
}

func TestRecordPayment_RejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []decimal.Decimal{dec(0), dec(-50)} {
		t.Run(amount.String(), func(t *testing.T) {
			f := admittedWithMedication()
			f.bills = []model.Bill{{ID: "opd-1", PatientID: 5, Type: model.BillOPD, TotalAmount: dec(100)}}
			rec, _, n := newTestReconciler(f)

			_, err := rec.RecordPayment(context.Background(), Ref{PatientID: 7}, amount, "cash")
			assert.ErrorIs(t, err, ErrInvalidAmount)
			_, err = rec.RecordPayment(context.Background(), Ref{BillID: "opd-1"}, amount, "cash")
			assert.ErrorIs(t, err, ErrInvalidAmount)

			assert.Equal(t, 0, f.creates)
			assert.Equal(t, 0, f.updates)
			assert.Empty(t, f.bills[0].Payments)
			assert.Empty(t, n.events)
		})
	}
}

func TestRecordPayment_Errors(t *testing.T) {
	boom := errors.New("store unreachable")

	testCases := []struct {
		name    string
		setup   func(f *fakeStore)
		ref     Ref
		wantErr error
	}{
		{name: "missing reference", ref: Ref{}, wantErr: ErrMissingBillRef},
		{name: "blank bill id", ref: Ref{BillID: "  "}, wantErr: ErrMissingBillRef},
		{name: "unknown bill", ref: Ref{BillID: "nope"}, wantErr: ErrBillNotFound},
		{name: "patient without bill", ref: Ref{PatientID: 42}, wantErr: ErrNoOutstandingBill},
		{
			name:    "charge ledger down",
			setup:   func(f *fakeStore) { f.chargesErr = boom },
			ref:     Ref{PatientID: 7},
			wantErr: boom,
		},
		{
			name:    "write fails",
			setup:   func(f *fakeStore) { f.writeErr = boom },
			ref:     Ref{PatientID: 7},
			wantErr: boom,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := admittedWithMedication()
			if tc.setup != nil {
				tc.setup(f)
			}
			rec, _, n := newTestReconciler(f)

			bill, err := rec.RecordPayment(context.Background(), tc.ref, dec(100), "Cash")
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, bill)
			assert.Empty(t, f.bills)
			assert.Empty(t, n.events)
		})
	}
}

func TestRecordPayment_DefaultsMethod(t *testing.T) {
	f := admittedWithMedication()
	rec, _, _ := newTestReconciler(f)

	bill, err := rec.RecordPayment(context.Background(), Ref{PatientID: 7}, dec(10), " ")
	require.NoError(t, err)
	assert.Equal(t, DefaultPaymentMethod, bill.Payments[0].Method)
}

func TestMaterialize(t *testing.T) {
	v := View{Kind: KindVirtual, Bill: model.Bill{
		PatientID: 7,
		Type:      model.BillIPD,
		Lines: []model.BillLine{
			{Name: "Room", Category: model.CategoryRoom, Quantity: 1, UnitPrice: dec(500), TotalPrice: dec(500)},
			{Name: "Medication", Category: model.CategoryMedication, Quantity: 1, UnitPrice: dec(200), TotalPrice: dec(200)},
		},
		TotalAmount: dec(700),
		AmountDue:   dec(700),
	}}

	bill, err := Materialize(v, model.Payment{AmountPaid: dec(700), Method: "Cash"})
	require.NoError(t, err)
	assert.Empty(t, bill.ID)
	assert.True(t, bill.AmountDue.IsZero())
	assert.Equal(t, model.PaymentPaid, bill.PaymentStatus)

	// the snapshot owns its lines
	v.Lines[0].Name = "changed"
	assert.Equal(t, "Room", bill.Lines[0].Name)

	_, err = Materialize(View{Kind: KindPersisted, Bill: model.Bill{ID: "x"}}, model.Payment{AmountPaid: dec(1)})
	assert.Error(t, err)
}

func TestApplyPayment_KeepsHistory(t *testing.T) {
	original := []model.Payment{{ID: 1, AmountPaid: dec(100)}}
	v := View{Kind: KindPersisted, Bill: model.Bill{ID: "b", TotalAmount: dec(300), Payments: original}}

	bill, err := ApplyPayment(v, model.Payment{AmountPaid: dec(50)})
	require.NoError(t, err)

	assert.Len(t, original, 1)
	require.Len(t, bill.Payments, 2)
	assert.True(t, dec(100).Equal(bill.Payments[0].AmountPaid))
	assert.True(t, dec(150).Equal(bill.AmountDue))
	assert.True(t, bill.TotalAmount.Sub(bill.AmountPaid()).Equal(bill.AmountDue))

	_, err = ApplyPayment(View{Kind: KindVirtual}, model.Payment{AmountPaid: dec(1)})
	assert.ErrorIs(t, err, ErrVirtualBill)
}

func TestRecordPayment_EarlierStayBillKeepsItsLines(t *testing.T) {
	f := admittedWithMedication()
	f.bills = []model.Bill{
		{
			ID: "ipd-old", PatientID: 7, Type: model.BillIPD,
			Lines:       []model.BillLine{{Name: "Room", Category: model.CategoryRoom, Quantity: 1, UnitPrice: dec(100), TotalPrice: dec(100)}},
			TotalAmount: dec(100),
			Payments:    []model.Payment{{ID: 1, BillID: "ipd-old", AmountPaid: dec(100)}},
		},
		{
			ID: "ipd-new", PatientID: 7, Type: model.BillIPD,
			Lines:       []model.BillLine{{Name: "Room", Category: model.CategoryRoom, Quantity: 1, UnitPrice: dec(200), TotalPrice: dec(200)}},
			TotalAmount: dec(200),
			Payments:    []model.Payment{{ID: 2, BillID: "ipd-new", AmountPaid: dec(50)}},
		},
	}
	f.bills[0].Recompute()
	f.bills[1].Recompute()
	f.nextPay = 2
	rec, agg, _ := newTestReconciler(f)

	bill, err := rec.RecordPayment(context.Background(), Ref{BillID: "ipd-old"}, dec(10), "Cash")
	require.NoError(t, err)

	require.Len(t, bill.Lines, 1)
	assert.True(t, dec(100).Equal(bill.TotalAmount))
	assert.True(t, dec(-10).Equal(bill.AmountDue))
	assert.Equal(t, model.PaymentPaid, bill.PaymentStatus)

	// the current admission is still billed once, on the latest bill
	v, err := agg.CurrentBillForPatient(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "ipd-new", v.ID)
	assert.True(t, dec(700).Equal(v.TotalAmount))

	stored, err := f.GetBill(context.Background(), "ipd-old")
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)
	assert.True(t, dec(100).Equal(stored.TotalAmount))
}

func TestRecordPayment_PatientRefNeedsSomethingDue(t *testing.T) {
	consult := []model.BillLine{{Name: "Consultation", Category: model.CategoryService, Quantity: 1, UnitPrice: dec(500), TotalPrice: dec(500)}}

	testCases := []struct {
		name    string
		paid    int64
		wantErr error
	}{
		{name: "settled bill", paid: 500, wantErr: ErrNoOutstandingBill},
		{name: "balance left", paid: 200},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeStore()
			f.bills = []model.Bill{{
				ID: "opd-1", PatientID: 5, Type: model.BillOPD, Lines: consult, TotalAmount: dec(500),
				Payments: []model.Payment{{ID: 1, BillID: "opd-1", AmountPaid: dec(tc.paid)}},
			}}
			f.bills[0].Recompute()
			f.nextPay = 1
			rec, _, _ := newTestReconciler(f)

			bill, err := rec.RecordPayment(context.Background(), Ref{PatientID: 5}, dec(100), "Cash")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Zero(t, f.updates)
				assert.Len(t, f.bills[0].Payments, 1)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "opd-1", bill.ID)
			assert.True(t, dec(200).Equal(bill.AmountDue))
		})
	}
}
