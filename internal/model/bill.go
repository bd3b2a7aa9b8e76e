package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillType identifies the department a bill was raised for.
type BillType string

const (
	BillOPD      BillType = "OPD"
	BillIPD      BillType = "IPD"
	BillPharmacy BillType = "Pharmacy"
)

// Valid reports whether t is a known bill type.
func (t BillType) Valid() bool {
	return t == BillOPD || t == BillIPD || t == BillPharmacy
}

// PaymentStatus is derived from the amount due; it is never set directly.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "Pending"
	PaymentPartiallyPaid PaymentStatus = "Partially Paid"
	PaymentPaid          PaymentStatus = "Paid"
)

// Bill is the unit of invoicing. A Bill with an empty ID has never been
// stored.
type Bill struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id,omitempty"`
	PatientID     int64           `gorm:"not null;index:idx_bills_patient_type,priority:1" json:"patient_id"`
	PatientName   string          `gorm:"size:256" json:"patient_name"`
	BedID         string          `gorm:"size:64" json:"bed_id,omitempty"`
	Type          BillType        `gorm:"column:bill_type;size:16;not null;index:idx_bills_patient_type,priority:2" json:"bill_type"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	AmountDue     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_due"`
	PaymentStatus PaymentStatus   `gorm:"size:20;not null" json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at,omitempty"`

	// Associations
	Lines    []BillLine `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE" json:"lines"`
	Payments []Payment  `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE" json:"payments"`
}

// BillLine is one row on a bill.
type BillLine struct {
	ID         int64           `gorm:"primaryKey" json:"-"`
	BillID     string          `gorm:"size:36;not null;index" json:"-"`
	Position   int             `gorm:"not null" json:"-"`
	Name       string          `gorm:"size:256;not null" json:"name"`
	Category   ChargeCategory  `gorm:"size:32;not null" json:"category"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_price"`
}

// Payment is an append-only record of money received against a bill.
type Payment struct {
	ID         int64           `gorm:"primaryKey" json:"id"`
	BillID     string          `gorm:"size:36;not null;index" json:"-"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_paid"`
	Method     string          `gorm:"size:32;not null" json:"method"`
	PaidAt     time.Time       `gorm:"not null" json:"paid_at"`
}

// LinesTotal sums the line totals.
func (b *Bill) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Lines {
		total = total.Add(l.TotalPrice)
	}
	return total
}

// AmountPaid sums all recorded payments.
func (b *Bill) AmountPaid() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range b.Payments {
		paid = paid.Add(p.AmountPaid)
	}
	return paid
}

// Recompute derives AmountDue and PaymentStatus from TotalAmount and
// Payments: due = total - paid, Paid once due <= 0.
func (b *Bill) Recompute() {
	b.AmountDue = b.TotalAmount.Sub(b.AmountPaid())
	switch {
	case !b.AmountDue.IsPositive():
		b.PaymentStatus = PaymentPaid
	case b.AmountDue.LessThan(b.TotalAmount):
		b.PaymentStatus = PaymentPartiallyPaid
	default:
		b.PaymentStatus = PaymentPending
	}
}
