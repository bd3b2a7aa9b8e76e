package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a billing action that other systems may want to record.
type EventType string

const (
	EventBillMaterialized EventType = "bill_materialized"
	EventPaymentRecorded  EventType = "payment_recorded"
)

// Event describes a completed billing action.
type Event struct {
	Type      EventType
	BillID    string
	PatientID int64
	BedID     string
	Amount    decimal.Decimal
	AmountDue decimal.Decimal
	At        time.Time
}

// Notifier receives billing events after they are committed.
type Notifier interface {
	Notify(ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
