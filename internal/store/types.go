package store

import (
	"errors"

	"github.com/shopspring/decimal"

	"hims-billing-backend/internal/model"
)

var (
	// ErrNotFound is returned when a bill or bed does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCharge is returned for charges that cannot be recorded.
	ErrInvalidCharge = errors.New("invalid charge")
	// ErrInvalidTransition is returned for bed updates that break the
	// one-patient-per-bed rule.
	ErrInvalidTransition = errors.New("invalid bed transition")
)

// BedFeedItem is a single bed record from the upstream bed board.
type BedFeedItem struct {
	BedCode       string           `json:"bedCode"`
	Ward          string           `json:"ward"`
	Status        string           `json:"status"`
	PatientID     *int64           `json:"patientId"`
	PatientName   string           `json:"patientName"`
	AdmissionDate *string          `json:"admissionDate"`
	DailyRate     *decimal.Decimal `json:"dailyRate"`
}

// OccupancyPatch is a partial update of a bed. Nil fields are left as is.
type OccupancyPatch struct {
	Status        *model.BedStatus
	PatientID     *int64
	PatientName   *string
	AdmissionDate *string
	DailyRate     *decimal.Decimal
}

// BillFilter narrows ListBills. Zero values match everything.
type BillFilter struct {
	PatientID int64
	Type      model.BillType
}
