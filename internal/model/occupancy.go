package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BedStatus is the lifecycle state of a bed.
type BedStatus string

const (
	BedAvailable        BedStatus = "Available"
	BedOccupied         BedStatus = "Occupied"
	BedCleaning         BedStatus = "Cleaning"
	BedUnderMaintenance BedStatus = "Under Maintenance"
	BedReserved         BedStatus = "Reserved"
)

// Valid reports whether s is one of the known bed states.
func (s BedStatus) Valid() bool {
	switch s {
	case BedAvailable, BedOccupied, BedCleaning, BedUnderMaintenance, BedReserved:
		return true
	}
	return false
}

// Occupancy is the current binding of a bed (hot table). The bed code is the
// primary key, so a bed can hold at most one Occupied binding.
type Occupancy struct {
	BedID       string    `gorm:"primaryKey;size:64" json:"bed_id"`
	WardID      *int64    `gorm:"index" json:"ward_id"`
	Ward        string    `gorm:"size:128" json:"ward"`
	Room        int       `json:"room"`
	BedNumber   string    `gorm:"size:16" json:"bed_number"`
	Status      BedStatus `gorm:"size:32;not null;index" json:"status"`
	PatientID   *int64    `gorm:"index" json:"patient_id"`
	PatientName string    `gorm:"size:256" json:"patient_name"`
	// AdmissionDate is kept as recorded upstream; it is parsed when billed.
	AdmissionDate string          `gorm:"size:40" json:"admission_date"`
	DailyRate     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"daily_rate"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsOccupied reports whether the bed is currently bound to a patient.
func (o Occupancy) IsOccupied() bool {
	return o.Status == BedOccupied && o.PatientID != nil
}

// BedStayHistory is the archived record of a finished stay (cold table).
type BedStayHistory struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BedID         string          `gorm:"size:64;not null;index" json:"bed_id"`
	PatientID     int64           `gorm:"not null;index" json:"patient_id"`
	PatientName   string          `gorm:"size:256" json:"patient_name"`
	AdmissionDate string          `gorm:"size:40" json:"admission_date"`
	DailyRate     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"daily_rate"`
	EndStatus     BedStatus       `gorm:"size:32;not null" json:"end_status"`
	EndedAt       time.Time       `gorm:"not null;index" json:"ended_at"`
}
