package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeCategory classifies a billable item.
type ChargeCategory string

const (
	CategoryRoom       ChargeCategory = "Room"
	CategoryMedication ChargeCategory = "Medication"
	CategorySupply     ChargeCategory = "Supply"
	CategoryEquipment  ChargeCategory = "Equipment"
	CategoryService    ChargeCategory = "Service"
)

// Valid reports whether c is a known category.
func (c ChargeCategory) Valid() bool {
	switch c {
	case CategoryRoom, CategoryMedication, CategorySupply, CategoryEquipment, CategoryService:
		return true
	}
	return false
}

// Charge is one itemized billable event recorded during an admission.
// Charges are insert-only.
type Charge struct {
	ID         int64           `gorm:"primaryKey" json:"id"`
	PatientID  int64           `gorm:"not null;index" json:"patient_id"`
	BedID      string          `gorm:"size:64;index" json:"bed_id"`
	ItemName   string          `gorm:"size:256;not null" json:"item_name"`
	Category   ChargeCategory  `gorm:"size:32;not null" json:"category"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_price"`
	RecordedAt time.Time       `gorm:"not null;index" json:"recorded_at"`
}
