package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MedicalRecordEntry is an audit line appended to a patient's record after a
// billing action.
type MedicalRecordEntry struct {
	ID        int64           `gorm:"primaryKey"`
	PatientID int64           `gorm:"not null;index"`
	BedID     string          `gorm:"size:64"`
	BillID    string          `gorm:"size:36;index"`
	Kind      string          `gorm:"size:64;not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Note      string          `gorm:"size:512"`
	CreatedAt time.Time       `gorm:"not null"`
}
