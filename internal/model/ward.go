package model

import "time"

// Ward groups beds under a nursing unit (e.g. ICU, GW).
type Ward struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Beds []Occupancy `gorm:"foreignKey:WardID" json:"-"`
}
