package model

import "time"

// PushSubscription is a billing desk browser subscribed to events on beds.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Beds []*Occupancy `gorm:"many2many:subscription_bed_mapping;"`
}
