package model

import "time"

// PushSubscription holds a browser push endpoint registered for out-of-service alerts.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Owner     string    `gorm:"size:256;index"`
	CreatedAt time.Time `gorm:"not null"`
}
