package model

import "time"

// PushSubscription holds the browser push subscription of a server (waiter),
// used to tell them an order is ready for pickup.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	ServerID  string    `gorm:"index;size:64;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
