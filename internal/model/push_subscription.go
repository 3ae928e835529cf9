package model

import "time"

// PushSubscription holds a browser push subscription waiting for one ticket to be called.
type PushSubscription struct {
	Endpoint     string    `gorm:"primaryKey"`
	P256DH       string    `gorm:"column:p256dh;not null"`
	Auth         string    `gorm:"not null"`
	TicketNumber int64     `gorm:"index;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}
