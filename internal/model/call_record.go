package model

import "time"

// CallSource says how a number became current.
type CallSource string

const (
	CallSourceAdvance  CallSource = "advance"
	CallSourceOverride CallSource = "override"
	CallSourceReset    CallSource = "reset"
)

// CallRecord is one entry of the call history.
type CallRecord struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	TicketNumber int64      `gorm:"index;not null" json:"ticketNumber"`
	Source       CallSource `gorm:"size:16;not null" json:"source"`
	CalledAt     time.Time  `gorm:"index;not null" json:"calledAt"`
}
