// Package history keeps a relational log of called numbers.
package history

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"queue-ticket-backend/internal/model"
)

// Log records calls and resets. It satisfies queue.Listener.
type Log struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a call log backed by db. The call_records table must already
// be migrated.
func New(db *gorm.DB) *Log {
	return &Log{db: db, now: time.Now}
}

// TicketCalled appends call to the log.
func (l *Log) TicketCalled(ctx context.Context, call model.CallRecord) {
	call.ID = 0
	if call.CalledAt.IsZero() {
		call.CalledAt = l.now()
	}
	if err := l.db.WithContext(ctx).Create(&call).Error; err != nil {
		log.Printf("Failed to record call of ticket %d: %v", call.TicketNumber, err)
	}
}

// QueueReset writes a marker so the history shows where numbering restarted.
func (l *Log) QueueReset(ctx context.Context) {
	marker := model.CallRecord{Source: model.CallSourceReset, CalledAt: l.now()}
	if err := l.db.WithContext(ctx).Create(&marker).Error; err != nil {
		log.Printf("Failed to record queue reset: %v", err)
	}
}

// Recent returns up to limit records, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]model.CallRecord, error) {
	var records []model.CallRecord
	err := l.db.WithContext(ctx).
		Order("called_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load call history: %w", err)
	}
	return records, nil
}
