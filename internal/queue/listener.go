package queue

import (
	"context"

	"queue-ticket-backend/internal/model"
)

// Listener is told about calls and resets after they are persisted. Listeners
// must not block for long; failures are theirs to log.
type Listener interface {
	TicketCalled(ctx context.Context, call model.CallRecord)
	QueueReset(ctx context.Context)
}

func (s *Service) notifyCalled(ctx context.Context, call model.CallRecord) {
	for _, l := range s.listeners {
		l.TicketCalled(ctx, call)
	}
}

func (s *Service) notifyReset(ctx context.Context) {
	for _, l := range s.listeners {
		l.QueueReset(ctx)
	}
}
