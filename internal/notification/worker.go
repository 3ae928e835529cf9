package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"queue-ticket-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool sends "your number is up" pushes off the request path. It
// satisfies queue.Listener.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case ticket := <-wp.jobs:
			wp.notifyTicket(ctx, ticket)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a push for ticket. It gives up when ctx ends before a
// worker has room.
func (wp *WorkerPool) Dispatch(ctx context.Context, ticket int64) {
	select {
	case wp.jobs <- ticket:
	case <-ctx.Done():
		log.Printf("Dropped notification for ticket %d: %v", ticket, ctx.Err())
	}
}

// TicketCalled dispatches a push to everyone waiting for the called number.
func (wp *WorkerPool) TicketCalled(ctx context.Context, call model.CallRecord) {
	wp.Dispatch(ctx, call.TicketNumber)
}

// QueueReset drops every subscription; the numbers they wait for are gone.
func (wp *WorkerPool) QueueReset(ctx context.Context) {
	res := wp.db.WithContext(ctx).Where("1 = 1").Delete(&model.PushSubscription{})
	if res.Error != nil {
		log.Printf("Failed to clear push subscriptions: %v", res.Error)
		return
	}
	log.Printf("Cleared %d push subscriptions", res.RowsAffected)
}

// Message is the push payload for a called ticket.
func Message(ticket int64) string {
	return fmt.Sprintf("您的號碼 %d 已叫號，請至櫃台辦理", ticket)
}

func (wp *WorkerPool) notifyTicket(ctx context.Context, ticket int64) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("ticket_number = ?", ticket).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for ticket %d: %v", ticket, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for ticket %d", len(subscriptions), ticket)
	payload := []byte(Message(ticket))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification pushes payload to one subscriber. A subscription is
// single-use: it is removed once delivered or once the endpoint reports it gone.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	default:
		log.Printf("Push service answered %d for %s", resp.StatusCode, sub.Endpoint)
		return
	}

	if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
		log.Printf("Failed to delete subscription %s: %v", sub.Endpoint, err)
	}
}
