package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"queue-ticket-backend/internal/model"
	"queue-ticket-backend/internal/mw"
	"queue-ticket-backend/internal/queue"
)

// CallHistory lists recently called numbers.
type CallHistory interface {
	Recent(ctx context.Context, limit int) ([]model.CallRecord, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	queue   *queue.Service
	calls   CallHistory
	db      *gorm.DB
	webpush *webpush.Options
}

// NewHandler creates a new API handler. db backs push subscriptions.
func NewHandler(q *queue.Service, calls CallHistory, db *gorm.DB, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		queue:   q,
		calls:   calls,
		db:      db,
		webpush: webpushOptions,
	}
}

// respondError maps queue errors onto HTTP statuses. Store failures are
// logged and reported generically.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, queue.ErrAuth):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, queue.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("%s %s failed (request %s): %v", c.Request.Method, c.FullPath(), c.GetString(mw.RequestIDKey), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// ticketID reads the :id path parameter. It writes a 400 and returns false
// when the parameter is not a positive integer.
func ticketID(c *gin.Context) (int64, bool) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket number"})
		return 0, false
	}
	return n, true
}
