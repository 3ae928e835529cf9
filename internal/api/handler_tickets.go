package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"queue-ticket-backend/internal/queue"
)

// ListTickets handles GET /api/tickets?limit=.
func (h *Handler) ListTickets(c *gin.Context) {
	tickets, err := h.queue.ListTickets(c.Request.Context(), queue.ClampLimit(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// GetTicket handles GET /api/ticket/:id.
func (h *Handler) GetTicket(c *gin.Context) {
	n, ok := ticketID(c)
	if !ok {
		return
	}
	ticket, err := h.queue.GetTicket(c.Request.Context(), n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// PatchTicket handles PATCH /api/ticket/:id.
func (h *Handler) PatchTicket(c *gin.Context) {
	n, ok := ticketID(c)
	if !ok {
		return
	}
	var req queue.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ticket, err := h.queue.UpdateTicket(c.Request.Context(), n, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// DeleteTicket handles DELETE /api/ticket/:id.
func (h *Handler) DeleteTicket(c *gin.Context) {
	n, ok := ticketID(c)
	if !ok {
		return
	}
	if err := h.queue.DeleteTicket(c.Request.Context(), n); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "ticketNumber": n})
}

// RecentCalls handles GET /api/calls?limit=.
func (h *Handler) RecentCalls(c *gin.Context) {
	records, err := h.calls.Recent(c.Request.Context(), queue.ClampLimit(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
