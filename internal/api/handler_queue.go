package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"queue-ticket-backend/internal/model"
	"queue-ticket-backend/internal/queue"
)

// IssueTicket handles POST /api/ticket.
func (h *Handler) IssueTicket(c *gin.Context) {
	var req queue.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	n, err := h.queue.IssueTicket(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticketNumber": n})
}

// GetState handles GET /api/state.
func (h *Handler) GetState(c *gin.Context) {
	state, err := h.queue.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// counterValue accepts a JSON number or a string holding one. null reads as absent.
func counterValue(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	s = string(raw)
	return &s
}

// PutState handles PUT /api/state, overriding the counters.
func (h *Handler) PutState(c *gin.Context) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	state, err := h.queue.Override(c.Request.Context(), queue.OverrideRequest{
		CurrentNumber: counterValue(body[model.FieldCurrentNumber]),
		NextNumber:    counterValue(body[model.FieldNextNumber]),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// PostNext handles POST /api/next.
func (h *Handler) PostNext(c *gin.Context) {
	res, err := h.queue.Advance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"currentNumber": res.State.CurrentNumber,
		"lastTicket":    res.State.LastTicket,
		"nextNumber":    res.State.NextNumber,
		"advanced":      res.Advanced,
	})
}

// PostReset handles POST /api/reset.
func (h *Handler) PostReset(c *gin.Context) {
	if err := h.queue.Reset(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
