package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"queue-ticket-backend/config"
	"queue-ticket-backend/internal/auth"
	"queue-ticket-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, h *Handler, a auth.Authenticator, limiter *mw.IPRateLimiter) *gin.Engine {
	r := gin.Default()
	r.Use(mw.RequestID())

	responses := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	caching := responses.Cache()

	admin := mw.RequireRole(a, auth.RoleAdmin)
	destructive := mw.RequireRole(a, auth.RoleDestructive)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter), responses.Invalidate())
	{
		api.POST("/ticket", h.IssueTicket)
		api.GET("/state", caching, h.GetState)
		api.PUT("/state", admin, h.PutState)
		api.POST("/next", admin, h.PostNext)
		api.POST("/reset", destructive, h.PostReset)

		api.GET("/tickets", caching, h.ListTickets)
		api.GET("/ticket/:id", h.GetTicket)
		api.PATCH("/ticket/:id", admin, h.PatchTicket)
		api.DELETE("/ticket/:id", admin, h.DeleteTicket)

		api.GET("/export", admin, h.Export)
		// Import checks its own secret so the form field can carry it.
		api.POST("/import", h.Import)

		api.GET("/calls", h.RecentCalls)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
