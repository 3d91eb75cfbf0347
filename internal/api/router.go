package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/config"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Only the room list is cached; meeting data changes on every write.
	rooms := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/rooms", rooms.Middleware(), h.GetRooms)
		api.GET("/availability", h.GetAvailability)

		api.GET("/meetings", h.ListMeetings)
		api.POST("/meetings", h.CreateMeeting)
		api.GET("/meetings/:id", h.GetMeeting)
		api.PUT("/meetings/:id", h.UpdateMeeting)
		api.POST("/meetings/:id/cancel", h.CancelMeeting)
		api.DELETE("/meetings/:id", h.DeleteMeeting)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
