package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRooms handles GET /api/rooms.
func (h *Handler) GetRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.booking.Rooms()})
}

// GetAvailability handles
// GET /api/availability?room=&date=&startTime=&endTime=&excludeId=.
func (h *Handler) GetAvailability(c *gin.Context) {
	room, date := c.Query("room"), c.Query("date")
	start, end := c.Query("startTime"), c.Query("endTime")
	if room == "" || date == "" || start == "" || end == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room, date, startTime and endTime are required"})
		return
	}

	a, err := h.booking.CheckAvailability(c.Request.Context(), room, date, start, end, c.Query("excludeId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
