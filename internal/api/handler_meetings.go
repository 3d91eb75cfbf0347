package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/booking"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
)

type meetingRequest struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	Participants   []string           `json:"participants"`
	Room           string             `json:"room"`
	Date           string             `json:"date"`
	StartTime      string             `json:"startTime"`
	EndTime        string             `json:"endTime"`
	Attachments    []model.Attachment `json:"attachments"`
	SelectedGroups []string           `json:"selectedGroups"`
	GroupInfo      []model.GroupInfo  `json:"groupInfo"`
}

func (r meetingRequest) input() booking.Input {
	return booking.Input{
		ID:             strings.TrimSpace(r.ID),
		Title:          r.Title,
		Participants:   r.Participants,
		Room:           r.Room,
		Date:           r.Date,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Attachments:    r.Attachments,
		SelectedGroups: r.SelectedGroups,
		GroupInfo:      r.GroupInfo,
	}
}

func bindMeeting(c *gin.Context) (meetingRequest, bool) {
	var req meetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return req, false
	}
	return req, true
}

// CreateMeeting handles POST /api/meetings.
func (h *Handler) CreateMeeting(c *gin.Context) {
	req, ok := bindMeeting(c)
	if !ok {
		return
	}
	m, err := h.booking.Create(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// UpdateMeeting handles PUT /api/meetings/:id.
func (h *Handler) UpdateMeeting(c *gin.Context) {
	req, ok := bindMeeting(c)
	if !ok {
		return
	}
	m, err := h.booking.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// CancelMeeting handles POST /api/meetings/:id/cancel.
func (h *Handler) CancelMeeting(c *gin.Context) {
	m, err := h.booking.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteMeeting handles DELETE /api/meetings/:id.
func (h *Handler) DeleteMeeting(c *gin.Context) {
	if err := h.booking.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMeeting handles GET /api/meetings/:id.
func (h *Handler) GetMeeting(c *gin.Context) {
	m, err := h.booking.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ListMeetings handles GET /api/meetings?date=&room=&status=. status takes
// a comma-separated list.
func (h *Handler) ListMeetings(c *gin.Context) {
	f := store.Filter{
		Room: c.Query("room"),
		Date: c.Query("date"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s := model.Status(strings.TrimSpace(part))
			if !s.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + string(s)})
				return
			}
			f.Statuses = append(f.Statuses, s)
		}
	}

	meetings, err := h.booking.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	if meetings == nil {
		meetings = []model.Meeting{}
	}
	c.JSON(http.StatusOK, meetings)
}
