package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/booking"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/validate"
)

// BookingService is the reservation workflow the handlers expose.
type BookingService interface {
	Create(ctx context.Context, in booking.Input) (*model.Meeting, error)
	Update(ctx context.Context, id string, in booking.Input) (*model.Meeting, error)
	Cancel(ctx context.Context, id string) (*model.Meeting, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Meeting, error)
	List(ctx context.Context, f store.Filter) ([]model.Meeting, error)
	CheckAvailability(ctx context.Context, room, date, start, end, excludeID string) (*booking.Availability, error)
	Rooms() []string
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	booking BookingService
	subs    store.SubscriptionStore
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(b BookingService, subs store.SubscriptionStore, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		booking: b,
		subs:    subs,
		webpush: webpushOptions,
	}
}

var ruleNames = map[error]string{
	validate.ErrMissingField:        "missing_field",
	validate.ErrUnknownRoom:         "unknown_room",
	validate.ErrBadFormat:           "bad_format",
	validate.ErrInvertedRange:       "inverted_range",
	validate.ErrTooShort:            "too_short",
	validate.ErrPastStart:           "past_start",
	validate.ErrInvalidParticipants: "invalid_participants",
}

type conflictBody struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *validate.Error
	var cerr *booking.RoomConflictError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Error(), "rule": ruleNames[verr.Rule]}
		if len(verr.Invalid) > 0 {
			body["invalid"] = verr.Invalid
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{
			"error": cerr.Error(),
			"conflict": conflictBody{
				ID:        cerr.Existing.ID,
				Title:     cerr.Existing.Title,
				Date:      cerr.Existing.Date,
				StartTime: cerr.Existing.StartTime,
				EndTime:   cerr.Existing.EndTime,
			},
		})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
	case errors.Is(err, booking.ErrAlreadyExists), errors.Is(err, booking.ErrTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
