package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/config"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/booking"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/validate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubBooking returns canned results and remembers what it was called with.
type stubBooking struct {
	meeting *model.Meeting
	list    []model.Meeting
	avail   *booking.Availability
	err     error

	lastID     string
	lastInput  booking.Input
	lastFilter store.Filter
}

func (s *stubBooking) Create(ctx context.Context, in booking.Input) (*model.Meeting, error) {
	s.lastInput = in
	return s.meeting, s.err
}

func (s *stubBooking) Update(ctx context.Context, id string, in booking.Input) (*model.Meeting, error) {
	s.lastID, s.lastInput = id, in
	return s.meeting, s.err
}

func (s *stubBooking) Cancel(ctx context.Context, id string) (*model.Meeting, error) {
	s.lastID = id
	return s.meeting, s.err
}

func (s *stubBooking) Delete(ctx context.Context, id string) error {
	s.lastID = id
	return s.err
}

func (s *stubBooking) Get(ctx context.Context, id string) (*model.Meeting, error) {
	s.lastID = id
	return s.meeting, s.err
}

func (s *stubBooking) List(ctx context.Context, f store.Filter) ([]model.Meeting, error) {
	s.lastFilter = f
	return s.list, s.err
}

func (s *stubBooking) CheckAvailability(ctx context.Context, room, date, start, end, excludeID string) (*booking.Availability, error) {
	s.lastID = excludeID
	return s.avail, s.err
}

func (s *stubBooking) Rooms() []string {
	return []string{"Ruang Sungkai", "Ruang Ulin"}
}

func newTestRouter(b BookingService, subs store.SubscriptionStore) *gin.Engine {
	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60}
	return NewRouter(NewHandler(b, subs, nil), cfg)
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleMeeting() *model.Meeting {
	return &model.Meeting{
		ID:           "m-1",
		Title:        "Weekly sync",
		Participants: []string{"081234567890"},
		Room:         "Ruang Sungkai",
		Date:         "2025-01-10",
		StartTime:    "09:00",
		EndTime:      "10:00",
		Status:       model.StatusScheduled,
	}
}

func TestCreateMeeting(t *testing.T) {
	b := &stubBooking{meeting: sampleMeeting()}
	r := newTestRouter(b, nil)

	w := do(r, http.MethodPost, "/api/meetings", gin.H{
		"title":        "Weekly sync",
		"participants": []string{"081234567890"},
		"room":         "Ruang Sungkai",
		"date":         "2025-01-10",
		"startTime":    "09:00",
		"endTime":      "10:00",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var got model.Meeting
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, model.StatusScheduled, got.Status)
	assert.Equal(t, "Ruang Sungkai", b.lastInput.Room)
	assert.Equal(t, "09:00", b.lastInput.StartTime)
}

func TestCreateMeeting_BadJSON(t *testing.T) {
	r := newTestRouter(&stubBooking{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/meetings", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestErrorMapping(t *testing.T) {
	existing := *sampleMeeting()
	testCases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name: "validation",
			err: &validate.Error{
				Rule:    validate.ErrInvalidParticipants,
				Message: "invalid participant numbers: 123",
				Invalid: []string{"123"},
			},
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"invalid participant numbers: 123","rule":"invalid_participants","invalid":["123"]}`,
		},
		{
			name:     "conflict",
			err:      &booking.RoomConflictError{Existing: existing},
			wantCode: http.StatusConflict,
			wantBody: `{
				"error":"room \"Ruang Sungkai\" is already booked on 2025-01-10 09:00-10:00 by \"Weekly sync\" (id m-1)",
				"conflict":{"id":"m-1","title":"Weekly sync","date":"2025-01-10","startTime":"09:00","endTime":"10:00"}
			}`,
		},
		{
			name:     "not found",
			err:      store.ErrNotFound,
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"meeting not found"}`,
		},
		{
			name:     "already exists",
			err:      fmt.Errorf("%w: m-1", booking.ErrAlreadyExists),
			wantCode: http.StatusConflict,
			wantBody: `{"error":"meeting already exists: m-1"}`,
		},
		{
			name:     "persistence",
			err:      &store.PersistenceError{Op: "create meeting m-1", Err: errors.New("disk full")},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"internal server error"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubBooking{err: tc.err}, nil)
			w := do(r, http.MethodPost, "/api/meetings", gin.H{"title": "x"})
			assert.Equal(t, tc.wantCode, w.Code)
			assert.JSONEq(t, tc.wantBody, w.Body.String())
		})
	}
}

func TestMeetingRoutes(t *testing.T) {
	cancelled := sampleMeeting()
	cancelled.Status = model.StatusCancelled
	b := &stubBooking{meeting: cancelled}
	r := newTestRouter(b, nil)

	w := do(r, http.MethodPost, "/api/meetings/m-1/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m-1", b.lastID)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)

	w = do(r, http.MethodPut, "/api/meetings/m-2", gin.H{"title": "renamed"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m-2", b.lastID)
	assert.Equal(t, "renamed", b.lastInput.Title)

	w = do(r, http.MethodGet, "/api/meetings/m-3", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m-3", b.lastID)

	w = do(r, http.MethodDelete, "/api/meetings/m-4", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "m-4", b.lastID)
}

func TestListMeetings(t *testing.T) {
	b := &stubBooking{}
	r := newTestRouter(b, nil)

	w := do(r, http.MethodGet, "/api/meetings?room=Ruang%20Ulin&date=2025-01-10&status=scheduled,notified", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, store.Filter{
		Room:     "Ruang Ulin",
		Date:     "2025-01-10",
		Statuses: []model.Status{model.StatusScheduled, model.StatusNotified},
	}, b.lastFilter)

	w = do(r, http.MethodGet, "/api/meetings?status=postponed", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRooms(t *testing.T) {
	r := newTestRouter(&stubBooking{}, nil)

	w := do(r, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":["Ruang Sungkai","Ruang Ulin"]}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/rooms", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestGetAvailability(t *testing.T) {
	existing := sampleMeeting()
	b := &stubBooking{avail: &booking.Availability{Available: false, Conflict: existing}}
	r := newTestRouter(b, nil)

	w := do(r, http.MethodGet, "/api/availability?room=Ruang%20Sungkai&date=2025-01-10&startTime=09:30&endTime=10:30&excludeId=m-9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m-9", b.lastID)

	var got booking.Availability
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.False(t, got.Available)
	require.NotNil(t, got.Conflict)
	assert.Equal(t, "m-1", got.Conflict.ID)

	w = do(r, http.MethodGet, "/api/availability?room=Ruang%20Sungkai", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
