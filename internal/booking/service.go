package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/conflict"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/events"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/filestore"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/reminder"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/timeconv"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/validate"
)

var (
	// ErrAlreadyExists is returned when creating a meeting whose id is taken.
	ErrAlreadyExists = errors.New("meeting already exists")
	// ErrTerminal is returned when changing a completed or cancelled meeting.
	ErrTerminal = errors.New("meeting is already completed or cancelled")
)

// RoomConflictError reports the reservation a request collided with.
type RoomConflictError struct {
	Existing model.Meeting
}

func (e *RoomConflictError) Error() string {
	return fmt.Sprintf("room %q is already booked on %s %s-%s by %q (id %s)",
		e.Existing.Room, e.Existing.Date, e.Existing.StartTime, e.Existing.EndTime,
		e.Existing.Title, e.Existing.ID)
}

// Input is the caller-supplied part of a meeting.
type Input struct {
	ID           string
	Title        string
	Participants []string
	Room         string
	Date         string
	StartTime    string
	EndTime      string

	// Attachments replaces the stored list on update; nil keeps it.
	Attachments    []model.Attachment
	SelectedGroups []string
	GroupInfo      []model.GroupInfo
}

func (in Input) request() validate.Request {
	return validate.Request{
		Title:        in.Title,
		Participants: in.Participants,
		Room:         in.Room,
		Date:         in.Date,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
	}
}

// Scheduler is the reminder side of the service.
type Scheduler interface {
	Schedule(m *model.Meeting) reminder.Outcome
	Cancel(id string) bool
	NotifyCancelled(m *model.Meeting)
}

// Availability is the answer to a slot query.
type Availability struct {
	Available bool           `json:"available"`
	Conflict  *model.Meeting `json:"conflict,omitempty"`
}

// Deps are the collaborators of a Service.
type Deps struct {
	Meetings  store.MeetingStore
	Scheduler Scheduler
	Validator *validate.Validator
	Converter *timeconv.Converter
	Files     filestore.FileStore
	Sink      events.Sink
	Clock     clock.Clock
	Rooms     []string
}

// Service runs the reservation workflow on top of the store and the
// reminder scheduler.
type Service struct {
	// mu serializes writers so no two requests pass the conflict check for
	// the same slot.
	mu sync.Mutex

	meetings  store.MeetingStore
	scheduler Scheduler
	validator *validate.Validator
	conflicts *conflict.Checker
	conv      *timeconv.Converter
	files     filestore.FileStore
	sink      events.Sink
	clk       clock.Clock
	rooms     []string
}

// NewService creates a booking service.
func NewService(d Deps) *Service {
	if d.Converter == nil {
		d.Converter = timeconv.New(nil)
	}
	if d.Sink == nil {
		d.Sink = events.Discard{}
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	return &Service{
		meetings:  d.Meetings,
		scheduler: d.Scheduler,
		validator: d.Validator,
		conflicts: conflict.NewChecker(d.Meetings, d.Converter),
		conv:      d.Converter,
		files:     d.Files,
		sink:      d.Sink,
		clk:       d.Clock,
		rooms:     append([]string(nil), d.Rooms...),
	}
}

// Create books a room and schedules the reminder. An empty in.ID gets a
// generated one.
func (s *Service) Create(ctx context.Context, in Input) (*model.Meeting, error) {
	if err := s.validator.Validate(in.request()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ID == "" {
		in.ID = uuid.NewString()
	} else if _, err := s.meetings.Get(ctx, in.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, in.ID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if err := s.checkConflict(ctx, in, ""); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	m := &model.Meeting{ID: in.ID, Status: model.StatusScheduled, CreatedAt: now, UpdatedAt: now}
	if err := s.apply(m, in); err != nil {
		return nil, err
	}
	if err := s.meetings.Create(ctx, m); err != nil {
		return nil, err
	}

	s.scheduler.Schedule(m)
	return m, nil
}

// Update replaces the editable fields of a meeting and reschedules its
// reminder. The status is kept.
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.meetings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTerminal, id, existing.Status)
	}

	if err := s.validator.Validate(in.request()); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, in, id); err != nil {
		return nil, err
	}

	updated := *existing
	if in.Attachments == nil {
		in.Attachments = existing.Attachments
	}
	if err := s.apply(&updated, in); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.clk.Now()
	if err := s.meetings.Update(ctx, &updated); err != nil {
		return nil, err
	}

	if removed := filestore.Removed(existing.Attachments, updated.Attachments); len(removed) > 0 && s.files != nil {
		s.files.Delete(removed)
	}

	s.scheduler.Schedule(&updated)
	return &updated, nil
}

// Cancel moves a meeting to cancelled and drops its reminder. Participants
// who already got the reminder are told about the cancellation.
func (s *Service) Cancel(ctx context.Context, id string) (*model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.meetings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTerminal, id, m.Status)
	}

	moved, err := s.meetings.UpdateStatus(ctx, id, model.StatusCancelled)
	if err != nil {
		// The row is untouched, so its reminder stays armed.
		return nil, err
	}
	s.scheduler.Cancel(id)
	if !moved {
		// Completed by the sweeper between Get and UpdateStatus.
		return nil, fmt.Errorf("%w: %s", ErrTerminal, id)
	}

	previous := m.Status
	m.Status = model.StatusCancelled
	s.sink.Emit(events.New(m, model.StatusCancelled,
		fmt.Sprintf("Rapat %q di %s dibatalkan", m.Title, m.Room), s.clk.Now()))

	if previous == model.StatusNotified {
		s.scheduler.NotifyCancelled(m)
	}
	return m, nil
}

// Delete removes a meeting and its attachment files. An active meeting that
// was already announced gets a cancellation notice first.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.meetings.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.meetings.Delete(ctx, id); err != nil {
		return err
	}
	s.scheduler.Cancel(id)

	if m.Status == model.StatusNotified {
		s.scheduler.NotifyCancelled(m)
	}
	if len(m.Attachments) > 0 && s.files != nil {
		s.files.Delete(m.Attachments)
	}
	return nil
}

// Get returns one meeting.
func (s *Service) Get(ctx context.Context, id string) (*model.Meeting, error) {
	return s.meetings.Get(ctx, id)
}

// List returns the meetings matching f.
func (s *Service) List(ctx context.Context, f store.Filter) ([]model.Meeting, error) {
	return s.meetings.List(ctx, f)
}

// CheckAvailability tells whether room is free on date between start and
// end. excludeID ignores the meeting being edited.
func (s *Service) CheckAvailability(ctx context.Context, room, date, start, end, excludeID string) (*Availability, error) {
	if !s.validator.KnownRoom(room) {
		return nil, &validate.Error{Rule: validate.ErrUnknownRoom, Message: fmt.Sprintf("unknown room %q", room)}
	}
	startMs, err := s.conv.ToEpoch(date, start)
	if err != nil {
		return nil, &validate.Error{Rule: validate.ErrBadFormat, Message: err.Error()}
	}
	endMs, err := s.conv.ToEpoch(date, end)
	if err != nil {
		return nil, &validate.Error{Rule: validate.ErrBadFormat, Message: err.Error()}
	}
	if endMs <= startMs {
		return nil, &validate.Error{
			Rule:    validate.ErrInvertedRange,
			Message: fmt.Sprintf("end time %s must be after start time %s", end, start),
		}
	}

	existing, err := s.conflicts.FindConflict(ctx, room, date, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	return &Availability{Available: existing == nil, Conflict: existing}, nil
}

// Rooms returns the bookable rooms.
func (s *Service) Rooms() []string {
	return append([]string(nil), s.rooms...)
}

func (s *Service) checkConflict(ctx context.Context, in Input, excludeID string) error {
	existing, err := s.conflicts.FindConflict(ctx, in.Room, in.Date, in.StartTime, in.EndTime, excludeID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &RoomConflictError{Existing: *existing}
	}
	return nil
}

// apply copies in onto m and derives the epochs.
func (s *Service) apply(m *model.Meeting, in Input) error {
	start, err := s.conv.ToEpoch(in.Date, in.StartTime)
	if err != nil {
		return err
	}
	end, err := s.conv.ToEpoch(in.Date, in.EndTime)
	if err != nil {
		return err
	}

	participants := make([]string, 0, len(in.Participants))
	for _, p := range in.Participants {
		participants = append(participants, validate.NormalizePhone(p))
	}

	m.Title = strings.TrimSpace(in.Title)
	m.Participants = participants
	m.Room = in.Room
	m.Date = in.Date
	m.StartTime = in.StartTime
	m.EndTime = in.EndTime
	m.StartEpoch = start
	m.EndEpoch = end
	m.Attachments = in.Attachments
	m.SelectedGroups = in.SelectedGroups
	m.GroupInfo = in.GroupInfo
	return nil
}
