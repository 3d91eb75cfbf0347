package events

import (
	"log"
	"sync"
	"time"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
)

// Event announces that a meeting moved to a new status.
type Event struct {
	MeetingID string       `json:"meetingId"`
	Room      string       `json:"room"`
	Title     string       `json:"title"`
	Status    model.Status `json:"status"`
	Message   string       `json:"message"`
	At        time.Time    `json:"at"`
}

// Sink receives lifecycle events. Emit must not block the caller for long
// and never reports failure.
type Sink interface {
	Emit(e Event)
}

// New builds an event for m moving to status.
func New(m *model.Meeting, status model.Status, message string, at time.Time) Event {
	return Event{
		MeetingID: m.ID,
		Room:      m.Room,
		Title:     m.Title,
		Status:    status,
		Message:   message,
		At:        at,
	}
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink writes every event to the standard logger.
type LogSink struct{}

func (LogSink) Emit(e Event) {
	log.Printf("Meeting %s (%s) is now %s: %s", e.MeetingID, e.Room, e.Status, e.Message)
}

// Discard drops events.
type Discard struct{}

func (Discard) Emit(Event) {}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// For returns the recorded events of one meeting.
func (r *Recorder) For(meetingID string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.MeetingID == meetingID {
			out = append(out, e)
		}
	}
	return out
}
