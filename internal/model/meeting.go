package model

import "time"

// Status is the lifecycle state of a meeting.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusNotified  Status = "notified"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses are the statuses that still hold a room.
var ActiveStatuses = []Status{StatusScheduled, StatusNotified}

// Rank orders statuses along the lifecycle. Terminal states share the top rank.
func (s Status) Rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusNotified:
		return 1
	case StatusCompleted, StatusCancelled:
		return 2
	}
	return -1
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether a meeting in status s still occupies its room.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusNotified
}

// CanTransitionTo reports whether moving from s to next is a forward move.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	return next.Rank() > s.Rank()
}

// Predecessors lists every status that may legally move to s.
func (s Status) Predecessors() []Status {
	var out []Status
	for _, from := range []Status{StatusScheduled, StatusNotified, StatusCompleted, StatusCancelled} {
		if from.CanTransitionTo(s) {
			out = append(out, from)
		}
	}
	return out
}

// Attachment references a file owned by the file store.
type Attachment struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// GroupInfo is a snapshot of a contact group that supplied participants.
type GroupInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
}

// Meeting is a single-occurrence room reservation.
type Meeting struct {
	ID           string   `gorm:"primaryKey;size:64" json:"id"`
	Title        string   `gorm:"type:text;not null" json:"title"`
	Participants []string `gorm:"serializer:json;not null" json:"participants"`
	Room         string   `gorm:"size:128;not null;index:idx_meetings_room_date" json:"room"`
	Date         string   `gorm:"size:10;not null;index:idx_meetings_room_date" json:"date"`
	StartTime    string   `gorm:"size:5;not null" json:"startTime"`
	EndTime      string   `gorm:"size:5;not null" json:"endTime"`
	StartEpoch   int64    `gorm:"not null;index" json:"startEpoch"` // ms since epoch
	EndEpoch     int64    `gorm:"not null" json:"endEpoch"`
	Status       Status   `gorm:"size:16;not null;index" json:"status"`

	Attachments    []Attachment `gorm:"serializer:json" json:"attachments,omitempty"`
	SelectedGroups []string     `gorm:"serializer:json" json:"selectedGroups,omitempty"`
	GroupInfo      []GroupInfo  `gorm:"serializer:json" json:"groupInfo,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Start returns the start instant.
func (m *Meeting) Start() time.Time {
	return time.UnixMilli(m.StartEpoch)
}

// End returns the end instant.
func (m *Meeting) End() time.Time {
	return time.UnixMilli(m.EndEpoch)
}
