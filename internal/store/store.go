package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmhodges/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
)

// ErrNotFound is returned when no meeting or subscription has the given key.
var ErrNotFound = errors.New("record not found")

// PersistenceError wraps a failure of the underlying database.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Room     string
	Date     string
	Statuses []model.Status
}

// MeetingStore defines the persistence operations on meetings.
type MeetingStore interface {
	Create(ctx context.Context, m *model.Meeting) error
	Get(ctx context.Context, id string) (*model.Meeting, error)
	Update(ctx context.Context, m *model.Meeting) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]model.Meeting, error)
	ListActive(ctx context.Context) ([]model.Meeting, error)
	ListActiveInRoom(ctx context.Context, room, date, excludeID string) ([]model.Meeting, error)
	UpdateStatus(ctx context.Context, id string, next model.Status) (bool, error)
}

// SubscriptionStore persists browser push subscriptions.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

// Store is everything the service persists.
type Store interface {
	MeetingStore
	SubscriptionStore
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	clk clock.Clock
}

// Option configures the GORM store.
type Option func(*gormStore)

// WithClock sets the clock used to stamp status changes.
func WithClock(clk clock.Clock) Option {
	return func(s *gormStore) {
		if clk != nil {
			s.clk = clk
		}
	}
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{db: db, clk: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new meeting.
func (s *gormStore) Create(ctx context.Context, m *model.Meeting) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return wrap(fmt.Sprintf("create meeting %s", m.ID), err)
	}
	return nil
}

// Get loads a meeting by id.
func (s *gormStore) Get(ctx context.Context, id string) (*model.Meeting, error) {
	var m model.Meeting
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, wrap(fmt.Sprintf("get meeting %s", id), err)
	}
	return &m, nil
}

// Update writes the editable fields of m. Status is owned by UpdateStatus
// and is never written here.
func (s *gormStore) Update(ctx context.Context, m *model.Meeting) error {
	res := s.db.WithContext(ctx).Model(&model.Meeting{ID: m.ID}).
		Select("title", "participants", "room", "date", "start_time", "end_time",
			"start_epoch", "end_epoch", "attachments", "selected_groups", "group_info", "updated_at").
		Updates(m)
	if res.Error != nil {
		return wrap(fmt.Sprintf("update meeting %s", m.ID), res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a meeting.
func (s *gormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Meeting{})
	if res.Error != nil {
		return wrap(fmt.Sprintf("delete meeting %s", id), res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns meetings matching f ordered by start time.
func (s *gormStore) List(ctx context.Context, f Filter) ([]model.Meeting, error) {
	q := s.db.WithContext(ctx).Model(&model.Meeting{})
	if f.Room != "" {
		q = q.Where("room = ?", f.Room)
	}
	if f.Date != "" {
		q = q.Where("date = ?", f.Date)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var meetings []model.Meeting
	if err := q.Order("start_epoch ASC").Order("id ASC").Find(&meetings).Error; err != nil {
		return nil, wrap("list meetings", err)
	}
	return meetings, nil
}

// ListActive returns every scheduled or notified meeting, earliest first.
func (s *gormStore) ListActive(ctx context.Context) ([]model.Meeting, error) {
	return s.List(ctx, Filter{Statuses: model.ActiveStatuses})
}

// ListActiveInRoom returns the active meetings holding room on date,
// leaving out excludeID when it is set.
func (s *gormStore) ListActiveInRoom(ctx context.Context, room, date, excludeID string) ([]model.Meeting, error) {
	q := s.db.WithContext(ctx).
		Where("room = ? AND date = ? AND status IN ?", room, date, model.ActiveStatuses)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var meetings []model.Meeting
	if err := q.Order("start_epoch ASC").Order("id ASC").Find(&meetings).Error; err != nil {
		return nil, wrap(fmt.Sprintf("list meetings in %s on %s", room, date), err)
	}
	return meetings, nil
}

// UpdateStatus moves a meeting to next in one conditional UPDATE. The
// WHERE clause only matches rows whose current status may precede next, so
// a status never regresses. It reports whether the row moved.
func (s *gormStore) UpdateStatus(ctx context.Context, id string, next model.Status) (bool, error) {
	from := next.Predecessors()
	if len(from) == 0 {
		return false, fmt.Errorf("no status can move to %q", next)
	}

	res := s.db.WithContext(ctx).Model(&model.Meeting{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{"status": next, "updated_at": s.clk.Now()})
	if res.Error != nil {
		return false, wrap(fmt.Sprintf("update status of meeting %s", id), res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SaveSubscription creates or replaces a push subscription.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "rooms"}),
	}).Create(sub).Error
	return wrap("save subscription", err)
}

// GetSubscription loads a push subscription by endpoint.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Take(&sub).Error; err != nil {
		return nil, wrap("get subscription", err)
	}
	return &sub, nil
}

// DeleteSubscription removes a push subscription.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
	return wrap("delete subscription", err)
}

// ListSubscriptions returns all push subscriptions.
func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, wrap("list subscriptions", err)
	}
	return subs, nil
}
