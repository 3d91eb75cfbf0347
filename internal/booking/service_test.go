package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/events"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/reminder"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/timeconv"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/validate"
)

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []string
	cancelled []string
	notified  []string
}

func (f *fakeScheduler) Schedule(m *model.Meeting) reminder.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, m.ID)
	return reminder.OutcomePending
}

func (f *fakeScheduler) Cancel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return true
}

func (f *fakeScheduler) NotifyCancelled(m *model.Meeting) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, m.ID)
}

type fakeFiles struct {
	deleted []string
}

func (f *fakeFiles) Open(ref model.Attachment) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeFiles) Delete(refs []model.Attachment) {
	for _, r := range refs {
		f.deleted = append(f.deleted, r.Path)
	}
}

type fixture struct {
	svc    *Service
	store  store.Store
	sched  *fakeScheduler
	files  *fakeFiles
	events *events.Recorder
	deps   Deps
}

var rooms = []string{"Ruang Sungkai", "Ruang Meranti"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, gormDB.AutoMigrate(&model.Meeting{}, &model.PushSubscription{}))

	clk := clock.NewFake()
	// 2025-01-10 07:00 WIB
	clk.Set(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	conv := timeconv.New(nil)

	f := &fixture{
		store:  store.NewGormStore(gormDB, store.WithClock(clk)),
		sched:  &fakeScheduler{},
		files:  &fakeFiles{},
		events: &events.Recorder{},
	}
	f.deps = Deps{
		Meetings:  f.store,
		Scheduler: f.sched,
		Validator: validate.New(rooms, 0, conv, clk),
		Converter: conv,
		Files:     f.files,
		Sink:      f.events,
		Clock:     clk,
		Rooms:     rooms,
	}
	f.svc = NewService(f.deps)
	return f
}

var errDBDown = errors.New("db down")

// failingWrites reads through to the real store but fails status changes
// and deletes.
type failingWrites struct {
	store.Store
}

func (failingWrites) UpdateStatus(ctx context.Context, id string, next model.Status) (bool, error) {
	return false, &store.PersistenceError{Op: "update status", Err: errDBDown}
}

func (failingWrites) Delete(ctx context.Context, id string) error {
	return &store.PersistenceError{Op: "delete", Err: errDBDown}
}

func input(id, title, room, start, end string) Input {
	return Input{
		ID:           id,
		Title:        title,
		Participants: []string{"081234567890"},
		Room:         room,
		Date:         "2025-01-10",
		StartTime:    start,
		EndTime:      end,
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := input("m-1", "  Weekly sync ", "Ruang Sungkai", "09:00", "10:00")
	in.Participants = []string{"0812-3456-7890"}
	m, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, model.StatusScheduled, m.Status)
	assert.Equal(t, "Weekly sync", m.Title)
	assert.Equal(t, []string{"081234567890"}, m.Participants)
	assert.Equal(t, time.Date(2025, 1, 10, 2, 0, 0, 0, time.UTC).UnixMilli(), m.StartEpoch)
	assert.Equal(t, time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC).UnixMilli(), m.EndEpoch)
	assert.Equal(t, []string{"m-1"}, f.sched.scheduled)

	stored, err := f.store.Get(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Ruang Sungkai", stored.Room)
}

func TestCreate_GeneratesID(t *testing.T) {
	f := newFixture(t)
	m, err := f.svc.Create(context.Background(), input("", "Sync", "Ruang Sungkai", "09:00", "10:00"))
	require.NoError(t, err)
	assert.Len(t, m.ID, 36)
}

func TestCreate_RoomConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, input("m-1", "Weekly sync", "Ruang Sungkai", "09:00", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, input("m-2", "Budget", "Ruang Sungkai", "09:30", "10:30"))
	var conflictErr *RoomConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "m-1", conflictErr.Existing.ID)
	assert.Equal(t,
		`room "Ruang Sungkai" is already booked on 2025-01-10 09:00-10:00 by "Weekly sync" (id m-1)`,
		err.Error())

	_, err = f.store.Get(ctx, "m-2")
	assert.ErrorIs(t, err, store.ErrNotFound, "a rejected request persists nothing")

	// Back-to-back and other rooms are fine.
	_, err = f.svc.Create(ctx, input("m-3", "Follow-up", "Ruang Sungkai", "10:00", "11:00"))
	assert.NoError(t, err)
	_, err = f.svc.Create(ctx, input("m-4", "Budget", "Ruang Meranti", "09:30", "10:30"))
	assert.NoError(t, err)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, input("m-1", "Sync", "Ruang Sungkai", "09:00", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, input("m-1", "Other", "Ruang Meranti", "13:00", "14:00"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = f.svc.Create(ctx, input("m-2", "Sync", "Ruang Jati", "09:00", "10:00"))
	assert.ErrorIs(t, err, validate.ErrUnknownRoom)

	_, err = f.svc.Create(ctx, input("m-3", "Sync", "Ruang Meranti", "06:00", "06:30"))
	assert.ErrorIs(t, err, validate.ErrPastStart)

	assert.Equal(t, []string{"m-1"}, f.sched.scheduled)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := input("m-1", "Sync", "Ruang Sungkai", "09:00", "10:00")
	in.Attachments = []model.Attachment{{Path: "a.pdf", Name: "a.pdf"}, {Path: "b.pdf", Name: "b.pdf"}}
	_, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, input("m-2", "Budget", "Ruang Sungkai", "11:00", "12:00"))
	require.NoError(t, err)

	// Growing its own slot does not conflict with itself.
	in = input("", "Sync (long)", "Ruang Sungkai", "09:00", "10:30")
	in.Attachments = []model.Attachment{{Path: "b.pdf", Name: "b.pdf"}}
	m, err := f.svc.Update(ctx, "m-1", in)
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.ID)
	assert.Equal(t, "10:30", m.EndTime)
	assert.Equal(t, model.StatusScheduled, m.Status)
	assert.Equal(t, []string{"a.pdf"}, f.files.deleted, "only the dropped attachment is deleted")
	assert.Equal(t, []string{"m-1", "m-2", "m-1"}, f.sched.scheduled)

	stored, err := f.store.Get(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Sync (long)", stored.Title)
	assert.Len(t, stored.Attachments, 1)

	_, err = f.svc.Update(ctx, "m-1", input("", "Sync", "Ruang Sungkai", "10:00", "11:30"))
	var conflictErr *RoomConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "m-2", conflictErr.Existing.ID)

	_, err = f.svc.Update(ctx, "missing", input("", "Sync", "Ruang Sungkai", "13:00", "14:00"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdate_KeepsAttachmentsWhenOmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := input("m-1", "Sync", "Ruang Sungkai", "09:00", "10:00")
	in.Attachments = []model.Attachment{{Path: "a.pdf", Name: "a.pdf"}}
	_, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	m, err := f.svc.Update(ctx, "m-1", input("", "Sync", "Ruang Sungkai", "09:00", "10:00"))
	require.NoError(t, err)
	assert.Len(t, m.Attachments, 1)
	assert.Empty(t, f.files.deleted)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, input("m-1", "Sync", "Ruang Sungkai", "09:00", "10:00"))
	require.NoError(t, err)

	m, err := f.svc.Cancel(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, m.Status)
	assert.Equal(t, []string{"m-1"}, f.sched.cancelled)
	assert.Empty(t, f.sched.notified, "nobody was reminded yet")

	recorded := f.events.For("m-1")
	require.Len(t, recorded, 1)
	assert.Equal(t, model.StatusCancelled, recorded[0].Status)

	_, err = f.svc.Cancel(ctx, "m-1")
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = f.svc.Update(ctx, "m-1", input("", "Sync", "Ruang Sungkai", "09:00", "10:00"))
	assert.ErrorIs(t, err, ErrTerminal)

	// The slot is free again.
	_, err = f.svc.Create(ctx, input("m-2", "Other", "Ruang Sungkai", "09:00", "10:00"))
	assert.NoError(t, err)
}

func TestCancel_NotifiedMeetingSendsNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, input("m-1", "Sync", "Ruang Sungkai", "09:00", "10:00"))
	require.NoError(t, err)
	moved, err := f.store.UpdateStatus(ctx, "m-1", model.StatusNotified)
	require.NoError(t, err)
	require.True(t, moved)

	_, err = f.svc.Cancel(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1"}, f.sched.notified)
}

func TestCancelAndDelete_FailedWriteKeepsReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, Input{
		ID:           "m-1",
		Title:        "Weekly sync",
		Participants: []string{"081234567890"},
		Room:         "Ruang Sungkai",
		Date:         "2025-01-10",
		StartTime:    "09:00",
		EndTime:      "10:00",
		Attachments:  []model.Attachment{{Name: "agenda.pdf", Path: "m-1/agenda.pdf"}},
	})
	require.NoError(t, err)

	deps := f.deps
	deps.Meetings = failingWrites{f.store}
	svc := NewService(deps)

	var pe *store.PersistenceError
	_, err = svc.Cancel(ctx, "m-1")
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, errDBDown)

	err = svc.Delete(ctx, "m-1")
	require.ErrorAs(t, err, &pe)

	assert.Empty(t, f.sched.cancelled, "the reminder must stay armed")
	assert.Empty(t, f.sched.notified)
	assert.Empty(t, f.files.deleted)
	assert.Empty(t, f.events.For("m-1"))

	got, err := f.store.Get(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, got.Status)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := input("m-1", "Sync", "Ruang Sungkai", "09:00", "10:00")
	in.Attachments = []model.Attachment{{Path: "a.pdf", Name: "a.pdf"}}
	_, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "m-1"))
	_, err = f.svc.Get(ctx, "m-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"a.pdf"}, f.files.deleted)
	assert.Equal(t, []string{"m-1"}, f.sched.cancelled)

	assert.ErrorIs(t, f.svc.Delete(ctx, "m-1"), store.ErrNotFound)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, input("m-1", "Sync", "Ruang Sungkai", "09:00", "10:00"))
	require.NoError(t, err)

	a, err := f.svc.CheckAvailability(ctx, "Ruang Sungkai", "2025-01-10", "09:30", "10:30", "")
	require.NoError(t, err)
	assert.False(t, a.Available)
	require.NotNil(t, a.Conflict)
	assert.Equal(t, "m-1", a.Conflict.ID)

	a, err = f.svc.CheckAvailability(ctx, "Ruang Sungkai", "2025-01-10", "09:30", "10:30", "m-1")
	require.NoError(t, err)
	assert.True(t, a.Available)

	_, err = f.svc.CheckAvailability(ctx, "Ruang Jati", "2025-01-10", "09:30", "10:30", "")
	assert.ErrorIs(t, err, validate.ErrUnknownRoom)

	_, err = f.svc.CheckAvailability(ctx, "Ruang Sungkai", "2025-01-10", "9.30", "10:30", "")
	assert.ErrorIs(t, err, validate.ErrBadFormat)

	_, err = f.svc.CheckAvailability(ctx, "Ruang Sungkai", "2025-01-10", "10:30", "09:30", "")
	assert.True(t, errors.Is(err, validate.ErrInvertedRange))
}

func TestRooms(t *testing.T) {
	f := newFixture(t)
	got := f.svc.Rooms()
	assert.Equal(t, rooms, got)
	got[0] = "changed"
	assert.Equal(t, "Ruang Sungkai", f.svc.Rooms()[0])
}
