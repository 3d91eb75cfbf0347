package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/events"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/notification"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
)

// DefaultWindow is how long before the start a reminder goes out.
const DefaultWindow = time.Hour

// MeetingStore is the part of the store the scheduler needs.
type MeetingStore interface {
	Get(ctx context.Context, id string) (*model.Meeting, error)
	ListActive(ctx context.Context) ([]model.Meeting, error)
	UpdateStatus(ctx context.Context, id string, next model.Status) (bool, error)
}

// Dispatcher sends the messages of one meeting to all its participants.
type Dispatcher interface {
	Reminder(ctx context.Context, m *model.Meeting) notification.Report
	Cancellation(ctx context.Context, m *model.Meeting) notification.Report
}

// Outcome tells what Schedule decided for a meeting.
type Outcome int

const (
	// OutcomeSkipped means no reminder will be sent: the meeting already
	// started, is no longer scheduled, or a dispatch is already running.
	OutcomeSkipped Outcome = iota
	// OutcomeImmediate means the meeting is inside the reminder window and
	// the reminder is going out now.
	OutcomeImmediate
	// OutcomePending means a one-shot timer was registered.
	OutcomePending
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImmediate:
		return "immediate"
	case OutcomePending:
		return "pending"
	default:
		return "skipped"
	}
}

// RecoverySummary counts what RecoverAll did.
type RecoverySummary struct {
	Immediate int
	Pending   int
	Skipped   int
}

type job struct {
	id     string
	fireAt time.Time
	timer  *clock.Timer
	stop   chan struct{}
}

// Scheduler owns the one-shot reminder jobs of this process, at most one
// per meeting id. Jobs live in memory only; RecoverAll rebuilds them from
// the store after a restart.
type Scheduler struct {
	meetings MeetingStore
	dispatch Dispatcher
	sink     events.Sink
	clk      clock.Clock
	window   time.Duration

	mu          sync.Mutex
	jobs        map[string]*job
	dispatching map[string]struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	waiters  sync.WaitGroup
	inflight sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, typically with a fake in tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) { s.clk = clk }
}

// WithWindow sets the reminder lead time.
func WithWindow(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithSink sets where lifecycle events go.
func WithSink(sink events.Sink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// New creates a scheduler. Call Stop to release its timers.
func New(meetings MeetingStore, dispatch Dispatcher, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		meetings:    meetings,
		dispatch:    dispatch,
		sink:        events.Discard{},
		clk:         clock.New(),
		window:      DefaultWindow,
		jobs:        make(map[string]*job),
		dispatching: make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule decides how m gets its reminder. Any job already registered for
// m.ID is cancelled first.
func (s *Scheduler) Schedule(m *model.Meeting) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(m.ID)

	if s.ctx.Err() != nil {
		return OutcomeSkipped
	}
	if m.Status != model.StatusScheduled {
		return OutcomeSkipped
	}

	now := s.clk.Now()
	start := m.Start()
	if !start.After(now) {
		// Already running or over; the sweeper finalizes it.
		return OutcomeSkipped
	}

	fireAt := start.Add(-s.window)
	delay := fireAt.Sub(now)
	if delay <= 0 {
		if _, busy := s.dispatching[m.ID]; busy {
			return OutcomeSkipped
		}
		s.dispatching[m.ID] = struct{}{}
		snapshot := *m
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.deliver(&snapshot)
		}()
		log.Printf("Meeting %s starts within %s; sending reminder now", m.ID, s.window)
		return OutcomeImmediate
	}

	j := &job{
		id:     m.ID,
		fireAt: fireAt,
		timer:  s.clk.NewTimer(delay),
		stop:   make(chan struct{}),
	}
	s.jobs[m.ID] = j
	s.waiters.Add(1)
	go s.wait(j)
	log.Printf("Reminder for meeting %s scheduled at %s", m.ID, fireAt.Format(time.RFC3339))
	return OutcomePending
}

// Cancel discards the pending job of id. It reports whether one existed.
// A reminder that already fired is not affected.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Scheduler) removeLocked(id string) bool {
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	delete(s.jobs, id)
	j.timer.Stop()
	close(j.stop)
	return true
}

// RecoverAll schedules every active meeting in the store. It is meant to be
// called once at process start.
func (s *Scheduler) RecoverAll(ctx context.Context) (RecoverySummary, error) {
	var summary RecoverySummary
	active, err := s.meetings.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load active meetings: %w", err)
	}

	for i := range active {
		switch s.Schedule(&active[i]) {
		case OutcomeImmediate:
			summary.Immediate++
		case OutcomePending:
			summary.Pending++
		default:
			summary.Skipped++
		}
	}
	log.Printf("Recovered reminders for %d active meetings: %d immediate, %d pending, %d skipped",
		len(active), summary.Immediate, summary.Pending, summary.Skipped)
	return summary, nil
}

// NotifyCancelled sends the cancellation notice for m in the background.
func (s *Scheduler) NotifyCancelled(m *model.Meeting) {
	if s.ctx.Err() != nil {
		return
	}
	snapshot := *m
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		report := s.dispatch.Cancellation(s.ctx, &snapshot)
		log.Printf("Cancellation notice for meeting %s reached %d/%d participants",
			snapshot.ID, report.Delivered(), report.Attempted)
	}()
}

// Has reports whether id has a pending job.
func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// FireAt returns when the pending job of id is due.
func (s *Scheduler) FireAt(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return time.Time{}, false
	}
	return j.fireAt, true
}

// Pending lists the meeting ids with a pending job, sorted.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until every dispatch started so far has finished.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Stop cancels all pending jobs and waits for running dispatches.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id := range s.jobs {
		s.removeLocked(id)
	}
	s.mu.Unlock()

	s.cancel()
	s.waiters.Wait()
	s.inflight.Wait()
}

func (s *Scheduler) wait(j *job) {
	defer s.waiters.Done()

	select {
	case <-j.timer.C:
	case <-j.stop:
		return
	case <-s.ctx.Done():
		return
	}

	s.mu.Lock()
	if s.jobs[j.id] != j {
		// Cancelled or replaced while the timer was firing.
		s.mu.Unlock()
		return
	}
	delete(s.jobs, j.id)
	if _, busy := s.dispatching[j.id]; busy {
		s.mu.Unlock()
		return
	}
	s.dispatching[j.id] = struct{}{}
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	s.fire(j.id)
}

// fire runs when a job comes due. The meeting is re-read so a cancellation
// or edit since scheduling is honoured.
func (s *Scheduler) fire(id string) {
	m, err := s.meetings.Get(s.ctx, id)
	if err != nil {
		s.release(id)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Reminder for meeting %s dropped: meeting no longer exists", id)
			return
		}
		log.Printf("Error loading meeting %s for reminder; reminder is lost: %v", id, err)
		return
	}
	if m.Status != model.StatusScheduled {
		s.release(id)
		log.Printf("Reminder for meeting %s skipped: status is %s", id, m.Status)
		return
	}
	s.deliver(m)
}

// deliver sends the reminder batch and marks the meeting notified. The
// transition happens once every participant was attempted, regardless of how
// many sends failed.
func (s *Scheduler) deliver(m *model.Meeting) {
	defer s.release(m.ID)

	report := s.dispatch.Reminder(s.ctx, m)

	moved, err := s.meetings.UpdateStatus(s.ctx, m.ID, model.StatusNotified)
	if err != nil {
		log.Printf("Error marking meeting %s as notified: %v", m.ID, err)
		return
	}
	if !moved {
		s.afterLostRace(m)
		return
	}
	s.sink.Emit(events.New(m, model.StatusNotified,
		fmt.Sprintf("Pengingat rapat %q dikirim ke %d dari %d peserta", m.Title, report.Delivered(), report.Attempted),
		s.clk.Now()))
}

// afterLostRace handles a meeting that left scheduled while its reminder was
// going out. Participants already got the reminder, so a cancelled or
// deleted meeting gets its cancellation notice here.
func (s *Scheduler) afterLostRace(m *model.Meeting) {
	current, err := s.meetings.Get(s.ctx, m.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		log.Printf("Error reloading meeting %s after reminder dispatch: %v", m.ID, err)
		return
	case current.Status != model.StatusCancelled:
		log.Printf("Meeting %s changed status during reminder dispatch; leaving it as is", m.ID)
		return
	}

	report := s.dispatch.Cancellation(s.ctx, m)
	log.Printf("Meeting %s was cancelled during reminder dispatch; cancellation notice reached %d/%d participants",
		m.ID, report.Delivered(), report.Attempted)
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.dispatching, id)
	s.mu.Unlock()
}
