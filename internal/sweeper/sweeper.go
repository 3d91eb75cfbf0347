package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmhodges/clock"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/events"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
)

// DefaultInterval is the delay between two sweeps.
const DefaultInterval = 5 * time.Second

// MeetingStore is the part of the store the sweeper needs.
type MeetingStore interface {
	ListActive(ctx context.Context) ([]model.Meeting, error)
	UpdateStatus(ctx context.Context, id string, next model.Status) (bool, error)
}

// JobCanceller drops a pending reminder job. The reminder scheduler
// satisfies it.
type JobCanceller interface {
	Cancel(id string) bool
}

// Sweeper marks meetings completed once their end time has passed.
type Sweeper struct {
	meetings MeetingStore
	sink     events.Sink
	clk      clock.Clock
	interval time.Duration
	jobs     JobCanceller
}

// New creates a sweeper. A nil sink discards events, a nil clk uses the wall
// clock and jobs may be nil.
func New(meetings MeetingStore, sink events.Sink, clk clock.Clock, interval time.Duration, jobs JobCanceller) *Sweeper {
	if sink == nil {
		sink = events.Discard{}
	}
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{meetings: meetings, sink: sink, clk: clk, interval: interval, jobs: jobs}
}

// Run sweeps once, then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("Starting expiry sweeper (every %s)...", s.interval)

	s.sweepAndLog(ctx)

	timer := s.clk.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry sweeper shutting down.")
			return
		case <-timer.C:
			s.sweepAndLog(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	n, err := s.SweepOnce(ctx)
	if err != nil {
		// Retried on the next tick.
		log.Printf("Error during sweep: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Sweep completed %d meetings", n)
	}
}

// SweepOnce completes every active meeting whose end lies in the past and
// returns how many rows moved. One event is emitted per moved row.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	active, err := s.meetings.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active meetings: %w", err)
	}

	now := s.clk.Now()
	completed := 0
	for i := range active {
		m := &active[i]
		if !now.After(m.End()) {
			continue
		}

		moved, err := s.meetings.UpdateStatus(ctx, m.ID, model.StatusCompleted)
		if err != nil {
			log.Printf("Error completing meeting %s: %v", m.ID, err)
			continue
		}
		if s.jobs != nil {
			s.jobs.Cancel(m.ID)
		}
		if !moved {
			// Cancelled or completed concurrently.
			continue
		}
		completed++
		s.sink.Emit(events.New(m, model.StatusCompleted,
			fmt.Sprintf("Rapat %q di %s telah selesai", m.Title, m.Room), now))
	}
	return completed, nil
}
