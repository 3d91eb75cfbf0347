package conflict

import (
	"context"
	"fmt"
	"log"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/model"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/store"
	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/timeconv"
)

// Lister is the slice of the meeting store the checker reads from.
type Lister interface {
	ListActiveInRoom(ctx context.Context, room, date, excludeID string) ([]model.Meeting, error)
}

var _ Lister = (store.MeetingStore)(nil)

// Checker finds active reservations overlapping a requested slot.
type Checker struct {
	meetings Lister
	conv     *timeconv.Converter
}

// NewChecker creates a conflict checker.
func NewChecker(meetings Lister, conv *timeconv.Converter) *Checker {
	return &Checker{meetings: meetings, conv: conv}
}

// FindConflict returns the first active meeting in room on date whose
// [start, end) overlaps the requested window, or nil when the slot is free.
// excludeID skips the meeting being edited.
func (c *Checker) FindConflict(ctx context.Context, room, date, start, end, excludeID string) (*model.Meeting, error) {
	newStart, err := c.conv.Minutes(start)
	if err != nil {
		return nil, err
	}
	newEnd, err := c.conv.Minutes(end)
	if err != nil {
		return nil, err
	}

	candidates, err := c.meetings.ListActiveInRoom(ctx, room, date, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load meetings for conflict check: %w", err)
	}

	for i := range candidates {
		cand := &candidates[i]
		candStart, err := c.conv.Minutes(cand.StartTime)
		if err != nil {
			log.Printf("Warning: meeting %s has malformed start time %q; skipping in conflict check", cand.ID, cand.StartTime)
			continue
		}
		candEnd, err := c.conv.Minutes(cand.EndTime)
		if err != nil {
			log.Printf("Warning: meeting %s has malformed end time %q; skipping in conflict check", cand.ID, cand.EndTime)
			continue
		}
		if Overlaps(newStart, newEnd, candStart, candEnd) {
			return cand, nil
		}
	}
	return nil, nil
}

// Overlaps reports whether half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
