package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmhodges/clock"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/internal/timeconv"
)

// Rules a reservation request can break. Every failure returned by
// Validate wraps exactly one of them.
var (
	ErrMissingField        = errors.New("missing required field")
	ErrUnknownRoom         = errors.New("unknown room")
	ErrBadFormat           = errors.New("malformed date or time")
	ErrInvertedRange       = errors.New("end time must be after start time")
	ErrTooShort            = errors.New("meeting is too short")
	ErrPastStart           = errors.New("start time must be in the future")
	ErrInvalidParticipants = errors.New("invalid participant numbers")
)

// DefaultMinDuration is the shortest bookable slot.
const DefaultMinDuration = 15 * time.Minute

var (
	phoneRe   = regexp.MustCompile(`^(?:\+?62|0)?[0-9]{8,15}$`)
	nonDigits = regexp.MustCompile(`[^0-9]`)
)

// Error describes a rejected request.
type Error struct {
	Rule    error
	Message string
	Invalid []string // offending participants or missing field names
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Rule.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Rule
}

// Request carries the fields of a create or update call.
type Request struct {
	Title        string
	Participants []string
	Room         string
	Date         string
	StartTime    string
	EndTime      string
}

// Validator checks reservation requests against the booking rules.
type Validator struct {
	rooms       map[string]struct{}
	minDuration time.Duration
	conv        *timeconv.Converter
	clk         clock.Clock
}

// New creates a Validator. A zero minDuration uses DefaultMinDuration.
func New(rooms []string, minDuration time.Duration, conv *timeconv.Converter, clk clock.Clock) *Validator {
	if minDuration <= 0 {
		minDuration = DefaultMinDuration
	}
	set := make(map[string]struct{}, len(rooms))
	for _, r := range rooms {
		set[r] = struct{}{}
	}
	return &Validator{rooms: set, minDuration: minDuration, conv: conv, clk: clk}
}

// Validate applies the rules in order and returns the first failure.
func (v *Validator) Validate(req Request) error {
	if missing := missingFields(req); len(missing) > 0 {
		return &Error{
			Rule:    ErrMissingField,
			Message: fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
			Invalid: missing,
		}
	}

	if !v.KnownRoom(req.Room) {
		return &Error{Rule: ErrUnknownRoom, Message: fmt.Sprintf("unknown room %q", req.Room)}
	}

	start, err := v.conv.ToEpoch(req.Date, req.StartTime)
	if err != nil {
		return &Error{Rule: ErrBadFormat, Message: err.Error()}
	}
	end, err := v.conv.ToEpoch(req.Date, req.EndTime)
	if err != nil {
		return &Error{Rule: ErrBadFormat, Message: err.Error()}
	}

	if end <= start {
		return &Error{
			Rule:    ErrInvertedRange,
			Message: fmt.Sprintf("end time %s must be after start time %s", req.EndTime, req.StartTime),
		}
	}

	if d := time.Duration(end-start) * time.Millisecond; d < v.minDuration {
		return &Error{
			Rule:    ErrTooShort,
			Message: fmt.Sprintf("meeting lasts %s; the minimum is %s", d, v.minDuration),
		}
	}

	if start <= v.clk.Now().UnixMilli() {
		return &Error{
			Rule:    ErrPastStart,
			Message: fmt.Sprintf("start %s %s is not in the future", req.Date, req.StartTime),
		}
	}

	var invalid []string
	for _, p := range req.Participants {
		if !ValidPhone(p) {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return &Error{
			Rule:    ErrInvalidParticipants,
			Message: fmt.Sprintf("invalid participant numbers: %s", strings.Join(invalid, ", ")),
			Invalid: invalid,
		}
	}
	return nil
}

// KnownRoom reports whether room belongs to the configured pool.
func (v *Validator) KnownRoom(room string) bool {
	_, ok := v.rooms[room]
	return ok
}

func missingFields(req Request) []string {
	var missing []string
	if strings.TrimSpace(req.Title) == "" {
		missing = append(missing, "title")
	}
	if len(req.Participants) == 0 {
		missing = append(missing, "participants")
	}
	if strings.TrimSpace(req.Room) == "" {
		missing = append(missing, "room")
	}
	if strings.TrimSpace(req.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(req.StartTime) == "" {
		missing = append(missing, "startTime")
	}
	if strings.TrimSpace(req.EndTime) == "" {
		missing = append(missing, "endTime")
	}
	return missing
}

// NormalizePhone strips everything but digits, keeping a leading "+".
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	plus := strings.HasPrefix(s, "+")
	s = nonDigits.ReplaceAllString(s, "")
	if plus {
		return "+" + s
	}
	return s
}

// ValidPhone reports whether raw is an acceptable participant number.
func ValidPhone(raw string) bool {
	return phoneRe.MatchString(NormalizePhone(raw))
}
