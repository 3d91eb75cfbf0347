package timeconv

import (
	"fmt"
	"log"
	"time"
)

// Layouts of the date and time-of-day strings meetings are booked with.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// WIB is the fixed UTC+7 zone meetings are booked in by default.
var WIB = time.FixedZone("WIB", 7*60*60)

// FormatError reports a date or time-of-day string that could not be parsed.
type FormatError struct {
	Field string
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// Converter maps local wall-clock fields to epoch milliseconds and back.
type Converter struct {
	loc *time.Location
}

// New returns a converter bound to loc. A nil loc means WIB.
func New(loc *time.Location) *Converter {
	if loc == nil {
		loc = WIB
	}
	return &Converter{loc: loc}
}

// NewFromName loads an IANA zone by name, falling back to WIB when the
// name is empty or the zone database does not know it.
func NewFromName(name string) *Converter {
	if name == "" {
		return New(WIB)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("Warning: failed to load timezone %q: %v. Using WIB (UTC+7).", name, err)
		return New(WIB)
	}
	return New(loc)
}

// Location returns the zone local fields are interpreted in.
func (c *Converter) Location() *time.Location {
	return c.loc
}

// ToEpoch interprets date (YYYY-MM-DD) and clock (HH:mm) in the converter's
// zone and returns milliseconds since the Unix epoch.
func (c *Converter) ToEpoch(date, clock string) (int64, error) {
	d, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return 0, &FormatError{Field: "date", Value: date}
	}
	hm, err := c.Minutes(clock)
	if err != nil {
		return 0, err
	}
	t := time.Date(d.Year(), d.Month(), d.Day(), hm/60, hm%60, 0, 0, c.loc)
	return t.UnixMilli(), nil
}

// ToLocal is the inverse of ToEpoch.
func (c *Converter) ToLocal(epochMs int64) (date, clock string) {
	t := time.UnixMilli(epochMs).In(c.loc)
	return t.Format(DateLayout), t.Format(ClockLayout)
}

// Minutes returns the minutes since midnight of an HH:mm string.
func (c *Converter) Minutes(clock string) (int, error) {
	t, err := time.Parse(ClockLayout, clock)
	if err != nil || len(clock) != len(ClockLayout) {
		return 0, &FormatError{Field: "time", Value: clock}
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ZoneName is the abbreviation shown next to times in messages, e.g. "WIB".
func (c *Converter) ZoneName(epochMs int64) string {
	name, _ := time.UnixMilli(epochMs).In(c.loc).Zone()
	return name
}

// FormatWindow renders "HH:mm - HH:mm ZONE" for a pair of epochs.
func (c *Converter) FormatWindow(startMs, endMs int64) string {
	_, start := c.ToLocal(startMs)
	_, end := c.ToLocal(endMs)
	return fmt.Sprintf("%s - %s %s", start, end, c.ZoneName(startMs))
}
