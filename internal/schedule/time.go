// Package schedule converts between the wall-clock form users author in
// (date + time + IANA zone) and the absolute instants everything else runs
// on. Due-ness is always decided on the absolute instant.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DefaultRepostOffset is used when a repost is added without an explicit
// time: 24h after the previous repost, or after the parent post itself.
const DefaultRepostOffset = 24 * time.Hour

// ToInstant interprets the date/time pair as local time in the named zone and
// returns the corresponding UTC instant. Inputs falling into a DST gap or
// fold resolve through the zone database's normalization rather than failing.
func ToInstant(date, clock, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown timezone %q: %w", zone, err)
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	c, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	local := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)
	return local.UTC(), nil
}

// FromInstant is the inverse of ToInstant, for display and editing.
func FromInstant(t time.Time, zone string) (date, clock string, err error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", "", fmt.Errorf("unknown timezone %q: %w", zone, err)
	}
	local := t.In(loc)
	return local.Format(DateLayout), local.Format(TimeLayout), nil
}

// IsDue reports whether the instant has passed. The boundary counts: an item
// scheduled for exactly now is due.
func IsDue(t, now time.Time) bool {
	return !t.After(now)
}

// NextRepostAt returns the default instant for a newly added repost: 24h
// after the last existing repost, or after the parent post when there is
// none.
func NextRepostAt(parent time.Time, existing []time.Time) time.Time {
	if len(existing) == 0 {
		return parent.Add(DefaultRepostOffset)
	}
	return existing[len(existing)-1].Add(DefaultRepostOffset)
}

// ValidateFuture rejects instants already in the past. This is authoring-time
// validation; the store itself accepts any instant.
func ValidateFuture(t, now time.Time) error {
	if t.Before(now) {
		return errors.New("cannot schedule in the past")
	}
	return nil
}
