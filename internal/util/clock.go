package util

import "time"

// Clock supplies the current instant. Calendars never read the wall clock
// themselves; callers that want "today" pass a Clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock returns a SystemClock reporting instants in loc. A nil loc
// means the process-local zone.
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return SystemClock{Location: loc}
}

// Now returns the current instant in c.Location.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always reports the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
