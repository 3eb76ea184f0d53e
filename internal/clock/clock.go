// internal/clock/clock.go

// Package clock supplies the current calendar date to the circulation engine.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
)

// Clock reports today's date.
type Clock interface {
	Today() civil.Date
}

// System reads the wall clock and reports the date in its location.
type System struct {
	loc *time.Location
	now func() time.Time
}

// NewSystem returns a system clock for loc. A nil loc means time.Local.
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.Local
	}
	return &System{loc: loc, now: time.Now}
}

func (c *System) Today() civil.Date {
	return civil.DateOf(c.now().In(c.loc))
}

// Fixed always reports the date it was last set to. It is safe for
// concurrent use, so tests can move it while handlers read it.
type Fixed struct {
	mu    sync.RWMutex
	today civil.Date
}

func NewFixed(d civil.Date) *Fixed {
	return &Fixed{today: d}
}

func (c *Fixed) Today() civil.Date {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.today
}

// Set moves the clock to d.
func (c *Fixed) Set(d civil.Date) {
	c.mu.Lock()
	c.today = d
	c.mu.Unlock()
}

// Advance moves the clock forward by days (backwards when negative).
func (c *Fixed) Advance(days int) civil.Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.today = c.today.AddDays(days)
	return c.today
}

// Parse builds a clock from its configuration form: "system" (or empty),
// "fixed:YYYY-MM-DD", or a bare "YYYY-MM-DD" which is also fixed.
func Parse(value string, loc *time.Location) (Clock, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "" || strings.EqualFold(value, "system"):
		return NewSystem(loc), nil
	case strings.HasPrefix(strings.ToLower(value), "fixed:"):
		value = strings.TrimSpace(value[len("fixed:"):])
	}

	d, err := civil.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("invalid clock %q: %w", value, err)
	}
	return NewFixed(d), nil
}
