package trading

import (
	"time"

	"paper-trader/internal/models"
)

// Indian market hours.
const (
	marketOpenHour    = 9
	marketOpenMinute  = 15
	marketCloseHour   = 15
	marketCloseMinute = 30
)

// SessionClock answers wall-clock questions about the trading day: whether
// the market is open, and where today's square-off cutoff and pre-close
// window fall. All answers are in the market's timezone.
type SessionClock struct {
	location        *time.Location
	holidays        map[string]bool
	squareOffHour   int
	squareOffMinute int
	preCloseWindow  time.Duration
}

// NewSessionClock creates a session clock with the given square-off cutoff
// and pre-close window length.
func NewSessionClock(squareOffHour, squareOffMinute int, preCloseWindow time.Duration) *SessionClock {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+30*60)
	}
	return &SessionClock{
		location:        loc,
		holidays:        make(map[string]bool),
		squareOffHour:   squareOffHour,
		squareOffMinute: squareOffMinute,
		preCloseWindow:  preCloseWindow,
	}
}

// AddHoliday marks a date as a market holiday.
func (c *SessionClock) AddHoliday(date time.Time) {
	c.holidays[date.In(c.location).Format("2006-01-02")] = true
}

// IsTradingDay reports whether t falls on a trading day.
func (c *SessionClock) IsTradingDay(t time.Time) bool {
	t = t.In(c.location)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !c.holidays[t.Format("2006-01-02")]
}

// IsMarketOpen reports whether the market is in its normal session at t.
func (c *SessionClock) IsMarketOpen(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	t = t.In(c.location)
	open := timeAt(t, marketOpenHour, marketOpenMinute)
	close := timeAt(t, marketCloseHour, marketCloseMinute)
	return !t.Before(open) && t.Before(close)
}

// SquareOffAt returns the square-off cutoff for the day containing t.
func (c *SessionClock) SquareOffAt(t time.Time) time.Time {
	return timeAt(t.In(c.location), c.squareOffHour, c.squareOffMinute)
}

// PreCloseStartAt returns the start of the pre-close window for the day
// containing t.
func (c *SessionClock) PreCloseStartAt(t time.Time) time.Time {
	return c.SquareOffAt(t).Add(-c.preCloseWindow)
}

// InPreCloseWindow reports whether t is inside the pre-close window,
// between the window start and the square-off cutoff.
func (c *SessionClock) InPreCloseWindow(t time.Time) bool {
	t = t.In(c.location)
	return !t.Before(c.PreCloseStartAt(t)) && t.Before(c.SquareOffAt(t))
}

// Status classifies t against the trading session.
func (c *SessionClock) Status(t time.Time) models.MarketStatus {
	if !c.IsTradingDay(t) {
		return models.MarketClosed
	}
	t = t.In(c.location)
	if t.Before(timeAt(t, marketOpenHour, marketOpenMinute)) {
		return models.MarketPreOpen
	}
	if c.InPreCloseWindow(t) {
		return models.MarketSquareOffWarning
	}
	if c.IsMarketOpen(t) {
		return models.MarketOpen
	}
	return models.MarketClosed
}

// Location returns the market timezone.
func (c *SessionClock) Location() *time.Location {
	return c.location
}

// timeAt creates a time on the same day at the specified hour and minute.
func timeAt(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}
