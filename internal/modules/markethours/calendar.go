// Package markethours answers "is this market open right now", with a
// hard-coded US holiday calendar and separate regular/extended trading
// windows for KR and US. Grounded on trader-go's
// internal/scheduler/market_hours.go (ExchangeCalendar + TradingWindow +
// weekend/holiday/window checks), narrowed from that file's dozen
// exchanges down to the two this engine actually trades, and extended
// with an explicit regular-vs-extended window distinction (the teacher
// only models one conservative core window per exchange).
package markethours

import (
	"sync"
	"time"

	"github.com/aristath/arduino-trader/internal/domain"
)

// Window is one open/close pair expressed in market-local minutes.
type Window struct {
	OpenHour, OpenMinute   int
	CloseHour, CloseMinute int
}

func (w Window) containsMinutes(m int) bool {
	open := w.OpenHour*60 + w.OpenMinute
	close := w.CloseHour*60 + w.CloseMinute
	return m >= open && m < close
}

// Calendar reports market-open status for KR and US, applying weekday,
// holiday, and trading-window rules independently per market.
type Calendar struct {
	krLoc *time.Location
	usLoc *time.Location

	krRegular  Window
	krExtended Window
	usRegular  Window
	usExtended Window

	mu       sync.Mutex
	holidays map[int][]time.Time // US holidays, memoized per year
}

// New builds a calendar using Asia/Seoul and America/New_York, falling
// back to fixed UTC offsets if the tzdata lookup fails (minimal
// containers sometimes ship without it).
func New() *Calendar {
	krLoc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		krLoc = time.FixedZone("KST", 9*60*60)
	}
	usLoc, err := time.LoadLocation("America/New_York")
	if err != nil {
		usLoc = time.FixedZone("EST", -5*60*60)
	}

	return &Calendar{
		krLoc:      krLoc,
		usLoc:      usLoc,
		krRegular:  Window{9, 0, 15, 30},
		krExtended: Window{9, 0, 18, 0},
		usRegular:  Window{9, 30, 16, 0},
		usExtended: Window{4, 0, 20, 0},
		holidays:   make(map[int][]time.Time),
	}
}

// IsOpen reports whether market is within its regular trading window
// right now, excluding weekends and (for US) holidays.
func (c *Calendar) IsOpen(market domain.Market, at time.Time) bool {
	return c.isOpen(market, at, false)
}

// IsOpenExtended reports whether market is within its extended trading
// window (used when the allow-extended-hours setting is on).
func (c *Calendar) IsOpenExtended(market domain.Market, at time.Time) bool {
	return c.isOpen(market, at, true)
}

func (c *Calendar) isOpen(market domain.Market, at time.Time, extended bool) bool {
	loc := c.krLoc
	window := c.krRegular
	if extended {
		window = c.krExtended
	}
	if market == domain.MarketUS {
		loc = c.usLoc
		window = c.usRegular
		if extended {
			window = c.usExtended
		}
	}

	local := at.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	if market == domain.MarketUS && c.isUSHoliday(local) {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	return window.containsMinutes(minutes)
}

func (c *Calendar) isUSHoliday(local time.Time) bool {
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	for _, h := range c.usHolidaysForYear(local.Year()) {
		if h.Equal(day) {
			return true
		}
	}
	return false
}

func (c *Calendar) usHolidaysForYear(year int) []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.holidays[year]; ok {
		return cached
	}
	list := buildUSHolidays(year, c.usLoc)
	c.holidays[year] = list
	return list
}

// buildUSHolidays computes the fixed NYSE-style holiday set for a given
// year: New Year's Day, MLK Day, Good Friday, Memorial Day, Juneteenth
// (observed from 2022 onward), Independence Day (with observed-day
// shift on weekends), Labor Day, Thanksgiving, and Christmas.
func buildUSHolidays(year int, loc *time.Location) []time.Time {
	date := func(month time.Month, day int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	}

	holidays := []time.Time{
		date(time.January, 1),
		nthWeekday(year, time.January, time.Monday, 3, loc),     // MLK Day
		goodFriday(year, loc),
		lastWeekday(year, time.May, time.Monday, loc),           // Memorial Day
		nthWeekday(year, time.September, time.Monday, 1, loc),   // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4, loc), // Thanksgiving
		date(time.December, 25),
		independenceDayObserved(year, loc),
	}

	if year >= 2022 {
		holidays = append(holidays, date(time.June, 19)) // Juneteenth, federal holiday from 2022
	}

	return holidays
}

// independenceDayObserved returns July 4, or the nearest weekday if it
// falls on a weekend (Friday before a Saturday holiday, Monday after a
// Sunday holiday).
func independenceDayObserved(year int, loc *time.Location) time.Time {
	july4 := time.Date(year, time.July, 4, 0, 0, 0, 0, loc)
	switch july4.Weekday() {
	case time.Saturday:
		return july4.AddDate(0, 0, -1)
	case time.Sunday:
		return july4.AddDate(0, 0, 1)
	default:
		return july4
	}
}

// nthWeekday returns the nth occurrence of weekday in month (1-indexed).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + (n-1)*7
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// lastWeekday returns the last occurrence of weekday in month.
func lastWeekday(year int, month time.Month, weekday time.Weekday, loc *time.Location) time.Time {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	last := firstOfNext.AddDate(0, 0, -1)
	for last.Weekday() != weekday {
		last = last.AddDate(0, 0, -1)
	}
	return last
}

// goodFriday computes Good Friday (Easter Sunday minus two days) using
// the anonymous Gregorian algorithm, since the date moves every year
// and the teacher's calendar hardcodes it per-year instead.
func goodFriday(year int, loc *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	return easter.AddDate(0, 0, -2)
}
