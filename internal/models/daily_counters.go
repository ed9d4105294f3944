package models

import "time"

// DayFormat is the layout used for DailyCounters.Date
const DayFormat = "2006-01-02"

// DailyCounters holds per-calendar-day action tallies
type DailyCounters struct {
	Date           string `json:"date"`
	Likes          int    `json:"likes"`
	Follows        int    `json:"follows"`
	Harvests       int    `json:"harvests"`
	ProspectsAdded int    `json:"prospectsAdded"`
}

// DayKey returns the local calendar day for t
func DayKey(t time.Time) string {
	return t.Format(DayFormat)
}

// NextMidnight returns the next local midnight after t
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// CounterDelta is an increment applied to DailyCounters
type CounterDelta struct {
	Likes          int
	Follows        int
	Harvests       int
	ProspectsAdded int
}
