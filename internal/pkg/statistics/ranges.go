package statistics

import (
	"strings"
	"time"
)

const (
	PresetAllTime   = "all_time"
	PresetToday     = "today"
	PresetYesterday = "yesterday"
	PresetThisWeek  = "this_week"
	PresetLastWeek  = "last_week"
	PresetThisMonth = "this_month"
	PresetLastMonth = "last_month"
	PresetThisYear  = "this_year"
	PresetLastYear  = "last_year"
	PresetCustom    = "custom"
)

const dateLayout = "2006-01-02"

// Preset is a selectable reporting window.
type Preset struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Presets lists the windows in display order.
var Presets = []Preset{
	{PresetAllTime, "All time"},
	{PresetToday, "Today"},
	{PresetYesterday, "Yesterday"},
	{PresetThisWeek, "This week"},
	{PresetLastWeek, "Last week"},
	{PresetThisMonth, "This month"},
	{PresetLastMonth, "Last month"},
	{PresetThisYear, "This year"},
	{PresetLastYear, "Last year"},
	{PresetCustom, "Custom"},
}

// Range is an inclusive window of unix seconds. A nil bound is open.
type Range struct {
	Preset string `json:"preset"`
	Start  *int64 `json:"start,omitempty"`
	End    *int64 `json:"end,omitempty"`
}

// ResolveRange turns a preset (and, for "custom", two YYYY-MM-DD dates) into
// a UTC window. "This" windows end at now; "last" windows cover the whole
// previous period. A custom end is clamped to now. Unknown presets and
// unparsable custom dates give an unbounded range.
func ResolveRange(preset, startDate, endDate string, now time.Time) Range {
	now = now.UTC()
	preset = strings.TrimSpace(preset)
	if preset == "" {
		preset = PresetAllTime
	}
	r := Range{Preset: preset}

	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	bounded := func(start, end time.Time) Range {
		s, e := start.Unix(), end.Unix()
		r.Start, r.End = &s, &e
		return r
	}
	// Monday is the first day of the week.
	weekStart := day(now).AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	switch preset {
	case PresetToday:
		return bounded(day(now), now)
	case PresetYesterday:
		start := day(now).AddDate(0, 0, -1)
		return bounded(start, start.AddDate(0, 0, 1).Add(-time.Second))
	case PresetThisWeek:
		return bounded(weekStart, now)
	case PresetLastWeek:
		start := weekStart.AddDate(0, 0, -7)
		return bounded(start, weekStart.Add(-time.Second))
	case PresetThisMonth:
		return bounded(monthStart, now)
	case PresetLastMonth:
		return bounded(monthStart.AddDate(0, -1, 0), monthStart.Add(-time.Second))
	case PresetThisYear:
		return bounded(yearStart, now)
	case PresetLastYear:
		return bounded(yearStart.AddDate(-1, 0, 0), yearStart.Add(-time.Second))
	case PresetCustom:
		start, err1 := time.ParseInLocation(dateLayout, strings.TrimSpace(startDate), time.UTC)
		end, err2 := time.ParseInLocation(dateLayout, strings.TrimSpace(endDate), time.UTC)
		if err1 != nil || err2 != nil {
			return r
		}
		end = end.AddDate(0, 0, 1).Add(-time.Second)
		if end.After(now) {
			end = now
		}
		return bounded(start, end)
	}
	return r
}
