package nutrition

import (
	"sort"
	"time"
)

const DateLayout = "2006-01-02"

type DayGroup struct {
	Date   string `json:"date"`
	Label  string `json:"label"`
	Meals  []Meal `json:"meals"`
	Totals Macros `json:"totals"`
}

// GroupByDay buckets meals by calendar day in loc. Groups come back newest
// day first and the meals inside each group newest first.
func GroupByDay(meals []Meal, now time.Time, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	groups := make([]DayGroup, 0)
	index := make(map[string]int)

	for _, meal := range meals {
		key := meal.DateTime.In(loc).Format(DateLayout)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{
				Date:  key,
				Label: DayLabel(meal.DateTime, now, loc),
				Meals: []Meal{},
			})
		}
		groups[i].Meals = append(groups[i].Meals, meal)
		groups[i].Totals = groups[i].Totals.Add(meal.Totals())
	}

	for i := range groups {
		sort.SliceStable(groups[i].Meals, func(a, b int) bool {
			return groups[i].Meals[a].DateTime.After(groups[i].Meals[b].DateTime)
		})
	}
	// YYYY-MM-DD sorts chronologically as text.
	sort.Slice(groups, func(a, b int) bool { return groups[a].Date > groups[b].Date })
	return groups
}

// DayLabel names a day relative to now: "Today", "Yesterday", or the full
// English date.
func DayLabel(t, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	day := t.In(loc)
	today := now.In(loc)
	yesterday := today.AddDate(0, 0, -1)
	switch day.Format(DateLayout) {
	case today.Format(DateLayout):
		return "Today"
	case yesterday.Format(DateLayout):
		return "Yesterday"
	}
	return day.Format("Monday, January 2, 2006")
}

// DayBounds returns [start of day, start of next day) for date in loc.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseDateTime accepts RFC 3339 and the zone-less forms an HTML
// datetime-local input produces; the latter are read in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{Field: "datetime", Reason: "must be RFC 3339 or YYYY-MM-DDTHH:MM"}
}

// ParseDate reads a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return t, nil
}
