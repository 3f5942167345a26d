package model

import "time"

// DayLayout is the canonical day format used in IDs, prompts and storage.
const DayLayout = "2006-01-02"

type Event struct {
	Country string    `json:"country"`
	Time    time.Time `json:"time"`
	Tone    float64   `json:"tone"`
	Label   string    `json:"label"`
	Actors  []string  `json:"actors,omitempty"`
	URL     string    `json:"url,omitempty"`
}

// Day truncates the event timestamp to its UTC calendar day.
func (e Event) Day() time.Time {
	return TruncateDay(e.Time)
}

func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Window is an inclusive range of days.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewWindow(start, end time.Time) Window {
	return Window{Start: TruncateDay(start), End: TruncateDay(end)}
}

// LookbackWindow returns the window of n days ending on (and including) end.
func LookbackWindow(end time.Time, days int) Window {
	if days < 1 {
		days = 1
	}
	end = TruncateDay(end)
	return Window{Start: end.AddDate(0, 0, -(days - 1)), End: end}
}

func (w Window) Contains(day time.Time) bool {
	day = TruncateDay(day)
	return !day.Before(w.Start) && !day.After(w.End)
}

func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.Before(w.Start)
}

func (w Window) String() string {
	return w.Start.Format(DayLayout) + ".." + w.End.Format(DayLayout)
}

// Key identifies a (country, day) partition.
type Key struct {
	Country string    `json:"country"`
	Day     time.Time `json:"day"`
}

func (k Key) ID() string {
	return DocumentID(k.Country, k.Day)
}

func (k Key) String() string {
	return k.ID()
}

// DocumentID renders the "<country>-<day>" identifier of a partition.
func DocumentID(country string, day time.Time) string {
	return country + "-" + TruncateDay(day).Format(DayLayout)
}
