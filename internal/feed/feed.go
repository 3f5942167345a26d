// Package feed reads upstream event records from JSON Lines.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/logger"
)

// record is the wire shape. Time accepts RFC 3339, YYYY-MM-DD or the
// compact YYYYMMDD / YYYYMMDDhhmmss forms used by GDELT exports.
type record struct {
	Country string   `json:"country"`
	Time    string   `json:"time"`
	Tone    *float64 `json:"tone"`
	Label   string   `json:"label"`
	Actors  []string `json:"actors"`
	URL     string   `json:"url"`
}

var timeLayouts = []string{time.RFC3339Nano, model.DayLayout, "20060102150405", "20060102"}

type Reader struct {
	// Window, when set, drops events outside it instead of handing them on.
	Window *model.Window
	log    *logger.Logger
}

func NewReader(window *model.Window, log *logger.Logger) *Reader {
	return &Reader{Window: window, log: logger.OrNop(log).With("component", "feed")}
}

func (r *Reader) ReadFile(ctx context.Context, path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed '%s': %w", path, err)
	}
	defer f.Close()
	return r.Read(ctx, f)
}

// Read parses one event per line. Blank lines are ignored; a malformed line
// fails the read with its line number.
func (r *Reader) Read(ctx context.Context, in io.Reader) ([]model.Event, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var events []model.Event
	dropped := 0
	line := 0
	for sc.Scan() {
		line++
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		e, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed line %d: %w", line, err)
		}
		if r.Window != nil && !r.Window.Contains(e.Time) {
			dropped++
			continue
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	r.log.Info("read events", "events", len(events), "dropped_outside_window", dropped)
	return events, nil
}

func parseLine(text string) (model.Event, error) {
	var rec record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return model.Event{}, err
	}
	country := strings.ToUpper(strings.TrimSpace(rec.Country))
	if country == "" {
		return model.Event{}, fmt.Errorf("missing country")
	}
	if rec.Tone == nil {
		return model.Event{}, fmt.Errorf("missing tone")
	}
	t, err := parseTime(rec.Time)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		Country: country,
		Time:    t,
		Tone:    *rec.Tone,
		Label:   strings.TrimSpace(rec.Label),
		Actors:  rec.Actors,
		URL:     strings.TrimSpace(rec.URL),
	}, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
