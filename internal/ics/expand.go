package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "uniscal/internal/log"
	"uniscal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls how occurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone all occurrences are converted into.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of an event within the window.
type Occurrence struct {
	Summary  string
	Location string
	Kind     string
	Start    time.Time
	End      time.Time
}

// ExpandResult wraps the expanded occurrences plus the summaries of
// events whose rules hit the per-event cap.
type ExpandResult struct {
	Occurrences []Occurrence
	Truncated   []string
}

// Expand evaluates each event's recurrence rule inside the window and
// returns the concrete occurrences sorted by start time. One-off events
// contribute themselves when they overlap the window. Events whose rule
// fails to parse are logged and skipped; the rest still expand.
func Expand(events []model.CalendarEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	occurrences := make([]Occurrence, 0)

	for _, ev := range events {
		if ev.RRule == "" {
			if timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				occurrences = append(occurrences, makeOccurrence(ev, ev.Start, cfg.DisplayLocation))
			}
			continue
		}

		r, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			appLog.Error("expand: failed to parse RRULE", err, "summary", ev.Summary, "rrule", ev.RRule)
			continue
		}
		r.DTStart(ev.Start)

		var set rrule.Set
		set.RRule(r)

		// Adjust the window into the event's own location for Between().
		rangeStart := cfg.RangeStart.In(ev.Start.Location())
		rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

		occTimes := set.Between(rangeStart, rangeEnd, true)
		if len(occTimes) > cfg.MaxOccurrencesPerEvent {
			occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
			result.Truncated = append(result.Truncated, ev.Summary)
			appLog.Warn("expand: occurrences truncated",
				"summary", ev.Summary,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}

		for _, occStart := range occTimes {
			occurrences = append(occurrences, makeOccurrence(ev, occStart, cfg.DisplayLocation))
		}
	}

	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})

	result.Occurrences = occurrences
	return result, nil
}

// makeOccurrence converts an event plus one concrete start into an
// Occurrence normalized into displayLoc, preserving the event duration.
func makeOccurrence(ev model.CalendarEvent, start time.Time, displayLoc *time.Location) Occurrence {
	dur := ev.End.Sub(ev.Start)
	return Occurrence{
		Summary:  ev.Summary,
		Location: ev.Location,
		Kind:     ev.Kind.Class.String(),
		Start:    start.In(displayLoc),
		End:      start.Add(dur).In(displayLoc),
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
