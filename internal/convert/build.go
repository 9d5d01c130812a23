package convert

import (
	"fmt"

	"uniscal/internal/ics"
	appLog "uniscal/internal/log"
	"uniscal/internal/model"
)

// Result is a completed conversion: the rendered document plus the event
// records it was rendered from.
type Result struct {
	Document []byte
	Events   []model.CalendarEvent
	Report   Report
}

// BuildCalendar runs the whole pipeline: map the timetable, render the
// document, then re-parse the rendered bytes as a final gate. On any
// failure no document is returned at all, so callers can never hand a
// partial or corrupt calendar to a sink.
func BuildCalendar(data *model.TimetableData, opts Options, bopts ics.BuilderOptions) (*Result, error) {
	events, rep, err := MapTimetable(data, opts)
	if err != nil {
		return nil, err
	}

	b := ics.NewBuilder(bopts)
	for _, ev := range events {
		b.AddEvent(ev)
	}
	doc := b.Bytes()

	n, err := ics.Verify(doc)
	if err != nil {
		return nil, err
	}
	if n != len(events) {
		return nil, fmt.Errorf("convert: rendered %d events but re-parsed %d", len(events), n)
	}

	appLog.Debug("calendar built",
		"events", len(events),
		"periodic", rep.Periodic,
		"block", rep.Block,
		"skipped", rep.Skipped,
		"bytes", len(doc),
	)

	return &Result{
		Document: doc,
		Events:   events,
		Report:   rep,
	}, nil
}
