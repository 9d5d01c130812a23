package ics

import (
	"bytes"
	"errors"
	"fmt"

	ical "github.com/arran4/golang-ical"
)

// ErrInvalidDocument marks a rendered document that failed re-parsing.
var ErrInvalidDocument = errors.New("ics: invalid document")

// Verify re-parses a rendered document with an independent iCalendar
// parser and returns the number of events it contains. A document that
// does not survive the round trip is never handed to a sink: callers
// treat any error here as a failed conversion and produce no output.
func Verify(doc []byte) (int, error) {
	if len(doc) == 0 {
		return 0, fmt.Errorf("%w: empty body", ErrInvalidDocument)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(doc))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	events := cal.Events()
	for _, ve := range events {
		uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
		if uidProp == nil || uidProp.Value == "" {
			return 0, fmt.Errorf("%w: event missing UID", ErrInvalidDocument)
		}

		start, err := ve.GetStartAt()
		if err != nil {
			return 0, fmt.Errorf("%w: event %s: bad DTSTART: %v", ErrInvalidDocument, uidProp.Value, err)
		}
		end, err := ve.GetEndAt()
		if err != nil {
			return 0, fmt.Errorf("%w: event %s: bad DTEND: %v", ErrInvalidDocument, uidProp.Value, err)
		}
		if !start.Before(end) {
			return 0, fmt.Errorf("%w: event %s: start not before end", ErrInvalidDocument, uidProp.Value)
		}
	}

	return len(events), nil
}
