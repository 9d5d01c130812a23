package ics

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"uniscal/internal/model"
)

// icsTimeLayout is the compact UTC timestamp form used for DTSTART/DTEND
// values and RRULE UNTIL bounds.
const icsTimeLayout = "20060102T150405Z"

const (
	defaultProdID    = "-//uniscal//Timetable Export//EN"
	defaultUIDDomain = "uniscal"
)

// BuilderOptions configures document identity and UID generation.
type BuilderOptions struct {
	// ProdID names the generator in the VCALENDAR header.
	ProdID string

	// UIDDomain is the suffix appended to every event UID.
	UIDDomain string

	// NewUID produces the unique part of an event UID. Defaults to a
	// random UUID; tests inject a deterministic source to assert exact
	// output bytes.
	NewUID func() string
}

func (o *BuilderOptions) normalize() {
	if o.ProdID == "" {
		o.ProdID = defaultProdID
	}
	if o.UIDDomain == "" {
		o.UIDDomain = defaultUIDDomain
	}
	if o.NewUID == nil {
		o.NewUID = uuid.NewString
	}
}

// Builder collects calendar events and renders them as an iCalendar
// document. Events are stored as immutable records; Render is a pure
// function of the collected state and is safe to call repeatedly.
type Builder struct {
	opts   BuilderOptions
	events []eventRecord
}

type eventRecord struct {
	ev  model.CalendarEvent
	uid string
}

// NewBuilder returns a Builder for one document. Builders are single-use:
// collect events, render, discard.
func NewBuilder(opts BuilderOptions) *Builder {
	opts.normalize()
	return &Builder{opts: opts}
}

// AddEvent registers one event. The UID is assigned here, so repeated
// renders of the same builder produce identical bytes.
func (b *Builder) AddEvent(ev model.CalendarEvent) {
	b.events = append(b.events, eventRecord{
		ev:  ev,
		uid: b.opts.NewUID() + "@" + b.opts.UIDDomain,
	})
}

// Len returns the number of registered events.
func (b *Builder) Len() int { return len(b.events) }

// Render produces the complete document text. Every line is CRLF-joined
// and the final END:VCALENDAR carries no trailing line break.
func (b *Builder) Render() string {
	lines := make([]string, 0, 6+len(b.events)*16)
	lines = append(lines,
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:"+b.opts.ProdID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	)
	for _, rec := range b.events {
		lines = appendEventLines(lines, rec)
	}
	lines = append(lines, "END:VCALENDAR")
	return strings.Join(lines, "\r\n")
}

// Bytes renders the document as UTF-8 bytes ready for a sink.
func (b *Builder) Bytes() []byte { return []byte(b.Render()) }

// appendEventLines renders one VEVENT block. The property order is part
// of the output contract and must not change.
func appendEventLines(lines []string, rec eventRecord) []string {
	ev := rec.ev
	pal := paletteFor(ev.Kind.Class)

	lines = append(lines,
		"BEGIN:VEVENT",
		"DTSTART:"+FormatUTC(ev.Start),
		"DTEND:"+FormatUTC(ev.End),
		"SUMMARY:"+EscapeText(ev.Summary),
		"LOCATION:"+EscapeText(ev.Location),
		"DESCRIPTION:"+EscapeText(ev.Description),
		"COLOR:"+pal.color,
		"X-APPLE-CALENDAR-COLOR:#"+pal.appleHex,
		"X-GOOGLE-CALENDAR-COLOR:"+pal.googleCode,
		"CATEGORIES:"+EscapeText(ev.Kind.Label),
		"X-MICROSOFT-CDO-BUSYSTATUS:BUSY",
		"TRANSP:OPAQUE",
	)
	if ev.RRule != "" {
		lines = append(lines, "RRULE:"+ev.RRule)
	}
	return append(lines, "UID:"+rec.uid, "END:VEVENT")
}

// palette holds the three per-client color values attached to each event.
type palette struct {
	color      string
	appleHex   string
	googleCode string
}

func paletteFor(class model.KindClass) palette {
	switch class {
	case model.KindLecture:
		return palette{color: "5", appleHex: "4CD964", googleCode: "#10"}
	case model.KindSeminar:
		return palette{color: "9", appleHex: "FF2D55", googleCode: "#11"}
	default:
		return palette{color: "0", appleHex: "007AFF", googleCode: "#9"}
	}
}

// FormatUTC renders t in the compact UTC form used throughout the
// document.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(icsTimeLayout)
}

// textEscaper covers the characters the format reserves in free-text
// values. Structural lines and dates are never escaped.
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	";", `\;`,
	",", `\,`,
)

// EscapeText escapes a free-text property value.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}
