package model

import (
	"encoding/json"
	"time"
)

// Teacher identifies one instructor assigned to a lesson.
type Teacher struct {
	FullName  string
	ID        string
	ShortName string
}

// Room is the physical location a lesson takes place in.
type Room struct {
	Name string
	ID   string
}

// Marker is a free-form flag string from the timetable source. The source
// system emits these as arbitrary text rather than booleans; any non-empty
// value means the flag is set.
type Marker string

// Set reports whether the marker carries a value.
func (m Marker) Set() bool { return m != "" }

// Lesson holds the fields shared by periodic and block lessons.
type Lesson struct {
	ID       string
	StudyID  string
	CourseID string
	PeriodID string

	CourseName string
	CourseCode string

	Room   Room
	Campus string

	// StartTime / EndTime are wall-clock strings in "HH:MM" form,
	// exactly as the source emits them.
	StartTime string
	EndTime   string

	Teachers []Teacher

	IsSeminar       Marker
	IsConsultation  Marker
	IsDefaultCampus Marker
}

// PeriodicLesson is a lesson that repeats on a fixed weekday, every week
// or every few weeks, until the end of the semester.
type PeriodicLesson struct {
	Lesson

	// DayOfWeek uses the source convention: 0 = Sunday .. 6 = Saturday.
	DayOfWeek int

	// Interval is the recurrence periodicity in weeks (1 = every week).
	Interval int

	// WeekParity marks odd/even-week lessons. Any non-empty value forces
	// a two-week recurrence interval.
	WeekParity string

	Kind LessonKind
	Note string
}

// BlockLesson is a one-off lesson on a specific date.
type BlockLesson struct {
	Lesson

	// Date is a "YYYYMMDD" string.
	Date string

	Kind LessonKind
}

// TimetableData is a decoded timetable export.
type TimetableData struct {
	// ModificationDate ("YYYYMMDD") anchors the semester: each periodic
	// lesson first occurs on its first matching weekday on or after this
	// date.
	ModificationDate string

	Periodic []PeriodicLesson
	Block    []BlockLesson

	// DaysOff is carried through as-is; nothing downstream consumes it.
	DaysOff []json.RawMessage
}

// CalendarEvent is one fully prepared calendar entry. Records are built
// once by the mapper and never mutated afterwards; the document builder
// attaches the UID when the event is registered.
type CalendarEvent struct {
	Summary     string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	Kind        LessonKind

	// RRule is the serialized recurrence rule, empty for one-off events.
	RRule string
}
