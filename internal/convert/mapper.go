// Package convert maps timetable lessons onto calendar events and drives
// the render pipeline.
package convert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"uniscal/internal/ics"
	"uniscal/internal/model"
)

// dateLayout is the compact day form used by the timetable source for
// modification dates and block-lesson dates.
const dateLayout = "20060102"

// Options parameterizes one conversion run.
type Options struct {
	// SemesterEnd bounds every recurrence rule: no weekly lesson repeats
	// past this instant.
	SemesterEnd time.Time

	// Location is the timezone lesson wall-clock times are anchored in.
	// If nil, time.Local is used.
	Location *time.Location
}

// Skip records one lesson the mapper left out, and why.
type Skip struct {
	Course string
	Start  string
	End    string
	Reason string
}

// Report summarizes a conversion run. Skips are expected outcomes, not
// errors: the source data is known to contain rows with zeroed hours,
// and those rows never become events.
type Report struct {
	Periodic int
	Block    int
	Skipped  int
	Skips    []Skip
}

// MapTimetable turns a timetable into calendar event records. The only
// fatal condition is an unusable modification date; individual lessons
// that cannot be mapped are skipped and accounted for in the Report.
func MapTimetable(data *model.TimetableData, opts Options) ([]model.CalendarEvent, Report, error) {
	var rep Report

	if opts.Location == nil {
		opts.Location = time.Local
	}

	semesterStart, err := time.ParseInLocation(dateLayout, data.ModificationDate, opts.Location)
	if err != nil {
		return nil, rep, fmt.Errorf("convert: bad modification date %q: %w", data.ModificationDate, err)
	}

	events := make([]model.CalendarEvent, 0, len(data.Periodic)+len(data.Block))

	for _, lesson := range data.Periodic {
		ev, skip, ok := mapPeriodic(lesson, semesterStart, opts)
		if !ok {
			rep.Skipped++
			rep.Skips = append(rep.Skips, skip)
			continue
		}
		events = append(events, ev)
		rep.Periodic++
	}

	for _, lesson := range data.Block {
		ev, skip, ok := mapBlock(lesson, opts)
		if !ok {
			rep.Skipped++
			rep.Skips = append(rep.Skips, skip)
			continue
		}
		events = append(events, ev)
		rep.Block++
	}

	return events, rep, nil
}

// mapPeriodic builds the event for a weekly lesson. The first occurrence
// lands on the first weekday match on or after the semester start.
func mapPeriodic(lesson model.PeriodicLesson, semesterStart time.Time, opts Options) (model.CalendarEvent, Skip, bool) {
	startHour, startMin, ok := parseClock(lesson.StartTime)
	if !ok {
		return model.CalendarEvent{}, skipFor(lesson.Lesson, "unusable start time"), false
	}
	endHour, endMin, ok := parseClock(lesson.EndTime)
	if !ok {
		return model.CalendarEvent{}, skipFor(lesson.Lesson, "unusable end time"), false
	}

	daysUntil := (lesson.DayOfWeek - int(semesterStart.Weekday()) + 7) % 7
	day := semesterStart.AddDate(0, 0, daysUntil)

	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, opts.Location)
	end := time.Date(day.Year(), day.Month(), day.Day(), endHour, endMin, 0, 0, opts.Location)
	if !start.Before(end) {
		return model.CalendarEvent{}, skipFor(lesson.Lesson, "end not after start"), false
	}

	ev := model.CalendarEvent{
		Summary:     lesson.CourseName,
		Start:       start,
		End:         end,
		Location:    locationLine(lesson.Lesson),
		Description: periodicDescription(lesson),
		Kind:        lesson.Kind,
		RRule:       weeklyRule(lesson.Interval, lesson.WeekParity, opts.SemesterEnd),
	}
	return ev, Skip{}, true
}

// mapBlock builds the event for a one-off lesson. The anchor date comes
// from the lesson itself and no recurrence rule is attached.
func mapBlock(lesson model.BlockLesson, opts Options) (model.CalendarEvent, Skip, bool) {
	day, err := time.ParseInLocation(dateLayout, lesson.Date, opts.Location)
	if err != nil {
		return model.CalendarEvent{}, skipFor(lesson.Lesson, "unusable date"), false
	}

	startHour, startMin, ok := parseClock(lesson.StartTime)
	if !ok {
		return model.CalendarEvent{}, skipFor(lesson.Lesson, "unusable start time"), false
	}
	endHour, endMin, ok := parseClock(lesson.EndTime)
	if !ok {
		return model.CalendarEvent{}, skipFor(lesson.Lesson, "unusable end time"), false
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, opts.Location)
	end := time.Date(day.Year(), day.Month(), day.Day(), endHour, endMin, 0, 0, opts.Location)
	if !start.Before(end) {
		return model.CalendarEvent{}, skipFor(lesson.Lesson, "end not after start"), false
	}

	ev := model.CalendarEvent{
		Summary:     lesson.CourseName,
		Start:       start,
		End:         end,
		Location:    locationLine(lesson.Lesson),
		Description: strings.Join(descriptionLines(lesson.Lesson, lesson.Kind), "\n"),
		Kind:        lesson.Kind,
	}
	return ev, Skip{}, true
}

// parseClock splits an "HH:MM" wall-clock string. A missing, malformed,
// or zero hour makes the whole lesson unusable; a malformed minute counts
// as zero.
func parseClock(s string) (hour, minute int, ok bool) {
	hh, mm, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h == 0 {
		return 0, 0, false
	}

	if m, err := strconv.Atoi(mm); err == nil {
		minute = m
	}
	return h, minute, true
}

// weeklyRule builds the recurrence rule text for a periodic lesson. The
// part order is fixed: FREQ, then INTERVAL when above one, then UNTIL.
// A non-empty week-parity marker always means every second week, no
// matter what the interval field says.
func weeklyRule(interval int, weekParity string, semesterEnd time.Time) string {
	if weekParity != "" {
		interval = 2
	}
	until := ics.FormatUTC(semesterEnd)
	if interval > 1 {
		return fmt.Sprintf("FREQ=WEEKLY;INTERVAL=%d;UNTIL=%s", interval, until)
	}
	return "FREQ=WEEKLY;UNTIL=" + until
}

func locationLine(lesson model.Lesson) string {
	return lesson.Room.Name + ", " + lesson.Campus
}

// descriptionLines assembles the shared description body: course, kind,
// teachers, room, campus. Periodic lessons append their note as a final
// line; block lessons carry no note.
func descriptionLines(lesson model.Lesson, kind model.LessonKind) []string {
	names := make([]string, 0, len(lesson.Teachers))
	for _, t := range lesson.Teachers {
		names = append(names, t.FullName)
	}
	return []string{
		lesson.CourseName,
		kind.Label,
		strings.Join(names, ", "),
		lesson.Room.Name,
		lesson.Campus,
	}
}

func periodicDescription(lesson model.PeriodicLesson) string {
	lines := descriptionLines(lesson.Lesson, lesson.Kind)
	if lesson.Note != "" {
		lines = append(lines, lesson.Note)
	}
	return strings.Join(lines, "\n")
}

func skipFor(lesson model.Lesson, reason string) Skip {
	return Skip{
		Course: lesson.CourseName,
		Start:  lesson.StartTime,
		End:    lesson.EndTime,
		Reason: reason,
	}
}
