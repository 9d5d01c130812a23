package convert

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/teambition/rrule-go"

	"uniscal/internal/ics"
	"uniscal/internal/model"
)

var (
	lectureKind = model.LessonKind{Class: model.KindLecture, Label: "lecture"}
	seminarKind = model.LessonKind{Class: model.KindSeminar, Label: "seminar"}

	// 2025-05-31 is a realistic spring-semester end.
	semesterEnd = time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC)
)

func baseLesson(course string) model.Lesson {
	return model.Lesson{
		ID:         "l-1",
		CourseName: course,
		Room:       model.Room{Name: "R101", ID: "r-1"},
		Campus:     "Main",
		StartTime:  "09:00",
		EndTime:    "10:30",
		Teachers:   []model.Teacher{{FullName: "Jane Doe"}},
	}
}

func TestMapTimetable_PeriodicLesson(t *testing.T) {
	data := &model.TimetableData{
		ModificationDate: "20250210", // Monday
		Periodic: []model.PeriodicLesson{
			{
				Lesson:    baseLesson("Algorithms"),
				DayOfWeek: 2, // Tuesday
				Interval:  1,
				Kind:      lectureKind,
			},
		},
	}

	events, rep, err := MapTimetable(data, Options{SemesterEnd: semesterEnd, Location: time.UTC})
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, rep.Periodic)
	assert.Equal(t, 0, rep.Block)
	assert.Equal(t, 0, rep.Skipped)

	ev := events[0]
	assert.Equal(t, "Algorithms", ev.Summary)
	assert.Equal(t, time.Date(2025, 2, 11, 9, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2025, 2, 11, 10, 30, 0, 0, time.UTC), ev.End)
	assert.Equal(t, "R101, Main", ev.Location)
	assert.Equal(t, "Algorithms\nlecture\nJane Doe\nR101\nMain", ev.Description)
	assert.Equal(t, lectureKind, ev.Kind)
	assert.Equal(t, "FREQ=WEEKLY;UNTIL=20250531T235959Z", ev.RRule)
}

func TestMapTimetable_FirstOccurrenceLandsOnLessonWeekday(t *testing.T) {
	semesterStart := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC) // Monday

	for dow := 0; dow < 7; dow++ {
		data := &model.TimetableData{
			ModificationDate: "20250210",
			Periodic: []model.PeriodicLesson{
				{Lesson: baseLesson("Algorithms"), DayOfWeek: dow, Interval: 1, Kind: lectureKind},
			},
		}

		events, rep, err := MapTimetable(data, Options{SemesterEnd: semesterEnd, Location: time.UTC})
		assert.NoError(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, 0, rep.Skipped)

		start := events[0].Start
		assert.Equal(t, time.Weekday(dow), start.Weekday(), "dayOfWeek %d", dow)
		assert.False(t, start.Before(semesterStart), "dayOfWeek %d", dow)
		assert.True(t, start.Sub(semesterStart) < 7*24*time.Hour, "dayOfWeek %d", dow)
	}
}

func TestMapTimetable_NoteBecomesFinalDescriptionLine(t *testing.T) {
	data := &model.TimetableData{
		ModificationDate: "20250210",
		Periodic: []model.PeriodicLesson{
			{
				Lesson:    baseLesson("Algorithms"),
				DayOfWeek: 2,
				Interval:  1,
				Kind:      lectureKind,
				Note:      "Bring laptop",
			},
		},
	}

	events, _, err := MapTimetable(data, Options{SemesterEnd: semesterEnd, Location: time.UTC})
	assert.NoError(t, err)
	assert.Len(t, events, 1)

	lines := strings.Split(events[0].Description, "\n")
	assert.Len(t, lines, 6)
	assert.Equal(t, "Bring laptop", lines[5])
}

func TestMapTimetable_BlockLesson(t *testing.T) {
	lesson := baseLesson("Databases")
	lesson.StartTime = "14:00"
	lesson.EndTime = "16:00"

	data := &model.TimetableData{
		ModificationDate: "20250210",
		Block: []model.BlockLesson{
			{Lesson: lesson, Date: "20250315", Kind: seminarKind},
		},
	}

	events, rep, err := MapTimetable(data, Options{SemesterEnd: semesterEnd, Location: time.UTC})
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, rep.Block)

	ev := events[0]
	assert.Equal(t, "Databases", ev.Summary)
	assert.Equal(t, time.Date(2025, 3, 15, 14, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2025, 3, 15, 16, 0, 0, 0, time.UTC), ev.End)
	assert.Equal(t, "Databases\nseminar\nJane Doe\nR101\nMain", ev.Description)
	assert.Empty(t, ev.RRule, "block lessons carry no recurrence rule")
}

func TestMapTimetable_SkipsUnusableLessons(t *testing.T) {
	zeroStart := baseLesson("Algorithms")
	zeroStart.StartTime = "00:00"

	zeroEnd := baseLesson("Databases")
	zeroEnd.EndTime = "00:15"

	inverted := baseLesson("Networks")
	inverted.StartTime = "10:00"
	inverted.EndTime = "09:00"

	badDate := baseLesson("Operating Systems")

	data := &model.TimetableData{
		ModificationDate: "20250210",
		Periodic: []model.PeriodicLesson{
			{Lesson: zeroStart, DayOfWeek: 2, Interval: 1, Kind: lectureKind},
			{Lesson: zeroEnd, DayOfWeek: 3, Interval: 1, Kind: lectureKind},
			{Lesson: inverted, DayOfWeek: 4, Interval: 1, Kind: lectureKind},
		},
		Block: []model.BlockLesson{
			{Lesson: badDate, Date: "2025-03-15", Kind: seminarKind},
		},
	}

	events, rep, err := MapTimetable(data, Options{SemesterEnd: semesterEnd, Location: time.UTC})
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 4, rep.Skipped)
	assert.Len(t, rep.Skips, 4)

	reasons := make(map[string]string, len(rep.Skips))
	for _, s := range rep.Skips {
		reasons[s.Course] = s.Reason
	}
	assert.Equal(t, "unusable start time", reasons["Algorithms"])
	assert.Equal(t, "unusable end time", reasons["Databases"])
	assert.Equal(t, "end not after start", reasons["Networks"])
	assert.Equal(t, "unusable date", reasons["Operating Systems"])
}

func TestMapTimetable_SkippedLessonsDoNotBlockOthers(t *testing.T) {
	broken := baseLesson("Broken")
	broken.StartTime = "00:00"

	data := &model.TimetableData{
		ModificationDate: "20250210",
		Periodic: []model.PeriodicLesson{
			{Lesson: broken, DayOfWeek: 2, Interval: 1, Kind: lectureKind},
			{Lesson: baseLesson("Algorithms"), DayOfWeek: 2, Interval: 1, Kind: lectureKind},
		},
	}

	events, rep, err := MapTimetable(data, Options{SemesterEnd: semesterEnd, Location: time.UTC})
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, "Algorithms", events[0].Summary)
	assert.Equal(t, 1, rep.Periodic)
	assert.Equal(t, 1, rep.Skipped)
}

func TestMapTimetable_BadModificationDate(t *testing.T) {
	data := &model.TimetableData{ModificationDate: "2025-02-10"}

	events, _, err := MapTimetable(data, Options{SemesterEnd: semesterEnd, Location: time.UTC})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad modification date")
	assert.Nil(t, events)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in     string
		hour   int
		minute int
		ok     bool
	}{
		{"09:00", 9, 0, true},
		{"14:35", 14, 35, true},
		{"9:30", 9, 30, true},
		{"9:xx", 9, 0, true}, // malformed minute counts as zero
		{"9:", 9, 0, true},
		{"00:00", 0, 0, false}, // zero hour marks the row unusable
		{"00:15", 0, 0, false},
		{"xx:30", 0, 0, false},
		{":30", 0, 0, false},
		{"", 0, 0, false},
		{"1400", 0, 0, false},
	}

	for _, tc := range cases {
		h, m, ok := parseClock(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.hour, h, "input %q", tc.in)
			assert.Equal(t, tc.minute, m, "input %q", tc.in)
		}
	}
}

func TestWeeklyRule(t *testing.T) {
	cases := []struct {
		name     string
		interval int
		parity   string
		end      time.Time
		want     string
	}{
		{"every week", 1, "", semesterEnd, "FREQ=WEEKLY;UNTIL=20250531T235959Z"},
		{"zero interval treated as weekly", 0, "", semesterEnd, "FREQ=WEEKLY;UNTIL=20250531T235959Z"},
		{"explicit interval", 3, "", semesterEnd, "FREQ=WEEKLY;INTERVAL=3;UNTIL=20250531T235959Z"},
		{"parity forces two weeks", 1, "odd", semesterEnd, "FREQ=WEEKLY;INTERVAL=2;UNTIL=20250531T235959Z"},
		{"parity overrides interval", 4, "even", semesterEnd, "FREQ=WEEKLY;INTERVAL=2;UNTIL=20250531T235959Z"},
		{
			"zoned end converted to utc",
			1, "",
			time.Date(2025, 5, 31, 23, 59, 59, 0, time.FixedZone("UTC+3", 3*60*60)),
			"FREQ=WEEKLY;UNTIL=20250531T205959Z",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, weeklyRule(tc.interval, tc.parity, tc.end))
		})
	}
}

// The generated rule text must be accepted verbatim by a real RRULE
// engine and produce the schedule the timetable describes.
func TestWeeklyRule_DrivesRealRecurrenceEngine(t *testing.T) {
	dtstart := time.Date(2025, 2, 11, 9, 0, 0, 0, time.UTC) // Tuesday

	r, err := rrule.StrToRRule(weeklyRule(1, "", semesterEnd))
	assert.NoError(t, err)
	r.DTStart(dtstart)

	all := r.All()
	assert.Len(t, all, 16) // Tuesdays from 2025-02-11 through 2025-05-27
	for _, occ := range all {
		assert.Equal(t, time.Tuesday, occ.Weekday())
		assert.Equal(t, 9, occ.Hour())
		assert.False(t, occ.After(semesterEnd))
	}

	biweekly, err := rrule.StrToRRule(weeklyRule(1, "odd", semesterEnd))
	assert.NoError(t, err)
	biweekly.DTStart(dtstart)

	every2 := biweekly.All()
	assert.Len(t, every2, 8)
	for i := 1; i < len(every2); i++ {
		assert.Equal(t, 14*24*time.Hour, every2[i].Sub(every2[i-1]))
	}
}

func TestBuildCalendar(t *testing.T) {
	block := baseLesson("Databases")
	block.StartTime = "14:00"
	block.EndTime = "16:00"

	broken := baseLesson("Broken")
	broken.StartTime = "00:00"

	data := &model.TimetableData{
		ModificationDate: "20250210",
		Periodic: []model.PeriodicLesson{
			{Lesson: baseLesson("Algorithms"), DayOfWeek: 2, Interval: 1, Kind: lectureKind},
			{Lesson: broken, DayOfWeek: 3, Interval: 1, Kind: lectureKind},
		},
		Block: []model.BlockLesson{
			{Lesson: block, Date: "20250315", Kind: seminarKind},
		},
	}

	n := 0
	bopts := ics.BuilderOptions{NewUID: func() string {
		n++
		return fmt.Sprintf("uid-%d", n)
	}}

	res, err := BuildCalendar(data, Options{SemesterEnd: semesterEnd, Location: time.UTC}, bopts)
	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.Len(t, res.Events, 2)
	assert.Equal(t, 1, res.Report.Periodic)
	assert.Equal(t, 1, res.Report.Block)
	assert.Equal(t, 1, res.Report.Skipped)

	doc := string(res.Document)
	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(doc, "END:VCALENDAR"))
	assert.Contains(t, doc, "SUMMARY:Algorithms")
	assert.Contains(t, doc, "SUMMARY:Databases")
	assert.NotContains(t, doc, "SUMMARY:Broken")
	assert.Contains(t, doc, "UID:uid-1@uniscal")
	assert.Contains(t, doc, "UID:uid-2@uniscal")
	assert.Contains(t, doc, "RRULE:FREQ=WEEKLY;UNTIL=20250531T235959Z")
}

func TestBuildCalendar_BadModificationDate(t *testing.T) {
	data := &model.TimetableData{ModificationDate: "February 10"}

	res, err := BuildCalendar(data, Options{SemesterEnd: semesterEnd}, ics.BuilderOptions{})
	assert.Error(t, err)
	assert.Nil(t, res)
}
