// Package timetable decodes timetable exports into the domain model.
// The wire structs mirror the source system's JSON exactly; everything
// downstream works with internal/model types only.
package timetable

import "encoding/json"

type teacherDTO struct {
	FullName  string `json:"fullName"`
	ID        string `json:"id"`
	ShortName string `json:"shortName"`
}

type roomDTO struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// lessonDTO carries the fields shared by both lesson shapes. The three
// is* flags are free-form strings in the source, not booleans.
type lessonDTO struct {
	ID       string `json:"id"`
	StudyID  string `json:"studyId"`
	CourseID string `json:"courseId"`
	PeriodID string `json:"periodId"`

	CourseName string `json:"courseName"`
	CourseCode string `json:"courseCode"`

	Room   roomDTO `json:"room"`
	Campus string  `json:"campus"`

	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	Teachers []teacherDTO `json:"teachers"`

	IsSeminar       string `json:"isSeminar"`
	IsConsultation  string `json:"isConsultation"`
	IsDefaultCampus string `json:"isDefaultCampus"`
}

type periodicLessonDTO struct {
	lessonDTO

	DayOfWeek  int    `json:"dayOfWeek"`
	Interval   int    `json:"interval"`
	WeekParity string `json:"weekParity"`
	TypeName   string `json:"typeName"`
	Note       string `json:"note"`
}

type blockLessonDTO struct {
	lessonDTO

	Date     string `json:"date"`
	TypeName string `json:"typeName"`
}

// documentDTO is the top-level export shape.
type documentDTO struct {
	ModificationDate string              `json:"modificationDate"`
	PeriodicLessons  []periodicLessonDTO `json:"periodicLessons"`
	BlockLessons     []blockLessonDTO    `json:"blockLessons"`
	DaysOff          []json.RawMessage   `json:"daysOff"`
}
