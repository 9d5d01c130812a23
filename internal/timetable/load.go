package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	appLog "uniscal/internal/log"
	"uniscal/internal/model"
)

// ErrParse marks a timetable document that could not be decoded. Callers
// abort on it before any conversion work starts.
var ErrParse = errors.New("timetable: malformed document")

// Load decodes one timetable export. Lesson classifications are derived
// here, once, so the rest of the pipeline never re-parses type names.
func Load(r io.Reader) (*model.TimetableData, error) {
	var doc documentDTO
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	data := mapDocument(&doc)
	appLog.Debug("timetable decoded",
		"modification_date", data.ModificationDate,
		"periodic", len(data.Periodic),
		"block", len(data.Block),
		"days_off", len(data.DaysOff),
	)
	return data, nil
}

// LoadFile reads and decodes the export at path.
func LoadFile(path string) (*model.TimetableData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

func mapDocument(doc *documentDTO) *model.TimetableData {
	out := &model.TimetableData{
		ModificationDate: doc.ModificationDate,
		Periodic:         make([]model.PeriodicLesson, 0, len(doc.PeriodicLessons)),
		Block:            make([]model.BlockLesson, 0, len(doc.BlockLessons)),
		DaysOff:          doc.DaysOff,
	}

	for _, p := range doc.PeriodicLessons {
		out.Periodic = append(out.Periodic, model.PeriodicLesson{
			Lesson:     mapLesson(p.lessonDTO),
			DayOfWeek:  p.DayOfWeek,
			Interval:   p.Interval,
			WeekParity: p.WeekParity,
			Kind:       model.ClassifyLessonType(p.TypeName),
			Note:       p.Note,
		})
	}

	for _, b := range doc.BlockLessons {
		out.Block = append(out.Block, model.BlockLesson{
			Lesson: mapLesson(b.lessonDTO),
			Date:   b.Date,
			Kind:   model.ClassifyLessonType(b.TypeName),
		})
	}

	return out
}

func mapLesson(dto lessonDTO) model.Lesson {
	teachers := make([]model.Teacher, 0, len(dto.Teachers))
	for _, t := range dto.Teachers {
		teachers = append(teachers, model.Teacher{
			FullName:  t.FullName,
			ID:        t.ID,
			ShortName: t.ShortName,
		})
	}

	return model.Lesson{
		ID:         dto.ID,
		StudyID:    dto.StudyID,
		CourseID:   dto.CourseID,
		PeriodID:   dto.PeriodID,
		CourseName: dto.CourseName,
		CourseCode: dto.CourseCode,
		Room: model.Room{
			Name: dto.Room.Name,
			ID:   dto.Room.ID,
		},
		Campus:          dto.Campus,
		StartTime:       dto.StartTime,
		EndTime:         dto.EndTime,
		Teachers:        teachers,
		IsSeminar:       model.Marker(dto.IsSeminar),
		IsConsultation:  model.Marker(dto.IsConsultation),
		IsDefaultCampus: model.Marker(dto.IsDefaultCampus),
	}
}
