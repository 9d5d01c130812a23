package model

import "strings"

// KindClass enumerates the lesson classifications the exporter
// distinguishes. Everything outside the two known source tokens is Other.
type KindClass int

const (
	KindLecture KindClass = iota
	KindSeminar
	KindOther
)

func (k KindClass) String() string {
	switch k {
	case KindLecture:
		return "lecture"
	case KindSeminar:
		return "seminar"
	default:
		return "other"
	}
}

// LessonKind pairs the classification with the label shown in the
// calendar. Label keeps the source's original spelling.
type LessonKind struct {
	Class KindClass
	Label string
}

// defaultKind is used for lessons that arrive without a type name.
var defaultKind = LessonKind{Class: KindLecture, Label: "lecture"}

// ClassifyLessonType derives the classification from a source type name.
// Matching is case-insensitive and accepts both the English and the
// Russian token for each known kind. Unknown names keep their text as an
// Other label; an absent name counts as a lecture.
func ClassifyLessonType(typeName string) LessonKind {
	name := strings.TrimSpace(typeName)
	if name == "" {
		return defaultKind
	}
	switch strings.ToLower(name) {
	case "lecture", "лекция":
		return LessonKind{Class: KindLecture, Label: name}
	case "seminar", "семинар":
		return LessonKind{Class: KindSeminar, Label: name}
	default:
		return LessonKind{Class: KindOther, Label: name}
	}
}
