package progress

import (
	"time"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/subject"
)

// Score is one observation of a student's progress on a metric. Scores are append-only.
type Score struct {
	ID          string      `json:"id"`
	StudentID   string      `json:"student_id"`
	ClassroomID string      `json:"classroom_id"`
	Subject     subject.Ref `json:"subject"`
	TopicSource string      `json:"topic_source"`
	Metric      string      `json:"metric"`
	Score       float64     `json:"score"`
	RecordedAt  time.Time   `json:"recorded_at"` // UTC
}

// NewScore contains information needed to record a Score. RecordedAt defaults to now.
type NewScore struct {
	StudentID   string      `json:"student_id" validate:"required"`
	ClassroomID string      `json:"classroom_id" validate:"required"`
	Subject     subject.Ref `json:"subject"`
	TopicSource string      `json:"topic_source" validate:"max=100"`
	Metric      string      `json:"metric" validate:"required,notblank,max=100"`
	Score       float64     `json:"score" validate:"score"`
	RecordedAt  time.Time   `json:"recorded_at"`
}

func (ns *NewScore) Validate(v *core.Validator) error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.ClassroomID = core.CleanString(ns.ClassroomID)
	ns.TopicSource = core.CleanString(ns.TopicSource)
	ns.Metric = core.CleanString(ns.Metric)
	if ns.RecordedAt.IsZero() {
		ns.RecordedAt = core.NowFunc()
	}
	ns.RecordedAt = ns.RecordedAt.UTC()
	return v.Struct(ns)
}

// Filter narrows progress queries. Empty fields match everything; From and To bound recorded_at inclusively.
type Filter struct {
	StudentID   string    `query:"student_id"`
	ClassroomID string    `query:"classroom_id"`
	SubjectID   string    `query:"subject_id"`
	FreeText    string    `query:"free_text"`
	Metric      string    `query:"metric"`
	From        time.Time `query:"from"`
	To          time.Time `query:"to"`
}

func (f *Filter) Clean() {
	f.StudentID = core.CleanString(f.StudentID)
	f.ClassroomID = core.CleanString(f.ClassroomID)
	f.SubjectID = core.CleanString(f.SubjectID)
	f.FreeText = core.CleanString(f.FreeText)
	f.Metric = core.CleanString(f.Metric)
}
