package chat

import (
	"encoding/json"
	"time"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/subject"
)

// Session is a tutoring chat of a student within a classroom.
// Content and bot evaluations are opaque JSON documents, never interpreted here.
type Session struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	ClassroomID string          `json:"classroom_id"`
	Subject     subject.Ref     `json:"subject"`
	TopicSource string          `json:"topic_source"`
	Content     json.RawMessage `json:"content"`
	Summary     string          `json:"summary"`
	StartedAt   time.Time       `json:"started_at"`         // UTC
	EndedAt     *time.Time      `json:"ended_at,omitempty"` // UTC
}

func (s Session) IsClosed() bool { return s.EndedAt != nil }

// NewSession contains information needed to open a Session.
// A zero Subject opens an uncategorized session. StartedAt defaults to now; EndedAt may be set
// to record an already finished chat in one write.
type NewSession struct {
	StudentID   string          `json:"student_id" validate:"required"`
	ClassroomID string          `json:"classroom_id" validate:"required"`
	Subject     subject.Ref     `json:"subject"`
	TopicSource string          `json:"topic_source" validate:"max=100"`
	Content     json.RawMessage `json:"content" validate:"omitempty,jsonobject"`
	Summary     string          `json:"summary"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at"`
}

var errEndBeforeStart = core.NewFieldError("ended_at", "a chat cannot end before it starts")

func (ns *NewSession) Validate(v *core.Validator) error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.ClassroomID = core.CleanString(ns.ClassroomID)
	ns.TopicSource = core.CleanString(ns.TopicSource)
	ns.Summary = core.CleanString(ns.Summary)
	ns.Content = core.CleanJSON(ns.Content)
	if ns.StartedAt.IsZero() {
		ns.StartedAt = core.NowFunc()
	}
	ns.StartedAt = ns.StartedAt.UTC()
	if ns.EndedAt != nil {
		end := ns.EndedAt.UTC()
		ns.EndedAt = &end
	}
	if err := v.Struct(ns); err != nil {
		return err
	}
	if ns.EndedAt != nil && ns.EndedAt.Before(ns.StartedAt) {
		return errEndBeforeStart
	}
	return nil
}

// Evaluation is a human evaluation of a chat. Evaluations are append-only.
type Evaluation struct {
	ID           string    `json:"id"`
	ChatID       string    `json:"chat_id"`
	EvaluatorID  string    `json:"evaluator_id"`
	OverallScore float64   `json:"overall_score"`
	Comments     string    `json:"comments"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

type NewEvaluation struct {
	ChatID       string  `json:"chat_id" validate:"required"`
	EvaluatorID  string  `json:"evaluator_id" validate:"required"`
	OverallScore float64 `json:"overall_score" validate:"score"`
	Comments     string  `json:"comments" validate:"required,notblank"`
}

func (ne *NewEvaluation) Validate(v *core.Validator) error {
	ne.ChatID = core.CleanString(ne.ChatID)
	ne.EvaluatorID = core.CleanString(ne.EvaluatorID)
	ne.Comments = core.CleanString(ne.Comments)
	return v.Struct(ne)
}

// AutomatedEvaluation is a machine evaluation of a chat, a ledger independent of human evaluations.
type AutomatedEvaluation struct {
	ID            string          `json:"id"`
	ChatID        string          `json:"chat_id"`
	BotEvaluation json.RawMessage `json:"bot_evaluation"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
}

// Overview is a session with its evaluations, as shown on history pages.
type Overview struct {
	Session
	Evaluations     []Evaluation         `json:"evaluations"`
	LatestAutomated *AutomatedEvaluation `json:"latest_automated,omitempty"`
}

// Filter narrows session listings. Empty fields match everything; Limit <= 0 means no limit.
type Filter struct {
	StudentID   string `query:"student_id"`
	ClassroomID string `query:"classroom_id"`
	Limit       int    `query:"limit"`
}

func (f *Filter) Clean() {
	f.StudentID = core.CleanString(f.StudentID)
	f.ClassroomID = core.CleanString(f.ClassroomID)
	if f.Limit < 0 {
		f.Limit = 0
	}
}
