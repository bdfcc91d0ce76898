package subject

import (
	"time"

	"github.com/tutoria/tutoria/core"
)

// Subject is a catalog entry of a classroom. Deactivated subjects stay referenced by history.
type Subject struct {
	ID          string    `json:"id"`
	ClassroomID string    `json:"classroom_id"`
	Name        string    `json:"name"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewSubject contains information needed to create a new Subject.
type NewSubject struct {
	ClassroomID string `json:"classroom_id" validate:"required"`
	Name        string `json:"name" validate:"required,notblank,max=100"`
	CreatedBy   string `json:"created_by" validate:"required"`
}

func (ns *NewSubject) Validate(v *core.Validator) error {
	ns.ClassroomID = core.CleanString(ns.ClassroomID)
	ns.Name = core.CleanString(ns.Name)
	ns.CreatedBy = core.CleanString(ns.CreatedBy)
	return v.Struct(ns)
}

// Preference is a subject a student wants to work on in a classroom, ranked by Priority (lowest first).
type Preference struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	ClassroomID string    `json:"classroom_id"`
	Subject     Ref       `json:"subject"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewPreference requires a subject: either a catalog subject or free text.
type NewPreference struct {
	StudentID   string `json:"student_id" validate:"required"`
	ClassroomID string `json:"classroom_id" validate:"required"`
	Subject     Ref    `json:"subject"`
	Priority    int    `json:"priority" validate:"min=0"`
}

var errPreferenceSubject = core.NewValidationError(nil,
	core.FieldError{Field: "subject", Error: "exactly one of subject_id or free_text is required"},
)

func (np *NewPreference) Validate(v *core.Validator) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.ClassroomID = core.CleanString(np.ClassroomID)
	if err := v.Struct(np); err != nil {
		return err
	}
	if np.Subject.IsZero() {
		return errPreferenceSubject
	}
	return nil
}
