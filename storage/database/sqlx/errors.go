package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
)

// postgres error codes
const (
	pgInvalidTextRepr = "22P02"
	pgFKViolation     = "23503"
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// constraintErrors maps unique and insert-side foreign key constraints to domain errors.
var constraintErrors = map[string]error{
	"users_email_key": user.ErrEmailExists,

	"classrooms_created_by_fkey":            user.ErrNotFound,
	"classroom_teachers_pkey":               classroom.ErrTeacherExists,
	"classroom_teachers_classroom_id_fkey":  classroom.ErrNotFound,
	"classroom_teachers_teacher_id_fkey":    user.ErrNotFound,
	"classroom_students_pkey":               classroom.ErrStudentExists,
	"classroom_students_classroom_id_fkey":  classroom.ErrNotFound,
	"classroom_students_student_id_fkey":    user.ErrNotFound,
	"classroom_documents_classroom_id_fkey": classroom.ErrNotFound,
	"classroom_documents_uploaded_by_fkey":  user.ErrNotFound,

	"classroom_subjects_classroom_id_lower_name_key": subject.ErrNameExists,
	"classroom_subjects_classroom_id_fkey":           classroom.ErrNotFound,
	"classroom_subjects_created_by_fkey":             user.ErrNotFound,
	"student_subject_preferences_subject_key":        subject.ErrPreferenceExists,
	"student_subject_preferences_free_text_key":      subject.ErrPreferenceExists,
	"student_subject_preferences_student_id_fkey":    user.ErrNotFound,
	"student_subject_preferences_classroom_id_fkey":  classroom.ErrNotFound,
	"student_subject_preferences_subject_id_fkey":    subject.ErrNotFound,

	"chats_student_id_fkey":                   user.ErrNotFound,
	"chats_classroom_id_fkey":                 classroom.ErrNotFound,
	"chats_subject_id_fkey":                   subject.ErrNotFound,
	"chat_evaluations_chat_id_fkey":           chat.ErrNotFound,
	"chat_evaluations_evaluator_id_fkey":      user.ErrNotFound,
	"automated_chat_evaluations_chat_id_fkey": chat.ErrNotFound,
	"progress_scores_student_id_fkey":         user.ErrNotFound,
	"progress_scores_classroom_id_fkey":       classroom.ErrNotFound,
	"progress_scores_subject_id_fkey":         subject.ErrNotFound,
	"attachments_owner_id_fkey":               user.ErrNotFound,
	"attachments_chat_id_fkey":                chat.ErrNotFound,
	"attachments_evaluation_id_fkey":          chat.ErrEvaluationNotFound,
}

var errBadIdentifier = core.NewFieldError("id", "malformed identifier")

// translate maps a postgres failure to the error taxonomy; anything else is wrapped with msg.
func translate(err error, msg string) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return errors.Wrap(err, msg)
	}

	switch pqErr.Code {
	case pgUniqueViolation:
		if e, ok := constraintErrors[pqErr.Constraint]; ok {
			return e
		}
		return core.NewConflictError(pqErr.Message, pqErr)
	case pgFKViolation:
		if e, ok := constraintErrors[pqErr.Constraint]; ok {
			return e
		}
		return core.NewNotFoundError(pqErr.Table)
	case pgCheckViolation:
		return core.NewValidationError(pqErr, core.FieldError{Field: pqErr.Constraint, Error: pqErr.Message})
	case pgInvalidTextRepr:
		return errBadIdentifier
	}
	return errors.Wrap(err, msg)
}

// translateDelete is translate for deletions: a foreign key violation means a restrict rule blocked it.
func translateDelete(err error, msg string, inUse error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgFKViolation {
		return inUse
	}
	return translate(err, msg)
}

// trapNoRows maps sql.ErrNoRows to notFound.
func trapNoRows(err error, msg string, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return translate(err, msg)
}
