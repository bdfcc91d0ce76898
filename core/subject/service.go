package subject

import (
	"context"

	"github.com/google/uuid"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/classroom"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("subject")
	ErrPreferenceNotFound = core.NewNotFoundError("subject preference")
	ErrNameExists         = core.NewConflictError("a subject with this name already exists in this classroom")
	ErrPreferenceExists   = core.NewConflictError("this subject is already among the student preferences")
	ErrSubjectInUse       = core.NewReferentialIntegrityError("subject is referenced by chats or progress scores; deactivate it instead")
	ErrForeignSubject     = core.NewFieldError("subject_id", "subject does not belong to this classroom")
	ErrInactiveSubject    = core.NewFieldError("subject_id", "subject is not active")
)

type (
	Repository interface {
		// CreateSubject returns ErrNameExists on a case-insensitive name clash within the classroom.
		CreateSubject(ctx context.Context, s Subject) (Subject, error)
		GetSubjectByID(ctx context.Context, id string) (Subject, error)
		// QuerySubjects orders subjects case-insensitively by name.
		QuerySubjects(ctx context.Context, classroomID string, activeOnly bool) ([]Subject, error)
		SetSubjectActive(ctx context.Context, id string, active bool) (Subject, error)
		// DeleteSubject returns ErrSubjectInUse while chats or progress rows reference the subject.
		DeleteSubject(ctx context.Context, id string) error

		// CreatePreference returns ErrPreferenceExists when the student already prefers the same subject or text.
		CreatePreference(ctx context.Context, p Preference) (Preference, error)
		GetPreferenceByID(ctx context.Context, id string) (Preference, error)
		// QueryPreferences orders preferences by priority.
		QueryPreferences(ctx context.Context, studentID, classroomID string) ([]Preference, error)
		DeletePreference(ctx context.Context, id string) error
		DeletePreferences(ctx context.Context, studentID, classroomID string) error
	}

	Service struct {
		repo       Repository
		classrooms *classroom.Service
		tx         core.Transactor
		validator  *core.Validator
	}
)

func NewService(repo Repository, classrooms *classroom.Service, tx core.Transactor, validator *core.Validator) *Service {
	return &Service{repo: repo, classrooms: classrooms, tx: tx, validator: validator}
}

// Create adds a subject to a classroom catalog. Names are unique per classroom, case-insensitively;
// the store enforces it so concurrent duplicates are caught too.
func (svc *Service) Create(ctx context.Context, ns NewSubject) (Subject, error) {
	if err := ns.Validate(svc.validator); err != nil {
		return Subject{}, err
	}
	return svc.repo.CreateSubject(ctx, Subject{
		ID:          uuid.New().String(),
		ClassroomID: ns.ClassroomID,
		Name:        ns.Name,
		IsActive:    true,
		CreatedBy:   ns.CreatedBy,
		CreatedAt:   core.NowFunc(),
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, id)
}

func (svc *Service) ListForClassroom(ctx context.Context, classroomID string, activeOnly bool) ([]Subject, error) {
	if _, err := svc.classrooms.Get(ctx, classroomID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubjects(ctx, classroomID, activeOnly)
}

// SetActive deactivates or reactivates a subject. Deactivation is the way to retire a referenced subject.
func (svc *Service) SetActive(ctx context.Context, id string, active bool) (Subject, error) {
	return svc.repo.SetSubjectActive(ctx, id, active)
}

// Delete hard-deletes a subject no chat or progress row references.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}

// ResolveRef checks that a catalog ref points to a subject of the classroom.
// Free-text and empty refs are returned as is.
func (svc *Service) ResolveRef(ctx context.Context, classroomID string, ref Ref, requireActive bool) (Ref, error) {
	if !ref.IsCatalog() {
		return ref, nil
	}
	sbj, err := svc.repo.GetSubjectByID(ctx, ref.SubjectID())
	if err != nil {
		return Ref{}, err
	}
	if sbj.ClassroomID != classroomID {
		return Ref{}, ErrForeignSubject
	}
	if requireActive && !sbj.IsActive {
		return Ref{}, ErrInactiveSubject
	}
	return ref, nil
}

// Preferences

// SetPreference adds a preference for an active student of the classroom.
func (svc *Service) SetPreference(ctx context.Context, np NewPreference) (Preference, error) {
	if err := np.Validate(svc.validator); err != nil {
		return Preference{}, err
	}
	if err := svc.checkStudent(ctx, np.ClassroomID, np.StudentID); err != nil {
		return Preference{}, err
	}
	return svc.createPreference(ctx, np)
}

func (svc *Service) createPreference(ctx context.Context, np NewPreference) (Preference, error) {
	ref, err := svc.ResolveRef(ctx, np.ClassroomID, np.Subject, true)
	if err != nil {
		return Preference{}, err
	}
	return svc.repo.CreatePreference(ctx, Preference{
		ID:          uuid.New().String(),
		StudentID:   np.StudentID,
		ClassroomID: np.ClassroomID,
		Subject:     ref,
		Priority:    np.Priority,
		CreatedAt:   core.NowFunc(),
	})
}

// ReplacePreferences replaces the whole preference list of a student, ranked in the given order.
// Any invalid entry rolls the replacement back.
func (svc *Service) ReplacePreferences(ctx context.Context, studentID, classroomID string, refs []Ref) ([]Preference, error) {
	studentID, classroomID = core.CleanString(studentID), core.CleanString(classroomID)
	if err := svc.checkStudent(ctx, classroomID, studentID); err != nil {
		return nil, err
	}

	prefs := make([]Preference, 0, len(refs))
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeletePreferences(ctx, studentID, classroomID); err != nil {
			return err
		}
		for i, ref := range refs {
			np := NewPreference{StudentID: studentID, ClassroomID: classroomID, Subject: ref, Priority: i}
			if err := np.Validate(svc.validator); err != nil {
				return err
			}
			pref, err := svc.createPreference(ctx, np)
			if err != nil {
				return err
			}
			prefs = append(prefs, pref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

func (svc *Service) ListPreferences(ctx context.Context, studentID, classroomID string) ([]Preference, error) {
	return svc.repo.QueryPreferences(ctx, studentID, classroomID)
}

func (svc *Service) GetPreference(ctx context.Context, id string) (Preference, error) {
	return svc.repo.GetPreferenceByID(ctx, id)
}

func (svc *Service) DeletePreference(ctx context.Context, id string) error {
	return svc.repo.DeletePreference(ctx, id)
}

func (svc *Service) checkStudent(ctx context.Context, classroomID, studentID string) error {
	if _, err := svc.classrooms.Get(ctx, classroomID); err != nil {
		return err
	}
	ok, err := svc.classrooms.IsStudentOf(ctx, classroomID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return core.NewNotAMemberError(classroomID, studentID)
	}
	return nil
}
