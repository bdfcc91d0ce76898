package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
)

var (
	errSubjectName       = core.NewFieldError("name", "this field cannot be blank")
	errPreferenceSubject = core.NewFieldError("subject", "exactly one of subject_id or free_text is required")
)

type subjectRepository struct {
	db *DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, s subject.Subject) (subject.Subject, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	if strings.TrimSpace(s.Name) == "" {
		return subject.Subject{}, errSubjectName
	}
	for _, other := range t.subjects {
		if other.ClassroomID == s.ClassroomID && lowerEq(other.Name, s.Name) {
			return subject.Subject{}, subject.ErrNameExists
		}
	}
	if t.classroomIdx(s.ClassroomID) < 0 {
		return subject.Subject{}, classroom.ErrNotFound
	}
	if t.userIdx(s.CreatedBy) < 0 {
		return subject.Subject{}, user.ErrNotFound
	}
	s.CreatedAt = s.CreatedAt.UTC()
	t.subjects = append(t.subjects, s)
	return s, nil
}

func (repo *subjectRepository) GetSubjectByID(ctx context.Context, id string) (subject.Subject, error) {
	defer repo.db.lock(ctx)()
	if i := repo.db.t.subjectIdx(id); i >= 0 {
		return repo.db.t.subjects[i], nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) QuerySubjects(ctx context.Context, classroomID string, activeOnly bool) ([]subject.Subject, error) {
	defer repo.db.lock(ctx)()
	subjects := make([]subject.Subject, 0)
	for _, s := range repo.db.t.subjects {
		if s.ClassroomID == classroomID && (s.IsActive || !activeOnly) {
			subjects = append(subjects, s)
		}
	}
	sort.SliceStable(subjects, func(i, j int) bool {
		return strings.ToLower(subjects[i].Name) < strings.ToLower(subjects[j].Name)
	})
	return subjects, nil
}

func (repo *subjectRepository) SetSubjectActive(ctx context.Context, id string, active bool) (subject.Subject, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	i := t.subjectIdx(id)
	if i < 0 {
		return subject.Subject{}, subject.ErrNotFound
	}
	t.subjects[i].IsActive = active
	return t.subjects[i], nil
}

func (repo *subjectRepository) DeleteSubject(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	i := t.subjectIdx(id)
	if i < 0 {
		return subject.ErrNotFound
	}
	for _, s := range t.chats {
		if s.Subject.SubjectID() == id {
			return subject.ErrSubjectInUse
		}
	}
	for _, s := range t.scores {
		if s.Subject.SubjectID() == id {
			return subject.ErrSubjectInUse
		}
	}

	t.subjects = append(t.subjects[:i:i], t.subjects[i+1:]...)
	preferences := t.preferences[:0:0]
	for _, p := range t.preferences {
		if p.Subject.SubjectID() != id {
			preferences = append(preferences, p)
		}
	}
	t.preferences = preferences
	return nil
}

// Preferences

func (repo *subjectRepository) CreatePreference(ctx context.Context, p subject.Preference) (subject.Preference, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	if p.Subject.IsZero() {
		return subject.Preference{}, errPreferenceSubject
	}
	for _, other := range t.preferences {
		if other.StudentID != p.StudentID || other.ClassroomID != p.ClassroomID {
			continue
		}
		sameSubject := p.Subject.IsCatalog() && other.Subject.SubjectID() == p.Subject.SubjectID()
		sameText := p.Subject.IsFreeText() && other.Subject.IsFreeText() && other.Subject.LowerText() == p.Subject.LowerText()
		if sameSubject || sameText {
			return subject.Preference{}, subject.ErrPreferenceExists
		}
	}
	switch {
	case t.userIdx(p.StudentID) < 0:
		return subject.Preference{}, user.ErrNotFound
	case t.classroomIdx(p.ClassroomID) < 0:
		return subject.Preference{}, classroom.ErrNotFound
	}
	if err := t.checkSubjectRef(p.Subject); err != nil {
		return subject.Preference{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	t.preferences = append(t.preferences, p)
	return p, nil
}

func (repo *subjectRepository) GetPreferenceByID(ctx context.Context, id string) (subject.Preference, error) {
	defer repo.db.lock(ctx)()
	for _, p := range repo.db.t.preferences {
		if p.ID == id {
			return p, nil
		}
	}
	return subject.Preference{}, subject.ErrPreferenceNotFound
}

func (repo *subjectRepository) QueryPreferences(ctx context.Context, studentID, classroomID string) ([]subject.Preference, error) {
	defer repo.db.lock(ctx)()
	prefs := make([]subject.Preference, 0)
	for _, p := range repo.db.t.preferences {
		if p.StudentID == studentID && p.ClassroomID == classroomID {
			prefs = append(prefs, p)
		}
	}
	sort.SliceStable(prefs, func(i, j int) bool {
		if prefs[i].Priority != prefs[j].Priority {
			return prefs[i].Priority < prefs[j].Priority
		}
		return prefs[i].CreatedAt.Before(prefs[j].CreatedAt)
	})
	return prefs, nil
}

func (repo *subjectRepository) DeletePreference(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	t := repo.db.t
	for i, p := range t.preferences {
		if p.ID == id {
			t.preferences = append(t.preferences[:i:i], t.preferences[i+1:]...)
			return nil
		}
	}
	return subject.ErrPreferenceNotFound
}

func (repo *subjectRepository) DeletePreferences(ctx context.Context, studentID, classroomID string) error {
	defer repo.db.lock(ctx)()
	t := repo.db.t
	preferences := t.preferences[:0:0]
	for _, p := range t.preferences {
		if p.StudentID != studentID || p.ClassroomID != classroomID {
			preferences = append(preferences, p)
		}
	}
	t.preferences = preferences
	return nil
}
